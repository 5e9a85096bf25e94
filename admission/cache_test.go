package admission

import (
	"testing"
	"time"
)

func TestInMemoryRulesCache(t *testing.T) {
	cache := NewInMemoryRulesCache(DefaultCacheConfig())

	if cache.IsValid() || cache.Get() != nil {
		t.Fatal("new cache should miss")
	}

	rules := []*Rule{{ID: "a"}, {ID: "b"}}
	cache.Set(rules)
	rules[0] = &Rule{ID: "mutated"}

	got := cache.Get()
	if len(got) != 2 || got[0].ID != "a" {
		t.Errorf("cache should hold a copy of the slice, got %v", ruleIDs(got))
	}
	got[1] = nil
	if cache.Get()[1] == nil {
		t.Error("Get() should return a copy of the slice")
	}

	cache.Invalidate()
	if cache.IsValid() || cache.Get() != nil {
		t.Error("invalidated cache should miss")
	}

	cache.Set(nil)
	if !cache.IsValid() {
		t.Error("an empty rule list is still a valid cache entry")
	}
	if got := cache.Get(); got == nil || len(got) != 0 {
		t.Errorf("Get() on empty entry = %v, want empty non-nil", got)
	}
}

func TestInMemoryRulesCacheTTL(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	cache := NewInMemoryRulesCache(CacheConfig{TTL: time.Minute})
	cache.now = func() time.Time { return now }

	cache.Set([]*Rule{{ID: "a"}})

	now = now.Add(59 * time.Second)
	if !cache.IsValid() || cache.Get() == nil {
		t.Error("entry should be fresh before TTL")
	}

	now = now.Add(2 * time.Second)
	if cache.IsValid() || cache.Get() != nil {
		t.Error("entry should expire after TTL")
	}
}

func TestEngineRereadsStoreAfterTTL(t *testing.T) {
	store := NewInMemoryRuleStore()
	engine, err := NewEngine(store, CacheConfig{TTL: time.Minute})
	if err != nil {
		t.Fatalf("NewEngine() failed: %v", err)
	}
	now := time.Now()
	cache := engine.cache.(*InMemoryRulesCache)
	cache.now = func() time.Time { return now }
	cache.Set(nil)

	// Written behind the engine's back, as another replica would
	store.Add(&Rule{ID: "ext", Name: "External", Expression: "false", Active: true})

	decision, _ := engine.Check(carInput())
	if !decision.Admitted {
		t.Fatal("cached empty list should still be served")
	}

	now = now.Add(2 * time.Minute)
	decision, _ = engine.Check(carInput())
	if decision.Admitted {
		t.Error("expired cache should pick up the external rule")
	}
}
