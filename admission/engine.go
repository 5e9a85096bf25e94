package admission

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/liamcoop/carprice/features"
)

// VarCar is the CEL variable holding the raw input, keyed by its JSON names
const VarCar = "car"

// costLimit bounds the evaluation cost of a single rule
const costLimit = 1000000

// Engine compiles admission rules once and evaluates them per request.
// Safe for concurrent use.
type Engine struct {
	env      *cel.Env
	store    RuleStore
	cache    RulesCache
	programs map[string]cel.Program // ruleID -> compiled program
	mu       sync.RWMutex
}

// NewEngine creates an engine over store and compiles its active rules
func NewEngine(store RuleStore, cacheConfig CacheConfig) (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable(VarCar, cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	en := &Engine{
		env:      env,
		store:    store,
		cache:    NewInMemoryRulesCache(cacheConfig),
		programs: make(map[string]cel.Program),
	}

	if err := en.CompileAllRules(); err != nil {
		return nil, fmt.Errorf("failed to compile rules: %w", err)
	}

	return en, nil
}

func (en *Engine) compile(expression string) (cel.Program, error) {
	ast, issues := en.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}

	prog, err := en.env.Program(ast,
		cel.EvalOptions(cel.OptTrackState),
		cel.CostLimit(costLimit),
	)
	if err != nil {
		return nil, fmt.Errorf("program creation error: %w", err)
	}
	return prog, nil
}

// CompileRule compiles expression and caches the program under ruleID
func (en *Engine) CompileRule(ruleID, expression string) error {
	prog, err := en.compile(expression)
	if err != nil {
		return err
	}

	en.mu.Lock()
	en.programs[ruleID] = prog
	en.mu.Unlock()
	return nil
}

// CompileAllRules compiles every active rule and primes the cache
func (en *Engine) CompileAllRules() error {
	rules, err := en.store.ListActive()
	if err != nil {
		return err
	}

	for _, rule := range rules {
		if err := en.CompileRule(rule.ID, rule.Expression); err != nil {
			return fmt.Errorf("failed to compile rule %s: %w", rule.ID, err)
		}
	}

	en.cache.Set(rules)
	return nil
}

// AddRule validates and compiles r, then stores it
func (en *Engine) AddRule(r *Rule) error {
	if err := ValidateRule(r); err != nil {
		return err
	}
	if _, err := en.store.Get(r.ID); err == nil {
		return fmt.Errorf("%w: %s", ErrRuleExists, r.ID)
	}

	prog, err := en.compile(r.Expression)
	if err != nil {
		return fmt.Errorf("rule validation failed: %w", err)
	}

	if err := en.store.Add(r); err != nil {
		return err
	}

	en.mu.Lock()
	en.programs[r.ID] = prog
	en.mu.Unlock()

	en.cache.Invalidate()
	return nil
}

// EnsureRules adds every rule whose id is not stored yet.
// Stored rules are left untouched so operator edits survive restarts.
func (en *Engine) EnsureRules(rules []*Rule) (added int, err error) {
	for _, r := range rules {
		err := en.AddRule(r)
		if errors.Is(err, ErrRuleExists) {
			continue
		}
		if err != nil {
			return added, fmt.Errorf("failed to add rule %s: %w", r.ID, err)
		}
		added++
	}
	return added, nil
}

// UpdateRule recompiles r and replaces the stored rule
func (en *Engine) UpdateRule(r *Rule) error {
	if err := ValidateRule(r); err != nil {
		return err
	}

	prog, err := en.compile(r.Expression)
	if err != nil {
		return fmt.Errorf("rule validation failed: %w", err)
	}

	if err := en.store.Update(r); err != nil {
		return err
	}

	en.mu.Lock()
	en.programs[r.ID] = prog
	en.mu.Unlock()

	en.cache.Invalidate()
	return nil
}

// DeleteRule removes a rule and its program
func (en *Engine) DeleteRule(ruleID string) error {
	if err := en.store.Delete(ruleID); err != nil {
		return err
	}

	en.mu.Lock()
	delete(en.programs, ruleID)
	en.mu.Unlock()

	en.cache.Invalidate()
	return nil
}

// GetRule returns a stored rule
func (en *Engine) GetRule(ruleID string) (*Rule, error) {
	return en.store.Get(ruleID)
}

// ListRules returns every stored rule, active or not
func (en *Engine) ListRules() ([]*Rule, error) {
	return en.store.List()
}

func (en *Engine) activeRules() ([]*Rule, error) {
	if rules := en.cache.Get(); rules != nil {
		return rules, nil
	}

	rules, err := en.store.ListActive()
	if err != nil {
		return nil, err
	}
	en.cache.Set(rules)
	return rules, nil
}

// EvaluateAll runs every active rule against facts. A rule that fails to
// evaluate is reported in its result and does not stop the others.
func (en *Engine) EvaluateAll(facts map[string]any) ([]*EvaluationResult, error) {
	rules, err := en.activeRules()
	if err != nil {
		return nil, err
	}

	results := make([]*EvaluationResult, 0, len(rules))
	for _, rule := range rules {
		results = append(results, en.evaluate(rule, facts))
	}
	return results, nil
}

func (en *Engine) evaluate(rule *Rule, facts map[string]any) *EvaluationResult {
	result := &EvaluationResult{RuleID: rule.ID, RuleName: rule.Name}

	en.mu.RLock()
	prog, exists := en.programs[rule.ID]
	en.mu.RUnlock()

	if !exists {
		// Rule was activated by another writer; compile lazily
		var err error
		if prog, err = en.compile(rule.Expression); err != nil {
			result.Error = fmt.Errorf("rule %s is not compiled: %w", rule.ID, err)
			return result
		}
		en.mu.Lock()
		en.programs[rule.ID] = prog
		en.mu.Unlock()
	}

	out, details, err := prog.Eval(facts)
	if err != nil {
		result.Error = err
		return result
	}

	if b, ok := out.Value().(bool); ok {
		result.Passed = b
	} else {
		result.Error = fmt.Errorf("rule returned %s, not bool", out.Type().TypeName())
	}
	if details != nil {
		result.Trace = details.State()
	}
	return result
}

// Check evaluates the active rules against in. The input is admitted only
// when every rule evaluates to true; errors and non-boolean results reject.
func (en *Engine) Check(in features.RawInput) (*Decision, error) {
	rules, err := en.activeRules()
	if err != nil {
		return nil, err
	}

	facts := map[string]any{VarCar: in.Facts()}
	decision := &Decision{Admitted: true, Evaluated: len(rules)}
	for _, rule := range rules {
		res := en.evaluate(rule, facts)
		if res.Passed {
			continue
		}
		v := Violation{RuleID: rule.ID, RuleName: rule.Name, Expression: rule.Expression}
		if res.Error != nil {
			v.Error = res.Error.Error()
		}
		decision.Admitted = false
		decision.Violations = append(decision.Violations, v)
	}
	return decision, nil
}
