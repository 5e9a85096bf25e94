package admission

import "fmt"

// Bounds are the numeric ranges a car must fall into to be priced
type Bounds struct {
	MinYear int `yaml:"min_year" json:"minYear"`
	MaxYear int `yaml:"max_year" json:"maxYear"`
	MaxKm   int `yaml:"max_km" json:"maxKm"`
}

// Validate checks that the ranges are non-empty
func (b Bounds) Validate() error {
	if b.MinYear <= 0 || b.MaxYear < b.MinYear {
		return fmt.Errorf("invalid year bounds [%d, %d]", b.MinYear, b.MaxYear)
	}
	if b.MaxKm <= 0 {
		return fmt.Errorf("max_km must be positive, got %d", b.MaxKm)
	}
	return nil
}

// Rule ids produced by BoundRules
const (
	RuleIDYearRange = "bounds-year"
	RuleIDKmRange   = "bounds-km"
)

// BoundRules returns the default guards for b
func BoundRules(b Bounds) []*Rule {
	return []*Rule{
		{
			ID:         RuleIDYearRange,
			Name:       "Year within range",
			Expression: fmt.Sprintf("%s.year >= %d && %s.year <= %d", VarCar, b.MinYear, VarCar, b.MaxYear),
			Active:     true,
		},
		{
			ID:         RuleIDKmRange,
			Name:       "Kilometers within range",
			Expression: fmt.Sprintf("%s.km_driven >= 0 && %s.km_driven <= %d", VarCar, VarCar, b.MaxKm),
			Active:     true,
		},
	}
}
