// Package summary derives display metrics from a predicted price
package summary

import (
	"fmt"
	"math"
	"time"

	"github.com/liamcoop/carprice/features"
)

// Band and negotiation factors applied to the predicted price
const (
	RangeLowFactor        = 0.9
	RangeHighFactor       = 1.1
	NegotiationLowFactor  = 0.05
	NegotiationHighFactor = 0.10

	// HealthyDepreciationRate is the yearly loss, in percent of the
	// purchase price, below which a car is said to hold its value
	HealthyDepreciationRate = 10.0

	// MinPurchaseYear is the earliest accepted purchase year
	MinPurchaseYear = 2000
)

// Summary describes a prediction in terms a seller can use
type Summary struct {
	AgeYears        int     `json:"ageYears"`
	AvgKmPerYear    float64 `json:"avgKmPerYear"`
	PriceLow        float64 `json:"priceLow"`
	PriceHigh       float64 `json:"priceHigh"`
	PricePerKm      float64 `json:"pricePerKm"`
	NegotiationLow  float64 `json:"negotiationLow"`
	NegotiationHigh float64 `json:"negotiationHigh"`
}

// Compute derives the summary of price for in as of now
func Compute(in features.RawInput, price float64, now time.Time) Summary {
	age := now.Year() - in.Year

	s := Summary{
		AgeYears:        age,
		AvgKmPerYear:    float64(in.KmDriven),
		PriceLow:        price * RangeLowFactor,
		PriceHigh:       price * RangeHighFactor,
		NegotiationLow:  price * NegotiationLowFactor,
		NegotiationHigh: price * NegotiationHighFactor,
	}
	if age > 0 {
		s.AvgKmPerYear = float64(in.KmDriven) / float64(age)
	}
	if in.KmDriven > 0 {
		s.PricePerKm = price / float64(in.KmDriven)
	}
	return s
}

// Purchase is what the owner paid and when
type Purchase struct {
	Price float64 `json:"price"`
	Year  int     `json:"year"`
	Km    int     `json:"km"`
}

// Validate checks p against the car it describes. A purchase must have a
// price, happen between the model year and now, and show no more km than
// the car shows today.
func (p Purchase) Validate(car features.RawInput, now time.Time) error {
	if p.Price <= 0 {
		return fmt.Errorf("%w: purchase price must be positive, got %v", features.ErrInvalidInput, p.Price)
	}
	if p.Year < MinPurchaseYear || p.Year > now.Year() {
		return fmt.Errorf("%w: purchase year must be in [%d, %d], got %d",
			features.ErrInvalidInput, MinPurchaseYear, now.Year(), p.Year)
	}
	if p.Year < car.Year {
		return fmt.Errorf("%w: purchase year %d is before model year %d", features.ErrInvalidInput, p.Year, car.Year)
	}
	if p.Km < 0 || p.Km > car.KmDriven {
		return fmt.Errorf("%w: purchase km must be in [0, %d], got %d", features.ErrInvalidInput, car.KmDriven, p.Km)
	}
	return nil
}

// Comparison relates the predicted price to the purchase
type Comparison struct {
	Diff             float64 `json:"diff"`
	DiffPercent      float64 `json:"diffPercent"`
	YearsOwned       int     `json:"yearsOwned"`
	AnnualChange     float64 `json:"annualChange"`
	DepreciationRate float64 `json:"depreciationRate"`
	KmSincePurchase  int     `json:"kmSincePurchase"`
	KmPerYearOwned   float64 `json:"kmPerYearOwned"`
	Gain             bool    `json:"gain"`
	HoldsValue       bool    `json:"holdsValue"`
}

// Compare relates price to p for a car now showing currentKm
func Compare(price float64, p Purchase, currentKm int, now time.Time) Comparison {
	c := Comparison{
		Diff:            price - p.Price,
		YearsOwned:      now.Year() - p.Year,
		KmSincePurchase: currentKm - p.Km,
	}
	c.Gain = c.Diff >= 0

	if p.Price > 0 {
		c.DiffPercent = c.Diff / p.Price * 100
	}
	if c.YearsOwned > 0 {
		c.AnnualChange = c.Diff / float64(c.YearsOwned)
		c.KmPerYearOwned = float64(c.KmSincePurchase) / float64(c.YearsOwned)
	}
	if p.Price > 0 {
		c.DepreciationRate = math.Abs(c.AnnualChange) / p.Price * 100
	}
	c.HoldsValue = c.Gain || c.DepreciationRate < HealthyDepreciationRate
	return c
}
