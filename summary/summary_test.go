package summary

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/liamcoop/carprice/features"
)

var now = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func input(year, km int) features.RawInput {
	return features.RawInput{Brand: "Maruti", Year: year, KmDriven: km}
}

func TestCompute(t *testing.T) {
	approx := cmpopts.EquateApprox(0, 1e-9)

	testCases := []struct {
		name  string
		in    features.RawInput
		price float64
		want  Summary
	}{
		{
			name:  "Typical",
			in:    input(2018, 60000),
			price: 500000,
			want: Summary{
				AgeYears:        6,
				AvgKmPerYear:    10000,
				PriceLow:        450000,
				PriceHigh:       550000,
				PricePerKm:      500000.0 / 60000,
				NegotiationLow:  25000,
				NegotiationHigh: 50000,
			},
		},
		{
			name:  "Zero km",
			in:    input(2018, 0),
			price: 300000,
			want: Summary{
				AgeYears:        6,
				AvgKmPerYear:    0,
				PriceLow:        270000,
				PriceHigh:       330000,
				PricePerKm:      0,
				NegotiationLow:  15000,
				NegotiationHigh: 30000,
			},
		},
		{
			name:  "Current model year",
			in:    input(2024, 1200),
			price: 100000,
			want: Summary{
				AgeYears:        0,
				AvgKmPerYear:    1200,
				PriceLow:        90000,
				PriceHigh:       110000,
				PricePerKm:      100000.0 / 1200,
				NegotiationLow:  5000,
				NegotiationHigh: 10000,
			},
		},
		{
			name:  "Zero price",
			in:    input(2010, 100000),
			price: 0,
			want:  Summary{AgeYears: 14, AvgKmPerYear: 100000.0 / 14},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Compute(tc.in, tc.price, now)
			if diff := cmp.Diff(tc.want, got, approx); diff != "" {
				t.Errorf("Compute() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestComputeNeverDividesByZero(t *testing.T) {
	for _, in := range []features.RawInput{input(2024, 0), input(2030, 0), input(2024, 500000)} {
		s := Compute(in, 123456, now)
		for _, v := range []float64{s.AvgKmPerYear, s.PricePerKm, s.PriceLow, s.PriceHigh} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				t.Errorf("Compute(%+v) produced non-finite value: %+v", in, s)
			}
		}
	}
}

func TestCompare(t *testing.T) {
	approx := cmpopts.EquateApprox(0, 1e-9)

	testCases := []struct {
		name      string
		price     float64
		purchase  Purchase
		currentKm int
		want      Comparison
	}{
		{
			name:      "Depreciated",
			price:     400000,
			purchase:  Purchase{Price: 600000, Year: 2020, Km: 10000},
			currentKm: 50000,
			want: Comparison{
				Diff:             -200000,
				DiffPercent:      -200000.0 / 600000 * 100,
				YearsOwned:       4,
				AnnualChange:     -50000,
				DepreciationRate: 50000.0 / 600000 * 100,
				KmSincePurchase:  40000,
				KmPerYearOwned:   10000,
				Gain:             false,
				HoldsValue:       true,
			},
		},
		{
			name:      "Steep loss",
			price:     100000,
			purchase:  Purchase{Price: 500000, Year: 2022},
			currentKm: 30000,
			want: Comparison{
				Diff:             -400000,
				DiffPercent:      -80,
				YearsOwned:       2,
				AnnualChange:     -200000,
				DepreciationRate: 40,
				KmSincePurchase:  30000,
				KmPerYearOwned:   15000,
				Gain:             false,
				HoldsValue:       false,
			},
		},
		{
			name:      "Gain",
			price:     550000,
			purchase:  Purchase{Price: 500000, Year: 2023, Km: 1000},
			currentKm: 1000,
			want: Comparison{
				Diff:             50000,
				DiffPercent:      10,
				YearsOwned:       1,
				AnnualChange:     50000,
				DepreciationRate: 10,
				Gain:             true,
				HoldsValue:       true,
			},
		},
		{
			name:      "Bought this year",
			price:     450000,
			purchase:  Purchase{Price: 500000, Year: 2024},
			currentKm: 100,
			want: Comparison{
				Diff:            -50000,
				DiffPercent:     -10,
				YearsOwned:      0,
				KmSincePurchase: 100,
				HoldsValue:      true,
			},
		},
		{
			name:     "Free car",
			price:    100,
			purchase: Purchase{Price: 0, Year: 2020},
			want: Comparison{
				Diff:         100,
				YearsOwned:   4,
				AnnualChange: 25,
				Gain:         true,
				HoldsValue:   true,
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Compare(tc.price, tc.purchase, tc.currentKm, now)
			if diff := cmp.Diff(tc.want, got, approx); diff != "" {
				t.Errorf("Compare() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPurchaseValidate(t *testing.T) {
	car := input(2018, 60000)

	testCases := []struct {
		name     string
		purchase Purchase
		wantErr  bool
	}{
		{"Valid", Purchase{Price: 500000, Year: 2020, Km: 10000}, false},
		{"Bought new this year", Purchase{Price: 500000, Year: 2024, Km: 60000}, false},
		{"Bought in model year", Purchase{Price: 500000, Year: 2018}, false},
		{"Missing price", Purchase{Year: 2020}, true},
		{"Negative price", Purchase{Price: -1, Year: 2020}, true},
		{"Missing year", Purchase{Price: 500000}, true},
		{"Before earliest year", Purchase{Price: 500000, Year: 1999}, true},
		{"Future year", Purchase{Price: 500000, Year: 2030, Km: 10000}, true},
		{"Before model year", Purchase{Price: 500000, Year: 2017}, true},
		{"Negative km", Purchase{Price: 500000, Year: 2020, Km: -1}, true},
		{"More km than today", Purchase{Price: 500000, Year: 2020, Km: 90000}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.purchase.Validate(car, now)
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
			if err != nil && !errors.Is(err, features.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}
