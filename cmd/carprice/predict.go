package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/liamcoop/carprice/features"
	"github.com/liamcoop/carprice/predictor"
	"github.com/liamcoop/carprice/summary"
	"github.com/spf13/cobra"
)

var (
	predictInput       features.RawInput
	predictExplain     bool
	predictJSON        bool
	predictPassThrough bool
	purchasePrice      float64
	purchaseYear       int
	purchaseKm         int
)

// predictCmd prices a single car
var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict the selling price of a car",
	Example: `  carprice predict --brand Maruti --year 2018 --km 40000 \
    --fuel Petrol --seller Individual --transmission Manual --owner "First Owner"`,
	RunE: runPredict,
}

func init() {
	f := predictCmd.Flags()
	f.StringVar(&predictInput.Brand, "brand", "", "Brand (first word of the listing name)")
	f.IntVar(&predictInput.Year, "year", 0, "Model year")
	f.IntVar(&predictInput.KmDriven, "km", 0, "Kilometers driven")
	f.StringVar(&predictInput.Fuel, "fuel", "", "Fuel type")
	f.StringVar(&predictInput.SellerType, "seller", "", "Seller type")
	f.StringVar(&predictInput.Transmission, "transmission", "", "Transmission")
	f.StringVar(&predictInput.Owner, "owner", "", "Ownership")
	f.BoolVar(&predictExplain, "explain", false, "Print the aligned feature row")
	f.BoolVar(&predictJSON, "json", false, "Print JSON instead of text")
	f.BoolVar(&predictPassThrough, "pass-through-unknown", false, "Encode unknown categories as all-zero indicators instead of failing")
	f.Float64Var(&purchasePrice, "purchase-price", 0, "What the owner paid, to compare against")
	f.IntVar(&purchaseYear, "purchase-year", 0, "Year of purchase")
	f.IntVar(&purchaseKm, "purchase-km", 0, "Odometer at purchase")

	for _, name := range []string{"brand", "year", "km", "fuel", "seller", "transmission", "owner"} {
		_ = predictCmd.MarkFlagRequired(name)
	}
}

type predictOutput struct {
	Price      float64             `json:"price"`
	Summary    summary.Summary     `json:"summary"`
	Comparison *summary.Comparison `json:"comparison,omitempty"`
	Vector     map[string]float64  `json:"vector,omitempty"`
}

func runPredict(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	bundle, release, err := loadBundle(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer release()

	passThrough := cfg.Features.PassThroughUnknown || predictPassThrough
	codec := features.NewDefaultCodec(features.WithPassThroughUnknown(passThrough))
	p, err := predictor.New(bundle, codec)
	if err != nil {
		return err
	}

	now := timeNow()
	var purchase *summary.Purchase
	if purchasePrice != 0 || purchaseYear != 0 || purchaseKm != 0 {
		purchase = &summary.Purchase{Price: purchasePrice, Year: purchaseYear, Km: purchaseKm}
		if err := purchase.Validate(predictInput, now); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()

	row, price, err := p.PredictVector(predictInput)
	if err != nil {
		var unknown *features.UnknownCategoryError
		if errors.As(err, &unknown) {
			if table, lookupErr := codec.Tables().Lookup(unknown.Field); lookupErr == nil {
				fmt.Fprintf(out, "%s %q is not a known %s\n", errorColor.Sprint("error:"), unknown.Value, unknown.Field)
				fmt.Fprintf(out, "allowed: %v\n", table.Labels())
			}
		}
		return err
	}

	result := predictOutput{
		Price:   price,
		Summary: summary.Compute(predictInput, price, now),
	}
	if purchase != nil {
		cmp := summary.Compare(price, *purchase, predictInput.KmDriven, now)
		result.Comparison = &cmp
	}
	if predictExplain {
		result.Vector = row.Map()
	}

	if predictJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	printPrediction(out, result, row, predictExplain)
	return nil
}

func printPrediction(out io.Writer, r predictOutput, row *features.Row, explain bool) {
	s := r.Summary
	fmt.Fprintf(out, "%s %s\n", headingColor.Sprint("Predicted price:"), priceColor.Sprintf("%.0f", r.Price))
	fmt.Fprintf(out, "  range        %.0f - %.0f\n", s.PriceLow, s.PriceHigh)
	fmt.Fprintf(out, "  negotiation  %.0f - %.0f\n", s.NegotiationLow, s.NegotiationHigh)
	fmt.Fprintf(out, "  age          %d years\n", s.AgeYears)
	fmt.Fprintf(out, "  km per year  %.0f\n", s.AvgKmPerYear)
	fmt.Fprintf(out, "  price per km %.2f\n", s.PricePerKm)

	if c := r.Comparison; c != nil {
		fmt.Fprintln(out, headingColor.Sprint("Compared to purchase:"))
		diff := priceColor.Sprintf("%+.0f (%+.1f%%)", c.Diff, c.DiffPercent)
		if !c.Gain {
			diff = warnColor.Sprintf("%+.0f (%+.1f%%)", c.Diff, c.DiffPercent)
		}
		fmt.Fprintf(out, "  difference   %s\n", diff)
		fmt.Fprintf(out, "  owned        %d years, %d km\n", c.YearsOwned, c.KmSincePurchase)
		fmt.Fprintf(out, "  depreciation %.1f%% per year\n", c.DepreciationRate)
		if c.HoldsValue {
			fmt.Fprintln(out, priceColor.Sprint("  holds its value well"))
		} else {
			fmt.Fprintln(out, warnColor.Sprint("  depreciating faster than usual"))
		}
	}

	if explain {
		fmt.Fprintln(out, headingColor.Sprint("Feature row:"))
		cols, vals := row.Columns(), row.Values()
		for i := range cols {
			fmt.Fprintf(out, "  %-20s %s\n", cols[i], dimColor.Sprint(vals[i]))
		}
	}
}
