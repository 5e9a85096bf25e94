package model

import (
	"testing"
)

func TestDecodeLinearJSON(t *testing.T) {
	data := []byte(`{"kind":"linear","n_features":3,"intercept":-1000,"coefficients":[10,-0.1,5000]}`)

	r, err := Decode(FormatJSON, data)
	if err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}
	got, err := r.Predict([]float64{2018, 40000, 1})
	if err != nil {
		t.Fatalf("Predict() failed: %v", err)
	}
	if want := -1000 + 20180 - 4000 + 5000.0; got != want {
		t.Errorf("Predict() = %v, want %v", got, want)
	}
}

func TestDecodeRejectsMalformedArtifacts(t *testing.T) {
	testCases := []struct {
		name   string
		format string
		data   string
	}{
		{"Not JSON", FormatJSON, `{kind:`},
		{"Missing kind", FormatJSON, `{"coefficients":[1]}`},
		{"Unknown kind", FormatJSON, `{"kind":"svm"}`},
		{"Feature count disagrees", FormatJSON, `{"kind":"linear","n_features":4,"coefficients":[1,2]}`},
		{"No coefficients", FormatJSON, `{"kind":"linear"}`},
		{"Ensemble without trees", FormatJSON, `{"kind":"tree_ensemble","n_features":2}`},
		{"Unsupported format", "pickle", `{}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Decode(tc.format, []byte(tc.data)); err == nil {
				t.Error("expected decode error")
			}
		})
	}
}

func TestEncodeDecodeAcrossFormats(t *testing.T) {
	linear, _ := NewLinear(50, []float64{1.5, -2, 3})
	ensemble, _ := NewTreeEnsemble(EnsembleConfig{
		NumFeatures: 3,
		Aggregation: AggregateSum,
		BaseScore:   10,
		Trees:       []Tree{stump(1, 2)},
	})
	x := []float64{2015, 3, 1}

	for _, format := range []string{FormatJSON, FormatMsgpack} {
		for _, r := range []Regressor{linear, ensemble} {
			t.Run(format+"/"+r.Kind(), func(t *testing.T) {
				data, err := Encode(format, r)
				if err != nil {
					t.Fatalf("Encode() failed: %v", err)
				}
				back, err := Decode(format, data)
				if err != nil {
					t.Fatalf("Decode() failed: %v", err)
				}

				want, _ := r.Predict(x)
				got, err := back.Predict(x)
				if err != nil {
					t.Fatalf("Predict() on decoded regressor failed: %v", err)
				}
				if got != want || back.NumFeatures() != r.NumFeatures() {
					t.Errorf("decoded regressor differs: got %v/%d, want %v/%d",
						got, back.NumFeatures(), want, r.NumFeatures())
				}
			})
		}
	}
}

func TestFormatFromPath(t *testing.T) {
	testCases := []struct {
		path    string
		want    string
		wantErr bool
	}{
		{"model.json", FormatJSON, false},
		{"artifacts/MODEL.JSON", FormatJSON, false},
		{"model.msgpack", FormatMsgpack, false},
		{"model.mpk", FormatMsgpack, false},
		{"model.pkl", "", true},
		{"model", "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			got, err := FormatFromPath(tc.path)
			if (err != nil) != tc.wantErr {
				t.Fatalf("FormatFromPath(%q) error = %v, wantErr %v", tc.path, err, tc.wantErr)
			}
			if got != tc.want {
				t.Errorf("FormatFromPath(%q) = %q, want %q", tc.path, got, tc.want)
			}
		})
	}
}
