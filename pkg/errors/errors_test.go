package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name     string
		op       string
		kind     string
		err      error
		wantMsg  string
		hasStack bool
	}{
		{
			name:     "with original error",
			op:       "Fit",
			kind:     "invalid input",
			err:      fmt.Errorf("test error"),
			wantMsg:  "emissions: Fit: invalid input: test error",
			hasStack: true,
		},
		{
			name:     "without original error",
			op:       "Predict",
			kind:     "not fitted",
			err:      nil,
			wantMsg:  "emissions: Predict: not fitted",
			hasStack: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)

			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.wantMsg)
			}

			// スタックトレースの存在確認
			if tt.hasStack {
				formatted := fmt.Sprintf("%+v", err)
				if !strings.Contains(formatted, "errors_test.go") {
					t.Error("Expected stack trace to contain test file name")
				}
			}

			var modelErr *ModelError
			if !As(err, &modelErr) {
				t.Error("Error should be castable to *ModelError")
			}
		})
	}
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("LinearRegression.Predict", 7, 6, 1)

	want := "emissions: LinearRegression.Predict: dimension mismatch on axis 1 (features). Expected 7, got 6"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	var dimErr *DimensionError
	if !As(err, &dimErr) {
		t.Fatal("Error should be castable to *DimensionError")
	}
	if dimErr.Expected != 7 || dimErr.Got != 6 {
		t.Errorf("unexpected fields: %+v", dimErr)
	}
}

func TestNewNotFittedError(t *testing.T) {
	err := NewNotFittedError("OneHotEncoder", "Transform")

	if !strings.Contains(err.Error(), "OneHotEncoder") || !strings.Contains(err.Error(), "Transform()") {
		t.Errorf("unexpected message: %s", err.Error())
	}

	var nfErr *NotFittedError
	if !As(err, &nfErr) {
		t.Error("Error should be castable to *NotFittedError")
	}
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("n_samples", "must be positive", 0)

	want := "emissions: validation failed for parameter 'n_samples': must be positive (got: 0)"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	var vErr *ValidationError
	if !As(err, &vErr) {
		t.Fatal("Error should be castable to *ValidationError")
	}
	if vErr.ParamName != "n_samples" {
		t.Errorf("ParamName = %q", vErr.ParamName)
	}
}

func TestNewUnknownCategoryError(t *testing.T) {
	known := []string{"bus", "car", "truck"}
	err := NewUnknownCategoryError("vehicle_type", "bicycle", known)

	// 呼び出し元のスライスを書き換えてもエラーの内容は変わらない
	known[0] = "mutated"

	var ucErr *UnknownCategoryError
	if !As(err, &ucErr) {
		t.Fatal("Error should be castable to *UnknownCategoryError")
	}
	if ucErr.Value != "bicycle" || ucErr.Column != "vehicle_type" {
		t.Errorf("unexpected fields: %+v", ucErr)
	}
	if ucErr.Expected[0] != "bus" {
		t.Errorf("Expected categories were aliased: %v", ucErr.Expected)
	}
	if !strings.Contains(err.Error(), `"bicycle"`) {
		t.Errorf("message should quote the value: %s", err.Error())
	}
}

func TestNewRankDeficientError(t *testing.T) {
	err := NewRankDeficientError("LinearRegression.Fit", 6, 7, 1e17)

	if !Is(err, ErrSingularMatrix) {
		t.Error("RankDeficientError should match ErrSingularMatrix")
	}

	var rdErr *RankDeficientError
	if !As(err, &rdErr) {
		t.Fatal("Error should be castable to *RankDeficientError")
	}
	if rdErr.Rank != 6 || rdErr.Columns != 7 {
		t.Errorf("unexpected fields: %+v", rdErr)
	}
}

func TestNewArtifactError(t *testing.T) {
	err := NewArtifactError("load", "/tmp/model.json", ErrChecksumMismatch)

	if !Is(err, ErrChecksumMismatch) {
		t.Error("ArtifactError should unwrap to its cause")
	}

	var aErr *ArtifactError
	if !As(err, &aErr) {
		t.Fatal("Error should be castable to *ArtifactError")
	}
	if aErr.Path != "/tmp/model.json" || aErr.Op != "load" {
		t.Errorf("unexpected fields: %+v", aErr)
	}
}

func TestNewInputShapeError(t *testing.T) {
	tests := []struct {
		name    string
		feature string
		want    string
	}{
		{
			name:    "with feature",
			feature: "distance",
			want:    "emissions: input shape mismatch in prediction phase for feature 'distance'. Expected number, got string",
		},
		{
			name:    "without feature",
			feature: "",
			want:    "emissions: input shape mismatch in prediction phase. Expected number, got string",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewInputShapeError("prediction", tt.feature, "number", "string")
			if err.Error() != tt.want {
				t.Errorf("Error() = %q, want %q", err.Error(), tt.want)
			}
		})
	}
}

func TestCheckFinite(t *testing.T) {
	if err := CheckFinite("distance", 100); err != nil {
		t.Errorf("finite value rejected: %v", err)
	}

	err := CheckFinite("distance", inf())
	var vErr *ValidationError
	if !As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if vErr.ParamName != "distance" {
		t.Errorf("ParamName = %q", vErr.ParamName)
	}
}

func TestCheckNumericalStability(t *testing.T) {
	if err := CheckNumericalStability("coefficients", []float64{1, 2, 3}, 0); err != nil {
		t.Errorf("stable values rejected: %v", err)
	}

	err := CheckNumericalStability("coefficients", []float64{1, nan()}, 0)
	var nErr *NumericalInstabilityError
	if !As(err, &nErr) {
		t.Fatalf("expected NumericalInstabilityError, got %v", err)
	}
}

func TestWarnRoutesToZerologFunc(t *testing.T) {
	var got []error
	SetZerologWarnFunc(func(w error) { got = append(got, w) })
	defer SetZerologWarnFunc(nil)

	Warn(NewMissingCategoryWarning("vehicle_type", []string{"bus"}))

	if len(got) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(got))
	}
	if !strings.Contains(got[0].Error(), "bus") {
		t.Errorf("unexpected warning: %v", got[0])
	}
}

func TestWrapAndIs(t *testing.T) {
	wrapped := Wrap(ErrEmptyData, "loading samples")

	if !Is(wrapped, ErrEmptyData) {
		t.Error("wrapped error should match ErrEmptyData")
	}
	if !strings.Contains(wrapped.Error(), "loading samples") {
		t.Errorf("unexpected message: %s", wrapped.Error())
	}
}

func TestWrapf(t *testing.T) {
	wrapped := Wrapf(ErrSingularMatrix, "fit %d", 3)

	if !Is(wrapped, ErrSingularMatrix) {
		t.Error("wrapped error should match ErrSingularMatrix")
	}
	if !strings.Contains(wrapped.Error(), "fit 3") {
		t.Errorf("unexpected message: %s", wrapped.Error())
	}
}

func inf() float64 {
	var zero float64
	return 1 / zero
}

func nan() float64 {
	var zero float64
	return zero / zero
}
