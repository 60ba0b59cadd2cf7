package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		kind    string
		err     error
		wantMsg string
	}{
		{
			name:    "with original error",
			op:      "Ridge.Fit",
			kind:    "singular matrix",
			err:     fmt.Errorf("test error"),
			wantMsg: "bikedemand: Ridge.Fit: singular matrix: test error",
		},
		{
			name:    "without original error",
			op:      "Ridge.Predict",
			kind:    "not fitted",
			err:     nil,
			wantMsg: "bikedemand: Ridge.Predict: not fitted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)

			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.wantMsg)
			}

			// スタックトレースの存在確認
			formatted := fmt.Sprintf("%+v", err)
			if !strings.Contains(formatted, "errors_test.go") {
				t.Error("Expected stack trace to contain test file name")
			}

			var modelErr *ModelError
			if !As(err, &modelErr) {
				t.Error("Error should be castable to *ModelError")
			}
		})
	}
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("CohenKappa", 10, 9, 0)

	want := "bikedemand: CohenKappa: dimension mismatch on axis 0 (rows). Expected 10, got 9"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var dimErr *DimensionError
	if !As(err, &dimErr) {
		t.Error("Error should be castable to *DimensionError")
	}
}

func TestNewNotFittedError(t *testing.T) {
	err := NewNotFittedError("LabelEncoder", "Transform")

	want := "bikedemand: LabelEncoder: this model is not fitted yet. Call Fit() before using Transform()"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var notFittedErr *NotFittedError
	if !As(err, &notFittedErr) {
		t.Error("Error should be castable to *NotFittedError")
	}
}

func TestNewParseError(t *testing.T) {
	tests := []struct {
		name    string
		line    int
		column  int
		wantMsg string
	}{
		{"line and column", 12, 3, "bikedemand: parse weather.csv:12:3: bad value"},
		{"line only", 12, 0, "bikedemand: parse weather.csv:12: bad value"},
		{"no position", 0, 0, "bikedemand: parse weather.csv: bad value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := New("bad value")
			err := NewParseError("weather.csv", tt.line, tt.column, base)
			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.wantMsg)
			}
			if !Is(err, base) {
				t.Error("ParseError should unwrap to the underlying error")
			}
		})
	}
}

func TestWarnings(t *testing.T) {
	tests := []struct {
		name string
		warn error
		want string
	}{
		{
			name: "convergence with message",
			warn: NewConvergenceWarning("NelderMead", 200, "iteration limit"),
			want: "NelderMead failed to converge after 200 iterations: iteration limit",
		},
		{
			name: "undefined metric",
			warn: NewUndefinedMetricWarning("cohen_kappa", "a single class in both inputs", 0),
			want: "'cohen_kappa' is ill-defined and being set to 0.000000 due to a single class in both inputs.",
		},
		{
			name: "data quality",
			warn: NewDataQualityWarning("merge", "missing_weather_key", 7),
			want: "merge: 7 rows affected: missing_weather_key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.warn.Error() != tt.want {
				t.Errorf("Error() = %q, want %q", tt.warn.Error(), tt.want)
			}
		})
	}
}

func TestWarnRoutesToZerologFunc(t *testing.T) {
	var got []error
	SetZerologWarnFunc(func(w error) { got = append(got, w) })
	defer SetZerologWarnFunc(nil)

	Warn(NewDataQualityWarning("features", "missing_capacity", 3))

	if len(got) != 1 {
		t.Fatalf("expected 1 routed warning, got %d", len(got))
	}
	var dq *DataQualityWarning
	if !As(got[0], &dq) || dq.Rows != 3 {
		t.Errorf("unexpected warning routed: %v", got[0])
	}
}

func TestWrapf(t *testing.T) {
	wrapped := Wrapf(ErrEmptyData, "in %s: expected %d, got %d", "Dataset", 10, 0)

	if !Is(wrapped, ErrEmptyData) {
		t.Error("Expected Is(wrapped, ErrEmptyData) to be true")
	}

	expectedMsg := "in Dataset: expected 10, got 0"
	if !strings.Contains(wrapped.Error(), expectedMsg) {
		t.Errorf("Expected wrapped error to contain %q", expectedMsg)
	}
}

func TestCause(t *testing.T) {
	err := Wrapf(Wrap(NewValidationError("split.test_size", "must be in (0, 1)", 2.0), "split"), "stage %s", "dataset")
	var verr *ValidationError
	if !As(Cause(err), &verr) {
		t.Fatalf("Cause returned %T", Cause(err))
	}
	if got := fmt.Sprintf("%T", Cause(err)); got != "*errors.ValidationError" {
		t.Errorf("type = %s", got)
	}
}

func TestCheckNumericalStability(t *testing.T) {
	if err := CheckNumericalStability("ok", []float64{1, 2, 3}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	err := CheckNumericalStability("ridge_solve", []float64{1, nanValue()})
	var numErr *NumericalInstabilityError
	if !As(err, &numErr) {
		t.Fatalf("expected NumericalInstabilityError, got %v", err)
	}
	if numErr.Operation != "ridge_solve" {
		t.Errorf("Operation = %q", numErr.Operation)
	}
}

func nanValue() float64 {
	zero := 0.0
	return zero / zero
}
