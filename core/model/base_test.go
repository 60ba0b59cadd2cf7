package model

import (
	"testing"

	"github.com/YuminosukeSato/bikedemand/pkg/errors"
)

func TestBaseEstimatorLifecycle(t *testing.T) {
	var e BaseEstimator

	if e.IsFitted() {
		t.Fatal("zero value should not be fitted")
	}
	err := e.RequireFitted("Ridge", "Predict")
	var nf *errors.NotFittedError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFittedError, got %v", err)
	}
	if nf.ModelName != "Ridge" || nf.Method != "Predict" {
		t.Errorf("unexpected error fields: %+v", nf)
	}

	e.SetFitted()
	if err := e.RequireFitted("Ridge", "Predict"); err != nil {
		t.Errorf("fitted estimator returned %v", err)
	}

	e.Reset()
	if e.IsFitted() {
		t.Error("Reset should clear fitted state")
	}
}
