package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestRecover(t *testing.T) {
	build := func() (err error) {
		defer Recover(&err, "features")
		var rows []int
		_ = rows[3]
		return nil
	}

	err := build()
	var perr *PanicError
	if !As(err, &perr) {
		t.Fatalf("expected *PanicError, got %T: %v", err, err)
	}
	if perr.Stage != "features" {
		t.Errorf("Stage = %q", perr.Stage)
	}
	if perr.StackTrace == "" {
		t.Error("missing stack trace")
	}
	if !strings.HasPrefix(perr.Error(), "panic in features: runtime error: index out of range") {
		t.Errorf("unexpected message %q", perr.Error())
	}
}

func TestRecoverKeepsEarlierError(t *testing.T) {
	earlier := New("weather key collision")

	fn := func() (err error) {
		defer Recover(&err, "merge")
		err = earlier
		panic("nil station")
	}

	err := fn()
	var perr *PanicError
	if !As(err, &perr) {
		t.Fatalf("expected *PanicError, got %v", err)
	}
	if perr.Value != "nil station" {
		t.Errorf("Value = %v", perr.Value)
	}
	if !strings.Contains(fmt.Sprintf("%+v", err), "weather key collision") {
		t.Error("verbose output should include the earlier error")
	}
}

func TestSafeExecute(t *testing.T) {
	sentinel := New("stage failed")

	tests := []struct {
		name      string
		fn        func() error
		wantPanic bool
		wantErr   error
	}{
		{"success", func() error { return nil }, false, nil},
		{"returns error", func() error { return sentinel }, false, sentinel},
		{"panics", func() error { panic("boom") }, true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := SafeExecute("stage", tt.fn)
			var perr *PanicError
			if got := As(err, &perr); got != tt.wantPanic {
				t.Errorf("panic recovered = %v, want %v", got, tt.wantPanic)
			}
			if tt.wantErr != nil && !Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
			if !tt.wantPanic && tt.wantErr == nil && err != nil {
				t.Errorf("unexpected error %v", err)
			}
		})
	}
}
