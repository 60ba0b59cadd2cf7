// Stage panics are turned into errors so a bad row aborts the run with a
// report instead of a crash.

package errors

import (
	"fmt"
	"runtime/debug"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// PanicError is a panic recovered inside a pipeline stage.
type PanicError struct {
	Stage      string
	Value      interface{}
	StackTrace string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Stage, e.Value)
}

// MarshalZerologObject はzerologのイベントにパニック情報を追加します。
func (e *PanicError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("stage", e.Stage).
		Str("panic", fmt.Sprint(e.Value)).
		Str("type", "PanicError")
}

// NewPanicError captures the current stack for a recovered value.
func NewPanicError(stage string, value interface{}) *PanicError {
	return &PanicError{Stage: stage, Value: value, StackTrace: string(debug.Stack())}
}

// Recover is deferred by functions with a named error result:
//
//	func build() (err error) {
//	    defer errors.Recover(&err, "features")
//	    ...
//	}
//
// An error already set before the panic is kept as a secondary error.
func Recover(err *error, stage string) {
	r := recover()
	if r == nil {
		return
	}
	var perr error = NewPanicError(stage, r)
	if *err != nil {
		perr = errors.WithSecondaryError(perr, *err)
	}
	*err = perr
}

// SafeExecute runs fn and converts a panic into a *PanicError.
func SafeExecute(stage string, fn func() error) (err error) {
	defer Recover(&err, stage)
	return fn()
}
