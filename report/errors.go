package report

import (
	"fmt"
	"os"
	"runtime/debug"
)

// Failure is the one signal produced when a method cannot be lowered.  The
// method is dropped from the output entirely: there is no partial result.
type Failure struct {
	// The name of the method that failed.
	Method string

	// The failure message.
	Message string

	// Internal indicates that the failure came from a violated internal
	// invariant rather than an unsupported input shape.  It only affects how
	// the failure is displayed.
	Internal bool

	// Stack is the goroutine stack captured for internal failures.
	Stack string
}

func (f *Failure) Error() string {
	if f.Method == "" {
		return f.Message
	}

	return fmt.Sprintf("%s: %s", f.Method, f.Message)
}

// Unsupported aborts lowering of the current method because it contains a
// shape that is not implemented.  It never returns.
func Unsupported(msg string, args ...interface{}) {
	panic(&Failure{Message: fmt.Sprintf(msg, args...)})
}

// Assert aborts lowering of the current method with an internal failure if
// the condition does not hold.
func Assert(cond bool, msg string, args ...interface{}) {
	if !cond {
		panic(&Failure{Message: fmt.Sprintf(msg, args...), Internal: true})
	}
}

// CatchFailure converts any panic raised while lowering a method into a
// *Failure stored in errp.  Failures raised with Unsupported are passed
// through; everything else (runtime errors, failed assertions in libraries) is
// treated as an internal failure.
// NB: This function must ALWAYS be deferred.
func CatchFailure(method string, errp *error) {
	x := recover()
	if x == nil {
		return
	}

	switch v := x.(type) {
	case *Failure:
		v.Method = method
		if v.Internal && v.Stack == "" {
			v.Stack = string(debug.Stack())
		}

		*errp = v
	case error:
		*errp = &Failure{Method: method, Message: v.Error(), Internal: true, Stack: string(debug.Stack())}
	default:
		*errp = &Failure{Method: method, Message: fmt.Sprint(v), Internal: true, Stack: string(debug.Stack())}
	}
}

// -----------------------------------------------------------------------------

// ReportFatal reports a fatal error and exits.  These are errors that should
// stop the whole run immediately: a bad profile, an unreadable input unit,
// failure to write the output.
func ReportFatal(message string, args ...interface{}) {
	if rep.logLevel > LogLevelSilent {
		rep.m.Lock()
		defer rep.m.Unlock()

		displayEndPhase(false)
		displayFatal(fmt.Sprintf(message, args...))
	}

	os.Exit(1)
}

// ReportStdError reports a non-fatal, standard Go error.
func ReportStdError(tag string, err error) {
	if rep.logLevel > LogLevelSilent {
		rep.m.Lock()
		defer rep.m.Unlock()

		displayStdError(tag, err)
	}
}
