package report

import (
	"errors"
	"fmt"
)

// ReportMethodFailure reports a method that could not be lowered.  Failures
// that are not *Failure values are reported as internal.
func ReportMethodFailure(method string, err error) {
	var f *Failure
	if !errors.As(err, &f) {
		f = &Failure{Method: method, Message: err.Error(), Internal: true}
	}

	rep.m.Lock()
	defer rep.m.Unlock()

	rep.failCount++

	if rep.logLevel > LogLevelSilent {
		displayMethodFailure(method, f)
	}
}

// ReportWarning reports a warning.  Warnings are displayed immediately.
func ReportWarning(tag, message string, args ...interface{}) {
	rep.m.Lock()
	defer rep.m.Unlock()

	rep.warnCount++

	if rep.logLevel >= LogLevelWarn {
		displayWarning(tag, fmt.Sprintf(message, args...))
	}
}

// FailureCount returns the number of methods reported as failed.
func FailureCount() int {
	rep.m.Lock()
	defer rep.m.Unlock()

	return rep.failCount
}

// -----------------------------------------------------------------------------
// Below are all the "aesthetic" reporting functions that will only run if the
// log level is verbose.

// DisplayInfoMessage displays an informational message regardless of state.
func DisplayInfoMessage(tag, msg string) {
	displayInfo(tag, msg)
}

// ReportHeader displays the tool version and the selected target.
func ReportHeader(version, triple string) {
	if rep.logLevel == LogLevelVerbose {
		displayHeader(version, triple)
	}
}

// ReportBeginPhase reports the beginning of a phase of the run.
func ReportBeginPhase(phase string) {
	if rep.logLevel == LogLevelVerbose {
		rep.m.Lock()
		defer rep.m.Unlock()

		displayBeginPhase(phase)
	}
}

// ReportEndPhase reports the end of the current phase.
func ReportEndPhase(success bool) {
	if rep.logLevel == LogLevelVerbose {
		rep.m.Lock()
		defer rep.m.Unlock()

		displayEndPhase(success)
	}
}

// ReportMethodLowered logs a successfully lowered method.
func ReportMethodLowered(method string, nblocks, nrelocs int) {
	if rep.logLevel == LogLevelVerbose {
		rep.m.Lock()
		defer rep.m.Unlock()

		displayMethodLowered(method, nblocks, nrelocs)
	}
}

// ReportFinished displays the concluding message of the run.
func ReportFinished(outputPath string, lowered int) {
	if rep.logLevel > LogLevelSilent {
		rep.m.Lock()
		defer rep.m.Unlock()

		displayFinished(outputPath, lowered, rep.failCount, rep.warnCount, rep.startTime)
	}
}
