package report

import (
	"sync"
	"time"
)

// Reporter is responsible for reporting failures, warnings, and other kinds of
// messages to the user during lowering.  The reporter respects the set log
// level and is synchronized: its methods can be safely called from multiple
// goroutines (ie. from several method workers at once).
type Reporter struct {
	// The mutex used to synchonize different report method calls.
	m *sync.Mutex

	// The selected log level of the reporter.  This must be one of the
	// enumerated log levels below.
	logLevel int

	// The number of methods that failed to lower.
	failCount int

	// The number of warnings reported.
	warnCount int

	// startTime is the time at which the reporter was initialized.
	startTime time.Time
}

// Enumeration of the different possible log levels.
const (
	LogLevelSilent  = iota // Displays no output.
	LogLevelError          // Displays only failures to the user.
	LogLevelWarn           // Displays only warnings and failures to the user.
	LogLevelVerbose        // Displays all messages to the user (default).
)

// rep is the global reporter instance.  It starts out silent so that library
// users which never initialize it get no output.
var rep = newReporter(LogLevelSilent)

func newReporter(logLevel int) *Reporter {
	return &Reporter{
		m:         &sync.Mutex{},
		logLevel:  logLevel,
		startTime: time.Now(),
	}
}

// InitReporter initializes the global reporter to the given log level.
func InitReporter(logLevel int) {
	rep = newReporter(logLevel)
}

// LogLevelFromName converts a log level name as accepted on the command line
// or in a profile into a log level.  Unknown names select verbose.
func LogLevelFromName(name string) int {
	switch name {
	case "silent":
		return LogLevelSilent
	case "error":
		return LogLevelError
	case "warn", "warning":
		return LogLevelWarn
	// everything else (including invalid log levels) defaults to verbose
	default:
		return LogLevelVerbose
	}
}
