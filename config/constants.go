package config

import "github.com/brettbedarf/treefs/internal/util"

// CLI verbosity values accepted by ConfigOverride.LogLvl. They run the
// opposite way of util.LogLevel: a higher verbosity logs more.
const (
	ErrorVerbose = iota + 1
	WarnVerbose
	InfoVerbose
	DebugVerbose
	TraceVerbose
)

var verboseLevels = [...]util.LogLevel{
	util.ErrorLevel,
	util.WarnLevel,
	util.InfoLevel,
	util.DebugLevel,
	util.TraceLevel,
}

// VerbosityToLogLevel clamps v to [ErrorVerbose, TraceVerbose] and returns
// the matching internal log level.
func VerbosityToLogLevel(v int) util.LogLevel {
	v = max(ErrorVerbose, min(v, TraceVerbose))
	return verboseLevels[v-1]
}
