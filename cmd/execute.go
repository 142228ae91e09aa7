package cmd

import (
	"fmt"
	"os"

	"jitlower/common"
	"jitlower/config"
	"jitlower/mir"
	"jitlower/report"

	"github.com/ComedicChimera/olive"
)

// Execute is the main entry point for the `jitlower` CLI utility
func Execute() {
	// set up the argument parser and all its extended commands and arguments
	cli := olive.NewCLI("jitlower", "jitlower lowers SSA method bodies to LLVM IR", true)
	cli.AddSelectorArg("loglevel", "ll", "the log level", false, []string{"silent", "error", "warn", "verbose"})

	lowerCmd := cli.AddSubcommand("lower", "lower a unit of methods", true)
	lowerCmd.AddPrimaryArg("unit-path", "the path to the unit to lower", true)
	lowerCmd.AddStringArg("profile", "p", "the path to the lowering profile", false)
	lowerCmd.AddStringArg("output", "o", "the path to write the module to", false)
	lowerCmd.AddFlag("debug", "g", "indicates whether debug info should be emitted")

	dumpCmd := cli.AddSubcommand("dump", "print the methods of a unit", true)
	dumpCmd.AddPrimaryArg("unit-path", "the path to the unit to print", true)

	cli.AddSubcommand("version", "print the jitlower version", false)

	// run the argument parser
	result, err := olive.ParseArgs(cli, os.Args)
	if err != nil {
		report.InitReporter(report.LogLevelError)
		report.ReportFatal(err.Error())
	}

	logLevel := ""
	if ll, ok := result.Arguments["loglevel"]; ok {
		logLevel = ll.(string)
	}

	// process the inputed command line
	subcmdName, subResult, _ := result.Subcommand()
	switch subcmdName {
	case "lower":
		execLowerCommand(subResult, logLevel)
	case "dump":
		execDumpCommand(subResult)
	case "version":
		report.DisplayInfoMessage("jitlower Version", common.Version)
	}
}

// execLowerCommand executes the lower subcommand and handles all errors
func execLowerCommand(result *olive.ArgParseResult, logLevel string) {
	unitPath, _ := result.PrimaryArg()

	prof, err := loadProfile(result)
	if err != nil {
		report.InitReporter(report.LogLevelError)
		report.ReportFatal("failed to load profile: %s", err)
	}

	// command line settings override the profile
	if logLevel != "" {
		prof.LogLevel = logLevel
	}

	if output, ok := result.Arguments["output"]; ok {
		prof.OutputPath = output.(string)
	}

	if result.HasFlag("debug") {
		prof.Debug = true
	}

	report.InitReporter(report.LogLevelFromName(prof.LogLevel))
	report.ReportHeader(common.Version, prof.Triple)

	d := NewDriver(unitPath, prof)

	report.ReportBeginPhase("Loading")
	if !d.Load() {
		report.ReportEndPhase(false)
		os.Exit(1)
	}
	report.ReportEndPhase(true)

	report.ReportBeginPhase("Lowering")
	d.Lower()
	report.ReportEndPhase(report.FailureCount() == 0)

	report.ReportBeginPhase("Emitting")
	if err := d.Emit(); err != nil {
		report.ReportFatal(err.Error())
	}
	report.ReportEndPhase(true)

	report.ReportFinished(d.outputPath(), d.Lowered())

	if report.FailureCount() > 0 {
		os.Exit(1)
	}
}

// loadProfile loads the profile named on the command line.  If none is named,
// the profile in the working directory is used if there is one and the
// default profile otherwise.
func loadProfile(result *olive.ArgParseResult) (*config.Profile, error) {
	if path, ok := result.Arguments["profile"]; ok {
		return config.Load(path.(string))
	}

	if _, err := os.Stat(common.ProfileFileName); err == nil {
		return config.Load(common.ProfileFileName)
	}

	return config.Default(), nil
}

// execDumpCommand executes the dump subcommand: it prints the methods of the
// unit in the textual form used by failure reports.
func execDumpCommand(result *olive.ArgParseResult) {
	unitPath, _ := result.PrimaryArg()

	unit, err := mir.Load(unitPath)
	if err != nil {
		report.InitReporter(report.LogLevelError)
		report.ReportFatal("failed to load unit: %s", err)
	}

	if len(unit.Layouts) > 0 {
		fmt.Println(mir.LayoutsRepr(unit.Layouts))
	}

	for _, m := range unit.Methods {
		fmt.Println(m.Repr())
	}
}
