package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/pterm/pterm"
)

var (
	SuccessColorFG = pterm.FgLightGreen
	SuccessStyleBG = pterm.NewStyle(pterm.BgLightGreen, pterm.FgBlack)
	WarnColorFG    = pterm.FgYellow
	WarnStyleBG    = pterm.NewStyle(pterm.BgYellow, pterm.FgBlack)
	ErrorColorFG   = pterm.FgRed
	ErrorStyleBG   = pterm.NewStyle(pterm.BgRed, pterm.FgWhite)
	InfoColorFG    = SuccessColorFG
	InfoStyleBG    = SuccessStyleBG
)

const internalPostlude = `This is likely a bug in the lowering engine: the method was dropped.`

// displayFatal displays a fatal error message.
func displayFatal(message string) {
	fmt.Print("\n")
	ErrorStyleBG.Print("Fatal Error")
	ErrorColorFG.Println(" " + message)
}

// displayStdError displays a standard Go error.
func displayStdError(tag string, err error) {
	ErrorStyleBG.Print(tag)
	ErrorColorFG.Println(" " + err.Error())
}

func displayWarning(tag, message string) {
	WarnStyleBG.Print(tag)
	WarnColorFG.Println(" " + message)
}

func displayInfo(tag, message string) {
	InfoStyleBG.Print(tag)
	InfoColorFG.Println(" " + message)
}

// displayMethodFailure displays the banner and message for a dropped method.
func displayMethodFailure(method string, f *Failure) {
	fmt.Print("\n-- ")
	if f.Internal {
		ErrorStyleBG.Print("Internal Error")
	} else {
		ErrorStyleBG.Print("Unsupported")
	}

	fmt.Print(" ")

	bannerLen := pterm.GetTerminalWidth() / 2
	if bannerLen > 50 {
		bannerLen = 50
	}

	dashCount := bannerLen - len(method) - 16
	if dashCount < 2 {
		dashCount = 2
	}

	fmt.Print(strings.Repeat("-", dashCount) + " ")
	InfoColorFG.Println(method)
	fmt.Println(f.Message)

	if f.Internal {
		InfoColorFG.Println(internalPostlude)
		if rep.logLevel == LogLevelVerbose && f.Stack != "" {
			fmt.Println(f.Stack)
		}
	}
}

// -----------------------------------------------------------------------------

// displayHeader displays the tool information before the run starts.
func displayHeader(version, triple string) {
	fmt.Print("jitlower ")
	InfoColorFG.Print("v" + version)
	fmt.Print(" -- target: ")
	InfoColorFG.Println(triple)
}

// phaseSpinner stores the current phase spinner
var phaseSpinner *pterm.SpinnerPrinter
var currentPhase string
var phaseStartTime time.Time

const maxPhaseLength = len("Lowering")

// displayBeginPhase displays the beginning of a phase
func displayBeginPhase(phase string) {
	currentPhase = phase
	phaseText := phase + "..." + strings.Repeat(" ", maxPhaseLength-len(phase)+2)
	phaseSpinner = pterm.DefaultSpinner.WithStyle(pterm.NewStyle(InfoColorFG))

	phaseSpinner.SuccessPrinter = &pterm.PrefixPrinter{
		MessageStyle: pterm.NewStyle(pterm.FgDefault),
		Prefix: pterm.Prefix{
			Style: SuccessStyleBG,
			Text:  "Done",
		},
	}

	phaseSpinner.FailPrinter = &pterm.PrefixPrinter{
		MessageStyle: pterm.NewStyle(pterm.FgDefault),
		Prefix: pterm.Prefix{
			Style: ErrorStyleBG,
			Text:  "Fail",
		},
	}

	phaseSpinner.Start(phaseText)
	phaseStartTime = time.Now()
}

// displayEndPhase displays the end of a phase
func displayEndPhase(success bool) {
	if phaseSpinner != nil {
		if success {
			phaseSpinner.Success(
				currentPhase+strings.Repeat(" ", maxPhaseLength-len(currentPhase)+2),
				fmt.Sprintf("(%.3fs)", time.Since(phaseStartTime).Seconds()),
			)
		} else {
			phaseSpinner.Fail(currentPhase + strings.Repeat(" ", maxPhaseLength-len(currentPhase)+2))
		}

		phaseSpinner = nil
	}
}

func displayMethodLowered(method string, nblocks, nrelocs int) {
	fmt.Print("  lowered ")
	InfoColorFG.Print(method)
	fmt.Printf(" (%d blocks, %d relocations)\n", nblocks, nrelocs)
}

// displayFinished displays the closing message of the run
func displayFinished(outputPath string, lowered, failCount, warnCount int, start time.Time) {
	fmt.Print("\n")

	if failCount == 0 {
		SuccessColorFG.Print("All done! ")
	} else {
		ErrorColorFG.Print("Oh no! ")
	}

	fmt.Print("(")
	SuccessColorFG.Print(lowered)
	fmt.Print(" lowered, ")

	switch failCount {
	case 0:
		SuccessColorFG.Print(0)
		fmt.Print(" failed, ")
	default:
		ErrorColorFG.Print(failCount)
		fmt.Print(" failed, ")
	}

	switch warnCount {
	case 0:
		SuccessColorFG.Print(0)
		fmt.Print(" warnings")
	case 1:
		WarnColorFG.Print(1)
		fmt.Print(" warning")
	default:
		WarnColorFG.Print(warnCount)
		fmt.Print(" warnings")
	}

	fmt.Printf(") in %.3fs\n", time.Since(start).Seconds())

	if outputPath != "" {
		fmt.Print("output written to ")
		InfoColorFG.Println(outputPath)
	}
}
