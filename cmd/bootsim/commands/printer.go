package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)

	// out receives command results; logs go to stderr
	out io.Writer = os.Stdout
)

func printSuccess(format string, a ...any) {
	green.Fprintf(out, "✓ "+format+"\n", a...)
}

func printWarning(format string, a ...any) {
	yellow.Fprintf(out, "! "+format+"\n", a...)
}

func printFailure(format string, a ...any) {
	red.Fprintf(out, "✗ "+format+"\n", a...)
}

func printField(name string, format string, a ...any) {
	cyan.Fprintf(out, "  %-16s", name+":")
	fmt.Fprintf(out, format+"\n", a...)
}

func printError(err error) {
	red.Fprintf(os.Stderr, "Error: %v\n", err)
}
