package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

const (
	ColorReset  = "\033[0m"
	ColorBold   = "\033[1m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorPurple = "\033[35m"
	ColorCyan   = "\033[36m"
	ColorWhite  = "\033[37m"
)

// stdout is where command reports go; tests swap it for a buffer
var stdout io.Writer = os.Stdout

// colorize drops escape codes when stdout is not a terminal
func colorize(code string) string {
	f, ok := stdout.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return ""
	}
	return code
}

func printHeader(title, subject string) {
	fmt.Fprintf(stdout, "%s%s%s%s: %s%s%s\n", colorize(ColorBold), colorize(ColorBlue), title, colorize(ColorReset),
		colorize(ColorCyan), subject, colorize(ColorReset))
	fmt.Fprintf(stdout, "%s%s%s\n\n", colorize(ColorBlue), strings.Repeat("═", 80), colorize(ColorReset))
}

func printSection(title string) {
	fmt.Fprintf(stdout, "\n%s%s%s%s\n", colorize(ColorBold), colorize(ColorBlue), title, colorize(ColorReset))
}

func printSuccess(format string, args ...any) {
	fmt.Fprintf(stdout, "   %s✓%s %s\n", colorize(ColorGreen), colorize(ColorReset), fmt.Sprintf(format, args...))
}

func printWarning(format string, args ...any) {
	fmt.Fprintf(stdout, "   %s⚠%s %s\n", colorize(ColorYellow), colorize(ColorReset), fmt.Sprintf(format, args...))
}

func printError(format string, args ...any) {
	fmt.Fprintf(stdout, "   %s✗%s %s\n", colorize(ColorRed), colorize(ColorReset), fmt.Sprintf(format, args...))
}

func printInfo(format string, args ...any) {
	fmt.Fprintf(stdout, "   %s•%s %s\n", colorize(ColorCyan), colorize(ColorReset), fmt.Sprintf(format, args...))
}

func printKeyValue(key, value string) {
	if value == "" {
		fmt.Fprintf(stdout, "   %-28s\n", key)
	} else {
		fmt.Fprintf(stdout, "   %-28s %s\n", key+":", value)
	}
}
