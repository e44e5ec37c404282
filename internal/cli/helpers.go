package cli

import (
	"fmt"
	"io"
	"os"
)

// Global flags (will be set from cmd package)
var (
	quiet   bool
	noColor bool

	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

type level struct {
	symbol string
	prefix string
	// chatty levels go to stdout and are silenced by --quiet.
	chatty bool
}

var (
	levelSuccess = level{symbol: "✓", prefix: "OK:", chatty: true}
	levelInfo    = level{symbol: "ℹ", prefix: "INFO:", chatty: true}
	levelWarning = level{symbol: "⚠", prefix: "WARNING:"}
	levelError   = level{symbol: "✗", prefix: "ERROR:"}
)

func emit(l level, format string, args []any) {
	w := stderr
	if l.chatty {
		if quiet {
			return
		}
		w = stdout
	}
	mark := l.symbol
	if noColor {
		mark = l.prefix
	}
	fmt.Fprintf(w, "%s %s\n", mark, fmt.Sprintf(format, args...))
}

// PrintSuccess prints a success message unless quiet mode is enabled
func PrintSuccess(format string, args ...any) { emit(levelSuccess, format, args) }

// PrintInfo prints an info message unless quiet mode is enabled
func PrintInfo(format string, args ...any) { emit(levelInfo, format, args) }

// PrintWarning prints a warning message to stderr
func PrintWarning(format string, args ...any) { emit(levelWarning, format, args) }

// PrintError prints an error message to stderr
func PrintError(format string, args ...any) { emit(levelError, format, args) }

// SetGlobalFlags sets the global flag values from the cmd package
func SetGlobalFlags(q, nc bool) {
	quiet = q
	noColor = nc
}

// SetOutput redirects the Print helpers. Nil writers restore the defaults.
func SetOutput(out, errOut io.Writer) {
	stdout, stderr = os.Stdout, os.Stderr
	if out != nil {
		stdout = out
	}
	if errOut != nil {
		stderr = errOut
	}
}
