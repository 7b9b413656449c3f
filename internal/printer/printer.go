package printer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/dyluth/sagastore/pkg/saga"
	"github.com/fatih/color"
	"github.com/google/uuid"
)

func init() {
	// Force color output even when not connected to TTY
	// Users can disable with NO_COLOR environment variable
	if os.Getenv("NO_COLOR") == "" {
		color.NoColor = false
	}
}

var (
	// Color definitions
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)

	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// SetOutput redirects all printer output. Used by tests.
func SetOutput(out, errOut io.Writer) {
	stdout = out
	stderr = errOut
}

// Success prints a success message in green with a checkmark prefix
func Success(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "✓") {
		green.Fprintf(stdout, "✓ %s", msg)
	} else {
		green.Fprint(stdout, msg)
	}
}

// Info prints an informational message in the default color
func Info(format string, a ...any) {
	fmt.Fprintf(stdout, format, a...)
}

// Warning prints a warning message in yellow with a warning emoji prefix
func Warning(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "⚠️") {
		yellow.Fprintf(stdout, "⚠️  %s", msg)
	} else {
		yellow.Fprint(stdout, msg)
	}
}

// Step prints a step message with emphasis (used in multi-step operations)
func Step(format string, a ...any) {
	cyan.Fprintf(stdout, "→ %s", fmt.Sprintf(format, a...))
}

// Error creates a formatted error message with title, explanation, and suggestions
// Prints the formatted error to stderr with colors and returns a simple error for Cobra
func Error(title string, explanation string, suggestions []string) error {
	return ErrorWithContext(title, explanation, nil, suggestions)
}

// ErrorWithContext creates a formatted error with context details
// Prints the formatted error to stderr with colors and returns a simple error for Cobra
func ErrorWithContext(title string, explanation string, context map[string]string, suggestions []string) error {
	red.Fprintf(stderr, "%s\n\n", title)

	if explanation != "" {
		fmt.Fprintf(stderr, "%s\n", explanation)
	}

	// Context details, in key order
	if len(context) > 0 {
		keys := make([]string, 0, len(context))
		for key := range context {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		fmt.Fprintf(stderr, "\n")
		for _, key := range keys {
			fmt.Fprintf(stderr, "  %s: %s\n", key, context[key])
		}
	}

	if len(suggestions) > 0 {
		fmt.Fprintf(stderr, "\n")
		if len(suggestions) == 1 {
			fmt.Fprintf(stderr, "%s\n", suggestions[0])
		} else {
			fmt.Fprintf(stderr, "Either:\n")
			for i, suggestion := range suggestions {
				fmt.Fprintf(stderr, "  %d. %s\n", i+1, suggestion)
			}
		}
	}

	// Return simple error for Cobra (won't be printed due to SilenceErrors)
	return fmt.Errorf("%s", title)
}

// DispatchError renders a failed saga dispatch. Errors that are not
// *saga.Error are printed with a generic title.
func DispatchError(err error) error {
	var se *saga.Error
	if !errors.As(err, &se) {
		return Error("Dispatch failed", err.Error(), nil)
	}

	context := map[string]string{
		"Saga":    se.InstanceType,
		"Message": se.MessageType,
	}
	if se.CorrelationID != uuid.Nil {
		context["Correlation ID"] = se.CorrelationID.String()
	}

	explanation := se.Kind.Error()
	if se.Cause != nil {
		explanation = fmt.Sprintf("%s: %v", explanation, se.Cause)
	}

	var suggestions []string
	switch {
	case errors.Is(se.Kind, saga.ErrConcurrencyConflict):
		suggestions = []string{"Another consumer updated this saga first. Redeliver the message to retry against the latest state."}
	case errors.Is(se.Kind, saga.ErrCorrelationMissing):
		suggestions = []string{"Messages must carry a non-nil correlation ID."}
	case errors.Is(se.Kind, saga.ErrUnsupportedOperation):
		suggestions = []string{"Dispatch by correlation ID instead of by query."}
	}

	return ErrorWithContext("Saga dispatch failed", explanation, context, suggestions)
}
