package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/matsen/metakg/internal/config"
	"github.com/matsen/metakg/internal/metakg"
	"github.com/matsen/metakg/internal/scenario"
	"github.com/matsen/metakg/internal/simulate"
	"github.com/matsen/metakg/internal/storage"
)

// DetailNameMaxLen bounds names in human tables.
const DetailNameMaxLen = 50

// outputJSON writes a value as formatted JSON to stdout.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputHuman writes a human-readable string to stdout.
func outputHuman(format string, args ...interface{}) {
	fmt.Printf(format, args...)
}

// exitWithError outputs an error in the appropriate format (human or JSON) and exits.
func exitWithError(code int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if humanOutput {
		fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	} else {
		outputJSON(ErrorResponse{Error: msg})
	}
	os.Exit(code)
}

// exitWithErr exits with the code matching err.
func exitWithErr(err error, context string) {
	exitWithError(exitCodeFor(err), "%s: %v", context, err)
}

// exitCodeFor maps an error to the CLI exit code.
func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, config.ErrNotRepository),
		errors.Is(err, simulate.ErrInvalidConfig),
		errors.Is(err, scenario.ErrUnsupportedFormat):
		return ExitConfigError
	case errors.Is(err, storage.ErrValidation):
		return ExitDataError
	case errors.Is(err, metakg.ErrNotFound):
		return ExitNotFound
	default:
		return ExitError
	}
}

// StatusResponse is a generic response for commands that return status.
type StatusResponse struct {
	Status string `json:"status"`
	Path   string `json:"path,omitempty"`
}

// ErrorResponse is a JSON error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// truncateString truncates a string to maxLen, adding "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// orDash returns s, or "-" when empty.
func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
