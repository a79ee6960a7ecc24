package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	apperrors "finance-alignment-engine/pkg/errors"
	"finance-alignment-engine/pkg/logger"
)

// CLIErrorHandler turns engine errors into user-facing messages and exit
// codes.
type CLIErrorHandler struct {
	logger  logger.Logger
	verbose bool
}

// NewCLIErrorHandler creates a new CLI error handler
func NewCLIErrorHandler() *CLIErrorHandler {
	return &CLIErrorHandler{
		logger:  logger.GetGlobalLogger().WithComponent("cli"),
		verbose: viper.GetBool("verbose"),
	}
}

// HandleError prints a user-friendly message for err and returns the process
// exit code.
func (h *CLIErrorHandler) HandleError(err error) int {
	if err == nil {
		return 0
	}

	h.logger.WithError(err).Error("Command failed")

	if engineErr, ok := apperrors.AsEngineError(err); ok {
		return h.handleEngineError(engineErr)
	}
	return h.handleGenericError(err)
}

func (h *CLIErrorHandler) handleEngineError(err *apperrors.EngineError) int {
	fmt.Fprintf(os.Stderr, "Error: %s\n", err.Message)

	if len(err.Context) > 0 {
		fmt.Fprintf(os.Stderr, "\nContext:\n")
		for key, value := range err.Context {
			fmt.Fprintf(os.Stderr, "  %s: %v\n", key, value)
		}
	}

	if err.Suggestion != "" {
		fmt.Fprintf(os.Stderr, "\nSuggestion: %s\n", err.Suggestion)
	}

	fmt.Fprintf(os.Stderr, "\n%s\n", categoryHelp(err.Category))

	if h.verbose && err.Cause != nil {
		fmt.Fprintf(os.Stderr, "\nUnderlying error: %v\n", err.Cause)
	}

	return err.GetExitCode()
}

func (h *CLIErrorHandler) handleGenericError(err error) int {
	if os.IsNotExist(err) || strings.Contains(err.Error(), "no such file or directory") {
		fmt.Fprintf(os.Stderr, "Error: File not found\n")
		fmt.Fprintf(os.Stderr, "Suggestion: Check if the file path is correct and the file exists\n")
		return 2
	}

	if os.IsPermission(err) || strings.Contains(err.Error(), "permission denied") {
		fmt.Fprintf(os.Stderr, "Error: Permission denied\n")
		fmt.Fprintf(os.Stderr, "Suggestion: Check file permissions and ensure you have read access\n")
		return 2
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	if h.verbose {
		fmt.Fprintf(os.Stderr, "\nFor more details, check the logs or run with --verbose flag\n")
	}
	return 1
}

// categoryHelp returns category-specific help text
func categoryHelp(category apperrors.ErrorCategory) string {
	switch category {
	case apperrors.CategoryValidation:
		return `Validation error help:
• Check that all required flags have values (--owner is always required)
• Verify seed files contain well-formed JSON
• Ensure amounts are numbers and identifiers are non-empty strings`

	case apperrors.CategoryConfiguration:
		return `Configuration error help:
• Check your command-line flags and arguments
• Verify configuration file syntax if using --config
• Use 'analytics run --help' to see all available options
• Try running with default settings first`

	case apperrors.CategoryStore:
		return `Store error help:
• Check that the database path is writable
• Verify the database file is not locked by another process
• Remove the database file to start from a clean state if it is corrupt`

	case apperrors.CategoryProcessing:
		return `Processing error help:
• Check data quality in the stored collections
• Re-seed the owner's collections from known-good files
• Run with --verbose for per-record diagnostics`

	default:
		return `For more help:
• Use 'analytics --help' for general help
• Use 'analytics run --help' for command-specific help
• Report bugs or ask for help on the project repository`
	}
}
