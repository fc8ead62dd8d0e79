// Package errors provides structured error handling for the whatsnew CLI.
// It includes categorized errors with actionable remediation guidance.
package errors

import "fmt"

// Category represents the type of error that occurred.
type Category int

const (
	// Input errors are caused by conflicting or malformed range options
	// or other invalid command arguments.
	Input Category = iota
	// Environment errors occur when the repository is unreadable or a
	// required dependency is absent.
	Environment
	// External errors come from best-effort remote calls (GitHub API).
	// They are recovered locally and never abort a run.
	External
	// Provider errors come from the summarization backend after retries
	// are exhausted.
	Provider
)

// String returns a human-readable name for the error category.
func (c Category) String() string {
	switch c {
	case Input:
		return "Input Error"
	case Environment:
		return "Environment Error"
	case External:
		return "External Error"
	case Provider:
		return "Provider Error"
	default:
		return "Error"
	}
}

// CLIError is a structured error with category and remediation guidance.
type CLIError struct {
	// Category is the type of error (Input, Environment, etc.)
	Category Category
	// Message is a human-readable description of what went wrong.
	Message string
	// Remediation is a list of actionable steps to resolve the error.
	Remediation []string
	// Usage shows the correct command syntax (optional, for input errors).
	Usage string
}

// Error implements the error interface.
func (e *CLIError) Error() string {
	return e.Message
}

// NewInputError creates a new input error with the given message and remediation steps.
func NewInputError(message string, remediation ...string) *CLIError {
	return &CLIError{
		Category:    Input,
		Message:     message,
		Remediation: remediation,
	}
}

// NewInputErrorWithUsage creates a new input error that includes correct usage syntax.
func NewInputErrorWithUsage(message, usage string, remediation ...string) *CLIError {
	return &CLIError{
		Category:    Input,
		Message:     message,
		Usage:       usage,
		Remediation: remediation,
	}
}

// NewEnvironmentError creates a new environment error.
func NewEnvironmentError(message string, remediation ...string) *CLIError {
	return &CLIError{
		Category:    Environment,
		Message:     message,
		Remediation: remediation,
	}
}

// NewProviderError creates a new provider error.
func NewProviderError(message string, remediation ...string) *CLIError {
	return &CLIError{
		Category:    Provider,
		Message:     message,
		Remediation: remediation,
	}
}

// Wrap wraps an existing error with a CLIError, preserving the original message.
func Wrap(err error, category Category, remediation ...string) *CLIError {
	if err == nil {
		return nil
	}
	return &CLIError{
		Category:    category,
		Message:     err.Error(),
		Remediation: remediation,
	}
}

// WrapWithMessage wraps an error with a custom message and category.
func WrapWithMessage(err error, category Category, message string, remediation ...string) *CLIError {
	if err == nil {
		return nil
	}
	return &CLIError{
		Category:    category,
		Message:     fmt.Sprintf("%s: %v", message, err),
		Remediation: remediation,
	}
}

// AsCLIError attempts to convert an error to a CLIError.
// Returns nil if the error is not a CLIError.
func AsCLIError(err error) *CLIError {
	cliErr, ok := err.(*CLIError)
	if ok {
		return cliErr
	}
	return nil
}
