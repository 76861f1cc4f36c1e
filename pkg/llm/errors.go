package llm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// ErrorType classifies provider failures.
type ErrorType string

const (
	ErrorTypeEndpoint ErrorType = "endpoint"
	ErrorTypeAuth     ErrorType = "auth"
	ErrorTypeModel    ErrorType = "model"
	ErrorTypeRate     ErrorType = "rate_limit"
	ErrorTypeUnknown  ErrorType = "unknown"
)

// ErrNotConfigured is returned when chat is requested without an LLM endpoint.
var ErrNotConfigured = errors.New("llm is not configured")

// ErrUnknownTool is returned by executors for tool names they do not serve.
var ErrUnknownTool = errors.New("unknown tool")

// Error is a classified provider error.
type Error struct {
	Type       ErrorType
	Message    string
	Retryable  bool
	StatusCode int
	Cause      error
}

func (e *Error) Error() string {
	msg := string(e.Type) + ": " + e.Message
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.StatusCode)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// ClassifyError maps a go-openai error, or a transport error, to an *Error.
func ClassifyError(err error) *Error {
	if err == nil {
		return nil
	}

	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.HTTPStatusCode, apiErr.Message, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return classifyStatus(reqErr.HTTPStatusCode, reqErr.Error(), err)
	}

	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "connection refused"), strings.Contains(lower, "no such host"):
		return &Error{Type: ErrorTypeEndpoint, Message: "connection failed", Retryable: true, Cause: err}
	case strings.Contains(lower, "deadline exceeded"), strings.Contains(lower, "timeout"):
		return &Error{Type: ErrorTypeEndpoint, Message: "request timeout", Retryable: true, Cause: err}
	default:
		return &Error{Type: ErrorTypeUnknown, Message: "llm error", Cause: err}
	}
}

func classifyStatus(status int, message string, cause error) *Error {
	e := &Error{StatusCode: status, Cause: cause}
	lower := strings.ToLower(message)
	switch {
	case status == 401 || status == 403:
		e.Type, e.Message = ErrorTypeAuth, "authentication failed"
	case status == 404 && strings.Contains(lower, "model"):
		e.Type, e.Message = ErrorTypeModel, "model not found"
	case status == 404:
		e.Type, e.Message = ErrorTypeEndpoint, "endpoint not found"
	case status == 429:
		e.Type, e.Message, e.Retryable = ErrorTypeRate, "rate limited", true
	case status >= 500:
		e.Type, e.Message, e.Retryable = ErrorTypeEndpoint, "server error", true
	default:
		e.Type, e.Message = ErrorTypeUnknown, "llm error"
	}
	return e
}

// IsRetryable reports whether err is a retryable provider error.
func IsRetryable(err error) bool {
	var llmErr *Error
	return errors.As(err, &llmErr) && llmErr.Retryable
}
