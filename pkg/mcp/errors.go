package mcp

import (
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hodlisma/hodlisma-engine/pkg/apperrors"
	"github.com/hodlisma/hodlisma-engine/pkg/llm"
)

// ErrorResponse represents a structured error in tool results.
// Actionable errors are returned as successful tool results so the client
// model sees the details instead of a bare protocol failure.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewErrorResult creates a tool result containing a structured error.
// Do NOT use this for system failures; those should still return Go errors.
func NewErrorResult(code, message string) *mcp.CallToolResult {
	jsonBytes, _ := json.Marshal(ErrorResponse{
		Error:   true,
		Code:    code,
		Message: message,
	})
	result := mcp.NewToolResultText(string(jsonBytes))
	result.IsError = true
	return result
}

// errorCode maps err to a result code. The bool is false for failures the
// caller cannot fix by changing its arguments.
func errorCode(err error) (string, bool) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return "not_found", true
	case errors.Is(err, apperrors.ErrInvalidInput):
		return "invalid_input", true
	case errors.Is(err, apperrors.ErrConflict):
		return "conflict", true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return "unique_violation", true
		case "23503":
			return "foreign_key_violation", true
		case "23514":
			return "check_violation", true
		}
	}

	if errors.Is(err, llm.ErrUnknownTool) {
		return "unknown_tool", true
	}
	return "internal", false
}
