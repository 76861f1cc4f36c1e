package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hodlisma/hodlisma-engine/pkg/logging"
)

// maxLoggedArgLength bounds string arguments (notes, names) in MCP logs.
const maxLoggedArgLength = 120

// MCPRequestLogger logs agent tool calls arriving over MCP: the tool, its
// arguments and whether the call failed. JSON-RPC reports failures either as
// a protocol error or as a tool result flagged isError; both are logged.
// Pass nil logger to disable logging.
func MCPRequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if logger == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(r.Body)
			if err != nil {
				logger.Error("Failed to read MCP request body", zap.Error(err))
				http.Error(w, "failed to read request body", http.StatusBadRequest)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			var req rpcRequest
			_ = json.Unmarshal(body, &req)

			if req.Method != "tools/call" {
				next.ServeHTTP(w, r)
				return
			}

			tool := req.Params.Name
			logger.Info("MCP tool call",
				zap.String("tool", tool),
				zap.Any("arguments", truncateArguments(req.Params.Arguments)))

			recorder := &bodyRecorder{ResponseWriter: w}
			start := time.Now()
			next.ServeHTTP(recorder, r)
			duration := time.Since(start)

			var resp rpcResponse
			if err := json.Unmarshal(recorder.body.Bytes(), &resp); err != nil {
				// Streamed (SSE) responses are not JSON bodies.
				logger.Debug("MCP tool call finished", zap.String("tool", tool), zap.Duration("duration", duration))
				return
			}

			switch {
			case resp.Error != nil:
				logger.Warn("MCP tool call failed",
					zap.String("tool", tool),
					zap.Int("error_code", resp.Error.Code),
					zap.String("error_message", logging.SanitizeError(errString(resp.Error.Message))),
					zap.Duration("duration", duration))
			case resp.Result.IsError:
				logger.Warn("MCP tool returned error",
					zap.String("tool", tool),
					zap.Duration("duration", duration))
			default:
				logger.Debug("MCP tool call succeeded",
					zap.String("tool", tool),
					zap.Duration("duration", duration))
			}
		})
	}
}

type rpcRequest struct {
	Method string `json:"method"`
	Params struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"params"`
}

type rpcResponse struct {
	Result struct {
		IsError bool `json:"isError"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type errString string

func (e errString) Error() string { return string(e) }

// bodyRecorder tees the response body so the logger can inspect it.
type bodyRecorder struct {
	http.ResponseWriter
	body bytes.Buffer
}

func (r *bodyRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *bodyRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func truncateArguments(args map[string]any) map[string]any {
	if args == nil {
		return nil
	}
	out := make(map[string]any, len(args))
	for k, v := range args {
		if s, ok := v.(string); ok {
			out[k] = logging.TruncateString(s, maxLoggedArgLength)
			continue
		}
		out[k] = v
	}
	return out
}
