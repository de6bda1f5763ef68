package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// maxLoggedPayload caps a logged payload; session listings can be large.
const maxLoggedPayload = 2048

// trafficLogger writes MCP messages flowing in one direction to the debug log.
type trafficLogger struct {
	logger    *slog.Logger
	direction string
}

func (tl trafficLogger) middleware(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
	return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
		if !tl.logger.Enabled(ctx, slog.LevelDebug) {
			return next(ctx, method, req)
		}

		start := time.Now()
		log := tl.logger.With(
			"direction", tl.direction,
			"method", method,
			"session_id", sessionIDOf(req),
		)
		log.Debug("mcp request", "params", payload{paramsOf(req)})

		result, err := next(ctx, method, req)
		switch {
		case strings.HasPrefix(method, "notifications/"):
			// notifications have no reply
		case err != nil:
			log.Debug("mcp error", "error", err, "duration", time.Since(start))
		default:
			log.Debug("mcp response", "result", payload{result}, "duration", time.Since(start))
		}
		return result, err
	}
}

// sessionIDOf tolerates requests whose session is not yet established.
func sessionIDOf(req sdkmcp.Request) (id string) {
	defer func() {
		if recover() != nil {
			id = ""
		}
	}()
	if req == nil {
		return ""
	}
	if session := req.GetSession(); session != nil {
		return session.ID()
	}
	return ""
}

func paramsOf(req sdkmcp.Request) (params any) {
	defer func() {
		if recover() != nil {
			params = nil
		}
	}()
	if req == nil {
		return nil
	}
	return req.GetParams()
}

// payload renders a message body as JSON only when the record is handled.
type payload struct {
	v any
}

func (p payload) LogValue() slog.Value {
	return slog.StringValue(formatPayload(p.v))
}

func formatPayload(v any) string {
	if v == nil {
		return "<nil>"
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%T", v)
	}
	if len(data) > maxLoggedPayload {
		return fmt.Sprintf("%s...(%d bytes)", data[:maxLoggedPayload], len(data))
	}
	return string(data)
}
