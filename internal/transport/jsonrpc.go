package transport

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// JSON-RPC 2.0 error codes.
const (
	ErrParseCode      = -32700
	ErrInvalidReq     = -32600
	ErrMethodNotFound = -32601
	ErrInvalidParams  = -32602
	ErrInternal       = -32603
)

// Application error codes, carried in the server error range.
const (
	ErrNotFoundCode         = -32001
	ErrConflictCode         = -32002
	ErrInvalidInputCode     = -32003
	ErrBusyCode             = -32004
	ErrPermissionDeniedCode = -32005
)

// MaxMessageSize bounds a single newline-delimited message.
const MaxMessageSize = 16 << 20

// Request represents a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      any             `json:"id,omitempty"`
}

// Response represents a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	ID      any             `json:"id,omitempty"`
}

// Error represents a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
}

// Unwrap exposes the local sentinel matching the error code, so callers can
// use errors.Is on daemon errors the same way they do on storage errors.
func (e *Error) Unwrap() error {
	return sentinelFor(e.Code)
}

// ErrMessageTooLarge is returned when a line exceeds MaxMessageSize.
var ErrMessageTooLarge = errors.New("message too large")

// ReadLine reads one newline-terminated message.
func ReadLine(r *bufio.Reader) ([]byte, error) {
	var buf []byte
	for {
		chunk, isPrefix, err := r.ReadLine()
		if err != nil {
			if err == io.EOF && len(buf) > 0 {
				return buf, nil
			}
			return nil, err
		}
		buf = append(buf, chunk...)
		if len(buf) > MaxMessageSize {
			return nil, ErrMessageTooLarge
		}
		if !isPrefix {
			return buf, nil
		}
	}
}

// ParseRequest parses and validates a JSON-RPC request payload.
func ParseRequest(line []byte) (Request, error) {
	var req Request
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		return Request{}, fmt.Errorf("parse error: %w", err)
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		return Request{}, fmt.Errorf("invalid request")
	}
	return req, nil
}

// NewResult builds a JSON-RPC success response.
func NewResult(id any, result any) (Response, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return Response{}, fmt.Errorf("encode result: %w", err)
	}
	return Response{
		JSONRPC: "2.0",
		Result:  raw,
		ID:      id,
	}, nil
}

// NewError builds a JSON-RPC error response.
func NewError(id any, code int, message string, data any) Response {
	return Response{
		JSONRPC: "2.0",
		Error: &Error{
			Code:    code,
			Message: message,
			Data:    data,
		},
		ID: id,
	}
}

// WriteMessage writes v as a single JSON line.
func WriteMessage(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}
