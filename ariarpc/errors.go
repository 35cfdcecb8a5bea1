package ariarpc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/rpc"
	"net/url"
	"strings"

	"github.com/powerman/rpc-codec/jsonrpc2"
)

// Standard JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

var codeDescriptions = map[int]string{
	CodeParseError:     "Invalid JSON was received by the server.",
	CodeInvalidRequest: "The JSON sent is not a valid Request object.",
	CodeMethodNotFound: "The method does not exist / is not available.",
	CodeInvalidParams:  "Invalid method parameter(s).",
	CodeInternalError:  "Internal JSON-RPC error.",
}

// TransportError is returned when the daemon could not be reached or did not answer in time.
// Calls failing with this error may be retried.
type TransportError struct {
	Method string
	Err    error
}

func (e *TransportError) Error() string {
	return "transport error calling " + e.Method + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// Temporary is always true for transport errors.
func (e *TransportError) Temporary() bool { return true }

// ProtocolError is returned when the daemon answered with a body that could not be decoded.
type ProtocolError struct {
	Method string
	Err    error
}

func (e *ProtocolError) Error() string {
	return "protocol error calling " + e.Method + ": " + e.Err.Error()
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// RemoteError is a well-formed error object returned by the daemon, e.g. for an unknown GID.
type RemoteError struct {
	Method  string
	Code    int
	Message string
}

func (e *RemoteError) Error() string {
	msg := e.Message
	if desc, ok := codeDescriptions[e.Code]; ok {
		msg = desc + " " + msg
	}
	if e.Method == "" {
		return msg
	}
	return e.Method + ": " + msg
}

// MethodError is returned by the resolver when a name matches no canonical method or more than one.
type MethodError struct {
	Name       string
	Candidates []string
}

func (e *MethodError) Error() string {
	if len(e.Candidates) == 0 {
		return "unknown method: " + e.Name
	}
	return "ambiguous method " + e.Name + ": matches " + strings.Join(e.Candidates, ", ")
}

// IsTransport reports whether err is a TransportError.
func IsTransport(err error) bool {
	var e *TransportError
	return errors.As(err, &e)
}

// IsProtocol reports whether err is a ProtocolError.
func IsProtocol(err error) bool {
	var e *ProtocolError
	return errors.As(err, &e)
}

// IsRemote reports whether err is a RemoteError.
func IsRemote(err error) bool {
	var e *RemoteError
	return errors.As(err, &e)
}

// classify converts an error coming out of net/rpc and the jsonrpc2 codec into one of the typed errors above.
func classify(method string, err error) error {
	if err == nil {
		return nil
	}
	var se rpc.ServerError
	if errors.As(err, &se) {
		re := jsonrpc2.ServerError(err)
		if re.Code == CodeInternalError && isRoundTripFailure(re.Message) {
			return &TransportError{Method: method, Err: errors.New(re.Message)}
		}
		return &RemoteError{Method: method, Code: re.Code, Message: re.Message}
	}
	var ne net.Error
	var ue *url.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled),
		errors.Is(err, rpc.ErrShutdown),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.EOF),
		errors.As(err, &ne),
		errors.As(err, &ue):
		return &TransportError{Method: method, Err: err}
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return &ProtocolError{Method: method, Err: err}
	}
	if strings.HasPrefix(err.Error(), "bad HTTP Status") {
		return &TransportError{Method: method, Err: err}
	}
	return &ProtocolError{Method: method, Err: err}
}

// isRoundTripFailure reports whether msg was produced on the client side of the HTTP exchange
// rather than by the daemon.
func isRoundTripFailure(msg string) bool {
	return strings.HasPrefix(msg, unreachable) ||
		strings.HasPrefix(msg, "bad HTTP Status") ||
		strings.HasPrefix(msg, "bad HTTP Content-Type")
}
