package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies adapter failures
type Kind int

const (
	// KindNetwork means the request never reached the server or no response arrived
	KindNetwork Kind = iota + 1
	// KindServer means the server answered with a non-2xx status
	KindServer
	// KindDecode means a 2xx body could not be parsed as JSON
	KindDecode
	// KindCanceled means the caller canceled the request context
	KindCanceled
	// KindRequest means the request could not be built (bad path, unserializable body)
	KindRequest
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindServer:
		return "server"
	case KindDecode:
		return "decode"
	case KindCanceled:
		return "canceled"
	case KindRequest:
		return "request"
	default:
		return "unknown"
	}
}

// Messages surfaced to the UI for failures without a server message
const (
	MessageNetwork  = "failed to connect to server"
	MessageCanceled = "request canceled"
)

// Error is returned by every Client call that fails
type Error struct {
	Kind    Kind
	Status  int
	Code    string
	Message string
	Method  string
	Path    string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// AsError extracts an *Error from err
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsNotFound reports whether err is a 404 from the server
func IsNotFound(err error) bool {
	apiErr, ok := AsError(err)
	return ok && apiErr.Kind == KindServer && apiErr.Status == http.StatusNotFound
}

// IsCanceled reports whether err came from a canceled request context
func IsCanceled(err error) bool {
	apiErr, ok := AsError(err)
	return ok && apiErr.Kind == KindCanceled
}

// Message returns the user-facing message for any error
func Message(err error) string {
	if err == nil {
		return ""
	}
	if apiErr, ok := AsError(err); ok && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}

// errorBody is the error shape of the backend; either field may carry the message
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

// serverError builds the error for a non-2xx response, preferring the
// server-provided message over a generic status-based one
func serverError(method, path string, status int, body []byte) *Error {
	apiErr := &Error{
		Kind:   KindServer,
		Status: status,
		Method: method,
		Path:   path,
	}

	var parsed errorBody
	if len(body) > 0 && json.Unmarshal(body, &parsed) == nil {
		apiErr.Code = parsed.Code
		switch {
		case strings.TrimSpace(parsed.Message) != "":
			apiErr.Message = parsed.Message
		case strings.TrimSpace(parsed.Error) != "":
			apiErr.Message = parsed.Error
		}
	}

	if apiErr.Message == "" {
		apiErr.Message = fmt.Sprintf("request failed with status %d", status)
	}
	return apiErr
}
