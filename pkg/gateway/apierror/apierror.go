package apierror

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
)

// Kind classifies failures independently of transport. Kinds are mapped to
// HTTP status codes or WebSocket close codes only at the boundary.
type Kind string

const (
	KindInvalidRequest      Kind = "invalid_request"
	KindUnauthenticated     Kind = "unauthenticated"
	KindNotFound            Kind = "not_found"
	KindInvalidSession      Kind = "invalid_session"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	KindRelay               Kind = "relay"
	KindInternal            Kind = "internal"
)

type Error struct {
	Kind      Kind   `json:"kind"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

func E(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// KindOf unwraps err to its Kind, defaulting to KindInternal for errors
// that did not originate in this taxonomy.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr != nil {
		return apiErr.Kind
	}
	return KindInternal
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case KindInvalidRequest:
		return http.StatusBadRequest
	case KindUnauthenticated, KindInvalidSession:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindUpstreamUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// CloseCode maps a Kind to the WebSocket close code reported to a client
// whose socket has already been upgraded. A bad or expired credential is a
// policy violation; everything after redemption is an internal error.
func CloseCode(kind Kind) int {
	switch kind {
	case KindInvalidRequest, KindUnauthenticated, KindInvalidSession:
		return websocket.ClosePolicyViolation
	default:
		return websocket.CloseInternalServerErr
	}
}

type Envelope struct {
	Error *Error `json:"error"`
}

// From returns a copy of err as *Error, normalizing foreign errors to
// KindInternal without leaking their details.
func From(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr != nil {
		out := *apiErr
		return &out
	}
	return &Error{Kind: KindInternal, Message: "internal error"}
}

// WriteJSON renders err as the canonical error envelope.
func WriteJSON(w http.ResponseWriter, requestID string, err error) {
	apiErr := From(err)
	apiErr.RequestID = requestID
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(HTTPStatus(apiErr.Kind))
	_ = json.NewEncoder(w).Encode(Envelope{Error: apiErr})
}
