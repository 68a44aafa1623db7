package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go"
)

// ErrorKind classifies a failed vendor call.
type ErrorKind string

const (
	ErrAuth              ErrorKind = "auth"
	ErrRateLimit         ErrorKind = "rate_limit"
	ErrNetwork           ErrorKind = "network"
	ErrMalformedResponse ErrorKind = "malformed_response"
)

// Error is returned by Provider.Generate for every vendor failure.
type Error struct {
	Kind     ErrorKind
	Provider Kind
	Status   int
	Err      error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s error (status %d): %v", e.Provider, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s %s error: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the ErrorKind carried by err, or ErrNetwork when err is
// not an *Error.
func KindOf(err error) ErrorKind {
	var aiErr *Error
	if errors.As(err, &aiErr) {
		return aiErr.Kind
	}
	return ErrNetwork
}

// FallbackMessage is the assistant text shown to the user when a call fails.
func FallbackMessage(kind ErrorKind) string {
	switch kind {
	case ErrAuth:
		return "I'm sorry, but I'm having trouble connecting to my AI service. Please check the API configuration."
	case ErrRateLimit:
		return "I'm currently receiving too many requests. Please try again in a moment."
	case ErrMalformedResponse:
		return "I received an unexpected response from my AI service. Please try again."
	default:
		return "I'm experiencing some technical difficulties. Please try again later."
	}
}

func malformed(provider Kind, format string, args ...any) *Error {
	return &Error{Kind: ErrMalformedResponse, Provider: provider, Err: fmt.Errorf(format, args...)}
}

// classify maps SDK errors onto ErrorKind.
func classify(provider Kind, err error) *Error {
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}

	status := 0
	var openaiErr *openai.Error
	var anthropicErr *anthropic.Error
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &openaiErr):
		status = openaiErr.StatusCode
	case errors.As(err, &anthropicErr):
		status = anthropicErr.StatusCode
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		// The vendor answered but the body could not be decoded.
		return &Error{Kind: ErrMalformedResponse, Provider: provider, Err: err}
	}

	return &Error{Kind: kindForStatus(status), Provider: provider, Status: status, Err: err}
}

func kindForStatus(status int) ErrorKind {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrAuth
	case http.StatusTooManyRequests:
		return ErrRateLimit
	default:
		return ErrNetwork
	}
}
