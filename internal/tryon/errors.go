package tryon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/language"

	"tryon/internal/providers/genai"
	imageprovider "tryon/internal/providers/image"
)

// Kind is the closed set of user-facing failure categories.
type Kind string

const (
	KindMissingCredential      Kind = "missing_credential"
	KindPayloadTooLarge        Kind = "payload_too_large"
	KindSafetyRejected         Kind = "safety_rejected"
	KindEmptyResult            Kind = "empty_result"
	KindTransientProviderFault Kind = "transient_provider_fault"
	KindUnknown                Kind = "unknown"
)

var (
	ErrMissingCredential = errors.New("provider credential missing")
	ErrEmptyResult       = errors.New("provider returned no image")
	ErrSafetyRejected    = errors.New("provider rejected the request for safety reasons")
	ErrSuperseded        = errors.New("attempt superseded by a newer one")
)

const maxDetailRunes = 200

// PipelineError is returned by every failed attempt. Detail holds raw
// diagnostic text for logs; callers show Message instead.
type PipelineError struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *PipelineError) Error() string {
	if e.Detail == "" {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Detail
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Message returns the fixed user-facing text for the kind in the requested
// language. Only Unknown appends its trimmed detail.
func (e *PipelineError) Message(tag language.Tag) string {
	return localize(tag, e.Kind, e.Detail)
}

// Classify maps any error onto a PipelineError. Errors that already are
// PipelineErrors pass through unchanged.
func Classify(err error) *PipelineError {
	if err == nil {
		return nil
	}
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe
	}

	switch {
	case errors.Is(err, ErrMissingCredential):
		return &PipelineError{Kind: KindMissingCredential, Detail: err.Error(), Err: err}
	case errors.Is(err, ErrSafetyRejected):
		return &PipelineError{Kind: KindSafetyRejected, Detail: err.Error(), Err: err}
	case errors.Is(err, ErrEmptyResult):
		return &PipelineError{Kind: KindEmptyResult, Detail: err.Error(), Err: err}
	case errors.Is(err, ErrSuperseded),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return transient(err)
	}

	var status *genai.StatusError
	if errors.As(err, &status) {
		if status.Code == http.StatusBadRequest || status.Code == http.StatusRequestEntityTooLarge {
			return &PipelineError{Kind: KindPayloadTooLarge, Detail: err.Error(), Err: err}
		}
		return transient(err)
	}

	var fetchErr *imageprovider.FetchError
	var netErr net.Error
	var urlErr *url.Error
	if errors.As(err, &fetchErr) || errors.As(err, &netErr) || errors.As(err, &urlErr) {
		return transient(err)
	}

	if strings.Contains(err.Error(), "400") {
		return &PipelineError{Kind: KindPayloadTooLarge, Detail: err.Error(), Err: err}
	}
	return &PipelineError{Kind: KindUnknown, Detail: trimDetail(err.Error()), Err: err}
}

func transient(err error) *PipelineError {
	return &PipelineError{Kind: KindTransientProviderFault, Detail: err.Error(), Err: err}
}

func prepareFailed(what string, err error) *PipelineError {
	return &PipelineError{
		Kind:   KindTransientProviderFault,
		Detail: fmt.Sprintf("prepare %s: %v", what, err),
		Err:    err,
	}
}

func trimDetail(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= maxDetailRunes {
		return s
	}
	return string([]rune(s)[:maxDetailRunes]) + "…"
}
