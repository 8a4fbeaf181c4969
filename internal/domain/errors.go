package domain

import (
	"errors"
	"fmt"
)

// ErrorKind clasifica los fallos del upstream.
type ErrorKind string

const (
	// KindUpstreamUnavailable cubre status no-2xx, timeouts y fallos de transporte.
	KindUpstreamUnavailable ErrorKind = "upstream_unavailable"
	// KindUpstreamMalformed es un 2xx cuyo body no es JSON parseable.
	KindUpstreamMalformed ErrorKind = "upstream_malformed"
	// KindRateLimited es un HTTP 429; subtipo de unavailable.
	KindRateLimited ErrorKind = "rate_limited"
)

var (
	// ErrInvalidMint se devuelve cuando el mint no es una dirección Solana válida.
	ErrInvalidMint = errors.New("invalid mint address")
	// ErrUnknownCategory se devuelve para nombres de categoría desconocidos.
	ErrUnknownCategory = errors.New("unknown category")
	// ErrSnapshotNotFound se devuelve al pedir un snapshot que no está archivado.
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

// FetchError es el fallo tipado de una llamada upstream.
type FetchError struct {
	Kind        ErrorKind
	StatusCode  int    // 0 si no hubo respuesta HTTP
	BodyPreview string // primeros N caracteres del body, si lo hubo
	Strategy    string
	Err         error
}

func (e *FetchError) Error() string {
	msg := string(e.Kind)
	if e.Strategy != "" {
		msg = e.Strategy + ": " + msg
	}
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.BodyPreview != "" {
		msg += fmt.Sprintf(" body=%q", e.BodyPreview)
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Unavailable devuelve true para unavailable y su subtipo rate_limited.
func (e *FetchError) Unavailable() bool {
	return e.Kind == KindUpstreamUnavailable || e.Kind == KindRateLimited
}

// AsFetchError extrae el FetchError de una cadena de errores.
func AsFetchError(err error) (*FetchError, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// IsRateLimited devuelve true si el error viene de un 429 upstream.
func IsRateLimited(err error) bool {
	fe, ok := AsFetchError(err)
	return ok && fe.Kind == KindRateLimited
}

// KindOf devuelve el ErrorKind del error, o "" si no es un FetchError.
func KindOf(err error) ErrorKind {
	if fe, ok := AsFetchError(err); ok {
		return fe.Kind
	}
	return ""
}
