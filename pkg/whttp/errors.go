package whttp

import (
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

// Kind classifies a transport failure.
type Kind int

const (
	KindOther Kind = iota
	KindTimeout
	KindConnection
	KindServer
	KindClient
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindConnection:
		return "connection error"
	case KindServer:
		return "server error"
	case KindClient:
		return "client error"
	}
	return "error"
}

// Error is the classified failure returned by every Client call.
type Error struct {
	Kind       Kind
	StatusCode int
	Method     string
	URL        string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: %s (HTTP %d)", e.Method, e.URL, e.Kind, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %s: %v", e.Method, e.URL, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %s", e.Method, e.URL, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is a transient transport failure.
func IsRetryable(err error) bool {
	var werr *Error
	if !errors.As(err, &werr) {
		return false
	}
	return werr.Kind != KindClient
}

// IsClientError reports whether err carries a 4xx answer.
func IsClientError(err error) bool {
	var werr *Error
	return errors.As(err, &werr) && werr.Kind == KindClient
}

func kindOf(err error) Kind {
	var timeout interface{ Timeout() bool }
	if errors.As(err, &timeout) && timeout.Timeout() {
		return KindTimeout
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return KindConnection
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindConnection
	}
	return KindOther
}
