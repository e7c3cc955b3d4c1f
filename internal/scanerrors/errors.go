// Package scanerrors defines the kind-tagged error taxonomy used across the
// recon engine core, mirroring the style of the teacher's internal/errors
// package: every fallible function returns a value, never a panic, and
// callers classify failures by Kind rather than string matching.
package scanerrors

import (
	"errors"
	"fmt"
)

// Kind categorizes a scan error per spec §7.
type Kind int

const (
	KindUnknown Kind = iota
	KindInternal
	KindConfig
	KindPermission
	KindNetworkIO
	KindProtocol
	KindRateLimited
	KindTarget
	KindProbeTimeout
	KindFingerprintCollision
	KindResourceExhaustion
	KindPlugin
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindInternal:
		return "internal"
	case KindConfig:
		return "config"
	case KindPermission:
		return "permission"
	case KindNetworkIO:
		return "network_io"
	case KindProtocol:
		return "protocol"
	case KindRateLimited:
		return "rate_limited"
	case KindTarget:
		return "target"
	case KindProbeTimeout:
		return "probe_timeout"
	case KindFingerprintCollision:
		return "fingerprint_collision"
	case KindResourceExhaustion:
		return "resource_exhaustion"
	case KindPlugin:
		return "plugin"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error is a structured, kind-tagged error with optional context attributes
// and an actionable suggestion, per spec §7 "user-visible reporting".
type Error struct {
	Kind       Kind
	Message    string
	Suggestion string
	Underlying error
	Attributes map[string]any
}

func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Underlying)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Underlying
}

// Fatal reports whether this error kind must abort the whole scan per the
// propagation policy in spec §7 (Config, Permission, FingerprintCollision,
// ResourceExhaustion).
func (e *Error) Fatal() bool {
	switch e.Kind {
	case KindConfig, KindPermission, KindFingerprintCollision, KindResourceExhaustion:
		return true
	default:
		return false
	}
}

// New creates a new Error of the specified kind.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Message: msg}
}

// Errorf creates a new Error of the specified kind with a formatted message.
func Errorf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error as a new Error of the specified kind.
func Wrap(err error, kind Kind, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: msg, Underlying: err}
}

// Wrapf wraps an existing error as a new Error of the specified kind with a
// formatted message.
func Wrapf(err error, kind Kind, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Underlying: err}
}

// WithSuggestion attaches an actionable remediation suggestion, e.g.
// "raise nofile to 65536" or "grant CAP_NET_RAW".
func WithSuggestion(err error, suggestion string) error {
	var e *Error
	if !errors.As(err, &e) {
		return err
	}
	e.Suggestion = suggestion
	return e
}

// Attr attaches a context attribute (target, port, fingerprint, ...) to an
// error. If err is not already an *Error it is wrapped as KindInternal.
func Attr(err error, key string, val any) error {
	if err == nil {
		return nil
	}
	var e *Error
	if !errors.As(err, &e) {
		e = &Error{Kind: KindInternal, Message: err.Error(), Underlying: err}
	}
	if e.Attributes == nil {
		e.Attributes = make(map[string]any)
	}
	e.Attributes[key] = val
	return e
}

// GetKind returns the Kind of err, or KindUnknown if err is not a scan error.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// GetAttributes collects attributes across the error's chain, first
// occurrence of a key wins (innermost is appended last in the chain walk).
func GetAttributes(err error) map[string]any {
	attrs := make(map[string]any)
	var e *Error
	cur := err
	for cur != nil {
		if errors.As(cur, &e) {
			for k, v := range e.Attributes {
				if _, ok := attrs[k]; !ok {
					attrs[k] = v
				}
			}
			cur = e.Underlying
		} else {
			break
		}
	}
	return attrs
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's chain matching target's type.
func As(err error, target any) bool { return errors.As(err, target) }

// Unwrap returns the result of err's Unwrap method, if any.
func Unwrap(err error) error { return errors.Unwrap(err) }
