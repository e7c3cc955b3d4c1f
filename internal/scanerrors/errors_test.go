package scanerrors

import (
	"errors"
	"testing"
)

func TestError(t *testing.T) {
	err := New(KindConfig, "invalid port spec")
	if err.Error() != "invalid port spec" {
		t.Errorf("expected 'invalid port spec', got '%s'", err.Error())
	}

	wrapped := Wrap(err, KindInternal, "scheduler init failed")
	if wrapped.Error() != "scheduler init failed: invalid port spec" {
		t.Errorf("unexpected message: %s", wrapped.Error())
	}
}

func TestGetKindAndFatal(t *testing.T) {
	err := New(KindFingerprintCollision, "duplicate fingerprint")
	if GetKind(err) != KindFingerprintCollision {
		t.Errorf("expected KindFingerprintCollision, got %v", GetKind(err))
	}

	var e *Error
	if !errors.As(err, &e) || !e.Fatal() {
		t.Error("expected FingerprintCollision to be fatal")
	}

	timeout := New(KindProbeTimeout, "no response")
	if errors.As(timeout, &e) && e.Fatal() {
		t.Error("ProbeTimeout must not be fatal")
	}

	if GetKind(errors.New("plain")) != KindUnknown {
		t.Error("expected KindUnknown for non-scan error")
	}
}

func TestAttributesAndSuggestion(t *testing.T) {
	err := New(KindPermission, "raw socket denied")
	err = Attr(err, "capability", "CAP_NET_RAW")
	err = WithSuggestion(err, "grant CAP_NET_RAW or run as root")

	attrs := GetAttributes(err)
	if attrs["capability"] != "CAP_NET_RAW" {
		t.Errorf("missing capability attribute: %v", attrs)
	}

	var e *Error
	if !errors.As(err, &e) || e.Suggestion == "" {
		t.Error("expected a suggestion to be attached")
	}

	wrapped := Wrap(err, KindInternal, "socket setup failed")
	wrapped = Attr(wrapped, "stage", "init")
	all := GetAttributes(wrapped)
	if all["capability"] != "CAP_NET_RAW" || all["stage"] != "init" {
		t.Errorf("missing merged attributes: %v", all)
	}
}
