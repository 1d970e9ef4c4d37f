package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestMessageErrorMatchesSentinel(t *testing.T) {
	cause := errors.New("unexpected end of JSON input")
	err := fmt.Errorf("decode: %w", NewMessageError("drawing:add", "invalid json", cause))

	if !Is(err, ErrMalformedMessage) {
		t.Fatalf("expected %v to match ErrMalformedMessage", err)
	}
	if !Is(err, cause) {
		t.Fatalf("expected %v to unwrap to cause", err)
	}

	var msgErr *MessageError
	if !As(err, &msgErr) {
		t.Fatalf("expected As to find MessageError")
	}
	if msgErr.Type != "drawing:add" {
		t.Errorf("Type = %q, want drawing:add", msgErr.Type)
	}
}

func TestTransportErrorString(t *testing.T) {
	err := NewTransportError("send", "peer-1", ErrNotConnected)
	want := "transport error [send] peer peer-1: transport not connected"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !Is(err, ErrNotConnected) {
		t.Errorf("expected TransportError to unwrap to ErrNotConnected")
	}

	noPeer := NewTransportError("dial", "", ErrConnectionFailed)
	if noPeer.Error() != "transport error [dial]: connection failed" {
		t.Errorf("unexpected message: %q", noPeer.Error())
	}
}

func TestValidationErrorMatchesSentinel(t *testing.T) {
	err := NewValidationError("ticker", "aapl!", "invalid ticker format")
	if !Is(err, ErrInputValidation) {
		t.Fatalf("expected ValidationError to match ErrInputValidation")
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, "context") != nil {
		t.Error("Wrap(nil) should return nil")
	}
	if Wrapf(nil, "context %d", 1) != nil {
		t.Error("Wrapf(nil) should return nil")
	}
	if got := Wrapf(ErrShapeNotFound, "shape %s", "abc").Error(); got != "shape abc: shape not found" {
		t.Errorf("Wrapf = %q", got)
	}
}
