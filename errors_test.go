package japi

import (
	"errors"
	"testing"
)

func TestErrorIsMatchesByKind(t *testing.T) {
	err := newErr(KindNotFound, "Lookup", "not found")
	sentinel := &Error{Kind: KindNotFound}

	if !errors.Is(err, sentinel) {
		t.Fatal("errors.Is should match on Kind")
	}

	other := &Error{Kind: KindDuplicate}
	if errors.Is(err, other) {
		t.Fatal("errors.Is should not match a different Kind")
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := wrapErr(KindIoError, "ReadLine", "read failed", cause)

	if !errors.Is(err, cause) {
		t.Fatal("errors.Is should see through Unwrap to the wrapped cause")
	}
}

func TestKindStringCoversAllValues(t *testing.T) {
	kinds := []Kind{
		KindNullContext, KindInvalidArgument, KindDuplicate, KindReservedName,
		KindNotFound, KindParseError, KindIoError, KindLineTooLarge,
		KindEOFWithPartial, KindTaskNotRunning, KindTaskSpawnFailed,
	}
	for _, k := range kinds {
		if k.String() == "unknown" {
			t.Fatalf("Kind %d has no String() case", k)
		}
	}
}
