package japi

import (
	"errors"
	"testing"
)

func noopHandler(*Context, map[string]any, map[string]any) {}

func TestHandlerRegistryDuplicateRejected(t *testing.T) {
	h := newHandlerRegistry()
	if err := h.register("get_temperature", noopHandler); err != nil {
		t.Fatalf("first register: %v", err)
	}
	err := h.register("get_temperature", noopHandler)

	var jerr *Error
	if !errors.As(err, &jerr) || jerr.Kind != KindDuplicate {
		t.Fatalf("register duplicate = %v, want KindDuplicate", err)
	}
}

func TestHandlerRegistryCaseInsensitiveDuplicate(t *testing.T) {
	h := newHandlerRegistry()
	if err := h.register("GetTemperature", noopHandler); err != nil {
		t.Fatalf("first register: %v", err)
	}
	err := h.register("gettemperature", noopHandler)

	var jerr *Error
	if !errors.As(err, &jerr) || jerr.Kind != KindDuplicate {
		t.Fatalf("register case-insensitive duplicate = %v, want KindDuplicate", err)
	}
}

func TestHandlerRegistryLookupCaseInsensitive(t *testing.T) {
	h := newHandlerRegistry()
	_ = h.register("GetTemperature", noopHandler)

	if _, ok := h.lookup("GETTEMPERATURE"); !ok {
		t.Fatal("lookup should be case-insensitive")
	}
}

func TestHandlerRegistryReservedPrefixBeforeSeal(t *testing.T) {
	h := newHandlerRegistry()
	if err := h.register("japi_custom", noopHandler); err != nil {
		t.Fatalf("register before seal should succeed, got %v", err)
	}
}

func TestHandlerRegistryReservedPrefixAfterSeal(t *testing.T) {
	h := newHandlerRegistry()
	h.seal()

	err := h.register("japi_custom", noopHandler)
	var jerr *Error
	if !errors.As(err, &jerr) || jerr.Kind != KindReservedName {
		t.Fatalf("register reserved after seal = %v, want KindReservedName", err)
	}
}

func TestHandlerRegistryEmptyNameOrNilHandler(t *testing.T) {
	h := newHandlerRegistry()

	if err := h.register("", noopHandler); err == nil {
		t.Fatal("register with empty name should fail")
	}
	if err := h.register("ping", nil); err == nil {
		t.Fatal("register with nil handler should fail")
	}
}

func TestHandlerRegistryNames(t *testing.T) {
	h := newHandlerRegistry()
	_ = h.register("b", noopHandler)
	_ = h.register("a", noopHandler)

	names := h.names()
	if len(names) != 2 || names[0] != "b" || names[1] != "a" {
		t.Fatalf("names() = %v, want insertion order [b a]", names)
	}
}
