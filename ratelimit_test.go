package japi

import (
	"testing"
	"time"
)

func TestConnectionLimiterPerIPBurst(t *testing.T) {
	cl := NewConnectionLimiter(ConnectionLimiterConfig{
		GlobalRate:  1000,
		GlobalBurst: 1000,
		PerIPRate:   1,
		PerIPBurst:  2,
		IdleTTL:     time.Minute,
	})
	defer cl.Close()

	if !cl.Allow("10.0.0.1") || !cl.Allow("10.0.0.1") {
		t.Fatal("first two connections within burst should be allowed")
	}
	if cl.Allow("10.0.0.1") {
		t.Fatal("third connection should exceed the per-IP burst")
	}
}

func TestConnectionLimiterIndependentPerIP(t *testing.T) {
	cl := NewConnectionLimiter(ConnectionLimiterConfig{
		GlobalRate:  1000,
		GlobalBurst: 1000,
		PerIPRate:   1,
		PerIPBurst:  1,
		IdleTTL:     time.Minute,
	})
	defer cl.Close()

	if !cl.Allow("10.0.0.1") {
		t.Fatal("first connection from 10.0.0.1 should be allowed")
	}
	if !cl.Allow("10.0.0.2") {
		t.Fatal("a different source IP has its own independent bucket")
	}
}

func TestConnectionLimiterGlobalCap(t *testing.T) {
	cl := NewConnectionLimiter(ConnectionLimiterConfig{
		GlobalRate:  1,
		GlobalBurst: 1,
		PerIPRate:   1000,
		PerIPBurst:  1000,
		IdleTTL:     time.Minute,
	})
	defer cl.Close()

	if !cl.Allow("10.0.0.1") {
		t.Fatal("first connection should consume the global burst token")
	}
	if cl.Allow("10.0.0.2") {
		t.Fatal("global bucket exhausted, even a fresh IP should be rejected")
	}
}

func TestConnectionLimiterCloseIdempotent(t *testing.T) {
	cl := NewConnectionLimiter(ConnectionLimiterConfig{GlobalRate: 10, GlobalBurst: 10})
	cl.Close()
	cl.Close()
}
