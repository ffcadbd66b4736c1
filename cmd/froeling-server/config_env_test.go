package main

import (
	"os"
	"testing"
	"time"
)

func TestApplyEnvOverrides_Basic(t *testing.T) {
	base := baseConfig()

	os.Setenv("FROELING_SERVER_BAUD", "19200")
	os.Setenv("FROELING_SERVER_VALIDATE_CRC", "true")
	os.Setenv("FROELING_SERVER_SERIAL_READ_TIMEOUT", "100ms")
	os.Setenv("FROELING_SERVER_LOG_METRICS_INTERVAL", "5s")
	os.Setenv("FROELING_SERVER_MDNS_ENABLE", "on")
	t.Cleanup(func() {
		os.Unsetenv("FROELING_SERVER_BAUD")
		os.Unsetenv("FROELING_SERVER_VALIDATE_CRC")
		os.Unsetenv("FROELING_SERVER_SERIAL_READ_TIMEOUT")
		os.Unsetenv("FROELING_SERVER_LOG_METRICS_INTERVAL")
		os.Unsetenv("FROELING_SERVER_MDNS_ENABLE")
	})
	if err := applyEnvOverrides(base, map[string]struct{}{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if base.baud != 19200 {
		t.Fatalf("expected baud override, got %d", base.baud)
	}
	if !base.validateCRC {
		t.Fatalf("expected validateCRC true")
	}
	if base.serialReadTO != 100*time.Millisecond {
		t.Fatalf("expected serialReadTO override, got %v", base.serialReadTO)
	}
	if base.logMetricsEvery != 5*time.Second {
		t.Fatalf("expected logMetricsEvery override, got %v", base.logMetricsEvery)
	}
	if !base.mdnsEnable {
		t.Fatalf("expected mdnsEnable true")
	}
}

func TestApplyEnvOverrides_FlagWins(t *testing.T) {
	base := baseConfig()
	os.Setenv("FROELING_SERVER_BAUD", "19200")
	t.Cleanup(func() { os.Unsetenv("FROELING_SERVER_BAUD") })
	set := map[string]struct{}{"baud": {}}
	if err := applyEnvOverrides(base, set); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if base.baud != 57600 {
		t.Fatalf("flag-set baud overridden to %d", base.baud)
	}
}

func TestApplyEnvOverrides_BadValue(t *testing.T) {
	base := baseConfig()
	os.Setenv("FROELING_SERVER_BAUD", "fast")
	t.Cleanup(func() { os.Unsetenv("FROELING_SERVER_BAUD") })
	if err := applyEnvOverrides(base, map[string]struct{}{}); err == nil {
		t.Fatalf("expected error for invalid baud")
	}
}
