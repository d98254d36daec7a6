package main

import (
	"strings"
	"testing"
)

func TestVersionCommand(t *testing.T) {
	out, _, err := runCLI(t, "version")
	if err != nil {
		t.Fatalf("version cmd: %v", err)
	}
	out = strings.TrimSpace(out)
	parts := strings.Split(out, " ")
	if len(parts) != 2 || parts[0] != "pkt.systems/measurements" || parts[1] == "" {
		t.Fatalf("expected module + version, got %q", out)
	}
}
