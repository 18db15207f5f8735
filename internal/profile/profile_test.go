package profile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeProfile(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profile.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write profile: %v", err)
	}
	return path
}

func TestDefaultProfileIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default profile invalid: %v", err)
	}
}

func TestLoadCompleteProfile(t *testing.T) {
	path := writeProfile(t, `
id: bench
name: Bench harness
cycle:
  steer: 0x110
  throttle: 0x210
  brake: 0x310
dosThresholdMs: 10
replayWindowMs: 2000
historyCapacity: 16
steer:
  direction: {min: 1, max: 3}
  value: {min: 0, max: 100}
throttle:
  mode: {min: 0, max: 1}
  value: {min: 0, max: 50}
brake:
  mode: {min: 5, max: 6}
`)
	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.ID != "bench" || p.Cycle.Steer != 0x110 || p.Cycle.Brake != 0x310 {
		t.Fatalf("profile = %+v", p)
	}
	if p.DosThresholdMs != 10 || p.ReplayWindowMs != 2000 || p.HistoryCapacity != 16 {
		t.Fatalf("thresholds = %d/%d/%d", p.DosThresholdMs, p.ReplayWindowMs, p.HistoryCapacity)
	}
	cfg := p.EngineConfig()
	if cfg.SteerDirection.Max != 3 || cfg.BrakeMode.Min != 5 {
		t.Fatalf("engine config = %+v", cfg)
	}
}

func TestLoadAppliesThresholdDefaults(t *testing.T) {
	path := writeProfile(t, `
id: sparse
cycle:
  steer: 0x100
  throttle: 0x200
  brake: 0x300
steer:
  direction: {min: 4, max: 6}
  value: {min: 255, max: 924}
throttle:
  mode: {min: 0, max: 3}
  value: {min: 0, max: 512}
brake:
  mode: {min: 7, max: 8}
`)
	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	def := Default()
	if p.DosThresholdMs != def.DosThresholdMs {
		t.Fatalf("dos threshold = %d, want default %d", p.DosThresholdMs, def.DosThresholdMs)
	}
	if p.ReplayWindowMs != def.ReplayWindowMs || p.HistoryCapacity != def.HistoryCapacity {
		t.Fatalf("replay window = %d capacity = %d, want defaults", p.ReplayWindowMs, p.HistoryCapacity)
	}
}

func TestLoadRejectsUnknownField(t *testing.T) {
	path := writeProfile(t, `
id: typo
cycle:
  steer: 0x100
  throttle: 0x200
  brake: 0x300
dosTresholdMs: 10
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("misspelled field accepted")
	}
}

func TestLoadRejectsMissingID(t *testing.T) {
	path := writeProfile(t, `
cycle:
  steer: 0x100
  throttle: 0x200
  brake: 0x300
`)
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "missing id") {
		t.Fatalf("err = %v, want missing id", err)
	}
}

func TestLoadRejectsDuplicateIdentifiers(t *testing.T) {
	path := writeProfile(t, `
id: dup
cycle:
  steer: 0x100
  throttle: 0x100
  brake: 0x300
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("duplicate cycle identifiers accepted")
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	doc, err := Default().Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	path := writeProfile(t, string(doc))
	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load of marshaled profile: %v", err)
	}
	if p != Default() {
		t.Fatalf("round trip changed profile: %+v", p)
	}
}
