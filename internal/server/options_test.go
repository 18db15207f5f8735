package server

import (
	"os"
	"path/filepath"
	"testing"
)

const benchProfile = `
id: bench
cycle:
  steer: 0x110
  throttle: 0x210
  brake: 0x310
steer:
  direction: {min: 1, max: 3}
  value: {min: 0, max: 100}
throttle:
  mode: {min: 0, max: 1}
  value: {min: 0, max: 50}
brake:
  mode: {min: 5, max: 6}
`

func TestLoadProfilesAlwaysIncludesDefault(t *testing.T) {
	profiles, err := loadProfiles(nil)
	if err != nil {
		t.Fatalf("loadProfiles: %v", err)
	}
	if _, ok := profiles["default"]; !ok {
		t.Fatalf("built-in default missing: %v", profileIDs(profiles))
	}
}

func TestLoadProfilesFromDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bench.yaml")
	if err := os.WriteFile(path, []byte(benchProfile), 0o644); err != nil {
		t.Fatalf("write profile: %v", err)
	}
	profiles, err := loadProfiles([]ProfileRef{{ID: "bench", Name: "Bench rig", Path: path}})
	if err != nil {
		t.Fatalf("loadProfiles: %v", err)
	}
	p, ok := profiles["bench"]
	if !ok {
		t.Fatalf("bench profile missing: %v", profileIDs(profiles))
	}
	if p.Name != "Bench rig" || p.Cycle.Steer != 0x110 {
		t.Fatalf("profile = %+v", p)
	}
}

func TestLoadProfilesFailsOnBrokenReference(t *testing.T) {
	dir := t.TempDir()
	broken := filepath.Join(dir, "broken.yaml")
	if err := os.WriteFile(broken, []byte("id: broken\ncycle:\n  steer: 0x100\n  throttle: 0x100\n  brake: 0x300\n"), 0o644); err != nil {
		t.Fatalf("write profile: %v", err)
	}
	cases := []struct {
		name string
		refs []ProfileRef
	}{
		{"missing id", []ProfileRef{{Path: broken}}},
		{"missing path", []ProfileRef{{ID: "x"}}},
		{"absent file", []ProfileRef{{ID: "x", Path: filepath.Join(dir, "absent.yaml")}}},
		{"invalid document", []ProfileRef{{ID: "broken", Path: broken}}},
		{"duplicate id", []ProfileRef{{ID: "broken", Path: broken}, {ID: "broken", Path: broken}}},
	}
	for _, tc := range cases {
		if _, err := loadProfiles(tc.refs); err == nil {
			t.Fatalf("%s: accepted", tc.name)
		}
	}
}
