// Package profile holds the detection parameters the engine is constructed
// with: the command-frame topology, the anomaly thresholds and the per-field
// value domains. Profiles are YAML documents so a changed bus topology needs
// a new profile, never a code change.
package profile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"example.com/canwatch/internal/detect"
)

// Domain is an inclusive numeric range for one decoded command field.
type Domain struct {
	Min uint16 `yaml:"min" json:"min"`
	Max uint16 `yaml:"max" json:"max"`
}

// Cycle names the three identifiers of the round-robin command cycle, in
// order.
type Cycle struct {
	Steer    uint16 `yaml:"steer" json:"steer"`
	Throttle uint16 `yaml:"throttle" json:"throttle"`
	Brake    uint16 `yaml:"brake" json:"brake"`
}

// SteerDomains bounds the steer frame's decoded fields.
type SteerDomains struct {
	Direction Domain `yaml:"direction" json:"direction"`
	Value     Domain `yaml:"value" json:"value"`
}

// ThrottleDomains bounds the throttle frame's decoded fields.
type ThrottleDomains struct {
	Mode  Domain `yaml:"mode" json:"mode"`
	Value Domain `yaml:"value" json:"value"`
}

// BrakeDomains bounds the brake frame's single field.
type BrakeDomains struct {
	Mode Domain `yaml:"mode" json:"mode"`
}

// Profile is one complete detector parameterization.
type Profile struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name,omitempty" json:"name,omitempty"`

	Cycle Cycle `yaml:"cycle" json:"cycle"`

	DosThresholdMs  uint32 `yaml:"dosThresholdMs" json:"dosThresholdMs"`
	ReplayWindowMs  uint32 `yaml:"replayWindowMs" json:"replayWindowMs"`
	HistoryCapacity int    `yaml:"historyCapacity" json:"historyCapacity"`

	Steer    SteerDomains    `yaml:"steer" json:"steer"`
	Throttle ThrottleDomains `yaml:"throttle" json:"throttle"`
	Brake    BrakeDomains    `yaml:"brake" json:"brake"`
}

// Default returns the reference deployment profile: identifiers 0x100, 0x200
// and 0x300, a 5 ms DoS threshold, a 5000 ms replay window over 32 history
// entries, and the command value domains of the reference bus.
func Default() Profile {
	return Profile{
		ID:              "default",
		Name:            "Reference command bus",
		Cycle:           Cycle{Steer: 0x100, Throttle: 0x200, Brake: 0x300},
		DosThresholdMs:  5,
		ReplayWindowMs:  5000,
		HistoryCapacity: 32,
		Steer: SteerDomains{
			Direction: Domain{Min: 4, Max: 6},
			Value:     Domain{Min: 255, Max: 924},
		},
		Throttle: ThrottleDomains{
			Mode:  Domain{Min: 0, Max: 3},
			Value: Domain{Min: 0, Max: 512},
		},
		Brake: BrakeDomains{
			Mode: Domain{Min: 7, Max: 8},
		},
	}
}

// Load reads a profile document from path. Zero-valued thresholds fall back
// to the defaults; the cycle identifiers and domains must be spelled out.
func Load(path string) (Profile, error) {
	var p Profile
	f, err := os.Open(path)
	if err != nil {
		return p, err
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return p, fmt.Errorf("decode profile: %w", err)
	}
	def := Default()
	if p.DosThresholdMs == 0 {
		p.DosThresholdMs = def.DosThresholdMs
	}
	if p.ReplayWindowMs == 0 {
		p.ReplayWindowMs = def.ReplayWindowMs
	}
	if p.HistoryCapacity == 0 {
		p.HistoryCapacity = def.HistoryCapacity
	}
	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("profile %s: %w", path, err)
	}
	return p, nil
}

// Validate delegates to the engine's own configuration checks and verifies
// profile metadata.
func (p Profile) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("profile missing id")
	}
	return p.EngineConfig().Validate()
}

// EngineConfig converts the profile into the engine's construction
// parameters.
func (p Profile) EngineConfig() detect.Config {
	return detect.Config{
		SteerID:         p.Cycle.Steer,
		ThrottleID:      p.Cycle.Throttle,
		BrakeID:         p.Cycle.Brake,
		DosThresholdMs:  p.DosThresholdMs,
		ReplayWindowMs:  p.ReplayWindowMs,
		HistoryCapacity: p.HistoryCapacity,
		SteerDirection:  detect.Domain{Min: p.Steer.Direction.Min, Max: p.Steer.Direction.Max},
		SteerValue:      detect.Domain{Min: p.Steer.Value.Min, Max: p.Steer.Value.Max},
		ThrottleMode:    detect.Domain{Min: p.Throttle.Mode.Min, Max: p.Throttle.Mode.Max},
		ThrottleValue:   detect.Domain{Min: p.Throttle.Value.Min, Max: p.Throttle.Value.Max},
		BrakeMode:       detect.Domain{Min: p.Brake.Mode.Min, Max: p.Brake.Mode.Max},
	}
}

// Marshal renders the profile as a YAML document.
func (p Profile) Marshal() ([]byte, error) {
	return yaml.Marshal(p)
}
