package detect

import (
	"errors"
	"fmt"

	"example.com/canwatch/internal/canbus"
)

// FrameType names one of the three periodic command frames of the topology.
type FrameType string

const (
	FrameSteer    FrameType = "steer"
	FrameThrottle FrameType = "throttle"
	FrameBrake    FrameType = "brake"
)

// Domain is a closed numeric range a decoded field must fall inside. Both
// bounds are inclusive.
type Domain struct {
	Min uint16
	Max uint16
}

// Contains reports whether v lies inside the domain.
func (d Domain) Contains(v uint16) bool {
	return v >= d.Min && v <= d.Max
}

func (d Domain) String() string {
	return fmt.Sprintf("[%d,%d]", d.Min, d.Max)
}

// Config fixes the engine's detection parameters at construction. Values are
// never re-derived at runtime; changing the bus topology means building a new
// engine from a new profile.
type Config struct {
	SteerID    uint16
	ThrottleID uint16
	BrakeID    uint16

	DosThresholdMs  uint32
	ReplayWindowMs  uint32
	HistoryCapacity int

	SteerDirection Domain
	SteerValue     Domain
	ThrottleMode   Domain
	ThrottleValue  Domain
	BrakeMode      Domain
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	ids := []uint16{c.SteerID, c.ThrottleID, c.BrakeID}
	for _, id := range ids {
		if id > canbus.MaxStandardID {
			return fmt.Errorf("cycle identifier 0x%X outside 11-bit range", id)
		}
	}
	if c.SteerID == c.ThrottleID || c.SteerID == c.BrakeID || c.ThrottleID == c.BrakeID {
		return errors.New("cycle identifiers must be distinct")
	}
	if c.DosThresholdMs == 0 {
		return errors.New("dos threshold must be positive")
	}
	if c.ReplayWindowMs == 0 {
		return errors.New("replay window must be positive")
	}
	if c.HistoryCapacity <= 0 {
		return errors.New("history capacity must be positive")
	}
	domains := []struct {
		name string
		d    Domain
	}{
		{"steer.direction", c.SteerDirection},
		{"steer.value", c.SteerValue},
		{"throttle.mode", c.ThrottleMode},
		{"throttle.value", c.ThrottleValue},
		{"brake.mode", c.BrakeMode},
	}
	for _, dom := range domains {
		if dom.d.Min > dom.d.Max {
			return fmt.Errorf("domain %s: min %d above max %d", dom.name, dom.d.Min, dom.d.Max)
		}
	}
	return nil
}

// FrameTypeOf maps an identifier to its command frame type, if any.
func (c Config) FrameTypeOf(id uint16) (FrameType, bool) {
	switch id {
	case c.SteerID:
		return FrameSteer, true
	case c.ThrottleID:
		return FrameThrottle, true
	case c.BrakeID:
		return FrameBrake, true
	}
	return "", false
}
