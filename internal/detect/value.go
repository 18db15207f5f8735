package detect

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrShortPayload marks a frame whose payload is shorter than its frame
// type's declared field width. Surfaced separately from a domain violation so
// the engine never decodes past the bytes actually received.
var ErrShortPayload = errors.New("detect: payload shorter than frame fields")

// frameWidth is the number of payload bytes each command frame type declares.
func frameWidth(ft FrameType) int {
	if ft == FrameBrake {
		return 1
	}
	return 3
}

// Violation is one decoded field found outside its valid domain.
type Violation struct {
	Field    string
	Observed uint16
	Domain   Domain
}

// ValueValidator decodes the command fields of the three frame types and
// checks each against its configured domain. Fields are independent: one
// frame can violate several domains at once.
type ValueValidator struct {
	cfg Config
}

func NewValueValidator(cfg Config) *ValueValidator {
	return &ValueValidator{cfg: cfg}
}

// Check decodes data as a frame of type ft and returns one violation per
// out-of-domain field. A short payload returns ErrShortPayload and no
// violations.
func (v *ValueValidator) Check(ft FrameType, data []byte) ([]Violation, error) {
	if len(data) < frameWidth(ft) {
		return nil, fmt.Errorf("%w: %s needs %d bytes, got %d", ErrShortPayload, ft, frameWidth(ft), len(data))
	}
	var out []Violation
	check := func(field string, observed uint16, d Domain) {
		if !d.Contains(observed) {
			out = append(out, Violation{Field: field, Observed: observed, Domain: d})
		}
	}
	switch ft {
	case FrameSteer:
		check("direction", uint16(data[0]), v.cfg.SteerDirection)
		check("value", binary.BigEndian.Uint16(data[1:3]), v.cfg.SteerValue)
	case FrameThrottle:
		check("mode", uint16(data[0]), v.cfg.ThrottleMode)
		check("value", binary.BigEndian.Uint16(data[1:3]), v.cfg.ThrottleValue)
	case FrameBrake:
		check("mode", uint16(data[0]), v.cfg.BrakeMode)
	}
	return out, nil
}
