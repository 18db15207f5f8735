package detect

import (
	"fmt"
	"time"
)

type Severity string

const (
	ERROR Severity = "ERROR"
	WARN  Severity = "WARN"
)

// Kind names one of the anomaly classes the engine can raise.
type Kind string

const (
	KindSequence  Kind = "sequence"
	KindDos       Kind = "dos"
	KindSpoof     Kind = "spoof"
	KindReplay    Kind = "replay"
	KindMalformed Kind = "malformed"
)

// Kinds lists every alert kind in report order.
var Kinds = []Kind{KindSequence, KindDos, KindSpoof, KindReplay, KindMalformed}

// Alert is one advisory finding about a single frame event. The engine never
// rejects or mutates the frame itself; alerts are side-channel only. Fields
// beyond the common header are populated per kind.
type Alert struct {
	Ts        time.Time `json:"ts"`
	Kind      Kind      `json:"kind"`
	Severity  Severity  `json:"severity"`
	ID        uint16    `json:"id"`
	BusTimeMs uint32    `json:"busTimeMs"`
	Message   string    `json:"message"`

	// sequence
	ExpectedID *uint16 `json:"expectedId,omitempty"`

	// dos
	IntervalMs *uint32 `json:"intervalMs,omitempty"`

	// spoof and malformed
	FrameType FrameType `json:"frameType,omitempty"`
	Field     string    `json:"field,omitempty"`
	Observed  *uint16   `json:"observed,omitempty"`
	Domain    string    `json:"domain,omitempty"`

	// replay
	Fingerprint string  `json:"fingerprint,omitempty"`
	OriginalMs  *uint32 `json:"originalMs,omitempty"`
}

// AlertSink receives every alert the engine raises, in emission order. The
// external collaborator decides how alerts are rendered, latched or cleared.
type AlertSink interface {
	Emit(Alert) error
}

// SinkFunc adapts a plain function to the AlertSink interface.
type SinkFunc func(Alert) error

func (f SinkFunc) Emit(a Alert) error { return f(a) }

func uint16Ptr(v uint16) *uint16 { return &v }

func uint32Ptr(v uint32) *uint32 { return &v }

// FormatFingerprint renders a cycle fingerprint the way alerts and reports
// carry it: 16 hex digits, zero padded.
func FormatFingerprint(fp uint64) string {
	return fmt.Sprintf("%016X", fp)
}
