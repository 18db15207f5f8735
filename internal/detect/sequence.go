package detect

// SequenceMonitor enforces the strict steer → throttle → brake round-robin
// the topology guarantees. The monitor never resynchronizes to an unexpected
// identifier: after a violation it keeps waiting for the same identifier
// until satisfied. That is the deployed behavior, retained on purpose.
type SequenceMonitor struct {
	cycle [3]uint16
	pos   int
}

// NewSequenceMonitor starts a monitor awaiting the steer identifier.
func NewSequenceMonitor(steer, throttle, brake uint16) *SequenceMonitor {
	return &SequenceMonitor{cycle: [3]uint16{steer, throttle, brake}}
}

// Expected returns the identifier the monitor is currently waiting for.
func (m *SequenceMonitor) Expected() uint16 {
	return m.cycle[m.pos]
}

// Observe reports whether id was the identifier expected next. On a match the
// monitor advances to the next step of the cycle; otherwise its state is left
// unchanged.
func (m *SequenceMonitor) Observe(id uint16) bool {
	if id != m.cycle[m.pos] {
		return false
	}
	m.pos = (m.pos + 1) % len(m.cycle)
	return true
}
