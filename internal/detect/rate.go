package detect

import "example.com/canwatch/internal/canbus"

// identifierSpace is the full 11-bit addressable identifier range. The rate
// table is dense over the whole space because the interval check runs for
// every identifier the bus can carry, not only the three command frames.
const identifierSpace = canbus.MaxStandardID + 1

// RateTracker flags retransmission intervals below the DoS threshold. It
// keeps a last-seen millisecond timestamp per identifier; the seen flags
// stand in for the "never observed" sentinel so the very first frame of an
// identifier only establishes baseline recency.
type RateTracker struct {
	threshold uint32
	last      [identifierSpace]uint32
	seen      [identifierSpace]bool
}

func NewRateTracker(thresholdMs uint32) *RateTracker {
	return &RateTracker{threshold: thresholdMs}
}

// Observe records the arrival of id at now and reports the interval since the
// previous arrival together with whether that interval is below the DoS
// threshold. Recency is updated unconditionally: every frame, anomalous or
// not, becomes the new baseline. Interval math is unsigned 32-bit
// subtraction, so a wrapped clock yields the true elapsed time rather than an
// implausible huge value.
func (t *RateTracker) Observe(id uint16, now uint32) (interval uint32, dos bool) {
	if t.seen[id] {
		interval = now - t.last[id]
		dos = interval < t.threshold
	}
	t.last[id] = now
	t.seen[id] = true
	return interval, dos
}
