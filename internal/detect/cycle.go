package detect

// CyclePacker accumulates the payload bytes of one full steer/throttle/brake
// cycle into a 64-bit fingerprint by successive shift-and-OR. The packer only
// accepts frames the sequence monitor reported in order; a violation or a
// malformed frame invalidates the cycle in progress instead of silently
// mixing bytes from unrelated cycles.
type CyclePacker struct {
	fp    uint64
	stage FrameType
	valid bool
}

func NewCyclePacker() *CyclePacker {
	return &CyclePacker{stage: FrameSteer}
}

// Feed folds the frame's command field bytes into the fingerprint in
// progress. Only the declared field prefix is folded; trailing payload bytes
// beyond the frame type's width do not enter the fingerprint, so padding
// never masks a repeat and never makes distinct commands collide. A steer
// frame always begins a fresh cycle. The completed fingerprint is returned
// once the brake frame of a valid cycle has been folded in.
func (p *CyclePacker) Feed(ft FrameType, data []byte) (fp uint64, complete bool) {
	switch ft {
	case FrameSteer:
		p.fp = 0
		p.valid = true
		p.fold(ft, data)
		p.stage = FrameThrottle
	case FrameThrottle:
		if p.stage != FrameThrottle {
			p.Invalidate()
			return 0, false
		}
		p.fold(ft, data)
		p.stage = FrameBrake
	case FrameBrake:
		if p.stage != FrameBrake {
			p.Invalidate()
			return 0, false
		}
		p.fold(ft, data)
		p.stage = FrameSteer
		if !p.valid {
			return 0, false
		}
		return p.fp, true
	}
	return 0, false
}

// Invalidate discards the cycle in progress. The next steer frame starts
// over.
func (p *CyclePacker) Invalidate() {
	p.fp = 0
	p.stage = FrameSteer
	p.valid = false
}

func (p *CyclePacker) fold(ft FrameType, data []byte) {
	if w := frameWidth(ft); len(data) > w {
		data = data[:w]
	}
	for _, b := range data {
		p.fp = p.fp<<8 | uint64(b)
	}
}
