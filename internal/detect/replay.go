package detect

// historyEntry is one stored cycle fingerprint with its completion time.
type historyEntry struct {
	fp uint64
	ts uint32
}

// ReplayDetector keeps a fixed-capacity ring of recently completed cycle
// fingerprints and flags exact repeats inside the replay window. Entries
// older than the window are skipped during the scan but never evicted
// proactively; insertion order overwrites the oldest slot regardless of age.
type ReplayDetector struct {
	window  uint32
	entries []historyEntry
	used    int
	next    int
}

func NewReplayDetector(windowMs uint32, capacity int) *ReplayDetector {
	return &ReplayDetector{
		window:  windowMs,
		entries: make([]historyEntry, capacity),
	}
}

// CheckAndStore scans the in-window history for an exact fingerprint match.
// On a match it reports the matched entry's timestamp and stores nothing: a
// detected replay is not itself re-stored. Otherwise the fingerprint is
// recorded at the next ring slot.
func (d *ReplayDetector) CheckAndStore(fp uint64, now uint32) (originalMs uint32, replay bool) {
	for i := 0; i < d.used; i++ {
		e := d.entries[i]
		if now-e.ts <= d.window && e.fp == fp {
			return e.ts, true
		}
	}
	d.entries[d.next] = historyEntry{fp: fp, ts: now}
	d.next = (d.next + 1) % len(d.entries)
	if d.used < len(d.entries) {
		d.used++
	}
	return 0, false
}
