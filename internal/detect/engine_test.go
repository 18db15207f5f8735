package detect

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"example.com/canwatch/internal/canbus"
)

type cycleFeeder struct {
	t      *testing.T
	e      *Engine
	now    uint32
	alerts []Alert
}

func newCycleFeeder(t *testing.T) *cycleFeeder {
	t.Helper()
	e, err := NewEngine(testConfig())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return &cycleFeeder{t: t, e: e, now: 1_000}
}

func (f *cycleFeeder) frame(id uint16, data []byte) []Alert {
	f.t.Helper()
	alerts, err := f.e.Process(canbus.Event{ID: id, Data: data, Timestamp: f.now})
	if err != nil {
		f.t.Fatalf("Process(0x%03X at %d ms): %v", id, f.now, err)
	}
	f.now += 10
	f.alerts = append(f.alerts, alerts...)
	return alerts
}

// cycle feeds one clean cycle whose steer value varies with i so consecutive
// cycles never share a fingerprint.
func (f *cycleFeeder) cycle(i int) {
	f.t.Helper()
	f.frame(0x100, steerData(5, uint16(300+i)))
	f.frame(0x200, []byte{1, 0x01, 0x00})
	f.frame(0x300, []byte{7})
}

func kindsOf(alerts []Alert) []Kind {
	out := make([]Kind, len(alerts))
	for i, a := range alerts {
		out[i] = a.Kind
	}
	return out
}

func TestEngineCleanTraffic(t *testing.T) {
	f := newCycleFeeder(t)
	for i := 0; i < 5; i++ {
		f.cycle(i)
	}
	if len(f.alerts) != 0 {
		t.Fatalf("clean traffic raised alerts: %+v", f.alerts)
	}
	if got := f.e.FramesProcessed(); got != 15 {
		t.Fatalf("frames processed = %d, want 15", got)
	}
	rep := f.e.MakeReport()
	if !rep.Summary.Pass {
		t.Fatalf("clean run did not pass: %+v", rep.Summary)
	}
}

func TestEngineSequenceViolation(t *testing.T) {
	f := newCycleFeeder(t)
	f.frame(0x100, steerData(5, 300))
	alerts := f.frame(0x300, []byte{7}) // throttle dropped
	if len(alerts) != 1 || alerts[0].Kind != KindSequence {
		t.Fatalf("alerts = %v, want one sequence alert", kindsOf(alerts))
	}
	a := alerts[0]
	if a.Severity != WARN {
		t.Fatalf("sequence severity = %s, want WARN", a.Severity)
	}
	if a.ExpectedID == nil || *a.ExpectedID != 0x200 {
		t.Fatalf("expected id = %v, want 0x200", a.ExpectedID)
	}
	if a.ID != 0x300 || a.BusTimeMs != 1_010 {
		t.Fatalf("alert stamped %03X at %d ms, want 300 at 1010", a.ID, a.BusTimeMs)
	}
}

func TestEngineDosAlert(t *testing.T) {
	f := newCycleFeeder(t)
	f.cycle(0)
	// The brake frame re-sent 2 ms after the genuine one.
	f.now -= 8
	alerts := f.frame(0x300, []byte{7})
	var dos *Alert
	for i := range alerts {
		if alerts[i].Kind == KindDos {
			dos = &alerts[i]
		}
	}
	if dos == nil {
		t.Fatalf("no dos alert in %v", kindsOf(alerts))
	}
	if dos.Severity != ERROR {
		t.Fatalf("dos severity = %s, want ERROR", dos.Severity)
	}
	if dos.IntervalMs == nil || *dos.IntervalMs != 2 {
		t.Fatalf("dos interval = %v, want 2", dos.IntervalMs)
	}
}

func TestEngineSpoofAlert(t *testing.T) {
	f := newCycleFeeder(t)
	f.cycle(0)
	alerts := f.frame(0x100, steerData(9, 500))
	if len(alerts) != 1 || alerts[0].Kind != KindSpoof {
		t.Fatalf("alerts = %v, want one spoof alert", kindsOf(alerts))
	}
	a := alerts[0]
	if a.Severity != ERROR || a.FrameType != FrameSteer || a.Field != "direction" {
		t.Fatalf("spoof alert = %+v", a)
	}
	if a.Observed == nil || *a.Observed != 9 {
		t.Fatalf("observed = %v, want 9", a.Observed)
	}
	if a.Domain != "[4,6]" {
		t.Fatalf("domain = %q, want [4,6]", a.Domain)
	}
}

func TestEngineReplayAlert(t *testing.T) {
	f := newCycleFeeder(t)
	f.cycle(0)
	f.cycle(1)
	// The first cycle verbatim, inside the replay window.
	f.frame(0x100, steerData(5, 300))
	f.frame(0x200, []byte{1, 0x01, 0x00})
	alerts := f.frame(0x300, []byte{7})
	if len(alerts) != 1 || alerts[0].Kind != KindReplay {
		t.Fatalf("alerts = %v, want one replay alert", kindsOf(alerts))
	}
	a := alerts[0]
	if a.Severity != ERROR {
		t.Fatalf("replay severity = %s, want ERROR", a.Severity)
	}
	if a.OriginalMs == nil || *a.OriginalMs != 1_020 {
		t.Fatalf("original ms = %v, want 1020 (brake of the first cycle)", a.OriginalMs)
	}
	if a.Fingerprint == "" {
		t.Fatalf("replay alert missing fingerprint")
	}
}

func TestEngineSpoofedCycleStillFingerprinted(t *testing.T) {
	// Domain checking and replay detection are independent: a cycle whose
	// values are spoofed is still packed, so replaying it is caught.
	f := newCycleFeeder(t)
	spoofed := func() []Alert {
		f.frame(0x100, steerData(9, 500))
		f.frame(0x200, []byte{1, 0x01, 0x00})
		return f.frame(0x300, []byte{7})
	}
	spoofed()
	alerts := spoofed()
	var sawReplay bool
	for _, a := range alerts {
		if a.Kind == KindReplay {
			sawReplay = true
		}
	}
	if !sawReplay {
		t.Fatalf("replayed spoofed cycle not flagged: %v", kindsOf(f.alerts))
	}
}

func TestEngineOversizedFramesNoFalseReplay(t *testing.T) {
	// Command frames may legally carry up to 8 payload bytes. Cycles that
	// differ in their command fields must never fingerprint-collide because
	// of the padding, and identical commands under different padding must
	// still match as a repeat.
	f := newCycleFeeder(t)
	pad := []byte{1, 2, 3, 4, 5}
	f.frame(0x100, append(steerData(5, 300), pad...))
	f.frame(0x200, []byte{1, 0x01, 0x00})
	f.frame(0x300, []byte{7})
	f.frame(0x100, append(steerData(6, 300), pad...))
	f.frame(0x200, []byte{1, 0x01, 0x00})
	f.frame(0x300, []byte{7})
	if len(f.alerts) != 0 {
		t.Fatalf("distinct padded cycles raised alerts: %v", kindsOf(f.alerts))
	}
	// Same steer command as the first cycle, different trailing bytes.
	f.frame(0x100, append(steerData(5, 300), 9, 9, 9))
	f.frame(0x200, []byte{1, 0x01, 0x00})
	alerts := f.frame(0x300, []byte{7})
	if len(alerts) != 1 || alerts[0].Kind != KindReplay {
		t.Fatalf("alerts = %v, want one replay alert", kindsOf(alerts))
	}
}

func TestEngineMalformedFrame(t *testing.T) {
	f := newCycleFeeder(t)
	alerts := f.frame(0x100, []byte{5})
	if len(alerts) != 1 || alerts[0].Kind != KindMalformed {
		t.Fatalf("alerts = %v, want one malformed alert", kindsOf(alerts))
	}
	if alerts[0].Severity != WARN {
		t.Fatalf("malformed severity = %s, want WARN", alerts[0].Severity)
	}
	// The truncated steer frame advanced the sequence but not the packer,
	// so completing the cycle yields no fingerprint to replay against.
	f.frame(0x200, []byte{1, 0x01, 0x00})
	f.frame(0x300, []byte{7})
	f.cycle(0)
	rep := f.e.MakeReport()
	if got := rep.Counts[KindReplay]; got != 0 {
		t.Fatalf("invalidated cycle produced %d replay alerts", got)
	}
}

func TestEngineBrokenCycleNeverStored(t *testing.T) {
	f := newCycleFeeder(t)
	f.cycle(0)
	// A cycle interrupted by a sequence violation must not leave a
	// fingerprint behind.
	f.frame(0x100, steerData(5, 400))
	f.frame(0x300, []byte{7}) // sequence violation, cycle invalidated
	f.frame(0x200, []byte{1, 0x01, 0x00})
	f.frame(0x300, []byte{7})
	before := len(f.e.Alerts())
	// Re-send the interrupted cycle cleanly. Its fingerprint was never
	// stored, so this completes without a replay alert.
	f.frame(0x100, steerData(5, 400))
	f.frame(0x200, []byte{1, 0x01, 0x00})
	f.frame(0x300, []byte{7})
	for _, a := range f.e.Alerts()[before:] {
		if a.Kind == KindReplay {
			t.Fatalf("replay alert against a never-completed cycle: %+v", a)
		}
	}
}

func TestEngineForeignIdentifier(t *testing.T) {
	f := newCycleFeeder(t)
	// An identifier outside the cycle breaks the expected order but has no
	// value domains. It still participates in rate tracking.
	alerts := f.frame(0x7DF, []byte{0xAA})
	if len(alerts) != 1 || alerts[0].Kind != KindSequence {
		t.Fatalf("alerts = %v, want one sequence alert", kindsOf(alerts))
	}
	f.now -= 9
	alerts = f.frame(0x7DF, []byte{0xAA})
	var sawDos bool
	for _, a := range alerts {
		if a.Kind == KindDos {
			sawDos = true
		}
	}
	if !sawDos {
		t.Fatalf("rapid foreign identifier not rate-flagged: %v", kindsOf(alerts))
	}
}

func TestEngineRejectsInvalidEvent(t *testing.T) {
	e, err := NewEngine(testConfig())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	_, err = e.Process(canbus.Event{ID: 0x800, Timestamp: 1})
	if !errors.Is(err, canbus.ErrInvalidID) {
		t.Fatalf("err = %v, want ErrInvalidID", err)
	}
	if got := e.FramesProcessed(); got != 0 {
		t.Fatalf("rejected event counted: frames = %d", got)
	}
}

func TestEngineSinkReceivesAlerts(t *testing.T) {
	f := newCycleFeeder(t)
	var forwarded []Alert
	f.e.SetSink(SinkFunc(func(a Alert) error {
		forwarded = append(forwarded, a)
		return nil
	}))
	f.frame(0x300, []byte{7})
	if len(forwarded) != 1 || forwarded[0].Kind != KindSequence {
		t.Fatalf("sink received %v, want one sequence alert", kindsOf(forwarded))
	}
}

func TestEngineReportSeverityTotals(t *testing.T) {
	f := newCycleFeeder(t)
	f.cycle(0)
	f.frame(0x100, steerData(9, 500)) // spoof, ERROR
	f.frame(0x200, []byte{1, 0x01, 0x00})
	f.frame(0x300, []byte{7})
	f.frame(0x200, []byte{1, 0x01, 0x00}) // sequence, WARN
	rep := f.e.MakeReport()
	if rep.Summary.Errors != 1 || rep.Summary.Warnings != 1 {
		t.Fatalf("summary = %+v, want 1 error and 1 warning", rep.Summary)
	}
	if rep.Summary.Pass {
		t.Fatalf("run with an ERROR alert passed")
	}
	if rep.Counts[KindSpoof] != 1 || rep.Counts[KindSequence] != 1 {
		t.Fatalf("counts = %v", rep.Counts)
	}
}

func TestWriteAlertsNDJSON(t *testing.T) {
	f := newCycleFeeder(t)
	f.frame(0x300, []byte{7})         // sequence
	f.frame(0x100, steerData(9, 500)) // spoof
	path := filepath.Join(t.TempDir(), "alerts.ndjson")
	if err := f.e.WriteAlertsNDJSON(path); err != nil {
		t.Fatalf("WriteAlertsNDJSON: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read alerts: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("wrote %d lines, want 2: %q", len(lines), data)
	}
	var first Alert
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("decode first line: %v", err)
	}
	if first.Kind != KindSequence {
		t.Fatalf("first line kind = %s, want sequence", first.Kind)
	}
}

func TestWriteAlertsNDJSONReportsCreateError(t *testing.T) {
	// A directory as the target path must surface an error, not report
	// success over a missing artifact.
	if err := WriteAlertsNDJSON(t.TempDir(), nil); err == nil {
		t.Fatalf("writing to a directory path succeeded")
	}
}

func TestNewEngineRejectsBadConfig(t *testing.T) {
	cfg := testConfig()
	cfg.ThrottleID = cfg.SteerID
	if _, err := NewEngine(cfg); err == nil {
		t.Fatalf("duplicate identifiers accepted")
	}
	cfg = testConfig()
	cfg.DosThresholdMs = 0
	if _, err := NewEngine(cfg); err == nil {
		t.Fatalf("zero dos threshold accepted")
	}
	cfg = testConfig()
	cfg.BrakeMode = Domain{Min: 9, Max: 7}
	if _, err := NewEngine(cfg); err == nil {
		t.Fatalf("inverted domain accepted")
	}
}
