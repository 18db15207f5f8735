package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSha256OfFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.log")
	if err := os.WriteFile(path, []byte("abc"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	digest, size, err := Sha256OfFile(path)
	if err != nil {
		t.Fatalf("Sha256OfFile: %v", err)
	}
	if want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"; digest != want {
		t.Fatalf("digest = %s, want %s", digest, want)
	}
	if size != 3 {
		t.Fatalf("size = %d, want 3", size)
	}
}

func TestSha256OfFileMissing(t *testing.T) {
	if _, _, err := Sha256OfFile(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Fatalf("missing file accepted")
	}
}

func TestSessionLogAppendAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "sessions.jsonl")
	log := NewSessionLog(path)
	entries := []SessionEntry{
		{SessionID: "a", Capture: "clean.log", Profile: "default", Frames: 24, Pass: true},
		{SessionID: "b", Capture: "dos.log", Profile: "default", Frames: 10, Alerts: 2, Errors: 1, Warnings: 1},
	}
	for _, e := range entries {
		if err := log.Append(e); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	got, err := ReadSessionLog(path)
	if err != nil {
		t.Fatalf("ReadSessionLog: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("read %d entries, want 2", len(got))
	}
	if got[0].SessionID != "a" || !got[0].Pass || got[1].Errors != 1 {
		t.Fatalf("entries = %+v", got)
	}
	if got[0].Ts.IsZero() {
		t.Fatalf("append did not stamp a timestamp")
	}
}

func TestSessionLogRejectsMissingID(t *testing.T) {
	log := NewSessionLog(filepath.Join(t.TempDir(), "sessions.jsonl"))
	if err := log.Append(SessionEntry{Capture: "x.log"}); err == nil {
		t.Fatalf("entry without sessionId accepted")
	}
}

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.Start()
	m.SetTotalBytes(200)
	m.AddFrame(50)
	m.AddFrame(50)
	m.AddAlerts(3)
	m.Stop()
	s := m.Snapshot()
	if s.Frames != 2 || s.Bytes != 100 || s.Alerts != 3 {
		t.Fatalf("snapshot = %+v", s)
	}
	if got := s.Completion(); got != 0.5 {
		t.Fatalf("completion = %f, want 0.5", got)
	}
	if s.Duration <= 0 {
		t.Fatalf("duration = %v", s.Duration)
	}
}

func TestMetricsCompletionClamps(t *testing.T) {
	s := MetricsSnapshot{Bytes: 300, TotalBytes: 200}
	if got := s.Completion(); got != 1 {
		t.Fatalf("completion = %f, want 1", got)
	}
	s = MetricsSnapshot{Bytes: 100}
	if got := s.Completion(); got != 0 {
		t.Fatalf("completion without total = %f, want 0", got)
	}
}

func TestFormatBytes(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.00 KiB"},
		{5 * 1024 * 1024, "5.00 MiB"},
	}
	for _, tc := range cases {
		if got := FormatBytes(tc.in); got != tc.want {
			t.Fatalf("FormatBytes(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFramesPerSecond(t *testing.T) {
	s := MetricsSnapshot{Frames: 100, Duration: 2 * time.Second}
	if got := s.FramesPerSecond(); got != 50 {
		t.Fatalf("frames/s = %f, want 50", got)
	}
	s = MetricsSnapshot{Frames: 100}
	if got := s.FramesPerSecond(); got != 0 {
		t.Fatalf("frames/s without duration = %f, want 0", got)
	}
}
