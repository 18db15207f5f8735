package detect

import (
	"errors"
	"fmt"
	"io"
	"os"

	"example.com/canwatch/internal/canbus"
	"example.com/canwatch/internal/common"
)

// AnalyzeCapture runs every frame of the capture log at path through the
// engine and returns the resulting report. Metrics, when non-nil, receive
// per-frame throughput accounting.
func AnalyzeCapture(e *Engine, path string, m *common.Metrics) (Report, error) {
	if stat, err := os.Stat(path); err == nil && m != nil {
		m.SetTotalBytes(stat.Size())
	}
	r, err := canbus.NewReader(path)
	if err != nil {
		return Report{}, err
	}
	defer r.Close()
	if m != nil {
		m.Start()
		defer m.Stop()
	}
	var consumed int64
	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Report{}, fmt.Errorf("read capture: %w", err)
		}
		alerts, err := e.Process(ev)
		if err != nil {
			return Report{}, fmt.Errorf("process frame 0x%03X: %w", ev.ID, err)
		}
		if m != nil {
			m.AddFrame(r.BytesRead() - consumed)
			consumed = r.BytesRead()
			m.AddAlerts(len(alerts))
		}
	}
	return e.MakeReport(), nil
}
