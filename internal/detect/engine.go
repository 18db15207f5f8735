package detect

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"example.com/canwatch/internal/canbus"
)

// Engine classifies one frame event at a time, driving the sequence, rate,
// value, cycle and replay detectors in fixed order and emitting zero or more
// alerts per event. All mutable detector state is owned by the engine
// instance; a host embedding it from multiple goroutines must serialize
// access itself.
type Engine struct {
	cfg    Config
	seq    *SequenceMonitor
	rate   *RateTracker
	values *ValueValidator
	packer *CyclePacker
	replay *ReplayDetector

	sink   AlertSink
	alerts []Alert
	frames int
}

// NewEngine builds an engine for the given configuration.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}
	return &Engine{
		cfg:    cfg,
		seq:    NewSequenceMonitor(cfg.SteerID, cfg.ThrottleID, cfg.BrakeID),
		rate:   NewRateTracker(cfg.DosThresholdMs),
		values: NewValueValidator(cfg),
		packer: NewCyclePacker(),
		replay: NewReplayDetector(cfg.ReplayWindowMs, cfg.HistoryCapacity),
	}, nil
}

// SetSink installs a sink that receives each alert as it is raised, in
// addition to the alerts returned from Process. A nil sink disables
// forwarding.
func (e *Engine) SetSink(s AlertSink) {
	e.sink = s
}

// Config returns the engine's fixed configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Process runs one frame event through every detector. The returned alerts
// are advisory: no anomaly halts processing, and the event always updates
// recency and cycle accounting exactly as a clean frame would. Process
// returns an error only for structurally invalid events or a failing sink.
func (e *Engine) Process(ev canbus.Event) ([]Alert, error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	e.frames++
	var alerts []Alert

	advance := e.seq.Observe(ev.ID)
	if !advance {
		expected := e.seq.Expected()
		alerts = append(alerts, Alert{
			Kind:       KindSequence,
			Severity:   WARN,
			ExpectedID: uint16Ptr(expected),
			Message:    fmt.Sprintf("expected 0x%03X, observed 0x%03X", expected, ev.ID),
		})
		e.packer.Invalidate()
	}

	if interval, dos := e.rate.Observe(ev.ID, ev.Timestamp); dos {
		alerts = append(alerts, Alert{
			Kind:       KindDos,
			Severity:   ERROR,
			IntervalMs: uint32Ptr(interval),
			Message:    fmt.Sprintf("retransmission after %d ms, threshold %d ms", interval, e.cfg.DosThresholdMs),
		})
	}

	if ft, ok := e.cfg.FrameTypeOf(ev.ID); ok {
		violations, err := e.values.Check(ft, ev.Data)
		switch {
		case errors.Is(err, ErrShortPayload):
			alerts = append(alerts, Alert{
				Kind:      KindMalformed,
				Severity:  WARN,
				FrameType: ft,
				Message:   err.Error(),
			})
			e.packer.Invalidate()
		case err != nil:
			return nil, err
		default:
			for _, v := range violations {
				alerts = append(alerts, Alert{
					Kind:      KindSpoof,
					Severity:  ERROR,
					FrameType: ft,
					Field:     v.Field,
					Observed:  uint16Ptr(v.Observed),
					Domain:    v.Domain.String(),
					Message:   fmt.Sprintf("%s %s %d outside %s", ft, v.Field, v.Observed, v.Domain),
				})
			}
			if advance {
				if fp, complete := e.packer.Feed(ft, ev.Data); complete {
					if orig, replay := e.replay.CheckAndStore(fp, ev.Timestamp); replay {
						alerts = append(alerts, Alert{
							Kind:        KindReplay,
							Severity:    ERROR,
							Fingerprint: FormatFingerprint(fp),
							OriginalMs:  uint32Ptr(orig),
							Message:     fmt.Sprintf("cycle %s first seen at %d ms repeated at %d ms", FormatFingerprint(fp), orig, ev.Timestamp),
						})
					}
				}
			}
		}
	}

	now := time.Now()
	for i := range alerts {
		alerts[i].Ts = now
		alerts[i].ID = ev.ID
		alerts[i].BusTimeMs = ev.Timestamp
	}
	e.alerts = append(e.alerts, alerts...)
	if e.sink != nil {
		for _, a := range alerts {
			if err := e.sink.Emit(a); err != nil {
				return alerts, err
			}
		}
	}
	return alerts, nil
}

// Alerts returns every alert raised so far, in emission order.
func (e *Engine) Alerts() []Alert {
	return e.alerts
}

// FramesProcessed reports how many events Process has accepted.
func (e *Engine) FramesProcessed() int {
	return e.frames
}

// WriteAlertsNDJSON writes the accumulated alerts to path, one JSON object
// per line.
func (e *Engine) WriteAlertsNDJSON(path string) error {
	return WriteAlertsNDJSON(path, e.alerts)
}

// WriteAlertsNDJSON writes alerts to a new file at path, one JSON object per
// line. Every write is checked so a short write surfaces as an error instead
// of a silently truncated artifact.
func WriteAlertsNDJSON(path string, alerts []Alert) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for _, a := range alerts {
		b, err := json.Marshal(a)
		if err != nil {
			f.Close()
			return err
		}
		if _, err := w.Write(b); err != nil {
			f.Close()
			return err
		}
		if err := w.WriteByte('\n'); err != nil {
			f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
