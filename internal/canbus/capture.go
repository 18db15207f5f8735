package canbus

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

var (
	ErrBadRecord    = errors.New("canbus: malformed capture record")
	ErrExtendedID   = errors.New("canbus: extended (29-bit) identifiers are not supported")
	ErrRemoteFrame  = errors.New("canbus: remote frames carry no payload to inspect")
	ErrNoSuchDevice = errors.New("canbus: capture names no device")
)

// Reader decodes a candump-style capture log, one frame per line:
//
//	(1699999999.123456) can0 100#DEADBEEF
//
// The wall-clock capture timestamp is reduced to the engine's monotonic
// millisecond counter by truncation to 32 bits, matching the on-node clock
// the detector was written against.
type Reader struct {
	scanner   *bufio.Scanner
	closer    io.Closer
	line      int
	device    string
	bytesRead int64
}

// NewReader opens the capture log at path.
func NewReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r := NewReaderFrom(f)
	r.closer = f
	return r, nil
}

// NewReaderFrom wraps an already open capture stream.
func NewReaderFrom(r io.Reader) *Reader {
	return &Reader{scanner: bufio.NewScanner(r)}
}

// Close releases the underlying file, if any.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// Device reports the interface name seen on the most recent record.
func (r *Reader) Device() string {
	return r.device
}

// BytesRead reports how many capture bytes have been consumed, newline
// included. Callers use it for progress accounting against the file size.
func (r *Reader) BytesRead() int64 {
	return r.bytesRead
}

// Next returns the next frame event in the capture. It reports io.EOF once
// the log is exhausted. Blank lines are skipped.
func (r *Reader) Next() (Event, error) {
	for r.scanner.Scan() {
		r.line++
		r.bytesRead += int64(len(r.scanner.Bytes())) + 1
		line := strings.TrimSpace(r.scanner.Text())
		if line == "" {
			continue
		}
		ev, dev, err := parseRecord(line)
		if err != nil {
			return Event{}, fmt.Errorf("line %d: %w", r.line, err)
		}
		r.device = dev
		return ev, nil
	}
	if err := r.scanner.Err(); err != nil {
		return Event{}, err
	}
	return Event{}, io.EOF
}

func parseRecord(line string) (Event, string, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return Event{}, "", fmt.Errorf("%w: expected 3 fields, got %d", ErrBadRecord, len(fields))
	}
	ts, err := parseTimestamp(fields[0])
	if err != nil {
		return Event{}, "", err
	}
	device := fields[1]
	if device == "" {
		return Event{}, "", ErrNoSuchDevice
	}
	ev, err := parseFrame(fields[2])
	if err != nil {
		return Event{}, "", err
	}
	ev.Timestamp = ts
	return ev, device, nil
}

func parseTimestamp(field string) (uint32, error) {
	if len(field) < 2 || field[0] != '(' || field[len(field)-1] != ')' {
		return 0, fmt.Errorf("%w: timestamp %q", ErrBadRecord, field)
	}
	body := field[1 : len(field)-1]
	sec := body
	var usec uint64
	if dot := strings.IndexByte(body, '.'); dot >= 0 {
		sec = body[:dot]
		frac := body[dot+1:]
		if len(frac) != 6 {
			return 0, fmt.Errorf("%w: timestamp fraction %q", ErrBadRecord, frac)
		}
		v, err := strconv.ParseUint(frac, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: timestamp %q", ErrBadRecord, body)
		}
		usec = v
	}
	secs, err := strconv.ParseUint(sec, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: timestamp %q", ErrBadRecord, body)
	}
	ms := secs*1000 + usec/1000
	return uint32(ms), nil
}

func parseFrame(field string) (Event, error) {
	hash := strings.IndexByte(field, '#')
	if hash < 0 {
		return Event{}, fmt.Errorf("%w: frame %q", ErrBadRecord, field)
	}
	idPart := field[:hash]
	dataPart := field[hash+1:]
	if strings.HasPrefix(dataPart, "R") {
		return Event{}, ErrRemoteFrame
	}
	if len(idPart) == 8 {
		return Event{}, ErrExtendedID
	}
	if len(idPart) == 0 || len(idPart) > 3 {
		return Event{}, fmt.Errorf("%w: identifier %q", ErrBadRecord, idPart)
	}
	id, err := strconv.ParseUint(idPart, 16, 16)
	if err != nil {
		return Event{}, fmt.Errorf("%w: identifier %q", ErrBadRecord, idPart)
	}
	if id > MaxStandardID {
		return Event{}, fmt.Errorf("%w: 0x%X", ErrInvalidID, id)
	}
	if len(dataPart)%2 != 0 {
		return Event{}, fmt.Errorf("%w: odd payload %q", ErrBadRecord, dataPart)
	}
	data, err := hex.DecodeString(dataPart)
	if err != nil {
		return Event{}, fmt.Errorf("%w: payload %q", ErrBadRecord, dataPart)
	}
	if len(data) > MaxDataLen {
		return Event{}, fmt.Errorf("%w: %d", ErrPayloadTooLong, len(data))
	}
	return Event{ID: uint16(id), Data: data}, nil
}

// Writer emits frame events in the same candump text format the Reader
// accepts. The traffic generator and tests use it to build capture files.
type Writer struct {
	w      *bufio.Writer
	closer io.Closer
	device string
}

// NewWriter creates the capture file at path, truncating any existing file.
func NewWriter(path, device string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := NewWriterTo(f, device)
	w.closer = f
	return w, nil
}

// NewWriterTo wraps an already open destination stream.
func NewWriterTo(w io.Writer, device string) *Writer {
	if device == "" {
		device = "can0"
	}
	return &Writer{w: bufio.NewWriter(w), device: device}
}

// Write appends one frame record.
func (w *Writer) Write(ev Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	ms := uint64(ev.Timestamp)
	_, err := fmt.Fprintf(w.w, "(%d.%06d) %s %03X#%s\n",
		ms/1000, (ms%1000)*1000, w.device, ev.ID,
		strings.ToUpper(hex.EncodeToString(ev.Data)))
	return err
}

// Close flushes buffered records and closes the underlying file, if any.
func (w *Writer) Close() error {
	if err := w.w.Flush(); err != nil {
		return err
	}
	if w.closer == nil {
		return nil
	}
	return w.closer.Close()
}

// WriteCapture writes the given events to a new capture file at path.
func WriteCapture(path, device string, events []Event) error {
	w, err := NewWriter(path, device)
	if err != nil {
		return err
	}
	for _, ev := range events {
		if err := w.Write(ev); err != nil {
			w.Close()
			return err
		}
	}
	return w.Close()
}
