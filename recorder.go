package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// castHeader is the first line of an asciinema v2 recording.
type castHeader struct {
	Version   int               `json:"version"`
	Width     int               `json:"width"`
	Height    int               `json:"height"`
	Timestamp int64             `json:"timestamp"`
	Env       map[string]string `json:"env,omitempty"`
}

// castEvent is one [time, type, data] line: "o" for output, "i" for input.
type castEvent struct {
	Time float64
	Type string
	Data string
}

func (e castEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{e.Time, e.Type, e.Data})
}

// Recorder writes a session as an asciinema v2 cast.
type Recorder struct {
	mu    sync.Mutex
	w     io.Writer
	file  *os.File // only set if we own the file
	start time.Time
	now   func() time.Time
}

func NewRecorder(path string) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create recording: %w", err)
	}
	r := NewRecorderWithWriter(f)
	r.file = f
	return r, nil
}

func NewRecorderWithWriter(w io.Writer) *Recorder {
	return &Recorder{w: w, start: time.Now(), now: time.Now}
}

// WriteHeader must be called once, before any event.
func (r *Recorder) WriteHeader(cols, rows int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	h := castHeader{
		Version:   2,
		Width:     cols,
		Height:    rows,
		Timestamp: r.start.Unix(),
	}
	if t := os.Getenv("TERM"); t != "" {
		h.Env = map[string]string{"TERM": t}
	}
	return r.writeLine(h)
}

func (r *Recorder) RecordOutput(data string) error {
	return r.record("o", data)
}

func (r *Recorder) RecordInput(data string) error {
	return r.record("i", data)
}

func (r *Recorder) record(kind, data string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	offset := r.now().Sub(r.start).Seconds()
	return r.writeLine(castEvent{Time: offset, Type: kind, Data: data})
}

func (r *Recorder) writeLine(v interface{}) error {
	if r.w == nil {
		return fmt.Errorf("recorder closed")
	}
	line, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal cast line: %w", err)
	}
	line = append(line, '\n')
	_, err = r.w.Write(line)
	return err
}

func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.w = nil
	if r.file != nil {
		err := r.file.Close()
		r.file = nil
		return err
	}
	return nil
}
