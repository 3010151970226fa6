package trace

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Tracer is a diagnostic sink. Implementations are safe for use by every
// method compilation of a run at once.
type Tracer interface {
	// Emit records ev if the level allows it.
	Emit(ev *Event)
	// Flush writes buffered events out.
	Flush() error
	// Close flushes and releases the output.
	Close() error
	// Level returns the verbosity the tracer was built with.
	Level() Level
	// Enabled reports whether Level is above LevelOff.
	Enabled() bool
}

// StorageMode selects where events go: a stream, the in-memory ring, or both.
type StorageMode uint8

const (
	ModeStream StorageMode = iota + 1 // written as they happen
	ModeRing                          // last RingSize events kept in memory
	ModeBoth
)

var modeNames = [...]string{
	ModeStream: "stream",
	ModeRing:   "ring",
	ModeBoth:   "both",
}

// String returns the string representation of StorageMode.
func (m StorageMode) String() string {
	if m >= ModeStream && int(m) < len(modeNames) {
		return modeNames[m]
	}
	return "unknown"
}

// ParseMode converts "stream", "ring" or "both" to a StorageMode; "" is
// ModeStream.
func ParseMode(s string) (StorageMode, error) {
	s = strings.ToLower(s)
	if s == "" {
		return ModeStream, nil
	}
	for m := ModeStream; m <= ModeBoth; m++ {
		if modeNames[m] == s {
			return m, nil
		}
	}
	return ModeStream, fmt.Errorf("invalid storage mode: %q (expected: stream|ring|both)", s)
}

func (m StorageMode) streams() bool { return m == ModeStream || m == ModeBoth }
func (m StorageMode) rings() bool   { return m == ModeRing || m == ModeBoth }

// DefaultRingSize is the ring capacity when Config.RingSize is not set. It
// holds the method events of a few hundred methods at LevelDetail.
const DefaultRingSize = 4096

// Config describes the tracer of a run.
type Config struct {
	Level      Level         // LevelOff with an OutputPath means LevelPhase
	Mode       StorageMode   // zero means ModeStream
	Format     Format        // FormatAuto picks by OutputPath extension
	Output     io.Writer     // overrides OutputPath
	OutputPath string        // "" or "-" is stderr
	RingSize   int           // zero means DefaultRingSize
	Heartbeat  time.Duration // progress interval of long runs, 0 disables
}

// New builds the tracer described by cfg, or Nop when tracing is off.
func New(cfg Config) (Tracer, error) {
	if cfg.Level == LevelOff && cfg.OutputPath != "" {
		cfg.Level = LevelPhase
	}
	if cfg.Level == LevelOff {
		return Nop, nil
	}
	if cfg.Mode == 0 {
		cfg.Mode = ModeStream
	}
	if !cfg.Mode.streams() && !cfg.Mode.rings() {
		return nil, fmt.Errorf("unknown storage mode: %v", cfg.Mode)
	}
	if cfg.RingSize <= 0 {
		cfg.RingSize = DefaultRingSize
	}

	var sinks []Tracer
	if cfg.Mode.streams() {
		w, err := openOutput(cfg)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, NewStreamTracer(w, cfg.Level, formatFor(cfg)))
	}
	if cfg.Mode.rings() {
		sinks = append(sinks, NewRingTracer(cfg.RingSize, cfg.Level))
	}
	if len(sinks) == 1 {
		return sinks[0], nil
	}
	return NewMultiTracer(cfg.Level, sinks...), nil
}

// formatFor resolves FormatAuto: NDJSON for .ndjson and .jsonl files, text
// otherwise.
func formatFor(cfg Config) Format {
	if cfg.Format != FormatAuto {
		return cfg.Format
	}
	switch {
	case strings.HasSuffix(cfg.OutputPath, ".ndjson"), strings.HasSuffix(cfg.OutputPath, ".jsonl"):
		return FormatNDJSON
	}
	return FormatText
}

func openOutput(cfg Config) (io.Writer, error) {
	switch {
	case cfg.Output != nil:
		return cfg.Output, nil
	case cfg.OutputPath == "" || cfg.OutputPath == "-":
		return noClose{os.Stderr}, nil
	}
	f, err := os.Create(cfg.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("open trace output: %w", err)
	}
	return f, nil
}

// noClose keeps Close of the tracer away from stderr.
type noClose struct{ io.Writer }
