package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rustlet-web/rustlet/config"
)

const archiveStamp = "2006-01-02_15-04-05"

// Sink is an append-only log file writer with size- and age-based rotation.
// It is not safe for concurrent use; the log queue consumer is its only
// writer.
type Sink struct {
	path    string
	maxSize int64
	maxAge  time.Duration
	file    *os.File
	size    int64
	opened  time.Time
	// mirror duplicates output to a console stream while non-nil. The main
	// sink keeps it until the server reaches the started state.
	mirror io.Writer
	now    func() time.Time
}

// NewSink opens (or creates) the active log file. Relative locations resolve
// against root. An empty location disables the sink: writes are dropped, only
// the mirror (if any) still sees them.
func NewSink(cfg config.Log, root string) (*Sink, error) {
	if len(cfg.Location) == 0 {
		return &Sink{now: time.Now}, nil
	}

	path := cfg.Location
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}

	s := &Sink{
		path:    path,
		maxSize: cfg.MaxSize,
		maxAge:  cfg.MaxAge,
		now:     time.Now,
	}

	if err := s.open(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Sink) open() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("log sink: %w", err)
	}

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("log sink: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return fmt.Errorf("log sink: %w", err)
	}

	s.file = file
	s.size = stat.Size()
	s.opened = s.now()
	return nil
}

// Write appends to the active file, rotating it first if a threshold has
// been crossed.
func (s *Sink) Write(b []byte) error {
	if s.mirror != nil {
		_, _ = s.mirror.Write(b)
	}

	if s.file == nil {
		return nil
	}

	if s.needsRotation() {
		if err := s.Rotate(); err != nil {
			return err
		}
	}

	n, err := s.file.Write(b)
	s.size += int64(n)

	return err
}

func (s *Sink) needsRotation() bool {
	if s.maxSize > 0 && s.size >= s.maxSize {
		return true
	}

	return s.maxAge > 0 && s.now().Sub(s.opened) >= s.maxAge
}

// Rotate closes the active file, archives it next to itself under a
// timestamped name and opens a fresh one.
func (s *Sink) Rotate() error {
	if s.file == nil {
		return nil
	}

	if err := s.file.Close(); err != nil {
		return fmt.Errorf("log sink: rotate: %w", err)
	}

	archive := fmt.Sprintf("%s.%s", s.path, s.now().Format(archiveStamp))
	for i := 1; exists(archive); i++ {
		archive = fmt.Sprintf("%s.%s.%d", s.path, s.now().Format(archiveStamp), i)
	}

	if err := os.Rename(s.path, archive); err != nil {
		return fmt.Errorf("log sink: rotate: %w", err)
	}

	return s.open()
}

// Mirror duplicates every write to w until Unmirror is called.
func (s *Sink) Mirror(w io.Writer) {
	s.mirror = w
}

// Unmirror restricts output to the file only.
func (s *Sink) Unmirror() {
	s.mirror = nil
}

func (s *Sink) Close() error {
	if s.file == nil {
		return nil
	}

	return s.file.Close()
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
