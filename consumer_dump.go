package mediagraph

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
)

// dumpSink records frames to a dump file named by the "resource" property.
// The file is created on the first Start and kept across restarts.
type dumpSink struct {
	profile *Profile

	mu   sync.Mutex
	file *os.File
	w    *DumpWriter
}

func (s *dumpSink) Open(_ context.Context, props *Properties) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w != nil {
		return nil
	}
	path := props.GetString("resource", "")
	if path == "" {
		return fmt.Errorf("dump consumer needs a file path: %w", ErrInvalidArgument)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w, err := NewDumpWriter(f, s.profile)
	if err != nil {
		f.Close()
		return err
	}
	s.file, s.w = f, w
	return nil
}

func (s *dumpSink) WriteFrame(_ context.Context, frame *Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w == nil {
		return fmt.Errorf("dump consumer: %w", ErrClosed)
	}
	return s.w.WriteFrame(frame)
}

// Flush writes buffered records to the file.
func (s *dumpSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w == nil {
		return nil
	}
	return s.w.Flush()
}

func (s *dumpSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := errors.Join(s.w.Flush(), s.file.Close())
	s.file, s.w = nil, nil
	return err
}

func init() {
	registerBuiltin(KindConsumer, "dump", func(bc *BuildContext) (Service, error) {
		return NewConsumer(bc.Profile, bc.ID, &dumpSink{profile: bc.Profile}, bc.Logger), nil
	})
}
