package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/fleetsignal/idsclient/internal/model"
)

// ErrNoCheckinFile is returned from Checkin when the File transport was
// not given a second, check-in-document-holding file.
var ErrNoCheckinFile = errors.New("transport: no check-in file configured")

// File writes one JSON-encoded batch per line to outputPath, flushing
// each write, and optionally reads a single JSON check-in document from a
// second file, re-reading it from the start on every call so external
// tooling can rewrite it between check-ins.
type File struct {
	mu         sync.Mutex
	output     *os.File
	writer     *bufio.Writer
	outputPath string

	checkinPath string
	checkinFile *os.File
}

// NewFile opens outputPath for writing (truncating any existing content,
// matching a fresh diagnostics log per run) and, if checkinPath is
// non-empty, opens it read-only for repeated Checkin calls.
func NewFile(outputPath string, checkinPath string) (*File, error) {
	out, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("transport: create output file %q: %w", outputPath, err)
	}

	f := &File{
		output:     out,
		writer:     bufio.NewWriter(out),
		outputPath: outputPath,
	}

	if checkinPath != "" {
		cf, err := os.Open(checkinPath)
		if err != nil {
			out.Close()
			return nil, fmt.Errorf("transport: open check-in file %q: %w", checkinPath, err)
		}
		f.checkinFile = cf
		f.checkinPath = checkinPath
	}

	return f, nil
}

func (f *File) Submit(_ context.Context, batch model.Batch) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("transport: marshal batch: %w", err)
	}
	if _, err := f.writer.Write(data); err != nil {
		return fmt.Errorf("transport: write %q: %w", f.outputPath, err)
	}
	if err := f.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("transport: write %q: %w", f.outputPath, err)
	}
	if err := f.writer.Flush(); err != nil {
		return fmt.Errorf("transport: flush %q: %w", f.outputPath, err)
	}
	return nil
}

func (f *File) Checkin(_ context.Context, _ *model.Map[any]) (*model.Checkin, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.checkinFile == nil {
		return nil, ErrNoCheckinFile
	}
	if _, err := f.checkinFile.Seek(0, 0); err != nil {
		return nil, fmt.Errorf("transport: seek check-in file %q: %w", f.checkinPath, err)
	}

	var checkin model.Checkin
	if err := json.NewDecoder(f.checkinFile).Decode(&checkin); err != nil {
		return nil, fmt.Errorf("transport: parse check-in file %q: %w", f.checkinPath, err)
	}
	return &checkin, nil
}

// Close releases the underlying file handles.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var errs []error
	if err := f.writer.Flush(); err != nil {
		errs = append(errs, err)
	}
	if err := f.output.Close(); err != nil {
		errs = append(errs, err)
	}
	if f.checkinFile != nil {
		if err := f.checkinFile.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
