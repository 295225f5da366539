package reconcile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"golang.org/x/text/unicode/norm"

	"github.com/jfroche/jenkins-job-builder/internal/entity"
)

// Sink receives rendered entities during a render-only run. Write returns
// stop=true when the consumer is gone and remaining entities should be
// skipped silently (not an error condition).
type Sink interface {
	Write(e entity.Entity) (stop bool, err error)
}

// StreamSink concatenates entity XML documents onto one writer, typically
// stdout. A broken pipe from the consumer (e.g. piping into `head`) is a
// normal stop signal, not a failure.
type StreamSink struct {
	w io.Writer
}

// NewStreamSink wraps a writer.
func NewStreamSink(w io.Writer) *StreamSink {
	return &StreamSink{w: w}
}

// Write sends one entity's XML to the stream.
func (s *StreamSink) Write(e entity.Entity) (bool, error) {
	if _, err := s.w.Write(e.XML); err != nil {
		if isBrokenPipe(err) {
			return true, nil
		}

		return false, fmt.Errorf("writing %s %q: %w", e.Kind, e.Name, err)
	}

	return false, nil
}

// DirSink writes one file per entity, named by entity name, into a
// directory. Entity names are NFC-normalized so the same definition yields
// the same filename on every platform.
type DirSink struct {
	dir string
}

// NewDirSink creates the directory (recursively) if needed.
func NewDirSink(dir string) (*DirSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory %s: %w", dir, err)
	}

	return &DirSink{dir: dir}, nil
}

// Write stores one entity's XML as <dir>/<name>.
func (s *DirSink) Write(e entity.Entity) (bool, error) {
	path := filepath.Join(s.dir, norm.NFC.String(e.Name))

	if err := os.WriteFile(path, e.XML, 0o644); err != nil {
		return false, fmt.Errorf("writing %s: %w", path, err)
	}

	return false, nil
}

// isBrokenPipe reports whether a write failed because the reading end went
// away.
func isBrokenPipe(err error) bool {
	return errors.Is(err, syscall.EPIPE) || errors.Is(err, io.ErrClosedPipe)
}
