package report

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/zen-systems/planwright/pkg/pipeline"
)

const (
	transcriptPrefix = "workflow_outputs_"
	summaryPrefix    = "summary_"
	recordPrefix     = "run_"
	timestampLayout  = "20060102_150405"

	// maxSuffix bounds the search for a free file name within one second.
	maxSuffix = 1000
)

// Writer persists the results of a completed run.
type Writer struct {
	dir string
	now func() time.Time
}

// Option configures a Writer.
type Option func(*Writer)

// WithClock overrides the clock used for file names and the summary date.
func WithClock(now func() time.Time) Option {
	return func(w *Writer) {
		if now != nil {
			w.now = now
		}
	}
}

// NewWriter creates a writer rooted at dir.
func NewWriter(dir string, opts ...Option) (*Writer, error) {
	if dir == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	w := &Writer{dir: dir, now: time.Now}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Dir returns the output directory.
func (w *Writer) Dir() string {
	return w.dir
}

// Write renders the transcript and the summary for a finished run and
// returns both paths. Outputs missing any stage in specs are refused and
// nothing is written.
func (w *Writer) Write(outputs *pipeline.RunOutputs, specs []pipeline.StageSpec) (string, string, error) {
	if outputs == nil {
		return "", "", fmt.Errorf("run outputs are required")
	}
	if err := outputs.CompleteFor(specs); err != nil {
		return "", "", fmt.Errorf("refusing to write incomplete run: %w", err)
	}
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return "", "", fmt.Errorf("create output directory: %w", err)
	}

	stamp := w.now().Format(timestampLayout)
	transcript, summary, err := w.createPair(stamp)
	if err != nil {
		return "", "", err
	}
	fullPath, summaryPath := transcript.Name(), summary.Name()

	err = writeAndClose(transcript, func(out io.Writer) error {
		return renderTranscript(out, outputs, specs)
	})
	if err == nil {
		err = writeAndClose(summary, func(out io.Writer) error {
			return renderSummary(out, outputs, specs, w.now(), filepath.Base(fullPath))
		})
	} else {
		summary.Close()
	}
	if err != nil {
		os.Remove(fullPath)
		os.Remove(summaryPath)
		return "", "", err
	}

	return fullPath, summaryPath, nil
}

// createPair opens a transcript and summary sharing one stamp, adding a
// numeric suffix until both names are free.
func (w *Writer) createPair(stamp string) (*os.File, *os.File, error) {
	for n := 0; n < maxSuffix; n++ {
		name := stamp + suffix(n) + ".txt"

		transcript, err := createExclusive(filepath.Join(w.dir, transcriptPrefix+name))
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return nil, nil, err
		}

		summary, err := createExclusive(filepath.Join(w.dir, summaryPrefix+name))
		if err != nil {
			transcript.Close()
			os.Remove(transcript.Name())
			if errors.Is(err, os.ErrExist) {
				continue
			}
			return nil, nil, err
		}
		return transcript, summary, nil
	}
	return nil, nil, fmt.Errorf("no free output name for %s in %s", stamp, w.dir)
}

func createUnique(dir, prefix, stamp, ext string) (*os.File, error) {
	for n := 0; n < maxSuffix; n++ {
		f, err := createExclusive(filepath.Join(dir, prefix+stamp+suffix(n)+ext))
		if errors.Is(err, os.ErrExist) {
			continue
		}
		return f, err
	}
	return nil, fmt.Errorf("no free output name for %s%s in %s", prefix, stamp, dir)
}

func createExclusive(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, err
		}
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return f, nil
}

func writeAndClose(f *os.File, render func(io.Writer) error) error {
	if err := render(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", f.Name(), err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", f.Name(), err)
	}
	return nil
}

func suffix(n int) string {
	if n == 0 {
		return ""
	}
	return "_" + strconv.Itoa(n)
}
