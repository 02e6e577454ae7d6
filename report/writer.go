// Package report renders probe run reports for terminals, files, and
// tool integration.
package report

import (
	"io"

	"github.com/use-agent/leakgate/models"
)

// Writer outputs one run report to a configured destination.
// Implementations render different formats; all consume the same
// models.RunReport.
type Writer interface {
	// Write outputs the report. Returns the number of bytes written and
	// any error encountered.
	Write(report *models.RunReport) (int, error)
}

// MultiWriter writes one report to several Writers, for runs that want
// both a terminal summary and a file copy. It stops on the first error.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer fanning out to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to every configured Writer and returns the
// total bytes written.
func (m *MultiWriter) Write(report *models.RunReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter holds the shared output destination.
type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// truncate shortens s to max runes for table cells.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
