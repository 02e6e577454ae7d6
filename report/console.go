package report

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/use-agent/leakgate/models"
)

// ConsoleWriter renders a colored terminal summary of one run.
type ConsoleWriter struct {
	baseWriter
}

// NewConsoleWriter creates a ConsoleWriter that outputs to the given
// writer. Color codes are stripped automatically when the destination
// is not a terminal.
func NewConsoleWriter(output io.Writer) *ConsoleWriter {
	return &ConsoleWriter{baseWriter: newBaseWriter(output)}
}

func severityColor(sev models.Severity) *color.Color {
	switch sev {
	case models.SeverityCritical:
		return color.New(color.FgRed, color.Bold)
	case models.SeverityHigh:
		return color.New(color.FgRed)
	case models.SeverityMedium:
		return color.New(color.FgYellow)
	case models.SeverityLow:
		return color.New(color.FgBlue)
	default:
		return color.New(color.FgWhite)
	}
}

func statusColor(status models.ChannelStatus) *color.Color {
	switch status {
	case models.ChannelSuccess:
		return color.New(color.FgRed) // a successful channel means exposure
	case models.ChannelNegative:
		return color.New(color.FgGreen)
	default:
		return color.New(color.FgYellow)
	}
}

// Write renders the summary. The byte count covers the uncolored text
// only approximately; console output is for humans, not parsing.
func (w *ConsoleWriter) Write(report *models.RunReport) (int, error) {
	total := 0
	printf := func(c *color.Color, format string, args ...any) error {
		var n int
		var err error
		if c != nil {
			n, err = c.Fprintf(w.output, format, args...)
		} else {
			n, err = fmt.Fprintf(w.output, format, args...)
		}
		total += n
		return err
	}

	header := color.New(color.FgCyan, color.Bold)
	if err := printf(header, "Content exposure probe: %s\n", report.TargetURL); err != nil {
		return total, err
	}
	_ = printf(nil, "Run %s, generated %s\n", report.RunID,
		report.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	if report.Baseline.Known() {
		_ = printf(nil, "Teaser baseline: %d words / %d bytes\n",
			report.Baseline.Words, report.Baseline.Bytes)
	}
	if report.TimedOut {
		_ = printf(color.New(color.FgYellow), "Run deadline expired; results are partial.\n")
	}
	_ = printf(nil, "\nChannels:\n")
	for _, c := range report.Channels {
		line := fmt.Sprintf("  %-10s %-13s candidates=%d findings=%d",
			c.Channel, c.Status, c.Candidates, c.Findings)
		if c.Reason != "" {
			line += "  (" + truncate(c.Reason, 50) + ")"
		}
		if err := printf(statusColor(c.Status), "%s\n", line); err != nil {
			return total, err
		}
	}

	_ = printf(nil, "\nFindings: %d\n", len(report.Findings))
	for _, f := range report.Findings {
		sev := severityColor(f.Severity)
		if err := printf(sev, "  [%s] %s\n", f.Severity, f.Title); err != nil {
			return total, err
		}
		_ = printf(nil, "        id=%s source=%s words=%d score=%s\n",
			f.ID, f.Evidence.SourceURL,
			f.Evidence.Signal.WordCount, f.Evidence.Signal.Score)
		switch {
		case f.EvidenceUnavailable:
			_ = printf(color.New(color.FgYellow),
				"        artifact write failed, evidence unavailable\n")
		case f.ArtifactPath != "":
			_ = printf(nil, "        artifact=%s\n", f.ArtifactPath)
		}
	}
	if len(report.Findings) == 0 {
		_ = printf(color.New(color.FgGreen),
			"  No content exposure detected through any probe channel.\n")
	}
	return total, nil
}
