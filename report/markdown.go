package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/markdown"

	"github.com/use-agent/leakgate/models"
)

// MarkdownWriter outputs reports in Markdown, for documentation and
// sharing.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given
// writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the full report in Markdown format.
func (w *MarkdownWriter) Write(report *models.RunReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSummary(md, report)
	w.writeChannels(md, report)
	w.writeFindings(md, report)
	w.writeArtifacts(md, report)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *models.RunReport) {
	md.H1("Content Exposure Report")
	md.PlainText("")

	status := "Complete"
	if report.TimedOut {
		status = "Timed out (partial results)"
	}
	baseline := "not captured"
	if report.Baseline.Known() {
		baseline = fmt.Sprintf("%d words / %d bytes",
			report.Baseline.Words, report.Baseline.Bytes)
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Target", "`" + report.TargetURL + "`"},
			{"Run", report.RunID},
			{"Generated", report.GeneratedAt.Format("2006-01-02 15:04:05 MST")},
			{"Teaser baseline", baseline},
			{"Status", status},
		},
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *models.RunReport) {
	md.H2("Severity Summary")
	md.PlainText("")

	counts := report.CountBySeverity()
	md.Table(markdown.TableSet{
		Header: []string{"Severity", "Count"},
		Rows: [][]string{
			{"Critical", strconv.Itoa(counts[models.SeverityCritical.String()])},
			{"High", strconv.Itoa(counts[models.SeverityHigh.String()])},
			{"Medium", strconv.Itoa(counts[models.SeverityMedium.String()])},
			{"Low", strconv.Itoa(counts[models.SeverityLow.String()])},
			{"Info", strconv.Itoa(counts[models.SeverityInfo.String()])},
			{"**Total**", "**" + strconv.Itoa(len(report.Findings)) + "**"},
		},
	})
	md.PlainText("")

	max, any := report.MaxSeverity()
	switch {
	case !any:
		md.Tip("No content exposure detected through any probe channel.")
	case max >= models.SeverityCritical:
		md.Cautionf("Gated content is directly retrievable. %d finding(s) at Critical severity.",
			counts[models.SeverityCritical.String()])
	case max >= models.SeverityHigh:
		md.Warningf("Gated content leaks through client-side gaps. %d finding(s) at High severity.",
			counts[models.SeverityHigh.String()])
	default:
		md.Note("Only lower-severity exposure paths were found.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeChannels(md *markdown.Markdown, report *models.RunReport) {
	md.H2("Channel Outcomes")
	md.PlainText("")

	rows := make([][]string, len(report.Channels))
	for i, c := range report.Channels {
		reason := c.Reason
		if reason == "" {
			reason = "-"
		}
		rows[i] = []string{
			c.Channel,
			string(c.Status),
			strconv.Itoa(c.Candidates),
			strconv.Itoa(c.Findings),
			truncate(reason, 60),
			c.Elapsed.Round(1e6).String(),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Channel", "Status", "Candidates", "Findings", "Reason", "Elapsed"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeFindings(md *markdown.Markdown, report *models.RunReport) {
	md.H2("Findings")
	md.PlainText("")

	if len(report.Findings) == 0 {
		md.PlainText("No findings.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(report.Findings))
	for i, f := range report.Findings {
		rows[i] = []string{
			"`" + f.ID + "`",
			f.Severity.String(),
			truncate(f.Title, 50),
			truncate(f.Evidence.SourceURL, 50),
			strconv.Itoa(f.Evidence.Signal.WordCount),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"ID", "Severity", "Title", "Source", "Words"},
		Rows:   rows,
	})
	md.PlainText("")

	for _, f := range report.Findings {
		md.H3(f.Title)
		md.PlainText("")
		details := []string{
			"Channel: " + f.Channel,
			"Source: " + f.Evidence.SourceURL,
			fmt.Sprintf("Signal: %d words, density %.2f, score %s",
				f.Evidence.Signal.WordCount, f.Evidence.Signal.TextDensity,
				f.Evidence.Signal.Score),
		}
		if f.Evidence.Note != "" {
			details = append(details, "Note: "+f.Evidence.Note)
		}
		if f.EvidenceUnavailable {
			details = append(details, "Artifact: write failed, evidence unavailable")
		} else if f.ArtifactPath != "" {
			details = append(details, "Artifact: `"+f.ArtifactPath+"`")
		}
		if f.NearDuplicateOf != "" {
			details = append(details, "Near-duplicate of: `"+f.NearDuplicateOf+"`")
		}
		md.BulletList(details...)
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeArtifacts(md *markdown.Markdown, report *models.RunReport) {
	if len(report.Artifacts) == 0 {
		return
	}
	md.H2("Stored Artifacts")
	md.PlainText("")
	rows := make([][]string, 0, len(report.Artifacts))
	for fp, path := range report.Artifacts {
		rows = append(rows, []string{"`" + truncate(fp, 16) + "`", "`" + path + "`"})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Fingerprint", "Path"},
		Rows:   rows,
	})
	md.PlainText("")
}
