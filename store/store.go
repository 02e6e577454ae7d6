// Package store persists content artifacts addressed by their sha256
// fingerprint. The store exclusively owns artifact persistence: however
// many channels recover the same bytes, at most one artifact is written.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"log/slog"

	"github.com/use-agent/leakgate/fingerprint"
	"github.com/use-agent/leakgate/models"
)

// Ref describes a stored (or deduplicated) artifact.
type Ref struct {
	// Fingerprint is the sha256 hex of the content bytes.
	Fingerprint string

	// Path is the artifact file location.
	Path string

	// Created is false when an artifact with this fingerprint already
	// existed and no write happened.
	Created bool

	// NearDuplicateOf is the fingerprint of a previously stored artifact
	// whose text is a SimHash near-duplicate, empty if none.
	NearDuplicateOf string
}

type simEntry struct {
	fp   string
	hash uint64
}

// Store is a content-addressed artifact store backed by a directory.
// It is safe for concurrent use: Put holds a mutex across the
// check-then-write so two channels discovering the same bytes at the
// same time produce exactly one file.
type Store struct {
	dir string

	mu       sync.Mutex
	index    map[string]string // fingerprint -> path
	simIndex []simEntry

	mdConverter *converter.Converter
}

// New creates a Store rooted at dir, creating the directory if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, models.NewProbeError(models.ErrCodeArtifactWrite,
			"failed to create artifact directory", err)
	}
	return &Store{
		dir:         dir,
		index:       make(map[string]string),
		mdConverter: newMarkdownConverter(),
	}, nil
}

// Dir returns the artifact directory.
func (s *Store) Dir() string { return s.dir }

// Put persists content under its fingerprint. If an artifact with the
// same fingerprint already exists the call is a no-op and the existing
// ref is returned with Created=false.
//
// On a write failure the fingerprint is NOT recorded, so a later Put of
// the same bytes may retry; the caller decides what the failure means
// for an already-built finding.
func (s *Store) Put(content []byte, contentType, plainText string) (Ref, error) {
	fp := fingerprint.Sum(content)

	s.mu.Lock()
	defer s.mu.Unlock()

	if path, ok := s.index[fp]; ok {
		return Ref{Fingerprint: fp, Path: path, Created: false}, nil
	}

	path := filepath.Join(s.dir, fp+extFor(contentType))
	if err := os.WriteFile(path, content, 0o640); err != nil {
		return Ref{Fingerprint: fp}, models.NewProbeError(models.ErrCodeArtifactWrite,
			fmt.Sprintf("failed to write artifact %s", fingerprint.Short(fp)), err)
	}
	s.index[fp] = path

	// Markdown sidecar for HTML artifacts, best-effort: the raw artifact
	// is the evidence, the sidecar is for human review.
	if isHTML(contentType) {
		if md, err := s.mdConverter.ConvertString(string(content)); err == nil {
			if err := os.WriteFile(filepath.Join(s.dir, fp+".md"), []byte(md), 0o640); err != nil {
				slog.Warn("markdown sidecar write failed", "fingerprint", fingerprint.Short(fp), "error", err)
			}
		}
	}

	ref := Ref{Fingerprint: fp, Path: path, Created: true}

	if plainText != "" {
		sh := fingerprint.SimHash(plainText)
		for _, e := range s.simIndex {
			if fingerprint.NearDuplicate(sh, e.hash) {
				ref.NearDuplicateOf = e.fp
				break
			}
		}
		s.simIndex = append(s.simIndex, simEntry{fp: fp, hash: sh})
	}

	return ref, nil
}

// Paths returns a snapshot of the fingerprint -> artifact path map.
func (s *Store) Paths() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.index))
	for fp, path := range s.index {
		out[fp] = path
	}
	return out
}

// Len returns the number of stored artifacts.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.index)
}

func extFor(contentType string) string {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "json"):
		return ".json"
	case strings.Contains(ct, "text/plain"):
		return ".txt"
	default:
		return ".html"
	}
}

func isHTML(contentType string) bool {
	ct := strings.ToLower(contentType)
	return ct == "" || strings.Contains(ct, "html")
}

// newMarkdownConverter builds a reusable goroutine-safe converter: the
// base plugin strips script/style/head noise, commonmark renders the
// standard constructs, and the table plugin keeps tabular evidence
// readable in the sidecar.
func newMarkdownConverter() *converter.Converter {
	return converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(
				table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
			),
		),
	)
}
