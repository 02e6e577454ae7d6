package store

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestPut_WriteOncePerFingerprint(t *testing.T) {
	s := newTestStore(t)
	content := []byte("<html><body><article><p>exposed body</p></article></body></html>")

	first, err := s.Put(content, "text/html", "exposed body")
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Len(t, first.Fingerprint, 64)

	second, err := s.Put(content, "text/html", "exposed body")
	require.NoError(t, err)
	assert.False(t, second.Created, "second Put of identical bytes must be a no-op")
	assert.Equal(t, first.Fingerprint, second.Fingerprint)
	assert.Equal(t, first.Path, second.Path)
	assert.Equal(t, 1, s.Len())
}

func TestPut_DistinctPayloads(t *testing.T) {
	s := newTestStore(t)

	a, err := s.Put([]byte("<article>first fixture payload</article>"), "text/html", "first fixture payload")
	require.NoError(t, err)
	b, err := s.Put([]byte("<article>a wholly different second payload</article>"), "text/html", "a wholly different second payload")
	require.NoError(t, err)

	assert.NotEqual(t, a.Fingerprint, b.Fingerprint)
	assert.Equal(t, 2, s.Len())
}

func TestPut_ConcurrentSameContent(t *testing.T) {
	s := newTestStore(t)
	content := []byte("<article>raced content</article>")

	var wg sync.WaitGroup
	created := make(chan bool, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ref, err := s.Put(content, "text/html", "raced content")
			if err != nil {
				t.Error(err)
				return
			}
			created <- ref.Created
		}()
	}
	wg.Wait()
	close(created)

	n := 0
	for c := range created {
		if c {
			n++
		}
	}
	assert.Equal(t, 1, n, "exactly one goroutine must perform the write")
	assert.Equal(t, 1, s.Len())
}

func TestPut_ExtensionByContentType(t *testing.T) {
	s := newTestStore(t)

	html, err := s.Put([]byte("<p>x</p>"), "text/html; charset=utf-8", "")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(html.Path, ".html"))

	jsonRef, err := s.Put([]byte(`{"articleBody":"x"}`), "application/json", "")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(jsonRef.Path, ".json"))
}

func TestPut_MarkdownSidecar(t *testing.T) {
	s := newTestStore(t)

	ref, err := s.Put([]byte("<html><body><h1>Title</h1><p>Body text.</p></body></html>"), "text/html", "Title Body text.")
	require.NoError(t, err)

	sidecar := filepath.Join(s.Dir(), ref.Fingerprint+".md")
	data, err := os.ReadFile(sidecar)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Title")
	assert.Contains(t, string(data), "Body text.")
}

func TestPut_NearDuplicateDetection(t *testing.T) {
	s := newTestStore(t)

	text := strings.Repeat("the committee approved the harbor expansion in a late vote ", 40)
	first, err := s.Put([]byte("<article>"+text+"</article>"), "text/html", text)
	require.NoError(t, err)
	require.Empty(t, first.NearDuplicateOf)

	// Same text with extra chrome: distinct bytes, near-identical words.
	second, err := s.Put([]byte("<article>"+text+"<footer>share this</footer></article>"), "text/html", text+" share this")
	require.NoError(t, err)
	assert.True(t, second.Created, "distinct bytes must store a second artifact")
	assert.Equal(t, first.Fingerprint, second.NearDuplicateOf)
}

func TestPaths_Snapshot(t *testing.T) {
	s := newTestStore(t)
	ref, err := s.Put([]byte("<p>one</p>"), "text/html", "one")
	require.NoError(t, err)

	paths := s.Paths()
	assert.Equal(t, ref.Path, paths[ref.Fingerprint])

	// Mutating the snapshot must not affect the store.
	delete(paths, ref.Fingerprint)
	assert.Equal(t, 1, s.Len())
}
