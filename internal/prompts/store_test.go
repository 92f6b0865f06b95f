package prompts

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgrana2/prompt-manager/internal/storage"
)

type failingStore struct {
	*storage.MemoryStore
}

func (f failingStore) Set(ctx context.Context, key, value string) error {
	return errors.New("disk full")
}

func newStore(t *testing.T, initial ...string) (*Store, *storage.MemoryStore) {
	t.Helper()
	kv := storage.NewMemoryStore()
	s, err := Load(context.Background(), kv, nil)
	require.NoError(t, err)
	for _, p := range initial {
		require.NoError(t, s.Add(context.Background(), p))
	}
	return s, kv
}

func TestLoad_MissingKeyStartsEmpty(t *testing.T) {
	s, _ := newStore(t)
	assert.Empty(t, s.List())
}

func TestLoad_MalformedValueStartsEmpty(t *testing.T) {
	kv := storage.NewMemoryStore()
	require.NoError(t, kv.Set(context.Background(), storage.KeyPrompts, `{"not":"an array"}`))

	s, err := Load(context.Background(), kv, nil)
	require.NoError(t, err)
	assert.Empty(t, s.List())
}

func TestLoad_ExistingValue(t *testing.T) {
	kv := storage.NewMemoryStore()
	require.NoError(t, kv.Set(context.Background(), storage.KeyPrompts, `["one","two"]`))

	s, err := Load(context.Background(), kv, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, s.List())
	assert.Equal(t, 2, s.Len())

	p, ok := s.Get(1)
	assert.True(t, ok)
	assert.Equal(t, "two", p)
	_, ok = s.Get(2)
	assert.False(t, ok)
}

func TestAdd_TrimsAndPersists(t *testing.T) {
	s, kv := newStore(t)
	require.NoError(t, s.Add(context.Background(), "  Translate to French  "))

	assert.Equal(t, []string{"Translate to French"}, s.List())
	raw, err := kv.Get(context.Background(), storage.KeyPrompts)
	require.NoError(t, err)
	assert.JSONEq(t, `["Translate to French"]`, raw)
}

func TestAdd_RejectsEmpty(t *testing.T) {
	s, _ := newStore(t)
	err := s.Add(context.Background(), " \n\t ")
	assert.ErrorIs(t, err, ErrEmptyPrompt)
	assert.Empty(t, s.List())
}

func TestAdd_RollsBackOnSaveFailure(t *testing.T) {
	kv := failingStore{storage.NewMemoryStore()}
	s, err := Load(context.Background(), kv, nil)
	require.NoError(t, err)

	err = s.Add(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Empty(t, s.List())
}

func TestDelete(t *testing.T) {
	s, kv := newStore(t, "a", "b", "a")

	removed, err := s.Delete(context.Background(), "a")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, []string{"b"}, s.List())

	raw, err := kv.Get(context.Background(), storage.KeyPrompts)
	require.NoError(t, err)
	assert.JSONEq(t, `["b"]`, raw)

	removed, err = s.Delete(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestSearch(t *testing.T) {
	s, _ := newStore(t, "Summarize the text", "Translate to SPANISH", "Write a haiku")

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"Summarize the text", "Translate to SPANISH", "Write a haiku"}},
		{"spanish", []string{"Translate to SPANISH"}},
		{"T", []string{"Summarize the text", "Translate to SPANISH", "Write a haiku"}},
		{"haiku", []string{"Write a haiku"}},
		{"nothing", nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, s.Search(tt.query)); diff != "" {
				t.Errorf("Search(%q) mismatch (-want +got):\n%s", tt.query, diff)
			}
		})
	}
}

func TestLabel(t *testing.T) {
	short := "Short prompt"
	assert.Equal(t, short, Label(short))

	long := strings.Repeat("x", 60)
	assert.Equal(t, strings.Repeat("x", 50)+"...", Label(long))

	assert.Equal(t, "line one line two", Label("line one\n\nline two"))

	multi := strings.Repeat("é", 51)
	assert.Equal(t, strings.Repeat("é", 50)+"...", Label(multi))
}

func TestExport(t *testing.T) {
	s, _ := newStore(t, "a", "b")
	now := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

	var buf bytes.Buffer
	require.NoError(t, s.WriteExport(&buf, now))
	assert.JSONEq(t, `{"prompts":["a","b"],"exportDate":"2024-05-01T12:30:00Z"}`, buf.String())

	empty, _ := newStore(t)
	assert.Equal(t, []string{}, empty.Export(now).Prompts)
	assert.Equal(t, "prompts-export-2024-05-01.json", ExportFilename(now))
}

func TestImport_MergesAndDedupes(t *testing.T) {
	s, _ := newStore(t, "a", "b")

	added, err := s.Import(context.Background(), strings.NewReader(`{"prompts":["b","c","c","d"]}`))
	require.NoError(t, err)
	assert.Equal(t, 2, added)
	assert.Equal(t, []string{"a", "b", "c", "d"}, s.List())
}

func TestImport_Idempotent(t *testing.T) {
	s, _ := newStore(t, "a")
	file := `{"prompts":["x","y"],"exportDate":"2024-01-01T00:00:00Z"}`

	_, err := s.Import(context.Background(), strings.NewReader(file))
	require.NoError(t, err)
	once := s.List()

	added, err := s.Import(context.Background(), strings.NewReader(file))
	require.NoError(t, err)
	assert.Zero(t, added)
	assert.Equal(t, once, s.List())
}

func TestImport_RejectsInvalidFormat(t *testing.T) {
	cases := map[string]string{
		"not json":        `prompts`,
		"missing field":   `{"items":["a"]}`,
		"not an array":    `{"prompts":"a"}`,
		"null":            `{"prompts":null}`,
		"non-string item": `{"prompts":["a",1]}`,
		"top-level array": `["a"]`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			s, _ := newStore(t, "keep")
			added, err := s.Import(context.Background(), strings.NewReader(body))
			assert.ErrorIs(t, err, ErrInvalidFormat)
			assert.Zero(t, added)
			assert.Equal(t, []string{"keep"}, s.List())
		})
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	src, _ := newStore(t, "one", "two {{x:1}}", "three")
	var buf bytes.Buffer
	require.NoError(t, src.WriteExport(&buf, time.Now()))

	dst, _ := newStore(t)
	_, err := dst.Import(context.Background(), &buf)
	require.NoError(t, err)
	assert.ElementsMatch(t, src.List(), dst.List())
}

func TestMerge(t *testing.T) {
	got := Merge([]string{"a", "a", "b"}, []string{"c", "a", "c"})
	assert.Equal(t, []string{"a", "a", "b", "c"}, got)
}
