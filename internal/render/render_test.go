package render

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/lherron/discuss/internal/domain"
	"github.com/lherron/discuss/internal/thread"
)

var now = time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)

func sampleView() *thread.View {
	return thread.NewView([]domain.Comment{
		{
			ID:        "C-00002",
			Body:      "Sure, I'll review it this afternoon",
			ParentID:  "C-00001",
			Author:    &domain.Author{ID: "A-00002", Name: "Bob"},
			CreatedAt: now.Add(-30 * time.Minute),
		},
		{
			ID:        "C-00001",
			Body:      "Can someone review the onboarding checklist?",
			Author:    &domain.Author{ID: "A-00001", Name: "Alice"},
			CreatedAt: now.Add(-2 * time.Hour),
		},
		{
			ID:          "tmp-3-abcd1234",
			ClientToken: "tmp-3-abcd1234",
			Body:        "sending this one",
			ParentID:    "C-00404",
			Author:      &domain.Author{ID: "A-00001", Name: "Alice"},
			CreatedAt:   now,
		},
	})
}

func newTestRenderer(buf *bytes.Buffer, format Format) *Renderer {
	return NewRenderer(buf, Options{Format: format, SnippetLen: 20, Now: func() time.Time { return now }})
}

func TestThread_Table(t *testing.T) {
	var buf bytes.Buffer
	err := newTestRenderer(&buf, FormatTable).Thread(sampleView(), func(id string) bool { return id == "C-00001" })
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, lines[2], "C-00001")
	assert.Contains(t, lines[2], "2h ago")
	assert.Contains(t, lines[3], `C-00001 "Can someone revie..."`)
	assert.Contains(t, lines[3], "30m ago")
	// The unresolved parent renders as top-level.
	assert.Contains(t, lines[4], "sending...")
	assert.NotContains(t, lines[4], "C-00404")
}

func TestThread_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, newTestRenderer(&buf, FormatTable).Thread(thread.NewView(nil), nil))
	assert.Equal(t, "No comments yet.\n", buf.String())
}

func TestThread_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, newTestRenderer(&buf, FormatJSON).Thread(sampleView(), func(id string) bool { return id == "C-00001" }))

	var out []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	require.Len(t, out, 3)
	assert.Equal(t, "C-00001", out[0]["id"])
	assert.Equal(t, true, out[0]["can_modify"])
	assert.Equal(t, "Can someone revie...", out[1]["parent_snippet"])
	assert.Equal(t, true, out[2]["pending"])
}

func TestThread_NDJSONAndYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, newTestRenderer(&buf, FormatNDJSON).Thread(sampleView(), nil))
	assert.Len(t, strings.Split(strings.TrimSpace(buf.String()), "\n"), 3)

	buf.Reset()
	require.NoError(t, newTestRenderer(&buf, FormatYAML).Thread(sampleView(), nil))
	var out []map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &out))
	require.Len(t, out, 3)
	assert.Equal(t, "C-00002", out[1]["id"])
	assert.Equal(t, "C-00001", out[1]["parent_id"])
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatTable, "JSON": FormatJSON, " yaml ": FormatYAML, "ndjson": FormatNDJSON} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("xml")
	assert.Error(t, err)
}

func TestRelative(t *testing.T) {
	assert.Equal(t, "just now", Relative(now.Add(-10*time.Second), now))
	assert.Equal(t, "5m ago", Relative(now.Add(-5*time.Minute), now))
	assert.Equal(t, "3d ago", Relative(now.Add(-72*time.Hour), now))
	assert.Equal(t, "2024-01-01", Relative(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), now))
	assert.Equal(t, "unknown", Relative(time.Time{}, now))
}

func TestBodyDiff(t *testing.T) {
	diff, err := BodyDiff("C-00001", "line one\nline two", "line one\nline 2")
	require.NoError(t, err)
	assert.Contains(t, diff, "--- C-00001 (current)")
	assert.Contains(t, diff, "+++ C-00001 (proposed)")
	assert.Contains(t, diff, "-line two")
	assert.Contains(t, diff, "+line 2")

	same, err := BodyDiff("C-00001", "x", "x")
	require.NoError(t, err)
	assert.Empty(t, same)
}
