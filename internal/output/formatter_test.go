package output

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Tags      []string  `json:"tags,omitempty"`
	Secret    string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

func TestNewFormatter(t *testing.T) {
	assert.IsType(t, &JSONFormatter{}, NewFormatter("JSON"))
	assert.IsType(t, &YAMLFormatter{}, NewFormatter("yaml"))
	assert.IsType(t, &TableFormatter{}, NewFormatter("table"))
	assert.IsType(t, &TableFormatter{}, NewFormatter("unknown"))
}

func TestTableFormatter_Slice(t *testing.T) {
	rows := []row{
		{ID: 1, Name: "Blue Bottle", Tags: []string{"coffee"}, Secret: "x"},
		{ID: 2, Name: strings.Repeat("a", 60), CreatedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
	}
	out := (&TableFormatter{}).Format(rows)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)

	assert.Equal(t, []string{"ID", "NAME", "TAGS", "CREATEDAT"}, strings.Fields(lines[0]))
	assert.NotContains(t, out, "SECRET")
	assert.Contains(t, lines[1], `["coffee"]`)
	assert.Contains(t, lines[2], strings.Repeat("a", maxCell-3)+"...")
	assert.Contains(t, lines[2], "2024-05-01T00:00:00Z")
}

func TestTableFormatter_EmptyAndStruct(t *testing.T) {
	f := &TableFormatter{}
	assert.Equal(t, "No resources found.\n", f.Format([]row{}))
	assert.Equal(t, "No resources found.\n", f.Format((*row)(nil)))

	out := f.Format(&row{ID: 7, Name: "Acme"})
	assert.Contains(t, out, "id:")
	assert.Contains(t, out, "Acme")
	assert.Contains(t, out, "createdAt:  -")
}

func TestJSONAndYAML(t *testing.T) {
	data := row{ID: 3, Name: "Acme", Tags: []string{"a", "b"}}

	js := (&JSONFormatter{}).Format(data)
	assert.Contains(t, js, `"name": "Acme"`)
	assert.True(t, strings.HasSuffix(js, "}\n"))

	yml := (&YAMLFormatter{}).Format(data)
	assert.Contains(t, yml, "name: Acme")
	assert.Contains(t, yml, "tags:\n    - a\n    - b")
	assert.NotContains(t, yml, "secret")
}
