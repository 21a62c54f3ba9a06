package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"schedparser/internal/model"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
	}{
		{name: "groups", args: []string{"-groups", "1,2"}},
		{name: "all with migrate", args: []string{"-migrate", "-all"}},
		{name: "migrate only", args: []string{"-migrate"}},
		{name: "daemon", args: []string{"-daemon"}},
		{name: "dry run url", args: []string{"-dry-run", "-url", "http://x/1.htm"}},
		{name: "changes", args: []string{"-changes", "5", "-groups", "106"}},
		{name: "add group", args: []string{"-add-group", "106,1123,http://x/106.htm"}},
		{name: "nothing", args: nil, wantErr: true},
		{name: "two modes", args: []string{"-all", "-daemon"}, wantErr: true},
		{name: "dry run without source", args: []string{"-dry-run"}, wantErr: true},
		{name: "dry run with both sources", args: []string{"-dry-run", "-url", "u", "-file", "f"}, wantErr: true},
		{name: "dry run with migrate", args: []string{"-dry-run", "-file", "f", "-migrate"}, wantErr: true},
		{name: "changes without group", args: []string{"-changes", "5"}, wantErr: true},
		{name: "changes with two groups", args: []string{"-changes", "5", "-groups", "1,2"}, wantErr: true},
		{name: "unknown flag", args: []string{"-verbose"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseFlags(tt.args, io.Discard)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseGroupIDs(t *testing.T) {
	ids, err := parseGroupIDs(" 3, 1,3,,2 ")
	require.NoError(t, err)
	assert.Equal(t, []int{3, 1, 2}, ids)

	_, err = parseGroupIDs("1,abc")
	assert.Error(t, err)
	_, err = parseGroupIDs("-4")
	assert.Error(t, err)
	_, err = parseGroupIDs(" , ")
	assert.Error(t, err)
}

func TestParseGroupSpec(t *testing.T) {
	g, err := parseGroupSpec("106, 1123 ,http://schedule.example.edu/cg106.htm?a=1,b")
	require.NoError(t, err)
	assert.Equal(t, 106, g.GroupID)
	assert.Equal(t, "1123", g.Name)
	assert.Equal(t, "http://schedule.example.edu/cg106.htm?a=1,b", g.URL)
	assert.True(t, g.IsActive)

	for _, bad := range []string{"106,1123", "x,1123,http://a", "106,,http://a", "0,1,http://a"} {
		_, err := parseGroupSpec(bad)
		assert.Error(t, err, bad)
	}
}

func TestFileFetcher(t *testing.T) {
	encoded, err := charmap.Windows1251.NewEncoder().String("<td>Пнд</td>")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "page.htm")
	require.NoError(t, os.WriteFile(path, []byte(encoded), 0o600))

	page, err := fileFetcher{path: path}.Fetch(context.Background(), "ignored")
	require.NoError(t, err)
	assert.Equal(t, "<td>Пнд</td>", page)

	_, err = fileFetcher{path: filepath.Join(t.TempDir(), "missing")}.Fetch(context.Background(), "")
	assert.ErrorIs(t, err, model.ErrFetchFailure)
}
