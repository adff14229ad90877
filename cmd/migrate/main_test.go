package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/devicehub-backend/pkg/logger"
)

func TestParseFlagsDefaults(t *testing.T) {
	opts, err := parseFlags(nil, &bytes.Buffer{})
	require.NoError(t, err)
	require.Equal(t, "up", opts.command)
}

func TestParseFlagsRejectsBadInput(t *testing.T) {
	cases := [][]string{
		{"-cmd", "create"},
		{"-cmd", "to", "-version", "yesterday"},
		{"-cmd", "redo"},
	}
	for _, args := range cases {
		var stderr bytes.Buffer
		_, err := parseFlags(args, &stderr)
		require.Error(t, err, strings.Join(args, " "))
		require.NotEmpty(t, stderr.String())
	}
}

func TestRunCreateThenValidate(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer

	err := run(context.Background(), logger.Nop(), options{command: "create", dir: dir, name: "add label index"}, &out)
	require.NoError(t, err)
	require.Contains(t, out.String(), "created migration:")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.True(t, strings.HasSuffix(entries[0].Name(), "_add_label_index.sql"))

	out.Reset()
	err = run(context.Background(), logger.Nop(), options{command: "validate", dir: dir}, &out)
	require.NoError(t, err)
	require.Contains(t, out.String(), "passed")
}

func TestRunValidateFailsOnBadName(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644))

	err := run(context.Background(), logger.Nop(), options{command: "validate", dir: dir}, &bytes.Buffer{})
	require.Error(t, err)
}
