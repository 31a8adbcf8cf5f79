package main

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
)

func upload(t *testing.T, name, data string) string {
	t.Helper()
	URL := "mem://localhost/filereader-cli/" + name
	require.NoError(t, afs.New().Upload(context.Background(), URL, file.DefaultFileOsMode, strings.NewReader(data)))
	return URL
}

func TestRun_Analyze(t *testing.T) {
	URL := upload(t, "analyze.csv", "a;b;c\n1;2;x\n3;4;y\n")
	out := &bytes.Buffer{}

	err := run(context.Background(), out, io.Discard, []string{URL})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "hasColumnHeaders: true")
	assert.Contains(t, out.String(), "name: c")
	assert.Contains(t, out.String(), "type: integer")
}

func TestRun_Read(t *testing.T) {
	data := "a;b;c\n1;2;x\n3;4;y\n"
	URL := upload(t, "read.csv", data)

	out := &bytes.Buffer{}
	require.NoError(t, run(context.Background(), out, io.Discard, []string{"-m", "read", URL}))
	assert.Equal(t, data, out.String())

	out.Reset()
	require.NoError(t, run(context.Background(), out, io.Discard, []string{"-m", "read", "-n", "1", URL}))
	assert.Equal(t, "a;b;c\n1;2;x\n", out.String())
}

func TestRun_AnalyzeThenRead(t *testing.T) {
	data := "a;b;c\n1;2;x\n3;4;y\n"
	URL := upload(t, "roundtrip.csv", data)

	settings := &bytes.Buffer{}
	require.NoError(t, run(context.Background(), settings, io.Discard, []string{URL}))
	assert.Contains(t, settings.String(), `- "\n"`)
	cfg := upload(t, "roundtrip.yaml", settings.String())

	out := &bytes.Buffer{}
	require.NoError(t, run(context.Background(), out, io.Discard, []string{"-m", "read", "-c", cfg, URL}))
	assert.Equal(t, data, out.String())
}

func TestRun_Baseline(t *testing.T) {
	URL := upload(t, "pipes.txt", "a|b\n1|2\n")
	cfg := upload(t, "baseline.yaml", `
delimiters:
  - pattern: "\n"
    returnAsToken: true
  - pattern: "|"
fixed:
  delimiters: true
`)

	out := &bytes.Buffer{}
	require.NoError(t, run(context.Background(), out, io.Discard, []string{"-m", "read", "-c", cfg, URL}))
	assert.Equal(t, "a|b\n1|2\n", out.String())
}

func TestRun_ReadError(t *testing.T) {
	URL := upload(t, "broken.csv", "1;2\n3\n")
	cfg := upload(t, "broken.yaml", `
delimiters:
  - pattern: "\n"
    returnAsToken: true
  - pattern: ";"
columns:
  - name: a
    type: integer
  - name: b
    type: integer
`)

	logs := &bytes.Buffer{}
	err := run(context.Background(), io.Discard, logs, []string{"-m", "read", "-c", cfg, URL})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too few data elements")
	assert.Contains(t, logs.String(), "row rejected")
}

func TestRun_Help(t *testing.T) {
	out := &bytes.Buffer{}
	require.NoError(t, run(context.Background(), out, io.Discard, []string{"-h"}))
	assert.Contains(t, out.String(), "Usage:")
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "no location", args: []string{}},
		{name: "unknown mode", args: []string{"-m", "write", "x.csv"}},
		{name: "missing baseline", args: []string{"-c", "mem://localhost/filereader-cli/none.yaml", "x.csv"}},
		{name: "missing file", args: []string{"mem://localhost/filereader-cli/none.csv"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := run(context.Background(), io.Discard, io.Discard, tt.args)
			assert.Error(t, err)
		})
	}
}
