package filereader

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
)

// stageData writes data to in-memory storage under a name derived from the
// test and returns its URL.
func stageData(t *testing.T, suffix string, data []byte) string {
	t.Helper()
	name := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return '_'
	}, t.Name())
	URL := "mem://localhost/filereader-test/" + name + suffix
	require.NoError(t, afs.New().Upload(context.Background(), URL, file.DefaultFileOsMode, bytes.NewReader(data)))
	return URL
}

func stageCSV(t *testing.T, data string) string {
	t.Helper()
	return stageData(t, ".csv", []byte(data))
}

// stageFile writes data to a file in a temporary directory and returns its
// path. Files report their size, so progress is measured on them.
func stageFile(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

// semicolonSettings describes a ';' separated file with the given columns.
func semicolonSettings(URL string, columns ...ColumnSpec) *Settings {
	s := NewSettings(URL)
	s.AddDelimiter(Delimiter{Pattern: ";"})
	s.AddQuote(`"`, `"`, 0)
	for i := range columns {
		if columns[i].Name == "" {
			columns[i].Name = defaultColumnName(i)
		}
	}
	s.Columns = columns
	return s
}

func intCol(name string) ColumnSpec {
	return ColumnSpec{Name: name, Type: Integer, MissingPattern: DefaultMissingPattern}
}

func floatCol(name string) ColumnSpec {
	return ColumnSpec{Name: name, Type: Float, MissingPattern: DefaultMissingPattern}
}

func textCol(name string) ColumnSpec {
	return ColumnSpec{Name: name, Type: Text, MissingPattern: DefaultMissingPattern}
}

func readAll(t *testing.T, s *Settings, opts ...Option) []*Row {
	t.Helper()
	rows, err := ReadAll(context.Background(), s, opts...)
	require.NoError(t, err)
	return rows
}

func gzipBytes(t *testing.T, data string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write([]byte(data))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

// zipBytes builds an archive holding the given entries in order.
func zipBytes(t *testing.T, entries ...[2]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, e := range entries {
		f, err := w.Create(e[0])
		require.NoError(t, err)
		_, err = f.Write([]byte(e[1]))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}
