package filereader

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
)

// sniffBaseURL is where samples are staged for analysis.
const sniffBaseURL = "mem://localhost/filereader/sniff/"

// Sniffer analyzes a sample of delimited text held in memory.
//
// The sample is staged in in-memory storage under a unique name, analyzed
// like a file and removed again.
//
// Example:
//
//	s := filereader.NewSniffer("name;age\nAlice;30\nBob;25\n")
//	delim, _ := s.DetectDelimiter(ctx)   // ";"
//	header, _ := s.HasHeader(ctx)        // true
type Sniffer struct {
	sample   string
	opts     []Option
	analysis *Analysis
}

// NewSniffer creates a Sniffer for sample. For best results, provide at least 2-3 lines of data.
func NewSniffer(sample string, opts ...Option) *Sniffer {
	return &Sniffer{sample: sample, opts: opts}
}

// Analyze runs the analysis once and returns its result.
func (s *Sniffer) Analyze(ctx context.Context) (*Analysis, error) {
	if s.analysis != nil {
		return s.analysis, nil
	}
	fs := afs.New()
	URL := sniffBaseURL + uuid.New().String() + ".txt"
	if err := fs.Upload(ctx, URL, file.DefaultFileOsMode, strings.NewReader(s.sample)); err != nil {
		return nil, err
	}
	defer func() { _ = fs.Delete(context.Background(), URL) }()

	opts := append([]Option{WithFS(fs)}, s.opts...)
	analysis, err := Analyze(ctx, NewSettings(URL), nil, opts...)
	if err != nil {
		return nil, err
	}
	analysis.Settings.Location = ""
	s.analysis = analysis
	return analysis, nil
}

// DetectDelimiter returns the detected column delimiter, or "" for a single column.
func (s *Sniffer) DetectDelimiter(ctx context.Context) (string, error) {
	analysis, err := s.Analyze(ctx)
	if err != nil {
		return "", err
	}
	if cols := analysis.Settings.ColumnDelimiters(); len(cols) > 0 {
		return cols[0].Pattern, nil
	}
	return "", nil
}

// HasHeader reports whether the first row appears to be a header.
func (s *Sniffer) HasHeader(ctx context.Context) (bool, error) {
	analysis, err := s.Analyze(ctx)
	if err != nil {
		return false, err
	}
	return analysis.Settings.HasColumnHeaders, nil
}

// Settings returns the detected settings with an empty location; set
// Location before decoding a file with them.
func (s *Sniffer) Settings(ctx context.Context) (*Settings, error) {
	analysis, err := s.Analyze(ctx)
	if err != nil {
		return nil, err
	}
	return analysis.Settings.Clone(), nil
}
