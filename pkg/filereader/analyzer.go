package filereader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shapestone/shape-filereader/internal/source"
	"github.com/shapestone/shape-filereader/internal/tokenizer"
)

// Stage weights of the overall analysis progress.
const (
	weightComments   = 0.10
	weightQuotes     = 0.10
	weightDelimiters = 0.30
	weightRowHeaders = 0.05
	weightColumns    = 0.40
)

// Analysis is the outcome of Analyze.
type Analysis struct {
	Settings *Settings
	// Partial is set when some stage did not scan the whole file, because a
	// quick scan was requested or a scan limit applied.
	Partial bool
	// Messages are warnings and notes collected along the way.
	Messages []string
}

// draft is the settings under construction, handed from stage to stage.
type draft struct {
	settings *Settings
	partial  bool
	messages []string
}

func (d draft) note(format string, args ...interface{}) draft {
	d.messages = append(append([]string(nil), d.messages...), fmt.Sprintf(format, args...))
	return d
}

type analyzer struct {
	cfg      *config
	budget   *Budget
	baseline *Settings
	logger   *slog.Logger
}

// Analyze guesses the structure of the file at baseline.Location.
//
// Settings marked in baseline.Fixed, and columns marked UserSet, are taken
// over as they are; everything else is derived from the data. The file is
// read once per stage, so the location must be readable more than once.
//
// Analyze always produces a guess. It returns ErrInterrupted, and no
// analysis, when budget.Interrupt is called or ctx is cancelled. A nil budget
// is allowed.
func Analyze(ctx context.Context, baseline *Settings, budget *Budget, opts ...Option) (*Analysis, error) {
	if baseline == nil {
		return nil, &SettingsError{Field: "location", Message: "no settings"}
	}
	if baseline.Location == "" {
		return nil, &SettingsError{Field: "location", Message: "no data location specified"}
	}
	if baseline.DecimalSeparator != 0 && baseline.DecimalSeparator == baseline.ThousandsSeparator {
		return nil, &SettingsError{Field: "thousandsSeparator", Message: "decimal and thousands separator must differ"}
	}
	if budget == nil {
		budget = NewBudget(nil)
	}
	cfg := newConfig(opts)
	a := &analyzer{
		cfg:      cfg,
		budget:   budget,
		baseline: baseline,
		logger:   cfg.logger.With("location", baseline.Location),
	}
	return a.run(ctx)
}

func (a *analyzer) run(ctx context.Context) (*Analysis, error) {
	d := draft{settings: a.defaults()}

	stages := []struct {
		name   string
		weight float64
		fn     func(context.Context, draft, *stage) (draft, error)
	}{
		{"comments", weightComments, a.detectComments},
		{"quotes", weightQuotes, a.detectQuotes},
		{"delimiters", weightDelimiters, a.detectDelimiters},
		{"row headers", weightRowHeaders, a.detectRowHeaders},
		{"column types", weightColumns, a.detectColumns},
	}

	start := 0.0
	for _, s := range stages {
		if err := a.checkpoint(ctx); err != nil {
			return nil, err
		}
		var err error
		d, err = s.fn(ctx, d, a.budget.stage(start, s.weight, s.name))
		if err != nil {
			return nil, err
		}
		start += s.weight
		a.logger.Debug("analysis stage done", "stage", s.name, "partial", d.partial)
	}
	if err := a.checkpoint(ctx); err != nil {
		return nil, err
	}

	if d.partial {
		d = d.note("the analysis did not read the whole file, please verify the settings")
	}
	a.budget.SetProgress(1, "done")
	return &Analysis{Settings: d.settings, Partial: d.partial, Messages: d.messages}, nil
}

// defaults copies the baseline and fills in everything the stages do not decide.
func (a *analyzer) defaults() *Settings {
	s := a.baseline.Clone()
	if len(s.RowDelimiters) == 0 {
		s.AddRowDelimiter(DefaultRowDelimiter, false)
	}
	if s.DecimalSeparator == 0 {
		s.DecimalSeparator = '.'
	}
	if s.MissingPattern == "" {
		s.MissingPattern = DefaultMissingPattern
	}
	if s.RowHeaderPrefix == "" {
		s.RowHeaderPrefix = DefaultRowHeaderPrefix
	}
	if !s.Fixed.IgnoreEmptyLines {
		s.IgnoreEmptyLines = true
	}
	if !s.Fixed.Whitespaces {
		s.Whitespaces = nil
		s.AddWhitespace(" ")
		s.AddWhitespace("\t")
	}
	if !s.Fixed.Comments {
		s.Comments = nil
	}
	if !s.Fixed.Quotes {
		s.Quotes = nil
	}
	if !s.Fixed.Delimiters {
		s.RemoveColumnDelimiters()
	}
	return s
}

// checkpoint returns ErrInterrupted once the caller asked for a hard stop.
func (a *analyzer) checkpoint(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrInterrupted, err)
	}
	if a.budget.Interrupted() {
		return ErrInterrupted
	}
	return nil
}

// rowScan reads a file row by row for one analysis stage.
type rowScan struct {
	a        *analyzer
	ctx      context.Context
	settings *Settings
	stage    *stage
	src      *source.Reader
	tz       *tokenizer.Tokenizer
	rows     int
	// line is the line the most recently returned row started on.
	line int64
	// truncated is set when the scan stopped before the end of the file.
	truncated bool
}

func (a *analyzer) scan(ctx context.Context, s *Settings, st *stage) (*rowScan, error) {
	src, err := source.Open(ctx, a.cfg.fs, s.Location, s.Charset)
	if err != nil {
		return nil, err
	}
	return &rowScan{
		a:        a,
		ctx:      ctx,
		settings: s,
		stage:    st,
		src:      src,
		tz:       tokenizer.New(src, s.tokenizerSettings()),
	}, nil
}

// next returns the data tokens of the next row. An empty line yields an
// empty slice. It reports false at the end of the file and when the scan has
// to stop early, in which case truncated is set.
func (r *rowScan) next() ([]tokenizer.Token, bool, error) {
	if err := r.a.checkpoint(r.ctx); err != nil {
		return nil, false, err
	}
	limit := r.a.cfg.scanLimit
	if r.a.budget.QuickScanRequested() && (limit <= 0 || limit > r.a.cfg.quickScanRows) {
		limit = r.a.cfg.quickScanRows
	}
	if limit > 0 && r.rows >= limit {
		if _, more := r.tz.NextToken(); more {
			r.tz.PushBack()
			r.truncated = true
		}
		return nil, false, nil
	}

	r.line = r.tz.LineNumber()
	var tokens []tokenizer.Token
	read := false
	for {
		tok, ok := r.tz.NextToken()
		if !ok {
			if err := r.tz.Err(); err != nil {
				if !errors.Is(err, tokenizer.ErrUnterminatedQuote) {
					return nil, false, err
				}
				r.a.logger.Debug("scan stopped", "line", r.tz.LineNumber(), "error", err)
			}
			break
		}
		read = true
		if tok.Kind == tokenizer.KindDelimiter && r.settings.IsRowDelimiter(tok.Text) {
			break
		}
		if tok.Kind == tokenizer.KindData {
			tokens = append(tokens, tok)
		}
	}
	if !read {
		return nil, false, nil
	}
	r.rows++
	if r.rows%64 == 0 {
		r.progress()
	}
	if tokens == nil {
		tokens = []tokenizer.Token{}
	}
	return tokens, true, nil
}

func (r *rowScan) progress() {
	if total := r.src.TotalSize(); total > 0 {
		r.stage.set(float64(r.src.BytesRead()) / float64(total))
	}
}

func (r *rowScan) close() {
	if err := r.src.Close(); err != nil {
		r.a.logger.Warn("failed to close source", "error", err)
	}
	r.stage.done()
}
