package filereader

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/shapestone/shape-filereader/internal/source"
	"github.com/shapestone/shape-filereader/internal/tokenizer"
)

// Decoder turns a delimited file into typed rows, one row at a time.
//
// Example usage:
//
//	d, err := filereader.NewDecoder(ctx, analysis.Settings)
//	if err != nil {
//	    // handle error
//	}
//	defer d.Close()
//	for d.HasNext() {
//	    row, err := d.Next()
//	    if err != nil {
//	        // handle error, row decoding stops here
//	    }
//	    fmt.Println(row.ID, row.Values())
//	}
//	if err := d.Err(); err != nil {
//	    // handle error
//	}
//
// A Decoder is not safe for concurrent use. Independent decoders over the
// same location can run in parallel.
type Decoder struct {
	ctx      context.Context
	settings *Settings
	src      *source.Reader
	tz       *tokenizer.Tokenizer
	factory  *CellFactory
	registry *RowIDRegistry
	logger   *slog.Logger
	progress func(float64)

	emitted      int
	rowNumber    int64
	rowLine      int64
	nextProgress int64

	peeked     bool
	done       bool
	endedEarly bool
	err        error
}

// NewDecoder opens settings.Location and, if the file has column headers,
// consumes the header row. The settings are copied.
func NewDecoder(ctx context.Context, settings *Settings, opts ...Option) (*Decoder, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	cfg := newConfig(opts)
	s := settings.Clone()
	src, err := source.Open(ctx, cfg.fs, s.Location, s.Charset)
	if err != nil {
		return nil, err
	}

	factory := NewCellFactory()
	factory.SetDecimalSeparator(rune(s.DecimalSeparator))
	factory.SetThousandsSeparator(rune(s.ThousandsSeparator))

	d := &Decoder{
		ctx:          ctx,
		settings:     s,
		src:          src,
		tz:           tokenizer.New(src, s.tokenizerSettings()),
		factory:      factory,
		registry:     NewRowIDRegistry(),
		logger:       cfg.logger.With("location", s.Location),
		progress:     cfg.progress,
		emitted:      len(s.ColumnNames()),
		nextProgress: progressInterval,
	}
	if s.HasColumnHeaders {
		d.skipHeaderRow()
	}
	return d, nil
}

// skipHeaderRow consumes the first non-empty row.
func (d *Decoder) skipHeaderRow() {
	if !d.nextRowStarts() {
		return
	}
	d.peeked = false
	for {
		tok, ok := d.tz.NextToken()
		if !ok {
			d.checkTokenizer()
			return
		}
		if d.isRowDelimiter(tok) {
			return
		}
	}
}

// HasNext reports whether another row can be read. It returns false at the
// end of the file, once MaxRowsToRead rows were returned, after an error and
// after Close.
func (d *Decoder) HasNext() bool {
	if d.done {
		return false
	}
	if d.peeked {
		return true
	}
	if err := d.ctx.Err(); err != nil {
		d.fail(fmt.Errorf("%w: %v", ErrInterrupted, err))
		return false
	}
	if limit := d.settings.MaxRowsToRead; limit >= 0 && d.rowNumber >= limit {
		d.endedEarly = d.nextRowStarts()
		d.finish()
		return false
	}
	return d.nextRowStarts()
}

// nextRowStarts reads ahead to the first token of the next row, skipping
// empty lines if configured, and pushes it back.
func (d *Decoder) nextRowStarts() bool {
	for {
		d.rowLine = d.tz.LineNumber()
		tok, ok := d.tz.NextToken()
		if !ok {
			d.checkTokenizer()
			d.finish()
			return false
		}
		if tok.Kind == tokenizer.KindComment {
			continue
		}
		if d.settings.IgnoreEmptyLines && d.isRowDelimiter(tok) {
			continue
		}
		d.tz.PushBack()
		d.peeked = true
		return true
	}
}

// Next decodes the next row. It returns io.EOF when there are no more rows.
// Any other error ends decoding; a *RowError carries the partial row.
func (d *Decoder) Next() (*Row, error) {
	if !d.HasNext() {
		if d.err != nil {
			return nil, d.err
		}
		return nil, io.EOF
	}
	d.peeked = false

	id, err := d.readRowID()
	if err != nil {
		return nil, err
	}

	columns := d.settings.Columns
	cells := make([]Cell, 0, d.emitted)
	col := 0
	for col < len(columns) {
		tok, ok := d.tz.NextToken()
		if !ok {
			if err := d.tz.Err(); err != nil {
				return nil, d.rowFailure(id, cells, col, err)
			}
			break
		}
		if !tok.IsData() {
			if d.isRowDelimiter(tok) {
				d.tz.PushBack()
				break
			}
			continue
		}
		spec := columns[col]
		col++
		if spec.Skip {
			continue
		}
		if tok.Text == "" && !tok.Quoted {
			cells = append(cells, MissingCell(spec.Type))
			continue
		}
		cell, err := d.factory.Make(spec.Type, tok.Text, spec.MissingPattern)
		if err != nil {
			return nil, d.rowFailure(id, cells, col-1, err)
		}
		cells = append(cells, cell)
	}

	if col < len(columns) {
		if !d.settings.AcceptShortRows {
			return nil, d.rowFailure(id, cells, -1, ErrTooFewElements)
		}
		cells = d.fillMissing(cells, col)
	}

	if err := d.endOfRow(); err != nil {
		return nil, d.rowFailure(id, cells, -1, err)
	}

	d.rowNumber++
	d.reportProgress()
	return &Row{ID: id, Cells: cells}, nil
}

// readRowID returns the identifier of the row about to be read.
func (d *Decoder) readRowID() (string, error) {
	s := d.settings
	if !s.HasRowHeaders {
		return s.RowHeaderPrefix + strconv.FormatInt(d.rowNumber, 10), nil
	}

	id := ""
	tok, ok := d.tz.NextToken()
	switch {
	case !ok:
		if err := d.tz.Err(); err != nil {
			return "", d.rowFailure("", nil, -1, err)
		}
	case d.isRowDelimiter(tok):
		d.tz.PushBack()
	case tok.Text == "" && tok.Quoted:
		return d.registerRowID("")
	default:
		id = tok.Text
	}
	if id == "" {
		id = s.missingPlaceholder() + strconv.FormatInt(d.rowNumber, 10)
	}
	return d.registerRowID(id)
}

func (d *Decoder) registerRowID(id string) (string, error) {
	if d.settings.UniquifyRowIDs {
		unique := d.registry.Uniquify(id, d.rowLine)
		if unique != id {
			d.logger.Debug("row ID made unique", "id", id, "unique", unique, "line", d.rowLine)
		}
		return unique, nil
	}
	if first, dup := d.registry.Register(id, d.rowLine); dup {
		return "", d.rowFailure(id, nil, -1, fmt.Errorf("%w %q, first seen on line %d", ErrDuplicateRowID, id, first))
	}
	return id, nil
}

// endOfRow consumes the row delimiter, skipping empty trailing tokens if
// configured. Anything else left in the row is an error.
func (d *Decoder) endOfRow() error {
	for {
		tok, ok := d.tz.NextToken()
		if !ok {
			return d.tz.Err()
		}
		switch {
		case d.isRowDelimiter(tok):
			return nil
		case tok.Kind == tokenizer.KindComment:
		case d.settings.IgnoreEmptyTrailingTokens && tok.IsData() && tok.Text == "" && !tok.Quoted:
		default:
			return ErrTooManyElements
		}
	}
}

// fillMissing appends missing cells for the non-skipped columns from col on.
func (d *Decoder) fillMissing(cells []Cell, col int) []Cell {
	for _, spec := range d.settings.Columns[col:] {
		if !spec.Skip {
			cells = append(cells, MissingCell(spec.Type))
		}
	}
	return cells
}

// rowFailure ends decoding with a *RowError for the current row.
func (d *Decoder) rowFailure(id string, cells []Cell, col int, err error) error {
	rowErr := &RowError{
		Location:        d.settings.Location,
		Line:            d.rowLine,
		RowID:           id,
		Column:          col,
		ColumnCountLine: d.settings.ColumnCountLine,
		Err:             err,
	}
	if col >= 0 && col < len(d.settings.Columns) {
		rowErr.ColumnName = d.settings.Columns[col].Name
	}
	partial := append([]Cell(nil), cells...)
	emitted := 0
	for _, spec := range d.settings.Columns {
		if spec.Skip {
			continue
		}
		if emitted >= len(partial) {
			partial = append(partial, MissingCell(spec.Type))
		}
		emitted++
	}
	rowErr.Row = &Row{ID: "ERROR_ROW (" + id + ")", Cells: partial}
	d.fail(rowErr)
	return rowErr
}

func (d *Decoder) isRowDelimiter(tok tokenizer.Token) bool {
	return tok.Kind == tokenizer.KindDelimiter && d.settings.IsRowDelimiter(tok.Text)
}

func (d *Decoder) checkTokenizer() {
	if err := d.tz.Err(); err != nil && d.err == nil {
		d.fail(&RowError{
			Location: d.settings.Location,
			Line:     d.tz.LineNumber(),
			Column:   -1,
			Err:      err,
		})
	}
}

func (d *Decoder) reportProgress() {
	if d.progress == nil {
		return
	}
	total := d.src.TotalSize()
	if total <= 0 {
		return
	}
	if read := d.src.BytesRead(); read >= d.nextProgress {
		d.progress(float64(read) / float64(total))
		for d.nextProgress <= read {
			d.nextProgress += progressInterval
		}
	}
}

func (d *Decoder) fail(err error) {
	if d.err == nil {
		d.err = err
	}
	d.logger.Debug("decoding stopped", "error", err)
	d.finish()
}

// finish releases the source; it is called on every terminal transition.
func (d *Decoder) finish() {
	if d.done {
		return
	}
	d.done = true
	d.peeked = false
	if err := d.src.Close(); err != nil {
		d.logger.Warn("failed to close source", "error", err)
	}
}

// Err returns the error that ended decoding, if any.
func (d *Decoder) Err() error {
	return d.err
}

// Close releases the source. Further calls to HasNext return false.
func (d *Decoder) Close() error {
	d.finish()
	return nil
}

// IteratorEndedEarly reports whether decoding stopped at MaxRowsToRead
// although the file held more data.
func (d *Decoder) IteratorEndedEarly() bool {
	return d.endedEarly
}

// ArchiveEntryName returns the name of the zip entry being read, or "".
func (d *Decoder) ArchiveEntryName() string {
	return d.src.ArchiveEntryName()
}

// ArchiveHasMoreEntries reports whether the zip archive holds further entries.
func (d *Decoder) ArchiveHasMoreEntries() bool {
	return d.src.ArchiveHasMoreEntries()
}

// LineNumber returns the 1-based line the tokenizer is at.
func (d *Decoder) LineNumber() int64 {
	return d.tz.LineNumber()
}

// Settings returns the settings the decoder works with.
func (d *Decoder) Settings() *Settings {
	return d.settings
}
