package filereader

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/shapestone/shape-core/pkg/ast"
)

// Render encodes rows as delimited text following settings, so that decoding
// the output with the same settings yields the same rows.
//
// The first column delimiter and the first row delimiter are used, and the
// first quote encloses empty values and values that contain a delimiter,
// quote, comment marker or whitespace. Missing cells are written as the column
// missing pattern, or as an empty token. A value equal to its column missing
// pattern reads back as missing even when quoted, so it is rejected.
// Column names are written first when settings.HasColumnHeaders is set, and
// row IDs lead every data row when settings.HasRowHeaders is set.
//
// Example:
//
//	rows, _ := filereader.ReadAll(ctx, settings)
//	data, _ := filereader.Render(rows, settings)
func Render(rows []*Row, settings *Settings) ([]byte, error) {
	node, err := toNode(rows, settings)
	if err != nil {
		return nil, err
	}
	w := newRowWriter(settings)
	var buf bytes.Buffer
	if err := w.renderNode(node, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// toNode builds the document as an array of records, each an array of literals.
func toNode(rows []*Row, s *Settings) (*ast.ArrayDataNode, error) {
	var records []ast.SchemaNode
	var emitted []ColumnSpec
	for _, c := range s.Columns {
		if !c.Skip {
			emitted = append(emitted, c)
		}
	}

	if s.HasColumnHeaders {
		// the header row leaves out the row header slot
		var fields []ast.SchemaNode
		for _, c := range emitted {
			fields = append(fields, ast.NewLiteralNode(c.Name, ast.ZeroPosition()))
		}
		records = append(records, ast.NewArrayDataNode(fields, ast.ZeroPosition()))
	}

	for i, row := range rows {
		if len(row.Cells) != len(emitted) {
			return nil, fmt.Errorf("row %d (%s) has %d cells, want %d", i, row.ID, len(row.Cells), len(emitted))
		}
		var fields []ast.SchemaNode
		if s.HasRowHeaders {
			fields = append(fields, ast.NewLiteralNode(row.ID, ast.ZeroPosition()))
		}
		for c, cell := range row.Cells {
			value, err := cellLiteral(cell, emitted[c], s.DecimalSeparator)
			if err != nil {
				return nil, fmt.Errorf("row %d (%s): %w", i, row.ID, err)
			}
			fields = append(fields, ast.NewLiteralNode(value, ast.ZeroPosition()))
		}
		records = append(records, ast.NewArrayDataNode(fields, ast.ZeroPosition()))
	}
	return ast.NewArrayDataNode(records, ast.ZeroPosition()), nil
}

// missingLiteral marks a missing cell inside the AST.
type missingLiteral struct {
	pattern string
}

func cellLiteral(cell Cell, spec ColumnSpec, decimal Char) (interface{}, error) {
	if cell.Missing {
		return missingLiteral{pattern: spec.MissingPattern}, nil
	}
	text := cell.String()
	if cell.Type == Float && decimal != 0 && decimal != '.' {
		text = strings.Replace(text, ".", string(rune(decimal)), 1)
	}
	if spec.MissingPattern != "" && text == spec.MissingPattern {
		return nil, fmt.Errorf("value %q of column %q equals its missing pattern", text, spec.Name)
	}
	return text, nil
}

// rowWriter holds the patterns used to write one document.
type rowWriter struct {
	delimiter    string
	rowDelimiter string
	quote        *Quote
	reserved     []string
}

func newRowWriter(s *Settings) *rowWriter {
	w := &rowWriter{delimiter: ",", rowDelimiter: DefaultRowDelimiter}
	if cols := s.ColumnDelimiters(); len(cols) > 0 {
		w.delimiter = cols[0].Pattern
	}
	if len(s.RowDelimiters) > 0 {
		w.rowDelimiter = s.RowDelimiters[0]
	}
	if len(s.Quotes) > 0 {
		q := s.Quotes[0]
		w.quote = &q
	}
	for _, d := range s.Delimiters {
		w.reserved = append(w.reserved, d.Pattern)
	}
	for _, q := range s.Quotes {
		w.reserved = append(w.reserved, q.Left, q.Right)
	}
	for _, c := range s.Comments {
		w.reserved = append(w.reserved, c.Begin)
	}
	w.reserved = append(w.reserved, s.Whitespaces...)
	return w
}

// renderNode recursively renders an AST node to the buffer.
func (w *rowWriter) renderNode(node ast.SchemaNode, buf *bytes.Buffer) error {
	switch n := node.(type) {
	case *ast.ArrayDataNode:
		return w.renderArrayData(n, buf)
	case *ast.LiteralNode:
		return w.renderLiteral(n, buf)
	default:
		return fmt.Errorf("unsupported node type for rendering: %T", node)
	}
}

// renderArrayData renders the file level (array of records) and the record
// level (array of fields).
func (w *rowWriter) renderArrayData(node *ast.ArrayDataNode, buf *bytes.Buffer) error {
	elements := node.Elements()
	if len(elements) == 0 {
		return nil
	}

	switch elements[0].(type) {
	case *ast.ArrayDataNode:
		for _, elem := range elements {
			if err := w.renderNode(elem, buf); err != nil {
				return err
			}
			buf.WriteString(w.rowDelimiter)
		}
		return nil

	case *ast.LiteralNode:
		for i, elem := range elements {
			if i > 0 {
				buf.WriteString(w.delimiter)
			}
			if err := w.renderNode(elem, buf); err != nil {
				return err
			}
		}
		return nil

	default:
		return fmt.Errorf("unexpected element type in array: %T", elements[0])
	}
}

func (w *rowWriter) renderLiteral(node *ast.LiteralNode, buf *bytes.Buffer) error {
	switch v := node.Value().(type) {
	case missingLiteral:
		buf.WriteString(v.pattern)
	case string:
		return w.writeField(buf, v)
	default:
		return w.writeField(buf, fmt.Sprintf("%v", v))
	}
	return nil
}

// writeField writes value, quoting it when it would not read back as itself.
func (w *rowWriter) writeField(buf *bytes.Buffer, value string) error {
	if !w.needsQuoting(value) {
		buf.WriteString(value)
		return nil
	}
	if w.quote == nil {
		return fmt.Errorf("value %q needs quoting but no quote is configured", value)
	}
	buf.WriteString(w.quote.Left)
	if w.quote.Escape != 0 {
		escape := string(rune(w.quote.Escape))
		value = strings.ReplaceAll(value, escape, escape+escape)
		value = strings.ReplaceAll(value, w.quote.Right, escape+w.quote.Right)
	} else if w.quote.Left == w.quote.Right {
		value = strings.ReplaceAll(value, w.quote.Right, w.quote.Right+w.quote.Right)
	} else if strings.Contains(value, w.quote.Right) {
		return fmt.Errorf("value %q contains the closing quote %q", value, w.quote.Right)
	}
	buf.WriteString(value)
	buf.WriteString(w.quote.Right)
	return nil
}

func (w *rowWriter) needsQuoting(value string) bool {
	if value == "" {
		return true
	}
	for _, p := range w.reserved {
		if p != "" && strings.Contains(value, p) {
			return true
		}
	}
	return strings.ContainsAny(value, "\n\r")
}
