package filereader

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func analyze(t *testing.T, data string, opts ...Option) *Analysis {
	t.Helper()
	analysis, err := Analyze(context.Background(), NewSettings(stageCSV(t, data)), nil, opts...)
	require.NoError(t, err)
	require.NotNil(t, analysis)
	return analysis
}

func columnTypes(s *Settings) []ColumnType {
	var types []ColumnType
	for _, c := range s.Columns {
		types = append(types, c.Type)
	}
	return types
}

func delimiterPatterns(s *Settings) []string {
	var patterns []string
	for _, d := range s.ColumnDelimiters() {
		patterns = append(patterns, d.Pattern)
	}
	return patterns
}

func TestAnalyze_HeaderAndTypes(t *testing.T) {
	analysis := analyze(t, "a;b;c\n1;2;x\n3;4;y\n")
	s := analysis.Settings

	assert.False(t, analysis.Partial)
	assert.Equal(t, []string{";"}, delimiterPatterns(s))
	assert.Equal(t, 3, s.ColumnCount())
	assert.Equal(t, []ColumnType{Integer, Integer, Text}, columnTypes(s))
	assert.Equal(t, []string{"a", "b", "c"}, s.ColumnNames())
	assert.True(t, s.HasColumnHeaders)
	assert.False(t, s.HasRowHeaders)
	assert.Empty(t, s.Comments)
	assert.Len(t, s.Quotes, 2)
	assert.Equal(t, int64(2), s.ColumnCountLine)
	assert.NoError(t, s.Validate())

	rows := readAll(t, s)
	require.Len(t, rows, 2)
	assert.Equal(t, "Row0", rows[0].ID)
	assert.Equal(t, []any{int64(1), int64(2), "x"}, rows[0].Values())
	assert.Equal(t, "Row1", rows[1].ID)
	assert.Equal(t, []any{int64(3), int64(4), "y"}, rows[1].Values())
}

func TestAnalyze_CommaWithMissingValues(t *testing.T) {
	analysis := analyze(t, "name,price,qty\napple,1.5,3\npear,2,\nplum,?,7\n")
	s := analysis.Settings

	assert.Equal(t, []string{","}, delimiterPatterns(s))
	assert.Equal(t, []ColumnType{Text, Float, Integer}, columnTypes(s))
	assert.Equal(t, []string{"name", "price", "qty"}, s.ColumnNames())
	for _, c := range s.Columns {
		assert.Equal(t, DefaultMissingPattern, c.MissingPattern, c.Name)
	}

	rows := readAll(t, s)
	require.Len(t, rows, 3)
	assert.Equal(t, []Cell{TextCell("apple"), FloatCell(1.5), IntCell(3)}, rows[0].Cells)
	assert.Equal(t, []Cell{TextCell("pear"), FloatCell(2), MissingCell(Integer)}, rows[1].Cells)
	assert.Equal(t, []Cell{TextCell("plum"), MissingCell(Float), IntCell(7)}, rows[2].Cells)
}

func TestAnalyze_MissingMarker(t *testing.T) {
	analysis := analyze(t, "v;w\n1;2\nNA;3\n4;5\n")
	s := analysis.Settings

	assert.Equal(t, []ColumnType{Integer, Integer}, columnTypes(s))
	assert.Equal(t, "NA", s.Columns[0].MissingPattern)
	assert.Equal(t, DefaultMissingPattern, s.Columns[1].MissingPattern)

	rows := readAll(t, s)
	require.Len(t, rows, 3)
	assert.True(t, rows[1].Cells[0].Missing)
}

func TestAnalyze_RowHeaders(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "row header column named", data: "id;x;y\nR1;1;a\nR2;2;b\nR3;3;c\n"},
		{name: "row header column unnamed", data: "x;y\nR1;1;a\nR2;2;b\nR3;3;c\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := analyze(t, tt.data).Settings

			assert.True(t, s.HasRowHeaders)
			assert.True(t, s.HasColumnHeaders)
			assert.Equal(t, []string{"x", "y"}, s.ColumnNames())
			assert.Equal(t, []ColumnType{Integer, Text}, columnTypes(s))

			rows := readAll(t, s)
			require.Len(t, rows, 3)
			assert.Equal(t, "R1", rows[0].ID)
			assert.Equal(t, []any{int64(1), "a"}, rows[0].Values())
			assert.Equal(t, "R3", rows[2].ID)
		})
	}
}

func TestAnalyze_SingleDataRow(t *testing.T) {
	t.Run("no row headers from one candidate", func(t *testing.T) {
		s := analyze(t, "x;y\nR1;1\n").Settings

		assert.False(t, s.HasRowHeaders)
		assert.Equal(t, []string{";"}, delimiterPatterns(s))
		assert.Equal(t, 2, s.ColumnCount())
	})

	t.Run("one row decides the column count", func(t *testing.T) {
		s := analyze(t, "a;b;c\n").Settings

		assert.Equal(t, []string{";"}, delimiterPatterns(s))
		assert.Equal(t, 3, s.ColumnCount())
		assert.False(t, s.HasRowHeaders)
	})
}

func TestAnalyze_NumericFirstColumnIsData(t *testing.T) {
	s := analyze(t, "1;10\n2;20\n3;30\n").Settings

	assert.False(t, s.HasRowHeaders)
	assert.False(t, s.HasColumnHeaders)
	assert.Equal(t, []string{"Col0", "Col1"}, s.ColumnNames())
	assert.Len(t, readAll(t, s), 3)
}

func TestAnalyze_Comments(t *testing.T) {
	tests := []struct {
		name  string
		data  string
		begin []string
	}{
		{name: "hash", data: "# generated\n# by tool\na,b\n1,2\n3,4\n", begin: []string{"#"}},
		{name: "percent", data: "a,b\n% note\n1,2\n3,4\n", begin: []string{"%"}},
		{name: "slashes", data: "// header\na,b\n1,2\n3,4\n", begin: []string{"//", "/*"}},
		{name: "none", data: "a,b\n1,2\n3,4\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := analyze(t, tt.data).Settings

			var begin []string
			for _, c := range s.Comments {
				begin = append(begin, c.Begin)
			}
			assert.Equal(t, tt.begin, begin)
			assert.Equal(t, []string{"a", "b"}, s.ColumnNames())
			assert.Equal(t, []ColumnType{Integer, Integer}, columnTypes(s))

			rows := readAll(t, s)
			require.Len(t, rows, 2)
			assert.Equal(t, []any{int64(3), int64(4)}, rows[1].Values())
		})
	}
}

func TestAnalyze_Quotes(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		quotes []Quote
		second []any
	}{
		{
			name:   "balanced",
			data:   "\"a;b\";1\n\"c\";2\n\"d\";3\n",
			quotes: []Quote{{Left: `"`, Right: `"`}, {Left: "'", Right: "'"}},
			second: []any{"c", int64(2)},
		},
		{
			name:   "apostrophe in text",
			data:   "it's;1\nok;2\nfine;3\n",
			quotes: []Quote{{Left: `"`, Right: `"`}},
			second: []any{"ok", int64(2)},
		},
		{
			name:   "backslash escape",
			data:   "\"x\";0\n\"a\\\"b\";1\n\"c\";2\n",
			quotes: []Quote{{Left: `"`, Right: `"`, Escape: '\\'}, {Left: "'", Right: "'"}},
			second: []any{"a\"b", int64(1)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := analyze(t, tt.data).Settings
			assert.Equal(t, tt.quotes, s.Quotes)

			rows := readAll(t, s)
			require.Len(t, rows, 3)
			assert.Equal(t, tt.second, rows[1].Values())
		})
	}
}

func TestAnalyze_TabAndSpace(t *testing.T) {
	t.Run("tab", func(t *testing.T) {
		s := analyze(t, "x\ty\n1\t2\n3\t4\n").Settings
		assert.Equal(t, []string{"\t"}, delimiterPatterns(s))
		assert.Equal(t, []string{"x", "y"}, s.ColumnNames())
	})

	t.Run("space with trailing blanks", func(t *testing.T) {
		s := analyze(t, "1 2 3 \n4 5 6\n7  8 9 \n").Settings

		require.Equal(t, []string{" "}, delimiterPatterns(s))
		assert.True(t, s.ColumnDelimiters()[0].Combine)
		assert.True(t, s.IgnoreEmptyTrailingTokens)
		assert.False(t, s.HasColumnHeaders)
		assert.Equal(t, []ColumnType{Integer, Integer, Integer}, columnTypes(s))

		rows := readAll(t, s)
		require.Len(t, rows, 3)
		assert.Equal(t, []any{int64(7), int64(8), int64(9)}, rows[2].Values())
	})
}

func TestAnalyze_SingleColumn(t *testing.T) {
	s := analyze(t, "alpha\nbeta\ngamma\n").Settings

	assert.Empty(t, s.ColumnDelimiters())
	assert.Equal(t, 1, s.ColumnCount())
	assert.Equal(t, []ColumnType{Text}, columnTypes(s))
	assert.False(t, s.HasColumnHeaders)

	rows := readAll(t, s)
	require.Len(t, rows, 3)
	assert.Equal(t, []any{"alpha"}, rows[0].Values())
}

func TestAnalyze_EmptyColumn(t *testing.T) {
	analysis := analyze(t, "a;b\n1;\n2;\n")
	s := analysis.Settings

	assert.Equal(t, []ColumnType{Integer, Text}, columnTypes(s))
	assert.Equal(t, "", s.Columns[1].MissingPattern)
	require.Len(t, analysis.Messages, 1)
	assert.Contains(t, analysis.Messages[0], "#1")

	rows := readAll(t, s)
	require.Len(t, rows, 2)
	assert.True(t, rows[0].Cells[1].Missing)
}

func TestAnalyze_NeverRealMessageIsCapped(t *testing.T) {
	columns := make([]int, 30)
	for i := range columns {
		columns[i] = i
	}
	msg := neverRealMessage(columns)
	assert.Contains(t, msg, "#19")
	assert.NotContains(t, msg, "#20")
	assert.Contains(t, msg, "...and more")
}

func TestAnalyze_FixedSettings(t *testing.T) {
	t.Run("delimiter", func(t *testing.T) {
		baseline := NewSettings(stageCSV(t, "a;b,c\n1;2,3\n"))
		baseline.AddDelimiter(Delimiter{Pattern: ","})
		baseline.Fixed.Delimiters = true

		analysis, err := Analyze(context.Background(), baseline, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{","}, delimiterPatterns(analysis.Settings))
		assert.Equal(t, 2, analysis.Settings.ColumnCount())
		assert.Equal(t, int64(1), analysis.Settings.ColumnCountLine)
	})

	t.Run("no column headers", func(t *testing.T) {
		baseline := NewSettings(stageCSV(t, "a;b\n1;2\n"))
		baseline.Fixed.ColumnHeaders = true

		analysis, err := Analyze(context.Background(), baseline, nil)
		require.NoError(t, err)
		s := analysis.Settings
		assert.False(t, s.HasColumnHeaders)
		assert.Equal(t, []string{"Col0", "Col1"}, s.ColumnNames())
		assert.Equal(t, []ColumnType{Integer, Integer}, columnTypes(s))
		assert.Equal(t, "a", s.Columns[0].MissingPattern)
	})

	t.Run("user set column", func(t *testing.T) {
		baseline := NewSettings(stageCSV(t, "a;b\n1;2\n3;4\n"))
		baseline.Columns = []ColumnSpec{{Name: "id", Type: Text, UserSet: true}}

		analysis, err := Analyze(context.Background(), baseline, nil)
		require.NoError(t, err)
		s := analysis.Settings
		assert.Equal(t, []string{"id", "b"}, s.ColumnNames())
		assert.Equal(t, []ColumnType{Text, Integer}, columnTypes(s))
		assert.True(t, s.Columns[0].UserSet)
	})

	t.Run("comments", func(t *testing.T) {
		baseline := NewSettings(stageCSV(t, "# a;b\n1;2\n3;4\n"))
		baseline.Fixed.Comments = true

		analysis, err := Analyze(context.Background(), baseline, nil)
		require.NoError(t, err)
		assert.Empty(t, analysis.Settings.Comments)
		assert.True(t, analysis.Settings.HasColumnHeaders)
	})
}

func TestAnalyze_GzipSource(t *testing.T) {
	URL := stageData(t, ".csv.gz", gzipBytes(t, "a;b\n1;2\n3;4\n"))
	analysis, err := Analyze(context.Background(), NewSettings(URL), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, analysis.Settings.ColumnNames())
	assert.Len(t, readAll(t, analysis.Settings), 2)
}

func numberedRows(n int) string {
	var b strings.Builder
	b.WriteString("a;b\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "%d;%d\n", i, i*2)
	}
	return b.String()
}

func TestAnalyze_QuickScan(t *testing.T) {
	URL := stageCSV(t, numberedRows(1000))
	budget := NewBudget(nil)
	budget.RequestQuickScan()

	analysis, err := Analyze(context.Background(), NewSettings(URL), budget)
	require.NoError(t, err)
	assert.True(t, analysis.Partial)
	assert.Equal(t, []string{";"}, delimiterPatterns(analysis.Settings))
	assert.Equal(t, []ColumnType{Integer, Integer}, columnTypes(analysis.Settings))
	require.NotEmpty(t, analysis.Messages)
	assert.Contains(t, analysis.Messages[len(analysis.Messages)-1], "verify")

	fraction, message := budget.Progress()
	assert.Equal(t, 1.0, fraction)
	assert.Equal(t, "done", message)
}

func TestAnalyze_ScanLimit(t *testing.T) {
	URL := stageCSV(t, numberedRows(50))

	analysis, err := Analyze(context.Background(), NewSettings(URL), nil, WithScanLimit(10))
	require.NoError(t, err)
	assert.True(t, analysis.Partial)

	analysis, err = Analyze(context.Background(), NewSettings(URL), nil, WithScanLimit(1000))
	require.NoError(t, err)
	assert.False(t, analysis.Partial)
}

func TestAnalyze_Progress(t *testing.T) {
	URL := stageFile(t, "progress.csv", numberedRows(500))
	var fractions []float64
	var steps []string
	budget := NewBudget(func(fraction float64, step string) {
		fractions = append(fractions, fraction)
		if len(steps) == 0 || steps[len(steps)-1] != step {
			steps = append(steps, step)
		}
	})

	_, err := Analyze(context.Background(), NewSettings(URL), budget)
	require.NoError(t, err)
	assert.Equal(t, []string{"comments", "quotes", "delimiters", "row headers", "column types", "done"}, steps)
	for i := 1; i < len(fractions); i++ {
		assert.GreaterOrEqual(t, fractions[i], fractions[i-1])
	}
}

func TestAnalyze_Interrupt(t *testing.T) {
	URL := stageCSV(t, numberedRows(200))

	t.Run("before start", func(t *testing.T) {
		budget := NewBudget(nil)
		budget.Interrupt()
		analysis, err := Analyze(context.Background(), NewSettings(URL), budget)
		assert.ErrorIs(t, err, ErrInterrupted)
		assert.Nil(t, analysis)
	})

	t.Run("during a stage", func(t *testing.T) {
		var budget *Budget
		budget = NewBudget(func(fraction float64, step string) {
			if step == "delimiters" {
				budget.Interrupt()
			}
		})
		analysis, err := Analyze(context.Background(), NewSettings(URL), budget)
		assert.ErrorIs(t, err, ErrInterrupted)
		assert.Nil(t, analysis)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := Analyze(ctx, NewSettings(URL), nil)
		assert.ErrorIs(t, err, ErrInterrupted)
	})
}

func TestAnalyze_InvalidBaseline(t *testing.T) {
	_, err := Analyze(context.Background(), NewSettings(""), nil)
	var settingsErr *SettingsError
	require.ErrorAs(t, err, &settingsErr)
	assert.Equal(t, "location", settingsErr.Field)

	baseline := NewSettings("mem://localhost/x.csv")
	baseline.ThousandsSeparator = '.'
	_, err = Analyze(context.Background(), baseline, nil)
	require.ErrorAs(t, err, &settingsErr)

	_, err = Analyze(context.Background(), NewSettings("mem://localhost/filereader-test/absent.csv"), nil)
	assert.Error(t, err)
}
