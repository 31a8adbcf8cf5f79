// Package filereader guesses the structure of delimited text files and reads
// them as typed rows.
//
// A file is described by Settings: delimiters, quotes, comments, whitespace,
// decimal and thousands separators, row and column headers, and one
// ColumnSpec per column with its type and missing value marker.
//
// Analyze derives Settings from the data. It reads the file once per stage:
// comments, quotes, delimiters and column count, row headers, then column
// types and column headers. Anything the caller already knows is marked in
// Settings.Fixed (or ColumnSpec.UserSet) and kept as is.
//
// A Decoder reads the file with given Settings and returns one Row at a
// time. Rows that do not fit the settings end decoding with a *RowError that
// names the line and carries the partially read row.
//
// Locations are resolved with github.com/viant/afs, so plain paths, file://,
// mem:// and cloud storage URLs all work. Files ending in .gz, .bz2, .xz,
// .zst and .zip are decompressed transparently.
//
// # Thread Safety
//
// Analyze and NewDecoder may be called concurrently; every call opens its own
// reader. A single Decoder or Scanner must not be shared between goroutines.
// Budget is safe for concurrent use; it is the way to stop an analysis from
// another goroutine.
//
// # Example usage:
//
//	ctx := context.Background()
//	analysis, err := filereader.Analyze(ctx, filereader.NewSettings("/data/sales.csv"), nil)
//	if err != nil {
//	    // handle error
//	}
//	rows, err := filereader.ReadAll(ctx, analysis.Settings)
//	if err != nil {
//	    // handle error
//	}
//	for _, row := range rows {
//	    fmt.Println(row.ID, row.Values())
//	}
//
// # Cancellation
//
// Analysis honors both its context and its Budget. Budget.Interrupt (or a
// cancelled context) ends Analyze with ErrInterrupted. Budget.RequestQuickScan
// lets every remaining stage read only a few rows; the result is then marked
// Partial.
//
//	budget := filereader.NewBudget(func(fraction float64, step string) {
//	    log.Printf("%s %.0f%%", step, fraction*100)
//	})
//	time.AfterFunc(2*time.Second, budget.RequestQuickScan)
//	analysis, err := filereader.Analyze(ctx, settings, budget)
package filereader
