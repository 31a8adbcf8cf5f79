// Command filereader guesses the format of a delimited text file and reads it.
//
// Usage:
//
//	filereader [-m analyze|read] [-c baseline.yaml] [-n rows] [-q 5s] location
//
// In analyze mode the guessed settings are printed as YAML; they can be
// edited and passed back with -c. In read mode the rows are decoded and
// written out again as delimited text.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/jessevdk/go-flags"
	perrors "github.com/pkg/errors"
	"github.com/viant/afs"
	"gopkg.in/yaml.v3"

	"github.com/shapestone/shape-filereader/pkg/filereader"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, os.Stdout, os.Stderr, os.Args[1:])
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run parses args and executes the selected mode, writing results to outW
// and logs to logW.
func run(ctx context.Context, outW, logW io.Writer, args []string) error {
	options := &Options{}
	parser := flags.NewParser(options, flags.HelpFlag|flags.PassDoubleDash)
	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			fmt.Fprintln(outW, flagsErr.Message)
			return nil
		}
		return err
	}

	logger := newLogger(options.LogLevel, options.LogFormat, logW)
	fs := afs.New()
	baseline, err := loadBaseline(ctx, fs, options.ConfigURL, options.Args.Location)
	if err != nil {
		return err
	}
	if baseline.Location == "" {
		return errors.New("no data location: pass it as argument or set location in the baseline")
	}

	opts := []filereader.Option{filereader.WithFS(fs), filereader.WithLogger(logger)}
	if options.ScanLimit > 0 {
		opts = append(opts, filereader.WithScanLimit(options.ScanLimit))
	}

	switch options.Mode {
	case "read":
		return read(ctx, outW, logger, baseline, options, opts)
	default:
		analysis, err := analyze(ctx, logger, baseline, options.QuickAfter, opts)
		if err != nil {
			return err
		}
		data, err := yaml.Marshal(analysis.Settings)
		if err != nil {
			return err
		}
		_, err = outW.Write(data)
		return err
	}
}

// loadBaseline returns default settings for location, overlaid with the YAML
// document at configURL if one is given.
func loadBaseline(ctx context.Context, fs afs.Service, configURL, location string) (*filereader.Settings, error) {
	settings := filereader.NewSettings(location)
	if configURL == "" {
		return settings, nil
	}
	data, err := fs.DownloadWithURL(ctx, configURL)
	if err != nil {
		return nil, perrors.Wrapf(err, "failed to load baseline %v", configURL)
	}
	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, perrors.Wrapf(err, "failed to parse baseline %v", configURL)
	}
	if location != "" {
		settings.Location = location
	}
	return settings, nil
}

func analyze(ctx context.Context, logger *slog.Logger, baseline *filereader.Settings, quickAfter time.Duration, opts []filereader.Option) (*filereader.Analysis, error) {
	budget := filereader.NewBudget(func(fraction float64, step string) {
		logger.Debug("analyzing", "step", step, "progress", fmt.Sprintf("%.0f%%", fraction*100))
	})
	if quickAfter > 0 {
		timer := time.AfterFunc(quickAfter, budget.RequestQuickScan)
		defer timer.Stop()
	}

	analysis, err := filereader.Analyze(ctx, baseline, budget, opts...)
	if err != nil {
		return nil, err
	}
	for _, msg := range analysis.Messages {
		logger.Warn(msg)
	}
	return analysis, nil
}

// read decodes the file and renders the rows back as delimited text. A
// baseline that already lists columns is used as is, otherwise the file is
// analyzed first.
func read(ctx context.Context, outW io.Writer, logger *slog.Logger, baseline *filereader.Settings, options *Options, opts []filereader.Option) error {
	settings := baseline
	if len(baseline.Columns) == 0 {
		analysis, err := analyze(ctx, logger, baseline, options.QuickAfter, opts)
		if err != nil {
			return err
		}
		settings = analysis.Settings
	}
	settings.MaxRowsToRead = options.MaxRows

	decoder, err := filereader.NewDecoder(ctx, settings, opts...)
	if err != nil {
		return err
	}
	defer decoder.Close()

	var rows []*filereader.Row
	for decoder.HasNext() {
		row, err := decoder.Next()
		if err != nil {
			var rowErr *filereader.RowError
			if errors.As(err, &rowErr) {
				logger.Error("row rejected", "line", rowErr.Line, "row", rowErr.RowID, "partial", rowErr.Row.Values())
			}
			return err
		}
		rows = append(rows, row)
	}
	if err := decoder.Err(); err != nil {
		return err
	}
	if decoder.IteratorEndedEarly() {
		logger.Info("stopped before the end of the file", "rows", len(rows))
	}
	if decoder.ArchiveHasMoreEntries() {
		logger.Warn("only the first archive entry was read", "entry", decoder.ArchiveEntryName())
	}

	data, err := filereader.Render(rows, settings)
	if err != nil {
		return err
	}
	_, err = outW.Write(data)
	return err
}
