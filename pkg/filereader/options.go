package filereader

import (
	"io"
	"log/slog"

	"github.com/viant/afs"
)

const (
	// commentScanLines bounds the lines inspected for comment markers.
	commentScanLines = 1000
	// quickScanRows is the number of rows a stage still reads once a quick
	// scan was requested.
	quickScanRows = 100
	// progressInterval is the number of source bytes between decoder progress reports.
	progressInterval = 512 * 1024
)

// Option configures Analyze, NewDecoder and Sniffer.
type Option func(*config)

type config struct {
	fs            afs.Service
	logger        *slog.Logger
	scanLimit     int
	quickScanRows int
	progress      func(fraction float64)
}

func newConfig(opts []Option) *config {
	cfg := &config{
		quickScanRows: quickScanRows,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.fs == nil {
		cfg.fs = afs.New()
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return cfg
}

// WithFS sets the storage service used to open data locations.
func WithFS(fs afs.Service) Option {
	return func(c *config) {
		c.fs = fs
	}
}

// WithLogger sets the logger. By default nothing is logged.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithScanLimit makes every analysis stage read at most rows rows. Zero or a
// negative value scans the whole file.
func WithScanLimit(rows int) Option {
	return func(c *config) {
		c.scanLimit = rows
	}
}

// WithQuickScanRows sets how many rows a stage reads once a quick scan was requested.
func WithQuickScanRows(rows int) Option {
	return func(c *config) {
		if rows > 0 {
			c.quickScanRows = rows
		}
	}
}

// WithProgress sets a callback the decoder invokes with the fraction of the
// source consumed. It is only called when the source size is known.
func WithProgress(fn func(fraction float64)) Option {
	return func(c *config) {
		c.progress = fn
	}
}
