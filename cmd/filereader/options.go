package main

import "time"

// Options are the command line options.
type Options struct {
	Mode       string        `short:"m" long:"mode" choice:"analyze" choice:"read" default:"analyze" description:"analyze prints the guessed settings as YAML, read prints the decoded rows"`
	ConfigURL  string        `short:"c" long:"cfg" description:"baseline settings YAML URL"`
	MaxRows    int64         `short:"n" long:"max-rows" default:"-1" description:"maximum number of rows to read, -1 for all"`
	QuickAfter time.Duration `short:"q" long:"quick-after" description:"finish the analysis with a quick scan after this duration"`
	ScanLimit  int           `long:"scan-limit" description:"rows every analysis stage reads, 0 for all"`
	LogLevel   string        `long:"log-level" choice:"debug" choice:"info" choice:"warn" choice:"error" default:"warn" description:"log level"`
	LogFormat  string        `long:"log-format" choice:"text" choice:"json" default:"text" description:"log format"`

	Args struct {
		Location string `positional-arg-name:"location" description:"data file path or URL"`
	} `positional-args:"yes"`
}
