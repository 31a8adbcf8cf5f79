// Package source opens delimited data for reading: it resolves the location
// through afs storage, undoes compression by file suffix, decodes the charset
// and keeps count of the bytes and lines consumed.
package source

import (
	"archive/zip"
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"context"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"github.com/ulikunitz/xz"
	"github.com/viant/afs"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"
)

// ErrNoArchiveEntry is returned for a zip archive without any file entry.
var ErrNoArchiveEntry = errors.New("archive has no file entry")

// Compression identifies how the bytes at a location are packed.
type Compression string

const (
	None  Compression = ""
	Gzip  Compression = "gzip"
	Bzip2 Compression = "bzip2"
	XZ    Compression = "xz"
	Zstd  Compression = "zstd"
	Zip   Compression = "zip"
)

// DetectCompression derives the compression from the location suffix.
func DetectCompression(location string) Compression {
	name := strings.ToLower(location)
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	switch {
	case strings.HasSuffix(name, ".gz"), strings.HasSuffix(name, ".gzip"):
		return Gzip
	case strings.HasSuffix(name, ".bz2"):
		return Bzip2
	case strings.HasSuffix(name, ".xz"):
		return XZ
	case strings.HasSuffix(name, ".zst"), strings.HasSuffix(name, ".zstd"):
		return Zstd
	case strings.HasSuffix(name, ".zip"):
		return Zip
	}
	return None
}

// Reader is an opened data source. Read returns decompressed, UTF-8 decoded text.
type Reader struct {
	location string
	counter  *countingReader
	text     io.Reader
	closers  []func() error
	closed   bool

	totalSize   int64
	lines       int64
	entryName   string
	moreEntries bool
}

// Open resolves location with fs and prepares it for reading. An empty
// charset means UTF-8.
func Open(ctx context.Context, fs afs.Service, location, charset string) (*Reader, error) {
	r := &Reader{location: location}
	var err error
	if DetectCompression(location) == Zip {
		err = r.openArchive(ctx, fs)
	} else {
		err = r.openStream(ctx, fs)
	}
	if err != nil {
		_ = r.Close()
		return nil, err
	}
	if err = r.decodeCharset(charset); err != nil {
		_ = r.Close()
		return nil, err
	}
	return r, nil
}

func (r *Reader) openStream(ctx context.Context, fs afs.Service) error {
	object, err := fs.Object(ctx, r.location)
	if err != nil {
		return errors.Wrapf(err, "failed to locate %v", r.location)
	}
	r.totalSize = object.Size()

	raw, err := fs.OpenURL(ctx, r.location)
	if err != nil {
		return errors.Wrapf(err, "failed to open %v", r.location)
	}
	r.closers = append(r.closers, raw.Close)
	r.counter = &countingReader{r: raw}

	switch DetectCompression(r.location) {
	case Gzip:
		gzReader, err := gzip.NewReader(r.counter)
		if err != nil {
			return errors.Wrapf(err, "failed to create gzip reader for %v", r.location)
		}
		r.closers = append(r.closers, gzReader.Close)
		r.text = gzReader
	case Bzip2:
		r.text = bzip2.NewReader(r.counter)
	case XZ:
		xzReader, err := xz.NewReader(r.counter)
		if err != nil {
			return errors.Wrapf(err, "failed to create xz reader for %v", r.location)
		}
		r.text = xzReader
	case Zstd:
		decoder, err := zstd.NewReader(r.counter)
		if err != nil {
			return errors.Wrapf(err, "failed to create zstd reader for %v", r.location)
		}
		r.closers = append(r.closers, func() error { decoder.Close(); return nil })
		r.text = decoder
	default:
		r.text = r.counter
	}
	return nil
}

// openArchive reads the first file entry of a zip archive. The archive
// directory lives at the end of the file, so the archive is downloaded as a
// whole and byte accounting refers to the uncompressed entry.
func (r *Reader) openArchive(ctx context.Context, fs afs.Service) error {
	data, err := fs.DownloadWithURL(ctx, r.location)
	if err != nil {
		return errors.Wrapf(err, "failed to download %v", r.location)
	}
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return errors.Wrapf(err, "failed to read archive %v", r.location)
	}
	var entries []*zip.File
	for _, f := range archive.File {
		if !f.FileInfo().IsDir() {
			entries = append(entries, f)
		}
	}
	if len(entries) == 0 {
		return errors.Wrapf(ErrNoArchiveEntry, "%v", r.location)
	}
	entry := entries[0]
	rc, err := entry.Open()
	if err != nil {
		return errors.Wrapf(err, "failed to open %v in %v", entry.Name, r.location)
	}
	r.closers = append(r.closers, rc.Close)
	r.counter = &countingReader{r: rc}
	r.text = r.counter
	r.totalSize = int64(entry.UncompressedSize64)
	r.entryName = entry.Name
	r.moreEntries = len(entries) > 1
	return nil
}

func (r *Reader) decodeCharset(charset string) error {
	switch strings.ToLower(charset) {
	case "", "utf-8", "utf8":
		return nil
	}
	enc, err := ianaindex.IANA.Encoding(charset)
	if err != nil {
		return errors.Wrapf(err, "unsupported charset %v", charset)
	}
	if enc == nil {
		return errors.Errorf("unsupported charset %v", charset)
	}
	r.text = transform.NewReader(r.text, enc.NewDecoder())
	return nil
}

// Read implements io.Reader.
func (r *Reader) Read(p []byte) (int, error) {
	if r.closed {
		return 0, io.ErrClosedPipe
	}
	n, err := r.text.Read(p)
	r.lines += int64(bytes.Count(p[:n], []byte{'\n'}))
	if err != nil && err != io.EOF {
		return n, errors.Wrapf(err, "failed to read %v", r.location)
	}
	return n, err
}

// Location returns the location the reader was opened with.
func (r *Reader) Location() string {
	return r.location
}

// BytesRead returns the number of source bytes consumed so far. For
// compressed streams this counts compressed bytes, matching TotalSize.
func (r *Reader) BytesRead() int64 {
	if r.counter == nil {
		return 0
	}
	return r.counter.n
}

// TotalSize returns the size of the source in bytes, or 0 if unknown.
func (r *Reader) TotalSize() int64 {
	return r.totalSize
}

// LineNumber returns the 1-based line of the last byte handed out by Read.
// Readers buffer ahead, so this can run ahead of the line being tokenized.
func (r *Reader) LineNumber() int64 {
	return r.lines + 1
}

// ArchiveEntryName returns the name of the archive entry being read, or "" if
// the source is not an archive.
func (r *Reader) ArchiveEntryName() string {
	return r.entryName
}

// ArchiveHasMoreEntries reports whether the archive holds entries besides the one being read.
func (r *Reader) ArchiveHasMoreEntries() bool {
	return r.moreEntries
}

// Close releases the source. It is safe to call more than once.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	var result error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil && result == nil {
			result = errors.Wrapf(err, "failed to close %v", r.location)
		}
	}
	r.closers = nil
	return result
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
