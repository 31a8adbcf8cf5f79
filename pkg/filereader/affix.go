package filereader

import (
	"strconv"
)

// HeaderAffix checks that a sequence of headers consists of a common prefix
// followed by strictly increasing non-negative integers, as in
// "Row0", "Row1", "Row5".
//
// Start must succeed before Next is meaningful. The zero value is ready to use.
type HeaderAffix struct {
	prefix  string
	index   int64
	started bool
}

// SplitHeader splits header into the text before its longest numeric suffix
// and the suffix value. It reports false if header does not end in a digit or
// the suffix does not fit an int64.
func SplitHeader(header string) (prefix string, index int64, ok bool) {
	i := len(header)
	for i > 0 && header[i-1] >= '0' && header[i-1] <= '9' {
		i--
	}
	if i == len(header) {
		return "", 0, false
	}
	v, err := strconv.ParseInt(header[i:], 10, 64)
	if err != nil {
		return "", 0, false
	}
	return header[:i], v, true
}

// Start begins a new sequence with header.
func (h *HeaderAffix) Start(header string) bool {
	prefix, index, ok := SplitHeader(header)
	h.started = ok
	if !ok {
		return false
	}
	h.prefix = prefix
	h.index = index
	return true
}

// Next checks header against the sequence so far and, on success, makes it
// the new last element.
func (h *HeaderAffix) Next(header string) bool {
	if !h.started {
		return h.Start(header)
	}
	prefix, index, ok := SplitHeader(header)
	if !ok || prefix != h.prefix || index <= h.index {
		return false
	}
	h.index = index
	return true
}

// Prefix returns the common prefix of the sequence.
func (h *HeaderAffix) Prefix() string {
	return h.prefix
}

// consecutiveHeaders reports whether all headers form one affix sequence.
// With requirePrefix a sequence of bare numbers does not count.
func consecutiveHeaders(headers []string, requirePrefix bool) bool {
	if len(headers) == 0 {
		return false
	}
	var h HeaderAffix
	for _, header := range headers {
		if !h.Next(header) {
			return false
		}
	}
	return !requirePrefix || h.Prefix() != ""
}
