package filereader

import "strconv"

// RowIDRegistry tracks the row identifiers handed out during one decoding pass.
type RowIDRegistry struct {
	ids map[string]*rowIDEntry
}

type rowIDEntry struct {
	line   int64
	suffix int
}

// NewRowIDRegistry returns an empty registry.
func NewRowIDRegistry() *RowIDRegistry {
	return &RowIDRegistry{ids: map[string]*rowIDEntry{}}
}

// Uniquify returns id if it was not seen before, and otherwise id with "_N"
// appended for the smallest N not used for id yet. The returned identifier is
// recorded, so "A", "A", "A" yields "A", "A_1", "A_2".
func (r *RowIDRegistry) Uniquify(id string, line int64) string {
	entry, seen := r.ids[id]
	if !seen {
		r.ids[id] = &rowIDEntry{line: line}
		return id
	}
	for {
		entry.suffix++
		candidate := id + "_" + strconv.Itoa(entry.suffix)
		if _, taken := r.ids[candidate]; !taken {
			r.ids[candidate] = &rowIDEntry{line: line}
			return candidate
		}
	}
}

// Register records id. If id was registered before, it returns the line of
// the first occurrence and true.
func (r *RowIDRegistry) Register(id string, line int64) (int64, bool) {
	if entry, seen := r.ids[id]; seen {
		return entry.line, true
	}
	r.ids[id] = &rowIDEntry{line: line}
	return 0, false
}

// Len returns the number of recorded identifiers.
func (r *RowIDRegistry) Len() int {
	return len(r.ids)
}
