package document

// Row is one line of a document. Columns address runes, not bytes, so a
// cursor column stays valid for multi-byte text.
type Row struct {
	runes []rune
	len   int
}

// NewRow creates a row holding s.
func NewRow(s string) *Row {
	r := []rune(s)
	return &Row{runes: r, len: len(r)}
}

// Len returns the number of characters in the row.
func (r *Row) Len() int {
	return r.len
}

// IsEmpty reports whether the row holds no characters.
func (r *Row) IsEmpty() bool {
	return r.len == 0
}

// String renders the whole row.
func (r *Row) String() string {
	return string(r.runes)
}

// Slice renders characters [start, end), clamped to the row.
func (r *Row) Slice(start, end int) string {
	end = min(end, r.len)
	start = min(max(start, 0), end)
	return string(r.runes[start:end])
}

// Insert puts c before column at. Columns past the end append.
func (r *Row) Insert(at int, c rune) {
	if at >= r.len {
		r.runes = append(r.runes, c)
	} else {
		at = max(at, 0)
		r.runes = append(r.runes, 0)
		copy(r.runes[at+1:], r.runes[at:])
		r.runes[at] = c
	}
	r.len++
}

// Delete removes the character at column at. Columns past the end are ignored.
func (r *Row) Delete(at int) {
	if at < 0 || at >= r.len {
		return
	}
	r.runes = append(r.runes[:at], r.runes[at+1:]...)
	r.len--
}

// Append adds the content of other to the end of r.
func (r *Row) Append(other *Row) {
	r.runes = append(r.runes, other.runes...)
	r.len += other.len
}

// Split truncates r to the characters before column at and returns a new row
// holding the rest.
func (r *Row) Split(at int) *Row {
	at = min(max(at, 0), r.len)
	rest := make([]rune, r.len-at)
	copy(rest, r.runes[at:])
	r.runes = r.runes[:at]
	r.len = at
	return &Row{runes: rest, len: len(rest)}
}
