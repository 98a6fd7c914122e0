// Package document holds the in-memory text buffer of one journal entry.
//
// A Document is an ordered list of Rows. It is mutated one character at a
// time by the editor and serialized back to line-terminated text when the
// entry is saved.
//
// # Edit contract
//
//   - Insert at a row past the end of the document is ignored.
//   - Inserting '\n' splits the row at the cursor.
//   - Delete at the end of a row merges the next row into it.
//   - Any insert or delete that is not ignored marks the document dirty; only
//     MarkSaved clears the flag.
package document

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// ErrInvalidEncoding indicates the entry content is not valid UTF-8.
var ErrInvalidEncoding = errors.New("document: content is not valid UTF-8")

// Position is a cursor location. X is a character column within row Y.
type Position struct {
	X int
	Y int
}

// Document is the editable content of one entry.
type Document struct {
	rows  []*Row
	Name  string // date or file name the document was opened as
	dirty bool
}

// New creates an empty document.
func New(name string) *Document {
	return &Document{Name: name}
}

// FromBytes creates a document from decrypted entry content.
//
// Every line, terminated by "\n" or not, becomes one row. A lone trailing
// "\r" on a line is kept as content so the text round-trips unchanged.
func FromBytes(content []byte, name string) (*Document, error) {
	if !utf8.Valid(content) {
		return nil, ErrInvalidEncoding
	}

	doc := New(name)
	text := string(content)
	if text == "" {
		return doc, nil
	}
	text = strings.TrimSuffix(text, "\n")
	for _, line := range strings.Split(text, "\n") {
		doc.rows = append(doc.rows, NewRow(line))
	}
	return doc, nil
}

// Row returns row index, or nil if it does not exist.
func (d *Document) Row(index int) *Row {
	if index < 0 || index >= len(d.rows) {
		return nil
	}
	return d.rows[index]
}

// Len returns the number of rows.
func (d *Document) Len() int {
	return len(d.rows)
}

// IsEmpty reports whether the document has no rows.
func (d *Document) IsEmpty() bool {
	return len(d.rows) == 0
}

// IsDirty reports whether the document changed since it was created or last saved.
func (d *Document) IsDirty() bool {
	return d.dirty
}

// MarkSaved clears the dirty flag after the content was handed to storage.
func (d *Document) MarkSaved() {
	d.dirty = false
}

// Insert inserts c at pos.
func (d *Document) Insert(pos Position, c rune) {
	if pos.Y < 0 || pos.Y > len(d.rows) {
		return
	}
	d.dirty = true

	if c == '\n' {
		d.insertNewline(pos)
		return
	}

	if pos.Y == len(d.rows) {
		row := NewRow("")
		row.Insert(0, c)
		d.rows = append(d.rows, row)
		return
	}
	d.rows[pos.Y].Insert(pos.X, c)
}

func (d *Document) insertNewline(pos Position) {
	if pos.Y == len(d.rows) {
		d.rows = append(d.rows, NewRow(""))
		return
	}
	rest := d.rows[pos.Y].Split(pos.X)
	d.rows = append(d.rows, nil)
	copy(d.rows[pos.Y+2:], d.rows[pos.Y+1:])
	d.rows[pos.Y+1] = rest
}

// Delete removes the character at pos. At the end of a row the following
// row is merged up into it.
func (d *Document) Delete(pos Position) {
	if pos.Y < 0 || pos.Y >= len(d.rows) {
		return
	}
	d.dirty = true

	row := d.rows[pos.Y]
	if pos.X == row.Len() && pos.Y+1 < len(d.rows) {
		row.Append(d.rows[pos.Y+1])
		d.rows = append(d.rows[:pos.Y+1], d.rows[pos.Y+2:]...)
		return
	}
	row.Delete(pos.X)
}

// String serializes the document, each row followed by "\n".
func (d *Document) String() string {
	var b strings.Builder
	for _, row := range d.rows {
		b.WriteString(row.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// Bytes returns String as bytes, ready to be sealed.
func (d *Document) Bytes() []byte {
	return []byte(d.String())
}
