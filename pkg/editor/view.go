package editor

import (
	"fmt"
	"strings"

	"github.com/rivo/uniseg"
)

// Render draws the visible rows, the status bar and the message bar.
func (e *Editor) Render(screen Screen) {
	e.width, e.height = screen.Size()
	e.scroll()
	screen.Clear()

	h := e.textHeight()
	for y := 0; y < h; y++ {
		fileRow := y + e.offset.Y
		row := e.doc.Row(fileRow)
		switch {
		case row != nil:
			screen.DrawText(0, y, row.Slice(e.offset.X, e.offset.X+e.width), StyleDefault)
		case e.doc.IsEmpty() && y == h/3:
			screen.DrawText(0, y, e.welcome(), StyleFiller)
		default:
			screen.DrawText(0, y, "~", StyleFiller)
		}
	}

	if e.height > 1 {
		screen.DrawText(0, e.height-2, e.statusBar(), StyleStatusBar)
	}
	if e.height > 0 && e.now().Sub(e.messageTime) < MessageDuration {
		screen.DrawText(0, e.height-1, e.message, StyleMessage)
	}

	screen.ShowCursor(e.cursorColumn(), e.cursor.Y-e.offset.Y)
	screen.Show()
}

// cursorColumn converts the cursor's character column to a screen cell,
// counting wide characters as two cells.
func (e *Editor) cursorColumn() int {
	row := e.doc.Row(e.cursor.Y)
	if row == nil {
		return 0
	}
	return uniseg.StringWidth(row.Slice(e.offset.X, e.cursor.X))
}

func (e *Editor) welcome() string {
	msg := "cryptlog"
	if e.doc.Name != "" {
		msg += " -- " + e.doc.Name
	}
	w := uniseg.StringWidth(msg)
	if e.width <= w {
		return "~ " + msg
	}
	pad := (e.width - w) / 2
	if pad < 2 {
		pad = 2
	}
	return "~" + strings.Repeat(" ", pad-1) + msg
}

func (e *Editor) statusBar() string {
	name := e.doc.Name
	if name == "" {
		name = "[new entry]"
	}
	left := fmt.Sprintf("%s - %d lines", name, e.doc.Len())
	switch {
	case e.readOnly:
		left += " (read only)"
	case e.doc.IsDirty():
		left += " (modified)"
	}
	right := fmt.Sprintf("%d/%d", e.cursor.Y+1, e.doc.Len())

	lw, rw := uniseg.StringWidth(left), uniseg.StringWidth(right)
	if lw+rw >= e.width {
		return left
	}
	return left + strings.Repeat(" ", e.width-lw-rw) + right
}
