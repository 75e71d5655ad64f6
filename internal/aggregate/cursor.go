package aggregate

import (
	"energyweb/internal/model"
	"energyweb/internal/store"
)

// Cursor is a one-row lookahead over store rows.
type Cursor struct {
	rows     store.Rows
	cur      model.Row
	ok       bool
	consumed int
}

// NewCursor positions the cursor on the first row.
func NewCursor(rows store.Rows) *Cursor {
	c := &Cursor{rows: rows}
	c.load()
	return c
}

func (c *Cursor) load() {
	c.ok = c.rows.Next()
	if c.ok {
		c.cur = c.rows.Row()
	}
}

// Peek returns the current row without consuming it.
func (c *Cursor) Peek() (model.Row, bool) {
	return c.cur, c.ok
}

// Advance consumes the current row. It is a no-op once exhausted.
func (c *Cursor) Advance() {
	if !c.ok {
		return
	}
	c.consumed++
	c.load()
}

func (c *Cursor) Exhausted() bool {
	return !c.ok
}

// Consumed is the number of rows advanced past.
func (c *Cursor) Consumed() int {
	return c.consumed
}

// Err reports a failure of the underlying rows, which also ends iteration.
func (c *Cursor) Err() error {
	return c.rows.Err()
}
