package policy

import (
	"sync/atomic"
	"time"
)

// Holder publishes the current policy table. Readers take a snapshot with
// Current and use it for a whole pipeline run, so a reload never changes the
// policy halfway through an evaluation.
type Holder struct {
	current  atomic.Pointer[Table]
	loadedAt atomic.Int64
}

// NewHolder returns a Holder serving t.
func NewHolder(t *Table) *Holder {
	h := &Holder{}
	h.Store(t)
	return h
}

// Current returns the active table.
func (h *Holder) Current() *Table {
	return h.current.Load()
}

// Store replaces the active table.
func (h *Holder) Store(t *Table) {
	h.current.Store(t)
	h.loadedAt.Store(time.Now().UnixNano())
}

// LoadedAt returns when the active table was installed.
func (h *Holder) LoadedAt() time.Time {
	return time.Unix(0, h.loadedAt.Load())
}

// Reload loads path and installs it when it validates. On error the active
// table is left untouched.
func (h *Holder) Reload(path string) error {
	t, err := LoadFile(path)
	if err != nil {
		return err
	}
	h.Store(t)
	return nil
}
