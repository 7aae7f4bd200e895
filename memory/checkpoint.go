package memory

import (
	"time"

	"github.com/sentientlabs/companion-sdk/core"
)

// Checkpoint is the working-state snapshot for one thread: the
// recent turn window the pipeline recalls from, plus bookkeeping.
// At most one current checkpoint exists per thread; Put replaces
// whatever was there (last-writer-wins, no merge).
type Checkpoint struct {
	ThreadID  string      `json:"thread_id"`
	Window    []core.Turn `json:"window"` // recent turns, oldest first
	UpdatedAt time.Time   `json:"updated_at"`
}

// Clone returns a deep copy so stored checkpoints never alias caller
// slices.
func (c *Checkpoint) Clone() *Checkpoint {
	if c == nil {
		return nil
	}
	cp := &Checkpoint{
		ThreadID:  c.ThreadID,
		UpdatedAt: c.UpdatedAt,
	}
	if c.Window != nil {
		cp.Window = make([]core.Turn, len(c.Window))
		copy(cp.Window, c.Window)
	}
	return cp
}
