// Package debounce delays field edits before committing them, coalescing rapid edits of the same field.
package debounce

import (
	"sort"
	"sync"
	"time"
)

// DefaultDelay is applied when no delay is configured.
const DefaultDelay = 400 * time.Millisecond

type (
	// Timer is a scheduled task that can be stopped before it fires.
	Timer interface {
		Stop() bool
	}

	// Scheduler runs f once after d elapsed, on its own goroutine.
	Scheduler interface {
		AfterFunc(d time.Duration, f func()) Timer
		Now() time.Time
	}

	// CommitFunc receives the surviving value of a field once its delay elapsed.
	CommitFunc func(field, value string)

	// Debouncer holds at most one pending edit per field.
	Debouncer struct {
		delay  time.Duration
		sched  Scheduler
		commit CommitFunc

		mu      sync.Mutex
		pending map[string]*pendingEdit
		closed  bool

		// commitMu serializes commits with Close, so no commit runs once Close returned.
		commitMu sync.Mutex
	}

	pendingEdit struct {
		field    string
		value    string
		deadline time.Time
		timer    Timer
	}
)

// RealScheduler schedules on the runtime timers.
type RealScheduler struct{}

func (RealScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

func (RealScheduler) Now() time.Time {
	return time.Now()
}

// New returns a Debouncer calling commit delay after the last edit of each field.
// A nil sched uses RealScheduler; a negative delay uses DefaultDelay.
func New(delay time.Duration, sched Scheduler, commit CommitFunc) *Debouncer {
	if sched == nil {
		sched = RealScheduler{}
	}
	if delay < 0 {
		delay = DefaultDelay
	}
	return &Debouncer{
		delay:   delay,
		sched:   sched,
		commit:  commit,
		pending: make(map[string]*pendingEdit),
	}
}

// Delay returns the configured delay.
func (d *Debouncer) Delay() time.Duration {
	return d.delay
}

// OnEdit schedules value to be committed for field. An edit still pending for the same field is discarded
// and its deadline reset, so intermediate values are never committed.
func (d *Debouncer) OnEdit(field, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}

	if prev, ok := d.pending[field]; ok {
		prev.timer.Stop()
	}
	edit := &pendingEdit{
		field:    field,
		value:    value,
		deadline: d.sched.Now().Add(d.delay),
	}
	edit.timer = d.sched.AfterFunc(d.delay, func() { d.fire(edit) })
	d.pending[field] = edit
}

// Pending returns the value waiting to be committed for field.
func (d *Debouncer) Pending(field string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if edit, ok := d.pending[field]; ok {
		return edit.value, true
	}
	return "", false
}

// Deadline returns when the pending edit of field is due.
func (d *Debouncer) Deadline(field string) (time.Time, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if edit, ok := d.pending[field]; ok {
		return edit.deadline, true
	}
	return time.Time{}, false
}

// Flush commits the pending edits of fields right away; with no fields, every pending edit is flushed.
// Edits are committed in field name order.
func (d *Debouncer) Flush(fields ...string) {
	d.commitMu.Lock()
	defer d.commitMu.Unlock()

	edits := d.take(fields)
	for _, edit := range edits {
		d.commit(edit.field, edit.value)
	}
}

// Cancel drops the pending edits of fields without committing them; with no fields, every pending edit is dropped.
func (d *Debouncer) Cancel(fields ...string) {
	d.take(fields)
}

// Close cancels every pending edit. Once Close returned, no commit runs.
func (d *Debouncer) Close() {
	d.mu.Lock()
	d.closed = true
	for field, edit := range d.pending {
		edit.timer.Stop()
		delete(d.pending, field)
	}
	d.mu.Unlock()

	// wait for a commit that already started
	d.commitMu.Lock()
	d.commitMu.Unlock()
}

func (d *Debouncer) fire(edit *pendingEdit) {
	d.commitMu.Lock()
	defer d.commitMu.Unlock()

	d.mu.Lock()
	// superseded or cancelled after the timer already fired
	if d.closed || d.pending[edit.field] != edit {
		d.mu.Unlock()
		return
	}
	delete(d.pending, edit.field)
	d.mu.Unlock()

	d.commit(edit.field, edit.value)
}

// take removes and returns the pending edits of fields (all when fields is empty), stopping their timers.
func (d *Debouncer) take(fields []string) []*pendingEdit {
	d.mu.Lock()
	defer d.mu.Unlock()

	names := make([]string, 0, len(d.pending))
	if len(fields) == 0 {
		for field := range d.pending {
			names = append(names, field)
		}
	} else {
		names = append(names, fields...)
	}
	sort.Strings(names)

	edits := make([]*pendingEdit, 0, len(names))
	for _, field := range names {
		edit, ok := d.pending[field]
		if !ok {
			continue
		}
		edit.timer.Stop()
		delete(d.pending, field)
		edits = append(edits, edit)
	}
	return edits
}
