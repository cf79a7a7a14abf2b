package meminfo

import (
	"fmt"
	"io"

	"github.com/srodi/procscope/pkg/seqfile"
	"github.com/srodi/procscope/pkg/types"
)

// GroupResolver finds the accounting domain of a process. Processes in
// the root group resolve to the system source with scope System.
type GroupResolver interface {
	Group(id types.Identity) (Source, Scope, error)
}

// Aggregator captures and renders meminfo reports.
type Aggregator struct {
	// System reads the machine-wide counters.
	System Source
	// Groups maps a process to its group accounting. When nil every
	// report is system-wide.
	Groups GroupResolver
	// Caps is the static set of optional blocks.
	Caps Capabilities
	// PageShift is log2 of the page size; DefaultPageShift when zero.
	PageShift uint
}

// Capture takes a snapshot of src at the given scope.
func (a *Aggregator) Capture(src Source, scope Scope) *Snapshot {
	return Capture(src, scope, a.Caps)
}

// Shift returns the page shift reports are rendered with.
func (a *Aggregator) Shift() uint {
	if a.PageShift == 0 {
		return DefaultPageShift
	}
	return a.PageShift
}

// resolve picks the source for id. ok is false when the process cannot
// be resolved, in which case the report is empty.
func (a *Aggregator) resolve(id types.Identity) (Source, Scope, bool) {
	if a.Groups == nil {
		return a.System, System, a.System != nil
	}
	src, scope, err := a.Groups.Group(id)
	if err != nil || src == nil {
		return nil, System, false
	}
	return src, scope, true
}

// Snapshot captures the counters id's report would show. ok is false
// when id cannot be resolved.
func (a *Aggregator) Snapshot(id types.Identity) (*Snapshot, bool) {
	src, scope, ok := a.resolve(id)
	if !ok {
		return nil, false
	}
	return a.Capture(src, scope), true
}

// Open starts a report session for id. Each line of the report is one
// item of the session; the snapshot lives until the session stops.
func (a *Aggregator) Open(id types.Identity) (*seqfile.Session[Field], error) {
	s, err := seqfile.Open[Field](a.Iterator(id))
	if err != nil {
		return nil, fmt.Errorf("opening meminfo for pid %d: %w", id, err)
	}
	return s, nil
}

// Iterator returns the raw iterator for callers paging by cursor.
func (a *Aggregator) Iterator(id types.Identity) seqfile.Iterator[Field] {
	return &iterator{a: a, id: id}
}

type iterator struct {
	a      *Aggregator
	id     types.Identity
	fields []Field
}

func (it *iterator) Start(pos *int64) (Field, bool, error) {
	it.fields = nil
	if snap, ok := it.a.Snapshot(it.id); ok {
		it.fields = Fields(snap, it.a.Caps, it.a.Shift())
	}
	if *pos < 0 {
		*pos = 0
	}
	return it.at(*pos)
}

func (it *iterator) at(pos int64) (Field, bool, error) {
	if pos >= int64(len(it.fields)) {
		return Field{}, false, nil
	}
	return it.fields[pos], true, nil
}

func (it *iterator) Next(_ Field, pos *int64) (Field, bool) {
	*pos++
	f, ok, _ := it.at(*pos)
	return f, ok
}

func (it *iterator) Show(w io.Writer, f Field) error {
	_, err := io.WriteString(w, f.String())
	return err
}

func (it *iterator) Stop() {
	it.fields = nil
}
