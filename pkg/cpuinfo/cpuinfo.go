// Package cpuinfo enumerates the logical CPUs visible to a process.
package cpuinfo

import (
	"errors"
	"fmt"
	"io"

	"github.com/srodi/procscope/pkg/seqfile"
	"github.com/srodi/procscope/pkg/types"
)

var (
	// ErrContextGone means the requesting process could not be resolved.
	// Visibility checks fail closed on it.
	ErrContextGone = types.ErrContextGone
	// ErrScopeExhausted means no membership set could be acquired to
	// resolve a scope.
	ErrScopeExhausted = errors.New("cpuinfo: cpu mask pool exhausted")
)

// Scope is a temporary membership set of CPU ids. It must be released
// once the caller is done testing membership.
type Scope interface {
	Contains(unit int) bool
	Release()
}

// ScopeResolver resolves the CPUs an identity may use.
type ScopeResolver interface {
	Resolve(id types.Identity) (Scope, error)
}

// UnitProvider renders the attributes of one CPU.
type UnitProvider interface {
	Show(w io.Writer, unit int) error
}

// Enumerator lists CPUs in ascending id order, skipping those outside
// the requesting process's scope when Scoped is set.
type Enumerator struct {
	// Units is the number of possible CPU ids.
	Units int
	// Scoped enables filtering. When false every id in [0, Units) is
	// visible and Resolver is never consulted.
	Scoped   bool
	Resolver ScopeResolver
	Provider UnitProvider
}

// Visible reports whether unit belongs to the scope of id. Resolution
// failures make the unit invisible; only ErrScopeExhausted is returned.
func (e *Enumerator) Visible(id types.Identity, unit int) (bool, error) {
	if unit < 0 || unit >= e.Units {
		return false, nil
	}
	if !e.Scoped {
		return true, nil
	}
	if e.Resolver == nil {
		return false, nil
	}

	scope, err := e.Resolver.Resolve(id)
	if err != nil {
		if errors.Is(err, ErrScopeExhausted) {
			return false, err
		}
		return false, nil
	}
	defer scope.Release()

	return scope.Contains(unit), nil
}

// Open starts a report session bound to id.
func (e *Enumerator) Open(id types.Identity) (*seqfile.Session[int], error) {
	s, err := seqfile.Open[int](&iterator{e: e, id: id})
	if err != nil {
		return nil, fmt.Errorf("opening cpuinfo for pid %d: %w", id, err)
	}
	return s, nil
}

// Iterator returns the raw iterator for callers paging by cursor.
func (e *Enumerator) Iterator(id types.Identity) seqfile.Iterator[int] {
	return &iterator{e: e, id: id}
}

type iterator struct {
	e  *Enumerator
	id types.Identity
}

// scan moves *pos to the first visible unit at or after it.
func (it *iterator) scan(pos *int64) (int, bool, error) {
	if *pos < 0 {
		*pos = 0
	}
	for ; *pos < int64(it.e.Units); (*pos)++ {
		ok, err := it.e.Visible(it.id, int(*pos))
		if err != nil {
			return 0, false, err
		}
		if ok {
			return int(*pos), true, nil
		}
	}
	return 0, false, nil
}

func (it *iterator) Start(pos *int64) (int, bool, error) {
	return it.scan(pos)
}

func (it *iterator) Next(_ int, pos *int64) (int, bool) {
	*pos++
	for {
		unit, ok, err := it.scan(pos)
		if err == nil {
			return unit, ok
		}
		// mask exhaustion mid-report hides the candidate
		*pos++
	}
}

func (it *iterator) Show(w io.Writer, unit int) error {
	if it.e.Provider == nil {
		_, err := fmt.Fprintf(w, "processor\t: %d\n\n", unit)
		return err
	}
	return it.e.Provider.Show(w, unit)
}

func (it *iterator) Stop() {}
