package cpuinfo

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srodi/procscope/pkg/types"
)

// countingResolver hands out scopes from a fixed table and tracks how
// many are outstanding.
type countingResolver struct {
	scopes      map[types.Identity][]int
	limit       int
	outstanding int
	acquired    int
	released    int
	calls       int

	// exhausted lists 1-based Resolve calls that fail with
	// ErrScopeExhausted.
	exhausted map[int]bool
}

type fakeScope struct {
	r     *countingResolver
	units map[int]bool
	done  bool
}

func (s *fakeScope) Contains(unit int) bool { return s.units[unit] }

func (s *fakeScope) Release() {
	if s.done {
		return
	}
	s.done = true
	s.r.outstanding--
	s.r.released++
}

func (r *countingResolver) Resolve(id types.Identity) (Scope, error) {
	r.calls++
	if r.exhausted[r.calls] {
		return nil, ErrScopeExhausted
	}
	units, ok := r.scopes[id]
	if !ok {
		return nil, ErrContextGone
	}
	if r.limit > 0 && r.outstanding >= r.limit {
		return nil, ErrScopeExhausted
	}
	r.outstanding++
	r.acquired++
	set := make(map[int]bool, len(units))
	for _, u := range units {
		set[u] = true
	}
	return &fakeScope{r: r, units: set}, nil
}

type idProvider struct{}

func (idProvider) Show(w io.Writer, unit int) error {
	_, err := fmt.Fprintf(w, "cpu%d\n", unit)
	return err
}

func readUnits(t *testing.T, e *Enumerator, id types.Identity) string {
	t.Helper()
	s, err := e.Open(id)
	require.NoError(t, err)
	out, err := io.ReadAll(s)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	return string(out)
}

func TestEnumeratorScopedSubset(t *testing.T) {
	r := &countingResolver{scopes: map[types.Identity][]int{42: {1, 3}}}
	e := &Enumerator{Units: 4, Scoped: true, Resolver: r, Provider: idProvider{}}

	assert.Equal(t, "cpu1\ncpu3\n", readUnits(t, e, 42))
	assert.Zero(t, r.outstanding)
	assert.Equal(t, r.acquired, r.released)
}

func TestEnumeratorUnscopedListsEverything(t *testing.T) {
	r := &countingResolver{scopes: map[types.Identity][]int{42: {1, 3}}}
	e := &Enumerator{Units: 4, Scoped: false, Resolver: r, Provider: idProvider{}}

	assert.Equal(t, "cpu0\ncpu1\ncpu2\ncpu3\n", readUnits(t, e, 42))
	assert.Zero(t, r.acquired, "unscoped enumeration must not resolve scopes")
}

func TestEnumeratorFailsClosedForMissingContext(t *testing.T) {
	r := &countingResolver{scopes: map[types.Identity][]int{}}
	e := &Enumerator{Units: 4, Scoped: true, Resolver: r, Provider: idProvider{}}

	assert.Empty(t, readUnits(t, e, 7))
	assert.Zero(t, r.outstanding)
}

func TestEnumeratorExhaustionFailsOpen(t *testing.T) {
	r := &countingResolver{scopes: map[types.Identity][]int{1: {0}}, limit: 1}
	r.outstanding = 1
	e := &Enumerator{Units: 2, Scoped: true, Resolver: r, Provider: idProvider{}}

	s, err := e.Open(1)
	assert.Nil(t, s)
	assert.ErrorIs(t, err, ErrScopeExhausted)
}

func TestEnumeratorExhaustionDuringNextHidesCandidate(t *testing.T) {
	r := &countingResolver{
		scopes:    map[types.Identity][]int{5: {0, 1, 2, 3}},
		exhausted: map[int]bool{2: true, 4: true},
	}
	e := &Enumerator{Units: 4, Scoped: true, Resolver: r, Provider: idProvider{}}

	assert.Equal(t, "cpu0\ncpu2\n", readUnits(t, e, 5))
	assert.Equal(t, 4, r.calls)
	assert.Zero(t, r.outstanding)
	assert.Equal(t, r.acquired, r.released)
}

func TestVisibleBounds(t *testing.T) {
	r := &countingResolver{scopes: map[types.Identity][]int{1: {0, 1, 2, 3, 4, 5}}}
	e := &Enumerator{Units: 4, Scoped: true, Resolver: r}

	for _, unit := range []int{-1, 4, 5} {
		ok, err := e.Visible(1, unit)
		require.NoError(t, err)
		assert.False(t, ok, "unit %d", unit)
	}
	ok, err := e.Visible(1, 3)
	require.NoError(t, err)
	assert.True(t, ok)

	e.Scoped = false
	ok, err = e.Visible(1, 4)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEnumeratorOrderingProperty(t *testing.T) {
	const units = 16
	for mask := 0; mask < 1<<8; mask += 7 {
		var scope []int
		for u := 0; u < units; u++ {
			if mask&(1<<(u%8)) != 0 && u%3 != 0 {
				scope = append(scope, u)
			}
		}
		r := &countingResolver{scopes: map[types.Identity][]int{9: scope}}
		e := &Enumerator{Units: units, Scoped: true, Resolver: r, Provider: idProvider{}}

		var want strings.Builder
		for _, u := range scope {
			fmt.Fprintf(&want, "cpu%d\n", u)
		}
		assert.Equal(t, want.String(), readUnits(t, e, 9), "mask %#x", mask)
		assert.Zero(t, r.outstanding)
	}
}

func TestIteratorResumesFromCursor(t *testing.T) {
	r := &countingResolver{scopes: map[types.Identity][]int{3: {0, 2, 5, 6}}}
	e := &Enumerator{Units: 8, Scoped: true, Resolver: r}
	it := e.Iterator(3)

	collect := func(pos int64) []int {
		var got []int
		unit, ok, err := it.Start(&pos)
		require.NoError(t, err)
		for ok {
			got = append(got, unit)
			unit, ok = it.Next(unit, &pos)
		}
		return got
	}

	full := collect(0)
	assert.Equal(t, []int{0, 2, 5, 6}, full)
	assert.Equal(t, full, collect(0))
	assert.Equal(t, []int{5, 6}, collect(int64(full[1]+1)))
	assert.Empty(t, collect(100))
}

func TestDefaultShowWithoutProvider(t *testing.T) {
	e := &Enumerator{Units: 1}
	assert.Equal(t, "processor\t: 0\n\n", readUnits(t, e, 1))
}
