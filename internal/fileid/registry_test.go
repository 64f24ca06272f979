package fileid

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInternNormalizesCaseAndSeparators(t *testing.T) {
	r := NewRegistry()

	a, err := r.Intern(`C:\Proj\A.cs`)
	require.NoError(t, err)
	b, err := r.Intern(`c:\proj\a.cs`)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, 1, r.Len())
}

func TestInternEquivalentSpellings(t *testing.T) {
	tests := []struct {
		name  string
		first string
		other string
	}{
		{"mixed separators", `/srv/app\model/widget.go`, "/srv/app/model/widget.go"},
		{"trailing slash", "/srv/app/model/", "/srv/app/model"},
		{"trailing backslash", `C:\Proj\Shared\`, `c:/proj/shared`},
		{"dot elements", "/srv/app/./model/../model/widget.go", "/srv/app/model/widget.go"},
		{"double separators", "/srv//app///widget.go", "/srv/app/widget.go"},
		{"unicode case", "/srv/ÄRGER.go", "/srv/ärger.go"},
		{"nfd vs nfc", "/srv/cafe\u0301.go", "/srv/caf\u00e9.go"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			a, err := r.Intern(tt.first)
			require.NoError(t, err)
			b, err := r.Intern(tt.other)
			require.NoError(t, err)
			assert.Equal(t, a, b)
		})
	}
}

func TestInternDistinctPaths(t *testing.T) {
	r := NewRegistry()

	a, err := r.Intern("/srv/model/widget.go")
	require.NoError(t, err)
	b, err := r.Intern("/srv/model/gadget.go")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, Invalid, a)
	assert.NotEqual(t, Invalid, b)
}

func TestInternRejectsEmptyPath(t *testing.T) {
	r := NewRegistry()

	for _, p := range []string{"", "   "} {
		id, err := r.Intern(p)
		assert.Equal(t, Invalid, id)
		assert.True(t, errors.Is(err, ErrInvalidPath), "Intern(%q) error = %v", p, err)
	}
	assert.Equal(t, 0, r.Len())
}

func TestResolveKeepsFirstSpelling(t *testing.T) {
	r := NewRegistry()

	id, err := r.Intern(`C:\Proj\A.cs`)
	require.NoError(t, err)
	_, err = r.Intern(`c:/proj/a.cs`)
	require.NoError(t, err)

	got, ok := r.Resolve(id)
	require.True(t, ok)
	assert.Equal(t, `C:\Proj\A.cs`, got)

	_, ok = r.Resolve(Invalid)
	assert.False(t, ok)
	_, ok = r.Resolve(id + 1)
	assert.False(t, ok)
}

func TestIDsAreAppendOnly(t *testing.T) {
	r := NewRegistry()
	paths := []string{"/a.go", "/b.go", "/c.go"}

	var ids []ID
	for _, p := range paths {
		id, err := r.Intern(p)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	// Re-interning in a different order must not move anything.
	for i := len(paths) - 1; i >= 0; i-- {
		id, err := r.Intern(paths[i])
		require.NoError(t, err)
		assert.Equal(t, ids[i], id)
	}
	assert.Equal(t, []ID{1, 2, 3}, ids)
}

func TestLookupDoesNotIntern(t *testing.T) {
	r := NewRegistry()

	_, ok := r.Lookup("/srv/a.go")
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())

	id, err := r.Intern("/srv/a.go")
	require.NoError(t, err)
	got, ok := r.Lookup(`\SRV\A.GO`)
	assert.True(t, ok)
	assert.Equal(t, id, got)
}

func TestSetOperations(t *testing.T) {
	s := NewSet(3, 1, 3, Invalid, 2)
	if diff := cmp.Diff([]ID{1, 2, 3}, s.IDs()); diff != "" {
		t.Errorf("NewSet mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, s.Contains(2))
	assert.False(t, s.Contains(4))

	u := s.Union(NewSet(5, 1))
	if diff := cmp.Diff([]ID{1, 2, 3, 5}, u.IDs()); diff != "" {
		t.Errorf("Union mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 3, s.Len(), "Union must not modify the receiver")

	var empty Set
	assert.True(t, empty.Empty())
	assert.Equal(t, s.IDs(), empty.Union(s).IDs())
}

func TestSetPaths(t *testing.T) {
	r := NewRegistry()
	a, _ := r.Intern("/srv/a.go")
	b, _ := r.Intern("/srv/b.go")

	got := NewSet(b, a, 99).Paths(r)
	if diff := cmp.Diff([]string{"/srv/a.go", "/srv/b.go"}, got); diff != "" {
		t.Errorf("Paths mismatch (-want +got):\n%s", diff)
	}
}
