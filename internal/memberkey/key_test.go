package memberkey

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const widget = "example.com/api/model.Widget"

func TestKeysCompareExactly(t *testing.T) {
	assert.Equal(t, Type(widget), Type(widget))
	assert.NotEqual(t, Type(widget), Type("example.com/api/model.widget"))
	assert.NotEqual(t, Type(widget), Type("example.com/client/model.Widget"))

	assert.Equal(t, Method(widget, "Rename", []string{"string"}), Method(widget, "Rename", []string{"string"}))
	assert.NotEqual(t, Method(widget, "Rename", []string{"string"}), Method(widget, "Rename", []string{"*string"}))
	assert.NotEqual(t, Method(widget, "Rename", []string{"string", "int"}), Method(widget, "Rename", []string{"int", "string"}))
	assert.Equal(t, Method(widget, "Reset", nil), Method(widget, "Reset", []string{}))

	// A property and a zero-argument method of the same name are different declarations.
	assert.NotEqual(t, Property(widget, "Name"), Method(widget, "Name", nil))
	assert.NotEqual(t, Constructor(widget, nil), Type(widget))
}

func TestParamListsDoNotCollideWhenJoined(t *testing.T) {
	a := Method(widget, "Apply", []string{"func(int, string)"})
	b := Method(widget, "Apply", []string{"func(int", "string)"})
	assert.NotEqual(t, a, b)
}

func TestKeysAreUsableAsMapKeys(t *testing.T) {
	seen := map[Key]int{}
	seen[Constructor(widget, []string{"string"})]++
	seen[Constructor(widget, []string{"string"})]++
	seen[Constructor(widget, []string{"int"})]++

	assert.Equal(t, 2, seen[Constructor(widget, []string{"string"})])
	assert.Len(t, seen, 2)
}

func TestAccessors(t *testing.T) {
	k := Method(widget, "Rename", []string{"string", "...int"})

	assert.Equal(t, KindMethod, k.Kind())
	assert.Equal(t, widget, k.TypeName())
	assert.Equal(t, "Rename", k.Member())
	assert.Equal(t, []string{"string", "...int"}, k.Params())
	assert.Equal(t, Type(widget), k.TypeKey())
	assert.Nil(t, Type(widget).Params())
	assert.True(t, Key{}.IsZero())
}

func TestStringAndParseRoundTrip(t *testing.T) {
	tests := []struct {
		key  Key
		text string
	}{
		{Type(widget), "T:example.com/api/model.Widget"},
		{Type("gopkg.in/yaml.v3.Node"), "T:gopkg.in/yaml.v3.Node"},
		{Property(widget, "Name"), "P:example.com/api/model.Widget.Name"},
		{Method(widget, "Reset", nil), "M:example.com/api/model.Widget.Reset()"},
		{
			Method(widget, "Apply", []string{"func(int, string) error", "map[string][]int", "...*example.com/api/model.Gadget"}),
			"M:example.com/api/model.Widget.Apply(func(int, string) error, map[string][]int, ...*example.com/api/model.Gadget)",
		},
		{Constructor(widget, []string{"string"}), "C:example.com/api/model.Widget(string)"},
		{Constructor(widget, nil), "C:example.com/api/model.Widget()"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.text, tt.key.String())

			got, err := Parse(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.key, got)
		})
	}
}

func TestParseErrors(t *testing.T) {
	bad := []string{
		"",
		"Widget",
		"X:example.com/a.B",
		"T:Widget",
		"T:example.com/a.",
		"P:example.com/a.B",
		"M:example.com/a.B.Do",
		"M:example.com/a.B.Do(string",
		"M:example.com/a.B.Do(func(int)",
		"C:example.com/a.B(string, )",
	}
	for _, s := range bad {
		t.Run(s, func(t *testing.T) {
			_, err := Parse(s)
			assert.True(t, errors.Is(err, ErrSyntax), "Parse(%q) error = %v", s, err)
		})
	}
}

func TestSplitQualified(t *testing.T) {
	tests := []struct {
		in     string
		pkg    string
		name   string
		wantOK bool
	}{
		{"example.com/api/model.Widget", "example.com/api/model", "Widget", true},
		{"gopkg.in/yaml.v3.Node", "gopkg.in/yaml.v3", "Node", true},
		{"main.Config", "main", "Config", true},
		{"Widget", "", "", false},
		{"example.com/api.v2/model", "", "", false},
		{".Widget", "", "", false},
		{"example.com/model.", "", "", false},
	}
	for _, tt := range tests {
		pkg, name, ok := SplitQualified(tt.in)
		if ok != tt.wantOK || pkg != tt.pkg || name != tt.name {
			t.Errorf("SplitQualified(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tt.in, pkg, name, ok, tt.pkg, tt.name, tt.wantOK)
		}
	}
}

func TestSplitParams(t *testing.T) {
	got, err := SplitParams("int, map[string]func(a, b int) (bool, error), struct{ X, Y int }")
	require.NoError(t, err)
	want := []string{"int", "map[string]func(a, b int) (bool, error)", "struct{ X, Y int }"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("SplitParams mismatch (-want +got):\n%s", diff)
	}

	got, err = SplitParams("  ")
	require.NoError(t, err)
	assert.Nil(t, got)
}
