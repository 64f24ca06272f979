package image_test

import (
	"context"
	"errors"
	"testing"

	"github.com/abramin/sharelens/internal/image"
	"github.com/abramin/sharelens/internal/image/imagetest"
	"github.com/abramin/sharelens/internal/memberkey"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const modelPkg = "example.com/api/model"

var widgetSrc = `package model

import "example.com/shared/dto"

type Widget struct {
	Name string
	size int
	meta dto.Meta
}

type Thing = Widget

type unexported struct{}

func NewWidget(name string) *Widget { return &Widget{Name: name} }

func NewWidgetSized(name string, size int) *Widget { return &Widget{Name: name, size: size} }

func NewWidgetSet() []Widget { return nil }

func (w *Widget) Size() int { return w.size }

func (w *Widget) SetSize(n int) { w.size = n }

func (w Widget) Describe(prefix string, tags ...string) string { return prefix }

func (w *Widget) Meta() dto.Meta { return w.meta }

func (w *Widget) Apply(m dto.Meta, extra ...*dto.Meta) { w.meta = m }
`

var widgetOpsSrc = `package model

func (w *Widget) Rename(name string) error {
	w.Name = name
	return nil
}

func (w *Widget) reset() {}
`

var shapeSrc = `package model

type Shape interface {
	Area() float64
	Scale(f float64)
}
`

var generatedSrc = `package model

type Generated struct{ ID int }
`

var dtoSrc = `package dto

type Meta struct {
	Owner string
}
`

func serverWorkspace() *imagetest.Workspace {
	return &imagetest.Workspace{Modules: map[string]imagetest.Module{
		"/srv/api": {
			Packages: map[string]imagetest.Package{
				modelPkg: {
					"/srv/api/model/widget.go":     widgetSrc,
					"/srv/api/model/widget_ops.go": widgetOpsSrc,
					"/srv/api/model/shape.go":      shapeSrc,
					"/srv/api/model/zz_gen.go":     generatedSrc,
				},
			},
			Deps: map[string]imagetest.Package{
				"example.com/shared/dto": {"/mod/shared/dto/meta.go": dtoSrc},
			},
		},
	}}
}

func openServer(t *testing.T, opts image.Options) *image.Universe {
	t.Helper()
	u, err := image.Open(context.Background(), image.Spec{Name: "server", Dirs: []string{"/srv/api"}}, serverWorkspace(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = u.Close() })
	return u
}

func TestOpenLoadsRootsAndDeps(t *testing.T) {
	u := openServer(t, image.Options{})

	require.Len(t, u.Packages(), 1)
	assert.Equal(t, modelPkg, u.Packages()[0].PkgPath)
	assert.Empty(t, u.Failures())
	assert.Equal(t, "server", u.Name())

	// Dependencies resolve even though they are not roots.
	_, err := u.Resolve(memberkey.Type("example.com/shared/dto.Meta"))
	assert.NoError(t, err)
}

func TestOpenRequiresSearchPath(t *testing.T) {
	_, err := image.Open(context.Background(), image.Spec{Name: "server"}, serverWorkspace(), image.Options{})
	assert.True(t, errors.Is(err, image.ErrNoSearchPath))
}

func TestOpenFailsWhenNothingLoads(t *testing.T) {
	_, err := image.Open(context.Background(),
		image.Spec{Name: "server", Dirs: []string{"/missing"}}, serverWorkspace(), image.Options{})

	var loadErr *image.LoadError
	require.True(t, errors.As(err, &loadErr), "error = %v", err)
	assert.Equal(t, "server", loadErr.Image)
	assert.Len(t, loadErr.Failures, 1)
	assert.Contains(t, err.Error(), "/missing")
}

func TestOpenToleratesFailingDirectory(t *testing.T) {
	u, err := image.Open(context.Background(),
		image.Spec{Name: "client", Dirs: []string{"/missing", "/srv/api"}}, serverWorkspace(), image.Options{})
	require.NoError(t, err)
	defer u.Close()

	assert.Len(t, u.Failures(), 1)
	_, err = u.Resolve(memberkey.Type(modelPkg + ".Widget"))
	assert.NoError(t, err)
}

func TestResolve(t *testing.T) {
	u := openServer(t, image.Options{})
	w := modelPkg + ".Widget"

	tests := []struct {
		name  string
		key   memberkey.Key
		funcs []string
		field string
	}{
		{"type", memberkey.Type(w), nil, ""},
		{"alias", memberkey.Type(modelPkg + ".Thing"), nil, ""},
		{"interface", memberkey.Type(modelPkg + ".Shape"), nil, ""},
		{"field property", memberkey.Property(w, "Name"), nil, "Name"},
		{"unexported field property", memberkey.Property(w, "size"), nil, "size"},
		{"accessor property", memberkey.Property(w, "Size"), []string{"Size", "SetSize"}, ""},
		{"pointer method", memberkey.Method(w, "Rename", []string{"string"}), []string{"Rename"}, ""},
		{"value method with variadic", memberkey.Method(w, "Describe", []string{"string", "...string"}), []string{"Describe"}, ""},
		{"getter as method", memberkey.Method(w, "Meta", nil), []string{"Meta"}, ""},
		{"qualified parameters", memberkey.Method(w, "Apply", []string{"example.com/shared/dto.Meta", "...*example.com/shared/dto.Meta"}), []string{"Apply"}, ""},
		{"interface method", memberkey.Method(modelPkg+".Shape", "Scale", []string{"float64"}), []string{"Scale"}, ""},
		{"constructor", memberkey.Constructor(w, []string{"string"}), []string{"NewWidget"}, ""},
		{"constructor overload", memberkey.Constructor(w, []string{"string", "int"}), []string{"NewWidgetSized"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := u.Resolve(tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.key, e.Key)
			assert.Same(t, u, e.Universe())

			var got []string
			for _, fn := range e.Funcs {
				got = append(got, fn.Name())
			}
			assert.Equal(t, tt.funcs, got)
			if tt.field == "" {
				assert.Nil(t, e.Field)
			} else {
				require.NotNil(t, e.Field)
				assert.Equal(t, tt.field, e.Field.Name())
			}
		})
	}
}

func TestResolveNotFound(t *testing.T) {
	u := openServer(t, image.Options{})
	w := modelPkg + ".Widget"

	keys := []memberkey.Key{
		memberkey.Type(modelPkg + ".Gadget"),
		memberkey.Type("example.com/other.Widget"),
		memberkey.Type("Widget"),
		memberkey.Property(w, "Missing"),
		memberkey.Property(w, "name"),
		memberkey.Method(w, "Rename", nil),
		memberkey.Method(w, "Rename", []string{"*string"}),
		memberkey.Method(w, "Describe", []string{"string", "[]string"}),
		memberkey.Method(w, "Promote", nil),
		memberkey.Method(w, "Apply", []string{"dto.Meta", "...*dto.Meta"}),
		memberkey.Constructor(w, []string{"int"}),
		memberkey.Constructor(w, []string{"int", "string"}),
		memberkey.Constructor(modelPkg+".Shape", nil),
	}
	for _, k := range keys {
		t.Run(k.String(), func(t *testing.T) {
			_, err := u.Resolve(k)
			assert.True(t, errors.Is(err, image.ErrNotFound), "Resolve(%s) error = %v", k, err)
		})
	}
}

func TestEntities(t *testing.T) {
	u := openServer(t, image.Options{ExcludeFiles: []string{"**/zz_gen.go"}})

	var got []string
	for _, k := range u.Entities() {
		got = append(got, k.String())
	}

	want := []string{
		"T:example.com/api/model.Shape",
		"P:example.com/api/model.Shape.Area",
		"M:example.com/api/model.Shape.Scale(float64)",
		"T:example.com/api/model.Widget",
		"P:example.com/api/model.Widget.Meta",
		"P:example.com/api/model.Widget.Name",
		"P:example.com/api/model.Widget.Size",
		"M:example.com/api/model.Widget.Apply(example.com/shared/dto.Meta, ...*example.com/shared/dto.Meta)",
		"M:example.com/api/model.Widget.Describe(string, ...string)",
		"M:example.com/api/model.Widget.Rename(string)",
		"C:example.com/api/model.Widget(string)",
		"C:example.com/api/model.Widget(string, int)",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Entities mismatch (-want +got):\n%s", diff)
	}
}

func TestEntitiesExcludedDirectory(t *testing.T) {
	ws := &imagetest.Workspace{Modules: map[string]imagetest.Module{
		"/srv": {Packages: map[string]imagetest.Package{
			"example.com/api/testdata/fixture": {"/srv/testdata/fixture/f.go": "package fixture\n\ntype Fixture struct{}\n"},
			"example.com/api/live":             {"/srv/live/l.go": "package live\n\ntype Live struct{}\n"},
		}},
	}}
	u, err := image.Open(context.Background(), image.Spec{Name: "server", Dirs: []string{"/srv"}}, ws,
		image.Options{ExcludeDirs: []string{"testdata"}})
	require.NoError(t, err)
	defer u.Close()

	var got []string
	for _, k := range u.Entities() {
		got = append(got, k.String())
	}
	assert.Equal(t, []string{"T:example.com/api/live.Live"}, got)
}

func TestErrorResultIsNotAGetter(t *testing.T) {
	ws := &imagetest.Workspace{Modules: map[string]imagetest.Module{
		"/srv": {Packages: map[string]imagetest.Package{
			"example.com/api/conn": {"/srv/conn/conn.go": `package conn

type Conn struct{}

func (c *Conn) Close() error { return nil }

func (c *Conn) Addr() string { return "" }
`},
		}},
	}}
	u, err := image.Open(context.Background(), image.Spec{Name: "server", Dirs: []string{"/srv"}}, ws, image.Options{})
	require.NoError(t, err)
	defer u.Close()

	var got []string
	for _, k := range u.Entities() {
		got = append(got, k.String())
	}
	assert.Equal(t, []string{
		"T:example.com/api/conn.Conn",
		"P:example.com/api/conn.Conn.Addr",
		"M:example.com/api/conn.Conn.Close()",
	}, got)

	_, err = u.Resolve(memberkey.Property("example.com/api/conn.Conn", "Close"))
	assert.ErrorIs(t, err, image.ErrNotFound)
}

func TestTypeErrorsAreRecordedNotFatal(t *testing.T) {
	ws := &imagetest.Workspace{Modules: map[string]imagetest.Module{
		"/srv": {Packages: map[string]imagetest.Package{
			"example.com/broken": {"/srv/broken/b.go": "package broken\n\ntype Ok struct{}\n\nvar x int = \"s\"\n"},
		}},
	}}
	u, err := image.Open(context.Background(), image.Spec{Name: "server", Dirs: []string{"/srv"}}, ws, image.Options{})
	require.NoError(t, err)
	defer u.Close()

	assert.NotEmpty(t, u.Failures())
	_, err = u.Resolve(memberkey.Type("example.com/broken.Ok"))
	assert.NoError(t, err)
}

func TestUniversesAreIsolated(t *testing.T) {
	ws := serverWorkspace()
	a, err := image.Open(context.Background(), image.Spec{Name: "server", Dirs: []string{"/srv/api"}}, ws, image.Options{})
	require.NoError(t, err)
	defer a.Close()
	b, err := image.Open(context.Background(), image.Spec{Name: "client", Dirs: []string{"/srv/api"}}, ws, image.Options{})
	require.NoError(t, err)
	defer b.Close()

	k := memberkey.Type(modelPkg + ".Widget")
	ea, err := a.Resolve(k)
	require.NoError(t, err)
	eb, err := b.Resolve(k)
	require.NoError(t, err)

	assert.NotSame(t, ea.Type, eb.Type)
	assert.NotSame(t, a.Fset(), b.Fset())
	assert.Equal(t, 2, ws.Calls())
}

func TestEmptyAndClosedUniverses(t *testing.T) {
	empty := image.Empty("client")
	_, err := empty.Resolve(memberkey.Type(modelPkg + ".Widget"))
	assert.True(t, errors.Is(err, image.ErrNotFound))
	assert.Empty(t, empty.Entities())

	u := openServer(t, image.Options{})
	require.NoError(t, u.Close())
	require.NoError(t, u.Close())
	_, err = u.Resolve(memberkey.Type(modelPkg + ".Widget"))
	assert.True(t, errors.Is(err, image.ErrClosed))
	assert.Nil(t, u.Entities())
}
