package catalog

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webext-labs/webext/internal/extension"
	"go.uber.org/zap"
)

func fragment(html string) extension.RenderFunc {
	return func(context.Context) (extension.Fragment, error) {
		return extension.Fragment{HTML: html}, nil
	}
}

// mountIDs returns the component ids of mount, in display order.
func mountIDs(c *Components, mount string) []string {
	refs := c.MountPoint(mount)
	ids := make([]string, len(refs))
	for i, ref := range refs {
		ids[i] = ref.ID
	}
	return ids
}

func TestComponents_MountPointMembership(t *testing.T) {
	c := NewComponents(zap.NewNop())

	require.NoError(t, c.Add("hello-world",
		map[string]extension.RenderFunc{"hello_sidebar": fragment("hi"), "hello_chat": fragment("chat")},
		map[string][]string{"sidebar": {"hello_sidebar"}, "chat": {"hello_chat"}}))
	require.NoError(t, c.Add("clock",
		map[string]extension.RenderFunc{"clock_widget": fragment("12:00")},
		map[string][]string{"sidebar": {"clock_widget"}}))

	assert.Equal(t, []string{"hello_sidebar", "clock_widget"}, mountIDs(c, "sidebar"))
	assert.Equal(t, []string{"hello_chat"}, mountIDs(c, "chat"))

	c.Remove("hello-world")
	assert.Equal(t, []string{"clock_widget"}, mountIDs(c, "sidebar"))
	assert.Empty(t, mountIDs(c, "chat"))

	// Re-adding puts the owner after the ones still active.
	require.NoError(t, c.Add("hello-world",
		map[string]extension.RenderFunc{"hello_sidebar": fragment("hi")},
		map[string][]string{"sidebar": {"hello_sidebar"}}))
	assert.Equal(t, []string{"clock_widget", "hello_sidebar"}, mountIDs(c, "sidebar"))
}

func TestComponents_AddRejects(t *testing.T) {
	c := NewComponents(zap.NewNop())

	err := c.Add("x", map[string]extension.RenderFunc{}, map[string][]string{"sidebar": {"ghost"}})
	assert.Error(t, err)

	// A rejected Add leaves nothing behind, so the owner can be added again.
	require.NoError(t, c.Add("x", nil, nil))
	assert.ErrorIs(t, c.Add("x", nil, nil), ErrOwnerExists)
}

func TestComponents_RenderSkipsFailures(t *testing.T) {
	c := NewComponents(zap.NewNop())
	require.NoError(t, c.Add("mixed",
		map[string]extension.RenderFunc{
			"ok":    fragment("<p>ok</p>"),
			"err":   func(context.Context) (extension.Fragment, error) { return extension.Fragment{}, errors.New("nope") },
			"panic": func(context.Context) (extension.Fragment, error) { panic("bad") },
		},
		map[string][]string{"main": {"err", "ok", "panic"}}))

	out := c.Render(context.Background(), "main")
	require.Len(t, out, 1)
	assert.Equal(t, "ok", out[0].ID)
	assert.Equal(t, "<p>ok</p>", out[0].HTML)
}

func TestComponents_MountPointIsACopy(t *testing.T) {
	c := NewComponents(zap.NewNop())
	require.NoError(t, c.Add("a", map[string]extension.RenderFunc{"w": fragment("")}, map[string][]string{"footer": {"w"}}))

	refs := c.MountPoint("footer")
	refs[0].ID = "mutated"
	assert.Equal(t, []string{"w"}, mountIDs(c, "footer"))
}

func TestRoutes_ServeAndRemove(t *testing.T) {
	r := NewRoutes()
	weather := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		_, _ = io.WriteString(w, "weather in "+chi.URLParam(req, "location"))
	})
	require.NoError(t, r.Add("weather-tool", []Route{
		{Path: "/weather/{location}", Methods: []string{"GET"}, Handler: weather},
	}))

	h, ok := r.Handler("weather-tool")
	require.True(t, ok)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/weather/Oslo", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "weather in Oslo", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/weather/Oslo", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	assert.Equal(t, []RouteInfo{{Owner: "weather-tool", Path: "/weather/{location}", Methods: []string{"GET"}}}, r.List())

	r.Remove("weather-tool")
	_, ok = r.Handler("weather-tool")
	assert.False(t, ok)
	assert.Empty(t, r.List())
}

func TestRoutes_AddRejectsInvalid(t *testing.T) {
	r := NewRoutes()
	ok := http.NotFoundHandler()

	assert.Error(t, r.Add("x", []Route{{Path: "/a", Methods: []string{"GET"}}}))
	assert.Error(t, r.Add("x", []Route{{Path: "/a", Methods: []string{"BREW"}, Handler: ok}}))
	_, found := r.Handler("x")
	assert.False(t, found)
}

func TestTools_Invoke(t *testing.T) {
	tools := NewTools(zap.NewNop())
	echo := func(_ context.Context, args map[string]any) (any, error) { return args["text"], nil }

	require.NoError(t, tools.Add("a", []Tool{{ID: "echo", Fn: echo}, {ID: "only_a", Fn: echo}}))
	require.NoError(t, tools.Add("b", []Tool{{ID: "echo", Fn: echo}}))

	got, err := tools.Invoke(context.Background(), "only_a", map[string]any{"text": "x"})
	require.NoError(t, err)
	assert.Equal(t, "x", got)

	got, err = tools.Invoke(context.Background(), "b.echo", map[string]any{"text": "y"})
	require.NoError(t, err)
	assert.Equal(t, "y", got)

	_, err = tools.Invoke(context.Background(), "echo", nil)
	assert.ErrorIs(t, err, ErrAmbiguousTool)

	_, err = tools.Invoke(context.Background(), "c.echo", nil)
	assert.ErrorIs(t, err, ErrToolNotFound)

	tools.Remove("a")
	got, err = tools.Invoke(context.Background(), "echo", map[string]any{"text": "z"})
	require.NoError(t, err)
	assert.Equal(t, "z", got)
	assert.Len(t, tools.List(), 1)
}

func TestTools_InvokeRecoversPanic(t *testing.T) {
	tools := NewTools(zap.NewNop())
	require.NoError(t, tools.Add("p", []Tool{{ID: "boom", Fn: func(context.Context, map[string]any) (any, error) { panic("x") }}}))

	_, err := tools.Invoke(context.Background(), "boom", nil)
	assert.Error(t, err)
}

func TestThemes(t *testing.T) {
	th := NewThemes()
	require.NoError(t, th.Add("dark", "Dark", map[string]string{"--bg": "#000"}))
	require.NoError(t, th.Add("contrast", "Contrast", map[string]string{"--fg": "#fff"}))

	active := th.Active()
	require.Len(t, active, 2)
	assert.Equal(t, "Dark", active[0].Name)

	th.Remove("dark")
	assert.Len(t, th.Active(), 1)
}

func TestSet_RemoveOwner(t *testing.T) {
	s := NewSet(nil)
	require.NoError(t, s.Components.Add("x", map[string]extension.RenderFunc{"c": fragment("")}, map[string][]string{"header": {"c"}}))
	require.NoError(t, s.Tools.Add("x", []Tool{{ID: "t", Fn: func(context.Context, map[string]any) (any, error) { return nil, nil }}}))
	require.NoError(t, s.Routes.Add("x", []Route{{Path: "/p", Methods: []string{"GET"}, Handler: http.NotFoundHandler()}}))
	require.NoError(t, s.Themes.Add("x", "X", nil))

	s.RemoveOwner("x")
	assert.Empty(t, s.Components.MountPoint("header"))
	assert.Empty(t, s.Tools.List())
	assert.Empty(t, s.Themes.Active())
	_, found := s.Routes.Handler("x")
	assert.False(t, found)
}
