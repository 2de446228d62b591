package helloworld

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webext-labs/webext/internal/extension"
	"go.uber.org/zap"
)

type settingsContext map[string]any

func (c settingsContext) Name() string { return Name }
func (c settingsContext) Dir() string  { return "" }
func (c settingsContext) Setting(key string) (any, bool) {
	v, ok := c[key]
	return v, ok
}
func (c settingsContext) Settings() map[string]any              { return c }
func (c settingsContext) Lookup(string) (extension.Info, bool) { return extension.Info{}, false }
func (c settingsContext) Logger() *zap.Logger                   { return zap.NewNop() }

func newModule(t *testing.T, settings settingsContext) *Module {
	t.Helper()
	m := &Module{}
	require.NoError(t, m.Initialize(settings))
	require.NoError(t, m.Activate())
	return m
}

func TestRenderSidebar_UsesSettings(t *testing.T) {
	m := newModule(t, settingsContext{"greeting": "Hi <there>", "greeting_color": "red"})
	render, ok := m.Exports().LookupRenderer("render_sidebar")
	require.True(t, ok)

	frag, err := render(context.Background())
	require.NoError(t, err)
	assert.Contains(t, frag.HTML, "Hi &lt;there&gt;")
	assert.Contains(t, frag.HTML, "color: red")
}

func TestRenderChat_HiddenWhenDisabled(t *testing.T) {
	m := newModule(t, settingsContext{"show_in_chat": false})
	render, ok := m.Exports().LookupRenderer("render_chat")
	require.True(t, ok)

	frag, err := render(context.Background())
	require.NoError(t, err)
	assert.Empty(t, frag.HTML)

	m = newModule(t, settingsContext{"show_in_chat": true})
	render, _ = m.Exports().LookupRenderer("render_chat")
	frag, err = render(context.Background())
	require.NoError(t, err)
	assert.Contains(t, frag.HTML, DefaultGreeting)
}

func TestUIInitHookPassesPayloadThrough(t *testing.T) {
	m := newModule(t, settingsContext{})
	hook, ok := m.Exports().LookupHook("on_ui_init")
	require.True(t, ok)

	out, err := hook(context.Background(), "payload")
	require.NoError(t, err)
	assert.Equal(t, "payload", out)
}
