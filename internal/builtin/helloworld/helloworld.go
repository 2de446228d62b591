// Package helloworld is a sample ui extension that renders a configurable
// greeting in the sidebar and chat mount points.
package helloworld

import (
	"context"
	"fmt"
	"html"

	"github.com/webext-labs/webext/internal/extension"
	"github.com/webext-labs/webext/internal/runtime"
	"go.uber.org/zap"
)

// Name is the extension and entrypoint name.
const Name = "hello-world"

// Defaults mirror the package descriptor.
const (
	DefaultGreeting = "Hello from WebExt!"
	DefaultColor    = "#007bff"
)

func init() {
	runtime.Register(Name, func() extension.Module { return &Module{} })
}

// Module implements the hello-world extension.
type Module struct {
	extension.Base
	ctx extension.Context
}

func (m *Module) Initialize(ctx extension.Context) error {
	m.ctx = ctx
	ctx.Logger().Info("initializing hello world extension")
	return nil
}

func (m *Module) Activate() error {
	m.ctx.Logger().Info("activating hello world extension")
	return nil
}

func (m *Module) Deactivate() error {
	m.ctx.Logger().Info("deactivating hello world extension")
	return nil
}

func (m *Module) Exports() *extension.Exports {
	return extension.NewExports().
		Hook("on_ui_init", m.onUIInit).
		Renderer("render_sidebar", m.renderSidebar).
		Renderer("render_chat", m.renderChat)
}

func (m *Module) onUIInit(_ context.Context, payload any) (any, error) {
	m.ctx.Logger().Info("ui initialized, hello world extension is ready")
	return payload, nil
}

func (m *Module) renderSidebar(context.Context) (extension.Fragment, error) {
	greeting, color := m.greeting()
	return extension.Fragment{
		HTML: fmt.Sprintf(`<div style="padding: 1rem; text-align: center; color: %s;"><h3>%s</h3><p>This component is rendered in the sidebar.</p></div>`,
			color, greeting),
		Data: map[string]any{"greeting": greeting},
	}, nil
}

// renderChat renders nothing when show_in_chat is off, which drops the
// component from the chat mount point.
func (m *Module) renderChat(context.Context) (extension.Fragment, error) {
	if show, ok := m.ctx.Setting("show_in_chat"); ok && show == false {
		m.ctx.Logger().Debug("chat greeting hidden", zap.Bool("show_in_chat", false))
		return extension.Fragment{}, nil
	}
	greeting, color := m.greeting()
	return extension.Fragment{
		HTML: fmt.Sprintf(`<div style="margin: 0.5rem 0; padding: 0.5rem;"><p style="color: %s;">%s</p><p>This component is rendered in the chat interface.</p></div>`,
			color, greeting),
	}, nil
}

func (m *Module) greeting() (greeting, color string) {
	greeting, color = DefaultGreeting, DefaultColor
	if v, ok := m.ctx.Setting("greeting"); ok {
		if s, ok := v.(string); ok {
			greeting = s
		}
	}
	if v, ok := m.ctx.Setting("greeting_color"); ok {
		if s, ok := v.(string); ok {
			color = s
		}
	}
	return html.EscapeString(greeting), html.EscapeString(color)
}
