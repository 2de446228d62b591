package catalog

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/webext-labs/webext/internal/extension"
	"go.uber.org/zap"
)

// Tool is a callable exposed by an extension.
type Tool struct {
	ID          string
	Description string
	Fn          extension.ToolFunc
}

// ToolInfo describes a registered tool. Ref is the qualified "owner.id" form.
type ToolInfo struct {
	Owner       string `json:"owner"`
	ID          string `json:"id"`
	Ref         string `json:"ref"`
	Description string `json:"description,omitempty"`
}

// Tools is the tool catalog.
type Tools struct {
	mu     sync.RWMutex
	order  ownerOrder
	tools  map[string][]Tool
	logger *zap.Logger
}

// NewTools returns an empty tool catalog.
func NewTools(logger *zap.Logger) *Tools {
	return &Tools{tools: make(map[string][]Tool), logger: logger}
}

// Add registers owner's tools.
func (t *Tools) Add(owner string, tools []Tool) error {
	for _, tool := range tools {
		if tool.Fn == nil {
			return fmt.Errorf("tool %s.%s has no handler", owner, tool.ID)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.order.has(owner) {
		return fmt.Errorf("%w: %s", ErrOwnerExists, owner)
	}
	t.order = append(t.order, owner)
	t.tools[owner] = append([]Tool(nil), tools...)
	return nil
}

// Remove drops owner's tools.
func (t *Tools) Remove(owner string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.order = t.order.without(owner)
	delete(t.tools, owner)
}

// List returns every tool in owner activation order.
func (t *Tools) List() []ToolInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []ToolInfo
	for _, owner := range t.order {
		for _, tool := range t.tools[owner] {
			out = append(out, ToolInfo{
				Owner:       owner,
				ID:          tool.ID,
				Ref:         owner + "." + tool.ID,
				Description: tool.Description,
			})
		}
	}
	return out
}

// lookup resolves "owner.id" or a bare id that only one owner exposes.
func (t *Tools) lookup(ref string) (string, Tool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if owner, id, ok := strings.Cut(ref, "."); ok {
		for _, tool := range t.tools[owner] {
			if tool.ID == id {
				return owner, tool, nil
			}
		}
		return "", Tool{}, fmt.Errorf("%w: %s", ErrToolNotFound, ref)
	}

	var (
		foundOwner string
		found      Tool
		matches    int
	)
	for _, owner := range t.order {
		for _, tool := range t.tools[owner] {
			if tool.ID == ref {
				foundOwner, found = owner, tool
				matches++
			}
		}
	}
	switch matches {
	case 0:
		return "", Tool{}, fmt.Errorf("%w: %s", ErrToolNotFound, ref)
	case 1:
		return foundOwner, found, nil
	default:
		return "", Tool{}, fmt.Errorf("%w: %s is exposed by %d extensions, use owner.%s", ErrAmbiguousTool, ref, matches, ref)
	}
}

// Invoke runs a tool. Errors from the tool are returned to the caller; a
// panic is converted into an error.
func (t *Tools) Invoke(ctx context.Context, ref string, args map[string]any) (result any, err error) {
	owner, tool, err := t.lookup(ref)
	if err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("tool panicked",
				zap.String("owner", owner),
				zap.String("tool", tool.ID),
				zap.Any("panic", r))
			result, err = nil, fmt.Errorf("tool %s.%s panicked: %v", owner, tool.ID, r)
		}
	}()
	if args == nil {
		args = map[string]any{}
	}
	return tool.Fn(ctx, args)
}
