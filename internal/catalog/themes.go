package catalog

import (
	"fmt"
	"sync"
)

// Theme is the style set of an active theme extension.
type Theme struct {
	Owner  string            `json:"owner"`
	Name   string            `json:"name"`
	Styles map[string]string `json:"styles"`
}

// Themes is the theme catalog.
type Themes struct {
	mu     sync.RWMutex
	order  ownerOrder
	themes map[string]Theme
}

// NewThemes returns an empty theme catalog.
func NewThemes() *Themes {
	return &Themes{themes: make(map[string]Theme)}
}

// Add registers owner's theme.
func (t *Themes) Add(owner, name string, styles map[string]string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.order.has(owner) {
		return fmt.Errorf("%w: %s", ErrOwnerExists, owner)
	}
	copied := make(map[string]string, len(styles))
	for k, v := range styles {
		copied[k] = v
	}
	t.order = append(t.order, owner)
	t.themes[owner] = Theme{Owner: owner, Name: name, Styles: copied}
	return nil
}

// Remove drops owner's theme.
func (t *Themes) Remove(owner string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.order = t.order.without(owner)
	delete(t.themes, owner)
}

// Active returns themes in activation order. Later themes override earlier
// ones when a host merges their styles.
func (t *Themes) Active() []Theme {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Theme, 0, len(t.order))
	for _, owner := range t.order {
		th := t.themes[owner]
		styles := make(map[string]string, len(th.Styles))
		for k, v := range th.Styles {
			styles[k] = v
		}
		th.Styles = styles
		out = append(out, th)
	}
	return out
}
