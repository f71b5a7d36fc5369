// Package hooks provides the extension points collaborators attach to:
// page-saved, pre-edit, and pre-display. Callbacks run synchronously in
// registration order with a mutable context; no hook cancels or
// short-circuits the chain.
package hooks

import (
	"github.com/sa/flatwiki/internal/users"
	"github.com/sa/flatwiki/internal/wiki"
)

// Action is a UI action a collaborator appends for the current page.
type Action struct {
	Label string
	URL   string
}

// Context is the mutable bag passed through a hook chain.
type Context struct {
	Page         *wiki.Page
	URL          string
	User         *users.User
	Message      string
	ExtraActions []Action
}

// AddAction appends a UI action to the context.
func (c *Context) AddAction(label, url string) {
	c.ExtraActions = append(c.ExtraActions, Action{Label: label, URL: url})
}

// Hook is one registered callback.
type Hook func(*Context)

// Hooks holds the observer lists for each extension point.
type Hooks struct {
	pageSaved  []Hook
	preEdit    []Hook
	preDisplay []Hook
}

// New creates an empty hook registry.
func New() *Hooks {
	return &Hooks{}
}

// OnPageSaved registers a callback invoked after a page is persisted.
func (h *Hooks) OnPageSaved(fn Hook) {
	h.pageSaved = append(h.pageSaved, fn)
}

// OnPreEdit registers a callback invoked before the edit form renders.
func (h *Hooks) OnPreEdit(fn Hook) {
	h.preEdit = append(h.preEdit, fn)
}

// OnPreDisplay registers a callback invoked before a page is displayed.
func (h *Hooks) OnPreDisplay(fn Hook) {
	h.preDisplay = append(h.preDisplay, fn)
}

// PageSaved runs the page-saved chain.
func (h *Hooks) PageSaved(ctx *Context) {
	for _, fn := range h.pageSaved {
		fn(ctx)
	}
}

// PreEdit runs the pre-edit chain.
func (h *Hooks) PreEdit(ctx *Context) {
	for _, fn := range h.preEdit {
		fn(ctx)
	}
}

// PreDisplay runs the pre-display chain.
func (h *Hooks) PreDisplay(ctx *Context) {
	for _, fn := range h.preDisplay {
		fn(ctx)
	}
}
