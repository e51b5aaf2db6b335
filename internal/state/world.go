package state

import (
	"context"
	"net/url"
	"strings"
)

// InputKind discriminates the closed set of tab input variants reported by
// the editor host.
type InputKind string

const (
	InputText         InputKind = "Text"
	InputTextDiff     InputKind = "TextDiff"
	InputCustom       InputKind = "Custom"
	InputWebview      InputKind = "Webview"
	InputNotebook     InputKind = "Notebook"
	InputNotebookDiff InputKind = "NotebookDiff"
	InputTerminal     InputKind = "Terminal"
	InputUnknown      InputKind = "Unknown"
)

var inputKinds = map[string]InputKind{
	"text":         InputText,
	"textdiff":     InputTextDiff,
	"custom":       InputCustom,
	"webview":      InputWebview,
	"notebook":     InputNotebook,
	"notebookdiff": InputNotebookDiff,
	"terminal":     InputTerminal,
}

// ParseInputKind maps a host wire tag onto the closed variant set. Anything
// the host adds later lands in Unknown rather than breaking matching.
func ParseInputKind(tag string) InputKind {
	if kind, ok := inputKinds[strings.ToLower(tag)]; ok {
		return kind
	}
	return InputUnknown
}

// TabInput is the typed description of what a tab displays. URI and ViewType
// are populated only for the variants where the host defines them.
type TabInput struct {
	Kind     InputKind `json:"kind"`
	URI      string    `json:"uri,omitempty"`
	ViewType string    `json:"viewType,omitempty"`
}

// Resource returns the primary resource locator, or "" for variants that have
// none (terminals, webviews without a backing resource, unknown inputs).
func (in TabInput) Resource() string {
	switch in.Kind {
	case InputTerminal, InputUnknown:
		return ""
	default:
		return in.URI
	}
}

// View returns the declared view type for Custom and Webview inputs only.
func (in TabInput) View() string {
	switch in.Kind {
	case InputCustom, InputWebview:
		return in.ViewType
	default:
		return ""
	}
}

// Path derives the local path form of the input's resource. Unparseable or
// absent locators yield "".
func (in TabInput) Path() string {
	res := in.Resource()
	if res == "" {
		return ""
	}
	u, err := url.Parse(res)
	if err != nil {
		return ""
	}
	if u.Path != "" {
		return u.Path
	}
	// Opaque URIs like untitled:foo carry the name in the opaque part.
	return u.Opaque
}

// Tab is a read-only view of one host tab.
type Tab struct {
	Label   string   `json:"label"`
	Pinned  bool     `json:"pinned,omitempty"`
	Active  bool     `json:"active,omitempty"`
	Preview bool     `json:"preview,omitempty"`
	Input   TabInput `json:"input"`
	GroupID int      `json:"groupId"`
}

// Identity returns a key identifying the tab's content and kind. Labels alone
// are not unique (two terminals can share a name), and group placement is
// transient, so neither participates except as a resource fallback.
func (t Tab) Identity() string {
	subject := t.Input.Resource()
	if subject == "" {
		subject = t.Label
	}
	return string(t.Input.Kind) + "|" + subject
}

// Group is a host display partition holding an ordered set of tabs.
type Group struct {
	ID       int   `json:"id"`
	Position int   `json:"position"`
	Active   bool  `json:"active,omitempty"`
	Tabs     []Tab `json:"tabs"`
}

// World is a point-in-time snapshot of the host tab layout.
type World struct {
	Groups []Group `json:"groups"`
	Active *Tab    `json:"active,omitempty"`
}

// DataSource abstracts the host queries required to build a snapshot.
type DataSource interface {
	ListGroups(ctx context.Context) ([]Group, error)
	ActiveTab(ctx context.Context) (*Tab, error)
}

// NewWorld builds a snapshot from the data source. Notification payloads are
// never trusted; callers re-query through this on every evaluation.
func NewWorld(ctx context.Context, src DataSource) (*World, error) {
	groups, err := src.ListGroups(ctx)
	if err != nil {
		return nil, err
	}
	active, err := src.ActiveTab(ctx)
	if err != nil {
		return nil, err
	}
	return &World{Groups: groups, Active: active}, nil
}

// GroupByID finds a group by its host identifier, or nil.
func (w *World) GroupByID(id int) *Group {
	for i := range w.Groups {
		if w.Groups[i].ID == id {
			return &w.Groups[i]
		}
	}
	return nil
}

// TabCount returns the total number of tabs across all groups.
func (w *World) TabCount() int {
	n := 0
	for i := range w.Groups {
		n += len(w.Groups[i].Tabs)
	}
	return n
}

// CloneWorld returns a deep copy of the provided snapshot.
func CloneWorld(src *World) *World {
	if src == nil {
		return nil
	}
	out := &World{}
	if len(src.Groups) > 0 {
		out.Groups = make([]Group, len(src.Groups))
		for i, g := range src.Groups {
			clone := g
			if len(g.Tabs) > 0 {
				clone.Tabs = append([]Tab(nil), g.Tabs...)
			}
			out.Groups[i] = clone
		}
	}
	if src.Active != nil {
		active := *src.Active
		out.Active = &active
	}
	return out
}
