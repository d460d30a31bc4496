// Package modules contains the built-in clipboard handler modules.
//
// Each module detects one kind of content and either rewrites the clipboard
// (markdown → RTF, html → markdown) or reports what it found (diagram
// markup). Detection must be conservative: a module that is unsure declines
// the payload so the clipboard is left alone.
package modules

import "github.com/pastemill/pastemill/internal/registry"

// Builtins returns the compiled-in handler table in dispatch order.
func Builtins() []registry.Builtin {
	return []registry.Builtin{
		{Name: "markdown", Build: func() (registry.Handler, error) { return NewMarkdown(), nil }},
		{Name: "html", Build: func() (registry.Handler, error) { return NewHTML(), nil }},
		{Name: "diagram", Build: func() (registry.Handler, error) { return NewDiagram(), nil }},
	}
}
