package modules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"

	"github.com/pastemill/pastemill/internal/registry"
)

// HTML rewrites HTML clipboard payloads as Markdown. Pages copied out of a
// browser arrive full of script and tracking markup, so content is run
// through a sanitizer before conversion.
type HTML struct {
	policy *bluemonday.Policy
	conv   *converter.Converter
}

func NewHTML() *HTML {
	return &HTML{
		policy: bluemonday.UGCPolicy(),
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

func (h *HTML) Process(content string) (registry.Outcome, error) {
	if !looksLikeHTML(content) {
		return registry.Outcome{}, nil
	}

	clean := h.policy.Sanitize(content)
	md, err := h.conv.ConvertString(clean)
	if err != nil {
		return registry.Outcome{}, fmt.Errorf("convert html: %w", err)
	}
	md = strings.TrimSpace(md)
	if md == "" {
		// Nothing convertible survived; leave the clipboard alone.
		return registry.Outcome{}, nil
	}
	return registry.Outcome{
		Handled:        true,
		Replacement:    md,
		HasReplacement: true,
		Note:           "html converted to markdown",
	}, nil
}

var htmlTagRe = regexp.MustCompile(`(?i)</?(!doctype|html|head|body|div|p|span|a|ul|ol|li|h[1-6]|table|tr|td|th|br|hr|img|strong|em|b|i|u|pre|code|blockquote|article|section)\b[^>]*>`)

// looksLikeHTML wants real markup, not stray angle brackets: either a
// document-level tag or at least two recognized tags.
func looksLikeHTML(s string) bool {
	if !strings.ContainsRune(s, '<') {
		return false
	}
	matches := htmlTagRe.FindAllString(s, 2)
	if len(matches) >= 2 {
		return true
	}
	if len(matches) == 1 {
		lower := strings.ToLower(matches[0])
		return strings.HasPrefix(lower, "<!doctype") || strings.HasPrefix(lower, "<html")
	}
	return false
}
