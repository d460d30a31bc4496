package modules

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf16"

	"github.com/pastemill/pastemill/internal/registry"
)

// Markdown rewrites Markdown-looking clipboard text as RTF so a paste into a
// rich-text editor keeps headings, emphasis and code formatting.
type Markdown struct{}

func NewMarkdown() *Markdown { return &Markdown{} }

func (*Markdown) Process(content string) (registry.Outcome, error) {
	if !looksLikeMarkdown(content) {
		return registry.Outcome{}, nil
	}
	return registry.Outcome{
		Handled:        true,
		Replacement:    markdownToRTF(content),
		HasReplacement: true,
		Note:           "markdown converted to rich text",
	}, nil
}

var (
	boldRe    = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	italicRe  = regexp.MustCompile(`\*([^*]+)\*`)
	codeRe    = regexp.MustCompile("`([^`]+)`")
	linkRe    = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	orderedRe = regexp.MustCompile(`^(\d+)[.)] (.*)`)
)

// looksLikeMarkdown scores structural markers and claims the payload once
// enough of them appear. HTML and diagram markup are ruled out first; both
// have their own modules.
func looksLikeMarkdown(s string) bool {
	if looksLikeHTML(s) || looksLikeDiagram(s) {
		return false
	}

	score := 0
	for _, line := range strings.Split(s, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
		case headingLevel(trimmed) > 0:
			score += 2
		case strings.HasPrefix(trimmed, "```"):
			score += 2
		case strings.HasPrefix(trimmed, "- "),
			strings.HasPrefix(trimmed, "* "),
			strings.HasPrefix(trimmed, "+ "),
			strings.HasPrefix(trimmed, "> "):
			score++
		case orderedRe.MatchString(trimmed):
			score++
		}
	}
	if boldRe.MatchString(s) {
		score++
	}
	if codeRe.MatchString(s) {
		score++
	}
	if linkRe.MatchString(s) {
		score++
	}
	return score >= 2
}

// headingLevel returns 1-6 for an ATX heading line, 0 otherwise.
func headingLevel(line string) int {
	level := 0
	for level < len(line) && line[level] == '#' {
		level++
	}
	if level == 0 || level > 6 || level >= len(line) || line[level] != ' ' {
		return 0
	}
	return level
}

// Half-point font sizes per heading level (h1 = 24pt ... h6 = 12pt).
var headingSizes = [...]int{48, 40, 32, 28, 26, 24}

// markdownToRTF converts a practical Markdown subset: ATX headings, bold,
// italic, inline and fenced code, bullet and numbered lists, blockquotes and
// link text. Everything else passes through as plain paragraphs.
func markdownToRTF(md string) string {
	var b strings.Builder
	b.WriteString(`{\rtf1\ansi\ansicpg1252\deff0{\fonttbl{\f0\fswiss Helvetica;}{\f1\fmodern Courier New;}}`)
	b.WriteString("\n")
	b.WriteString(`\f0\fs24`)
	b.WriteString("\n")

	inCode := false
	for _, line := range strings.Split(md, "\n") {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "```") {
			inCode = !inCode
			continue
		}
		if inCode {
			b.WriteString(`{\f1 ` + escapeRTF(line) + `}\line`)
			b.WriteString("\n")
			continue
		}

		switch {
		case trimmed == "":
			b.WriteString(`\par` + "\n")
		case headingLevel(trimmed) > 0:
			level := headingLevel(trimmed)
			text := strings.TrimSpace(trimmed[level+1:])
			fmt.Fprintf(&b, `{\b\fs%d %s}\par`+"\n", headingSizes[level-1], inlineRTF(text))
		case strings.HasPrefix(trimmed, "- "),
			strings.HasPrefix(trimmed, "* "),
			strings.HasPrefix(trimmed, "+ "):
			b.WriteString(`\bullet\tab ` + inlineRTF(trimmed[2:]) + `\par` + "\n")
		case orderedRe.MatchString(trimmed):
			m := orderedRe.FindStringSubmatch(trimmed)
			fmt.Fprintf(&b, `%s.\tab %s\par`+"\n", m[1], inlineRTF(m[2]))
		case strings.HasPrefix(trimmed, "> "):
			b.WriteString(`{\i ` + inlineRTF(trimmed[2:]) + `}\par` + "\n")
		default:
			b.WriteString(inlineRTF(trimmed) + `\par` + "\n")
		}
	}

	b.WriteString("}")
	return b.String()
}

// inlineRTF escapes a line and rewrites inline markup. Escaping comes first:
// the braces the rewrites insert must survive as RTF groups.
func inlineRTF(s string) string {
	s = escapeRTF(s)
	s = codeRe.ReplaceAllString(s, `{\f1 $1}`)
	s = boldRe.ReplaceAllString(s, `{\b $1}`)
	s = italicRe.ReplaceAllString(s, `{\i $1}`)
	s = linkRe.ReplaceAllString(s, `{\ul $1}`)
	return s
}

// escapeRTF escapes RTF control characters and encodes non-ASCII runes as
// \uN? escapes (signed 16-bit decimal, surrogate pairs for the rest).
func escapeRTF(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '\\':
			b.WriteString(`\\`)
		case r == '{':
			b.WriteString(`\{`)
		case r == '}':
			b.WriteString(`\}`)
		case r < 0x80:
			b.WriteRune(r)
		default:
			for _, u := range utf16.Encode([]rune{r}) {
				fmt.Fprintf(&b, `\u%d?`, int16(u))
			}
		}
	}
	return b.String()
}
