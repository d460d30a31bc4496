package modules

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pastemill/pastemill/internal/registry"
)

// Diagram detects mermaid and PlantUML markup. It never rewrites the
// clipboard, since the markup itself is what a diagram tool wants pasted;
// it reports the finding so the notification layer can point at a viewer.
type Diagram struct {
	// Open, when set, receives the detected markup kind and the full
	// content. Wiring an actual viewer is the embedder's concern.
	Open func(kind, content string)
}

func NewDiagram() *Diagram { return &Diagram{} }

func (d *Diagram) Process(content string) (registry.Outcome, error) {
	kind, ok := detectDiagram(content)
	if !ok {
		return registry.Outcome{}, nil
	}

	note := kind + " diagram detected"
	if title := mermaidTitle(content); title != "" {
		note = fmt.Sprintf("%s diagram detected: %s", kind, title)
	}
	if d.Open != nil {
		d.Open(kind, content)
	}
	return registry.Outcome{Handled: true, Note: note}, nil
}

func looksLikeDiagram(s string) bool {
	_, ok := detectDiagram(s)
	return ok
}

// detectDiagram classifies diagram markup by its opening declaration, after
// peeling any mermaid YAML frontmatter.
func detectDiagram(s string) (string, bool) {
	if strings.Contains(s, "@startuml") {
		return "plantuml", true
	}
	if strings.Contains(s, "```mermaid") {
		return "mermaid", true
	}

	_, body := splitFrontmatter(s)
	first := firstContentLine(body)
	switch {
	case strings.HasPrefix(first, "graph "),
		strings.HasPrefix(first, "graph\t"),
		strings.HasPrefix(first, "flowchart "),
		strings.HasPrefix(first, "flowchart\t"),
		strings.HasPrefix(first, "stateDiagram"):
		return "mermaid", true
	}
	switch first {
	case "sequenceDiagram", "classDiagram", "erDiagram", "gantt", "journey", "mindmap", "timeline", "pie":
		return "mermaid", true
	}
	if strings.HasPrefix(first, "pie title ") {
		return "mermaid", true
	}
	return "", false
}

func firstContentLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if t := strings.TrimSpace(line); t != "" {
			return t
		}
	}
	return ""
}

type frontmatter struct {
	Title string `yaml:"title"`
}

// mermaidTitle extracts the title from a mermaid YAML frontmatter block,
// returning "" when there is none.
func mermaidTitle(s string) string {
	yamlSrc, _ := splitFrontmatter(s)
	if yamlSrc == "" {
		return ""
	}
	var fm frontmatter
	if err := yaml.Unmarshal([]byte(yamlSrc), &fm); err != nil {
		return ""
	}
	return strings.TrimSpace(fm.Title)
}

// splitFrontmatter separates a leading `---` YAML block from the body.
// Mermaid permits one ahead of the diagram declaration.
func splitFrontmatter(s string) (yamlSrc, body string) {
	if !strings.HasPrefix(s, "---\n") && !strings.HasPrefix(s, "---\r\n") {
		return "", s
	}
	rest := s[strings.Index(s, "\n")+1:]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return "", s
	}
	yamlSrc = rest[:end]
	body = rest[end+len("\n---"):]
	if i := strings.Index(body, "\n"); i >= 0 {
		body = body[i+1:]
	} else {
		body = ""
	}
	return yamlSrc, body
}
