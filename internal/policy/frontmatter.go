package policy

import (
	"bytes"
	"strings"

	"gopkg.in/yaml.v3"
)

// meta is the YAML frontmatter a message draft may carry
type meta struct {
	Kind        string `yaml:"kind"`
	DiffSize    int    `yaml:"diff_size"`
	MeasuredVia string `yaml:"measured_via"`
}

// ParseDraft splits a message draft into its optional YAML frontmatter, a
// title line, and a body. Frontmatter metadata feeds the body-requirement
// and unverified-metric rules.
func ParseDraft(content []byte) (*Draft, error) {
	var m meta

	if bytes.HasPrefix(content, []byte("---\n")) {
		rest := content[4:]
		if endIdx := bytes.Index(rest, []byte("\n---")); endIdx != -1 {
			if err := yaml.Unmarshal(rest[:endIdx], &m); err != nil {
				return nil, err
			}
			content = bytes.TrimLeft(rest[endIdx+4:], "\n")
		}
	}

	text := strings.TrimSpace(string(content))
	title := text
	body := ""
	if idx := strings.Index(text, "\n"); idx >= 0 {
		title = strings.TrimSpace(text[:idx])
		body = strings.TrimSpace(text[idx+1:])
	}

	return &Draft{
		Kind:        m.Kind,
		Title:       title,
		Body:        body,
		DiffSize:    m.DiffSize,
		MeasuredVia: m.MeasuredVia,
	}, nil
}
