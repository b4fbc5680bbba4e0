package prompt

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"
)

var (
	ErrTemplateNotFound = errors.New("prompt template not found")
	ErrTemplateFormat   = errors.New("invalid prompt template format")
)

const (
	PlaceholderQuestion = "question"
	PlaceholderSchema   = "database_schema"
)

// Template holds the optional system and user texts. Either may contain
// {question}; only System may contain {database_schema}.
type Template struct {
	System *string `json:"system" yaml:"system"`
	User   *string `json:"user" yaml:"user"`
}

// LoadTemplate reads a .json template. YAML (.yaml, .yml) is accepted as the
// equivalent superset format.
func LoadTemplate(path string) (Template, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Template{}, fmt.Errorf("%w at %s", ErrTemplateNotFound, path)
		}
		return Template{}, fmt.Errorf("stat prompt template %s: %w", path, err)
	}
	if info.IsDir() {
		return Template{}, fmt.Errorf("%w: %s is a directory", ErrTemplateFormat, path)
	}

	var decode func([]byte, *Template) error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		decode = func(raw []byte, tmpl *Template) error { return json.Unmarshal(raw, tmpl) }
	case ".yaml", ".yml":
		decode = func(raw []byte, tmpl *Template) error { return yaml.Unmarshal(raw, tmpl) }
	default:
		return Template{}, fmt.Errorf("%w: prompt file must be .json, .yaml or .yml, got %s", ErrTemplateFormat, path)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Template{}, fmt.Errorf("read prompt template %s: %w", path, err)
	}
	var tmpl Template
	if err := decode(raw, &tmpl); err != nil {
		return Template{}, fmt.Errorf("%w: decode %s: %v", ErrTemplateFormat, path, err)
	}
	return tmpl, nil
}

// Apply substitutes the question and rendered schema into the template.
func (t Template) Apply(question, schema string) (Pair, error) {
	var pair Pair
	if t.System != nil {
		system, err := Format(*t.System, map[string]string{
			PlaceholderQuestion: question,
			PlaceholderSchema:   schema,
		})
		if err != nil {
			return Pair{}, fmt.Errorf("format system prompt: %w", err)
		}
		pair.System = &system
	}
	if t.User != nil {
		user, err := Format(*t.User, map[string]string{PlaceholderQuestion: question})
		if err != nil {
			return Pair{}, fmt.Errorf("format user prompt: %w", err)
		}
		pair.User = user
	} else {
		pair.User = question
	}
	return pair, nil
}

// Format replaces {name} placeholders with values. Doubled braces produce a
// literal brace. Unknown names and unbalanced braces are format errors.
func Format(text string, values map[string]string) (string, error) {
	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(text); i++ {
		switch ch := text[i]; ch {
		case '{':
			if i+1 < len(text) && text[i+1] == '{' {
				b.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(text[i+1:], '}')
			if end < 0 {
				return "", fmt.Errorf("%w: unclosed '{' at offset %d", ErrTemplateFormat, i)
			}
			name := text[i+1 : i+1+end]
			value, ok := values[name]
			if !ok {
				return "", fmt.Errorf("%w: unknown placeholder {%s}", ErrTemplateFormat, name)
			}
			b.WriteString(value)
			i += end + 1
		case '}':
			if i+1 < len(text) && text[i+1] == '}' {
				b.WriteByte('}')
				i++
				continue
			}
			return "", fmt.Errorf("%w: single '}' at offset %d", ErrTemplateFormat, i)
		default:
			b.WriteByte(ch)
		}
	}
	return b.String(), nil
}
