package prompt

import (
	"context"
	"fmt"
)

// Pair is the formatted prompt sent to the completion client.
type Pair struct {
	System *string
	User   string
}

func (p Pair) SystemText() string {
	if p.System == nil {
		return ""
	}
	return *p.System
}

type SchemaSource interface {
	RenderSchema(ctx context.Context) (string, error)
}

type Builder struct {
	templatePath string
	schema       SchemaSource
}

func NewBuilder(templatePath string, schema SchemaSource) (*Builder, error) {
	if templatePath == "" {
		return nil, fmt.Errorf("template path is required")
	}
	if schema == nil {
		return nil, fmt.Errorf("schema source is required")
	}
	return &Builder{templatePath: templatePath, schema: schema}, nil
}

// Build loads the template, reads the current schema and formats both prompts.
func (b *Builder) Build(ctx context.Context, question string) (Pair, error) {
	tmpl, err := LoadTemplate(b.templatePath)
	if err != nil {
		return Pair{}, err
	}
	schema, err := b.schema.RenderSchema(ctx)
	if err != nil {
		return Pair{}, fmt.Errorf("read database schema: %w", err)
	}
	return tmpl.Apply(question, schema)
}
