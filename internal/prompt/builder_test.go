package prompt

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

type fakeSchema struct {
	text  string
	err   error
	calls int
}

func (f *fakeSchema) RenderSchema(context.Context) (string, error) {
	f.calls++
	return f.text, f.err
}

func TestBuildSubstitutesQuestionAndSchema(t *testing.T) {
	schemaText := "\t<tables>\n\t\t[players]\n\t</tables>\n"
	path := writeFile(t, "prompt.json", `{"system": "Q:{question} S:{database_schema}", "user": "{question}"}`)
	builder, err := NewBuilder(path, &fakeSchema{text: schemaText})
	if err != nil {
		t.Fatalf("NewBuilder() error = %v", err)
	}

	pair, err := builder.Build(context.Background(), "How many rows?")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if pair.User != "How many rows?" {
		t.Fatalf("User = %q", pair.User)
	}
	if pair.System == nil {
		t.Fatal("System = nil")
	}
	if !strings.Contains(*pair.System, "How many rows?") || !strings.Contains(*pair.System, schemaText) {
		t.Fatalf("System = %q", *pair.System)
	}
	if *pair.System != "Q:How many rows? S:"+schemaText {
		t.Fatalf("System = %q", *pair.System)
	}
}

func TestBuildWithoutSystemField(t *testing.T) {
	path := writeFile(t, "prompt.json", `{"user": "Answer: {question}"}`)
	builder, err := NewBuilder(path, &fakeSchema{text: "schema"})
	if err != nil {
		t.Fatalf("NewBuilder() error = %v", err)
	}
	pair, err := builder.Build(context.Background(), "q")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if pair.System != nil {
		t.Fatalf("System = %q, want nil", *pair.System)
	}
	if pair.SystemText() != "" {
		t.Fatalf("SystemText() = %q", pair.SystemText())
	}
	if pair.User != "Answer: q" {
		t.Fatalf("User = %q", pair.User)
	}
}

func TestBuildMissingTemplate(t *testing.T) {
	schema := &fakeSchema{text: "schema"}
	builder, err := NewBuilder(filepath.Join(t.TempDir(), "nope.json"), schema)
	if err != nil {
		t.Fatalf("NewBuilder() error = %v", err)
	}
	if _, err := builder.Build(context.Background(), "q"); !errors.Is(err, ErrTemplateNotFound) {
		t.Fatalf("Build() error = %v, want ErrTemplateNotFound", err)
	}
	if schema.calls != 0 {
		t.Fatalf("schema calls = %d, want 0", schema.calls)
	}
}

func TestBuildWrongFormat(t *testing.T) {
	path := writeFile(t, "prompt.toml", `system = "x"`)
	builder, err := NewBuilder(path, &fakeSchema{text: "schema"})
	if err != nil {
		t.Fatalf("NewBuilder() error = %v", err)
	}
	if _, err := builder.Build(context.Background(), "q"); !errors.Is(err, ErrTemplateFormat) {
		t.Fatalf("Build() error = %v, want ErrTemplateFormat", err)
	}
}

func TestBuildPropagatesSchemaError(t *testing.T) {
	boom := errors.New("database unreachable")
	path := writeFile(t, "prompt.json", `{"system": "{database_schema}"}`)
	builder, err := NewBuilder(path, &fakeSchema{err: boom})
	if err != nil {
		t.Fatalf("NewBuilder() error = %v", err)
	}
	if _, err := builder.Build(context.Background(), "q"); !errors.Is(err, boom) {
		t.Fatalf("Build() error = %v, want %v", err, boom)
	}
}

func TestNewBuilderValidation(t *testing.T) {
	if _, err := NewBuilder("", &fakeSchema{}); err == nil {
		t.Fatal("expected error for empty path")
	}
	if _, err := NewBuilder("prompt.json", nil); err == nil {
		t.Fatal("expected error for nil schema source")
	}
}
