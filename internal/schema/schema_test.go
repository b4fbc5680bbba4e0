package schema

import (
	"strings"
	"testing"
)

func TestColumnRenderSuffixOrder(t *testing.T) {
	zero := "0"
	column := Column{Name: "id", Type: "INTEGER", NotNull: true, PrimaryKey: true, Default: &zero}
	if got := column.Render(); got != "id (INTEGER) NOT NULL PRIMARY KEY DEFAULT 0" {
		t.Fatalf("Render() = %q", got)
	}
}

func TestColumnRenderPlain(t *testing.T) {
	column := Column{Name: "name", Type: "TEXT"}
	if got := column.Render(); got != "name (TEXT)" {
		t.Fatalf("Render() = %q", got)
	}
}

func TestColumnRenderDefaultWithoutConstraints(t *testing.T) {
	value := "'active'"
	column := Column{Name: "status", Type: "TEXT", Default: &value}
	if got := column.Render(); got != "status (TEXT) DEFAULT 'active'" {
		t.Fatalf("Render() = %q", got)
	}
}

func TestDescriptorRender(t *testing.T) {
	descriptor := Descriptor{Tables: []Table{
		{Name: "players", Columns: []Column{
			{Name: "id", Type: "INTEGER", PrimaryKey: true},
			{Name: "name", Type: "TEXT", NotNull: true},
		}},
		{Name: "teams", Columns: []Column{
			{Name: "abbr", Type: "TEXT"},
		}},
	}}

	want := "\t<tables>\n\t\t[players, teams]\n\t</tables>\n" +
		"\t<schema>\n" +
		"\t\t<players>\n\t\t\tid (INTEGER) PRIMARY KEY, name (TEXT) NOT NULL\n\t\t</players>\n" +
		"\t\t<teams>\n\t\t\tabbr (TEXT)\n\t\t</teams>\n" +
		"</schema>\n"
	if got := descriptor.Render(); got != want {
		t.Fatalf("Render() =\n%q\nwant\n%q", got, want)
	}
}

func TestDescriptorRenderEmpty(t *testing.T) {
	got := Descriptor{}.Render()
	if !strings.Contains(got, "<tables>\n\t\t[]\n") {
		t.Fatalf("Render() = %q", got)
	}
}

func TestDescriptorMap(t *testing.T) {
	descriptor := Descriptor{Tables: []Table{
		{Name: "a", Columns: []Column{{Name: "x", Type: "INT"}, {Name: "y", Type: "INT"}}},
	}}
	got := descriptor.Map()
	if got["a"] != "x (INT), y (INT)" {
		t.Fatalf("Map()[a] = %q", got["a"])
	}
}
