package schema

import "strings"

type Column struct {
	Name       string
	Type       string
	NotNull    bool
	PrimaryKey bool
	Default    *string
}

// Render formats a column as "name (type)" followed by the NOT NULL,
// PRIMARY KEY and DEFAULT suffixes, always in that order.
func (c Column) Render() string {
	var b strings.Builder
	b.WriteString(c.Name)
	b.WriteString(" (")
	b.WriteString(c.Type)
	b.WriteString(")")
	if c.NotNull {
		b.WriteString(" NOT NULL")
	}
	if c.PrimaryKey {
		b.WriteString(" PRIMARY KEY")
	}
	if c.Default != nil {
		b.WriteString(" DEFAULT ")
		b.WriteString(*c.Default)
	}
	return b.String()
}

type Table struct {
	Name    string
	Columns []Column
}

func (t Table) RenderColumns() string {
	rendered := make([]string, 0, len(t.Columns))
	for _, column := range t.Columns {
		rendered = append(rendered, column.Render())
	}
	return strings.Join(rendered, ", ")
}

// Descriptor lists tables in catalog order.
type Descriptor struct {
	Tables []Table
}

func (d Descriptor) TableNames() []string {
	names := make([]string, 0, len(d.Tables))
	for _, table := range d.Tables {
		names = append(names, table.Name)
	}
	return names
}

// Map returns table name to rendered column list.
func (d Descriptor) Map() map[string]string {
	out := make(map[string]string, len(d.Tables))
	for _, table := range d.Tables {
		out[table.Name] = table.RenderColumns()
	}
	return out
}

// Render produces the tagged text block embedded into prompts:
//
//	<tables>
//		[players, teams]
//	</tables>
//	<schema>
//		<players>
//			id (INTEGER) NOT NULL PRIMARY KEY, name (TEXT)
//		</players>
//	</schema>
func (d Descriptor) Render() string {
	var b strings.Builder
	b.WriteString("\t<tables>\n\t\t[")
	b.WriteString(strings.Join(d.TableNames(), ", "))
	b.WriteString("]\n\t</tables>\n")
	b.WriteString("\t<schema>\n")
	for _, table := range d.Tables {
		b.WriteString("\t\t<" + table.Name + ">\n")
		b.WriteString("\t\t\t" + table.RenderColumns() + "\n")
		b.WriteString("\t\t</" + table.Name + ">\n")
	}
	b.WriteString("</schema>\n")
	return b.String()
}
