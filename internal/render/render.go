package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/sqlask/sqlask/internal/config"
	"github.com/sqlask/sqlask/internal/query"
)

// Write prints result rows in the requested format.
func Write(w io.Writer, format string, result query.Result) error {
	switch format {
	case config.FormatTuple, "":
		return writeTuples(w, result)
	case config.FormatTable:
		return writeTable(w, result)
	case config.FormatJSON:
		return writeJSON(w, result)
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

func writeTuples(w io.Writer, result query.Result) error {
	for _, row := range result.Rows {
		if _, err := fmt.Fprintln(w, "\t"+Tuple(row)); err != nil {
			return err
		}
	}
	return nil
}

// Tuple formats a row as (a, b). A single value keeps its trailing comma.
func Tuple(row []any) string {
	parts := make([]string, 0, len(row))
	for _, value := range row {
		parts = append(parts, literal(value))
	}
	if len(parts) == 1 {
		return "(" + parts[0] + ",)"
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func literal(value any) string {
	switch typed := value.(type) {
	case nil:
		return "NULL"
	case string:
		return quote(typed)
	case []byte:
		return quote(string(typed))
	case int64:
		return strconv.FormatInt(typed, 10)
	case float64:
		return strconv.FormatFloat(typed, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(typed), 'g', -1, 32)
	case time.Time:
		return quote(typed.Format(time.RFC3339Nano))
	default:
		return fmt.Sprint(typed)
	}
}

func quote(value string) string {
	return "'" + strings.ReplaceAll(value, "'", `\'`) + "'"
}

func writeTable(w io.Writer, result query.Result) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader(result.Columns)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	for _, row := range result.Rows {
		cells := make([]string, 0, len(row))
		for _, value := range row {
			cells = append(cells, cell(value))
		}
		table.Append(cells)
	}
	table.Render()
	return nil
}

func cell(value any) string {
	switch typed := value.(type) {
	case nil:
		return "NULL"
	case string:
		return typed
	default:
		return literal(typed)
	}
}

func writeJSON(w io.Writer, result query.Result) error {
	columns := result.Columns
	if columns == nil {
		columns = []string{}
	}
	rows := result.Rows
	if rows == nil {
		rows = [][]any{}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(map[string]any{
		"columns": columns,
		"rows":    rows,
	})
}
