package schema

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/sqlask/sqlask/internal/config"
	"github.com/sqlask/sqlask/internal/db"
)

func TestDescribeSQLite(t *testing.T) {
	path := newSQLiteDB(t,
		`CREATE TABLE players (id INTEGER NOT NULL PRIMARY KEY DEFAULT 0, name TEXT)`,
		`CREATE TABLE teams (abbr TEXT NOT NULL, city TEXT DEFAULT 'unknown')`,
	)
	introspector := newSQLiteIntrospector(t, path)

	descriptor, err := introspector.Describe(context.Background())
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}
	if got := strings.Join(descriptor.TableNames(), ","); got != "players,teams" {
		t.Fatalf("tables = %q", got)
	}

	rendered := descriptor.Render()
	for _, want := range []string{
		"\t\t[players, teams]\n",
		"\t\t<players>\n\t\t\tid (INTEGER) NOT NULL PRIMARY KEY DEFAULT 0, name (TEXT)\n\t\t</players>\n",
		"\t\t<teams>\n\t\t\tabbr (TEXT) NOT NULL, city (TEXT) DEFAULT 'unknown'\n\t\t</teams>\n",
	} {
		if !strings.Contains(rendered, want) {
			t.Fatalf("Render() missing %q in:\n%s", want, rendered)
		}
	}
}

func TestDescribeIsIdempotent(t *testing.T) {
	path := newSQLiteDB(t,
		`CREATE TABLE players (id INTEGER PRIMARY KEY, name TEXT)`,
		`CREATE TABLE games (id INTEGER PRIMARY KEY, home TEXT NOT NULL)`,
	)
	introspector := newSQLiteIntrospector(t, path)

	first, err := introspector.RenderSchema(context.Background())
	if err != nil {
		t.Fatalf("RenderSchema() error = %v", err)
	}
	second, err := introspector.RenderSchema(context.Background())
	if err != nil {
		t.Fatalf("RenderSchema() error = %v", err)
	}
	if first != second {
		t.Fatalf("schema changed between runs:\n%s\n---\n%s", first, second)
	}
}

func TestDescribeDuckDB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.duckdb")
	seed, err := sql.Open("duckdb", path)
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	if _, err := seed.Exec(`CREATE TABLE players (id INTEGER PRIMARY KEY, name VARCHAR NOT NULL)`); err != nil {
		t.Fatalf("create table error = %v", err)
	}
	_ = seed.Close()

	introspector, err := NewIntrospector(db.Config{Driver: config.DriverDuckDB, DSN: path}, config.DriverDuckDB, nil)
	if err != nil {
		t.Fatalf("NewIntrospector() error = %v", err)
	}
	descriptor, err := introspector.Describe(context.Background())
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}
	if len(descriptor.Tables) != 1 || descriptor.Tables[0].Name != "players" {
		t.Fatalf("tables = %#v", descriptor.Tables)
	}
	columns := descriptor.Tables[0].Columns
	if len(columns) != 2 {
		t.Fatalf("columns = %#v", columns)
	}
	if !columns[0].PrimaryKey {
		t.Fatal("id should be a primary key")
	}
	if !columns[1].NotNull {
		t.Fatal("name should be NOT NULL")
	}
}

func TestDescribePostgres(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}

	mock.ExpectQuery(regexp.QuoteMeta(`FROM information_schema.tables`)).
		WithArgs("public").
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("players"))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM information_schema.columns c`)).
		WithArgs("public", "players").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "not_null", "column_default", "is_pk"}).
			AddRow("id", "integer", true, "0", true).
			AddRow("name", "text", false, nil, false))
	mock.ExpectClose()

	introspector, err := NewIntrospector(staticOpener(mockDB), config.DriverPostgres, nil)
	if err != nil {
		t.Fatalf("NewIntrospector() error = %v", err)
	}
	descriptor, err := introspector.Describe(context.Background())
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}
	if got := descriptor.Map()["players"]; got != "id (integer) NOT NULL PRIMARY KEY DEFAULT 0, name (text)" {
		t.Fatalf("players = %q", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sqlmock expectations: %v", err)
	}
}

func TestDescribePropagatesQueryError(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	boom := errors.New("catalog unavailable")
	mock.ExpectQuery(regexp.QuoteMeta(`FROM sqlite_master`)).WillReturnError(boom)
	mock.ExpectClose()

	introspector, err := NewIntrospector(staticOpener(mockDB), config.DriverSQLite, nil)
	if err != nil {
		t.Fatalf("NewIntrospector() error = %v", err)
	}
	if _, err := introspector.Describe(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Describe() error = %v, want %v", err, boom)
	}
}

func TestDescribePropagatesConnectError(t *testing.T) {
	introspector := newSQLiteIntrospector(t, filepath.Join(t.TempDir(), "missing.sqlite"))
	if _, err := introspector.Describe(context.Background()); err == nil {
		t.Fatal("expected connectivity error")
	}
}

func TestNewIntrospectorRejectsUnknownDriver(t *testing.T) {
	if _, err := NewIntrospector(db.Config{DSN: "x"}, "oracle", nil); err == nil {
		t.Fatal("expected error for unknown driver")
	}
	if _, err := NewIntrospector(nil, config.DriverSQLite, nil); err == nil {
		t.Fatal("expected error for nil opener")
	}
}

func newSQLiteIntrospector(t *testing.T, path string) *Introspector {
	t.Helper()
	introspector, err := NewIntrospector(db.Config{Driver: config.DriverSQLite, DSN: path}, config.DriverSQLite, nil)
	if err != nil {
		t.Fatalf("NewIntrospector() error = %v", err)
	}
	return introspector
}

func newSQLiteDB(t *testing.T, statements ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schema.sqlite")
	seed, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	defer func() { _ = seed.Close() }()
	for _, statement := range statements {
		if _, err := seed.Exec(statement); err != nil {
			t.Fatalf("exec %q error = %v", statement, err)
		}
	}
	return path
}

func staticOpener(handle *sql.DB) db.Opener {
	return db.OpenFunc(func(context.Context) (*sql.DB, error) {
		return handle, nil
	})
}
