package query

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sqlask/sqlask/internal/db"
	"github.com/sqlask/sqlask/internal/observability"
)

// Runner executes SQL text as given. The text is not validated or
// parameterized; it usually comes straight from a completion.
type Runner struct {
	opener db.Opener
	driver string
	logger *slog.Logger
}

func NewRunner(opener db.Opener, driver string, logger *slog.Logger) (*Runner, error) {
	if opener == nil {
		return nil, fmt.Errorf("database opener is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{opener: opener, driver: driver, logger: logger}, nil
}

// Run executes sqlText and reports failure as ok=false instead of an error.
// The underlying error is only logged at debug level.
func (r *Runner) Run(ctx context.Context, sqlText string) (Result, bool) {
	result, err := r.Execute(ctx, sqlText)
	if err != nil {
		r.logger.DebugContext(ctx, "database error",
			slog.String("run_id", observability.RunIDFromContext(ctx)),
			slog.Any("error", err),
		)
		return Result{}, false
	}
	return result, true
}

func (r *Runner) Execute(ctx context.Context, sqlText string) (Result, error) {
	start := time.Now()
	result, err := r.execute(ctx, sqlText)
	result.Duration = time.Since(start)
	observability.ObserveQuery(r.driver, result.Duration, len(result.Rows), err)
	if err != nil {
		return Result{}, err
	}
	return result, nil
}

func (r *Runner) execute(ctx context.Context, sqlText string) (Result, error) {
	if strings.TrimSpace(sqlText) == "" {
		return Result{}, fmt.Errorf("sql is required")
	}

	conn, err := r.opener.Open(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = conn.Close() }()

	rows, err := conn.QueryContext(ctx, sqlText)
	if err != nil {
		return Result{}, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return Result{}, fmt.Errorf("query columns: %w", err)
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return Result{}, fmt.Errorf("scan row: %w", err)
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return Result{}, fmt.Errorf("iterate rows: %w", err)
	}

	return Result{Columns: columns, Rows: resultRows}, nil
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}
