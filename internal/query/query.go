package query

import (
	"context"
	"time"
)

type Result struct {
	Columns  []string
	Rows     [][]any
	Duration time.Duration
}

// Executor runs one SQL statement and propagates failures.
type Executor interface {
	Execute(ctx context.Context, sqlText string) (Result, error)
}
