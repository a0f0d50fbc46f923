package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/yyup/kindergarten-engine/pkg/database"
	"github.com/yyup/kindergarten-engine/pkg/logging"
)

// ExecutionError wraps a driver-level failure. The raw driver message
// stays in logs; callers see only Message.
type ExecutionError struct {
	Message string
	Timeout bool
}

func (e *ExecutionError) Error() string {
	return e.Message
}

// QueryRows is the bounded result of a statement execution.
type QueryRows struct {
	Rows      []map[string]any
	Truncated bool
}

// SQLExecutor runs validated statements against the tenant-scoped
// connection with row and time bounds.
type SQLExecutor interface {
	Execute(ctx context.Context, sqlText string) (*QueryRows, error)
}

type sqlExecutor struct {
	maxRows int
	timeout time.Duration
	logger  *zap.Logger
}

var _ SQLExecutor = (*sqlExecutor)(nil)

func NewSQLExecutor(maxRows int, timeout time.Duration, logger *zap.Logger) SQLExecutor {
	if maxRows <= 0 {
		maxRows = 1000
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &sqlExecutor{
		maxRows: maxRows,
		timeout: timeout,
		logger:  logger.Named("executor"),
	}
}

func (e *sqlExecutor) Execute(ctx context.Context, sqlText string) (*QueryRows, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	rows, err := scope.Conn.Query(ctx, sqlText)
	if err != nil {
		return nil, e.wrap(err, sqlText)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, fd := range fields {
		columns[i] = string(fd.Name)
	}

	result := &QueryRows{}
	for rows.Next() {
		if len(result.Rows) >= e.maxRows {
			result.Truncated = true
			break
		}

		values, err := rows.Values()
		if err != nil {
			return nil, e.wrap(err, sqlText)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		result.Rows = append(result.Rows, row)
	}

	if !result.Truncated {
		if err := rows.Err(); err != nil {
			return nil, e.wrap(err, sqlText)
		}
	}

	return result, nil
}

// wrap hides driver detail behind ExecutionError. Timeouts are a
// distinct, non-fatal outcome.
func (e *sqlExecutor) wrap(err error, sqlText string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		e.logger.Warn("query timed out", zap.Duration("timeout", e.timeout))
		return &ExecutionError{Message: "query timed out", Timeout: true}
	}

	e.logger.Error("query execution failed",
		zap.String("sql", logging.SanitizeQuery(sqlText)),
		zap.String("error", logging.SanitizeError(err)))
	return &ExecutionError{Message: "query execution failed"}
}
