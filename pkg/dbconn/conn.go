package dbconn

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

var (
	// ErrInvalidParams is returned when an insert has no columns or rows.
	ErrInvalidParams = errors.New("invalid params")

	// ErrInvalidIdentifier is returned for table or column names that cannot be quoted.
	ErrInvalidIdentifier = errors.New("invalid identifier")
)

// Row is one result row keyed by column name.
type Row map[string]any

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// session implements the statement helpers shared by Conn and Tx.
type session struct {
	q      querier
	logger *zerolog.Logger
}

func (s session) logStatement(query string, args []any) {
	if s.logger == nil {
		return
	}
	event := s.logger.Debug().Str("sql", query)
	if len(args) > 0 {
		event = event.Interface("args", args)
	}
	event.Msg("Executing statement")
}

// Exec runs a statement that returns no rows.
func (s session) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	s.logStatement(query, args)
	res, err := s.q.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("exec: %w", err)
	}
	return res, nil
}

// Query runs a statement and returns every row.
func (s session) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	s.logStatement(query, args)
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	return scanRows(rows)
}

// QueryOne returns the first row, or nil when the query returns no rows.
func (s session) QueryOne(ctx context.Context, query string, args ...any) (Row, error) {
	rows, err := s.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// InsertInto inserts one row. When unique is non-empty the statement becomes
// INSERT ... ON DUPLICATE KEY UPDATE for every column not in unique (or every
// column if all of them are unique).
func (s session) InsertInto(ctx context.Context, table string, fields map[string]any, unique []string) (sql.Result, error) {
	return s.InsertMany(ctx, table, []map[string]any{fields}, unique)
}

// InsertMany inserts rows with a single multi-row statement. Columns are
// taken from the first row; missing values in later rows are NULL.
func (s session) InsertMany(ctx context.Context, table string, rows []map[string]any, unique []string) (sql.Result, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("%w: nothing to insert into %s", ErrInvalidParams, table)
	}

	columns := make([]string, 0, len(rows[0]))
	for k := range rows[0] {
		columns = append(columns, k)
	}
	sort.Strings(columns)

	query, err := buildInsert(table, columns, len(rows), unique)
	if err != nil {
		return nil, err
	}

	args := make([]any, 0, len(columns)*len(rows))
	for _, row := range rows {
		for _, col := range columns {
			args = append(args, row[col])
		}
	}

	return s.Exec(ctx, query, args...)
}

// TableStruct describes the columns of table.
func (s session) TableStruct(ctx context.Context, table string) ([]Row, error) {
	quoted, err := quoteIdent(table)
	if err != nil {
		return nil, err
	}
	return s.Query(ctx, "DESC "+quoted)
}

func buildInsert(table string, columns []string, rowCount int, unique []string) (string, error) {
	quotedTable, err := quoteIdent(table)
	if err != nil {
		return "", err
	}

	quotedCols := make([]string, len(columns))
	for i, col := range columns {
		if quotedCols[i], err = quoteIdent(col); err != nil {
			return "", err
		}
	}

	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?,", len(columns)), ",") + ")"
	values := strings.TrimSuffix(strings.Repeat(placeholder+",", rowCount), ",")

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", quotedTable, strings.Join(quotedCols, ","), values)
	if len(unique) == 0 {
		return query, nil
	}

	isUnique := make(map[string]bool, len(unique))
	for _, u := range unique {
		isUnique[u] = true
	}

	var updates []string
	for i, col := range columns {
		if !isUnique[col] {
			updates = append(updates, fmt.Sprintf("%s=VALUES(%s)", quotedCols[i], quotedCols[i]))
		}
	}
	if len(updates) == 0 {
		for _, q := range quotedCols {
			updates = append(updates, fmt.Sprintf("%s=VALUES(%s)", q, q))
		}
	}

	return query + " ON DUPLICATE KEY UPDATE " + strings.Join(updates, ","), nil
}

// quoteIdent quotes a (possibly schema qualified) identifier with backticks.
func quoteIdent(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, "`\x00") {
		return "", fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	parts := strings.Split(name, ".")
	for i, p := range parts {
		if p == "" {
			return "", fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
		}
		parts[i] = "`" + p + "`"
	}
	return strings.Join(parts, "."), nil
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	var result []Row
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		row := make(Row, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return result, nil
}
