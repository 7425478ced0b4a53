package dbconn

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupConn(t *testing.T, logger *zerolog.Logger) (*Conn, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, logger), mock
}

func TestConfig_DSN(t *testing.T) {
	cfg := DefaultConfig()
	cfg.User = "app"
	cfg.Password = "secret"
	cfg.Database = "crawl"

	dsn := cfg.DSN()
	assert.True(t, strings.HasPrefix(dsn, "app:secret@tcp(127.0.0.1:3306)/crawl?"), dsn)
	assert.Contains(t, dsn, "charset=utf8mb4")
	assert.Contains(t, dsn, "parseTime=true")
}

func TestConn_Query(t *testing.T) {
	conn, mock := setupConn(t, nil)

	mock.ExpectQuery("SELECT id, name FROM users WHERE id > ?").
		WithArgs(int64(0)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(int64(1), []byte("alice")).
			AddRow(int64(2), []byte("bob")))

	rows, err := conn.Query(context.Background(), "SELECT id, name FROM users WHERE id > ?", int64(0))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, Row{"id": int64(1), "name": "alice"}, rows[0])
	assert.Equal(t, "bob", rows[1]["name"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConn_QueryOne(t *testing.T) {
	t.Run("first row", func(t *testing.T) {
		conn, mock := setupConn(t, nil)
		mock.ExpectQuery("SELECT 1 AS n").
			WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(int64(1)))

		row, err := conn.QueryOne(context.Background(), "SELECT 1 AS n")
		require.NoError(t, err)
		assert.Equal(t, int64(1), row["n"])
	})

	t.Run("no rows", func(t *testing.T) {
		conn, mock := setupConn(t, nil)
		mock.ExpectQuery("SELECT n FROM empty").
			WillReturnRows(sqlmock.NewRows([]string{"n"}))

		row, err := conn.QueryOne(context.Background(), "SELECT n FROM empty")
		require.NoError(t, err)
		assert.Nil(t, row)
	})
}

func TestConn_QueryError(t *testing.T) {
	conn, mock := setupConn(t, nil)
	boom := errors.New("boom")
	mock.ExpectQuery("SELECT broken").WillReturnError(boom)

	_, err := conn.Query(context.Background(), "SELECT broken")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestConn_InsertInto(t *testing.T) {
	tests := []struct {
		name   string
		unique []string
		want   string
	}{
		{
			name: "plain insert",
			want: "INSERT INTO `pages` (`status`,`url`) VALUES (?,?)",
		},
		{
			name:   "upsert non-unique columns",
			unique: []string{"url"},
			want:   "INSERT INTO `pages` (`status`,`url`) VALUES (?,?) ON DUPLICATE KEY UPDATE `status`=VALUES(`status`)",
		},
		{
			name:   "all columns unique",
			unique: []string{"url", "status"},
			want:   "INSERT INTO `pages` (`status`,`url`) VALUES (?,?) ON DUPLICATE KEY UPDATE `status`=VALUES(`status`),`url`=VALUES(`url`)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, mock := setupConn(t, nil)
			mock.ExpectExec(tt.want).
				WithArgs(int64(200), "https://example.com").
				WillReturnResult(sqlmock.NewResult(1, 1))

			res, err := conn.InsertInto(context.Background(), "pages", map[string]any{
				"url":    "https://example.com",
				"status": int64(200),
			}, tt.unique)
			require.NoError(t, err)

			affected, err := res.RowsAffected()
			require.NoError(t, err)
			assert.Equal(t, int64(1), affected)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestConn_InsertMany(t *testing.T) {
	conn, mock := setupConn(t, nil)

	mock.ExpectExec("INSERT INTO `crawl`.`pages` (`status`,`url`) VALUES (?,?),(?,?) ON DUPLICATE KEY UPDATE `status`=VALUES(`status`)").
		WithArgs(int64(200), "a", int64(404), "b").
		WillReturnResult(sqlmock.NewResult(2, 2))

	_, err := conn.InsertMany(context.Background(), "crawl.pages", []map[string]any{
		{"url": "a", "status": int64(200)},
		{"url": "b", "status": int64(404)},
	}, []string{"url"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConn_InsertInvalid(t *testing.T) {
	conn, _ := setupConn(t, nil)
	ctx := context.Background()

	_, err := conn.InsertMany(ctx, "pages", nil, nil)
	assert.ErrorIs(t, err, ErrInvalidParams)

	_, err = conn.InsertInto(ctx, "pages", map[string]any{}, nil)
	assert.ErrorIs(t, err, ErrInvalidParams)

	_, err = conn.InsertInto(ctx, "pa`ges", map[string]any{"a": 1}, nil)
	assert.ErrorIs(t, err, ErrInvalidIdentifier)

	_, err = conn.InsertInto(ctx, "pages", map[string]any{"a.": 1}, nil)
	assert.ErrorIs(t, err, ErrInvalidIdentifier)
}

func TestConn_TableStruct(t *testing.T) {
	conn, mock := setupConn(t, nil)
	mock.ExpectQuery("DESC `pages`").
		WillReturnRows(sqlmock.NewRows([]string{"Field", "Type"}).
			AddRow([]byte("url"), []byte("varchar(255)")))

	cols, err := conn.TableStruct(context.Background(), "pages")
	require.NoError(t, err)
	require.Len(t, cols, 1)
	assert.Equal(t, "varchar(255)", cols[0]["Type"])
}

func TestConn_LogsStatements(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	conn, mock := setupConn(t, &logger)

	mock.ExpectExec("DELETE FROM pages WHERE url = ?").
		WithArgs("a").
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := conn.Exec(context.Background(), "DELETE FROM pages WHERE url = ?", "a")
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"sql":"DELETE FROM pages WHERE url = ?"`)
	assert.Contains(t, out, `"args":["a"]`)
}

func TestTx_Finish(t *testing.T) {
	tests := []struct {
		name       string
		autoCommit bool
		err        error
		expect     func(mock sqlmock.Sqlmock)
	}{
		{
			name:       "autocommit commits",
			autoCommit: true,
			expect:     func(mock sqlmock.Sqlmock) { mock.ExpectCommit() },
		},
		{
			name:   "manual rolls back",
			expect: func(mock sqlmock.Sqlmock) { mock.ExpectRollback() },
		},
		{
			name:       "error rolls back",
			autoCommit: true,
			err:        errors.New("work failed"),
			expect:     func(mock sqlmock.Sqlmock) { mock.ExpectRollback() },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, mock := setupConn(t, nil)
			mock.ExpectBegin()
			tt.expect(mock)

			tx, err := conn.Begin(context.Background(), tt.autoCommit)
			require.NoError(t, err)

			err = tx.Finish(tt.err)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestConn_WithTx(t *testing.T) {
	conn, mock := setupConn(t, nil)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE pages SET status = ?").
		WithArgs(int64(500)).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	err := conn.WithTx(context.Background(), func(tx *Tx) error {
		_, err := tx.Exec(context.Background(), "UPDATE pages SET status = ?", int64(500))
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
