package dbconn

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
)

// Conn is a logging wrapper around *sql.DB.
type Conn struct {
	session
	db *sql.DB
}

// Open connects to MySQL and verifies the connection. A nil logger disables
// statement logging.
func Open(ctx context.Context, cfg Config, logger *zerolog.Logger) (*Conn, error) {
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return New(db, logger), nil
}

// New wraps an existing database handle.
func New(db *sql.DB, logger *zerolog.Logger) *Conn {
	return &Conn{
		session: session{q: db, logger: logger},
		db:      db,
	}
}

// DB returns the underlying handle.
func (c *Conn) DB() *sql.DB {
	return c.db
}

// Close closes the underlying handle.
func (c *Conn) Close() error {
	if c.logger != nil {
		c.logger.Debug().Msg("Closing database connection")
	}
	return c.db.Close()
}

// Tx is a transaction with the same helpers as Conn.
type Tx struct {
	session
	tx         *sql.Tx
	autoCommit bool
}

// Begin starts a transaction. With autoCommit, Finish(nil) commits;
// otherwise Finish always rolls back unless Commit was called.
func (c *Conn) Begin(ctx context.Context, autoCommit bool) (*Tx, error) {
	if c.logger != nil {
		c.logger.Info().Msg("BEGIN TRANSACTION")
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &Tx{
		session:    session{q: tx, logger: c.logger},
		tx:         tx,
		autoCommit: autoCommit,
	}, nil
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	if t.logger != nil {
		t.logger.Debug().Msg("COMMIT")
	}
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rollback aborts the transaction.
func (t *Tx) Rollback() error {
	if t.logger != nil {
		t.logger.Debug().Msg("ROLLBACK")
	}
	if err := t.tx.Rollback(); err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// Finish ends the transaction: rollback when err is non-nil, commit when
// autoCommit is set, rollback otherwise. It returns err unchanged unless
// ending the transaction fails.
func (t *Tx) Finish(err error) error {
	if err != nil {
		if rbErr := t.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	if t.autoCommit {
		return t.Commit()
	}
	return t.Rollback()
}

// WithTx runs fn inside an autoCommit transaction.
func (c *Conn) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	tx, err := c.Begin(ctx, true)
	if err != nil {
		return err
	}
	return tx.Finish(fn(tx))
}
