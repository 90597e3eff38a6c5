package infra

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
	DialectSQLite   Dialect = "sqlite"
)

func ParseDialect(value string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(DialectPostgres), "postgresql", "pg":
		return DialectPostgres, nil
	case string(DialectMySQL), "mariadb":
		return DialectMySQL, nil
	case string(DialectSQLite), "sqlite3":
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("unsupported dialect %q", value)
	}
}

// DriverName devolve o nome registrado em database/sql para o dialeto.
// Os drivers são importados por quem abre a conexão (cmd/gateway).
func DriverName(d Dialect) (string, error) {
	switch d {
	case DialectPostgres:
		return "pgx", nil
	case DialectMySQL:
		return "mysql", nil
	case DialectSQLite:
		return "sqlite", nil
	default:
		return "", fmt.Errorf("unsupported dialect %q", d)
	}
}

func Statements(d Dialect) ([]string, error) {
	switch d {
	case DialectPostgres:
		return []string{
			`CREATE TABLE IF NOT EXISTS otp_challenges (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL,
    purpose TEXT NOT NULL,
    otp_hash TEXT NOT NULL,
    attempts INTEGER NOT NULL DEFAULT 0,
    verified SMALLINT NOT NULL DEFAULT 0,
    verified_at BIGINT,
    expires_at BIGINT NOT NULL,
    created_at BIGINT NOT NULL
)`,
			`CREATE INDEX IF NOT EXISTS idx_otp_challenges_lookup ON otp_challenges(email, purpose, created_at DESC)`,
			`CREATE INDEX IF NOT EXISTS idx_otp_challenges_expires_at ON otp_challenges(expires_at)`,
		}, nil
	case DialectMySQL:
		return []string{
			`CREATE TABLE IF NOT EXISTS otp_challenges (
    id VARCHAR(64) PRIMARY KEY,
    email VARCHAR(320) NOT NULL,
    purpose VARCHAR(32) NOT NULL,
    otp_hash VARCHAR(128) NOT NULL,
    attempts INT NOT NULL DEFAULT 0,
    verified TINYINT(1) NOT NULL DEFAULT 0,
    verified_at BIGINT NULL,
    expires_at BIGINT NOT NULL,
    created_at BIGINT NOT NULL,
    INDEX idx_otp_challenges_lookup (email, purpose, created_at DESC),
    INDEX idx_otp_challenges_expires_at (expires_at)
) ENGINE=InnoDB`,
		}, nil
	case DialectSQLite:
		return []string{
			`CREATE TABLE IF NOT EXISTS otp_challenges (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL,
    purpose TEXT NOT NULL,
    otp_hash TEXT NOT NULL,
    attempts INTEGER NOT NULL DEFAULT 0,
    verified INTEGER NOT NULL DEFAULT 0,
    verified_at INTEGER,
    expires_at INTEGER NOT NULL,
    created_at INTEGER NOT NULL
)`,
			`CREATE INDEX IF NOT EXISTS idx_otp_challenges_lookup ON otp_challenges(email, purpose, created_at DESC)`,
			`CREATE INDEX IF NOT EXISTS idx_otp_challenges_expires_at ON otp_challenges(expires_at)`,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported dialect %q", d)
	}
}

// Migrate cria a tabela e os índices numa transação.
func Migrate(ctx context.Context, db *sql.DB, d Dialect) error {
	stmts, err := Statements(d)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec migration statement: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migrations: %w", err)
	}
	committed = true
	return nil
}
