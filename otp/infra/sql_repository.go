package infra

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"admission-gateway/otp/domain"
)

const challengeColumns = "id, email, purpose, otp_hash, attempts, verified, verified_at, expires_at, created_at"

// SQLRepository implementa domain.Repository sobre database/sql.
// Tempos são gravados como epoch em ms e verified como 0/1, para o mesmo
// esquema servir Postgres, MySQL e SQLite.
type SQLRepository struct {
	db      *sql.DB
	dialect Dialect
}

func NewSQLRepository(db *sql.DB, d Dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: d}
}

func (s *SQLRepository) Replace(ctx context.Context, c domain.Challenge) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	del := fmt.Sprintf("DELETE FROM otp_challenges WHERE email = %s AND purpose = %s", s.p(1), s.p(2))
	if _, err = tx.ExecContext(ctx, del, c.Identity, string(c.Purpose)); err != nil {
		return unavailable(err)
	}

	ins := fmt.Sprintf(
		"INSERT INTO otp_challenges ("+challengeColumns+") VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s)",
		s.p(1), s.p(2), s.p(3), s.p(4), s.p(5), s.p(6), s.p(7), s.p(8), s.p(9),
	)
	if _, err = tx.ExecContext(ctx, ins,
		c.ID,
		c.Identity,
		string(c.Purpose),
		c.SecretHash,
		c.Attempts,
		boolToInt(c.Verified),
		nullableMillis(c.VerifiedAt),
		c.ExpiresAt.UnixMilli(),
		c.CreatedAt.UnixMilli(),
	); err != nil {
		return unavailable(err)
	}

	if err = tx.Commit(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *SQLRepository) Latest(ctx context.Context, identity string, purpose domain.Purpose) (domain.Challenge, error) {
	q := fmt.Sprintf(
		"SELECT "+challengeColumns+" FROM otp_challenges WHERE email = %s AND purpose = %s ORDER BY created_at DESC, id DESC LIMIT 1",
		s.p(1), s.p(2),
	)
	return scanChallenge(s.db.QueryRowContext(ctx, q, identity, string(purpose)))
}

// ReserveAttempt consome uma tentativa com um UPDATE condicional: o banco
// serializa os concorrentes na linha, então no máximo max chamadas passam.
func (s *SQLRepository) ReserveAttempt(ctx context.Context, id string, max int) (n int, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, unavailable(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	upd := fmt.Sprintf("UPDATE otp_challenges SET attempts = attempts + 1 WHERE id = %s AND attempts < %s", s.p(1), s.p(2))
	res, err := tx.ExecContext(ctx, upd, id, max)
	if err != nil {
		return 0, unavailable(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, unavailable(err)
	}

	sel := fmt.Sprintf("SELECT attempts FROM otp_challenges WHERE id = %s", s.p(1))
	if err = tx.QueryRowContext(ctx, sel, id).Scan(&n); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = domain.ErrNotFound
			return 0, err
		}
		return 0, unavailable(err)
	}
	if affected == 0 {
		err = domain.ErrAttemptsExhausted
		return n, err
	}

	if err = tx.Commit(); err != nil {
		return 0, unavailable(err)
	}
	return n, nil
}

func (s *SQLRepository) MarkVerified(ctx context.Context, id string, at time.Time, max int) error {
	q := fmt.Sprintf("UPDATE otp_challenges SET verified = 1, verified_at = %s WHERE id = %s AND attempts <= %s", s.p(1), s.p(2), s.p(3))
	res, err := s.db.ExecContext(ctx, q, at.UnixMilli(), id, max)
	if err != nil {
		return unavailable(err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *SQLRepository) Delete(ctx context.Context, id string) error {
	q := fmt.Sprintf("DELETE FROM otp_challenges WHERE id = %s", s.p(1))
	if _, err := s.db.ExecContext(ctx, q, id); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *SQLRepository) DeleteAll(ctx context.Context, identity string, purpose domain.Purpose) error {
	q := fmt.Sprintf("DELETE FROM otp_challenges WHERE email = %s AND purpose = %s", s.p(1), s.p(2))
	if _, err := s.db.ExecContext(ctx, q, identity, string(purpose)); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *SQLRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	q := fmt.Sprintf("DELETE FROM otp_challenges WHERE expires_at <= %s", s.p(1))
	res, err := s.db.ExecContext(ctx, q, now.UnixMilli())
	if err != nil {
		return 0, unavailable(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}

func (s *SQLRepository) p(index int) string {
	if s.dialect == DialectPostgres {
		return fmt.Sprintf("$%d", index)
	}
	return "?"
}

func scanChallenge(row *sql.Row) (domain.Challenge, error) {
	var (
		c          domain.Challenge
		purpose    string
		verified   int
		verifiedAt sql.NullInt64
		expiresAt  int64
		createdAt  int64
	)
	err := row.Scan(&c.ID, &c.Identity, &purpose, &c.SecretHash, &c.Attempts, &verified, &verifiedAt, &expiresAt, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Challenge{}, domain.ErrNotFound
		}
		return domain.Challenge{}, unavailable(err)
	}
	c.Purpose = domain.Purpose(purpose)
	c.Verified = verified != 0
	if verifiedAt.Valid {
		t := time.UnixMilli(verifiedAt.Int64).UTC()
		c.VerifiedAt = &t
	}
	c.ExpiresAt = time.UnixMilli(expiresAt).UTC()
	c.CreatedAt = time.UnixMilli(createdAt).UTC()
	return c, nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func nullableMillis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}
