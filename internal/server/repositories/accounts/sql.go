package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/identityd/internal/common"
	"github.com/dmitrijs2005/identityd/internal/dbx"
	"github.com/dmitrijs2005/identityd/internal/server/models"
	"github.com/google/uuid"
)

// dialect captures what differs between the SQL backends: placeholder style
// and how a unique-constraint violation is reported.
type dialect struct {
	numbered          bool
	isUniqueViolation func(error) bool
}

// rebind rewrites '?' placeholders to $1, $2... for numbered dialects.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const accountColumns = `id, name, email, password_hash, phone, bio, is_verified,
		reset_otp, reset_otp_expires, reset_otp_verified, created_at, updated_at, version`

const (
	insertAccountSQL = `INSERT INTO accounts (` + accountColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	selectAccountSQL = `SELECT ` + accountColumns + ` FROM accounts`

	updateAccountSQL = `UPDATE accounts SET name = ?, email = ?, password_hash = ?, phone = ?, bio = ?,
		is_verified = ?, reset_otp = ?, reset_otp_expires = ?, reset_otp_verified = ?,
		updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?`

	selectHistorySQL = `SELECT label, created_at FROM account_history
		WHERE account_id = ? ORDER BY id`

	insertHistorySQL = `INSERT INTO account_history (account_id, label, created_at)
		SELECT id, ?, ? FROM accounts WHERE id = ?`
)

// SQLRepository implements Repository on database/sql. It is bound to a
// dbx.DBTX so the same code runs on a *sql.DB or inside a transaction.
type SQLRepository struct {
	db      dbx.DBTX
	dialect dialect
	now     func() time.Time
}

func newSQLRepository(db dbx.DBTX, d dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: d, now: func() time.Time { return time.Now().UTC() }}
}

// withTx runs fn in a transaction when the handle is a *sql.DB and directly
// otherwise (the handle is then already a transaction).
func (r *SQLRepository) withTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	if db, ok := r.db.(*sql.DB); ok {
		return dbx.WithTx(ctx, db, nil, fn)
	}
	return fn(ctx, r.db)
}

func (r *SQLRepository) classify(err error) error {
	if r.dialect.isUniqueViolation(err) {
		return common.ErrorAlreadyExists
	}
	return fmt.Errorf("db error: %w", err)
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func (r *SQLRepository) Create(ctx context.Context, a *models.Account) (*models.Account, error) {
	acc := a.Clone()
	if acc.ID == "" {
		acc.ID = uuid.NewString()
	}
	now := r.now()
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = now
	}
	acc.UpdatedAt = now
	acc.Version = 1

	err := r.withTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		_, err := tx.ExecContext(ctx, r.dialect.rebind(insertAccountSQL),
			acc.ID, acc.Name, acc.Email, acc.PasswordHash, acc.Phone, acc.Bio, acc.IsVerified,
			acc.ResetOTP, nullTime(acc.ResetOTPExpires), acc.ResetOTPVerified,
			acc.CreatedAt, acc.UpdatedAt, acc.Version)
		if err != nil {
			return r.classify(err)
		}

		for _, h := range acc.History {
			if err := r.insertHistory(ctx, tx, acc.ID, h); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return acc, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	a := &models.Account{}
	var expires sql.NullTime

	err := row.Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash, &a.Phone, &a.Bio, &a.IsVerified,
		&a.ResetOTP, &expires, &a.ResetOTPVerified, &a.CreatedAt, &a.UpdatedAt, &a.Version)
	if err != nil {
		return nil, err
	}
	if expires.Valid {
		t := expires.Time
		a.ResetOTPExpires = &t
	}
	return a, nil
}

func (r *SQLRepository) getOne(ctx context.Context, where string, arg any) (*models.Account, error) {
	query := r.dialect.rebind(selectAccountSQL + " WHERE " + where + " = ?")

	a, err := scanAccount(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	history, err := r.history(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	a.History = history
	return a, nil
}

func (r *SQLRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	return r.getOne(ctx, "id", id)
}

func (r *SQLRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.getOne(ctx, "email", email)
}

func (r *SQLRepository) history(ctx context.Context, accountID string) ([]models.HistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx, r.dialect.rebind(selectHistorySQL), accountID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []models.HistoryEntry
	for rows.Next() {
		var h models.HistoryEntry
		if err := rows.Scan(&h.Label, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *SQLRepository) Update(ctx context.Context, a *models.Account) (*models.Account, error) {
	acc := a.Clone()
	acc.UpdatedAt = r.now()

	res, err := r.db.ExecContext(ctx, r.dialect.rebind(updateAccountSQL),
		acc.Name, acc.Email, acc.PasswordHash, acc.Phone, acc.Bio,
		acc.IsVerified, acc.ResetOTP, nullTime(acc.ResetOTPExpires), acc.ResetOTPVerified,
		acc.UpdatedAt, acc.ID, acc.Version)
	if err != nil {
		return nil, r.classify(err)
	}

	if err := dbx.ExpectOneRow(res); err != nil {
		if errors.Is(err, dbx.ErrNoRowsAffected) {
			return nil, common.ErrVersionConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	acc.Version++
	return acc, nil
}

func (r *SQLRepository) insertHistory(ctx context.Context, db dbx.DBTX, accountID string, entry models.HistoryEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.now()
	}

	res, err := db.ExecContext(ctx, r.dialect.rebind(insertHistorySQL), entry.Label, entry.CreatedAt, accountID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	if err := dbx.ExpectOneRow(res); err != nil {
		if errors.Is(err, dbx.ErrNoRowsAffected) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLRepository) AppendHistory(ctx context.Context, accountID string, entry models.HistoryEntry) error {
	return r.insertHistory(ctx, r.db, accountID, entry)
}
