package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/prepwise/internal/model"
)

// pgUniqueViolation はPostgreSQLの一意制約違反のSQLSTATE。
const pgUniqueViolation = "23505"

// PostgresIdentityRepo はPostgreSQLを使用した認証主体リポジトリ。
type PostgresIdentityRepo struct {
	db *sql.DB
}

// NewPostgresIdentityRepo はPostgresIdentityRepoを生成する。
func NewPostgresIdentityRepo(db *sql.DB) *PostgresIdentityRepo {
	return &PostgresIdentityRepo{db: db}
}

// Create は認証主体を作成する。emailが重複する場合はErrDuplicateEmailを返す。
func (r *PostgresIdentityRepo) Create(ctx context.Context, identity *model.Identity) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO identities (uid, email, display_name, password_hash, tokens_valid_after, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		identity.UID, identity.Email, identity.DisplayName, identity.PasswordHash,
		identity.TokensValidAfter, identity.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to insert identity: %w", err)
	}
	return nil
}

// FindByUID はUIDで認証主体を取得する。見つからない場合はnilを返す。
func (r *PostgresIdentityRepo) FindByUID(ctx context.Context, uid string) (*model.Identity, error) {
	return r.findOne(ctx, `WHERE uid = $1`, uid)
}

// FindByEmail はemailで認証主体を取得する。見つからない場合はnilを返す。
func (r *PostgresIdentityRepo) FindByEmail(ctx context.Context, email string) (*model.Identity, error) {
	return r.findOne(ctx, `WHERE email = $1`, email)
}

func (r *PostgresIdentityRepo) findOne(ctx context.Context, where string, arg string) (*model.Identity, error) {
	identity := &model.Identity{}
	err := r.db.QueryRowContext(ctx,
		`SELECT uid, email, display_name, password_hash, tokens_valid_after, created_at
		 FROM identities `+where,
		arg,
	).Scan(&identity.UID, &identity.Email, &identity.DisplayName, &identity.PasswordHash,
		&identity.TokensValidAfter, &identity.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}

	return identity, nil
}

// UpdateTokensValidAfter はセッショントークンの有効開始時刻を更新する。
func (r *PostgresIdentityRepo) UpdateTokensValidAfter(ctx context.Context, uid string, validAfter time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE identities SET tokens_valid_after = $2 WHERE uid = $1`,
		uid, validAfter,
	)
	if err != nil {
		return fmt.Errorf("failed to update tokens_valid_after: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("identity not found: %s", uid)
	}
	return nil
}

// compile-time interface check
var _ IdentityRepository = (*PostgresIdentityRepo)(nil)
