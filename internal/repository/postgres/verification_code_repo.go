package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"eventhub/internal/domain"
)

type verificationCodeRepository struct {
	DB *sql.DB
}

// NewVerificationCodeRepository returns a domain.VerificationCodeRepository implemented with Postgres.
func NewVerificationCodeRepository(db *sql.DB) domain.VerificationCodeRepository {
	return &verificationCodeRepository{DB: db}
}

func (r *verificationCodeRepository) Create(ctx context.Context, email, codeHash string, expiresAt time.Time) error {
	query := `
		INSERT INTO verification_codes (email, code_hash, expires_at)
		VALUES ($1, $2, $3)
	`
	_, err := r.DB.ExecContext(ctx, query, email, codeHash, expiresAt)
	return err
}

// Consume deletes a matching unexpired code in one statement so a code can be used only once.
func (r *verificationCodeRepository) Consume(ctx context.Context, email, codeHash string) (bool, error) {
	query := `
		DELETE FROM verification_codes
		WHERE id = (
			SELECT id FROM verification_codes
			WHERE email = $1 AND code_hash = $2 AND expires_at > NOW()
			LIMIT 1
		)
		RETURNING id
	`
	var id string
	err := r.DB.QueryRowContext(ctx, query, email, codeHash).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
