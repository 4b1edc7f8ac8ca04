package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"eventhub/internal/domain"
)

const uniqueViolation = "23505"

type userRepository struct {
	DB *sql.DB
}

func NewUserRepository(db *sql.DB) domain.UserRepository {
	return &userRepository{DB: db}
}

const userColumns = `id, email, password_hash, salt, name, role, display_label, verified, liked_events, created_at, updated_at`

func (r *userRepository) Create(ctx context.Context, u *domain.User) error {
	query := `
		INSERT INTO users (email, password_hash, salt, name, role, display_label, verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	err := r.DB.QueryRowContext(ctx, query, u.Email, u.PasswordHash, u.Salt, u.Name, string(u.Role), u.DisplayLabel, u.Verified, u.CreatedAt, u.UpdatedAt).Scan(&u.ID)
	if isUniqueViolation(err) {
		return domain.ErrDuplicateEmail
	}
	return err
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.scanUser(r.DB.QueryRowContext(ctx, query, email))
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanUser(r.DB.QueryRowContext(ctx, query, id))
}

func (r *userRepository) scanUser(row *sql.Row) (*domain.User, error) {
	u := &domain.User{}
	var role string
	var liked pq.StringArray
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Salt, &u.Name, &role, &u.DisplayLabel, &u.Verified, &liked, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	u.Role = domain.Role(role)
	u.LikedEvents = []string(liked)
	if u.LikedEvents == nil {
		u.LikedEvents = []string{}
	}
	return u, nil
}

func (r *userRepository) Update(ctx context.Context, u *domain.User) error {
	query := `
		UPDATE users
		SET name = $1, display_label = $2, updated_at = $3
		WHERE id = $4
	`
	result, err := r.DB.ExecContext(ctx, query, u.Name, u.DisplayLabel, u.UpdatedAt, u.ID)
	if err != nil {
		return err
	}
	return requireAffected(result, domain.ErrUserNotFound)
}

func (r *userRepository) SetVerified(ctx context.Context, id string) error {
	query := `UPDATE users SET verified = TRUE, updated_at = NOW() WHERE id = $1`
	result, err := r.DB.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	return requireAffected(result, domain.ErrUserNotFound)
}

func (r *userRepository) ListIDsByRole(ctx context.Context, role domain.Role) ([]string, error) {
	query := `SELECT id FROM users WHERE role = $1 ORDER BY created_at`
	rows, err := r.DB.QueryContext(ctx, query, string(role))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AddLikedEvent is idempotent: an event already in the list is not appended twice.
func (r *userRepository) AddLikedEvent(ctx context.Context, userID, eventID string) error {
	query := `
		UPDATE users
		SET liked_events = CASE WHEN $2 = ANY(liked_events) THEN liked_events ELSE array_append(liked_events, $2) END,
			updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.DB.ExecContext(ctx, query, userID, eventID)
	if err != nil {
		return err
	}
	return requireAffected(result, domain.ErrUserNotFound)
}

func (r *userRepository) RemoveLikedEvent(ctx context.Context, userID, eventID string) error {
	query := `UPDATE users SET liked_events = array_remove(liked_events, $2), updated_at = NOW() WHERE id = $1`
	result, err := r.DB.ExecContext(ctx, query, userID, eventID)
	if err != nil {
		return err
	}
	return requireAffected(result, domain.ErrUserNotFound)
}

func requireAffected(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
