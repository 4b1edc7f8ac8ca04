package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventhub/internal/domain"
)

var userRowColumns = []string{"id", "email", "password_hash", "salt", "name", "role", "display_label", "verified", "liked_events", "created_at", "updated_at"}

func TestUserRepository_Create(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		mock    func(mock sqlmock.Sqlmock)
		wantID  string
		wantErr error
	}{
		{
			name: "success returns id",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO users`).
					WithArgs("c@example.com", "hash", "salt", "Club", "community", "Technical Club", false, now, now).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("user-1"))
			},
			wantID: "user-1",
		},
		{
			name: "unique violation returns ErrDuplicateEmail",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO users`).
					WillReturnError(&pq.Error{Code: "23505"})
			},
			wantErr: domain.ErrDuplicateEmail,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			tt.mock(mock)
			u := &domain.User{
				Email: "c@example.com", PasswordHash: "hash", Salt: "salt", Name: "Club",
				Role: domain.RoleCommunity, DisplayLabel: "Technical Club", CreatedAt: now, UpdatedAt: now,
			}
			err = NewUserRepository(db).Create(ctx, u)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantID, u.ID)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)

	t.Run("found scans role and liked events", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`SELECT id, email, password_hash, salt, name, role, display_label, verified, liked_events, created_at, updated_at FROM users WHERE id = \$1`).
			WithArgs("user-1").
			WillReturnRows(sqlmock.NewRows(userRowColumns).
				AddRow("user-1", "u@example.com", "h", "s", "Una", "user", "", true, "{ev-1,ev-2}", now, now))

		u, err := NewUserRepository(db).GetByID(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, domain.RoleUser, u.Role)
		assert.True(t, u.Verified)
		assert.Equal(t, []string{"ev-1", "ev-2"}, u.LikedEvents)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no rows returns ErrUserNotFound", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`FROM users WHERE id`).WithArgs("missing").WillReturnError(sql.ErrNoRows)

		_, err = NewUserRepository(db).GetByID(ctx, "missing")
		require.ErrorIs(t, err, domain.ErrUserNotFound)
	})
}

func TestUserRepository_Update(t *testing.T) {
	ctx := context.Background()
	updatedAt := time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		mock    func(mock sqlmock.Sqlmock)
		wantErr bool
		errIs   error
	}{
		{
			name: "success",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE users`).
					WithArgs("Alice", "Cultural Club", updatedAt, "user-1").
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "not found zero rows affected",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE users`).
					WillReturnResult(sqlmock.NewResult(0, 0))
			},
			wantErr: true,
			errIs:   domain.ErrUserNotFound,
		},
		{
			name: "db error",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE users`).
					WillReturnError(sql.ErrConnDone)
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			tt.mock(mock)
			u := &domain.User{ID: "user-1", Name: "Alice", DisplayLabel: "Cultural Club", UpdatedAt: updatedAt}
			err = NewUserRepository(db).Update(ctx, u)
			if tt.wantErr {
				require.Error(t, err)
				if tt.errIs != nil {
					require.ErrorIs(t, err, tt.errIs)
				}
			} else {
				require.NoError(t, err)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserRepository_ListIDsByRole(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT id FROM users WHERE role = \$1`).
		WithArgs("user").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("u1").AddRow("u2"))

	ids, err := NewUserRepository(db).ListIDsByRole(context.Background(), domain.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_LikedEvents(t *testing.T) {
	ctx := context.Background()

	t.Run("add", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec(`array_append\(liked_events, \$2\)`).
			WithArgs("user-1", "ev-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, NewUserRepository(db).AddLikedEvent(ctx, "user-1", "ev-1"))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("remove unknown user", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec(`array_remove\(liked_events, \$2\)`).
			WithArgs("ghost", "ev-1").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err = NewUserRepository(db).RemoveLikedEvent(ctx, "ghost", "ev-1")
		require.ErrorIs(t, err, domain.ErrUserNotFound)
	})
}

func TestVerificationCodeRepository_Consume(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		mock    func(mock sqlmock.Sqlmock)
		want    bool
		wantErr bool
	}{
		{
			name: "matching code consumed",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`DELETE FROM verification_codes`).
					WithArgs("a@b.com", "hash").
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("code-1"))
			},
			want: true,
		},
		{
			name: "no match",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`DELETE FROM verification_codes`).
					WithArgs("a@b.com", "hash").
					WillReturnError(sql.ErrNoRows)
			},
			want: false,
		},
		{
			name: "db error",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`DELETE FROM verification_codes`).
					WillReturnError(sql.ErrConnDone)
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			tt.mock(mock)
			got, err := NewVerificationCodeRepository(db).Consume(ctx, "a@b.com", "hash")
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
