package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const selectUserSQL = `
	SELECT id, name, email, password_hash, role, created_at, updated_at
	FROM users`

type userRepository struct {
	db *sql.DB
}

// Create сохраняет пользователя; email должен быть уже нормализован.
func (r *userRepository) Create(ctx context.Context, user domain.User) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (
			id, name, email, password_hash, role, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
	`,
		user.ID, user.Name, user.Email, user.PasswordHash,
		string(user.Role), user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrUserAlreadyExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *userRepository) Get(ctx context.Context, id string) (domain.User, error) {
	return r.getOne(ctx, ` WHERE id = $1`, id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.getOne(ctx, ` WHERE email = $1`, email)
}

func (r *userRepository) GetMany(ctx context.Context, ids []string) (map[string]domain.User, error) {
	result := make(map[string]domain.User, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, selectUserSQL+` WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("select users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		result[user.ID] = user
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return result, nil
}

func (r *userRepository) UpdateRole(ctx context.Context, id string, role domain.Role) (domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	user, err := scanUser(r.db.QueryRowContext(ctx, `
		UPDATE users
		SET role = $1, updated_at = $2
		WHERE id = $3
		RETURNING id, name, email, password_hash, role, created_at, updated_at
	`, string(role), time.Now().UTC(), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, domain.ErrUserNotFound
		}
		return domain.User{}, fmt.Errorf("update user role: %w", err)
	}
	return user, nil
}

func (r *userRepository) getOne(ctx context.Context, where string, arg string) (domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	user, err := scanUser(r.db.QueryRowContext(ctx, selectUserSQL+where, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, domain.ErrUserNotFound
		}
		return domain.User{}, fmt.Errorf("select user: %w", err)
	}
	return user, nil
}

func scanUser(row rowScanner) (domain.User, error) {
	var (
		user domain.User
		role string
	)
	if err := row.Scan(
		&user.ID, &user.Name, &user.Email, &user.PasswordHash,
		&role, &user.CreatedAt, &user.UpdatedAt,
	); err != nil {
		return domain.User{}, err
	}
	user.Role = domain.Role(role)
	return user, nil
}

var _ domain.UserRepository = (*userRepository)(nil)
