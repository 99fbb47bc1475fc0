package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Dan9191/bank-cards/internal/models"
	"github.com/Dan9191/bank-cards/internal/utils"
	"github.com/google/uuid"
)

const userColumns = `id, full_name, username, email, password_hash, role, created_at`

type userRepository struct {
	q DBExecutor
}

// Create creates a new user in the database
func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.q.ExecContext(ctx, query,
		user.ID, user.FullName, user.Username, user.Email, user.PasswordHash, user.Role, user.CreatedAt)
	if err != nil {
		if pqErrorCode(err) == pqUniqueViolation {
			return fmt.Errorf("%w: username %q already exists", utils.ErrDuplicateEntry, user.Username)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// FindByID retrieves a user by ID
func (r *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := r.q.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user %s: %w", id, err)
	}
	return &user, nil
}

// FindByUsername retrieves a user by username
func (r *userRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := r.q.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &user, nil
}

// likeEscaper makes LIKE wildcards in a filter match literally
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// List returns a page of users filtered by full name
func (r *userRepository) List(ctx context.Context, fullName string, page models.PageRequest) ([]models.User, int64, error) {
	pattern := "%" + likeEscaper.Replace(fullName) + "%"

	var total int64
	if err := r.q.GetContext(ctx, &total, `SELECT COUNT(*) FROM users WHERE full_name ILIKE $1 ESCAPE '\'`, pattern); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	users := []models.User{}
	query := `
		SELECT ` + userColumns + ` FROM users
		WHERE full_name ILIKE $1 ESCAPE '\'
		ORDER BY created_at, id
		LIMIT $2 OFFSET $3`
	if err := r.q.SelectContext(ctx, &users, query, pattern, page.Size, page.Offset()); err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	return users, total, nil
}

// Delete removes a user; their cards are removed by the foreign key cascade
func (r *userRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.q.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user %s: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for user %s: %w", id, err)
	}
	if rows == 0 {
		return utils.ErrNotFound
	}
	return nil
}
