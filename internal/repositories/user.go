package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/lfmx/internal/models"
	"github.com/desertthunder/lfmx/internal/shared"
)

const userColumns = `id, sequence, name, lastfm_username, lastfm_session_key, sync_favorites, created_at, updated_at, deleted_at`

// UserRepository implements [models.Repository] for user [models.User] persistence, including the Last.fm link.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new [UserRepository] with the given database connection
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user into the database with generated ID and sequence
func (r *UserRepository) Create(user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "users")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	user.SetID(shared.GenerateID())
	user.SetSequence(sequence)

	username, sessionKey, syncFavorites := linkColumns(user)

	query := `
		INSERT INTO users (id, sequence, name, lastfm_username, lastfm_session_key, sync_favorites, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query, user.ID(), sequence, user.Name(), username, sessionKey, syncFavorites, user.CreatedAt(), user.UpdatedAt())
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return nil
}

// Get retrieves a user by ID, excluding soft-deleted users
func (r *UserRepository) Get(id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ? AND deleted_at IS NULL`

	user, err := scanUser(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrUserNotFound, id)
	}
	return user, err
}

// GetByName retrieves a user by name, excluding soft-deleted users
func (r *UserRepository) GetByName(name string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE name = ? AND deleted_at IS NULL`

	user, err := scanUser(r.db.QueryRow(query, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrUserNotFound, name)
	}
	return user, err
}

// Find resolves a user by ID or by name.
func (r *UserRepository) Find(idOrName string) (*models.User, error) {
	user, err := r.Get(idOrName)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, shared.ErrUserNotFound) {
		return nil, err
	}
	return r.GetByName(idOrName)
}

// Update modifies an existing user, including its Last.fm link, in the database
func (r *UserRepository) Update(user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	user.SetUpdatedAt(now)

	username, sessionKey, syncFavorites := linkColumns(user)

	query := `
		UPDATE users
		SET name = ?, lastfm_username = ?, lastfm_session_key = ?, sync_favorites = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, user.Name(), username, sessionKey, syncFavorites, now, user.ID())
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	return expectRow(result, shared.ErrUserNotFound, user.ID())
}

// Delete soft-deletes a user by ID
func (r *UserRepository) Delete(id string) error {
	query := `
		UPDATE users
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	return expectRow(result, shared.ErrUserNotFound, id)
}

// List retrieves all users matching the given criteria, excluding soft-deleted users
//
// Criteria: "name" (string), "linked" (bool, users with a Last.fm username).
func (r *UserRepository) List(criteria map[string]any) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE deleted_at IS NULL`
	args := []any{}

	if name, ok := criteria["name"].(string); ok && name != "" {
		query += " AND name = ?"
		args = append(args, name)
	}

	if linked, ok := criteria["linked"].(bool); ok {
		if linked {
			query += " AND lastfm_username IS NOT NULL AND lastfm_username != ''"
		} else {
			query += " AND (lastfm_username IS NULL OR lastfm_username = '')"
		}
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return users, nil
}

// scanUser scans a [sql.Row] or the current row of [sql.Rows] into a [models.User]
func scanUser(row rowScanner) (*models.User, error) {
	var (
		id            string
		sequence      int
		name          string
		username      sql.NullString
		sessionKey    sql.NullString
		syncFavorites bool
		createdAt     time.Time
		updatedAt     time.Time
		deletedAt     sql.NullTime
	)

	err := row.Scan(&id, &sequence, &name, &username, &sessionKey, &syncFavorites, &createdAt, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	user := models.NewUser(sequence, name)
	user.SetID(id)
	user.SetCreatedAt(createdAt)
	user.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		user.SetDeletedAt(&deletedAt.Time)
	}
	if username.Valid && username.String != "" {
		user.Link(models.RemoteUser{
			Username:   username.String,
			SessionKey: sessionKey.String,
			Options:    models.SyncOptions{SyncFavorites: syncFavorites},
		})
	}

	return user, nil
}

// linkColumns returns the nullable Last.fm columns of a user.
func linkColumns(user *models.User) (username, sessionKey any, syncFavorites bool) {
	account := user.Lastfm()
	if account == nil {
		return nil, nil, true
	}

	var sk any = account.SessionKey
	if account.SessionKey == "" {
		sk = nil
	}
	return account.Username, sk, account.Options.SyncFavorites
}
