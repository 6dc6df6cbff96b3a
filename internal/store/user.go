package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/tranvq/exambank/internal/model"
)

// CreateUser inserts a new user. The username and email columns are
// unique; violations surface as driver errors.
func (s *Store) CreateUser(u model.User) (int64, error) {
	if u.AvatarURL == "" {
		u.AvatarURL = model.DefaultAvatarURL(u.Username)
	}
	now := time.Now().UTC()
	res, err := s.db.Exec(
		`INSERT INTO users (username, email, password_hash, role, full_name, avatar_url, medals, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		u.Username, u.Email, u.PasswordHash, u.Role, u.FullName, u.AvatarURL, now, now,
	)
	if err != nil {
		slog.Error("failed to create user", "username", u.Username, "error", err)
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	slog.Info("created user", "id", id, "username", u.Username, "role", u.Role)
	return id, nil
}

const userColumns = `id, username, email, password_hash, role, full_name, avatar_url, medals, created_at, updated_at`

func scanUser(row *sql.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role,
		&u.FullName, &u.AvatarURL, &u.Medals, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByID returns a user by ID.
func (s *Store) GetUserByID(id int64) (*model.User, error) {
	return scanUser(s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

// GetUserByUsername returns a user by username, or nil if absent.
func (s *Store) GetUserByUsername(username string) (*model.User, error) {
	return scanUser(s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE username = ?`, username))
}

// GetUserByEmail returns a user by email, or nil if absent.
func (s *Store) GetUserByEmail(email string) (*model.User, error) {
	return scanUser(s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE email = ?`, email))
}

// UpdateProfile updates the editable profile fields. An empty avatarURL
// keeps the stored one.
func (s *Store) UpdateProfile(id int64, fullName, email, avatarURL string) error {
	now := time.Now().UTC()
	var err error
	if avatarURL != "" {
		_, err = s.db.Exec(
			`UPDATE users SET full_name = ?, email = ?, avatar_url = ?, updated_at = ? WHERE id = ?`,
			fullName, email, avatarURL, now, id,
		)
	} else {
		_, err = s.db.Exec(
			`UPDATE users SET full_name = ?, email = ?, updated_at = ? WHERE id = ?`,
			fullName, email, now, id,
		)
	}
	return err
}

// UpdatePassword replaces the stored password hash.
func (s *Store) UpdatePassword(id int64, passwordHash string) error {
	_, err := s.db.Exec(
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		passwordHash, time.Now().UTC(), id,
	)
	return err
}

// AddMedals increments a user's medal tally. The counter only grows.
func (s *Store) AddMedals(id int64, count int) error {
	if count <= 0 {
		return fmt.Errorf("medal count must be positive: %w", model.ErrInvalidState)
	}
	res, err := s.db.Exec(
		`UPDATE users SET medals = medals + ?, updated_at = ? WHERE id = ?`,
		count, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("user %d: %w", id, model.ErrNotFound)
	}
	return nil
}

// TopStudents returns students ordered by medal count, highest first.
func (s *Store) TopStudents(limit int) ([]model.User, error) {
	rows, err := s.db.Query(
		`SELECT `+userColumns+` FROM users WHERE role = ? ORDER BY medals DESC, username LIMIT ?`,
		model.RoleStudent, limit,
	)
	if err != nil {
		return nil, err
	}
	return collectUsers(rows)
}

// ListStudents returns all students ordered by username.
func (s *Store) ListStudents() ([]model.User, error) {
	rows, err := s.db.Query(
		`SELECT `+userColumns+` FROM users WHERE role = ? ORDER BY username`,
		model.RoleStudent,
	)
	if err != nil {
		return nil, err
	}
	return collectUsers(rows)
}

func collectUsers(rows *sql.Rows) ([]model.User, error) {
	defer rows.Close()
	var users []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role,
			&u.FullName, &u.AvatarURL, &u.Medals, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UserCount returns the total number of users.
func (s *Store) UserCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}
