package store

import (
	"database/sql"
	"fmt"
	"time"
)

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (s *Store) CreateUser(u *User) error {
	result, err := s.db.Exec(`
		INSERT INTO users (email, username, password_hash)
		VALUES (?, ?, ?)`,
		u.Email, u.Username, u.PasswordHash)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create user: %w", err)
	}
	u.ID, _ = result.LastInsertId()

	saved, err := s.GetUser(u.ID)
	if err != nil {
		return err
	}
	if saved != nil {
		u.CreatedAt, u.UpdatedAt = saved.CreatedAt, saved.UpdatedAt
	}
	return nil
}

func (s *Store) GetUser(id int64) (*User, error) {
	row := s.db.QueryRow(`
		SELECT id, email, username, password_hash, created_at, updated_at
		FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *Store) GetUserByEmail(email string) (*User, error) {
	row := s.db.QueryRow(`
		SELECT id, email, username, password_hash, created_at, updated_at
		FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (s *Store) UpdateUser(u *User) error {
	result, err := s.db.Exec(`
		UPDATE users SET email = ?, username = ?, password_hash = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		u.Email, u.Username, u.PasswordHash, u.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("update user: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("update user: user %d not found", u.ID)
	}
	return nil
}

// DeleteUser removes the user together with their favorites and history.
func (s *Store) DeleteUser(id int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, q := range []string{
		`DELETE FROM fusion_history WHERE user_id = ?`,
		`DELETE FROM favorites WHERE user_id = ?`,
		`DELETE FROM users WHERE id = ?`,
	} {
		if _, err := tx.Exec(q, id); err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
	}
	return tx.Commit()
}

func scanUser(scanner interface {
	Scan(dest ...any) error
}) (*User, error) {
	var u User
	if err := scanner.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}
