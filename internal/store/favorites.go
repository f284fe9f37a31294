package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

type Favorite struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	DigimonName  string    `json:"digimon_name"`
	DigimonLevel string    `json:"digimon_level,omitempty"`
	DigimonImage string    `json:"digimon_image,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func (s *Store) AddFavorite(f *Favorite) error {
	result, err := s.db.Exec(`
		INSERT INTO favorites (user_id, digimon_name, digimon_level, digimon_image)
		VALUES (?, ?, ?, ?)`,
		f.UserID, f.DigimonName, f.DigimonLevel, f.DigimonImage)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("add favorite: %w", err)
	}
	f.ID, _ = result.LastInsertId()
	f.CreatedAt = time.Now().UTC()
	return nil
}

// ListFavorites returns the user's favorites, newest first.
func (s *Store) ListFavorites(userID int64) ([]Favorite, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, digimon_name, digimon_level, digimon_image, created_at
		FROM favorites
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	defer rows.Close()

	var favorites []Favorite
	for rows.Next() {
		f, err := scanFavorite(rows)
		if err != nil {
			return nil, fmt.Errorf("scan favorite: %w", err)
		}
		favorites = append(favorites, *f)
	}
	return favorites, rows.Err()
}

func (s *Store) GetFavorite(userID int64, name string) (*Favorite, error) {
	row := s.db.QueryRow(`
		SELECT id, user_id, digimon_name, digimon_level, digimon_image, created_at
		FROM favorites WHERE user_id = ? AND digimon_name = ?`, userID, name)
	f, err := scanFavorite(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get favorite: %w", err)
	}
	return f, nil
}

// RemoveFavorite reports whether a row was deleted.
func (s *Store) RemoveFavorite(userID int64, name string) (bool, error) {
	result, err := s.db.Exec(`DELETE FROM favorites WHERE user_id = ? AND digimon_name = ?`, userID, name)
	if err != nil {
		return false, fmt.Errorf("remove favorite: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// FavoriteSet reports which of names the user has marked as favorite.
// Every requested name is present in the result.
func (s *Store) FavoriteSet(userID int64, names ...string) (map[string]bool, error) {
	set := make(map[string]bool, len(names))
	if len(names) == 0 {
		return set, nil
	}
	args := make([]any, 0, len(names)+1)
	args = append(args, userID)
	for _, n := range names {
		set[n] = false
		args = append(args, n)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(names)), ",")
	rows, err := s.db.Query(`
		SELECT digimon_name FROM favorites
		WHERE user_id = ? AND digimon_name IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("favorite set: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan favorite name: %w", err)
		}
		set[name] = true
	}
	return set, rows.Err()
}

func scanFavorite(scanner interface {
	Scan(dest ...any) error
}) (*Favorite, error) {
	var f Favorite
	var level, image *string
	if err := scanner.Scan(&f.ID, &f.UserID, &f.DigimonName, &level, &image, &f.CreatedAt); err != nil {
		return nil, err
	}
	if level != nil {
		f.DigimonLevel = *level
	}
	if image != nil {
		f.DigimonImage = *image
	}
	return &f, nil
}
