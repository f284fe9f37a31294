package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type FusionRecord struct {
	ID                string    `json:"id"`
	UserID            int64     `json:"user_id"`
	Digimon1          string    `json:"digimon1"`
	Digimon2          string    `json:"digimon2"`
	FusionName        string    `json:"fusion_name"`
	FusionDescription string    `json:"fusion_description"`
	ImagePrompt       string    `json:"image_prompt"`
	CreatedAt         time.Time `json:"created_at"`
}

func (s *Store) SaveFusion(r *FusionRecord) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	_, err := s.db.Exec(`
		INSERT INTO fusion_history (id, user_id, digimon1, digimon2, fusion_name, fusion_description, image_prompt)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.Digimon1, r.Digimon2, r.FusionName, r.FusionDescription, r.ImagePrompt)
	if err != nil {
		return fmt.Errorf("save fusion: %w", err)
	}
	r.CreatedAt = time.Now().UTC()
	return nil
}

// ListFusions returns up to limit history records for the user, newest first.
func (s *Store) ListFusions(userID int64, limit int) ([]FusionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, user_id, digimon1, digimon2, fusion_name, fusion_description, image_prompt, created_at
		FROM fusion_history
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list fusions: %w", err)
	}
	defer rows.Close()

	var records []FusionRecord
	for rows.Next() {
		var r FusionRecord
		if err := rows.Scan(&r.ID, &r.UserID, &r.Digimon1, &r.Digimon2, &r.FusionName,
			&r.FusionDescription, &r.ImagePrompt, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan fusion: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
