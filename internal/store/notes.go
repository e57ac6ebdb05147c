package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ResearchNote is a pinned fact or free-form note on a member page.
type ResearchNote struct {
	ID         string    `json:"id"`
	UserID     string    `json:"-"`
	BioguideID string    `json:"bioguide_id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// CreateNote adds a research note to a member page.
func (s *Store) CreateNote(userID, bioguideID, title, content string) (*ResearchNote, error) {
	id, _ := uuid.NewV7()
	now := time.Now().UTC()

	_, err := s.db.Exec(`
		INSERT INTO research_notes (id, user_id, bioguide_id, title, content, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id.String(), userID, bioguideID, title, content, now, now)
	if err != nil {
		return nil, fmt.Errorf("create note: %w", err)
	}

	return &ResearchNote{
		ID:         id.String(),
		UserID:     userID,
		BioguideID: bioguideID,
		Title:      title,
		Content:    content,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// ListNotes returns the user's notes for a member, newest first.
func (s *Store) ListNotes(userID, bioguideID string) ([]ResearchNote, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, bioguide_id, title, content, created_at, updated_at
		FROM research_notes
		WHERE user_id = ? AND bioguide_id = ?
		ORDER BY created_at DESC
	`, userID, bioguideID)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	var out []ResearchNote
	for rows.Next() {
		var n ResearchNote
		if err := rows.Scan(&n.ID, &n.UserID, &n.BioguideID, &n.Title, &n.Content, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// GetNote fetches one note, enforcing ownership.
func (s *Store) GetNote(id, userID string) (*ResearchNote, error) {
	row := s.db.QueryRow(`
		SELECT id, user_id, bioguide_id, title, content, created_at, updated_at
		FROM research_notes WHERE id = ?
	`, id)

	var n ResearchNote
	if err := row.Scan(&n.ID, &n.UserID, &n.BioguideID, &n.Title, &n.Content, &n.CreatedAt, &n.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get note: %w", err)
	}
	if n.UserID != userID {
		return nil, ErrForbidden
	}
	return &n, nil
}

// UpdateNote applies partial edits to a note. Nil fields are left alone.
func (s *Store) UpdateNote(id, userID string, title, content *string) (*ResearchNote, error) {
	n, err := s.GetNote(id, userID)
	if err != nil {
		return nil, err
	}

	if title != nil {
		n.Title = *title
	}
	if content != nil {
		n.Content = *content
	}
	n.UpdatedAt = time.Now().UTC()

	_, err = s.db.Exec(`
		UPDATE research_notes SET title = ?, content = ?, updated_at = ? WHERE id = ?
	`, n.Title, n.Content, n.UpdatedAt, id)
	if err != nil {
		return nil, fmt.Errorf("update note: %w", err)
	}
	return n, nil
}

// DeleteNote removes a note.
func (s *Store) DeleteNote(id, userID string) error {
	if _, err := s.GetNote(id, userID); err != nil {
		return err
	}
	_, err := s.db.Exec(`DELETE FROM research_notes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	return nil
}
