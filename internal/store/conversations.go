package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Conversation is one chat thread. BioguideID is set for dedicated member
// research pages and empty for ad-hoc chats.
type Conversation struct {
	ID         string    `json:"id"`
	UserID     string    `json:"-"`
	Title      string    `json:"title"`
	BioguideID string    `json:"bioguide_id,omitempty"`
	Position   int       `json:"position"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Message is one stored chat turn.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// CreateConversation inserts a new conversation for the user.
func (s *Store) CreateConversation(userID, title, bioguideID string) (*Conversation, error) {
	id, _ := uuid.NewV7()
	now := time.Now().UTC()

	var bid sql.NullString
	if bioguideID != "" {
		bid = sql.NullString{String: bioguideID, Valid: true}
	}

	_, err := s.db.Exec(`
		INSERT INTO conversations (id, user_id, title, bioguide_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id.String(), userID, title, bid, now, now)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}

	return &Conversation{
		ID:         id.String(),
		UserID:     userID,
		Title:      title,
		BioguideID: bioguideID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// GetConversation fetches a conversation, enforcing ownership. A record
// owned by someone else yields ErrForbidden; rows with an empty owner
// predate authentication and stay accessible to everyone.
func (s *Store) GetConversation(id, userID string) (*Conversation, error) {
	row := s.db.QueryRow(`
		SELECT id, user_id, title, COALESCE(bioguide_id, ''), position, created_at, updated_at
		FROM conversations WHERE id = ?
	`, id)

	var c Conversation
	if err := row.Scan(&c.ID, &c.UserID, &c.Title, &c.BioguideID, &c.Position, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if c.UserID != "" && c.UserID != userID {
		return nil, ErrForbidden
	}
	return &c, nil
}

// ListConversations returns the user's member research pages, newest first.
// Ad-hoc chats without a member binding are not part of the registry.
func (s *Store) ListConversations(userID string) ([]Conversation, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, title, COALESCE(bioguide_id, ''), position, created_at, updated_at
		FROM conversations
		WHERE user_id = ? AND bioguide_id IS NOT NULL
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.BioguideID, &c.Position, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// RenameConversation updates a conversation title.
func (s *Store) RenameConversation(id, userID, title string) error {
	if _, err := s.GetConversation(id, userID); err != nil {
		return err
	}
	_, err := s.db.Exec(`
		UPDATE conversations SET title = ?, updated_at = ? WHERE id = ?
	`, title, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("rename conversation: %w", err)
	}
	return nil
}

// DeleteConversation removes a conversation and its messages.
func (s *Store) DeleteConversation(id, userID string) error {
	if _, err := s.GetConversation(id, userID); err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM messages WHERE conversation_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM conversations WHERE id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

// FindMemberConversation locates the user's research page for a member.
// Returns ErrNotFound when none exists yet.
func (s *Store) FindMemberConversation(userID, bioguideID string) (*Conversation, error) {
	row := s.db.QueryRow(`
		SELECT id, user_id, title, COALESCE(bioguide_id, ''), position, created_at, updated_at
		FROM conversations
		WHERE user_id = ? AND bioguide_id = ?
	`, userID, bioguideID)

	var c Conversation
	if err := row.Scan(&c.ID, &c.UserID, &c.Title, &c.BioguideID, &c.Position, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find member conversation: %w", err)
	}
	return &c, nil
}

// Messages returns a conversation's messages oldest first.
func (s *Store) Messages(conversationID string) ([]Message, error) {
	rows, err := s.db.Query(`
		SELECT id, conversation_id, role, content, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at ASC, id ASC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// AppendMessage adds a message to a conversation and bumps its timestamp.
func (s *Store) AppendMessage(conversationID, role, content string) error {
	id, _ := uuid.NewV7()
	now := time.Now().UTC()

	_, err := s.db.Exec(`
		INSERT INTO messages (id, conversation_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, id.String(), conversationID, role, content, now)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	_, err = s.db.Exec(`
		UPDATE conversations SET updated_at = ? WHERE id = ?
	`, now, conversationID)
	if err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	return nil
}

// PruneMessages deletes the oldest messages beyond limit, keeping the
// conversation a fixed-size working set.
func (s *Store) PruneMessages(conversationID string, limit int) error {
	if limit <= 0 {
		return nil
	}
	_, err := s.db.Exec(`
		DELETE FROM messages
		WHERE conversation_id = ?
		  AND id NOT IN (
			SELECT id FROM messages
			WHERE conversation_id = ?
			ORDER BY created_at DESC, id DESC
			LIMIT ?
		  )
	`, conversationID, conversationID, limit)
	if err != nil {
		return fmt.Errorf("prune messages: %w", err)
	}
	return nil
}

// UpdatePositions applies registry ordering updates. Type is either
// "conversation" or "bill"; unknown ids are skipped silently.
func (s *Store) UpdatePositions(userID string, items []PositionUpdate) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, it := range items {
		if it.Type == "conversation" {
			_, err = tx.Exec(`
				UPDATE conversations SET position = ? WHERE id = ? AND user_id = ?
			`, it.Position, it.ID, userID)
		} else {
			_, err = tx.Exec(`
				UPDATE tracked_bills SET position = ? WHERE bill_id = ? AND user_id = ?
			`, it.Position, it.ID, userID)
		}
		if err != nil {
			return fmt.Errorf("update position: %w", err)
		}
	}
	return tx.Commit()
}

// PositionUpdate reorders one registry entry.
type PositionUpdate struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Position int    `json:"position"`
}
