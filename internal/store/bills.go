package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TrackedBill is one bill on a user's watchlist. BillID is the canonical
// "congress-type-number" key, always lowercase.
type TrackedBill struct {
	ID         string    `json:"id"`
	UserID     string    `json:"-"`
	BillID     string    `json:"bill_id"`
	Congress   int       `json:"congress"`
	BillType   string    `json:"bill_type"`
	BillNumber string    `json:"bill_number"`
	Title      string    `json:"title"`
	Position   int       `json:"position"`
	CreatedAt  time.Time `json:"created_at"`
}

// TrackBill adds a bill to the user's watchlist. Tracking an already-tracked
// bill returns the existing row unchanged.
func (s *Store) TrackBill(userID string, b TrackedBill) (*TrackedBill, error) {
	if existing, err := s.findTrackedBill(userID, b.BillID); err == nil {
		return existing, nil
	} else if err != ErrNotFound {
		return nil, err
	}

	id, _ := uuid.NewV7()
	now := time.Now().UTC()

	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO tracked_bills (id, user_id, bill_id, congress, bill_type, bill_number, title, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, id.String(), userID, b.BillID, b.Congress, b.BillType, b.BillNumber, b.Title, now)
	if err != nil {
		return nil, fmt.Errorf("track bill: %w", err)
	}

	// A concurrent insert may have won the unique constraint race; read
	// back whatever row holds the key now.
	return s.findTrackedBill(userID, b.BillID)
}

// ListTrackedBills returns the user's watchlist, newest first.
func (s *Store) ListTrackedBills(userID string) ([]TrackedBill, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, bill_id, congress, bill_type, bill_number, title, position, created_at
		FROM tracked_bills
		WHERE user_id = ?
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list tracked bills: %w", err)
	}
	defer rows.Close()

	var out []TrackedBill
	for rows.Next() {
		var b TrackedBill
		if err := rows.Scan(&b.ID, &b.UserID, &b.BillID, &b.Congress, &b.BillType, &b.BillNumber, &b.Title, &b.Position, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// RenameTrackedBill updates the display title of a tracked bill.
func (s *Store) RenameTrackedBill(userID, billID, title string) error {
	res, err := s.db.Exec(`
		UPDATE tracked_bills SET title = ? WHERE user_id = ? AND bill_id = ?
	`, title, userID, billID)
	if err != nil {
		return fmt.Errorf("rename tracked bill: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UntrackBill removes a bill from the user's watchlist.
func (s *Store) UntrackBill(userID, billID string) error {
	res, err := s.db.Exec(`
		DELETE FROM tracked_bills WHERE user_id = ? AND bill_id = ?
	`, userID, billID)
	if err != nil {
		return fmt.Errorf("untrack bill: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) findTrackedBill(userID, billID string) (*TrackedBill, error) {
	row := s.db.QueryRow(`
		SELECT id, user_id, bill_id, congress, bill_type, bill_number, title, position, created_at
		FROM tracked_bills
		WHERE user_id = ? AND bill_id = ?
	`, userID, billID)

	var b TrackedBill
	if err := row.Scan(&b.ID, &b.UserID, &b.BillID, &b.Congress, &b.BillType, &b.BillNumber, &b.Title, &b.Position, &b.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find tracked bill: %w", err)
	}
	return &b, nil
}
