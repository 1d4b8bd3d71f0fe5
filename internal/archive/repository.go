// Package archive keeps the final state of rooms after their last member left.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// Record is what a room looked like when it dissolved.
type Record struct {
	ID           int             `json:"id"`
	RoomID       string          `json:"roomId"`
	Language     string          `json:"language"`
	Code         string          `json:"code"`
	Whiteboard   json.RawMessage `json:"whiteboard"`
	Participants int             `json:"participants"`
	StartedAt    time.Time       `json:"startedAt"`
	EndedAt      time.Time       `json:"endedAt"`
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Save(ctx context.Context, rec Record) error {
	wb := rec.Whiteboard
	if len(wb) == 0 {
		wb = json.RawMessage("[]")
	}
	query := `INSERT INTO room_archives (room_id, language, code, whiteboard, participants, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.ExecContext(ctx, query,
		rec.RoomID, rec.Language, rec.Code, string(wb), rec.Participants, rec.StartedAt.UTC(), rec.EndedAt.UTC())
	return err
}

// Recent returns up to limit records, newest first.
func (r *Repository) Recent(ctx context.Context, limit int) ([]Record, error) {
	query := `
		SELECT id, room_id, language, code, whiteboard, participants, started_at, ended_at
		FROM room_archives
		ORDER BY ended_at DESC, id DESC
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var rec Record
		var wb string
		if err := rows.Scan(&rec.ID, &rec.RoomID, &rec.Language, &rec.Code, &wb, &rec.Participants, &rec.StartedAt, &rec.EndedAt); err != nil {
			return nil, err
		}
		rec.Whiteboard = json.RawMessage(wb)
		records = append(records, rec)
	}
	return records, rows.Err()
}
