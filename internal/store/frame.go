package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ayusman/landmarker/internal/landmark"
)

// FrameRecord is the landmark set stored for one processed frame.
type FrameRecord struct {
	SessionID  string             `json:"session_id"`
	Index      int                `json:"index"`
	CapturedAt time.Time          `json:"captured_at"`
	Landmarks  landmark.Landmarks `json:"landmarks"`
}

// FrameRepository stores per-frame landmarks.
type FrameRepository struct {
	db *sql.DB
}

// Frames returns the frame repository for this store.
func (s *Store) Frames() *FrameRepository {
	return &FrameRepository{db: s.db}
}

// Append stores one frame of a session.
func (r *FrameRepository) Append(f *FrameRecord) error {
	data, err := json.Marshal(f.Landmarks)
	if err != nil {
		return fmt.Errorf("encode landmarks: %w", err)
	}

	_, err = r.db.Exec(
		`INSERT INTO frame_landmarks (session_id, frame_index, captured_at, landmarks) VALUES (?, ?, ?, ?)`,
		f.SessionID, f.Index, f.CapturedAt, string(data),
	)
	return err
}

// ListBySession returns up to limit frames of a session in frame order, starting at offset.
// A limit of zero or less returns every remaining frame.
func (r *FrameRepository) ListBySession(sessionID string, limit, offset int) ([]FrameRecord, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.Query(
		`SELECT session_id, frame_index, captured_at, landmarks
		 FROM frame_landmarks WHERE session_id = ?
		 ORDER BY frame_index ASC LIMIT ? OFFSET ?`,
		sessionID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var frames []FrameRecord
	for rows.Next() {
		var f FrameRecord
		var data string
		if err := rows.Scan(&f.SessionID, &f.Index, &f.CapturedAt, &data); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(data), &f.Landmarks); err != nil {
			return nil, fmt.Errorf("decode landmarks of frame %d: %w", f.Index, err)
		}
		frames = append(frames, f)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return frames, nil
}

// Count returns the number of frames stored for a session.
func (r *FrameRepository) Count(sessionID string) (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM frame_landmarks WHERE session_id = ?`, sessionID).Scan(&n)
	return n, err
}
