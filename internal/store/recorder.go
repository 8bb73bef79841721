package store

import (
	"fmt"
	"time"

	"github.com/ayusman/landmarker/internal/video"
)

// Recorder stores every result of a video run under a new session.
type Recorder struct {
	store   *Store
	session *Session
	frames  int
	now     func() time.Time
}

// NewRecorder creates the session the results are recorded under.
func NewRecorder(s *Store, part video.Part, source string) (*Recorder, error) {
	sess := &Session{Part: string(part), Source: source}
	if err := s.Sessions().Create(sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &Recorder{store: s, session: sess, now: time.Now}, nil
}

// Emit appends the result as a frame of the session.
func (r *Recorder) Emit(res video.Result) error {
	err := r.store.Frames().Append(&FrameRecord{
		SessionID:  r.session.ID,
		Index:      res.Index,
		CapturedAt: res.Time,
		Landmarks:  res.Landmarks,
	})
	if err != nil {
		return fmt.Errorf("record frame %d: %w", res.Index, err)
	}
	r.frames++
	return nil
}

// Close marks the session finished with the number of recorded frames.
func (r *Recorder) Close() error {
	at := r.now()
	if err := r.store.Sessions().Finish(r.session.ID, r.frames, at); err != nil {
		return fmt.Errorf("finish session: %w", err)
	}
	r.session.Frames = r.frames
	r.session.FinishedAt = &at
	return nil
}

// Session returns the session being recorded.
func (r *Recorder) Session() *Session {
	return r.session
}
