package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/hollis-dev/rollcall/internal/auth"
	"github.com/hollis-dev/rollcall/internal/model"
)

// Lister is the one backend operation this package needs.
type Lister interface {
	ListAttendance(ctx context.Context) ([]model.AttendanceRecord, error)
}

// Snapshot is the result of a refresh: the user's open session, if any, and
// their records newest first.
type Snapshot struct {
	Active *model.AttendanceRecord
	Recent []model.AttendanceRecord
}

// AttendanceSession answers "is this user checked in right now" by querying
// the backend. It holds no state of its own; every answer comes from a fresh
// read, so a stale UI can never cause a duplicate check-in.
type AttendanceSession struct {
	backend  Lister
	identity auth.Session
	logger   *slog.Logger
}

func New(backend Lister, identity auth.Session, logger *slog.Logger) *AttendanceSession {
	return &AttendanceSession{backend: backend, identity: identity, logger: logger}
}

// Identity returns the session's user identity.
func (s *AttendanceSession) Identity() auth.Session {
	return s.identity
}

// Refresh fetches the user's attendance records and selects the active one.
// With more than one open record (a backend anomaly) the newest check-in
// wins, tie-broken by highest id. Fetch failures propagate; callers must not
// treat them as "no active session".
func (s *AttendanceSession) Refresh(ctx context.Context) (*Snapshot, error) {
	records, err := s.backend.ListAttendance(ctx)
	if err != nil {
		return nil, fmt.Errorf("refresh attendance: %w", err)
	}

	var mine []model.AttendanceRecord
	for _, r := range records {
		if r.BelongsTo(s.identity.UserID, s.identity.Email) {
			mine = append(mine, r)
		}
	}

	sort.Slice(mine, func(i, j int) bool {
		if !mine[i].CheckInTime.Equal(mine[j].CheckInTime) {
			return mine[i].CheckInTime.After(mine[j].CheckInTime)
		}
		return mine[i].ID > mine[j].ID
	})

	snap := &Snapshot{Recent: mine}

	openCount := 0
	for i := range mine {
		if mine[i].Active() {
			openCount++
			if snap.Active == nil {
				snap.Active = &mine[i]
			}
		}
	}
	if openCount > 1 {
		s.logger.Warn("multiple open attendance records, using newest",
			"count", openCount, "selected_id", snap.Active.ID)
	}

	return snap, nil
}
