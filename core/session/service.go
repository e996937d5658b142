package session

import (
	"errors"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/ExtensionEngineArchive/ed2go-edx-platform/core"
)

var ErrSessionNotFound = errors.New("course session not found")

type (
	Repository interface {
		// StartSession force-closes any active session for the same
		// (user, course) pair and inserts the new one atomically.
		StartSession(s CourseSession) (CourseSession, error)
		GetActiveSession(userID int, courseKey string) (CourseSession, error)
		UpdateSession(s CourseSession) (CourseSession, error)
		// Sessions returns every session row for the pair, oldest first.
		Sessions(userID int, courseKey string) ([]CourseSession, error)
		ActiveSessions() ([]CourseSession, error)
		ActiveSessionsByUser(userID int) ([]CourseSession, error)
	}

	// ProfileMarker clears the completion profile's reported flag after
	// session activity. Implemented by the completion service.
	ProfileMarker interface {
		MarkUnreported(userID int, courseKey string) error
	}

	Service struct {
		repo   Repository
		marker ProfileMarker
		logger core.Logger
	}
)

func NewService(repo Repository, marker ProfileMarker, logger core.Logger) *Service {
	return &Service{repo: repo, marker: marker, logger: logger}
}

// Touch records user activity in a course: the active session's last
// activity time is bumped, or a new session is started when none is active.
func (svc *Service) Touch(userID int, courseKey string) (CourseSession, error) {
	now := time.Now().UTC()

	s, err := svc.repo.GetActiveSession(userID, courseKey)
	switch {
	case err == nil:
		s.LastActivityAt = now
		if s, err = svc.repo.UpdateSession(s); err != nil {
			return CourseSession{}, err
		}
	case errors.Is(err, ErrSessionNotFound):
		s = CourseSession{
			UserID:         userID,
			CourseKey:      courseKey,
			CreatedAt:      now,
			LastActivityAt: now,
			Active:         true,
		}
		if s, err = svc.repo.StartSession(s); err != nil {
			return CourseSession{}, err
		}
	default:
		return CourseSession{}, err
	}

	return s, svc.markUnreported(userID, courseKey)
}

// Close ends the pair's active session. An optional offset is subtracted
// from the close timestamp, so a session swept after an inactivity
// threshold ends at its actual last activity. Closing when no session is
// active is a no-op.
func (svc *Service) Close(userID int, courseKey string, offset ...time.Duration) error {
	s, err := svc.repo.GetActiveSession(userID, courseKey)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil
		}
		return err
	}
	return svc.close(s, offset...)
}

func (svc *Service) close(s CourseSession, offset ...time.Duration) error {
	closedAt := time.Now().UTC()
	if len(offset) > 0 {
		closedAt = closedAt.Add(-offset[0])
	}
	s.ClosedAt = null.TimeFrom(closedAt)
	s.Active = false
	if _, err := svc.repo.UpdateSession(s); err != nil {
		return err
	}
	svc.logger.Info("session: closed", map[string]interface{}{
		"user": s.UserID, "course": s.CourseKey,
	})
	return svc.markUnreported(s.UserID, s.CourseKey)
}

// CloseAll closes every active session of the user, across all courses.
// Used when the user logs out.
func (svc *Service) CloseAll(userID int) error {
	sessions, err := svc.repo.ActiveSessionsByUser(userID)
	if err != nil {
		return err
	}
	for _, s := range sessions {
		if err = svc.close(s); err != nil {
			return err
		}
	}
	return nil
}

// CloseStale closes every active session whose last activity is older than
// the threshold. The close timestamp is offset back to the moment the
// session effectively went idle.
func (svc *Service) CloseStale(threshold time.Duration) (int, error) {
	sessions, err := svc.repo.ActiveSessions()
	if err != nil {
		return 0, err
	}

	var closed int
	cutoff := time.Now().UTC().Add(-threshold)
	for _, s := range sessions {
		if !s.LastActivityAt.Before(cutoff) {
			continue
		}
		idleFor := time.Now().UTC().Sub(s.LastActivityAt.Add(threshold))
		if idleFor < 0 {
			idleFor = 0
		}
		if err = svc.close(s, idleFor); err != nil {
			return closed, err
		}
		closed++
	}
	return closed, nil
}

// TotalTime sums the durations of every session the user had in the course;
// gaps between sessions are excluded.
func (svc *Service) TotalTime(userID int, courseKey string) (time.Duration, error) {
	sessions, err := svc.repo.Sessions(userID, courseKey)
	if err != nil {
		return 0, err
	}
	var total time.Duration
	for _, s := range sessions {
		total += s.Duration()
	}
	return total, nil
}

func (svc *Service) markUnreported(userID int, courseKey string) error {
	if svc.marker == nil {
		return nil
	}
	if err := svc.marker.MarkUnreported(userID, courseKey); err != nil {
		svc.logger.Error("session: marking profile unreported", err)
	}
	return nil
}
