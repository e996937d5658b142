package session

import (
	"time"

	"github.com/volatiletech/null/v8"
)

// CourseSession is one continuous activity window of a user in a course.
// At most one active session exists per (user, course) pair.
type CourseSession struct {
	ID             int       `db:"id"`
	UserID         int       `db:"user_id"`
	CourseKey      string    `db:"course_key"`
	CreatedAt      time.Time `db:"created_at"`
	LastActivityAt time.Time `db:"last_activity_at"`
	ClosedAt       null.Time `db:"closed_at"`
	Active         bool      `db:"active"`
}

// Duration is the session's activity window length: last activity while
// active, close time once closed.
func (s CourseSession) Duration() time.Duration {
	if s.Active {
		return s.LastActivityAt.Sub(s.CreatedAt)
	}
	if !s.ClosedAt.Valid {
		return 0
	}
	return s.ClosedAt.Time.Sub(s.CreatedAt)
}
