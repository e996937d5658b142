package pgrepos

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/ExtensionEngineArchive/ed2go-edx-platform/core/session"
)

type sessionRepository struct {
	db *sqlx.DB
}

var _ session.Repository = (*sessionRepository)(nil)

func NewSessionRepository(db *sqlx.DB) session.Repository {
	return &sessionRepository{db: db}
}

// StartSession closes any prior active session of the pair and inserts the
// new one in a single transaction, so the one-active-per-pair invariant
// holds even under concurrent requests.
func (repo *sessionRepository) StartSession(s session.CourseSession) (session.CourseSession, error) {
	tx, err := repo.db.Beginx()
	if err != nil {
		return session.CourseSession{}, errors.Wrap(err, "starting session")
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`
		UPDATE course_session
		SET active = FALSE, closed_at = last_activity_at
		WHERE user_id = $1 AND course_key = $2 AND active`, s.UserID, s.CourseKey)
	if err != nil {
		return session.CourseSession{}, errors.Wrap(err, "closing prior sessions")
	}

	rows, err := tx.NamedQuery(`
		INSERT INTO course_session (user_id, course_key, created_at, last_activity_at, closed_at, active)
		VALUES (:user_id, :course_key, :created_at, :last_activity_at, :closed_at, :active)
		RETURNING id`, s)
	if err != nil {
		return session.CourseSession{}, errors.Wrap(err, "starting session")
	}
	if rows.Next() {
		if err = rows.Scan(&s.ID); err != nil {
			_ = rows.Close()
			return session.CourseSession{}, errors.Wrap(err, "starting session")
		}
	}
	_ = rows.Close()

	if err = tx.Commit(); err != nil {
		return session.CourseSession{}, errors.Wrap(err, "starting session")
	}
	return s, nil
}

func (repo *sessionRepository) GetActiveSession(userID int, courseKey string) (session.CourseSession, error) {
	var s session.CourseSession
	err := repo.db.Get(&s,
		`SELECT * FROM course_session WHERE user_id = $1 AND course_key = $2 AND active`,
		userID, courseKey)
	if errors.Is(err, sql.ErrNoRows) {
		return session.CourseSession{}, session.ErrSessionNotFound
	}
	return s, errors.Wrap(err, "getting active session")
}

func (repo *sessionRepository) UpdateSession(s session.CourseSession) (session.CourseSession, error) {
	_, err := repo.db.NamedExec(`
		UPDATE course_session
		SET last_activity_at = :last_activity_at, closed_at = :closed_at, active = :active
		WHERE id = :id`, s)
	return s, errors.Wrap(err, "updating session")
}

func (repo *sessionRepository) Sessions(userID int, courseKey string) ([]session.CourseSession, error) {
	var sessions []session.CourseSession
	err := repo.db.Select(&sessions,
		`SELECT * FROM course_session WHERE user_id = $1 AND course_key = $2 ORDER BY created_at`,
		userID, courseKey)
	return sessions, errors.Wrap(err, "getting sessions")
}

func (repo *sessionRepository) ActiveSessions() ([]session.CourseSession, error) {
	var sessions []session.CourseSession
	err := repo.db.Select(&sessions, `SELECT * FROM course_session WHERE active ORDER BY created_at`)
	return sessions, errors.Wrap(err, "getting active sessions")
}

func (repo *sessionRepository) ActiveSessionsByUser(userID int) ([]session.CourseSession, error) {
	var sessions []session.CourseSession
	err := repo.db.Select(&sessions,
		`SELECT * FROM course_session WHERE user_id = $1 AND active ORDER BY created_at`, userID)
	return sessions, errors.Wrap(err, "getting active sessions by user")
}
