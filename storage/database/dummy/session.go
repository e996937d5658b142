package dummydb

import (
	"sort"

	"github.com/volatiletech/null/v8"

	"github.com/ExtensionEngineArchive/ed2go-edx-platform/core/session"
)

type sessionRepository struct {
	db      *sessionTable
	pkCount int
}

var _ session.Repository = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(db *DB) session.Repository {
	return &sessionRepository{db: db.session}
}

func (repo *sessionRepository) StartSession(s session.CourseSession) (session.CourseSession, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, prior := range repo.db.table {
		if prior.UserID == s.UserID && prior.CourseKey == s.CourseKey && prior.Active {
			prior.Active = false
			prior.ClosedAt = null.TimeFrom(prior.LastActivityAt)
		}
	}

	repo.pkCount++
	s.ID = repo.pkCount
	repo.db.table[s.ID] = &s
	return s, nil
}

func (repo *sessionRepository) GetActiveSession(userID int, courseKey string) (session.CourseSession, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, s := range repo.db.table {
		if s.UserID == userID && s.CourseKey == courseKey && s.Active {
			return *s, nil
		}
	}
	return session.CourseSession{}, session.ErrSessionNotFound
}

func (repo *sessionRepository) UpdateSession(s session.CourseSession) (session.CourseSession, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[s.ID]; !ok {
		return session.CourseSession{}, session.ErrSessionNotFound
	}
	repo.db.table[s.ID] = &s
	return s, nil
}

func (repo *sessionRepository) Sessions(userID int, courseKey string) ([]session.CourseSession, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var sessions []session.CourseSession
	for _, s := range repo.db.table {
		if s.UserID == userID && s.CourseKey == courseKey {
			sessions = append(sessions, *s)
		}
	}
	sortByCreation(sessions)
	return sessions, nil
}

func (repo *sessionRepository) ActiveSessions() ([]session.CourseSession, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var sessions []session.CourseSession
	for _, s := range repo.db.table {
		if s.Active {
			sessions = append(sessions, *s)
		}
	}
	sortByCreation(sessions)
	return sessions, nil
}

func (repo *sessionRepository) ActiveSessionsByUser(userID int) ([]session.CourseSession, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var sessions []session.CourseSession
	for _, s := range repo.db.table {
		if s.UserID == userID && s.Active {
			sessions = append(sessions, *s)
		}
	}
	sortByCreation(sessions)
	return sessions, nil
}

func sortByCreation(sessions []session.CourseSession) {
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
}
