// Package dummydb provides in-memory repository implementations for tests.
package dummydb

import (
	"sync"

	"github.com/ExtensionEngineArchive/ed2go-edx-platform/core/completion"
	"github.com/ExtensionEngineArchive/ed2go-edx-platform/core/session"
	"github.com/ExtensionEngineArchive/ed2go-edx-platform/core/user"
)

type (
	DB struct {
		user       *userTable
		completion *completionTable
		session    *sessionTable
	}

	userTable struct {
		sync.RWMutex
		table map[int]*user.User
	}

	completionTable struct {
		sync.RWMutex
		profiles map[int]*completion.CompletionProfile
		chapters map[int]*completion.ChapterProgress
	}

	sessionTable struct {
		sync.RWMutex
		table map[int]*session.CourseSession
	}
)

func Open() (*DB, error) {
	db := &DB{
		user: &userTable{table: make(map[int]*user.User)},
		completion: &completionTable{
			profiles: make(map[int]*completion.CompletionProfile),
			chapters: make(map[int]*completion.ChapterProgress),
		},
		session: &sessionTable{table: make(map[int]*session.CourseSession)},
	}
	return db, nil
}
