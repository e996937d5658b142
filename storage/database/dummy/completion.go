package dummydb

import (
	"sort"

	"github.com/ExtensionEngineArchive/ed2go-edx-platform/core/completion"
)

type completionRepository struct {
	db         *completionTable
	profileSeq int
	chapterSeq int
}

var _ completion.Repository = (*completionRepository)(nil) // interface compliance check

func NewCompletionRepository(db *DB) completion.Repository {
	return &completionRepository{db: db.completion}
}

func (repo *completionRepository) CreateProfile(
	profile completion.CompletionProfile,
	chapters []completion.ChapterProgress,
) (completion.CompletionProfile, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, p := range repo.db.profiles {
		if (p.UserID == profile.UserID && p.CourseKey == profile.CourseKey) ||
			p.RegistrationKey == profile.RegistrationKey {
			return completion.CompletionProfile{}, completion.ErrProfileExists
		}
	}

	repo.profileSeq++
	profile.ID = repo.profileSeq
	repo.db.profiles[profile.ID] = &profile

	for _, chapter := range chapters {
		ch := chapter
		repo.chapterSeq++
		ch.ID = repo.chapterSeq
		ch.ProfileID = profile.ID
		repo.db.chapters[ch.ID] = &ch
	}
	return profile, nil
}

func (repo *completionRepository) GetProfile(userID int, courseKey string) (completion.CompletionProfile, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, p := range repo.db.profiles {
		if p.UserID == userID && p.CourseKey == courseKey {
			return *p, nil
		}
	}
	return completion.CompletionProfile{}, completion.ErrProfileNotFound
}

func (repo *completionRepository) GetProfileByRegistrationKey(regKey string) (completion.CompletionProfile, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, p := range repo.db.profiles {
		if p.RegistrationKey == regKey {
			return *p, nil
		}
	}
	return completion.CompletionProfile{}, completion.ErrProfileNotFound
}

func (repo *completionRepository) UpdateProfile(profile completion.CompletionProfile) (completion.CompletionProfile, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.profiles[profile.ID]; !ok {
		return completion.CompletionProfile{}, completion.ErrProfileNotFound
	}
	repo.db.profiles[profile.ID] = &profile
	return profile, nil
}

func (repo *completionRepository) ProfileChapters(profileID int) ([]completion.ChapterProgress, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var chapters []completion.ChapterProgress
	for _, ch := range repo.db.chapters {
		if ch.ProfileID == profileID {
			chapters = append(chapters, *ch)
		}
	}
	sort.Slice(chapters, func(i, j int) bool { return chapters[i].ID < chapters[j].ID })
	return chapters, nil
}

func (repo *completionRepository) UpdateChapter(chapter completion.ChapterProgress) (completion.ChapterProgress, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.chapters[chapter.ID]; !ok {
		return completion.ChapterProgress{}, completion.ErrProfileNotFound
	}
	repo.db.chapters[chapter.ID] = &chapter
	return chapter, nil
}

func (repo *completionRepository) Profiles() ([]completion.CompletionProfile, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	profiles := make([]completion.CompletionProfile, 0, len(repo.db.profiles))
	for _, p := range repo.db.profiles {
		profiles = append(profiles, *p)
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].ID < profiles[j].ID })
	return profiles, nil
}

func (repo *completionRepository) CreateChapters(
	profileID int,
	chapters []completion.ChapterProgress,
) ([]completion.ChapterProgress, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	created := make([]completion.ChapterProgress, 0, len(chapters))
	for _, chapter := range chapters {
		ch := chapter
		repo.chapterSeq++
		ch.ID = repo.chapterSeq
		ch.ProfileID = profileID
		repo.db.chapters[ch.ID] = &ch
		created = append(created, ch)
	}
	return created, nil
}

func (repo *completionRepository) UnreportedProfiles() ([]completion.CompletionProfile, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var profiles []completion.CompletionProfile
	for _, p := range repo.db.profiles {
		if p.Active && !p.Reported {
			profiles = append(profiles, *p)
		}
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].ID < profiles[j].ID })
	return profiles, nil
}
