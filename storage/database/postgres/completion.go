package pgrepos

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/ExtensionEngineArchive/ed2go-edx-platform/core/completion"
)

// uniqueViolation is the postgres error code for unique constraint breaches.
const uniqueViolation = "23505"

type completionRepository struct {
	db *sqlx.DB
}

var _ completion.Repository = (*completionRepository)(nil)

func NewCompletionRepository(db *sqlx.DB) completion.Repository {
	return &completionRepository{db: db}
}

// CreateProfile persists the profile and its chapter snapshots in one
// transaction; a unique-constraint conflict surfaces as ErrProfileExists.
func (repo *completionRepository) CreateProfile(
	profile completion.CompletionProfile,
	chapters []completion.ChapterProgress,
) (completion.CompletionProfile, error) {
	tx, err := repo.db.Beginx()
	if err != nil {
		return completion.CompletionProfile{}, errors.Wrap(err, "creating completion profile")
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO completion_profile (user_id, course_key, registration_key, reference_id,
		                                active, reported, created_at, updated_at)
		VALUES (:user_id, :course_key, :registration_key, :reference_id,
		        :active, :reported, :created_at, :updated_at)
		RETURNING id`
	rows, err := tx.NamedQuery(query, profile)
	if err != nil {
		if isUniqueViolation(err) {
			return completion.CompletionProfile{}, completion.ErrProfileExists
		}
		return completion.CompletionProfile{}, errors.Wrap(err, "creating completion profile")
	}
	if rows.Next() {
		if err = rows.Scan(&profile.ID); err != nil {
			_ = rows.Close()
			return completion.CompletionProfile{}, errors.Wrap(err, "creating completion profile")
		}
	}
	_ = rows.Close()

	for i := range chapters {
		chapters[i].ProfileID = profile.ID
		_, err = tx.NamedExec(`
			INSERT INTO chapter_progress (profile_id, chapter_id, subsections)
			VALUES (:profile_id, :chapter_id, :subsections)`, chapters[i])
		if err != nil {
			return completion.CompletionProfile{}, errors.Wrap(err, "creating chapter progress")
		}
	}

	if err = tx.Commit(); err != nil {
		return completion.CompletionProfile{}, errors.Wrap(err, "creating completion profile")
	}
	return profile, nil
}

func (repo *completionRepository) GetProfile(userID int, courseKey string) (completion.CompletionProfile, error) {
	var profile completion.CompletionProfile
	err := repo.db.Get(&profile,
		`SELECT * FROM completion_profile WHERE user_id = $1 AND course_key = $2`, userID, courseKey)
	if errors.Is(err, sql.ErrNoRows) {
		return completion.CompletionProfile{}, completion.ErrProfileNotFound
	}
	return profile, errors.Wrap(err, "getting completion profile")
}

func (repo *completionRepository) GetProfileByRegistrationKey(regKey string) (completion.CompletionProfile, error) {
	var profile completion.CompletionProfile
	err := repo.db.Get(&profile,
		`SELECT * FROM completion_profile WHERE registration_key = $1`, regKey)
	if errors.Is(err, sql.ErrNoRows) {
		return completion.CompletionProfile{}, completion.ErrProfileNotFound
	}
	return profile, errors.Wrap(err, "getting completion profile by registration key")
}

func (repo *completionRepository) UpdateProfile(profile completion.CompletionProfile) (completion.CompletionProfile, error) {
	_, err := repo.db.NamedExec(`
		UPDATE completion_profile
		SET reference_id = :reference_id, active = :active, reported = :reported, updated_at = :updated_at
		WHERE id = :id`, profile)
	return profile, errors.Wrap(err, "updating completion profile")
}

func (repo *completionRepository) ProfileChapters(profileID int) ([]completion.ChapterProgress, error) {
	var chapters []completion.ChapterProgress
	err := repo.db.Select(&chapters,
		`SELECT * FROM chapter_progress WHERE profile_id = $1 ORDER BY id`, profileID)
	return chapters, errors.Wrap(err, "getting profile chapters")
}

func (repo *completionRepository) UpdateChapter(chapter completion.ChapterProgress) (completion.ChapterProgress, error) {
	_, err := repo.db.NamedExec(`
		UPDATE chapter_progress SET subsections = :subsections WHERE id = :id`, chapter)
	return chapter, errors.Wrap(err, "updating chapter progress")
}

func (repo *completionRepository) UnreportedProfiles() ([]completion.CompletionProfile, error) {
	var profiles []completion.CompletionProfile
	err := repo.db.Select(&profiles,
		`SELECT * FROM completion_profile WHERE active AND NOT reported ORDER BY id`)
	return profiles, errors.Wrap(err, "getting unreported profiles")
}

func (repo *completionRepository) Profiles() ([]completion.CompletionProfile, error) {
	var profiles []completion.CompletionProfile
	err := repo.db.Select(&profiles, `SELECT * FROM completion_profile ORDER BY id`)
	return profiles, errors.Wrap(err, "getting profiles")
}

func (repo *completionRepository) CreateChapters(
	profileID int,
	chapters []completion.ChapterProgress,
) ([]completion.ChapterProgress, error) {
	tx, err := repo.db.Beginx()
	if err != nil {
		return nil, errors.Wrap(err, "creating chapter progress")
	}
	defer func() { _ = tx.Rollback() }()

	for i := range chapters {
		chapters[i].ProfileID = profileID
		_, err = tx.NamedExec(`
			INSERT INTO chapter_progress (profile_id, chapter_id, subsections)
			VALUES (:profile_id, :chapter_id, :subsections)`, chapters[i])
		if err != nil {
			return nil, errors.Wrap(err, "creating chapter progress")
		}
	}
	if err = tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "creating chapter progress")
	}
	return chapters, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	return false
}
