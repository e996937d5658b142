package completion

import (
	"errors"
	"math"
	"time"

	"github.com/ExtensionEngineArchive/ed2go-edx-platform/core"
	"github.com/ExtensionEngineArchive/ed2go-edx-platform/core/edx"
	"github.com/ExtensionEngineArchive/ed2go-edx-platform/core/user"
)

var (
	ErrProfileExists      = errors.New("completion profile already exists")
	ErrProfileNotFound    = errors.New("completion profile not found")
	ErrUnitNotFound       = errors.New("tracked unit not found")
	ErrSubsectionNotFound = errors.New("subsection not found")
)

type (
	Repository interface {
		// CreateProfile persists the profile and its chapter snapshots in a
		// single transaction. Returns ErrProfileExists when a profile for
		// the same (user, course) pair or registration key already exists.
		CreateProfile(profile CompletionProfile, chapters []ChapterProgress) (CompletionProfile, error)
		GetProfile(userID int, courseKey string) (CompletionProfile, error)
		GetProfileByRegistrationKey(regKey string) (CompletionProfile, error)
		UpdateProfile(profile CompletionProfile) (CompletionProfile, error)
		ProfileChapters(profileID int) ([]ChapterProgress, error)
		UpdateChapter(chapter ChapterProgress) (ChapterProgress, error)
		// UnreportedProfiles returns every active profile whose latest
		// progress state has not been sent to the partner yet.
		UnreportedProfiles() ([]CompletionProfile, error)
		Profiles() ([]CompletionProfile, error)
		CreateChapters(profileID int, chapters []ChapterProgress) ([]ChapterProgress, error)
	}

	// SessionTimer reports the total time a user spent in a course.
	// Implemented by the session service.
	SessionTimer interface {
		TotalTime(userID int, courseKey string) (time.Duration, error)
	}

	Service struct {
		repo        Repository
		users       *user.Service
		structure   edx.StructureProvider
		enrollments edx.Enrollments
		gradebook   edx.Gradebook
		partner     core.PartnerClient
		timer       SessionTimer
		conf        *core.Config
		logger      core.Logger
	}
)

func NewService(
	repo Repository,
	users *user.Service,
	structure edx.StructureProvider,
	enrollments edx.Enrollments,
	gradebook edx.Gradebook,
	partner core.PartnerClient,
	conf *core.Config,
	logger core.Logger,
) *Service {
	return &Service{
		repo:        repo,
		users:       users,
		structure:   structure,
		enrollments: enrollments,
		gradebook:   gradebook,
		partner:     partner,
		conf:        conf,
		logger:      logger,
	}
}

// BindSessionTimer wires the session service in after construction; the
// session service itself depends on this service for unreported marking.
func (svc *Service) BindSessionTimer(timer SessionTimer) { svc.timer = timer }

// Create makes a new completion profile for the (user, course) pair,
// snapshots the course's chapter/subsection/unit tree and enrolls the user.
// Fails with ErrProfileExists if a profile for the pair already exists.
func (svc *Service) Create(userID int, courseKey, regKey, referenceID string) (CompletionProfile, error) {
	chapters, err := svc.snapshotChapters(courseKey)
	if err != nil {
		return CompletionProfile{}, err
	}

	now := time.Now().UTC()
	profile := CompletionProfile{
		UserID:          userID,
		CourseKey:       courseKey,
		RegistrationKey: regKey,
		ReferenceID:     referenceID,
		Active:          true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	profile, err = svc.repo.CreateProfile(profile, chapters)
	if err != nil {
		return CompletionProfile{}, err
	}

	if err = svc.enrollments.Enroll(userID, courseKey); err != nil {
		svc.logger.Error("completion: enrolling user after profile creation", err)
		return CompletionProfile{}, err
	}
	svc.logger.Info("completion: profile created", map[string]interface{}{
		"user": userID, "course": courseKey,
	})
	return profile, nil
}

// snapshotChapters walks the course's current content tree and records every
// tracked unit per subsection per chapter.
func (svc *Service) snapshotChapters(courseKey string) ([]ChapterProgress, error) {
	root, err := svc.structure.CourseBlocks(courseKey)
	if err != nil {
		return nil, err
	}

	courseChapters := root.Chapters()
	chapters := make([]ChapterProgress, 0, len(courseChapters))
	for _, chapterBlock := range courseChapters {
		blockSubs := chapterBlock.Subsections()
		subs := make(Subsections, 0, len(blockSubs))
		for _, subBlock := range blockSubs {
			sub := Subsection{ID: subBlock.ID}
			subBlock.Walk(func(b edx.Block) {
				if IsTrackedType(b.Type) {
					sub.Units = append(sub.Units, Unit{ID: b.ID, Type: UnitType(b.Type)})
				}
			})
			subs = append(subs, sub)
		}
		chapters = append(chapters, ChapterProgress{
			ChapterID:   chapterBlock.ID,
			Subsections: subs,
		})
	}
	return chapters, nil
}

func (svc *Service) Get(userID int, courseKey string) (CompletionProfile, error) {
	return svc.repo.GetProfile(userID, courseKey)
}

func (svc *Service) GetByRegistrationKey(regKey string) (CompletionProfile, error) {
	return svc.repo.GetProfileByRegistrationKey(regKey)
}

func (svc *Service) Chapters(profileID int) ([]ChapterProgress, error) {
	return svc.repo.ProfileChapters(profileID)
}

// Progress is the profile's aggregate completion ratio in [0, 1].
func (svc *Service) Progress(profile CompletionProfile) (float64, error) {
	chapters, err := svc.repo.ProfileChapters(profile.ID)
	if err != nil {
		return 0, err
	}
	return Progress(chapters), nil
}

// MarkProgress marks the unit with the given id as done. The unit is looked
// up across all of the profile's chapters. Returns ErrUnitNotFound when no
// chapter holds such a unit.
func (svc *Service) MarkProgress(userID int, courseKey, unitID string) error {
	profile, err := svc.repo.GetProfile(userID, courseKey)
	if err != nil {
		return err
	}
	chapters, err := svc.repo.ProfileChapters(profile.ID)
	if err != nil {
		return err
	}

	for _, ch := range chapters {
		for si := range ch.Subsections {
			for ui := range ch.Subsections[si].Units {
				if ch.Subsections[si].Units[ui].ID != unitID {
					continue
				}
				ch.Subsections[si].Units[ui].Done = true
				if _, err = svc.repo.UpdateChapter(ch); err != nil {
					return err
				}
				return svc.markUnreported(profile)
			}
		}
	}
	return ErrUnitNotFound
}

// MarkSubsectionViewed marks the subsection as viewed. Idempotent: marking
// an already-viewed subsection succeeds without mutation. Returns
// ErrSubsectionNotFound when the id is unknown. The profile is located by
// the subsection id alone, searching across all of the user's chapters.
func (svc *Service) MarkSubsectionViewed(userID int, courseKey, subsectionID string) error {
	profile, err := svc.repo.GetProfile(userID, courseKey)
	if err != nil {
		return err
	}
	chapters, err := svc.repo.ProfileChapters(profile.ID)
	if err != nil {
		return err
	}

	for _, ch := range chapters {
		for si := range ch.Subsections {
			if ch.Subsections[si].ID != subsectionID {
				continue
			}
			if ch.Subsections[si].Viewed {
				return nil
			}
			ch.Subsections[si].Viewed = true
			if _, err = svc.repo.UpdateChapter(ch); err != nil {
				return err
			}
			return svc.markUnreported(profile)
		}
	}
	return ErrSubsectionNotFound
}

// Deactivate cancels the registration: the profile is kept but flagged
// inactive, and the user is unenrolled.
func (svc *Service) Deactivate(regKey string) error {
	profile, err := svc.repo.GetProfileByRegistrationKey(regKey)
	if err != nil {
		return err
	}
	profile.Active = false
	profile.UpdatedAt = time.Now().UTC()
	if _, err = svc.repo.UpdateProfile(profile); err != nil {
		return err
	}
	return svc.enrollments.Unenroll(profile.UserID, profile.CourseKey)
}

// Activate re-activates a cancelled registration and re-enrolls the user.
func (svc *Service) Activate(regKey string) error {
	profile, err := svc.repo.GetProfileByRegistrationKey(regKey)
	if err != nil {
		return err
	}
	profile.Active = true
	profile.UpdatedAt = time.Now().UTC()
	if _, err = svc.repo.UpdateProfile(profile); err != nil {
		return err
	}
	return svc.enrollments.Enroll(profile.UserID, profile.CourseKey)
}

// UpdateReference stores the partner correlation id on the profile.
func (svc *Service) UpdateReference(regKey, referenceID string) error {
	profile, err := svc.repo.GetProfileByRegistrationKey(regKey)
	if err != nil {
		return err
	}
	profile.ReferenceID = referenceID
	profile.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateProfile(profile)
	return err
}

// MarkUnreported flags the profile for re-reporting after new activity.
// Unknown (user, course) pairs are ignored: session pings may arrive for
// courses entered outside a partner registration.
func (svc *Service) MarkUnreported(userID int, courseKey string) error {
	profile, err := svc.repo.GetProfile(userID, courseKey)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			return nil
		}
		return err
	}
	return svc.markUnreported(profile)
}

func (svc *Service) markUnreported(profile CompletionProfile) error {
	if !profile.Reported {
		return nil
	}
	profile.Reported = false
	profile.UpdatedAt = time.Now().UTC()
	_, err := svc.repo.UpdateProfile(profile)
	return err
}

// PopulateChapters builds the chapter snapshot for profiles that predate
// progress tracking. A profile that already has chapters is left alone; a
// course whose structure cannot be fetched is skipped with a logged error.
// Returns the number of profiles populated.
func (svc *Service) PopulateChapters() (int, error) {
	profiles, err := svc.repo.Profiles()
	if err != nil {
		return 0, err
	}

	var populated int
	for _, profile := range profiles {
		chapters, err := svc.repo.ProfileChapters(profile.ID)
		if err != nil {
			return populated, err
		}
		if len(chapters) > 0 {
			continue
		}
		snapshot, err := svc.snapshotChapters(profile.CourseKey)
		if err != nil {
			svc.logger.Error("completion: snapshotting course", err, map[string]interface{}{
				"course": profile.CourseKey,
			})
			continue
		}
		if _, err = svc.repo.CreateChapters(profile.ID, snapshot); err != nil {
			return populated, err
		}
		populated++
	}
	return populated, nil
}

// BuildReport assembles the completion report payload for the profile.
func (svc *Service) BuildReport(profile CompletionProfile) (core.CompletionReport, error) {
	progress, err := svc.Progress(profile)
	if err != nil {
		return core.CompletionReport{}, err
	}
	grade, err := svc.gradebook.CourseGrade(profile.UserID, profile.CourseKey)
	if err != nil {
		return core.CompletionReport{}, err
	}
	usr, err := svc.users.GetByID(profile.UserID)
	if err != nil {
		return core.CompletionReport{}, err
	}

	var total time.Duration
	if svc.timer != nil {
		if total, err = svc.timer.TotalTime(profile.UserID, profile.CourseKey); err != nil {
			return core.CompletionReport{}, err
		}
	}

	return core.CompletionReport{
		RegistrationKey:     profile.RegistrationKey,
		PercentProgress:     math.Round(progress*10000) / 100, // ratio -> %, 2 decimals
		LastAccessDatetime:  usr.LastLogin,
		CoursePassed:        grade.Passed,
		PercentOverallScore: grade.Percent,
		CompletionDatetime:  grade.PassedTimestamp,
		TimeSpent:           core.FormatTimeSpent(total),
	}, nil
}

// SendReport submits the profile's completion report to the partner.
// It is a no-op returning false unless completion reporting is enabled.
// Failures are logged and reported as false, never raised.
func (svc *Service) SendReport(profile CompletionProfile) bool {
	if !svc.conf.Ed2go.CompletionReportingEnabled {
		return false
	}

	report, err := svc.BuildReport(profile)
	if err != nil {
		svc.logger.Error("completion: building report", err, map[string]interface{}{
			"registration_key": profile.RegistrationKey,
		})
		return false
	}
	if err = svc.partner.SubmitCompletionReport(report); err != nil {
		svc.logger.Error("completion: submitting report", err, map[string]interface{}{
			"registration_key": profile.RegistrationKey,
		})
		return false
	}

	profile.Reported = true
	profile.UpdatedAt = time.Now().UTC()
	if _, err = svc.repo.UpdateProfile(profile); err != nil {
		svc.logger.Error("completion: marking profile reported", err)
		return false
	}
	return true
}

// SubmitPendingReports sends a report for every active unreported profile.
// Returns the number of successful and failed submissions.
func (svc *Service) SubmitPendingReports() (sent, failed int, err error) {
	profiles, err := svc.repo.UnreportedProfiles()
	if err != nil {
		return 0, 0, err
	}
	for _, profile := range profiles {
		if svc.SendReport(profile) {
			sent++
		} else {
			failed++
		}
	}
	return sent, failed, nil
}
