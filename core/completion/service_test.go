package completion_test

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/ExtensionEngineArchive/ed2go-edx-platform/core"
	"github.com/ExtensionEngineArchive/ed2go-edx-platform/core/completion"
	"github.com/ExtensionEngineArchive/ed2go-edx-platform/core/edx"
	"github.com/ExtensionEngineArchive/ed2go-edx-platform/core/user"
	dummyedx "github.com/ExtensionEngineArchive/ed2go-edx-platform/services/edx/dummy"
	dummydb "github.com/ExtensionEngineArchive/ed2go-edx-platform/storage/database/dummy"
)

const courseKey = "course-v1:Acme+CS101+2026"

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

type fakePartner struct {
	reports    []core.CompletionReport
	submitErr  error
	statusPush int
}

func (p *fakePartner) Registration(string) (core.RegistrationData, error) {
	return core.RegistrationData{}, errors.New("not scripted")
}

func (p *fakePartner) UpdateRegistrationStatus(string, string, string, string) error {
	p.statusPush++
	return nil
}

func (p *fakePartner) SubmitCompletionReport(rep core.CompletionReport) error {
	if p.submitErr != nil {
		return p.submitErr
	}
	p.reports = append(p.reports, rep)
	return nil
}

type fixedTimer struct{ total time.Duration }

func (t fixedTimer) TotalTime(int, string) (time.Duration, error) { return t.total, nil }

// courseTree is a two chapter course: the first chapter has one subsection
// holding a problem and a video, the second one subsection with no tracked
// units.
func courseTree() edx.Block {
	return edx.Block{
		ID:   courseKey,
		Type: "course",
		Children: []edx.Block{
			{
				ID:   "chapter-1",
				Type: edx.BlockTypeChapter,
				Children: []edx.Block{
					{
						ID:   "sub-1",
						Type: edx.BlockTypeSequential,
						Children: []edx.Block{
							{
								ID:   "vert-1",
								Type: edx.BlockTypeVertical,
								Children: []edx.Block{
									{ID: "problem-1", Type: edx.BlockTypeProblem},
									{ID: "video-1", Type: edx.BlockTypeVideo},
								},
							},
						},
					},
				},
			},
			{
				ID:   "chapter-2",
				Type: edx.BlockTypeChapter,
				Children: []edx.Block{
					{ID: "sub-2", Type: edx.BlockTypeSequential},
				},
			},
		},
	}
}

type testEnv struct {
	svc     *completion.Service
	repo    completion.Repository
	users   *user.Service
	lms     *dummyedx.Provider
	partner *fakePartner
	conf    *core.Config
}

func setup(t *testing.T) *testEnv {
	t.Helper()

	db, err := dummydb.Open()
	require.NoError(t, err)

	conf := new(core.Config)
	lms := dummyedx.NewProvider()
	lms.SetCourse(courseKey, courseTree())
	partner := new(fakePartner)
	repo := dummydb.NewCompletionRepository(db)
	users := user.NewService(dummydb.NewUserRepository(db))

	svc := completion.NewService(repo, users, lms, lms, lms, partner, conf, nopLogger{})
	return &testEnv{svc: svc, repo: repo, users: users, lms: lms, partner: partner, conf: conf}
}

func createUser(t *testing.T, env *testEnv) user.User {
	t.Helper()
	usr, err := env.users.Create(user.NewUser{
		Username: "jdoe",
		Email:    "jdoe@test.cd",
		Name:     "Jane Doe",
	})
	require.NoError(t, err)
	return usr
}

func TestService_Create(t *testing.T) {
	env := setup(t)
	usr := createUser(t, env)

	profile, err := env.svc.Create(usr.ID, courseKey, "reg-1", "ref-1")
	require.NoError(t, err)
	assert.True(t, profile.Active)
	assert.False(t, profile.Reported)
	assert.True(t, env.lms.Enrolled(usr.ID, courseKey))

	chapters, err := env.svc.Chapters(profile.ID)
	require.NoError(t, err)
	require.Len(t, chapters, 2)
	assert.Equal(t, "chapter-1", chapters[0].ChapterID)
	require.Len(t, chapters[0].Subsections, 1)
	assert.Len(t, chapters[0].Subsections[0].Units, 2)
	assert.Empty(t, chapters[1].Subsections[0].Units)

	progress, err := env.svc.Progress(profile)
	require.NoError(t, err)
	assert.Zero(t, progress)
}

func TestService_Create_duplicate(t *testing.T) {
	env := setup(t)
	usr := createUser(t, env)

	_, err := env.svc.Create(usr.ID, courseKey, "reg-1", "")
	require.NoError(t, err)

	// same (user, course)
	_, err = env.svc.Create(usr.ID, courseKey, "reg-2", "")
	assert.ErrorIs(t, err, completion.ErrProfileExists)

	// same registration key, different pair
	other, err := env.users.Create(user.NewUser{Username: "other", Email: "other@test.cd", Name: "Other"})
	require.NoError(t, err)
	_, err = env.svc.Create(other.ID, courseKey, "reg-1", "")
	assert.ErrorIs(t, err, completion.ErrProfileExists)

	profiles, err := env.repo.Profiles()
	require.NoError(t, err)
	assert.Len(t, profiles, 1)
}

func TestService_MarkProgress(t *testing.T) {
	env := setup(t)
	usr := createUser(t, env)
	profile, err := env.svc.Create(usr.ID, courseKey, "reg-1", "")
	require.NoError(t, err)

	// flag as reported so marking clears it again
	profile.Reported = true
	_, err = env.repo.UpdateProfile(profile)
	require.NoError(t, err)

	require.NoError(t, env.svc.MarkProgress(usr.ID, courseKey, "problem-1"))

	profile, err = env.svc.Get(usr.ID, courseKey)
	require.NoError(t, err)
	assert.False(t, profile.Reported)

	progress, err := env.svc.Progress(profile)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, progress, 1e-9) // problems done, videos not

	err = env.svc.MarkProgress(usr.ID, courseKey, "nope")
	assert.ErrorIs(t, err, completion.ErrUnitNotFound)
}

func TestService_MarkSubsectionViewed(t *testing.T) {
	env := setup(t)
	usr := createUser(t, env)
	profile, err := env.svc.Create(usr.ID, courseKey, "reg-1", "")
	require.NoError(t, err)

	require.NoError(t, env.svc.MarkSubsectionViewed(usr.ID, courseKey, "sub-2"))

	chapters, err := env.svc.Chapters(profile.ID)
	require.NoError(t, err)
	assert.True(t, chapters[1].Subsections[0].Viewed)

	// idempotent
	require.NoError(t, env.svc.MarkSubsectionViewed(usr.ID, courseKey, "sub-2"))

	err = env.svc.MarkSubsectionViewed(usr.ID, courseKey, "nope")
	assert.ErrorIs(t, err, completion.ErrSubsectionNotFound)
}

func TestService_DeactivateActivate(t *testing.T) {
	env := setup(t)
	usr := createUser(t, env)
	_, err := env.svc.Create(usr.ID, courseKey, "reg-1", "")
	require.NoError(t, err)

	require.NoError(t, env.svc.Deactivate("reg-1"))
	profile, err := env.svc.GetByRegistrationKey("reg-1")
	require.NoError(t, err)
	assert.False(t, profile.Active)
	assert.False(t, env.lms.Enrolled(usr.ID, courseKey))

	require.NoError(t, env.svc.Activate("reg-1"))
	profile, err = env.svc.GetByRegistrationKey("reg-1")
	require.NoError(t, err)
	assert.True(t, profile.Active)
	assert.True(t, env.lms.Enrolled(usr.ID, courseKey))
}

func TestService_BuildReport(t *testing.T) {
	env := setup(t)
	usr := createUser(t, env)
	profile, err := env.svc.Create(usr.ID, courseKey, "reg-1", "")
	require.NoError(t, err)

	passedAt := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	env.lms.SetGrade(usr.ID, courseKey, edx.CourseGrade{
		Passed:          true,
		Percent:         0.83,
		PassedTimestamp: null.TimeFrom(passedAt),
	})
	env.svc.BindSessionTimer(fixedTimer{total: 26*time.Hour + 61*time.Second})

	require.NoError(t, env.svc.MarkProgress(usr.ID, courseKey, "problem-1"))

	report, err := env.svc.BuildReport(profile)
	require.NoError(t, err)
	assert.Equal(t, "reg-1", report.RegistrationKey)
	assert.InDelta(t, 50.0, report.PercentProgress, 1e-9)
	assert.True(t, report.CoursePassed)
	assert.InDelta(t, 0.83, report.PercentOverallScore, 1e-9)
	assert.Equal(t, passedAt, report.CompletionDatetime.Time)
	assert.Equal(t, "1.02:01:01", report.TimeSpent)
}

func TestService_SendReport(t *testing.T) {
	env := setup(t)
	usr := createUser(t, env)
	profile, err := env.svc.Create(usr.ID, courseKey, "reg-1", "")
	require.NoError(t, err)
	env.svc.BindSessionTimer(fixedTimer{})

	// reporting switch off
	assert.False(t, env.svc.SendReport(profile))
	assert.Empty(t, env.partner.reports)

	env.conf.Ed2go.CompletionReportingEnabled = true
	assert.True(t, env.svc.SendReport(profile))
	assert.Len(t, env.partner.reports, 1)

	profile, err = env.svc.GetByRegistrationKey("reg-1")
	require.NoError(t, err)
	assert.True(t, profile.Reported)

	// partner failure is swallowed and reported as false
	env.partner.submitErr = errors.New("boom")
	assert.False(t, env.svc.SendReport(profile))
}

func TestService_SubmitPendingReports(t *testing.T) {
	env := setup(t)
	env.conf.Ed2go.CompletionReportingEnabled = true
	env.svc.BindSessionTimer(fixedTimer{})

	usr := createUser(t, env)
	_, err := env.svc.Create(usr.ID, courseKey, "reg-1", "")
	require.NoError(t, err)

	other, err := env.users.Create(user.NewUser{Username: "other", Email: "other@test.cd", Name: "Other"})
	require.NoError(t, err)
	otherProfile, err := env.svc.Create(other.ID, courseKey, "reg-2", "")
	require.NoError(t, err)

	// an already reported profile stays untouched
	otherProfile.Reported = true
	_, err = env.repo.UpdateProfile(otherProfile)
	require.NoError(t, err)

	sent, failed, err := env.svc.SubmitPendingReports()
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Zero(t, failed)
	assert.Len(t, env.partner.reports, 1)
}

func TestService_PopulateChapters(t *testing.T) {
	env := setup(t)
	usr := createUser(t, env)

	// a profile persisted without its snapshot, as created before tracking
	now := time.Now().UTC()
	_, err := env.repo.CreateProfile(completion.CompletionProfile{
		UserID:          usr.ID,
		CourseKey:       courseKey,
		RegistrationKey: "reg-legacy",
		Active:          true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil)
	require.NoError(t, err)

	populated, err := env.svc.PopulateChapters()
	require.NoError(t, err)
	assert.Equal(t, 1, populated)

	profile, err := env.svc.GetByRegistrationKey("reg-legacy")
	require.NoError(t, err)
	chapters, err := env.svc.Chapters(profile.ID)
	require.NoError(t, err)
	assert.Len(t, chapters, 2)

	// second run is a no-op
	populated, err = env.svc.PopulateChapters()
	require.NoError(t, err)
	assert.Zero(t, populated)
}
