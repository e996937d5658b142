package completion

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// UnitType is the block type of a tracked content unit.
type UnitType string

const (
	UnitTypeVideo   UnitType = "video"
	UnitTypeProblem UnitType = "problem"
)

// TrackedTypes are the block types whose completion state is monitored.
var TrackedTypes = []UnitType{UnitTypeVideo, UnitTypeProblem}

func IsTrackedType(blockType string) bool {
	for _, t := range TrackedTypes {
		if string(t) == blockType {
			return true
		}
	}
	return false
}

type (
	// Unit is a tracked content block inside a subsection.
	Unit struct {
		ID   string   `json:"id"`
		Type UnitType `json:"type"`
		Done bool     `json:"done"`
	}

	// Subsection mirrors one subsection of a chapter at enrollment time.
	Subsection struct {
		ID     string `json:"id"`
		Viewed bool   `json:"viewed"`
		Units  []Unit `json:"units"`
	}

	// Subsections is the chapter's embedded subsection document,
	// persisted as a single JSONB column.
	Subsections []Subsection

	// ChapterProgress tracks a user's completion inside one chapter. The
	// subsection document is a snapshot of the course structure taken when
	// the profile was created; later course edits are not reflected.
	ChapterProgress struct {
		ID          int         `db:"id"`
		ProfileID   int         `db:"profile_id"`
		ChapterID   string      `db:"chapter_id"`
		Subsections Subsections `db:"subsections"`
	}

	// CompletionProfile tracks a user's completion state in one course.
	// At most one profile exists per (user, course) pair, and one per
	// registration key.
	CompletionProfile struct {
		ID              int       `db:"id"`
		UserID          int       `db:"user_id"`
		CourseKey       string    `db:"course_key"`
		RegistrationKey string    `db:"registration_key"`
		ReferenceID     string    `db:"reference_id"`
		Active          bool      `db:"active"`
		Reported        bool      `db:"reported"`
		CreatedAt       time.Time `db:"created_at"`
		UpdatedAt       time.Time `db:"updated_at"`
	}
)

func (s Subsections) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *Subsections) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	case nil:
		*s = nil
		return nil
	}
	return errors.Errorf("completion: cannot scan %T into Subsections", src)
}

// Done reports whether a subsection counts as completed: all of its units
// are done, or, when it holds no tracked units, it has been viewed.
func (s Subsection) Done() bool {
	if len(s.Units) == 0 {
		return s.Viewed
	}
	for _, u := range s.Units {
		if !u.Done {
			return false
		}
	}
	return true
}

// PercentComplete is the chapter's completion percentage:
// 100 * (#done subsections / #subsections), or 100 with no subsections.
func (cp ChapterProgress) PercentComplete() float64 {
	if len(cp.Subsections) == 0 {
		return 100.0
	}
	var done int
	for _, s := range cp.Subsections {
		if s.Done() {
			done++
		}
	}
	return 100.0 * float64(done) / float64(len(cp.Subsections))
}

// unitCounts tallies done/total tracked units of one type across chapters.
func unitCounts(chapters []ChapterProgress, typ UnitType) (done, total int) {
	for _, ch := range chapters {
		for _, sub := range ch.Subsections {
			for _, u := range sub.Units {
				if u.Type != typ {
					continue
				}
				total++
				if u.Done {
					done++
				}
			}
		}
	}
	return done, total
}

// Progress computes the aggregate completion ratio over every tracked unit
// across all chapters. A kind (videos or problems) with zero tracked units
// is skipped: with both kinds absent the progress is 0, with one kind
// present the result is that kind's ratio, and with both present it is
// their equally weighted sum.
func Progress(chapters []ChapterProgress) float64 {
	doneProblems, totalProblems := unitCounts(chapters, UnitTypeProblem)
	doneVideos, totalVideos := unitCounts(chapters, UnitTypeVideo)

	switch {
	case totalProblems == 0 && totalVideos == 0:
		return 0.0
	case totalProblems == 0:
		return float64(doneVideos) / float64(totalVideos)
	case totalVideos == 0:
		return float64(doneProblems) / float64(totalProblems)
	default:
		return 0.5*float64(doneProblems)/float64(totalProblems) +
			0.5*float64(doneVideos)/float64(totalVideos)
	}
}
