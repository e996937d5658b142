// Package edx defines the narrow interfaces through which the integration
// consumes the host LMS: enrollment, course structure and grading. The LMS
// itself is an external collaborator; nothing here implements its behavior.
package edx

import (
	"errors"

	"github.com/volatiletech/null/v8"
)

// Block types of interest in a course tree.
const (
	BlockTypeChapter    = "chapter"
	BlockTypeSequential = "sequential"
	BlockTypeVertical   = "vertical"
	BlockTypeVideo      = "video"
	BlockTypeProblem    = "problem"
)

var ErrCourseNotFound = errors.New("course not found")

type (
	// Block is a node of a course's content tree. Chapters sit directly
	// under the course root; subsections (sequentials) under chapters.
	Block struct {
		ID       string  `json:"id"`
		Type     string  `json:"type"`
		Name     string  `json:"display_name"`
		Children []Block `json:"children"`
	}

	// CourseGrade is the host gradebook's view of a user's standing in a course.
	CourseGrade struct {
		Passed          bool      `json:"passed"`
		Percent         float64   `json:"percent"`
		PassedTimestamp null.Time `json:"passed_timestamp"`
	}

	// StructureProvider exposes a course's content tree as it exists right now.
	StructureProvider interface {
		// CourseBlocks returns the root block of the course tree.
		CourseBlocks(courseKey string) (Block, error)
	}

	// Enrollments enrolls/unenrolls users in courses.
	Enrollments interface {
		Enroll(userID int, courseKey string) error
		Unenroll(userID int, courseKey string) error
	}

	// Gradebook reads a user's course grade.
	Gradebook interface {
		CourseGrade(userID int, courseKey string) (CourseGrade, error)
	}
)

// Chapters returns the chapter blocks of a course tree root.
func (b Block) Chapters() []Block {
	chapters := make([]Block, 0, len(b.Children))
	for _, child := range b.Children {
		if child.Type == BlockTypeChapter {
			chapters = append(chapters, child)
		}
	}
	return chapters
}

// Subsections returns the sequential blocks directly under a chapter.
func (b Block) Subsections() []Block {
	subs := make([]Block, 0, len(b.Children))
	for _, child := range b.Children {
		if child.Type == BlockTypeSequential {
			subs = append(subs, child)
		}
	}
	return subs
}

// Walk visits b and all of its descendants depth-first.
func (b Block) Walk(visit func(Block)) {
	visit(b)
	for _, child := range b.Children {
		child.Walk(visit)
	}
}
