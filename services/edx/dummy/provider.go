// Package dummyedx is an in-memory host-LMS fake for tests.
package dummyedx

import (
	"sync"

	"github.com/ExtensionEngineArchive/ed2go-edx-platform/core/edx"
)

type enrollmentKey struct {
	userID    int
	courseKey string
}

// Provider implements every core/edx collaborator interface in memory.
type Provider struct {
	mu          sync.Mutex
	courses     map[string]edx.Block
	grades      map[enrollmentKey]edx.CourseGrade
	enrollments map[enrollmentKey]bool
}

var (
	_ edx.StructureProvider = (*Provider)(nil)
	_ edx.Enrollments       = (*Provider)(nil)
	_ edx.Gradebook         = (*Provider)(nil)
)

func NewProvider() *Provider {
	return &Provider{
		courses:     make(map[string]edx.Block),
		grades:      make(map[enrollmentKey]edx.CourseGrade),
		enrollments: make(map[enrollmentKey]bool),
	}
}

// SetCourse registers a course tree root under the given key.
func (p *Provider) SetCourse(courseKey string, root edx.Block) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.courses[courseKey] = root
}

// SetGrade registers a user's grade in a course.
func (p *Provider) SetGrade(userID int, courseKey string, grade edx.CourseGrade) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.grades[enrollmentKey{userID, courseKey}] = grade
}

func (p *Provider) CourseBlocks(courseKey string) (edx.Block, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	root, ok := p.courses[courseKey]
	if !ok {
		return edx.Block{}, edx.ErrCourseNotFound
	}
	return root, nil
}

func (p *Provider) Enroll(userID int, courseKey string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enrollments[enrollmentKey{userID, courseKey}] = true
	return nil
}

func (p *Provider) Unenroll(userID int, courseKey string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enrollments[enrollmentKey{userID, courseKey}] = false
	return nil
}

// Enrolled reports whether the user is currently enrolled in the course.
func (p *Provider) Enrolled(userID int, courseKey string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enrollments[enrollmentKey{userID, courseKey}]
}

func (p *Provider) CourseGrade(userID int, courseKey string) (edx.CourseGrade, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.grades[enrollmentKey{userID, courseKey}], nil
}
