// Package edxsvc implements the host-LMS collaborator interfaces against the
// platform's internal REST APIs.
package edxsvc

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/ExtensionEngineArchive/ed2go-edx-platform/core"
	"github.com/ExtensionEngineArchive/ed2go-edx-platform/core/edx"
)

type Client struct {
	conf *core.Config
	rest *resty.Client
}

var (
	_ edx.StructureProvider = (*Client)(nil)
	_ edx.Enrollments       = (*Client)(nil)
	_ edx.Gradebook         = (*Client)(nil)
)

func NewClient(conf *core.Config) *Client {
	rest := resty.New().
		SetBaseURL(conf.LMS.BaseURL).
		SetAuthToken(conf.LMS.APIToken).
		SetTimeout(15 * time.Second)
	return &Client{conf: conf, rest: rest}
}

// CourseBlocks fetches the course's content tree root from the course
// structure API.
func (c *Client) CourseBlocks(courseKey string) (edx.Block, error) {
	var root edx.Block
	resp, err := c.rest.R().
		SetResult(&root).
		SetPathParam("courseKey", courseKey).
		Get("/api/courses/v1/blocks/{courseKey}")
	if err != nil {
		return edx.Block{}, errors.Wrap(err, "edx: fetching course blocks")
	}
	if resp.StatusCode() == http.StatusNotFound {
		return edx.Block{}, edx.ErrCourseNotFound
	}
	if resp.StatusCode() != http.StatusOK {
		return edx.Block{}, errors.Errorf("edx: course blocks returned status %d", resp.StatusCode())
	}
	return root, nil
}

func (c *Client) Enroll(userID int, courseKey string) error {
	return c.postEnrollment(userID, courseKey, "enroll")
}

func (c *Client) Unenroll(userID int, courseKey string) error {
	return c.postEnrollment(userID, courseKey, "unenroll")
}

func (c *Client) postEnrollment(userID int, courseKey, op string) error {
	resp, err := c.rest.R().
		SetBody(map[string]interface{}{"user_id": userID, "course_key": courseKey}).
		Post(fmt.Sprintf("/api/enrollment/v1/%s", op))
	if err != nil {
		return errors.Wrapf(err, "edx: %s request", op)
	}
	if resp.StatusCode() != http.StatusOK {
		return errors.Errorf("edx: %s returned status %d", op, resp.StatusCode())
	}
	return nil
}

// CourseGrade reads the user's grade from the persistent gradebook API.
func (c *Client) CourseGrade(userID int, courseKey string) (edx.CourseGrade, error) {
	var grade edx.CourseGrade
	resp, err := c.rest.R().
		SetResult(&grade).
		SetPathParam("courseKey", courseKey).
		SetQueryParam("user_id", fmt.Sprintf("%d", userID)).
		Get("/api/grades/v1/courses/{courseKey}")
	if err != nil {
		return edx.CourseGrade{}, errors.Wrap(err, "edx: fetching course grade")
	}
	if resp.StatusCode() != http.StatusOK {
		return edx.CourseGrade{}, errors.Errorf("edx: course grade returned status %d", resp.StatusCode())
	}
	return grade, nil
}
