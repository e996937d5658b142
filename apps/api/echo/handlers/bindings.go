package handlers

import "github.com/ExtensionEngineArchive/ed2go-edx-platform/core"

type CourseSessionRequest struct {
	User     string `json:"user" form:"user" validate:"required"`
	CourseID string `json:"course_id" form:"course_id" validate:"required"`
}

func (r *CourseSessionRequest) Validate() error {
	return core.Validate.Struct(r)
}

type ContentViewedRequest struct {
	User     string `json:"user" form:"user" validate:"required"`
	CourseID string `json:"course_id" form:"course_id" validate:"required"`
	UsageID  string `json:"usage_id" form:"usage_id" validate:"required"`
}

func (r *ContentViewedRequest) Validate() error {
	return core.Validate.Struct(r)
}

type CourseProgressRequest struct {
	User     string `json:"user" form:"user" validate:"required"`
	CourseID string `json:"course_id" form:"course_id" validate:"required"`
	UsageID  string `json:"usage_id" form:"usage_id" validate:"required"`
}

func (r *CourseProgressRequest) Validate() error {
	return core.Validate.Struct(r)
}

type LogoutRequest struct {
	User string `json:"user" form:"user" validate:"required"`
}

func (r *LogoutRequest) Validate() error {
	return core.Validate.Struct(r)
}
