package headline

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/academia/lms/core"
)

// Headline is a short announcement shown on dashboards.
type Headline struct {
	ID          int       `json:"id"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	DateCreated time.Time `json:"date_created"` // UTC
	DateUpdated time.Time `json:"date_updated"` // UTC
}

type NewHeadline struct {
	Title string `json:"title" validate:"required,notblank,max=255"`
	URL   string `json:"url" validate:"required,url,max=2048"`
}

func (nh *NewHeadline) Validate(validate *validator.Validate) error {
	nh.Title = core.CleanString(nh.Title)
	nh.URL = core.CleanString(nh.URL)
	return validate.Struct(nh)
}

type UpdateHeadline struct {
	Title *string `json:"title" validate:"omitempty,notblank,max=255"`
	URL   *string `json:"url" validate:"omitempty,url,max=2048"`
}

func (uh *UpdateHeadline) Validate(validate *validator.Validate) error {
	if uh.Title != nil {
		*uh.Title = core.CleanString(*uh.Title)
	}
	if uh.URL != nil {
		*uh.URL = core.CleanString(*uh.URL)
	}
	return validate.Struct(uh)
}
