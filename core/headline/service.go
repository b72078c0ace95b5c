package headline

import (
	"context"
	"time"

	"github.com/academia/lms/core"
)

var ErrNotFound = core.NewNotFoundError("headline not found")

type (
	Repository interface {
		CreateHeadline(ctx context.Context, hl Headline, exec ...core.DBExecutor) (Headline, error)
		GetHeadline(ctx context.Context, id int, exec ...core.DBExecutor) (Headline, error)
		// QueryHeadlines returns headlines newest first.
		QueryHeadlines(ctx context.Context, exec ...core.DBExecutor) ([]Headline, error)
		UpdateHeadline(ctx context.Context, hl Headline, exec ...core.DBExecutor) (Headline, error)
		DeleteHeadline(ctx context.Context, id int, exec ...core.DBExecutor) error
	}

	Service interface {
		Create(ctx context.Context, nh NewHeadline) (Headline, error)
		GetByID(ctx context.Context, id int) (Headline, error)
		Query(ctx context.Context) ([]Headline, error)
		Update(ctx context.Context, hl Headline, uh UpdateHeadline) (Headline, error)
		Delete(ctx context.Context, hl Headline) error
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) Create(ctx context.Context, nh NewHeadline) (Headline, error) {
	now := time.Now().UTC()
	return svc.repo.CreateHeadline(ctx, Headline{
		Title:       nh.Title,
		URL:         nh.URL,
		DateCreated: now,
		DateUpdated: now,
	})
}

func (svc *service) GetByID(ctx context.Context, id int) (Headline, error) {
	return svc.repo.GetHeadline(ctx, id)
}

func (svc *service) Query(ctx context.Context) ([]Headline, error) {
	return svc.repo.QueryHeadlines(ctx)
}

func (svc *service) Update(ctx context.Context, hl Headline, uh UpdateHeadline) (Headline, error) {
	if uh.Title != nil {
		hl.Title = *uh.Title
	}
	if uh.URL != nil {
		hl.URL = *uh.URL
	}
	hl.DateUpdated = time.Now().UTC()
	return svc.repo.UpdateHeadline(ctx, hl)
}

func (svc *service) Delete(ctx context.Context, hl Headline) error {
	return svc.repo.DeleteHeadline(ctx, hl.ID)
}
