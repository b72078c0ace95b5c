package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/academia/lms/core"
	"github.com/academia/lms/core/headline"
)

type headlineRepository struct {
	repository
}

var _ headline.Repository = (*headlineRepository)(nil) // interface compliance check

func NewHeadlineRepository(exec core.DBExecutor) *headlineRepository {
	return &headlineRepository{repository{exec: exec}}
}

type headlineRow struct {
	ID          int       `db:"id"`
	Title       string    `db:"title"`
	URL         string    `db:"url"`
	DateCreated time.Time `db:"date_created"`
	DateUpdated time.Time `db:"date_updated"`
}

func (r headlineRow) headline() headline.Headline {
	return headline.Headline{
		ID:          r.ID,
		Title:       r.Title,
		URL:         r.URL,
		DateCreated: r.DateCreated.UTC(),
		DateUpdated: r.DateUpdated.UTC(),
	}
}

const selectHeadlines = "SELECT id, title, url, date_created, date_updated FROM headlines"

func (repo headlineRepository) CreateHeadline(ctx context.Context, hl headline.Headline, exec ...core.DBExecutor) (headline.Headline, error) {
	q := "INSERT INTO headlines (title, url, date_created, date_updated) VALUES (?, ?, ?, ?) RETURNING id"
	if err := get(ctx, repo.getExec(exec), &hl.ID, q, hl.Title, hl.URL, hl.DateCreated.UTC(), hl.DateUpdated.UTC()); err != nil {
		return headline.Headline{}, errors.Wrap(err, "inserting headline")
	}
	return hl, nil
}

func (repo headlineRepository) GetHeadline(ctx context.Context, id int, exec ...core.DBExecutor) (headline.Headline, error) {
	var row headlineRow
	if err := get(ctx, repo.getExec(exec), &row, selectHeadlines+" WHERE id = ?", id); err != nil {
		return headline.Headline{}, trapNoRowsErr(err, headline.ErrNotFound, "finding headline")
	}
	return row.headline(), nil
}

func (repo headlineRepository) QueryHeadlines(ctx context.Context, exec ...core.DBExecutor) ([]headline.Headline, error) {
	var rows []headlineRow
	if err := sel(ctx, repo.getExec(exec), &rows, selectHeadlines+" ORDER BY date_created DESC, id DESC"); err != nil {
		return nil, errors.Wrap(err, "querying headlines")
	}
	headlines := make([]headline.Headline, 0, len(rows))
	for _, r := range rows {
		headlines = append(headlines, r.headline())
	}
	return headlines, nil
}

func (repo headlineRepository) UpdateHeadline(ctx context.Context, hl headline.Headline, exec ...core.DBExecutor) (headline.Headline, error) {
	res, err := execute(ctx, repo.getExec(exec), "UPDATE headlines SET title = ?, url = ?, date_updated = ? WHERE id = ?",
		hl.Title, hl.URL, hl.DateUpdated.UTC(), hl.ID)
	if err != nil {
		return headline.Headline{}, errors.Wrap(err, "updating headline")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return headline.Headline{}, headline.ErrNotFound
	}
	return hl, nil
}

func (repo headlineRepository) DeleteHeadline(ctx context.Context, id int, exec ...core.DBExecutor) error {
	return deleteByID(ctx, repo.getExec(exec), "headlines", id, headline.ErrNotFound)
}
