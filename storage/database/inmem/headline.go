package inmemdb

import (
	"context"
	"sort"

	"github.com/academia/lms/core"
	"github.com/academia/lms/core/headline"
)

type headlineRepository struct {
	db *headlineTable
}

var _ headline.Repository = (*headlineRepository)(nil) // interface compliance check

// NewHeadlineRepository returns a headline.Repository over db. Executors are ignored.
func NewHeadlineRepository(db *DB) *headlineRepository {
	return &headlineRepository{db: db.headlines}
}

func (repo *headlineRepository) CreateHeadline(ctx context.Context, hl headline.Headline, _ ...core.DBExecutor) (headline.Headline, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.pk++
	hl.ID = repo.db.pk
	repo.db.table[hl.ID] = &hl
	return hl, nil
}

func (repo *headlineRepository) GetHeadline(ctx context.Context, id int, _ ...core.DBExecutor) (headline.Headline, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if hl, ok := repo.db.table[id]; ok {
		return *hl, nil
	}
	return headline.Headline{}, headline.ErrNotFound
}

func (repo *headlineRepository) QueryHeadlines(ctx context.Context, _ ...core.DBExecutor) ([]headline.Headline, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	headlines := make([]headline.Headline, 0, len(repo.db.table))
	for _, hl := range repo.db.table {
		headlines = append(headlines, *hl)
	}
	// newest first
	sort.Slice(headlines, func(i, j int) bool {
		a, b := headlines[i], headlines[j]
		if a.DateCreated.Equal(b.DateCreated) {
			return a.ID > b.ID
		}
		return a.DateCreated.After(b.DateCreated)
	})
	return headlines, nil
}

func (repo *headlineRepository) UpdateHeadline(ctx context.Context, hl headline.Headline, _ ...core.DBExecutor) (headline.Headline, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[hl.ID]; !ok {
		return headline.Headline{}, headline.ErrNotFound
	}
	repo.db.table[hl.ID] = &hl
	return hl, nil
}

func (repo *headlineRepository) DeleteHeadline(ctx context.Context, id int, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[id]; !ok {
		return headline.ErrNotFound
	}
	delete(repo.db.table, id)
	return nil
}
