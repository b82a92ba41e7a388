package dummydb

import (
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/ptahub/core/contribution"
)

type contributionRepository struct {
	db *contributionTable
}

var _ contribution.Repository = (*contributionRepository)(nil) // interface compliance check

func NewContributionRepository(db *DB) contribution.Repository {
	return &contributionRepository{db: db.contribution}
}

func (repo *contributionRepository) query() []contribution.Contribution {
	contribs := make([]contribution.Contribution, 0, len(repo.db.table))
	for _, c := range repo.db.table {
		contribs = append(contribs, *c)
	}
	sort.Slice(contribs, func(i, j int) bool { return contribs[i].Date.Before(contribs[j].Date) })
	return contribs
}

func (repo *contributionRepository) CreateContribution(c contribution.Contribution) (contribution.Contribution, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	c.ID = uuid.New().String()
	repo.db.table[c.ID] = &c
	return c, nil
}

func (repo *contributionRepository) GetContributionByID(id string) (contribution.Contribution, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if c, ok := repo.db.table[id]; ok {
		return *c, nil
	}
	return contribution.Contribution{}, contribution.ErrNotFound
}

func (repo *contributionRepository) QueryAllContributions() ([]contribution.Contribution, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.query(), nil
}

func (repo *contributionRepository) QueryContributionsByParent(parentID string) ([]contribution.Contribution, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var contribs []contribution.Contribution
	for _, c := range repo.query() {
		if c.ParentID == parentID {
			contribs = append(contribs, c)
		}
	}
	return contribs, nil
}

func (repo *contributionRepository) UpdateContribution(c contribution.Contribution) (contribution.Contribution, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[c.ID]; !ok {
		return contribution.Contribution{}, contribution.ErrNotFound
	}
	repo.db.table[c.ID] = &c
	return c, nil
}

func (repo *contributionRepository) DeleteContributionsByID(ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	for _, id := range ids {
		delete(repo.db.table, id)
	}
	return nil
}
