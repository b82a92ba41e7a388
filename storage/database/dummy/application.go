package dummydb

import (
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/ptahub/core/application"
)

type applicationRepository struct {
	db *applicationTable
}

var _ application.Repository = (*applicationRepository)(nil) // interface compliance check

func NewApplicationRepository(db *DB) application.Repository {
	return &applicationRepository{db: db.application}
}

func (repo *applicationRepository) query() []application.Application {
	apps := make([]application.Application, 0, len(repo.db.table))
	for _, app := range repo.db.table {
		apps = append(apps, *app)
	}
	sort.Slice(apps, func(i, j int) bool { return apps[i].CreatedAt.Before(apps[j].CreatedAt) })
	return apps
}

func (repo *applicationRepository) CreateApplication(app application.Application) (application.Application, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	app.ID = uuid.New().String()
	repo.db.table[app.ID] = &app
	return app, nil
}

func (repo *applicationRepository) GetApplicationByID(id string) (application.Application, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if app, ok := repo.db.table[id]; ok {
		return *app, nil
	}
	return application.Application{}, application.ErrNotFound
}

func (repo *applicationRepository) QueryAllApplications() ([]application.Application, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.query(), nil
}

func (repo *applicationRepository) QueryApplicationsByApplicant(applicantID string) ([]application.Application, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var apps []application.Application
	for _, app := range repo.query() {
		if app.ApplicantID == applicantID {
			apps = append(apps, app)
		}
	}
	sort.Slice(apps, func(i, j int) bool { return apps[i].AttemptNumber < apps[j].AttemptNumber })
	return apps, nil
}

func (repo *applicationRepository) FilterApplications(filter application.QueryFilter) ([]application.Application, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	apps := repo.query()

	if filter.Status != "" {
		var filtered []application.Application
		for _, app := range apps {
			if app.Status == filter.Status {
				filtered = append(filtered, app)
			}
		}
		apps = filtered
	}
	if apps != nil && filter.Program != "" {
		var filtered []application.Application
		for _, app := range apps {
			if app.Program == filter.Program {
				filtered = append(filtered, app)
			}
		}
		apps = filtered
	}
	if apps != nil && filter.ApplicantID != "" {
		var filtered []application.Application
		for _, app := range apps {
			if app.ApplicantID == filter.ApplicantID {
				filtered = append(filtered, app)
			}
		}
		apps = filtered
	}
	if apps != nil && filter.Search != "" {
		kw := strings.ToLower(filter.Search)
		var filtered []application.Application
		for _, app := range apps {
			if strings.Contains(strings.ToLower(app.Program), kw) ||
				strings.Contains(strings.ToLower(app.SubjectSpecialization), kw) {
				filtered = append(filtered, app)
			}
		}
		apps = filtered
	}

	return apps, nil
}

func (repo *applicationRepository) UpdateApplication(app application.Application) (application.Application, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[app.ID]; !ok {
		return application.Application{}, application.ErrNotFound
	}
	repo.db.table[app.ID] = &app
	return app, nil
}

func (repo *applicationRepository) DeleteApplicationsByID(ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	for _, id := range ids {
		delete(repo.db.table, id)
	}
	return nil
}
