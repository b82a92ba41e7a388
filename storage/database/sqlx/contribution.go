package sqlxrepos

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/ptahub/core/contribution"
)

type contributionRepository struct {
	db *sqlx.DB
}

var _ contribution.Repository = (*contributionRepository)(nil) // interface compliance check

func NewContributionRepository(db *sqlx.DB) contribution.Repository {
	return &contributionRepository{db: db}
}

type contributionRow struct {
	ID              string      `db:"id"`
	ParentID        string      `db:"parent_id"`
	ProjectID       null.String `db:"project_id"`
	Amount          float64     `db:"amount"`
	Type            string      `db:"type"`
	Date            time.Time   `db:"date"`
	Status          string      `db:"status"`
	ReceiptNumber   null.String `db:"receipt_number"`
	VerifiedAt      null.Time   `db:"verified_at"`
	RejectionReason null.String `db:"rejection_reason"`
	CreatedAt       time.Time   `db:"created_at"`
}

func (r contributionRow) toDomain() contribution.Contribution {
	return contribution.Contribution{
		ID:              r.ID,
		ParentID:        r.ParentID,
		ProjectID:       r.ProjectID,
		Amount:          r.Amount,
		Type:            contribution.Type(r.Type),
		Date:            r.Date,
		Status:          contribution.Status(r.Status),
		ReceiptNumber:   r.ReceiptNumber,
		VerifiedAt:      r.VerifiedAt,
		RejectionReason: r.RejectionReason,
		CreatedAt:       r.CreatedAt,
	}
}

func newContributionRow(c contribution.Contribution) contributionRow {
	return contributionRow{
		ID:              c.ID,
		ParentID:        c.ParentID,
		ProjectID:       c.ProjectID,
		Amount:          c.Amount,
		Type:            string(c.Type),
		Date:            c.Date,
		Status:          string(c.Status),
		ReceiptNumber:   c.ReceiptNumber,
		VerifiedAt:      c.VerifiedAt,
		RejectionReason: c.RejectionReason,
		CreatedAt:       c.CreatedAt,
	}
}

const contributionColumns = `id, parent_id, project_id, amount, type, date, status,
receipt_number, verified_at, rejection_reason, created_at`

func (repo *contributionRepository) CreateContribution(c contribution.Contribution) (contribution.Contribution, error) {
	c.ID = uuid.New().String()
	_, err := repo.db.NamedExec(
		`INSERT INTO contribution (`+contributionColumns+`)
		 VALUES (:id, :parent_id, :project_id, :amount, :type, :date, :status,
		         :receipt_number, :verified_at, :rejection_reason, :created_at)`,
		newContributionRow(c),
	)
	if err != nil {
		return contribution.Contribution{}, errors.Wrap(err, "creating contribution")
	}
	return c, nil
}

func (repo *contributionRepository) GetContributionByID(id string) (contribution.Contribution, error) {
	var row contributionRow
	if err := repo.db.Get(&row, `SELECT `+contributionColumns+` FROM contribution WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return contribution.Contribution{}, contribution.ErrNotFound
		}
		return contribution.Contribution{}, errors.Wrap(err, "getting contribution")
	}
	return row.toDomain(), nil
}

func (repo *contributionRepository) QueryAllContributions() ([]contribution.Contribution, error) {
	return repo.selectContributions(`SELECT ` + contributionColumns + ` FROM contribution ORDER BY date`)
}

func (repo *contributionRepository) QueryContributionsByParent(parentID string) ([]contribution.Contribution, error) {
	return repo.selectContributions(
		`SELECT `+contributionColumns+` FROM contribution WHERE parent_id = $1 ORDER BY date`, parentID)
}

func (repo *contributionRepository) selectContributions(query string, args ...interface{}) ([]contribution.Contribution, error) {
	var rows []contributionRow
	if err := repo.db.Select(&rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying contributions")
	}
	contribs := make([]contribution.Contribution, 0, len(rows))
	for _, row := range rows {
		contribs = append(contribs, row.toDomain())
	}
	return contribs, nil
}

func (repo *contributionRepository) UpdateContribution(c contribution.Contribution) (contribution.Contribution, error) {
	res, err := repo.db.NamedExec(
		`UPDATE contribution
		 SET project_id = :project_id, amount = :amount, type = :type, date = :date,
		     status = :status, receipt_number = :receipt_number, verified_at = :verified_at,
		     rejection_reason = :rejection_reason
		 WHERE id = :id`,
		newContributionRow(c),
	)
	if err != nil {
		return contribution.Contribution{}, errors.Wrap(err, "updating contribution")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return contribution.Contribution{}, contribution.ErrNotFound
	}
	return c, nil
}

func (repo *contributionRepository) DeleteContributionsByID(ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	q, args, err := sqlx.In(`DELETE FROM contribution WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	if _, err = repo.db.Exec(repo.db.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "deleting contributions")
	}
	return nil
}
