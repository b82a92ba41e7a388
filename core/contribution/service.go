package contribution

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/ptahub/core"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound   = errors.New("contribution not found")
	ErrNotPending = errors.New("only pending contributions can be modified")
)

type (
	Repository interface {
		CreateContribution(c Contribution) (Contribution, error)
		GetContributionByID(id string) (Contribution, error)
		QueryAllContributions() ([]Contribution, error)
		QueryContributionsByParent(parentID string) ([]Contribution, error)
		UpdateContribution(c Contribution) (Contribution, error)
		DeleteContributionsByID(ids ...string) error
	}

	Service interface {
		Create(parentID string, nc NewContribution) (Contribution, error)
		Update(id string, uc UpdateContribution) (Contribution, error)
		Delete(id string) error
		Verify(id string) (Contribution, error)
		Reject(id, reason string) (Contribution, error)
		GetByID(id string) (Contribution, error)
		QueryAll() ([]Contribution, error)
		QueryByParent(parentID string) ([]Contribution, error)
		BalanceOf(parentID string) (Balance, error)
		Summary() (Summary, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) Create(parentID string, nc NewContribution) (Contribution, error) {
	c := Contribution{
		ParentID:  parentID,
		Amount:    nc.Amount,
		Type:      nc.Type,
		Date:      nc.Date,
		Status:    StatusPending,
		CreatedAt: NowFunc().UTC(),
	}
	if nc.ProjectID != "" {
		c.ProjectID.SetValid(nc.ProjectID)
	}
	return svc.repo.CreateContribution(c)
}

func (svc *service) Update(id string, uc UpdateContribution) (Contribution, error) {
	c, err := svc.repo.GetContributionByID(id)
	if err != nil {
		return Contribution{}, err
	}
	if c.Status != StatusPending {
		return Contribution{}, core.NewValidationError(ErrNotPending)
	}
	if uc.ProjectID != "" {
		c.ProjectID.SetValid(uc.ProjectID)
	}
	if uc.Amount > 0 {
		c.Amount = uc.Amount
	}
	if uc.Type != "" {
		c.Type = uc.Type
	}
	if !uc.Date.IsZero() {
		c.Date = uc.Date
	}
	return svc.repo.UpdateContribution(c)
}

func (svc *service) Delete(id string) error {
	c, err := svc.repo.GetContributionByID(id)
	if err != nil {
		return err
	}
	if c.Status != StatusPending {
		return core.NewValidationError(ErrNotPending)
	}
	return svc.repo.DeleteContributionsByID(id)
}

func (svc *service) Verify(id string) (Contribution, error) {
	c, err := svc.repo.GetContributionByID(id)
	if err != nil {
		return Contribution{}, err
	}
	if c, err = Verify(c, newReceiptNumber(), NowFunc()); err != nil {
		return Contribution{}, err
	}
	return svc.repo.UpdateContribution(c)
}

func (svc *service) Reject(id, reason string) (Contribution, error) {
	c, err := svc.repo.GetContributionByID(id)
	if err != nil {
		return Contribution{}, err
	}
	if c, err = Reject(c, reason, NowFunc()); err != nil {
		return Contribution{}, err
	}
	return svc.repo.UpdateContribution(c)
}

func (svc *service) GetByID(id string) (Contribution, error) {
	return svc.repo.GetContributionByID(id)
}

func (svc *service) QueryAll() ([]Contribution, error) {
	return svc.repo.QueryAllContributions()
}

func (svc *service) QueryByParent(parentID string) ([]Contribution, error) {
	return svc.repo.QueryContributionsByParent(parentID)
}

func (svc *service) BalanceOf(parentID string) (Balance, error) {
	contribs, err := svc.repo.QueryContributionsByParent(parentID)
	if err != nil {
		return Balance{}, err
	}
	return BalanceOf(parentID, contribs), nil
}

func (svc *service) Summary() (Summary, error) {
	contribs, err := svc.repo.QueryAllContributions()
	if err != nil {
		return Summary{}, err
	}
	return ComputeSummary(contribs), nil
}

// newReceiptNumber derives a short printable receipt number.
func newReceiptNumber() string {
	return "RC-" + strings.ToUpper(uuid.New().String()[:8])
}
