package contribution

import (
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ptahub/core"
)

type repoMock struct {
	contribs map[string]Contribution
	nextID   int
}

var _ Repository = (*repoMock)(nil)

func newRepoMock() *repoMock {
	return &repoMock{contribs: make(map[string]Contribution)}
}

func (r *repoMock) CreateContribution(c Contribution) (Contribution, error) {
	r.nextID++
	c.ID = strconv.Itoa(r.nextID)
	r.contribs[c.ID] = c
	return c, nil
}

func (r *repoMock) GetContributionByID(id string) (Contribution, error) {
	if c, ok := r.contribs[id]; ok {
		return c, nil
	}
	return Contribution{}, ErrNotFound
}

func (r *repoMock) QueryAllContributions() ([]Contribution, error) {
	all := make([]Contribution, 0, len(r.contribs))
	for _, c := range r.contribs {
		all = append(all, c)
	}
	return all, nil
}

func (r *repoMock) QueryContributionsByParent(parentID string) ([]Contribution, error) {
	var res []Contribution
	for _, c := range r.contribs {
		if c.ParentID == parentID {
			res = append(res, c)
		}
	}
	return res, nil
}

func (r *repoMock) UpdateContribution(c Contribution) (Contribution, error) {
	r.contribs[c.ID] = c
	return c, nil
}

func (r *repoMock) DeleteContributionsByID(ids ...string) error {
	for _, id := range ids {
		delete(r.contribs, id)
	}
	return nil
}

func newContrib() NewContribution {
	return NewContribution{Amount: 100, Type: TypeCash, Date: time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)}
}

func TestService_Create(t *testing.T) {
	svc := NewService(newRepoMock())

	c, err := svc.Create("p1", newContrib())
	require.NoError(t, err)
	assert.Equal(t, StatusPending, c.Status)
	assert.Equal(t, "p1", c.ParentID)
	assert.False(t, c.ProjectID.Valid) // general fund
	assert.False(t, c.ReceiptNumber.Valid)

	nc := newContrib()
	nc.ProjectID = "proj-1"
	c, err = svc.Create("p1", nc)
	require.NoError(t, err)
	assert.Equal(t, "proj-1", c.ProjectID.String)
}

func TestService_Update(t *testing.T) {
	svc := NewService(newRepoMock())
	c, err := svc.Create("p1", newContrib())
	require.NoError(t, err)

	c, err = svc.Update(c.ID, UpdateContribution{Amount: 250})
	require.NoError(t, err)
	assert.Equal(t, 250.0, c.Amount)
	assert.Equal(t, TypeCash, c.Type) // untouched

	t.Run("verified is immutable", func(t *testing.T) {
		c, err = svc.Verify(c.ID)
		require.NoError(t, err)

		_, err = svc.Update(c.ID, UpdateContribution{Amount: 10})
		var vErr *core.ValidationError
		require.True(t, errors.As(err, &vErr), "want ValidationError, got %v", err)
	})
}

func TestService_Delete(t *testing.T) {
	repo := newRepoMock()
	svc := NewService(repo)
	c, err := svc.Create("p1", newContrib())
	require.NoError(t, err)

	require.NoError(t, svc.Delete(c.ID))
	assert.Empty(t, repo.contribs)

	t.Run("verified cannot be deleted", func(t *testing.T) {
		c, err := svc.Create("p1", newContrib())
		require.NoError(t, err)
		_, err = svc.Verify(c.ID)
		require.NoError(t, err)

		delErr := svc.Delete(c.ID)
		var vErr *core.ValidationError
		require.True(t, errors.As(delErr, &vErr), "want ValidationError, got %v", delErr)
	})
}

func TestService_VerifyReject(t *testing.T) {
	svc := NewService(newRepoMock())
	c, err := svc.Create("p1", newContrib())
	require.NoError(t, err)

	c, err = svc.Verify(c.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusVerified, c.Status)
	assert.Regexp(t, `^RC-[0-9A-F-]{8}$`, c.ReceiptNumber.String)
	assert.True(t, c.VerifiedAt.Valid)

	t.Run("verify twice", func(t *testing.T) {
		_, err := svc.Verify(c.ID)
		var terminalErr *core.AlreadyTerminalError
		require.True(t, errors.As(err, &terminalErr), "want AlreadyTerminalError, got %v", err)
	})

	t.Run("reject", func(t *testing.T) {
		c, err := svc.Create("p2", newContrib())
		require.NoError(t, err)

		c, err = svc.Reject(c.ID, "amount mismatch")
		require.NoError(t, err)
		assert.Equal(t, StatusRejected, c.Status)
		assert.Equal(t, "amount mismatch", c.RejectionReason.String)
	})
}

func TestService_BalanceOf(t *testing.T) {
	svc := NewService(newRepoMock())

	c1, err := svc.Create("p1", newContrib())
	require.NoError(t, err)
	_, err = svc.Verify(c1.ID)
	require.NoError(t, err)

	nc := newContrib()
	nc.Amount = 40
	_, err = svc.Create("p1", nc)
	require.NoError(t, err)
	_, err = svc.Create("p2", newContrib())
	require.NoError(t, err)

	bal, err := svc.BalanceOf("p1")
	require.NoError(t, err)
	assert.Equal(t, Balance{ParentID: "p1", VerifiedTotal: 100, PendingCount: 1, PendingTotal: 40}, bal)
}
