package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/ptahub/core"
	"github.com/trezcool/ptahub/core/contribution"
	"github.com/trezcool/ptahub/core/user"
)

type contributionApi struct {
	svc      contribution.Service
	usrSvc   user.Service
	validate *validator.Validate
}

func registerContributionAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc contribution.Service,
	usrSvc user.Service,
	validate *validator.Validate,
) {
	api := contributionApi{svc: svc, usrSvc: usrSvc, validate: validate}

	cg := g.Group("/contributions", jwt)

	cg.POST("", api.create, parentMiddleware())
	cg.GET("", api.query, hrMiddleware())
	cg.GET("/summary", api.summary, hrMiddleware())
	cg.GET("/my-contributions", api.queryMine, parentMiddleware())
	cg.GET("/my-balance", api.myBalance, parentMiddleware())

	dg := cg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
	dg.POST("/verify", api.verify, hrMiddleware())
	dg.POST("/reject", api.reject, hrMiddleware())
}

// getOwnedContribution loads the contribution and enforces visibility:
// reviewers see everything, parents only their own.
func (api *contributionApi) getOwnedContribution(ctx echo.Context) (contribution.Contribution, Claims, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return contribution.Contribution{}, Claims{}, err
	}
	c, err := api.svc.GetByID(ctx.Param("id"))
	if err != nil {
		return contribution.Contribution{}, Claims{}, err
	}
	if !(claims.IsAdmin || claims.IsHR) && c.ParentID != claims.Subject {
		return contribution.Contribution{}, Claims{}, errHttpNotFound
	}
	return c, claims, nil
}

// Handlers

func (api *contributionApi) create(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var data contribution.NewContribution
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewContribution")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.svc.Create(claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "creating contribution")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *contributionApi) query(ctx echo.Context) error {
	contribs, err := api.svc.QueryAll()
	if err != nil {
		return errors.Wrap(err, "querying contributions")
	}
	if contribs == nil {
		contribs = []contribution.Contribution{}
	}
	return ctx.JSON(http.StatusOK, contribs)
}

func (api *contributionApi) queryMine(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	contribs, err := api.svc.QueryByParent(claims.Subject)
	if err != nil {
		return errors.Wrap(err, "querying contributions")
	}
	if contribs == nil {
		contribs = []contribution.Contribution{}
	}
	return ctx.JSON(http.StatusOK, contribs)
}

func (api *contributionApi) myBalance(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	bal, err := api.svc.BalanceOf(claims.Subject)
	if err != nil {
		return errors.Wrap(err, "computing balance")
	}
	return ctx.JSON(http.StatusOK, bal)
}

func (api *contributionApi) summary(ctx echo.Context) error {
	summary, err := api.svc.Summary()
	if err != nil {
		return errors.Wrap(err, "computing summary")
	}
	return ctx.JSON(http.StatusOK, summary)
}

func (api *contributionApi) retrieve(ctx echo.Context) error {
	c, _, err := api.getOwnedContribution(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *contributionApi) update(ctx echo.Context) error {
	c, _, err := api.getOwnedContribution(ctx)
	if err != nil {
		return err
	}

	var data contribution.UpdateContribution
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateContribution")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	c, err = api.svc.Update(c.ID, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *contributionApi) destroy(ctx echo.Context) error {
	c, _, err := api.getOwnedContribution(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.Delete(c.ID); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *contributionApi) verify(ctx echo.Context) error {
	c, err := api.svc.Verify(ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *contributionApi) reject(ctx echo.Context) error {
	var data RejectContributionRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RejectContributionRequest")
	}
	data.Reason = core.CleanString(data.Reason)

	c, err := api.svc.Reject(ctx.Param("id"), data.Reason)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, c)
}

type RejectContributionRequest struct {
	Reason string `json:"reason"`
}
