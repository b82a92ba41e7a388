package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/ptahub/core/attendance"
	"github.com/trezcool/ptahub/core/user"
)

type attendanceApi struct {
	svc      attendance.Service
	usrSvc   user.Service
	validate *validator.Validate
}

func registerAttendanceAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc attendance.Service,
	usrSvc user.Service,
	validate *validator.Validate,
) {
	api := attendanceApi{svc: svc, usrSvc: usrSvc, validate: validate}

	mg := g.Group("/meetings", jwt)
	mg.GET("", api.queryMeetings)
	mg.POST("", api.createMeeting, adminMiddleware())

	mdg := mg.Group("/:id")
	mdg.GET("", api.retrieveMeeting)
	mdg.PUT("", api.updateMeeting, adminMiddleware())
	mdg.DELETE("", api.destroyMeeting, adminMiddleware())
	mdg.GET("/attendance", api.queryMeetingAttendance, hrMiddleware())
	mdg.POST("/attendance", api.recordAttendance, adminMiddleware())

	ag := g.Group("/attendance", jwt)
	ag.GET("/my-attendance", api.queryMyAttendance, parentMiddleware())
	ag.GET("/my-penalties", api.queryMyPenalties, parentMiddleware())
	ag.GET("/my-summary", api.mySummary, parentMiddleware())
}

// Handlers

func (api *attendanceApi) createMeeting(ctx echo.Context) error {
	var data attendance.NewMeeting
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMeeting")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	meeting, err := api.svc.CreateMeeting(data)
	if err != nil {
		return errors.Wrap(err, "creating meeting")
	}
	return ctx.JSON(http.StatusCreated, meeting)
}

func (api *attendanceApi) queryMeetings(ctx echo.Context) error {
	meetings, err := api.svc.QueryMeetings()
	if err != nil {
		return errors.Wrap(err, "querying meetings")
	}
	if meetings == nil {
		meetings = []attendance.Meeting{}
	}
	return ctx.JSON(http.StatusOK, meetings)
}

func (api *attendanceApi) retrieveMeeting(ctx echo.Context) error {
	meeting, err := api.svc.GetMeeting(ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, meeting)
}

func (api *attendanceApi) updateMeeting(ctx echo.Context) error {
	meeting, err := api.svc.GetMeeting(ctx.Param("id"))
	if err != nil {
		return err
	}

	var data attendance.UpdateMeeting
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateMeeting")
	}
	if err := data.Validate(api.validate, meeting); err != nil {
		return err
	}

	meeting, err = api.svc.UpdateMeeting(meeting.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating meeting")
	}
	return ctx.JSON(http.StatusOK, meeting)
}

func (api *attendanceApi) destroyMeeting(ctx echo.Context) error {
	if _, err := api.svc.GetMeeting(ctx.Param("id")); err != nil {
		return err
	}
	if err := api.svc.DeleteMeetings(ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting meeting")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *attendanceApi) recordAttendance(ctx echo.Context) error {
	var data attendance.BatchEntries
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to BatchEntries")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	records, err := api.svc.Record(ctx.Param("id"), data.Entries)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *attendanceApi) queryMeetingAttendance(ctx echo.Context) error {
	if _, err := api.svc.GetMeeting(ctx.Param("id")); err != nil {
		return err
	}
	records, err := api.svc.QueryByMeeting(ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying meeting attendance")
	}
	if records == nil {
		records = []attendance.Record{}
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *attendanceApi) queryMyAttendance(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	records, err := api.svc.QueryByParent(claims.Subject)
	if err != nil {
		return errors.Wrap(err, "querying attendance")
	}
	if records == nil {
		records = []attendance.Record{}
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *attendanceApi) queryMyPenalties(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	records, err := api.svc.QueryPenaltiesByParent(claims.Subject)
	if err != nil {
		return errors.Wrap(err, "querying penalties")
	}
	if records == nil {
		records = []attendance.Record{}
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *attendanceApi) mySummary(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	summary, err := api.svc.ParentSummary(claims.Subject)
	if err != nil {
		return errors.Wrap(err, "computing attendance summary")
	}
	return ctx.JSON(http.StatusOK, summary)
}
