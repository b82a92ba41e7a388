package echoapi

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/ptahub/core"
	"github.com/trezcool/ptahub/core/application"
	"github.com/trezcool/ptahub/core/user"
)

type applicationApi struct {
	svc      application.Service
	usrSvc   user.Service
	validate *validator.Validate
}

func registerApplicationAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc application.Service,
	usrSvc user.Service,
	validate *validator.Validate,
) {
	api := applicationApi{svc: svc, usrSvc: usrSvc, validate: validate}

	ag := g.Group("/applications", jwt)

	ag.POST("", api.create)
	ag.GET("", api.query, hrMiddleware())
	ag.GET("/stats", api.stats, hrMiddleware())
	ag.GET("/my-applications", api.queryMine)
	ag.GET("/my-active-application", api.retrieveMyActive)

	dg := ag.Group("/:id")
	dg.GET("", api.retrieve)
	dg.POST("/documents", api.attachDocument)
	dg.GET("/documents/:name", api.downloadDocument)
	dg.POST("/submit", api.submit)
	dg.POST("/approve", api.approve, hrMiddleware())
	dg.POST("/reject", api.reject, hrMiddleware())
	dg.POST("/demo-schedule", api.scheduleDemo, hrMiddleware())
	dg.POST("/score", api.score, hrMiddleware())
}

// getOwnedApplication loads the application and enforces visibility: reviewers
// see everything, applicants only their own.
func (api *applicationApi) getOwnedApplication(ctx echo.Context) (application.Application, Claims, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return application.Application{}, Claims{}, err
	}
	app, err := api.svc.GetByID(ctx.Param("id"))
	if err != nil {
		return application.Application{}, Claims{}, err
	}
	if !(claims.IsAdmin || claims.IsHR) && app.ApplicantID != claims.Subject {
		return application.Application{}, Claims{}, errHttpNotFound
	}
	return app, claims, nil
}

// Handlers

func (api *applicationApi) create(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	data := application.NewApplication{
		Program:               ctx.FormValue("program"),
		SubjectSpecialization: ctx.FormValue("subject_specialization"),
	}
	if data.Program == "" && data.SubjectSpecialization == "" {
		// JSON body
		if err := ctx.Bind(&data); err != nil {
			return errors.Wrap(err, "binding to NewApplication")
		}
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	uploads, err := api.formUploads(ctx)
	if err != nil {
		return err
	}
	defer closeUploads(uploads)

	app, err := api.svc.Create(claims.Subject, data, toDocumentUploads(uploads)...)
	if err != nil {
		return errors.Wrap(err, "creating application")
	}
	return ctx.JSON(http.StatusCreated, app)
}

func (api *applicationApi) query(ctx echo.Context) error {
	filter := new(application.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []application.Application{})
	}
	filter.Clean()

	var apps []application.Application
	var err error
	if filter.IsEmpty() {
		apps, err = api.svc.QueryAll()
	} else {
		apps, err = api.svc.Filter(*filter)
	}
	if err != nil {
		return errors.Wrap(err, "querying applications")
	}
	if apps == nil {
		apps = []application.Application{}
	}
	return ctx.JSON(http.StatusOK, apps)
}

func (api *applicationApi) queryMine(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	apps, err := api.svc.QueryByApplicant(claims.Subject)
	if err != nil {
		return errors.Wrap(err, "querying applicant applications")
	}
	if apps == nil {
		apps = []application.Application{}
	}
	return ctx.JSON(http.StatusOK, apps)
}

func (api *applicationApi) retrieveMyActive(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	app, err := api.svc.GetActiveByApplicant(claims.Subject)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, app)
}

func (api *applicationApi) stats(ctx echo.Context) error {
	stats, err := api.svc.Stats()
	if err != nil {
		return errors.Wrap(err, "computing stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *applicationApi) retrieve(ctx echo.Context) error {
	app, _, err := api.getOwnedApplication(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ApplicationDetailResponse{
		Application:        app,
		ProgressPercentage: application.ProgressPercentage(app),
	})
}

func (api *applicationApi) attachDocument(ctx echo.Context) error {
	app, _, err := api.getOwnedApplication(ctx)
	if err != nil {
		return err
	}

	uploads, err := api.formUploads(ctx)
	if err != nil {
		return err
	}
	defer closeUploads(uploads)
	if len(uploads) == 0 {
		return core.NewValidationError(errors.New("no document provided"))
	}

	for _, up := range toDocumentUploads(uploads) {
		if app, err = api.svc.AttachDocument(app.ID, up); err != nil {
			return errors.Wrap(err, "attaching document")
		}
	}
	return ctx.JSON(http.StatusOK, app)
}

func (api *applicationApi) downloadDocument(ctx echo.Context) error {
	app, _, err := api.getOwnedApplication(ctx)
	if err != nil {
		return err
	}

	rc, doc, err := api.svc.OpenDocument(app.ID, ctx.Param("name"))
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+doc.Name+`"`)
	return ctx.Stream(http.StatusOK, echo.MIMEOctetStream, rc)
}

func (api *applicationApi) submit(ctx echo.Context) error {
	app, claims, err := api.getOwnedApplication(ctx)
	if err != nil {
		return err
	}
	app, err = api.svc.Submit(app.ID, claims.Actor(), getIdempotencyKey(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, app)
}

func (api *applicationApi) approve(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var data application.TransitionPayload
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to TransitionPayload")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	app, err := api.svc.Approve(ctx.Param("id"), claims.Actor(), data.HRNotes, getIdempotencyKey(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, app)
}

func (api *applicationApi) reject(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var data application.TransitionPayload
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to TransitionPayload")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	app, err := api.svc.Reject(ctx.Param("id"), claims.Actor(), data.Reason, data.HRNotes, getIdempotencyKey(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, app)
}

func (api *applicationApi) scheduleDemo(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var data application.DemoSchedule
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to DemoSchedule")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	app, err := api.svc.ScheduleDemo(ctx.Param("id"), claims.Actor(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, app)
}

func (api *applicationApi) score(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var data application.TransitionPayload
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to TransitionPayload")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	app, err := api.svc.Score(ctx.Param("id"), claims.Actor(), data.Scores, data.Feedback, getIdempotencyKey(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, app)
}

// Multipart helpers

type formUpload struct {
	file     io.Closer
	contents application.DocumentUpload
}

// formUploads reads one file per known document type from the multipart form;
// the form field name is the document type.
func (api *applicationApi) formUploads(ctx echo.Context) ([]formUpload, error) {
	contentType := ctx.Request().Header.Get(echo.HeaderContentType)
	if !strings.HasPrefix(contentType, echo.MIMEMultipartForm) {
		return nil, nil
	}

	docTypes := []string{
		application.DocTypeResume,
		application.DocTypeLetter,
		application.DocTypeDiploma,
		application.DocTypeTranscript,
	}
	var uploads []formUpload
	for _, docType := range docTypes {
		fh, err := ctx.FormFile(docType)
		if err != nil {
			continue // field absent
		}
		f, err := fh.Open()
		if err != nil {
			closeUploads(uploads)
			return nil, errors.Wrap(err, "opening uploaded file")
		}
		uploads = append(uploads, formUpload{
			file: f,
			contents: application.DocumentUpload{
				Name:    fh.Filename,
				Type:    docType,
				Content: f,
			},
		})
	}
	return uploads, nil
}

func toDocumentUploads(uploads []formUpload) []application.DocumentUpload {
	docs := make([]application.DocumentUpload, 0, len(uploads))
	for _, up := range uploads {
		docs = append(docs, up.contents)
	}
	return docs
}

func closeUploads(uploads []formUpload) {
	for _, up := range uploads {
		_ = up.file.Close()
	}
}

type ApplicationDetailResponse struct {
	application.Application
	ProgressPercentage float64 `json:"progress_percentage"`
}
