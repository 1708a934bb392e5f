package application

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/jobboard-api/internal/handler"
	"github.com/jwalitptl/jobboard-api/internal/middleware"
	"github.com/jwalitptl/jobboard-api/internal/model"
	applicationService "github.com/jwalitptl/jobboard-api/internal/service/application"
	"github.com/jwalitptl/jobboard-api/pkg/auth"
	apperrors "github.com/jwalitptl/jobboard-api/pkg/errors"
)

type Servicer interface {
	Create(ctx context.Context, in applicationService.CreateInput) (*model.Application, error)
	Transition(ctx context.Context, id uuid.UUID, next model.ApplicationStatus, actor uuid.UUID) (*model.Application, error)
	Withdraw(ctx context.Context, id, candidate uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID, candidate *uuid.UUID) (*model.Application, error)
	ListForCandidate(ctx context.Context, candidate uuid.UUID, opts model.ListOptions) (*model.ApplicationPage, error)
	ListForJob(ctx context.Context, jobID uuid.UUID, opts model.ListOptions) (*model.ApplicationPage, error)
	CountByStatus(ctx context.Context, companyID uuid.UUID) (*model.StatusCounts, error)
	CountByJob(ctx context.Context, jobID uuid.UUID) (*model.StatusCounts, error)
}

type Handler struct {
	service Servicer
}

func NewHandler(service Servicer) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the application endpoints on r, which must already
// run authz.Authenticate.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, authz *middleware.AuthMiddleware) {
	candidate := authz.RequireRole(auth.RoleCandidate)
	staff := authz.RequireRole(auth.RoleEmployer, auth.RoleAdmin)

	applications := r.Group("/applications")
	{
		applications.POST("", candidate, h.CreateApplication)
		applications.GET("", candidate, h.ListMyApplications)
		applications.GET("/:id", h.GetApplication)
		applications.PATCH("/:id/status", staff, h.UpdateStatus)
		applications.DELETE("/:id", candidate, h.WithdrawApplication)
	}

	r.GET("/jobs/:jobId/applications", staff, h.ListJobApplications)
	r.GET("/jobs/:jobId/applications/stats", staff, h.JobStats)
	r.GET("/companies/:companyId/applications/stats", staff, h.CompanyStats)
}

type createApplicationRequest struct {
	JobID       string `json:"jobId" binding:"required,uuid"`
	CVID        string `json:"cvId" binding:"required,uuid"`
	CoverLetter string `json:"coverLetter" binding:"max=10000"`
}

type createApplicationResponse struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required,app_status"`
}

func (h *Handler) CreateApplication(c *gin.Context) {
	identity, err := handler.Identity(c)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	var req createApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.Fail(c, middleware.BindError(err))
		return
	}

	app, err := h.service.Create(c.Request.Context(), applicationService.CreateInput{
		CandidateID: identity.UserID,
		JobID:       uuid.MustParse(req.JobID),
		CVID:        uuid.MustParse(req.CVID),
		CoverLetter: req.CoverLetter,
	})
	if err != nil {
		handler.Fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, createApplicationResponse{ID: app.ID, CreatedAt: app.CreatedAt})
}

func (h *Handler) GetApplication(c *gin.Context) {
	identity, err := handler.Identity(c)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	id, err := handler.ParseID(c, "id")
	if err != nil {
		handler.Fail(c, err)
		return
	}

	var owner *uuid.UUID
	if identity.Role == auth.RoleCandidate {
		owner = &identity.UserID
	}
	app, err := h.service.Get(c.Request.Context(), id, owner)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, app)
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	identity, err := handler.Identity(c)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	id, err := handler.ParseID(c, "id")
	if err != nil {
		handler.Fail(c, err)
		return
	}

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.Fail(c, middleware.BindError(err))
		return
	}
	status, err := model.ParseApplicationStatus(req.Status)
	if err != nil {
		handler.Fail(c, apperrors.BadRequest(err.Error(), err))
		return
	}

	app, err := h.service.Transition(c.Request.Context(), id, status, identity.UserID)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, app)
}

func (h *Handler) WithdrawApplication(c *gin.Context) {
	identity, err := handler.Identity(c)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	id, err := handler.ParseID(c, "id")
	if err != nil {
		handler.Fail(c, err)
		return
	}

	if err := h.service.Withdraw(c.Request.Context(), id, identity.UserID); err != nil {
		handler.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id, "withdrawn": true})
}

func (h *Handler) ListMyApplications(c *gin.Context) {
	identity, err := handler.Identity(c)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	opts, err := handler.ListOptions(c, model.QueryStatus, model.QuerySort)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	page, err := h.service.ListForCandidate(c.Request.Context(), identity.UserID, opts)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

func (h *Handler) ListJobApplications(c *gin.Context) {
	jobID, err := handler.ParseID(c, "jobId")
	if err != nil {
		handler.Fail(c, err)
		return
	}
	opts, err := handler.ListOptions(c, model.QueryStatus, model.QuerySort)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	page, err := h.service.ListForJob(c.Request.Context(), jobID, opts)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

func (h *Handler) JobStats(c *gin.Context) {
	jobID, err := handler.ParseID(c, "jobId")
	if err != nil {
		handler.Fail(c, err)
		return
	}

	counts, err := h.service.CountByJob(c.Request.Context(), jobID)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, counts)
}

func (h *Handler) CompanyStats(c *gin.Context) {
	companyID, err := handler.ParseID(c, "companyId")
	if err != nil {
		handler.Fail(c, err)
		return
	}

	counts, err := h.service.CountByStatus(c.Request.Context(), companyID)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, counts)
}
