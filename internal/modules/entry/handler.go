package entry

import (
	"errors"

	"github.com/echo-journal/core/internal/middleware"
	"github.com/echo-journal/core/internal/pkg/pagination"
	"github.com/echo-journal/core/internal/pkg/response"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	entries := rg.Group("/entries", authMW)
	{
		entries.POST("", h.Create)
		entries.GET("", h.List)
		entries.GET("/insights", h.Insights)
		entries.GET("/:id", h.Get)
		entries.DELETE("/:id", h.Delete)
	}
}

func (h *Handler) Create(c *gin.Context) {
	var dto CreateEntryDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "mood is required")
		return
	}

	entry, upload, err := h.svc.Create(c.Request.Context(), middleware.CurrentUserID(c), dto)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidMood):
			response.BadRequest(c, "invalid mood")
		case errors.Is(err, ErrInvalidDate):
			response.BadRequest(c, "invalid date, expected YYYY-MM-DD")
		case errors.Is(err, ErrUpstream):
			response.BadGateway(c, "video platform unavailable")
		default:
			response.InternalError(c, err)
		}
		return
	}

	response.Created(c, CreateEntryResult{
		EntryID:   entry.ID,
		UploadID:  upload.ID,
		UploadURL: upload.URL,
	})
}

func (h *Handler) List(c *gin.Context) {
	q := pagination.FromContext(c)
	entries, pag, err := h.svc.List(middleware.CurrentUserID(c), q)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Paged(c, entries, pag)
}

func (h *Handler) Get(c *gin.Context) {
	entry, err := h.svc.Get(middleware.CurrentUserID(c), c.Param("id"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if entry == nil {
		response.NotFoundMsg(c, "entry not found")
		return
	}
	response.OK(c, entry)
}

func (h *Handler) Delete(c *gin.Context) {
	deleted, err := h.svc.Delete(middleware.CurrentUserID(c), c.Param("id"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if !deleted {
		response.NotFoundMsg(c, "entry not found")
		return
	}
	response.NoContent(c)
}

func (h *Handler) Insights(c *gin.Context) {
	insights, err := h.svc.Insights(middleware.CurrentUserID(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, insights)
}
