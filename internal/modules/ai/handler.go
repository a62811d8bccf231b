package ai

import (
	"errors"

	"github.com/echo-journal/core/internal/middleware"
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
	rg.POST("/entries/:id/analyze", authMW, h.Analyze)
	rg.GET("/tasks/:id", authMW, h.GetTask)
}

// Analyze kicks off AI analysis of an entry's transcript. By default the work
// runs through the task queue; ?sync=true runs it inline and returns the result.
func (h *Handler) Analyze(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	entryID := c.Param("id")

	if c.Query("sync") == "true" {
		analysis, err := h.svc.AnalyzeNow(c.Request.Context(), userID, entryID)
		if err != nil {
			h.writeAnalyzeError(c, err)
			return
		}
		response.OK(c, analysis)
		return
	}

	task, err := h.svc.EnqueueAnalysis(c.Request.Context(), userID, entryID)
	if err != nil {
		h.writeAnalyzeError(c, err)
		return
	}
	response.OK(c, gin.H{"taskId": task.ID, "status": task.Status})
}

func (h *Handler) writeAnalyzeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFoundMsg(c, "entry not found")
	case errors.Is(err, ErrNoTranscript):
		response.BadRequest(c, "no transcript available for this entry")
	case errors.Is(err, ErrDisabled):
		response.BadRequest(c, "AI analysis is not configured")
	default:
		response.InternalError(c, err)
	}
}

func (h *Handler) GetTask(c *gin.Context) {
	task, err := h.svc.GetTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if task == nil {
		response.NotFoundMsg(c, "task not found")
		return
	}
	response.OK(c, task)
}
