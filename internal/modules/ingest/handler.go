package ingest

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/echo-journal/core/internal/middleware"
	"github.com/echo-journal/core/internal/models"
	"github.com/echo-journal/core/internal/pkg/response"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	svc *Service
	log *zap.Logger
}

func NewHandler(svc *Service, log *zap.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// RegisterRoutes mounts the webhook receiver and the pull status adapter.
// The webhook is authenticated by signature, not by session.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	rg.POST("/webhooks/mux", h.HandleWebhook)
	rg.POST("/entries/:id/status", authMW, h.CheckStatus)
}

// HandleWebhook receives platform lifecycle events. Once the signature is
// accepted the handler always acknowledges: event processing failures are
// logged and retried via redelivery or the stale sweep, never surfaced as 5xx.
func (h *Handler) HandleWebhook(c *gin.Context) {
	rawBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.BadRequest(c, "unreadable body")
		return
	}

	secret := h.svc.mux.WebhookSecret()
	if secret == "" {
		h.log.Warn("webhook secret not configured, processing unverified event")
	} else {
		if err := VerifySignature(secret, c.GetHeader(SignatureHeader), rawBody, time.Now()); err != nil {
			h.log.Warn("webhook signature rejected", zap.Error(err))
			response.Unauthorized(c)
			return
		}
	}

	var event webhookEvent
	if err := json.Unmarshal(rawBody, &event); err != nil {
		response.BadRequest(c, "malformed event payload")
		return
	}

	h.log.Info("webhook event received", zap.String("type", event.Type))
	h.dispatch(c, event)
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (h *Handler) dispatch(c *gin.Context, event webhookEvent) {
	ctx := c.Request.Context()

	switch event.Type {
	case "video.upload.asset_created":
		entry, err := h.svc.FindByUploadRef(event.Data.ID)
		if err != nil || entry == nil {
			h.logMissing("upload", event.Data.ID, err)
			return
		}
		if err := h.svc.SeedAssetRef(entry, event.Data.AssetID); err != nil {
			h.log.Error("seed asset ref failed", zap.String("entry_id", entry.ID), zap.Error(err))
			return
		}
		if err := h.svc.Reconcile(ctx, entry); err != nil {
			h.log.Warn("reconcile after asset_created failed", zap.String("entry_id", entry.ID), zap.Error(err))
		}

	case "video.asset.ready":
		entry, err := h.svc.FindByAssetRef(event.Data.ID)
		if err != nil || entry == nil {
			h.logMissing("asset", event.Data.ID, err)
			return
		}
		if err := h.svc.Reconcile(ctx, entry); err != nil {
			h.log.Warn("reconcile after asset ready failed", zap.String("entry_id", entry.ID), zap.Error(err))
		}

	case "video.asset.track.ready":
		// Only auto-generated caption tracks carry a transcript.
		if event.Data.TrackType != "text" || event.Data.TextSource != "generated_vod" {
			return
		}
		entry, err := h.svc.FindByAssetRef(event.Data.AssetID)
		if err != nil || entry == nil {
			h.logMissing("asset", event.Data.AssetID, err)
			return
		}
		// The track can land before asset-ready; reconcile first so the
		// playback id needed for the transcript URL is in place.
		if entry.MuxPlaybackID == "" {
			if err := h.svc.Reconcile(ctx, entry); err != nil {
				h.log.Warn("reconcile before transcript failed", zap.String("entry_id", entry.ID), zap.Error(err))
			}
		}
		if err := h.svc.EnsureTranscript(ctx, entry, event.Data.ID); err != nil {
			h.log.Warn("transcript fetch failed",
				zap.String("entry_id", entry.ID),
				zap.String("track_id", event.Data.ID),
				zap.Error(err),
			)
		}

	case "video.asset.errored":
		entry, err := h.svc.FindByAssetRef(event.Data.ID)
		if err != nil || entry == nil {
			h.logMissing("asset", event.Data.ID, err)
			return
		}
		if err := h.svc.MarkErrored(entry); err != nil {
			h.log.Error("mark errored failed", zap.String("entry_id", entry.ID), zap.Error(err))
		}

	default:
		h.log.Debug("ignoring event type", zap.String("type", event.Type))
	}
}

func (h *Handler) logMissing(refKind, ref string, err error) {
	if err != nil {
		h.log.Error("entry lookup failed", zap.String(refKind+"_ref", ref), zap.Error(err))
		return
	}
	h.log.Warn("no entry for event", zap.String(refKind+"_ref", ref))
}

// CheckStatus is the client-driven reconciliation path. It runs the same
// routine as the webhook handlers, then reports the entry's current state.
// An upstream failure degrades to reporting stored state, never an error.
func (h *Handler) CheckStatus(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	entry, err := h.svc.FindOwned(c.Param("id"), userID)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if entry == nil {
		response.NotFoundMsg(c, "entry not found")
		return
	}

	if entry.VideoStatus != models.VideoStatusReady && entry.VideoStatus != models.VideoStatusError {
		if err := h.svc.Reconcile(c.Request.Context(), entry); err != nil {
			h.log.Warn("poll reconcile failed", zap.String("entry_id", entry.ID), zap.Error(err))
		}
	}

	response.OK(c, StatusResult{
		Status:       entry.VideoStatus,
		PlaybackID:   entry.MuxPlaybackID,
		ThumbnailURL: entry.ThumbnailURL,
		Duration:     entry.Duration,
	})
}
