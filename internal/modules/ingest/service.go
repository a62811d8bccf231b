package ingest

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/echo-journal/core/internal/models"
	"github.com/echo-journal/core/internal/modules/mux"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service reconciles diary entries against the video platform's state. All
// transitions are idempotent field updates, so webhook delivery and client
// polling can overlap or repeat without corrupting an entry.
type Service struct {
	db  *gorm.DB
	mux *mux.Client
	log *zap.Logger
}

func NewService(db *gorm.DB, muxClient *mux.Client, log *zap.Logger) *Service {
	return &Service{db: db, mux: muxClient, log: log}
}

// Reconcile advances an entry toward its platform state. Steps run in fixed
// order and each is guarded by the entry's current fields, so calling it at
// any moment either makes progress or does nothing. The entry struct is
// updated in place alongside the database.
func (s *Service) Reconcile(ctx context.Context, entry *models.DiaryEntryModel) error {
	// Upload target resolved to an asset yet?
	if entry.MuxUploadID != "" && entry.MuxAssetID == "" {
		upload, err := s.mux.GetUpload(ctx, entry.MuxUploadID)
		if err != nil {
			return err
		}
		if upload.AssetID != "" {
			updates := map[string]interface{}{
				"mux_asset_id": upload.AssetID,
				"video_status": models.VideoStatusProcessing,
			}
			if err := s.db.Model(entry).Updates(updates).Error; err != nil {
				return err
			}
			entry.MuxAssetID = upload.AssetID
			entry.VideoStatus = models.VideoStatusProcessing
		}
	}

	// Asset done transcoding?
	if entry.MuxAssetID != "" && entry.VideoStatus != models.VideoStatusReady && entry.VideoStatus != models.VideoStatusError {
		asset, err := s.mux.GetAsset(ctx, entry.MuxAssetID)
		if err != nil {
			return err
		}
		switch asset.Status {
		case "ready":
			playbackID := asset.PublicPlaybackID()
			duration := int(math.Round(asset.Duration))
			thumbnail := ""
			if playbackID != "" {
				thumbnail = s.mux.ThumbnailURL(playbackID)
			}
			updates := map[string]interface{}{
				"mux_playback_id": playbackID,
				"duration":        duration,
				"thumbnail_url":   thumbnail,
				"video_status":    models.VideoStatusReady,
			}
			if err := s.db.Model(entry).Updates(updates).Error; err != nil {
				return err
			}
			entry.MuxPlaybackID = playbackID
			entry.Duration = duration
			entry.ThumbnailURL = thumbnail
			entry.VideoStatus = models.VideoStatusReady
		case "errored":
			if err := s.db.Model(entry).Update("video_status", models.VideoStatusError).Error; err != nil {
				return err
			}
			entry.VideoStatus = models.VideoStatusError
		}
	}

	return nil
}

// EnsureTranscript downloads and persists the caption track's text. The
// transcript lifecycle is independent of the ready/error status, so a track
// arriving before or after asset-ready converges the same way.
func (s *Service) EnsureTranscript(ctx context.Context, entry *models.DiaryEntryModel, trackID string) error {
	if trackID == "" {
		return nil
	}
	if entry.MuxTrackID == trackID && entry.Transcript != "" {
		return nil
	}
	if entry.MuxPlaybackID == "" {
		return fmt.Errorf("entry %s has no playback id yet", entry.ID)
	}

	transcript, err := s.mux.FetchTranscript(ctx, entry.MuxPlaybackID, trackID)
	if err != nil {
		return err
	}

	updates := map[string]interface{}{
		"mux_track_id": trackID,
		"transcript":   transcript,
	}
	if err := s.db.Model(entry).Updates(updates).Error; err != nil {
		return err
	}
	entry.MuxTrackID = trackID
	entry.Transcript = transcript
	return nil
}

// FindByUploadRef looks up an entry by its upload target ID.
func (s *Service) FindByUploadRef(uploadID string) (*models.DiaryEntryModel, error) {
	return s.findBy("mux_upload_id = ?", uploadID)
}

// FindByAssetRef looks up an entry by its asset ID.
func (s *Service) FindByAssetRef(assetID string) (*models.DiaryEntryModel, error) {
	return s.findBy("mux_asset_id = ?", assetID)
}

// FindOwned looks up an entry by ID scoped to its owner.
func (s *Service) FindOwned(entryID, userID string) (*models.DiaryEntryModel, error) {
	return s.findBy("id = ? AND user_id = ?", entryID, userID)
}

func (s *Service) findBy(query string, args ...interface{}) (*models.DiaryEntryModel, error) {
	var entry models.DiaryEntryModel
	if err := s.db.Where(query, args...).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// SeedAssetRef records the asset ID reported by an upload event. A no-op when
// the entry already carries an asset ref.
func (s *Service) SeedAssetRef(entry *models.DiaryEntryModel, assetID string) error {
	if assetID == "" || entry.MuxAssetID != "" {
		return nil
	}
	updates := map[string]interface{}{
		"mux_asset_id": assetID,
		"video_status": models.VideoStatusProcessing,
	}
	if err := s.db.Model(entry).Updates(updates).Error; err != nil {
		return err
	}
	entry.MuxAssetID = assetID
	entry.VideoStatus = models.VideoStatusProcessing
	return nil
}

// MarkErrored flags an entry's video as failed.
func (s *Service) MarkErrored(entry *models.DiaryEntryModel) error {
	if entry.VideoStatus == models.VideoStatusError {
		return nil
	}
	if err := s.db.Model(entry).Update("video_status", models.VideoStatusError).Error; err != nil {
		return err
	}
	entry.VideoStatus = models.VideoStatusError
	return nil
}

// SweepStale re-reconciles entries stuck in a non-terminal status. Registered
// as a cron job so missed webhooks self-heal without client polling.
func (s *Service) SweepStale(ctx context.Context) error {
	if !s.mux.Configured() {
		return nil
	}

	var entries []models.DiaryEntryModel
	err := s.db.
		Where("video_status IN ?", []string{models.VideoStatusUploading, models.VideoStatusProcessing}).
		Order("created_at ASC").
		Limit(50).
		Find(&entries).Error
	if err != nil {
		return err
	}

	var failed int
	for i := range entries {
		if err := s.Reconcile(ctx, &entries[i]); err != nil {
			failed++
			s.log.Warn("stale entry reconcile failed",
				zap.String("entry_id", entries[i].ID),
				zap.Error(err),
			)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d stale entries failed to reconcile", failed, len(entries))
	}
	return nil
}
