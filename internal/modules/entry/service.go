package entry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/echo-journal/core/internal/models"
	"github.com/echo-journal/core/internal/modules/mux"
	"github.com/echo-journal/core/internal/pkg/pagination"
	"github.com/echo-journal/core/internal/pkg/response"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const dateLayout = "2006-01-02"

// streakLookbackDays bounds how far back the daily streak is counted.
const streakLookbackDays = 30

var (
	ErrInvalidMood = errors.New("invalid mood")
	ErrInvalidDate = errors.New("invalid date, expected YYYY-MM-DD")
	ErrUpstream    = errors.New("video platform unavailable")
)

type Service struct {
	db  *gorm.DB
	mux *mux.Client
	loc *time.Location
	log *zap.Logger
}

func NewService(db *gorm.DB, muxClient *mux.Client, loc *time.Location, log *zap.Logger) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{db: db, mux: muxClient, loc: loc, log: log}
}

// Create provisions an upload target on the video platform and persists the
// entry row in "uploading" state. If the row insert fails after the platform
// call succeeded, the one-time upload target is leaked; it expires server-side
// and is never attached to an entry.
func (s *Service) Create(ctx context.Context, userID string, dto CreateEntryDTO) (*models.DiaryEntryModel, *mux.DirectUpload, error) {
	if !models.IsValidMood(dto.Mood) {
		return nil, nil, ErrInvalidMood
	}

	date := dto.Date
	if date == "" {
		date = time.Now().In(s.loc).Format(dateLayout)
	} else if _, err := time.Parse(dateLayout, date); err != nil {
		return nil, nil, ErrInvalidDate
	}

	upload, err := s.mux.CreateDirectUpload(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	entry := &models.DiaryEntryModel{
		UserID:      userID,
		Mood:        dto.Mood,
		Date:        date,
		MuxUploadID: upload.ID,
		VideoStatus: models.VideoStatusUploading,
	}
	if err := s.db.Create(entry).Error; err != nil {
		s.log.Error("entry insert failed after upload target created, target leaked",
			zap.String("upload_id", upload.ID),
			zap.Error(err),
		)
		return nil, nil, err
	}
	return entry, upload, nil
}

// List returns the owner's entries newest-date first.
func (s *Service) List(userID string, q pagination.Query) ([]models.DiaryEntryModel, response.Pagination, error) {
	tx := s.db.Model(&models.DiaryEntryModel{}).
		Where("user_id = ?", userID).
		Order("date DESC, created_at DESC")

	var entries []models.DiaryEntryModel
	pag, err := pagination.Paginate(tx, q, &entries)
	return entries, pag, err
}

// Get returns one entry scoped to its owner, or nil when absent.
func (s *Service) Get(userID, entryID string) (*models.DiaryEntryModel, error) {
	var entry models.DiaryEntryModel
	if err := s.db.Where("id = ? AND user_id = ?", entryID, userID).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// Delete soft-deletes an owned entry. Remote asset cleanup is not attempted.
func (s *Service) Delete(userID, entryID string) (bool, error) {
	res := s.db.Where("id = ? AND user_id = ?", entryID, userID).Delete(&models.DiaryEntryModel{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Insights computes mood counts and the current daily streak. The streak walks
// back day by day; a missing entry for today does not break it, a missing
// earlier day does.
func (s *Service) Insights(userID string) (*InsightsResult, error) {
	type moodCount struct {
		Mood  string
		Count int
	}
	var counts []moodCount
	err := s.db.Model(&models.DiaryEntryModel{}).
		Select("mood, COUNT(*) as count").
		Where("user_id = ?", userID).
		Group("mood").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}

	stats := make(map[string]int, len(models.Moods))
	for _, mood := range models.Moods {
		stats[mood] = 0
	}
	var total int64
	for _, mc := range counts {
		if _, ok := stats[mc.Mood]; ok {
			stats[mc.Mood] = mc.Count
		}
		total += int64(mc.Count)
	}

	today := time.Now().In(s.loc)
	since := today.AddDate(0, 0, -(streakLookbackDays - 1)).Format(dateLayout)

	var dates []string
	err = s.db.Model(&models.DiaryEntryModel{}).
		Distinct("date").
		Where("user_id = ? AND date >= ?", userID, since).
		Pluck("date", &dates).Error
	if err != nil {
		return nil, err
	}

	haveDate := make(map[string]bool, len(dates))
	for _, d := range dates {
		haveDate[d] = true
	}

	streak := 0
	for i := 0; i < streakLookbackDays; i++ {
		day := today.AddDate(0, 0, -i).Format(dateLayout)
		if haveDate[day] {
			streak++
		} else if i > 0 {
			break
		}
	}

	return &InsightsResult{
		Streak:        streak,
		TodayHasEntry: haveDate[today.Format(dateLayout)],
		MoodStats:     stats,
		TotalEntries:  total,
	}, nil
}
