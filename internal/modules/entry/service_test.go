package entry

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/echo-journal/core/internal/config"
	"github.com/echo-journal/core/internal/database"
	"github.com/echo-journal/core/internal/models"
	"github.com/echo-journal/core/internal/modules/mux"
	"github.com/echo-journal/core/internal/pkg/pagination"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("resolve sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// newUploadStub fakes the platform's create-upload endpoint and records the
// last request body.
func newUploadStub(t *testing.T, fail bool) (*httptest.Server, *map[string]interface{}) {
	t.Helper()
	var lastBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		if r.Method != http.MethodPost || r.URL.Path != "/video/v1/uploads" {
			http.Error(w, "unexpected "+r.Method+" "+r.URL.Path, http.StatusNotFound)
			return
		}
		json.NewDecoder(r.Body).Decode(&lastBody)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]string{"id": "up-123", "url": "https://storage.example.com/up-123"},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &lastBody
}

func newTestService(t *testing.T, fail bool) (*Service, *gorm.DB, *map[string]interface{}) {
	t.Helper()
	db := newTestDB(t)
	srv, lastBody := newUploadStub(t, fail)
	cfg := config.MuxConfig{
		TokenID: "tok", TokenSecret: "sec",
		APIBase: srv.URL, StreamBase: srv.URL, ImageBase: srv.URL,
		CaptionLanguage: "en", CaptionName: "English CC", CORSOrigin: "*",
	}
	svc := NewService(db, mux.NewClient(cfg), time.UTC, zap.NewNop())
	return svc, db, lastBody
}

func TestCreateProvisionsUploadAndPersists(t *testing.T) {
	svc, db, lastBody := newTestService(t, false)

	entry, upload, err := svc.Create(context.Background(), "user-1", CreateEntryDTO{Mood: "happy", Date: "2026-08-20"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if upload.ID != "up-123" || upload.URL != "https://storage.example.com/up-123" {
		t.Errorf("upload = %+v", upload)
	}
	if entry.VideoStatus != models.VideoStatusUploading || entry.MuxUploadID != "up-123" {
		t.Errorf("entry = (%q, %q), want (uploading, up-123)", entry.VideoStatus, entry.MuxUploadID)
	}
	if entry.Date != "2026-08-20" {
		t.Errorf("date = %q, want 2026-08-20", entry.Date)
	}

	var count int64
	db.Model(&models.DiaryEntryModel{}).Count(&count)
	if count != 1 {
		t.Errorf("rows = %d, want 1", count)
	}

	// Request shape the platform expects.
	body := *lastBody
	settings, _ := body["new_asset_settings"].(map[string]interface{})
	if settings == nil {
		t.Fatalf("missing new_asset_settings in %v", body)
	}
	if tier := settings["encoding_tier"]; tier != "baseline" {
		t.Errorf("encoding_tier = %v, want baseline", tier)
	}
	policies, _ := settings["playback_policy"].([]interface{})
	if len(policies) != 1 || policies[0] != "public" {
		t.Errorf("playback_policy = %v, want [public]", policies)
	}
	subtitles, _ := settings["generated_subtitles"].([]interface{})
	if len(subtitles) != 1 {
		t.Fatalf("generated_subtitles = %v, want one", subtitles)
	}
	sub, _ := subtitles[0].(map[string]interface{})
	if sub["language_code"] != "en" || sub["name"] != "English CC" {
		t.Errorf("subtitle settings = %v", sub)
	}
}

func TestCreateDefaultsDateToToday(t *testing.T) {
	svc, _, _ := newTestService(t, false)

	entry, _, err := svc.Create(context.Background(), "user-1", CreateEntryDTO{Mood: "calm"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	want := time.Now().UTC().Format("2006-01-02")
	if entry.Date != want {
		t.Errorf("date = %q, want today %q", entry.Date, want)
	}
}

func TestCreateValidation(t *testing.T) {
	svc, db, _ := newTestService(t, false)

	if _, _, err := svc.Create(context.Background(), "user-1", CreateEntryDTO{Mood: "melancholy"}); !errors.Is(err, ErrInvalidMood) {
		t.Errorf("unknown mood: got %v, want ErrInvalidMood", err)
	}
	if _, _, err := svc.Create(context.Background(), "user-1", CreateEntryDTO{Mood: "happy", Date: "20-08-2026"}); !errors.Is(err, ErrInvalidDate) {
		t.Errorf("bad date: got %v, want ErrInvalidDate", err)
	}

	var count int64
	db.Model(&models.DiaryEntryModel{}).Count(&count)
	if count != 0 {
		t.Errorf("validation failures persisted %d rows", count)
	}
}

func TestCreatePlatformFailureLeavesNoRow(t *testing.T) {
	svc, db, _ := newTestService(t, true)

	_, _, err := svc.Create(context.Background(), "user-1", CreateEntryDTO{Mood: "happy"})
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("got %v, want ErrUpstream", err)
	}

	var count int64
	db.Model(&models.DiaryEntryModel{}).Count(&count)
	if count != 0 {
		t.Errorf("platform failure persisted %d rows", count)
	}
}

func seed(t *testing.T, db *gorm.DB, userID, mood, date, uploadID string) *models.DiaryEntryModel {
	t.Helper()
	e := &models.DiaryEntryModel{
		UserID: userID, Mood: mood, Date: date,
		MuxUploadID: uploadID, VideoStatus: models.VideoStatusReady,
	}
	if err := db.Create(e).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	return e
}

func TestListScopedToOwnerNewestFirst(t *testing.T) {
	svc, db, _ := newTestService(t, false)
	seed(t, db, "user-1", "happy", "2026-08-27", "u1")
	seed(t, db, "user-1", "sad", "2026-08-29", "u2")
	seed(t, db, "user-2", "calm", "2026-08-28", "u3")

	entries, pag, err := svc.List("user-1", pagination.Query{Page: 1, Size: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if pag.Total != 2 || len(entries) != 2 {
		t.Fatalf("got %d entries (total %d), want 2", len(entries), pag.Total)
	}
	if entries[0].Date != "2026-08-29" || entries[1].Date != "2026-08-27" {
		t.Errorf("order = [%s, %s], want newest first", entries[0].Date, entries[1].Date)
	}
}

func TestGetAndDeleteOwnerScoping(t *testing.T) {
	svc, db, _ := newTestService(t, false)
	e := seed(t, db, "user-1", "happy", "2026-08-29", "u1")

	if got, err := svc.Get("user-2", e.ID); err != nil || got != nil {
		t.Errorf("foreign get = (%v, %v), want (nil, nil)", got, err)
	}
	if deleted, err := svc.Delete("user-2", e.ID); err != nil || deleted {
		t.Errorf("foreign delete = (%v, %v), want (false, nil)", deleted, err)
	}

	if got, err := svc.Get("user-1", e.ID); err != nil || got == nil {
		t.Fatalf("owner get = (%v, %v)", got, err)
	}
	if deleted, err := svc.Delete("user-1", e.ID); err != nil || !deleted {
		t.Fatalf("owner delete = (%v, %v), want (true, nil)", deleted, err)
	}
	if got, _ := svc.Get("user-1", e.ID); got != nil {
		t.Error("entry still visible after delete")
	}
}

func TestInsightsStreakAndMoodStats(t *testing.T) {
	svc, db, _ := newTestService(t, false)

	day := func(offset int) string {
		return time.Now().UTC().AddDate(0, 0, offset).Format("2006-01-02")
	}

	// Yesterday and the day before recorded, today not yet: streak of 2.
	seed(t, db, "user-1", "happy", day(-1), "u1")
	seed(t, db, "user-1", "happy", day(-2), "u2")
	seed(t, db, "user-1", "calm", day(-4), "u3") // gap at -3 ends the streak
	seed(t, db, "user-2", "sad", day(-1), "u4")  // other user, ignored

	insights, err := svc.Insights("user-1")
	if err != nil {
		t.Fatalf("insights: %v", err)
	}
	if insights.Streak != 2 {
		t.Errorf("streak = %d, want 2 (missing today allowed)", insights.Streak)
	}
	if insights.TodayHasEntry {
		t.Error("todayHasEntry = true, want false")
	}
	if insights.TotalEntries != 3 {
		t.Errorf("total = %d, want 3", insights.TotalEntries)
	}
	if insights.MoodStats["happy"] != 2 || insights.MoodStats["calm"] != 1 {
		t.Errorf("mood stats = %v", insights.MoodStats)
	}
	if insights.MoodStats["sad"] != 0 {
		t.Errorf("foreign user's mood counted: %v", insights.MoodStats)
	}
	// Every mood is present even at zero, for chart rendering.
	for _, mood := range models.Moods {
		if _, ok := insights.MoodStats[mood]; !ok {
			t.Errorf("mood %q missing from stats", mood)
		}
	}
}

func TestInsightsStreakIncludesToday(t *testing.T) {
	svc, db, _ := newTestService(t, false)

	day := func(offset int) string {
		return time.Now().UTC().AddDate(0, 0, offset).Format("2006-01-02")
	}
	seed(t, db, "user-1", "happy", day(0), "u1")
	seed(t, db, "user-1", "happy", day(-1), "u2")

	insights, err := svc.Insights("user-1")
	if err != nil {
		t.Fatalf("insights: %v", err)
	}
	if insights.Streak != 2 || !insights.TodayHasEntry {
		t.Errorf("got streak=%d today=%v, want 2/true", insights.Streak, insights.TodayHasEntry)
	}
}

func TestInsightsEmpty(t *testing.T) {
	svc, _, _ := newTestService(t, false)

	insights, err := svc.Insights("user-1")
	if err != nil {
		t.Fatalf("insights: %v", err)
	}
	if insights.Streak != 0 || insights.TodayHasEntry || insights.TotalEntries != 0 {
		t.Errorf("empty insights = %+v", insights)
	}
}
