package ingest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/echo-journal/core/internal/config"
	"github.com/echo-journal/core/internal/database"
	"github.com/echo-journal/core/internal/models"
	"github.com/echo-journal/core/internal/modules/mux"
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
	// A single connection keeps the in-memory schema alive.
	sqlDB.SetMaxOpenConns(1)
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// platformStub fakes the video platform API and stream host.
type platformStub struct {
	mu          sync.Mutex
	uploads     map[string]mux.Upload
	assets      map[string]mux.Asset
	transcripts map[string]string // "playbackID/trackID" -> text
	hits        map[string]int
	failAll     bool

	srv *httptest.Server
}

func newPlatformStub(t *testing.T) *platformStub {
	t.Helper()
	stub := &platformStub{
		uploads:     make(map[string]mux.Upload),
		assets:      make(map[string]mux.Asset),
		transcripts: make(map[string]string),
		hits:        make(map[string]int),
	}
	stub.srv = httptest.NewServer(http.HandlerFunc(stub.handle))
	t.Cleanup(stub.srv.Close)
	return stub
}

func (s *platformStub) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.hits[r.URL.Path]++
	if s.failAll {
		http.Error(w, "unavailable", http.StatusInternalServerError)
		return
	}

	path := r.URL.Path
	switch {
	case strings.HasPrefix(path, "/video/v1/uploads/"):
		if _, _, ok := r.BasicAuth(); !ok {
			http.Error(w, "no auth", http.StatusUnauthorized)
			return
		}
		id := strings.TrimPrefix(path, "/video/v1/uploads/")
		upload, ok := s.uploads[id]
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"data": upload})

	case strings.HasPrefix(path, "/video/v1/assets/"):
		id := strings.TrimPrefix(path, "/video/v1/assets/")
		asset, ok := s.assets[id]
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"data": asset})

	case strings.HasSuffix(path, ".txt"):
		key := strings.TrimSuffix(strings.TrimPrefix(path, "/"), ".txt")
		key = strings.Replace(key, "/text/", "/", 1)
		text, ok := s.transcripts[key]
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		fmt.Fprint(w, text)

	default:
		http.Error(w, "unexpected path "+path, http.StatusNotFound)
	}
}

func (s *platformStub) setUpload(id string, u mux.Upload)   { s.mu.Lock(); s.uploads[id] = u; s.mu.Unlock() }
func (s *platformStub) setAsset(id string, a mux.Asset)     { s.mu.Lock(); s.assets[id] = a; s.mu.Unlock() }
func (s *platformStub) setFailAll(fail bool)                { s.mu.Lock(); s.failAll = fail; s.mu.Unlock() }
func (s *platformStub) setTranscript(playbackID, trackID, text string) {
	s.mu.Lock()
	s.transcripts[playbackID+"/"+trackID] = text
	s.mu.Unlock()
}
func (s *platformStub) pathHits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

func (s *platformStub) muxConfig() config.MuxConfig {
	return config.MuxConfig{
		TokenID:         "test-token",
		TokenSecret:     "test-secret",
		WebhookSecret:   testSecret,
		APIBase:         s.srv.URL,
		StreamBase:      s.srv.URL,
		ImageBase:       "https://image.example.com",
		CaptionLanguage: "en",
		CaptionName:     "English CC",
		CORSOrigin:      "*",
	}
}

func newTestService(t *testing.T) (*Service, *platformStub, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	stub := newPlatformStub(t)
	svc := NewService(db, mux.NewClient(stub.muxConfig()), zap.NewNop())
	return svc, stub, db
}

func seedEntry(t *testing.T, db *gorm.DB, entry *models.DiaryEntryModel) *models.DiaryEntryModel {
	t.Helper()
	if entry.UserID == "" {
		entry.UserID = "user-1"
	}
	if entry.Mood == "" {
		entry.Mood = "calm"
	}
	if entry.Date == "" {
		entry.Date = "2026-08-29"
	}
	if entry.VideoStatus == "" {
		entry.VideoStatus = models.VideoStatusUploading
	}
	if err := db.Create(entry).Error; err != nil {
		t.Fatalf("seed entry: %v", err)
	}
	return entry
}

func reloadEntry(t *testing.T, db *gorm.DB, id string) *models.DiaryEntryModel {
	t.Helper()
	var entry models.DiaryEntryModel
	if err := db.First(&entry, "id = ?", id).Error; err != nil {
		t.Fatalf("reload entry: %v", err)
	}
	return &entry
}
