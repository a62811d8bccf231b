package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	appcfg "github.com/echo-journal/core/internal/config"
	"github.com/echo-journal/core/internal/database"
	"github.com/echo-journal/core/internal/models"
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

// newCompletionsStub fakes an OpenAI-compatible chat completions endpoint.
func newCompletionsStub(t *testing.T, content string) (*httptest.Server, *map[string]interface{}) {
	t.Helper()
	var lastReq map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.Error(w, "unexpected path "+r.URL.Path, http.StatusNotFound)
			return
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			http.Error(w, "bad auth "+auth, http.StatusUnauthorized)
			return
		}
		json.NewDecoder(r.Body).Decode(&lastReq)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &lastReq
}

func seedEntry(t *testing.T, db *gorm.DB, transcript string) *models.DiaryEntryModel {
	t.Helper()
	e := &models.DiaryEntryModel{
		UserID:      "user-1",
		Mood:        "reflective",
		Date:        "2026-08-29",
		MuxUploadID: "up-1",
		VideoStatus: models.VideoStatusReady,
		Transcript:  transcript,
	}
	if err := db.Create(e).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	return e
}

func newTestService(t *testing.T, db *gorm.DB, endpoint string) *Service {
	t.Helper()
	cfg := appcfg.AIConfig{
		Provider: "openai-compatible",
		APIKey:   "test-key",
		Endpoint: endpoint,
		Model:    "test-model",
	}
	return NewService(db, cfg, nil, zap.NewNop())
}

func TestAnalyzeNowStoresResult(t *testing.T) {
	db := newTestDB(t)
	entry := seedEntry(t, db, "Today I finally finished the garden and it felt great.")

	reply := "```json\n" + `{
		"title": "Garden Day Triumph",
		"summary": "The garden is finally done. It brought a real sense of accomplishment.",
		"emotional_analysis": "You sound proud and content, which matches your reflective mood.",
		"key_topics": ["gardening", "accomplishment", "outdoors"],
		"advice": "Take a moment tomorrow to enjoy the space you built.",
		"sentiment_score": 85
	}` + "\n```"
	srv, lastReq := newCompletionsStub(t, reply)
	svc := newTestService(t, db, srv.URL)

	analysis, err := svc.AnalyzeNow(context.Background(), "user-1", entry.ID)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if analysis.Title != "Garden Day Triumph" || analysis.SentimentScore != 85 {
		t.Errorf("analysis = %+v", analysis)
	}
	if len(analysis.KeyTopics) != 3 {
		t.Errorf("key topics = %v", analysis.KeyTopics)
	}

	// The result is persisted on the entry.
	var stored models.DiaryEntryModel
	if err := db.First(&stored, "id = ?", entry.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.AIAnalysis == nil || stored.AIAnalysis.Title != "Garden Day Triumph" {
		t.Errorf("stored analysis = %+v", stored.AIAnalysis)
	}

	// The transcript goes in the user message, the mood in the system prompt.
	req := *lastReq
	messages, _ := req["messages"].([]interface{})
	if len(messages) != 2 {
		t.Fatalf("messages = %v", messages)
	}
	system := messages[0].(map[string]interface{})
	user := messages[1].(map[string]interface{})
	if system["role"] != "system" || !strings.Contains(system["content"].(string), `"reflective"`) {
		t.Errorf("system message = %v", system)
	}
	if user["role"] != "user" || !strings.Contains(user["content"].(string), "finished the garden") {
		t.Errorf("user message = %v", user)
	}
	if req["model"] != "test-model" {
		t.Errorf("model = %v", req["model"])
	}
}

func TestAnalyzeNowClampsSentiment(t *testing.T) {
	db := newTestDB(t)
	entry := seedEntry(t, db, "A rough day all around.")

	srv, _ := newCompletionsStub(t, `{"title":"t","summary":"s","emotional_analysis":"e","key_topics":[],"advice":"a","sentiment_score":240}`)
	svc := newTestService(t, db, srv.URL)

	analysis, err := svc.AnalyzeNow(context.Background(), "user-1", entry.ID)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if analysis.SentimentScore != 100 {
		t.Errorf("sentiment = %v, want clamped to 100", analysis.SentimentScore)
	}
}

func TestAnalyzeNowGuards(t *testing.T) {
	db := newTestDB(t)
	srv, _ := newCompletionsStub(t, "{}")

	entry := seedEntry(t, db, "")
	svc := newTestService(t, db, srv.URL)

	if _, err := svc.AnalyzeNow(context.Background(), "user-1", entry.ID); !errors.Is(err, ErrNoTranscript) {
		t.Errorf("empty transcript: got %v, want ErrNoTranscript", err)
	}
	if _, err := svc.AnalyzeNow(context.Background(), "user-1", "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing entry: got %v, want ErrNotFound", err)
	}
	if _, err := svc.AnalyzeNow(context.Background(), "user-2", entry.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("foreign entry: got %v, want ErrNotFound", err)
	}

	disabled := NewService(db, appcfg.AIConfig{}, nil, zap.NewNop())
	if _, err := disabled.AnalyzeNow(context.Background(), "user-1", entry.ID); !errors.Is(err, ErrDisabled) {
		t.Errorf("no api key: got %v, want ErrDisabled", err)
	}
}

func TestAnalyzeNowRejectsNonJSONReply(t *testing.T) {
	db := newTestDB(t)
	entry := seedEntry(t, db, "Something happened today.")

	srv, _ := newCompletionsStub(t, "I'm sorry, I cannot help with that.")
	svc := newTestService(t, db, srv.URL)

	if _, err := svc.AnalyzeNow(context.Background(), "user-1", entry.ID); err == nil {
		t.Fatal("expected error for non-JSON reply")
	}

	var stored models.DiaryEntryModel
	db.First(&stored, "id = ?", entry.ID)
	if stored.AIAnalysis != nil {
		t.Errorf("failed analysis was persisted: %+v", stored.AIAnalysis)
	}
}

func TestUnmarshalAIJSON(t *testing.T) {
	type doc struct {
		Title string `json:"title"`
	}

	cases := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"plain", `{"title":"ok"}`, "ok", false},
		{"fenced", "```json\n{\"title\":\"ok\"}\n```", "ok", false},
		{"fenced upper", "```JSON\n{\"title\":\"ok\"}\n```", "ok", false},
		{"bare fence", "```\n{\"title\":\"ok\"}\n```", "ok", false},
		{"leading prose", "Here is the analysis:\n{\"title\":\"ok\"}", "ok", false},
		{"trailing prose", `{"title":"ok"} hope this helps!`, "ok", false},
		{"no json", "cannot comply", "", true},
		{"truncated", `{"title":"ok"`, "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var out doc
			err := unmarshalAIJSON(tc.raw, &out)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("unmarshalAIJSON(%q) succeeded, want error", tc.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("unmarshalAIJSON(%q): %v", tc.raw, err)
			}
			if out.Title != tc.want {
				t.Errorf("title = %q, want %q", out.Title, tc.want)
			}
		})
	}
}
