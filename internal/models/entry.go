package models

// Video processing states for a diary entry. Status is monotonic in the happy
// path (uploading → processing → ready); error can arrive from any non-terminal
// state. Ready and error are terminal.
const (
	VideoStatusUploading  = "uploading"
	VideoStatusProcessing = "processing"
	VideoStatusReady      = "ready"
	VideoStatusError      = "error"
)

// Moods is the fixed set of mood tags an entry can carry.
var Moods = []string{
	"happy", "sad", "anxious", "excited",
	"calm", "stressed", "grateful", "reflective",
}

// IsValidMood reports whether mood belongs to the fixed mood set.
func IsValidMood(mood string) bool {
	for _, m := range Moods {
		if m == mood {
			return true
		}
	}
	return false
}

// AIAnalysis is the structured summary produced on demand from a transcript.
// It is an opaque attachment as far as the ingestion pipeline is concerned.
type AIAnalysis struct {
	Title             string   `json:"title"`
	Summary           string   `json:"summary"`
	EmotionalAnalysis string   `json:"emotional_analysis"`
	KeyTopics         []string `json:"key_topics"`
	Advice            string   `json:"advice"`
	SentimentScore    float64  `json:"sentiment_score"`
}

// DiaryEntryModel is one user-recorded video diary entry.
//
// MuxUploadID is the join key until the platform acknowledges the upload and
// reports an asset; from then on MuxAssetID is the join key and never changes.
// Transcript is populated independently of VideoStatus: caption generation may
// finish before or after the asset becomes playable.
type DiaryEntryModel struct {
	Base
	UserID        string      `json:"user_id"         gorm:"index;not null"`
	Mood          string      `json:"mood"            gorm:"not null"`
	Date          string      `json:"date"            gorm:"type:char(10);index;not null"` // YYYY-MM-DD, user-local
	MuxUploadID   string      `json:"mux_upload_id"   gorm:"uniqueIndex;not null"`
	MuxAssetID    string      `json:"mux_asset_id"    gorm:"index"`
	MuxPlaybackID string      `json:"mux_playback_id"`
	MuxTrackID    string      `json:"mux_track_id"`
	VideoStatus   string      `json:"video_status"    gorm:"default:'uploading';not null"`
	ThumbnailURL  string      `json:"thumbnail_url"`
	Duration      int         `json:"duration"` // rounded seconds, set when ready
	Transcript    string      `json:"transcript"      gorm:"type:text"`
	AIAnalysis    *AIAnalysis `json:"ai_analysis"     gorm:"type:json;serializer:json"`
}

func (DiaryEntryModel) TableName() string { return "diary_entries" }
