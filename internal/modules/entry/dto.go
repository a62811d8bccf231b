package entry

// CreateEntryDTO is the request body for starting a new diary entry.
type CreateEntryDTO struct {
	Mood string `json:"mood" binding:"required"`
	Date string `json:"date"` // YYYY-MM-DD, defaults to today
}

// CreateEntryResult hands the client everything it needs to upload the video.
type CreateEntryResult struct {
	EntryID   string `json:"entryId"`
	UploadID  string `json:"uploadId"`
	UploadURL string `json:"uploadUrl"`
}

// InsightsResult summarizes the owner's journaling habits.
type InsightsResult struct {
	Streak        int            `json:"streak"`
	TodayHasEntry bool           `json:"todayHasEntry"`
	MoodStats     map[string]int `json:"moodStats"`
	TotalEntries  int64          `json:"totalEntries"`
}
