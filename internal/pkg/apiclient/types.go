package apiclient

// LoginResult is the auth response.
type LoginResult struct {
	Token string `json:"token"`
	User  struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"user"`
}

// CreateEntryResult carries the upload target for a new entry.
type CreateEntryResult struct {
	EntryID   string `json:"entryId"`
	UploadID  string `json:"uploadId"`
	UploadURL string `json:"uploadUrl"`
}

// EntryStatus is the reconciled video state of an entry.
type EntryStatus struct {
	Status       string `json:"status"`
	PlaybackID   string `json:"playbackId"`
	ThumbnailURL string `json:"thumbnailUrl"`
	Duration     int    `json:"duration"`
}

// Entry is a diary entry as served by the API.
type Entry struct {
	ID            string `json:"id"`
	Mood          string `json:"mood"`
	Date          string `json:"date"`
	VideoStatus   string `json:"video_status"`
	MuxPlaybackID string `json:"mux_playback_id"`
	ThumbnailURL  string `json:"thumbnail_url"`
	Duration      int    `json:"duration"`
	Transcript    string `json:"transcript"`
}
