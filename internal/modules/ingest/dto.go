package ingest

// webhookEvent is the envelope the video platform posts to the webhook.
// data is shaped by the event type: upload events carry the upload object,
// asset events the asset, and track events the track itself.
type webhookEvent struct {
	Type string           `json:"type"`
	Data webhookEventData `json:"data"`
}

type webhookEventData struct {
	ID         string `json:"id"`
	AssetID    string `json:"asset_id"`
	UploadID   string `json:"upload_id"`
	Status     string `json:"status"`
	TrackType  string `json:"type"`
	TextSource string `json:"text_source"`
}

// StatusResult is the pull adapter's view of an entry's video state.
type StatusResult struct {
	Status       string `json:"status"`
	PlaybackID   string `json:"playbackId,omitempty"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
	Duration     int    `json:"duration,omitempty"`
}
