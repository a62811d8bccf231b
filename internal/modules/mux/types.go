package mux

// DirectUpload is a one-time upload target created on the video platform.
type DirectUpload struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Upload is the state of an upload target as reported by the platform.
type Upload struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	AssetID string `json:"asset_id"`
}

// Asset is the transcoded media object derived from an upload.
type Asset struct {
	ID          string       `json:"id"`
	Status      string       `json:"status"` // "preparing" | "ready" | "errored"
	Duration    float64      `json:"duration"`
	PlaybackIDs []PlaybackID `json:"playback_ids"`
}

// PlaybackID grants access to an asset's streams.
type PlaybackID struct {
	ID     string `json:"id"`
	Policy string `json:"policy"`
}

// PublicPlaybackID returns the asset's public playback ID, falling back to
// the first one. Returns "" when the asset has none yet.
func (a Asset) PublicPlaybackID() string {
	for _, pb := range a.PlaybackIDs {
		if pb.Policy == "public" {
			return pb.ID
		}
	}
	if len(a.PlaybackIDs) == 0 {
		return ""
	}
	return a.PlaybackIDs[0].ID
}

type createUploadRequest struct {
	CORSOrigin       string           `json:"cors_origin"`
	NewAssetSettings newAssetSettings `json:"new_asset_settings"`
}

type newAssetSettings struct {
	PlaybackPolicy     []string           `json:"playback_policy"`
	EncodingTier       string             `json:"encoding_tier"`
	GeneratedSubtitles []subtitleSettings `json:"generated_subtitles"`
}

type subtitleSettings struct {
	LanguageCode string `json:"language_code"`
	Name         string `json:"name"`
}

type uploadEnvelope struct {
	Data struct {
		ID      string `json:"id"`
		URL     string `json:"url"`
		Status  string `json:"status"`
		AssetID string `json:"asset_id"`
	} `json:"data"`
}

type assetEnvelope struct {
	Data Asset `json:"data"`
}
