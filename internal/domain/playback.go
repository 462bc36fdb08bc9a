package domain

// Transport bounds enforced by the playback controller.
const (
	MinPlaybackRate = 0.5
	MaxPlaybackRate = 2.0
	MinVolume       = 0.0
	MaxVolume       = 1.0
)

// PlaybackMode selects whether finishing a chunk advances to the next one.
type PlaybackMode string

// Playback modes.
const (
	ModeSingle    PlaybackMode = "single"
	ModeSequenced PlaybackMode = "sequenced"
)

// PlaybackState is the controller-owned view of the transport.
// CurrentTime and Duration are relative to the loaded source;
// BookTime is CurrentTime offset by the chunk's start on the book timeline.
type PlaybackState struct {
	CurrentTime  float64      `json:"current_time"`
	Duration     float64      `json:"duration"`
	BookTime     float64      `json:"book_time"`
	IsPlaying    bool         `json:"is_playing"`
	PlaybackRate float64      `json:"playback_rate"`
	Volume       float64      `json:"volume"`
	IsLooping    bool         `json:"is_looping"`
	ChunkIndex   int          `json:"chunk_index"`
	Mode         PlaybackMode `json:"mode"`
	CanPlay      bool         `json:"can_play"`
	Source       string       `json:"source,omitempty"`
}

// FitMode is the automatic zoom strategy used when no explicit scale is set.
type FitMode string

// Fit modes.
const (
	FitWidth  FitMode = "width"
	FitHeight FitMode = "height"
)

// DocumentView is the synchronizer's page and zoom state.
// A nil Scale means fit to the container using FitMode.
type DocumentView struct {
	CurrentPage int      `json:"current_page"`
	TotalPages  int      `json:"total_pages"`
	Scale       *float64 `json:"scale,omitempty"`
	FitMode     FitMode  `json:"fit_mode"`
	IsRendering bool     `json:"is_rendering"`
	PendingPage *int     `json:"pending_page,omitempty"`
}
