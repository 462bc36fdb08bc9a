package domain

import "time"

// Audio sources served by the API.
const (
	SourceAudiobooks = "audiobooks"
	SourceObsidian   = "obsidian"
	SourceStandalone = "standalone"
)

// AudioSources lists the source names in the order they are reported.
var AudioSources = []string{SourceAudiobooks, SourceObsidian, SourceStandalone}

// AudiobookSummary is one entry in the audiobook listing.
type AudiobookSummary struct {
	BookID      string `json:"book_id"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	SourceFile  string `json:"source_file"`
	TotalChunks int    `json:"total_chunks"`
	ReadyChunks int    `json:"ready_chunks"`
	IsComplete  bool   `json:"is_complete"`
}

// AudioFile is a playable file within an audio source.
type AudioFile struct {
	Name            string  `json:"name"`
	Path            string  `json:"path,omitempty"`
	SizeBytes       int64   `json:"size_bytes"`
	Type            string  `json:"type"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	Format          string  `json:"format,omitempty"`
	Title           string  `json:"title,omitempty"`
}

// PDFInfo describes a document available for processing.
type PDFInfo struct {
	Filename  string  `json:"filename"`
	SizeBytes int64   `json:"size_bytes"`
	SizeMB    float64 `json:"size_mb"`
	Pages     int     `json:"pages,omitempty"`
}

// ProcessResult acknowledges a processing request.
type ProcessResult struct {
	Status   string `json:"status"`
	Filename string `json:"filename"`
	JobID    string `json:"job_id,omitempty"`
}

// ProcessingStarted is the status returned when processing was triggered.
const ProcessingStarted = "processing_started"

// Citation locates the sentence being read at a timestamp.
type Citation struct {
	Citation        string `json:"citation"`
	Timestamp       string `json:"timestamp"`
	Page            int    `json:"page"`
	Block           int    `json:"block"`
	SentenceInBlock int    `json:"sentence_in_block"`
	SentenceText    string `json:"sentence_text"`
}

// SearchHit is a chunk matching a text query.
type SearchHit struct {
	BookID    string  `json:"book_id"`
	ChunkID   int     `json:"chunk_id"`
	Filename  string  `json:"filename"`
	Page      int     `json:"page"`
	StartTime float64 `json:"start_time"`
	Snippet   string  `json:"snippet"`
	Score     float64 `json:"score"`
}

// JobStatus is the lifecycle state of a processing job.
type JobStatus string

// Job statuses.
const (
	JobPending   JobStatus = "pending"
	JobStarted   JobStatus = "started"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Job records one processing request forwarded to the pdf service.
type Job struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	BookID    string    `json:"book_id,omitempty"`
	Status    JobStatus `json:"status"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
