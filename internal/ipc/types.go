package ipc

// StartRequest triggers daemon workflow startup.
type StartRequest struct{}

// StartResponse indicates whether the daemon was started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest stops daemon workflow.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StepHealth describes readiness of a pipeline step.
type StepHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// StatusResponse represents combined daemon/workflow status information.
type StatusResponse struct {
	Running        bool           `json:"running"`
	StageStats     map[string]int `json:"stage_stats"`
	LastError      string         `json:"last_error"`
	LockPath       string         `json:"lock_path"`
	RegistryDBPath string         `json:"registry_db_path"`
	StepHealth     []StepHealth   `json:"step_health"`
	PID            int            `json:"pid"`
}

// VideoSummary mirrors the registry video record for IPC callers.
type VideoSummary struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Title        string `json:"title"`
	Committee    string `json:"committee"`
	PageURL      string `json:"page_url"`
	RecordedAt   string `json:"recorded_at"`
	StreamURL    string `json:"stream_url"`
	MediaPath    string `json:"media_path"`
	TranscriptID string `json:"transcript_id"`
	Stage        string `json:"stage"`
	AttemptCount int    `json:"attempt_count"`
	LeaseOwner   string `json:"lease_owner"`
	FailedStage  string `json:"failed_stage"`
	LastError    string `json:"last_error"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

// DiscoverRequest triggers a discovery sweep across enabled sources. A
// positive Days value overrides the configured lookback window.
type DiscoverRequest struct {
	Days int `json:"days"`
}

// SourceReport summarizes one source's outcome from a discovery sweep.
type SourceReport struct {
	Source string `json:"source"`
	Found  int    `json:"found"`
	New    int    `json:"new"`
	Error  string `json:"error,omitempty"`
}

// DiscoverResponse reports the discovery sweep outcome.
type DiscoverResponse struct {
	Summary    string         `json:"summary"`
	TotalFound int            `json:"total_found"`
	TotalNew   int            `json:"total_new"`
	PerSource  []SourceReport `json:"per_source"`
}

// QueueListRequest filters video listing by stage.
type QueueListRequest struct {
	Stages []string `json:"stages"`
}

// QueueListResponse contains video entries.
type QueueListResponse struct {
	Videos []VideoSummary `json:"videos"`
}

// QueueDescribeRequest fetches a single video by id.
type QueueDescribeRequest struct {
	ID string `json:"id"`
}

// QueueDescribeResponse contains a single video entry.
type QueueDescribeResponse struct {
	Video VideoSummary `json:"video"`
}

// QueueRetryRequest retries failed videos. Empty list means all failed videos.
type QueueRetryRequest struct {
	IDs []string `json:"ids"`
}

// QueueRetryResponse reports number of retried videos.
type QueueRetryResponse struct {
	Updated int64 `json:"updated"`
}

// QueueHealthRequest fetches aggregate diagnostics.
type QueueHealthRequest struct{}

// QueueHealthResponse reports registry health information.
type QueueHealthResponse struct {
	Total      int `json:"total"`
	Ready      int `json:"ready"`
	Processing int `json:"processing"`
	Failed     int `json:"failed"`
	Completed  int `json:"completed"`
}

// DatabaseHealthRequest fetches detailed database diagnostics.
type DatabaseHealthRequest struct{}

// DatabaseHealthResponse reports database health information.
type DatabaseHealthResponse struct {
	DBPath           string   `json:"db_path"`
	DatabaseExists   bool     `json:"database_exists"`
	DatabaseReadable bool     `json:"database_readable"`
	SchemaVersion    string   `json:"schema_version"`
	TableExists      bool     `json:"table_exists"`
	ColumnsPresent   []string `json:"columns_present"`
	MissingColumns   []string `json:"missing_columns"`
	IntegrityCheck   bool     `json:"integrity_check"`
	TotalVideos      int      `json:"total_videos"`
	Error            string   `json:"error"`
}

// SearchRequest queries the transcript index.
type SearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

// SearchHit is one transcript match joined with video metadata.
type SearchHit struct {
	TranscriptID string `json:"transcript_id"`
	VideoID      string `json:"video_id"`
	Title        string `json:"title"`
	Committee    string `json:"committee"`
	RecordedAt   string `json:"recorded_at"`
	Provider     string `json:"provider"`
	Snippet      string `json:"snippet"`
}

// SearchResponse contains transcript search matches.
type SearchResponse struct {
	Hits []SearchHit `json:"hits"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}

// LogTailRequest fetches daemon log lines based on offset and follow
// semantics. A negative offset requests the last Limit lines.
type LogTailRequest struct {
	Offset     int64 `json:"offset"`
	Limit      int   `json:"limit"`
	Follow     bool  `json:"follow"`
	WaitMillis int   `json:"wait_millis"`
}

// LogTailResponse returns log lines and the offset to resume from.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}
