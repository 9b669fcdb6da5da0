package registry

import (
	"strings"
	"time"
)

// Source identifies which chamber archive a video was discovered from.
type Source string

const (
	SourceHouse  Source = "house"
	SourceSenate Source = "senate"
)

var allSources = []Source{SourceHouse, SourceSenate}

// AllSources returns the ordered list of known sources.
func AllSources() []Source {
	cp := make([]Source, len(allSources))
	copy(cp, allSources)
	return cp
}

// ParseSource converts a string into a known Source.
func ParseSource(value string) (Source, bool) {
	normalized := Source(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case SourceHouse, SourceSenate:
		return normalized, true
	default:
		return "", false
	}
}

// VideoID derives the stable registry identifier for a source item. The same
// source item always maps to the same ID, which is what makes discovery
// idempotent across runs.
func VideoID(source Source, naturalKey string) string {
	return string(source) + ":" + strings.TrimSpace(naturalKey)
}

// Stage represents the lifecycle of a video in the processing pipeline.
type Stage string

const (
	StageDiscovered   Stage = "discovered"
	StageResolving    Stage = "resolving"
	StageResolved     Stage = "resolved"
	StageDownloading  Stage = "downloading"
	StageDownloaded   Stage = "downloaded"
	StageTranscribing Stage = "transcribing"
	StageTranscribed  Stage = "transcribed"
	StageFailed       Stage = "failed"
)

var allStages = []Stage{
	StageDiscovered,
	StageResolving,
	StageResolved,
	StageDownloading,
	StageDownloaded,
	StageTranscribing,
	StageTranscribed,
	StageFailed,
}

var stageSet = func() map[Stage]struct{} {
	set := make(map[Stage]struct{}, len(allStages))
	for _, stage := range allStages {
		set[stage] = struct{}{}
	}
	return set
}()

var inProgressStages = map[Stage]struct{}{
	StageResolving:    {},
	StageDownloading:  {},
	StageTranscribing: {},
}

var readyStages = map[Stage]struct{}{
	StageDiscovered: {},
	StageResolved:   {},
	StageDownloaded: {},
}

type stageTransition struct {
	from Stage
	to   Stage
}

// stageClaimTransitions map each ready stage to the in-progress stage a claim
// moves it into.
var stageClaimTransitions = []stageTransition{
	{from: StageDiscovered, to: StageResolving},
	{from: StageResolved, to: StageDownloading},
	{from: StageDownloaded, to: StageTranscribing},
}

// stageAdvanceTransitions map each in-progress stage to the ready (or
// terminal) stage a successful commit moves it into.
var stageAdvanceTransitions = []stageTransition{
	{from: StageResolving, to: StageResolved},
	{from: StageDownloading, to: StageDownloaded},
	{from: StageTranscribing, to: StageTranscribed},
}

// stageRollbackTransitions map each in-progress stage back to the ready stage
// a failure or lease reclaim returns it to.
var stageRollbackTransitions = []stageTransition{
	{from: StageResolving, to: StageDiscovered},
	{from: StageDownloading, to: StageResolved},
	{from: StageTranscribing, to: StageDownloaded},
}

func lookupTransition(transitions []stageTransition, from Stage) (Stage, bool) {
	for _, tr := range transitions {
		if tr.from == from {
			return tr.to, true
		}
	}
	return "", false
}

// ClaimStageFor returns the in-progress stage a claim on the given ready stage
// moves a video into.
func ClaimStageFor(ready Stage) (Stage, bool) {
	return lookupTransition(stageClaimTransitions, ready)
}

// AdvanceStageFor returns the stage a successful commit moves the given
// in-progress stage into.
func AdvanceStageFor(active Stage) (Stage, bool) {
	return lookupTransition(stageAdvanceTransitions, active)
}

// RollbackStageFor returns the ready stage a failed or reclaimed in-progress
// stage falls back to.
func RollbackStageFor(active Stage) (Stage, bool) {
	return lookupTransition(stageRollbackTransitions, active)
}

// AllStages returns the ordered list of known stages.
func AllStages() []Stage {
	cp := make([]Stage, len(allStages))
	copy(cp, allStages)
	return cp
}

// ParseStage converts a string into a known Stage.
func ParseStage(value string) (Stage, bool) {
	normalized := Stage(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := stageSet[normalized]
	return normalized, ok
}

// IsInProgress reports whether the stage reflects a leased, in-flight step.
func (s Stage) IsInProgress() bool {
	_, ok := inProgressStages[s]
	return ok
}

// IsReady reports whether the stage is waiting to be claimed by a worker.
func (s Stage) IsReady() bool {
	_, ok := readyStages[s]
	return ok
}

// IsTerminal reports whether the stage ends the pipeline for a video.
func (s Stage) IsTerminal() bool {
	return s == StageTranscribed || s == StageFailed
}

// Video represents one discovered recording and its pipeline state.
type Video struct {
	ID             string
	Source         Source
	Title          string
	Committee      string
	PageURL        string
	RecordedAt     time.Time
	StreamURL      string
	MediaPath      string
	TranscriptID   string
	Stage          Stage
	AttemptCount   int
	StageEnteredAt time.Time
	LeaseOwner     string
	LeasedAt       *time.Time
	FailedStage    Stage
	LastError      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsProcessing reports whether the video currently holds a lease.
func (v Video) IsProcessing() bool {
	return v.Stage.IsInProgress()
}

// Transcript is a finished transcription result tied to a video.
type Transcript struct {
	ID           string
	VideoID      string
	Provider     string
	Content      string
	SegmentsJSON string
	VTTPath      string
	CreatedAt    time.Time
}

// SearchHit is one transcript search result joined with its video metadata.
type SearchHit struct {
	TranscriptID string
	VideoID      string
	Title        string
	Committee    string
	RecordedAt   time.Time
	Provider     string
	Snippet      string
}

// HealthSummary describes aggregated registry counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Ready      int
	Processing int
	Failed     int
	Completed  int
}

// DatabaseHealth captures diagnostic information about the registry database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    string
	TableExists      bool
	ColumnsPresent   []string
	MissingColumns   []string
	IntegrityCheck   bool
	TotalVideos      int
	Error            string
}
