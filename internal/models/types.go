package models

import (
	"sync"
	"time"
)

// DocType identifies one of the four document kinds in the hierarchy.
type DocType string

const (
	DocTypeRepoSummary   DocType = "repo_summary"
	DocTypeModuleSummary DocType = "module_summary"
	DocTypeFileIndex     DocType = "file_index"
	DocTypeSymbolIndex   DocType = "symbol_index"
)

// ParentType returns the document kind expected at parent_id, or "" for roots.
func (t DocType) ParentType() DocType {
	switch t {
	case DocTypeModuleSummary:
		return DocTypeRepoSummary
	case DocTypeFileIndex:
		return DocTypeModuleSummary
	case DocTypeSymbolIndex:
		return DocTypeFileIndex
	default:
		return ""
	}
}

// SymbolKind classifies a symbol_index document.
type SymbolKind string

const (
	SymbolKindFunction SymbolKind = "function"
	SymbolKindClass    SymbolKind = "class"
	SymbolKindMethod   SymbolKind = "method"
)

// Document is the persistent record stored for every node of the hierarchy.
// Raw source code is never stored; only the summary and provenance metadata.
type Document struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	RepoID      string    `json:"repo_id"`
	Type        DocType   `json:"type"`
	SummaryText string    `json:"summary_text"`
	Embedding   []float32 `json:"embedding,omitempty"`
	ParentID    string    `json:"parent_id,omitempty"`
	ChildrenIDs []string  `json:"children_ids,omitempty"`
	ContentHash string    `json:"content_hash"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// module_summary and file_index
	Path string `json:"path,omitempty"`

	// file_index
	Language   string `json:"language,omitempty"`
	LineCount  int    `json:"line_count,omitempty"`
	FileCommit string `json:"file_commit,omitempty"`

	// symbol_index
	SymbolName  string     `json:"symbol_name,omitempty"`
	SymbolKind  SymbolKind `json:"symbol_kind,omitempty"`
	StartLine   int        `json:"start_line,omitempty"`
	EndLine     int        `json:"end_line,omitempty"`
	ParentClass string     `json:"parent_class,omitempty"`

	// repo_summary
	Languages []string       `json:"languages,omitempty"`
	DocCounts map[string]int `json:"doc_counts,omitempty"`

	// Degradation flags. A degraded document is still a valid document.
	SummaryDegraded      bool `json:"summary_degraded,omitempty"`
	AggregationTruncated bool `json:"aggregation_truncated,omitempty"`
	ParseDegraded        bool `json:"parse_degraded,omitempty"`
}

// ChunkKind identifies what a raw chunk represents.
type ChunkKind string

const (
	ChunkKindMetadata  ChunkKind = "metadata"
	ChunkKindWholeFile ChunkKind = "whole_file"
	ChunkKindSymbol    ChunkKind = "symbol"
)

// Chunk is a source span produced by the walker. A symbol chunk becomes at
// most one symbol document; metadata and whole-file chunks feed the file
// summary only.
type Chunk struct {
	Path         string     `json:"path"`
	Language     string     `json:"language"`
	StartLine    int        `json:"start_line"`
	EndLine      int        `json:"end_line"`
	Kind         ChunkKind  `json:"kind"`
	SymbolName   string     `json:"symbol_name,omitempty"`
	SymbolKind   SymbolKind `json:"symbol_kind,omitempty"`
	ParentSymbol string     `json:"parent_symbol,omitempty"`
	Docstring    string     `json:"docstring,omitempty"`
	Decorators   []string   `json:"decorators,omitempty"`
	Parameters   []string   `json:"parameters,omitempty"`
	Content      string     `json:"content"`
	Truncated    bool       `json:"truncated,omitempty"`

	// metadata chunk only
	FunctionCount int `json:"function_count,omitempty"`
	ClassCount    int `json:"class_count,omitempty"`
}

// FileChunks groups every chunk emitted for one retained file.
type FileChunks struct {
	Path          string
	Language      string
	Commit        string
	LineCount     int
	ParseDegraded bool
	Chunks        []Chunk
}

// SearchLevel is the document kind targeted by a query. "doc" routes to
// module-level documents for conceptual questions.
type SearchLevel string

const (
	LevelSymbol SearchLevel = "symbol"
	LevelFile   SearchLevel = "file"
	LevelModule SearchLevel = "module"
	LevelRepo   SearchLevel = "repo"
	LevelDoc    SearchLevel = "doc"
)

// DocType maps a search level to the stored document kind.
func (l SearchLevel) DocType() DocType {
	switch l {
	case LevelSymbol:
		return DocTypeSymbolIndex
	case LevelModule, LevelDoc:
		return DocTypeModuleSummary
	case LevelRepo:
		return DocTypeRepoSummary
	default:
		return DocTypeFileIndex
	}
}

// SearchRequest carries one retrieval query.
type SearchRequest struct {
	TenantID    string      `json:"tenant_id"`
	QueryText   string      `json:"query_text"`
	Level       SearchLevel `json:"level,omitempty"`
	Limit       int         `json:"limit"`
	RepoFilter  string      `json:"repo_filter,omitempty"`
	PreviewMode bool        `json:"preview_mode,omitempty"`
}

// SearchHit is one scored result.
type SearchHit struct {
	Document Document `json:"document"`
	Score    float64  `json:"score"`
}

// JobKind distinguishes a full re-ingestion from an incremental run.
type JobKind string

const (
	JobKindFull        JobKind = "full"
	JobKindIncremental JobKind = "incremental"
)

// JobState is the lifecycle state of an ingestion job.
type JobState string

const (
	JobStateQueued    JobState = "queued"
	JobStateRunning   JobState = "running"
	JobStateCompleted JobState = "completed"
	JobStateFailed    JobState = "failed"
	JobStateCancelled JobState = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s JobState) Terminal() bool {
	return s == JobStateCompleted || s == JobStateFailed || s == JobStateCancelled
}

// Progress is reported at file boundaries while a job runs.
type Progress struct {
	TotalFiles     int    `json:"total_files"`
	ProcessedFiles int    `json:"processed_files"`
	SkippedFiles   int    `json:"skipped_files"`
	TotalChunks    int    `json:"total_chunks"`
	CurrentFile    string `json:"current_file"`
}

// Job is one ingestion run for a (tenant, repo) pair.
// The mutex protects State and Progress from concurrent access by the
// pipeline workers and status readers.
type Job struct {
	mu        sync.Mutex
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	RepoID    string    `json:"repo_id"`
	Kind      JobKind   `json:"kind"`
	State     JobState  `json:"state"`
	Progress  Progress  `json:"progress"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	StartedAt time.Time `json:"started_at,omitzero"`
	EndedAt   time.Time `json:"ended_at,omitzero"`
}

// SetState transitions the job state unless it is already terminal.
func (j *Job) SetState(s JobState) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.State.Terminal() {
		return
	}
	j.State = s
}

// GetState returns the current state.
func (j *Job) GetState() JobState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.State
}

// SetError records a failure message.
func (j *Job) SetError(msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Error = msg
}

// UpdateProgress replaces the progress snapshot.
func (j *Job) UpdateProgress(p Progress) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress = p
}

// GetProgress returns the current progress snapshot.
func (j *Job) GetProgress() Progress {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.Progress
}

// SetStarted records the running start time.
func (j *Job) SetStarted(t time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.StartedAt = t
}

// SetEnded records the terminal time.
func (j *Job) SetEnded(t time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.EndedAt = t
}

// JobSnapshot is a copy of a job safe to serialize while the job runs.
type JobSnapshot struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	RepoID    string    `json:"repo_id"`
	Kind      JobKind   `json:"kind"`
	State     JobState  `json:"state"`
	Progress  Progress  `json:"progress"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	StartedAt time.Time `json:"started_at,omitzero"`
	EndedAt   time.Time `json:"ended_at,omitzero"`
}

// Snapshot copies the job under its lock.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return JobSnapshot{
		ID:        j.ID,
		TenantID:  j.TenantID,
		RepoID:    j.RepoID,
		Kind:      j.Kind,
		State:     j.State,
		Progress:  j.Progress,
		Error:     j.Error,
		CreatedAt: j.CreatedAt,
		StartedAt: j.StartedAt,
		EndedAt:   j.EndedAt,
	}
}
