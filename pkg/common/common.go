package common

import "time"

// FileType is the format family of an uploaded document.
type FileType string

const (
	FileTypeExcel FileType = "excel"
	FileTypeWord  FileType = "word"
	FileTypePDF   FileType = "pdf"
	FileTypeTxt   FileType = "txt"
)

// TaskType records how a build task was started. Uploads through the HTTP
// interface always produce user_confirmed tasks; auto_extract is kept for
// tasks created by tooling that skips the review step.
type TaskType string

const (
	TaskTypeAutoExtract   TaskType = "auto_extract"
	TaskTypeUserConfirmed TaskType = "user_confirmed"
)

// OntologyMode selects whether extraction invents its own types (auto) or is
// steered by a stored ontology library (existing).
type OntologyMode string

const (
	OntologyModeAuto     OntologyMode = "auto"
	OntologyModeExisting OntologyMode = "existing"
)

// BuildTask is the unit of work of the pipeline. It carries a document batch
// from upload through extraction and alignment to the graph build, and it is
// the only place where progress, drafts and errors of a run are recorded.
//
// A task belongs to exactly one worker at a time; the stored record is the
// coordination point between the upload handler, the background worker and
// the confirm handler.
type BuildTask struct {
	ID                string           `json:"id"`
	TaskType          TaskType         `json:"taskType"`
	Status            TaskStatus       `json:"status"`
	Progress          int              `json:"progress"`
	StageMessage      string           `json:"stageMessage"`
	ErrorMessage      string           `json:"errorMessage,omitempty"`
	Files             []TaskFile       `json:"files"`
	OntologyMode      OntologyMode     `json:"ontologyMode"`
	OntologyID        string           `json:"ontologyId,omitempty"`
	DraftOntology     Ontology         `json:"draftOntology"`
	DraftEntities     []DraftEntity    `json:"draftEntities"`
	DraftRelations    []DraftRelation  `json:"draftRelations"`
	UserModifications *Modifications   `json:"userModifications,omitempty"`
	BuildStats        BuildStats       `json:"buildStats"`
	ExtractionMeta    *ExtractionMeta  `json:"extractionMeta,omitempty"`
	ExtractionDebug   *ExtractionDebug `json:"extractionDebug,omitempty"`
	CreatedBy         string           `json:"createdBy"`
	CreatedAt         time.Time        `json:"createdAt"`
	UpdatedAt         time.Time        `json:"updatedAt"`
	ConfirmedAt       *time.Time       `json:"confirmedAt,omitempty"`
	CompletedAt       *time.Time       `json:"completedAt,omitempty"`
}

// FileIDs returns the ids of all files attached to the task, in upload order.
func (t *BuildTask) FileIDs() []string {
	ids := make([]string, 0, len(t.Files))
	for _, f := range t.Files {
		ids = append(ids, f.FileID)
	}
	return ids
}

// TaskFile references an uploaded file from a task.
type TaskFile struct {
	FileID   string `json:"fileId"`
	Filename string `json:"filename"`
}

// TaskUpdate is a partial update of a task. Nil fields are left untouched.
type TaskUpdate struct {
	Status            *TaskStatus
	Progress          *int
	StageMessage      *string
	ErrorMessage      *string
	DraftOntology     *Ontology
	DraftEntities     *[]DraftEntity
	DraftRelations    *[]DraftRelation
	UserModifications *Modifications
	BuildStats        *BuildStats
	ExtractionMeta    *ExtractionMeta
	ExtractionDebug   *ExtractionDebug
	ConfirmedAt       *time.Time
	CompletedAt       *time.Time
}

// Apply copies the set fields of u onto t.
func (u TaskUpdate) Apply(t *BuildTask) {
	if u.Status != nil {
		t.Status = *u.Status
	}
	if u.Progress != nil {
		t.Progress = *u.Progress
	}
	if u.StageMessage != nil {
		t.StageMessage = *u.StageMessage
	}
	if u.ErrorMessage != nil {
		t.ErrorMessage = *u.ErrorMessage
	}
	if u.DraftOntology != nil {
		t.DraftOntology = *u.DraftOntology
	}
	if u.DraftEntities != nil {
		t.DraftEntities = *u.DraftEntities
	}
	if u.DraftRelations != nil {
		t.DraftRelations = *u.DraftRelations
	}
	if u.UserModifications != nil {
		m := *u.UserModifications
		t.UserModifications = &m
	}
	if u.BuildStats != nil {
		t.BuildStats = *u.BuildStats
	}
	if u.ExtractionMeta != nil {
		m := *u.ExtractionMeta
		t.ExtractionMeta = &m
	}
	if u.ExtractionDebug != nil {
		d := *u.ExtractionDebug
		t.ExtractionDebug = &d
	}
	if u.ConfirmedAt != nil {
		ts := *u.ConfirmedAt
		t.ConfirmedAt = &ts
	}
	if u.CompletedAt != nil {
		ts := *u.CompletedAt
		t.CompletedAt = &ts
	}
}

// Ontology is the set of entity and relation types of a draft.
type Ontology struct {
	EntityTypes   []EntityType   `json:"entityTypes"`
	RelationTypes []RelationType `json:"relationTypes"`
}

type EntityType struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// RelationType is keyed by (Name, SourceType, TargetType): the same verb may
// connect several pairs of entity types.
type RelationType struct {
	Name        string `json:"name"`
	SourceType  string `json:"sourceType,omitempty"`
	TargetType  string `json:"targetType,omitempty"`
	Description string `json:"description,omitempty"`
}

// DraftEntity is an entity proposed by extraction and reviewed by a user
// before it is written to the graph.
type DraftEntity struct {
	ID                  string              `json:"id"`
	Name                string              `json:"name"`
	Type                string              `json:"type"`
	Properties          Properties          `json:"properties"`
	SourceFile          string              `json:"sourceFile,omitempty"`
	SourceContext       string              `json:"sourceContext"`
	Confidence          float64             `json:"confidence"`
	AlignmentSuggestion AlignmentSuggestion `json:"alignmentSuggestion"`
}

// DraftRelation links two draft entities by name.
type DraftRelation struct {
	ID            string     `json:"id"`
	Source        string     `json:"source"`
	Target        string     `json:"target"`
	RelationType  string     `json:"relationType"`
	Properties    Properties `json:"properties"`
	Confidence    float64    `json:"confidence"`
	SourceContext string     `json:"sourceContext"`
}

// AlignmentKind is the verdict of entity alignment.
type AlignmentKind string

const (
	AlignmentKindNew       AlignmentKind = "new"
	AlignmentKindMerge     AlignmentKind = "merge"
	AlignmentKindCandidate AlignmentKind = "candidate"
)

// AlignmentCandidate is a similar entity found during alignment.
type AlignmentCandidate struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Similarity float64 `json:"similarity"`
}

// AlignmentSuggestion is a tagged variant: TargetEntity is only set for
// merge, Candidates only for candidate. The zero value reads as new.
type AlignmentSuggestion struct {
	Type         AlignmentKind        `json:"type"`
	TargetEntity *AlignmentCandidate  `json:"targetEntity,omitempty"`
	Candidates   []AlignmentCandidate `json:"candidates,omitempty"`
}

func NewSuggestion() AlignmentSuggestion {
	return AlignmentSuggestion{Type: AlignmentKindNew}
}

func MergeSuggestion(target AlignmentCandidate) AlignmentSuggestion {
	return AlignmentSuggestion{Type: AlignmentKindMerge, TargetEntity: &target}
}

func CandidateSuggestion(candidates []AlignmentCandidate) AlignmentSuggestion {
	return AlignmentSuggestion{Type: AlignmentKindCandidate, Candidates: candidates}
}

// Kind normalises the empty type to new.
func (a AlignmentSuggestion) Kind() AlignmentKind {
	if a.Type == "" {
		return AlignmentKindNew
	}
	return a.Type
}

// MergeTarget returns the entity to merge into, if the suggestion is a merge.
func (a AlignmentSuggestion) MergeTarget() (AlignmentCandidate, bool) {
	if a.Type != AlignmentKindMerge || a.TargetEntity == nil || a.TargetEntity.ID == "" {
		return AlignmentCandidate{}, false
	}
	return *a.TargetEntity, true
}

// BuildStats summarises a finished graph build.
type BuildStats struct {
	EntityCount   int `json:"entityCount"`
	RelationCount int `json:"relationCount"`
	MergedCount   int `json:"mergedCount"`
}

// ExtractionMeta describes one extraction run.
type ExtractionMeta struct {
	Model         string     `json:"model"`
	FileCount     int        `json:"fileCount"`
	InputChars    int        `json:"inputChars"`
	ChunkCount    int        `json:"chunkCount"`
	EntityCount   int        `json:"entityCount"`
	RelationCount int        `json:"relationCount"`
	StartedAt     *time.Time `json:"startedAt,omitempty"`
	FinishedAt    *time.Time `json:"finishedAt,omitempty"`
}

// ExtractionDebug keeps what is needed to diagnose an undecodable model reply.
type ExtractionDebug struct {
	ParseError string `json:"parseError,omitempty"`
	RawPreview string `json:"rawPreview,omitempty"`
	RawLength  *int   `json:"rawLength,omitempty"`
	ChunkIndex *int   `json:"chunkIndex,omitempty"`
	ChunkCount *int   `json:"chunkCount,omitempty"`
}
