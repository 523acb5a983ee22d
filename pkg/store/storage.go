package store

import (
	"context"
	"errors"
	"time"

	"github.com/OFFIS-RIT/kgbuilder/pkg/common"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// TaskStore persists build tasks.
type TaskStore interface {
	GetTask(ctx context.Context, id string) (*common.BuildTask, error)
	UpdateTask(ctx context.Context, id string, update common.TaskUpdate) error
}

// FileStore persists uploaded file records.
type FileStore interface {
	GetFile(ctx context.Context, id string) (*common.FileUpload, error)
	UpdateFile(ctx context.Context, id string, update common.FileUpdate) error
}

// OntologyStore reads ontology libraries.
type OntologyStore interface {
	GetOntology(ctx context.Context, id string) (*common.OntologyLibrary, error)
	GetDefaultOntology(ctx context.Context) (*common.OntologyLibrary, error)
}

// EntityNode is an entity as stored in the graph.
type EntityNode struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Type        string            `json:"type"`
	Properties  common.Properties `json:"properties"`
	SourceFiles []string          `json:"sourceFiles"`
	Version     int               `json:"version"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// EntityWrite is the input of an entity upsert. Properties already include
// name and type.
type EntityWrite struct {
	ID         string
	Name       string
	Type       string
	Properties common.Properties
	FileIDs    []string
}

// UpsertResult tells whether an upsert created the node.
type UpsertResult struct {
	Created bool
}

// RelationWrite is the input of a relation upsert between two node ids.
type RelationWrite struct {
	SourceID   string
	TargetID   string
	Type       string
	Properties common.Properties
	Confidence float64
}

// GraphEdge is a relation as returned by graph reads.
type GraphEdge struct {
	Source     string            `json:"source"`
	Target     string            `json:"target"`
	Type       string            `json:"type"`
	Properties common.Properties `json:"properties"`
	Confidence float64           `json:"confidence"`
}

// GraphView is a subgraph: nodes and the edges among them.
type GraphView struct {
	Nodes []EntityNode `json:"nodes"`
	Edges []GraphEdge  `json:"edges"`
}

// TypeCount is one bucket of the entity type distribution.
type TypeCount struct {
	Type  string `json:"type"`
	Count int64  `json:"count"`
}

// GraphStats summarises the whole graph.
type GraphStats struct {
	EntityCount      int64       `json:"entityCount"`
	RelationCount    int64       `json:"relationCount"`
	TypeDistribution []TypeCount `json:"typeDistribution"`
}

// GraphStorage is the property graph backend.
//
// Upserts are idempotent: writing the same entity twice for the same files
// leaves one node whose sourceFiles hold each file once. DeleteByFiles
// removes file references and deletes nodes left without any.
type GraphStorage interface {
	UpsertEntity(ctx context.Context, w EntityWrite) (UpsertResult, error)
	UpsertRelation(ctx context.Context, w RelationWrite) error
	QueryGraph(ctx context.Context, filter GraphFilter) (*GraphView, error)
	EntityNetwork(ctx context.Context, entityID string, depth int) (*GraphView, error)
	Stats(ctx context.Context) (*GraphStats, error)
	DeleteByFiles(ctx context.Context, fileIDs []string) error
	Close(ctx context.Context) error
}

// DefaultRelationType labels edges stored without a type.
const DefaultRelationType = "关联"

// DefaultConfidence is used for relations written without a confidence.
const DefaultConfidence = 0.8
