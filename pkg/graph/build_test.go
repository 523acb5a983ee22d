package graph

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/OFFIS-RIT/kgbuilder/pkg/common"
	"github.com/OFFIS-RIT/kgbuilder/pkg/store"
)

func confirmingTask() *common.BuildTask {
	merge := func(id, name string) common.AlignmentSuggestion {
		return common.MergeSuggestion(common.AlignmentCandidate{ID: id, Name: name, Similarity: 0.95})
	}
	task := newTask("t1", common.TaskStatusConfirming, "f1")
	task.Progress = 90
	task.DraftEntities = []common.DraftEntity{
		{ID: "e0", Name: "吊车", Type: "设备", Properties: common.NewProperties("吨位", 25), AlignmentSuggestion: merge("e1", "汽车吊")},
		{ID: "e1", Name: "汽车吊", Type: "设备", AlignmentSuggestion: merge("e0", "吊车")},
		{ID: "e2", Name: "张三", Type: "人员", AlignmentSuggestion: common.NewSuggestion()},
		{ID: "e3", Name: "叉车", Type: "设备", AlignmentSuggestion: common.CandidateSuggestion([]common.AlignmentCandidate{{ID: "e0", Name: "吊车", Similarity: 0.8}})},
	}
	task.DraftRelations = []common.DraftRelation{
		{ID: "r0", Source: "张三", Target: "吊车", RelationType: "操作", Confidence: 0.9},
		{ID: "r1", Source: "张三", Target: "e3", RelationType: "操作"},
		{ID: "r2", Source: "张三", Target: "不存在", RelationType: "操作"},
	}
	return task
}

func TestBuildGraph(t *testing.T) {
	env := newTestEnv(t, nil, nil, confirmingTask())
	env.files.files["f1"] = &common.FileUpload{ID: "f1", Status: common.FileStatusCompleted}
	ctx := context.Background()

	mods := common.Modifications{
		AddedEntities:  []common.DraftEntity{{ID: "e4", Name: "安全部", Type: "部门"}},
		AddedRelations: []common.DraftRelation{{ID: "r3", Source: "张三", Target: "安全部", RelationType: "隶属"}},
	}
	res, err := env.client.BuildGraph(ctx, "t1", mods)
	if err != nil {
		t.Fatalf("BuildGraph: %v", err)
	}
	want := BuildResult{
		EntityCount:      5,
		RelationCount:    3,
		Stats:            BuildEntityStats{NewEntities: 2, MergedEntities: 2, UpdatedEntities: 1},
		SkippedRelations: 1,
	}
	if *res != want {
		t.Fatalf("result = %+v, want %+v", *res, want)
	}

	task := env.tasks.task(t, "t1")
	if task.Status != common.TaskStatusCompleted || task.Progress != 100 || task.StageMessage != msgCompleted {
		t.Fatalf("task state = %s/%d/%q", task.Status, task.Progress, task.StageMessage)
	}
	if task.BuildStats != (common.BuildStats{EntityCount: 5, RelationCount: 3, MergedCount: 2}) {
		t.Fatalf("build stats = %+v", task.BuildStats)
	}
	if task.UserModifications == nil || len(task.UserModifications.AddedEntities) != 1 {
		t.Fatalf("modifications not stored: %+v", task.UserModifications)
	}
	if task.ConfirmedAt == nil || task.CompletedAt == nil {
		t.Fatal("timestamps not stored")
	}
	if !slices.Equal(env.tasks.statuses, []common.TaskStatus{common.TaskStatusBuilding, common.TaskStatusCompleted}) {
		t.Fatalf("status history = %v", env.tasks.statuses)
	}
	if f := env.files.files["f1"]; f.ProcessedTime == nil {
		t.Fatal("file processed time not set")
	}

	view, err := env.graph.QueryGraph(ctx, store.GraphFilter{})
	if err != nil {
		t.Fatalf("QueryGraph: %v", err)
	}
	nodes := make(map[string]store.EntityNode)
	for _, n := range view.Nodes {
		nodes[n.ID] = n
	}
	if len(nodes) != 4 {
		t.Fatalf("got %d nodes, want 4: %+v", len(nodes), view.Nodes)
	}
	crane := nodes["e0"]
	if crane.Version != 2 || !slices.Equal(crane.SourceFiles, []string{"f1"}) {
		t.Fatalf("merged node = %+v", crane)
	}
	if crane.Properties.Text("吨位") != "25" {
		t.Fatalf("merged node lost properties: %v", crane.Properties.Map())
	}
	if _, ok := nodes["e1"]; ok {
		t.Fatal("merged entity written as its own node")
	}

	type edge struct{ Source, Target, Type string }
	var edges []edge
	for _, e := range view.Edges {
		edges = append(edges, edge{e.Source, e.Target, e.Type})
	}
	for _, w := range []edge{{"e2", "e0", "操作"}, {"e2", "e3", "操作"}, {"e2", "e4", "隶属"}} {
		if !slices.Contains(edges, w) {
			t.Fatalf("edge %+v missing from %+v", w, edges)
		}
	}
}

func TestWriteGraph_RepeatedWriteIsIdempotent(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	ctx := context.Background()
	task := confirmingTask()
	mods := common.Modifications{
		AddedEntities:  []common.DraftEntity{{ID: "e4", Name: "安全部", Type: "部门"}},
		AddedRelations: []common.DraftRelation{{ID: "r3", Source: "张三", Target: "安全部", RelationType: "隶属"}},
	}
	entities, relations := ApplyModifications(task.DraftEntities, task.DraftRelations, mods)

	var counts []store.GraphStats
	for range 2 {
		if _, err := env.client.writeGraph(ctx, entities, relations, []string{"f1"}); err != nil {
			t.Fatalf("writeGraph: %v", err)
		}
		stats, err := env.graph.Stats(ctx)
		if err != nil {
			t.Fatalf("Stats: %v", err)
		}
		counts = append(counts, *stats)
	}
	if counts[0].EntityCount != 4 || counts[0].RelationCount != 3 {
		t.Fatalf("first write = %d entities, %d relations", counts[0].EntityCount, counts[0].RelationCount)
	}
	if counts[1].EntityCount != counts[0].EntityCount || counts[1].RelationCount != counts[0].RelationCount {
		t.Fatalf("second write grew the graph: %+v -> %+v", counts[0], counts[1])
	}

	view, err := env.graph.QueryGraph(ctx, store.GraphFilter{})
	if err != nil {
		t.Fatalf("QueryGraph: %v", err)
	}
	for _, n := range view.Nodes {
		if !slices.Equal(n.SourceFiles, []string{"f1"}) {
			t.Fatalf("node %s source files = %v", n.ID, n.SourceFiles)
		}
	}
}

func TestBuildGraph_AppliesDeletions(t *testing.T) {
	env := newTestEnv(t, nil, nil, confirmingTask())
	ctx := context.Background()

	mods := common.Modifications{DeletedEntityIDs: []string{"e3"}, DeletedRelationIDs: []string{"r1", "r2"}}
	res, err := env.client.BuildGraph(ctx, "t1", mods)
	if err != nil {
		t.Fatalf("BuildGraph: %v", err)
	}
	if res.EntityCount != 3 || res.RelationCount != 1 || res.SkippedRelations != 0 {
		t.Fatalf("result = %+v", res)
	}
	stats, err := env.graph.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.EntityCount != 2 || stats.RelationCount != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestBuildGraph_DeletedMergeTarget(t *testing.T) {
	task := newTask("t1", common.TaskStatusConfirming, "f1")
	task.DraftEntities = []common.DraftEntity{
		{ID: "e1", Name: "吊车", Type: "设备"},
		{ID: "e2", Name: "汽车吊", Type: "设备", AlignmentSuggestion: common.MergeSuggestion(common.AlignmentCandidate{ID: "e1", Name: "吊车"})},
		{ID: "e3", Name: "张三", Type: "人员"},
	}
	task.DraftRelations = []common.DraftRelation{
		{ID: "r1", Source: "张三", Target: "e1", RelationType: "操作"},
		{ID: "r2", Source: "张三", Target: "汽车吊", RelationType: "操作"},
	}
	env := newTestEnv(t, nil, nil, task)
	ctx := context.Background()

	res, err := env.client.BuildGraph(ctx, "t1", common.Modifications{DeletedEntityIDs: []string{"e1"}})
	if err != nil {
		t.Fatalf("BuildGraph: %v", err)
	}
	if res.EntityCount != 2 || res.RelationCount != 1 || res.SkippedRelations != 1 {
		t.Fatalf("result = %+v", res)
	}
	if res.Stats.NewEntities != 2 || res.Stats.MergedEntities != 0 {
		t.Fatalf("stats = %+v", res.Stats)
	}

	view, err := env.graph.QueryGraph(ctx, store.GraphFilter{})
	if err != nil {
		t.Fatalf("QueryGraph: %v", err)
	}
	var ids []string
	for _, n := range view.Nodes {
		ids = append(ids, n.ID)
	}
	slices.Sort(ids)
	if !slices.Equal(ids, []string{"e2", "e3"}) {
		t.Fatalf("node ids = %v, want [e2 e3]", ids)
	}
	if len(view.Edges) != 1 || view.Edges[0].Source != "e3" || view.Edges[0].Target != "e2" {
		t.Fatalf("edges = %+v", view.Edges)
	}
}

func TestBuildGraph_WrongState(t *testing.T) {
	task := confirmingTask()
	task.Status = common.TaskStatusAligning
	env := newTestEnv(t, nil, nil, task)

	_, err := env.client.BuildGraph(context.Background(), "t1", common.Modifications{})
	if !errors.Is(err, ErrInvalidTaskState) {
		t.Fatalf("error = %v, want ErrInvalidTaskState", err)
	}
	if got := env.tasks.task(t, "t1").Status; got != common.TaskStatusAligning {
		t.Fatalf("status changed to %s", got)
	}
}

type failingGraph struct {
	store.GraphStorage
	err error
}

func (f failingGraph) UpsertEntity(context.Context, store.EntityWrite) (store.UpsertResult, error) {
	return store.UpsertResult{}, f.err
}

func TestBuildGraph_BackendFailure(t *testing.T) {
	env := newTestEnv(t, nil, nil, confirmingTask())
	backendErr := &store.BackendError{Kind: store.BackendUnavailable, Message: "图数据库不可用", Err: errors.New("dial tcp: refused")}
	env.client.graph = failingGraph{GraphStorage: env.graph, err: backendErr}

	_, err := env.client.BuildGraph(context.Background(), "t1", common.Modifications{})
	var failed *TaskFailedError
	if !errors.As(err, &failed) || failed.Stage != "build" {
		t.Fatalf("error = %v, want *TaskFailedError", err)
	}
	var be *store.BackendError
	if !errors.As(err, &be) || !be.Unavailable() {
		t.Fatalf("error = %v, want unavailable *store.BackendError", err)
	}

	task := env.tasks.task(t, "t1")
	if task.Status != common.TaskStatusFailed || task.StageMessage != msgBuildFailed || task.ErrorMessage != "图数据库不可用" {
		t.Fatalf("task state = %s/%q/%q", task.Status, task.StageMessage, task.ErrorMessage)
	}
}
