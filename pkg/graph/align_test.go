package graph

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/OFFIS-RIT/kgbuilder/pkg/common"
)

func aligningTask(entities ...common.DraftEntity) *common.BuildTask {
	task := newTask("t1", common.TaskStatusAligning, "f1")
	task.Progress = 60
	task.DraftEntities = entities
	return task
}

func TestAlignEntities(t *testing.T) {
	embed := &fakeEmbedder{vectors: map[string][]float32{
		"吊车":  {1, 0},
		"汽车吊": {0.99, 0.05},
		"叉车":  {0.8, 0.6},
		"张三":  {0, 1},
	}}
	env := newTestEnv(t, nil, embed, aligningTask(
		common.DraftEntity{ID: "e0", Name: "吊车", Type: "设备"},
		common.DraftEntity{ID: "e1", Name: "汽车吊", Type: "设备"},
		common.DraftEntity{ID: "e2", Name: "叉车", Type: "设备"},
		common.DraftEntity{ID: "e3", Name: "张三", Type: "人员"},
	))

	res, err := env.client.AlignEntities(context.Background(), "t1")
	if err != nil {
		t.Fatalf("AlignEntities: %v", err)
	}
	want := AlignmentResult{EntityCount: 4, NewCount: 1, MergeCount: 2, CandidateCount: 1}
	if *res != want {
		t.Fatalf("result = %+v, want %+v", *res, want)
	}

	task := env.tasks.task(t, "t1")
	if task.Status != common.TaskStatusConfirming || task.Progress != 90 || task.StageMessage != msgConfirming {
		t.Fatalf("task state = %s/%d/%q", task.Status, task.Progress, task.StageMessage)
	}
	got := make(map[string]common.AlignmentSuggestion)
	for _, e := range task.DraftEntities {
		got[e.ID] = e.AlignmentSuggestion
	}
	if target, ok := got["e0"].MergeTarget(); !ok || target.ID != "e1" {
		t.Fatalf("e0 suggestion = %+v", got["e0"])
	}
	if target, ok := got["e1"].MergeTarget(); !ok || target.ID != "e0" {
		t.Fatalf("e1 suggestion = %+v", got["e1"])
	}
	if s := got["e2"]; s.Kind() != common.AlignmentKindCandidate || len(s.Candidates) != 2 {
		t.Fatalf("e2 suggestion = %+v", s)
	}
	if s := got["e3"]; s.Kind() != common.AlignmentKindNew {
		t.Fatalf("e3 suggestion = %+v", s)
	}
}

func TestAlignEntities_EmbeddingUnavailable(t *testing.T) {
	embed := &fakeEmbedder{err: errors.New("503 service unavailable")}
	env := newTestEnv(t, nil, embed, aligningTask(
		common.DraftEntity{ID: "e0", Name: "吊车", Type: "设备"},
		common.DraftEntity{ID: "e1", Name: "吊车", Type: "设备"},
	))

	res, err := env.client.AlignEntities(context.Background(), "t1")
	if err != nil {
		t.Fatalf("AlignEntities: %v", err)
	}
	if !res.Degraded || res.NewCount != 2 {
		t.Fatalf("result = %+v", res)
	}
	task := env.tasks.task(t, "t1")
	if task.Status != common.TaskStatusConfirming || task.StageMessage != msgConfirmingDegrade {
		t.Fatalf("task state = %s/%q", task.Status, task.StageMessage)
	}
	if !slices.Contains(env.tasks.messages, msgAligningDegraded) {
		t.Fatalf("degraded stage message not written: %v", env.tasks.messages)
	}
}

func TestAlignEntities_NoEmbedder(t *testing.T) {
	env := newTestEnv(t, nil, nil, aligningTask(common.DraftEntity{ID: "e0", Name: "吊车", Type: "设备"}))

	res, err := env.client.AlignEntities(context.Background(), "t1")
	if err != nil {
		t.Fatalf("AlignEntities: %v", err)
	}
	if !res.Degraded {
		t.Fatal("expected degraded alignment")
	}
}

func TestAlignEntities_Batches(t *testing.T) {
	var entities []common.DraftEntity
	for i := range 12 {
		entities = append(entities, common.DraftEntity{ID: fmt.Sprintf("e%d", i), Name: fmt.Sprintf("设备%d", i), Type: "设备"})
	}
	embed := &fakeEmbedder{}
	env := newTestEnv(t, nil, embed, aligningTask(entities...))

	if _, err := env.client.AlignEntities(context.Background(), "t1"); err != nil {
		t.Fatalf("AlignEntities: %v", err)
	}
	if embed.calls != 2 {
		t.Fatalf("embedder called %d times, want 2", embed.calls)
	}
}

func TestAlignEntities_NoEntities(t *testing.T) {
	env := newTestEnv(t, nil, &fakeEmbedder{}, aligningTask())

	_, err := env.client.AlignEntities(context.Background(), "t1")
	var precondition *AlignmentPreconditionError
	if !errors.As(err, &precondition) {
		t.Fatalf("error = %v, want *AlignmentPreconditionError", err)
	}
	task := env.tasks.task(t, "t1")
	if task.Status != common.TaskStatusFailed || task.Progress != 70 || task.StageMessage != msgNoEntities {
		t.Fatalf("task state = %s/%d/%q", task.Status, task.Progress, task.StageMessage)
	}
}
