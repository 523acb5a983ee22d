package graph

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/OFFIS-RIT/kgbuilder/pkg/ai"
	"github.com/OFFIS-RIT/kgbuilder/pkg/common"
)

const extractionReply = "```json\n" + `{
	"entityTypes": [{"name": "设备", "description": "生产设备"}, {"name": "人员"}],
	"relationTypes": [{"name": "操作", "sourceType": "人员", "targetType": "设备"}],
	"entities": [
		{"name": "吊车", "type": "设备", "properties": {"吨位": 25}, "context": "25吨吊车", "confidence": 0.9},
		{"name": "张三", "type": "人员", "context": "司机张三"}
	],
	"relations": [{"source": "张三", "target": "吊车", "type": "操作", "context": "张三操作吊车"}]
}` + "\n```"

func extractionInput(taskID string, files ...ParsedFile) ExtractionInput {
	if len(files) == 0 {
		files = []ParsedFile{{FileID: "f1", Filename: "规程.txt", Text: "司机张三操作25吨吊车。"}}
	}
	return ExtractionInput{TaskID: taskID, Files: files, OntologyMode: common.OntologyModeAuto}
}

func TestExtractFromDocuments(t *testing.T) {
	env := newTestEnv(t, staticChat(extractionReply), nil, newTask("t1", common.TaskStatusParsing, "f1"))

	res, err := env.client.ExtractFromDocuments(context.Background(), extractionInput("t1"))
	if err != nil {
		t.Fatalf("ExtractFromDocuments: %v", err)
	}
	if res.EntityCount != 2 || res.RelationCount != 1 || res.ChunkCount != 1 || res.UsedFallback {
		t.Fatalf("result = %+v", res)
	}

	task := env.tasks.task(t, "t1")
	if task.Status != common.TaskStatusAligning || task.Progress != 60 || task.StageMessage != msgAligning {
		t.Fatalf("task state = %s/%d/%q", task.Status, task.Progress, task.StageMessage)
	}
	if len(task.DraftOntology.EntityTypes) != 2 || len(task.DraftOntology.RelationTypes) != 1 {
		t.Fatalf("draft ontology = %+v", task.DraftOntology)
	}

	crane := task.DraftEntities[0]
	if !strings.HasPrefix(crane.ID, "entity_") || crane.SourceFile != "f1" {
		t.Fatalf("draft entity = %+v", crane)
	}
	if crane.Properties.Text("吨位") != "25" || crane.Confidence != 0.9 {
		t.Fatalf("draft entity properties = %v, confidence %v", crane.Properties.Map(), crane.Confidence)
	}
	if crane.AlignmentSuggestion.Kind() != common.AlignmentKindNew {
		t.Fatalf("suggestion = %+v", crane.AlignmentSuggestion)
	}
	if task.DraftEntities[1].Confidence != defaultConfidence {
		t.Fatalf("default confidence not applied: %v", task.DraftEntities[1].Confidence)
	}
	if r := task.DraftRelations[0]; !strings.HasPrefix(r.ID, "relation_") || r.Source != "张三" || r.Target != "吊车" {
		t.Fatalf("draft relation = %+v", r)
	}

	meta := task.ExtractionMeta
	if meta == nil || meta.Model != "test-model" || meta.FileCount != 1 || meta.ChunkCount != 1 || meta.EntityCount != 2 {
		t.Fatalf("meta = %+v", meta)
	}
	if meta.StartedAt == nil || meta.FinishedAt == nil {
		t.Fatalf("meta timestamps missing: %+v", meta)
	}

	opts := env.chat.options[0]
	if opts.Temperature != extractionTemperature || len(opts.SystemPrompts) != 1 {
		t.Fatalf("options = %+v", opts)
	}
	if !strings.Contains(env.chat.prompts[0], "司机张三") {
		t.Fatalf("prompt misses document text: %q", env.chat.prompts[0])
	}
}

func TestExtractFromDocuments_UndecodableReply(t *testing.T) {
	env := newTestEnv(t, staticChat("[1, 2, 3]"), nil, newTask("t1", common.TaskStatusParsing, "f1"))

	_, err := env.client.ExtractFromDocuments(context.Background(), extractionInput("t1"))
	var failed *TaskFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("error = %v, want *TaskFailedError", err)
	}
	var decodeErr *ExtractionDecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("error = %v, want *ExtractionDecodeError", err)
	}
	if env.chat.calls != defaultMaxRetries {
		t.Fatalf("chat called %d times, want %d", env.chat.calls, defaultMaxRetries)
	}

	task := env.tasks.task(t, "t1")
	if task.Status != common.TaskStatusFailed || task.StageMessage != msgExtractionFailed {
		t.Fatalf("task state = %s/%q", task.Status, task.StageMessage)
	}
	debug := task.ExtractionDebug
	if debug == nil || debug.RawPreview != "[1, 2, 3]" || *debug.RawLength != 9 || *debug.ChunkCount != 1 {
		t.Fatalf("debug = %+v", debug)
	}
	if task.ErrorMessage == "" {
		t.Fatal("error message not recorded")
	}
}

func TestExtractFromDocuments_NoEntities(t *testing.T) {
	env := newTestEnv(t, staticChat(`{"entities": [], "entityTypes": [{"name": "设备"}]}`), nil, newTask("t1", common.TaskStatusParsing, "f1"))

	_, err := env.client.ExtractFromDocuments(context.Background(), extractionInput("t1"))
	var verr *ExtractionValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want *ExtractionValidationError", err)
	}

	task := env.tasks.task(t, "t1")
	if task.Status != common.TaskStatusFailed || task.Progress != 40 || task.StageMessage != msgNoValidResult {
		t.Fatalf("task state = %s/%d/%q", task.Status, task.Progress, task.StageMessage)
	}
	if len(task.DraftOntology.EntityTypes) != 1 || len(task.DraftEntities) != 0 {
		t.Fatalf("draft = %+v / %+v", task.DraftOntology, task.DraftEntities)
	}
}

func TestExtractFromDocuments_RiskRegisterFallback(t *testing.T) {
	chat := &fakeChat{reply: func(string, int) (string, error) { return "", errors.New("upstream timeout") }}
	env := newTestEnv(t, chat, nil, newTask("t1", common.TaskStatusParsing, "file-1"))

	res, err := env.client.ExtractFromDocuments(context.Background(), extractionInput("t1", registerFile()))
	if err != nil {
		t.Fatalf("ExtractFromDocuments: %v", err)
	}
	if !res.UsedFallback || res.EntityCount != 11 || res.RelationCount != 11 {
		t.Fatalf("result = %+v", res)
	}
	task := env.tasks.task(t, "t1")
	if task.Status != common.TaskStatusAligning {
		t.Fatalf("status = %s", task.Status)
	}
	if task.DraftEntities[0].Confidence != 1 {
		t.Fatalf("register entities should be certain, got %v", task.DraftEntities[0].Confidence)
	}
}

func TestExtractFromDocuments_NotConfiguredIsNotRetried(t *testing.T) {
	chat := &fakeChat{reply: func(string, int) (string, error) { return "", ai.ErrNotConfigured }}
	env := newTestEnv(t, chat, nil, newTask("t1", common.TaskStatusParsing, "f1"))

	_, err := env.client.ExtractFromDocuments(context.Background(), extractionInput("t1"))
	if !errors.Is(err, ai.ErrNotConfigured) {
		t.Fatalf("error = %v, want ErrNotConfigured", err)
	}
	if env.chat.calls != 1 {
		t.Fatalf("chat called %d times, want 1", env.chat.calls)
	}
	if task := env.tasks.task(t, "t1"); task.Status != common.TaskStatusFailed {
		t.Fatalf("status = %s", task.Status)
	}
}

func TestExtractFromDocuments_RetriesTransientErrors(t *testing.T) {
	chat := &fakeChat{reply: func(_ string, call int) (string, error) {
		if call == 1 {
			return "", errors.New("connection reset")
		}
		return extractionReply, nil
	}}
	env := newTestEnv(t, chat, nil, newTask("t1", common.TaskStatusParsing, "f1"))

	if _, err := env.client.ExtractFromDocuments(context.Background(), extractionInput("t1")); err != nil {
		t.Fatalf("ExtractFromDocuments: %v", err)
	}
	if env.chat.calls != 2 {
		t.Fatalf("chat called %d times, want 2", env.chat.calls)
	}
}

func TestExtractFromDocuments_DefaultOntologyHint(t *testing.T) {
	env := newTestEnv(t, staticChat(extractionReply), nil, newTask("t1", common.TaskStatusParsing, "f1"))
	env.onto.defaultLib = &common.OntologyLibrary{
		ID:            "o1",
		EntityTypes:   []common.LibraryEntityType{{Name: "特种设备"}},
		RelationTypes: []common.LibraryRelationType{{Name: "检验"}},
	}

	in := extractionInput("t1")
	in.OntologyMode = common.OntologyModeExisting
	if _, err := env.client.ExtractFromDocuments(context.Background(), in); err != nil {
		t.Fatalf("ExtractFromDocuments: %v", err)
	}
	system := env.chat.options[0].SystemPrompts[0]
	if !strings.Contains(system, "特种设备") || !strings.Contains(system, "检验") {
		t.Fatalf("system prompt misses ontology hint: %q", system)
	}
}

func TestExtractFromDocuments_WrongState(t *testing.T) {
	env := newTestEnv(t, staticChat(extractionReply), nil, newTask("t1", common.TaskStatusConfirming, "f1"))

	_, err := env.client.ExtractFromDocuments(context.Background(), extractionInput("t1"))
	if !errors.Is(err, ErrInvalidTaskState) {
		t.Fatalf("error = %v, want ErrInvalidTaskState", err)
	}
	if env.chat.calls != 0 {
		t.Fatal("model called for a task in the wrong state")
	}
}
