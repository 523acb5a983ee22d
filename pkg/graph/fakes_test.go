package graph

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/OFFIS-RIT/kgbuilder/pkg/ai"
	"github.com/OFFIS-RIT/kgbuilder/pkg/common"
	"github.com/OFFIS-RIT/kgbuilder/pkg/loader"
	"github.com/OFFIS-RIT/kgbuilder/pkg/store"
	"github.com/OFFIS-RIT/kgbuilder/pkg/store/badger"
)

var testNow = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

type memTasks struct {
	mu       sync.Mutex
	tasks    map[string]*common.BuildTask
	statuses []common.TaskStatus
	messages []string
}

func newMemTasks(tasks ...*common.BuildTask) *memTasks {
	m := &memTasks{tasks: make(map[string]*common.BuildTask)}
	for _, t := range tasks {
		m.tasks[t.ID] = t
	}
	return m
}

func (m *memTasks) GetTask(_ context.Context, id string) (*common.BuildTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memTasks) UpdateTask(_ context.Context, id string, upd common.TaskUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return store.ErrNotFound
	}
	upd.Apply(t)
	if upd.Status != nil {
		m.statuses = append(m.statuses, *upd.Status)
	}
	if upd.StageMessage != nil {
		m.messages = append(m.messages, *upd.StageMessage)
	}
	return nil
}

func (m *memTasks) task(t *testing.T, id string) *common.BuildTask {
	t.Helper()
	task, err := m.GetTask(context.Background(), id)
	if err != nil {
		t.Fatalf("GetTask(%s): %v", id, err)
	}
	return task
}

type memFiles struct {
	mu    sync.Mutex
	files map[string]*common.FileUpload
}

func newMemFiles(files ...*common.FileUpload) *memFiles {
	m := &memFiles{files: make(map[string]*common.FileUpload)}
	for _, f := range files {
		m.files[f.ID] = f
	}
	return m
}

func (m *memFiles) GetFile(_ context.Context, id string) (*common.FileUpload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (m *memFiles) UpdateFile(_ context.Context, id string, upd common.FileUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok {
		return store.ErrNotFound
	}
	if upd.Status != nil {
		f.Status = *upd.Status
	}
	if upd.ExtractedText != nil {
		f.ExtractedText = *upd.ExtractedText
	}
	if upd.SheetCount != nil {
		f.SheetCount = *upd.SheetCount
	}
	if upd.PageCount != nil {
		f.PageCount = *upd.PageCount
	}
	if upd.ProcessedTime != nil {
		f.ProcessedTime = upd.ProcessedTime
	}
	if upd.ErrorMessage != nil {
		f.ErrorMessage = *upd.ErrorMessage
	}
	return nil
}

type memOntologies struct {
	libs       map[string]*common.OntologyLibrary
	defaultLib *common.OntologyLibrary
}

func (m *memOntologies) GetOntology(_ context.Context, id string) (*common.OntologyLibrary, error) {
	if lib, ok := m.libs[id]; ok {
		return lib, nil
	}
	return nil, store.ErrNotFound
}

func (m *memOntologies) GetDefaultOntology(context.Context) (*common.OntologyLibrary, error) {
	if m.defaultLib == nil {
		return nil, store.ErrNotFound
	}
	return m.defaultLib, nil
}

// fakeChat answers every prompt through reply and records the requests.
type fakeChat struct {
	mu      sync.Mutex
	reply   func(prompt string, call int) (string, error)
	calls   int
	prompts []string
	options []ai.GenerateOptions
}

func (f *fakeChat) GenerateCompletion(_ context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.prompts = append(f.prompts, prompt)
	f.options = append(f.options, ai.ApplyOptions(ai.GenerateOptions{}, opts...))
	f.mu.Unlock()
	return f.reply(prompt, call)
}

func staticChat(reply string) *fakeChat {
	return &fakeChat{reply: func(string, int) (string, error) { return reply, nil }}
}

// fakeEmbedder returns the vector registered for the first word of each
// input, or a fixed default.
type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
	calls   int
}

func (f *fakeEmbedder) GenerateEmbeddings(_ context.Context, inputs []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, 0, len(inputs))
	for _, in := range inputs {
		var name string
		fmt.Sscan(in, &name)
		v, ok := f.vectors[name]
		if !ok {
			v = []float32{0, 0, 1}
		}
		out = append(out, v)
	}
	return out, nil
}

type memSource map[string][]byte

func (m memSource) ReadFile(_ context.Context, path string) ([]byte, error) {
	b, ok := m[path]
	if !ok {
		return nil, fmt.Errorf("no such file: %s", path)
	}
	return b, nil
}

// plainFormat returns the content as text.
type plainFormat struct{}

func (plainFormat) Parse(_ context.Context, file loader.File, content []byte) (*loader.ParsedDocument, error) {
	if len(content) == 0 {
		return nil, fmt.Errorf("empty document")
	}
	return &loader.ParsedDocument{
		FileID:   file.ID,
		Filename: file.Name,
		Type:     file.Type,
		Text:     string(content),
		Preview:  string(content),
	}, nil
}

type testEnv struct {
	source memSource
	tasks  *memTasks
	files  *memFiles
	onto   *memOntologies
	graph  *badger.Store
	chat   *fakeChat
	embed  *fakeEmbedder
	client *GraphClient
}

func newTestEnv(t *testing.T, chat *fakeChat, embed *fakeEmbedder, tasks ...*common.BuildTask) *testEnv {
	t.Helper()
	gs, err := badger.Open("")
	if err != nil {
		t.Fatalf("badger.Open: %v", err)
	}
	t.Cleanup(func() { _ = gs.Close(context.Background()) })

	env := &testEnv{
		source: memSource{},
		tasks:  newMemTasks(tasks...),
		files:  newMemFiles(),
		onto:   &memOntologies{libs: map[string]*common.OntologyLibrary{}},
		graph:  gs,
		chat:   chat,
		embed:  embed,
	}
	delay := time.Duration(0)
	params := NewGraphClientParams{
		Tasks:      env.tasks,
		Files:      env.files,
		Ontologies: env.onto,
		Graph:      gs,
		Parser: loader.NewDocumentParser(env.source, map[common.FileType]loader.FormatParser{
			common.FileTypeTxt: plainFormat{},
		}),
		Model:      "test-model",
		RetryDelay: &delay,
	}
	if chat != nil {
		params.Chat = chat
	}
	if embed != nil {
		params.Embedder = embed
	}
	env.client = NewGraphClient(params)
	env.client.now = func() time.Time { return testNow }
	return env
}

func newTask(id string, status common.TaskStatus, fileIDs ...string) *common.BuildTask {
	t := &common.BuildTask{
		ID:           id,
		TaskType:     common.TaskTypeUserConfirmed,
		Status:       status,
		OntologyMode: common.OntologyModeAuto,
		CreatedBy:    "admin",
		CreatedAt:    testNow,
		UpdatedAt:    testNow,
	}
	for _, f := range fileIDs {
		t.Files = append(t.Files, common.TaskFile{FileID: f, Filename: f + ".txt"})
	}
	return t
}
