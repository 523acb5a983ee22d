package graph

import (
	"errors"
	"testing"

	"github.com/OFFIS-RIT/kgbuilder/pkg/ai"
)

func decodePayload(t *testing.T, raw string) *extractionPayload {
	t.Helper()
	var p extractionPayload
	if err := ai.DecodeModelJSON(raw, &p); err != nil {
		t.Fatalf("DecodeModelJSON: %v", err)
	}
	return &p
}

func TestPayload_LenientFields(t *testing.T) {
	p := decodePayload(t, `{
		"entities": [
			{"name": 2024, "type": "年份", "properties": "n/a"},
			{"name": " 吊装作业 ", "type": "作业活动", "properties": {"等级": "高"}, "confidence": 0.6}
		],
		"relations": [{"source": true, "target": "x", "type": "关联"}]
	}`)

	if got := string(p.Entities[0].Name); got != "2024" {
		t.Fatalf("numeric name = %q, want 2024", got)
	}
	if p.Entities[0].Properties.Len() != 0 {
		t.Fatalf("non-object properties should decode empty, got %d keys", p.Entities[0].Properties.Len())
	}
	if got := string(p.Entities[1].Name); got != "吊装作业" {
		t.Fatalf("name not trimmed: %q", got)
	}
	if got := p.Entities[1].Properties.Text("等级"); got != "高" {
		t.Fatalf("property 等级 = %q", got)
	}
	if got := string(p.Relations[0].Source); got != "true" {
		t.Fatalf("bool source = %q", got)
	}
	if p.Entities[0].Confidence != nil {
		t.Fatalf("missing confidence should stay nil")
	}
}

func TestDedupePayload(t *testing.T) {
	p := decodePayload(t, `{
		"entityTypes": [{"name": "设备", "description": "旧"}, {"name": "人员"}, {"name": "设备", "description": "新"}],
		"relationTypes": [
			{"name": "使用", "sourceType": "人员", "targetType": "设备"},
			{"name": "使用", "sourceType": "部门", "targetType": "设备"},
			{"name": "使用", "sourceType": "人员", "targetType": "设备", "description": "后"}
		],
		"entities": [
			{"name": "吊车", "type": "设备", "confidence": 0.5, "context": "first"},
			{"name": "吊车", "type": "设备", "context": "no confidence"},
			{"name": "吊车", "type": "设备", "confidence": 0.9, "context": "best"},
			{"name": "吊车", "type": "车辆"},
			{"name": "张三", "type": "人员", "confidence": 0.95}
		],
		"relations": [
			{"source": "张三", "target": "吊车", "type": "使用", "context": "first"},
			{"source": "张三", "target": "吊车", "type": "使用", "confidence": 0.99, "context": "second"},
			{"source": "张三", "target": "吊车", "type": "操作"}
		]
	}`)

	out := dedupePayload(p)

	if len(out.EntityTypes) != 2 || out.EntityTypes[0].Name != "设备" || out.EntityTypes[0].Description != "新" {
		t.Fatalf("entity types = %+v", out.EntityTypes)
	}
	if len(out.RelationTypes) != 2 || out.RelationTypes[0].Description != "后" {
		t.Fatalf("relation types = %+v", out.RelationTypes)
	}

	if len(out.Entities) != 3 {
		t.Fatalf("got %d entities, want 3", len(out.Entities))
	}
	if got := string(out.Entities[0].Context); got != "best" {
		t.Fatalf("kept %q, want the most confident occurrence", got)
	}
	if got := *out.Entities[1].Confidence; got != defaultConfidence {
		t.Fatalf("default confidence = %v, want %v", got, defaultConfidence)
	}

	if len(out.Relations) != 2 {
		t.Fatalf("got %d relations, want 2", len(out.Relations))
	}
	if got := string(out.Relations[0].Context); got != "first" {
		t.Fatalf("kept relation %q, want first occurrence", got)
	}
	if got := *out.Relations[0].Confidence; got != defaultConfidence {
		t.Fatalf("relation confidence = %v", got)
	}
}

func TestDedupePayload_MissingConfidenceNeverReplaces(t *testing.T) {
	p := decodePayload(t, `{"entities": [
		{"name": "a", "type": "t", "confidence": 0.1, "context": "low"},
		{"name": "a", "type": "t", "context": "absent"}
	]}`)
	out := dedupePayload(p)
	if got := string(out.Entities[0].Context); got != "low" {
		t.Fatalf("kept %q, want low", got)
	}
}

func TestValidatePayload(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{name: "valid", raw: `{"entities": [{"name": "a", "type": "t"}]}`},
		{name: "empty", raw: `{"entities": []}`, want: []string{"未提取到任何实体"}},
		{
			name: "incomplete",
			raw:  `{"entities": [{"name": "", "type": "t"}, {"name": "b"}], "relations": [{"source": "a", "type": "r"}]}`,
			want: []string{"实体[0]缺少名称", "实体[1]缺少类型", "关系[0]缺少目标实体"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validatePayload(decodePayload(t, tt.raw))
			if tt.want == nil {
				if err != nil {
					t.Fatalf("validatePayload: %v", err)
				}
				return
			}
			var verr *ExtractionValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error = %v, want *ExtractionValidationError", err)
			}
			if len(verr.Errors) != len(tt.want) {
				t.Fatalf("errors = %v, want %v", verr.Errors, tt.want)
			}
			for i := range tt.want {
				if verr.Errors[i] != tt.want[i] {
					t.Fatalf("errors[%d] = %q, want %q", i, verr.Errors[i], tt.want[i])
				}
			}
		})
	}
}
