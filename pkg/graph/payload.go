package graph

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/OFFIS-RIT/kgbuilder/pkg/common"
)

// flexString accepts strings, numbers and booleans. Models occasionally emit
// entity names such as 2024 without quotes.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexString(n.String())
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexString(strconv.FormatBool(b))
		return nil
	}
	*f = ""
	return nil
}

// flexProperties tolerates a missing or non-object properties field.
type flexProperties struct {
	common.Properties
}

func (f *flexProperties) UnmarshalJSON(data []byte) error {
	var p common.Properties
	if err := json.Unmarshal(data, &p); err != nil {
		f.Properties = common.Properties{}
		return nil
	}
	f.Properties = p
	return nil
}

type payloadEntityType struct {
	Name        flexString `json:"name"`
	Description flexString `json:"description"`
}

type payloadRelationType struct {
	Name        flexString `json:"name"`
	SourceType  flexString `json:"sourceType"`
	TargetType  flexString `json:"targetType"`
	Description flexString `json:"description"`
}

type payloadEntity struct {
	Name       flexString     `json:"name"`
	Type       flexString     `json:"type"`
	Properties flexProperties `json:"properties"`
	Context    flexString     `json:"context"`
	Confidence *float64       `json:"confidence"`
}

type payloadRelation struct {
	Source     flexString     `json:"source"`
	Target     flexString     `json:"target"`
	Type       flexString     `json:"type"`
	Properties flexProperties `json:"properties"`
	Context    flexString     `json:"context"`
	Confidence *float64       `json:"confidence"`
}

// extractionPayload is the reply of one extraction call, and after merging,
// of a whole run.
type extractionPayload struct {
	EntityTypes   []payloadEntityType   `json:"entityTypes"`
	Entities      []payloadEntity       `json:"entities"`
	RelationTypes []payloadRelationType `json:"relationTypes"`
	Relations     []payloadRelation     `json:"relations"`
}

func (p *extractionPayload) append(other *extractionPayload) {
	p.EntityTypes = append(p.EntityTypes, other.EntityTypes...)
	p.Entities = append(p.Entities, other.Entities...)
	p.RelationTypes = append(p.RelationTypes, other.RelationTypes...)
	p.Relations = append(p.Relations, other.Relations...)
}

func (p *extractionPayload) ontology() common.Ontology {
	o := common.Ontology{
		EntityTypes:   make([]common.EntityType, 0, len(p.EntityTypes)),
		RelationTypes: make([]common.RelationType, 0, len(p.RelationTypes)),
	}
	for _, et := range p.EntityTypes {
		o.EntityTypes = append(o.EntityTypes, common.EntityType{
			Name:        string(et.Name),
			Description: string(et.Description),
		})
	}
	for _, rt := range p.RelationTypes {
		o.RelationTypes = append(o.RelationTypes, common.RelationType{
			Name:        string(rt.Name),
			SourceType:  string(rt.SourceType),
			TargetType:  string(rt.TargetType),
			Description: string(rt.Description),
		})
	}
	return o
}

func confidenceOr(c *float64) float64 {
	if c == nil || *c <= 0 {
		return defaultConfidence
	}
	return *c
}

// Schema types for providers with structured output. Property maps are
// restricted to string values there.

type extractEntity struct {
	Name       string            `json:"name" jsonschema_description:"实体名称，保持原文术语"`
	Type       string            `json:"type" jsonschema_description:"实体类型，必须出现在 entityTypes 中"`
	Properties map[string]string `json:"properties" jsonschema_description:"实体属性"`
	Context    string            `json:"context" jsonschema_description:"实体所在的原文片段"`
	Confidence float64           `json:"confidence" jsonschema_description:"0 到 1 之间的置信度"`
}

type extractRelation struct {
	Source     string  `json:"source" jsonschema_description:"源实体名称"`
	Target     string  `json:"target" jsonschema_description:"目标实体名称"`
	Type       string  `json:"type" jsonschema_description:"关系名称"`
	Context    string  `json:"context" jsonschema_description:"关系所在的原文片段"`
	Confidence float64 `json:"confidence" jsonschema_description:"0 到 1 之间的置信度"`
}

type extractType struct {
	Name        string `json:"name"`
	SourceType  string `json:"sourceType,omitempty"`
	TargetType  string `json:"targetType,omitempty"`
	Description string `json:"description"`
}

type extractResponse struct {
	EntityTypes   []extractType     `json:"entityTypes" jsonschema_description:"本片段涉及的实体类型"`
	Entities      []extractEntity   `json:"entities" jsonschema_description:"抽取出的实体"`
	RelationTypes []extractType     `json:"relationTypes" jsonschema_description:"本片段涉及的关系类型"`
	Relations     []extractRelation `json:"relations" jsonschema_description:"抽取出的关系"`
}
