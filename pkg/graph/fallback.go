package graph

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/OFFIS-RIT/kgbuilder/internal/util"
	"github.com/OFFIS-RIT/kgbuilder/pkg/common"
	"github.com/OFFIS-RIT/kgbuilder/pkg/loader"
)

// Entity types produced from risk registers.
const (
	typeRiskUnit    = "风险单元"
	typeActivity    = "作业活动"
	typeRiskItem    = "风险项"
	typeConsequence = "后果"
	typeMeasure     = "控制措施"
	typeDepartment  = "部门"
)

// Relation types produced from risk registers.
const (
	relContains  = "contains"
	relHasRisk   = "has-risk"
	relCauses    = "causes"
	relMitigates = "mitigates"
	relInvolves  = "involves"
)

type registerField int

const (
	fieldUnit registerField = iota
	fieldActivity
	fieldTrigger
	fieldConsequence
	fieldMeasures
	fieldDepartment
	fieldLevelEval
	fieldLevel
	fieldSeq
	fieldCount
)

// registerAliases lists accepted column titles per field. Fields are
// resolved in order, so 风险等级评价 claims its column before 风险等级.
var registerAliases = [fieldCount][]string{
	fieldUnit:        {"风险单元", "作业区域", "区域/单元", "场所"},
	fieldActivity:    {"作业活动", "作业内容", "作业步骤", "活动"},
	fieldTrigger:     {"危险发生的触发因素和过程描述", "触发因素和过程描述", "危险因素", "危险源", "触发因素"},
	fieldConsequence: {"可能导致的后果", "可能导致的事故", "事故类型", "后果"},
	fieldMeasures:    {"现有控制措施", "控制措施", "管控措施"},
	fieldDepartment:  {"涉及单位或部门", "责任部门", "责任单位", "部门"},
	fieldLevelEval:   {"风险等级评价", "风险评价"},
	fieldLevel:       {"风险等级"},
	fieldSeq:         {"序号"},
}

var requiredFields = []registerField{fieldUnit, fieldActivity, fieldTrigger, fieldConsequence}

var (
	listSeparators = regexp.MustCompile(`[、，,；;/\n]+`)
	measureMarker  = regexp.MustCompile(`(^|[\s；;。，,])(?:\d{1,2}\s*[、．)）]|\d{1,2}\s*\.([^\d]|$)|[①②③④⑤⑥⑦⑧⑨⑩])`)
)

// registerColumns maps fields to sheet headers. It reports false when a
// required column is missing.
func registerColumns(headers []string) ([fieldCount]string, bool) {
	var cols [fieldCount]string
	used := make(map[string]bool, len(headers))
	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = strings.Join(strings.Fields(h), "")
	}

	find := func(aliases []string, match func(h, alias string) bool) string {
		for _, alias := range aliases {
			for i, h := range normalized {
				if !used[headers[i]] && match(h, alias) {
					return headers[i]
				}
			}
		}
		return ""
	}
	for f := range fieldCount {
		col := find(registerAliases[f], func(h, a string) bool { return h == a })
		if col == "" {
			col = find(registerAliases[f], strings.Contains)
		}
		if col != "" {
			used[col] = true
			cols[f] = col
		}
	}
	for _, f := range requiredFields {
		if cols[f] == "" {
			return cols, false
		}
	}
	return cols, true
}

func splitList(s string) []string {
	var out []string
	for _, part := range listSeparators.Split(s, -1) {
		if part = strings.Trim(part, " \t。.;；"); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// splitMeasures splits numbered control measures such as "1.检查 2.培训".
// Text without numbering stays one measure per line.
func splitMeasures(s string) []string {
	s = measureMarker.ReplaceAllString(s, "${1}\n${2}")
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.Trim(line, " \t\r。；;，,"); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// registerBuilder accumulates entities and relations of a register,
// deduplicating entities by (type, name) and relations by
// (source, type, target).
type registerBuilder struct {
	payload   extractionPayload
	entities  map[string]int
	relations map[string]struct{}
	types     map[string]struct{}
	relTypes  map[string]struct{}
}

func newRegisterBuilder() *registerBuilder {
	return &registerBuilder{
		entities:  make(map[string]int),
		relations: make(map[string]struct{}),
		types:     make(map[string]struct{}),
		relTypes:  make(map[string]struct{}),
	}
}

func (b *registerBuilder) entity(entityType, name, context string, props common.Properties) {
	key := entityType + "\x00" + name
	if i, ok := b.entities[key]; ok {
		merged := b.payload.Entities[i].Properties.Merge(props)
		b.payload.Entities[i].Properties = flexProperties{merged}
		return
	}
	b.entities[key] = len(b.payload.Entities)
	b.payload.Entities = append(b.payload.Entities, payloadEntity{
		Name:       flexString(name),
		Type:       flexString(entityType),
		Properties: flexProperties{props},
		Context:    flexString(context),
		Confidence: ptr(1.0),
	})
	if _, ok := b.types[entityType]; !ok {
		b.types[entityType] = struct{}{}
		b.payload.EntityTypes = append(b.payload.EntityTypes, payloadEntityType{Name: flexString(entityType)})
	}
}

func (b *registerBuilder) relation(source, relType, target, sourceType, targetType, context string) {
	key := source + "\x00" + relType + "\x00" + target
	if _, ok := b.relations[key]; ok {
		return
	}
	b.relations[key] = struct{}{}
	b.payload.Relations = append(b.payload.Relations, payloadRelation{
		Source:     flexString(source),
		Target:     flexString(target),
		Type:       flexString(relType),
		Context:    flexString(context),
		Confidence: ptr(1.0),
	})
	typeKey := relType + "\x00" + sourceType + "\x00" + targetType
	if _, ok := b.relTypes[typeKey]; !ok {
		b.relTypes[typeKey] = struct{}{}
		b.payload.RelationTypes = append(b.payload.RelationTypes, payloadRelationType{
			Name:       flexString(relType),
			SourceType: flexString(sourceType),
			TargetType: flexString(targetType),
		})
	}
}

func (b *registerBuilder) addSheet(sheet loader.Sheet, cols [fieldCount]string) {
	var unit, activity string
	for i, row := range sheet.Rows {
		cell := func(f registerField) string {
			if cols[f] == "" {
				return ""
			}
			return strings.TrimSpace(row.Text(cols[f]))
		}

		// Merged cells leave unit and activity empty on follow-up rows.
		if v := cell(fieldUnit); v != "" {
			unit, activity = v, ""
		}
		if v := cell(fieldActivity); v != "" {
			activity = v
		}
		trigger := cell(fieldTrigger)
		if unit == "" && activity == "" && trigger == "" {
			continue
		}
		context := util.Truncate(fmt.Sprintf("[%s 行%d] %s %s %s", sheet.Name, i+1, unit, activity, trigger), 200)

		if unit != "" {
			b.entity(typeRiskUnit, unit, context, common.Properties{})
		}
		if activity != "" {
			b.entity(typeActivity, activity, context, common.NewProperties(typeRiskUnit, unit))
			if unit != "" {
				b.relation(unit, relContains, activity, typeRiskUnit, typeActivity, context)
			}
		}
		if trigger == "" {
			continue
		}

		var props common.Properties
		for _, f := range []registerField{fieldSeq, fieldLevel, fieldLevelEval} {
			if v := cell(f); v != "" {
				props.Set(cols[f], common.String(v))
			}
		}
		if unit != "" {
			props.Set(typeRiskUnit, common.String(unit))
		}
		if activity != "" {
			props.Set(typeActivity, common.String(activity))
		}
		b.entity(typeRiskItem, trigger, context, props)
		if activity != "" {
			b.relation(activity, relHasRisk, trigger, typeActivity, typeRiskItem, context)
		}

		for _, c := range splitList(cell(fieldConsequence)) {
			b.entity(typeConsequence, c, context, common.Properties{})
			b.relation(trigger, relCauses, c, typeRiskItem, typeConsequence, context)
		}
		for _, m := range splitMeasures(cell(fieldMeasures)) {
			b.entity(typeMeasure, m, context, common.Properties{})
			b.relation(m, relMitigates, trigger, typeMeasure, typeRiskItem, context)
		}
		if unit != "" {
			for _, d := range splitList(cell(fieldDepartment)) {
				b.entity(typeDepartment, d, context, common.Properties{})
				b.relation(unit, relInvolves, d, typeRiskUnit, typeDepartment, context)
			}
		}
	}
}

// extractRiskRegister runs the rule-based extractor over every sheet that
// has the layout of a safety risk register. It reports false when no sheet
// qualifies or nothing was extracted.
func extractRiskRegister(files []ParsedFile) (*extractionPayload, bool) {
	b := newRegisterBuilder()
	for _, f := range files {
		for _, sheet := range f.Sheets {
			cols, ok := registerColumns(sheet.Headers)
			if !ok {
				continue
			}
			b.addSheet(sheet, cols)
		}
	}
	if len(b.payload.Entities) == 0 {
		return nil, false
	}
	return &b.payload, true
}
