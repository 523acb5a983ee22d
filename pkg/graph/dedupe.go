package graph

import "fmt"

const defaultConfidence = 0.8

// dedupePayload merges the replies of all chunks.
//
// Types keep the position of their first occurrence and the value of their
// last. Entities sharing name and type keep the most confident occurrence;
// an occurrence without confidence never replaces another. Relations
// sharing source, type and target keep the first occurrence.
func dedupePayload(p *extractionPayload) *extractionPayload {
	out := &extractionPayload{}

	typeIdx := make(map[string]int)
	for _, et := range p.EntityTypes {
		key := string(et.Name)
		if i, ok := typeIdx[key]; ok {
			out.EntityTypes[i] = et
			continue
		}
		typeIdx[key] = len(out.EntityTypes)
		out.EntityTypes = append(out.EntityTypes, et)
	}

	relTypeIdx := make(map[string]int)
	for _, rt := range p.RelationTypes {
		key := fmt.Sprintf("%s\x00%s\x00%s", rt.Name, rt.SourceType, rt.TargetType)
		if i, ok := relTypeIdx[key]; ok {
			out.RelationTypes[i] = rt
			continue
		}
		relTypeIdx[key] = len(out.RelationTypes)
		out.RelationTypes = append(out.RelationTypes, rt)
	}

	entityIdx := make(map[string]int)
	for _, e := range p.Entities {
		key := fmt.Sprintf("%s\x00%s", e.Name, e.Type)
		i, ok := entityIdx[key]
		if !ok {
			e.Confidence = ptr(confidenceOr(e.Confidence))
			entityIdx[key] = len(out.Entities)
			out.Entities = append(out.Entities, e)
			continue
		}
		if e.Confidence != nil && *e.Confidence > *out.Entities[i].Confidence {
			out.Entities[i] = e
		}
	}

	relIdx := make(map[string]struct{})
	for _, r := range p.Relations {
		key := fmt.Sprintf("%s\x00%s\x00%s", r.Source, r.Type, r.Target)
		if _, ok := relIdx[key]; ok {
			continue
		}
		relIdx[key] = struct{}{}
		r.Confidence = ptr(confidenceOr(r.Confidence))
		out.Relations = append(out.Relations, r)
	}
	return out
}
