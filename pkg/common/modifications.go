package common

// Modifications are the user's edits to a draft, applied at build time.
type Modifications struct {
	AddedEntities      []DraftEntity          `json:"addedEntities,omitempty"`
	DeletedEntityIDs   []string               `json:"deletedEntityIds,omitempty"`
	ModifiedEntities   []EntityModification   `json:"modifiedEntities,omitempty"`
	AddedRelations     []DraftRelation        `json:"addedRelations,omitempty"`
	DeletedRelationIDs []string               `json:"deletedRelationIds,omitempty"`
	ModifiedRelations  []RelationModification `json:"modifiedRelations,omitempty"`
}

// IsEmpty reports whether m changes nothing.
func (m Modifications) IsEmpty() bool {
	return len(m.AddedEntities) == 0 && len(m.DeletedEntityIDs) == 0 &&
		len(m.ModifiedEntities) == 0 && len(m.AddedRelations) == 0 &&
		len(m.DeletedRelationIDs) == 0 && len(m.ModifiedRelations) == 0
}

type EntityModification struct {
	EntityID string      `json:"entityId"`
	NewValue EntityPatch `json:"newValue"`
}

// EntityPatch is a shallow overlay on a draft entity.
type EntityPatch struct {
	Name                *string              `json:"name,omitempty"`
	Type                *string              `json:"type,omitempty"`
	Properties          *Properties          `json:"properties,omitempty"`
	SourceContext       *string              `json:"sourceContext,omitempty"`
	Confidence          *float64             `json:"confidence,omitempty"`
	AlignmentSuggestion *AlignmentSuggestion `json:"alignmentSuggestion,omitempty"`
}

// Apply returns e with the set fields of p replaced.
func (p EntityPatch) Apply(e DraftEntity) DraftEntity {
	if p.Name != nil {
		e.Name = *p.Name
	}
	if p.Type != nil {
		e.Type = *p.Type
	}
	if p.Properties != nil {
		e.Properties = p.Properties.Clone()
	}
	if p.SourceContext != nil {
		e.SourceContext = *p.SourceContext
	}
	if p.Confidence != nil {
		e.Confidence = *p.Confidence
	}
	if p.AlignmentSuggestion != nil {
		e.AlignmentSuggestion = *p.AlignmentSuggestion
	}
	return e
}

type RelationModification struct {
	RelationID string        `json:"relationId"`
	NewValue   RelationPatch `json:"newValue"`
}

// RelationPatch is a shallow overlay on a draft relation.
type RelationPatch struct {
	Source        *string     `json:"source,omitempty"`
	Target        *string     `json:"target,omitempty"`
	RelationType  *string     `json:"relationType,omitempty"`
	Properties    *Properties `json:"properties,omitempty"`
	Confidence    *float64    `json:"confidence,omitempty"`
	SourceContext *string     `json:"sourceContext,omitempty"`
}

func (p RelationPatch) Apply(r DraftRelation) DraftRelation {
	if p.Source != nil {
		r.Source = *p.Source
	}
	if p.Target != nil {
		r.Target = *p.Target
	}
	if p.RelationType != nil {
		r.RelationType = *p.RelationType
	}
	if p.Properties != nil {
		r.Properties = p.Properties.Clone()
	}
	if p.Confidence != nil {
		r.Confidence = *p.Confidence
	}
	if p.SourceContext != nil {
		r.SourceContext = *p.SourceContext
	}
	return r
}
