package graph

import (
	"slices"

	"github.com/OFFIS-RIT/kgbuilder/pkg/common"
)

// ApplyModifications returns copies of the drafts with the user's edits
// applied in this order: deleted entities, deleted relations, modified
// entities, added entities, added relations, modified relations. Edits
// naming unknown ids are ignored. An entity whose merge target was deleted
// is written as a new entity.
func ApplyModifications(entities []common.DraftEntity, relations []common.DraftRelation, mods common.Modifications) ([]common.DraftEntity, []common.DraftRelation) {
	outE := make([]common.DraftEntity, 0, len(entities)+len(mods.AddedEntities))
	for _, e := range entities {
		if !slices.Contains(mods.DeletedEntityIDs, e.ID) {
			outE = append(outE, e)
		}
	}
	outR := make([]common.DraftRelation, 0, len(relations)+len(mods.AddedRelations))
	for _, r := range relations {
		if !slices.Contains(mods.DeletedRelationIDs, r.ID) {
			outR = append(outR, r)
		}
	}

	for _, m := range mods.ModifiedEntities {
		if i := slices.IndexFunc(outE, func(e common.DraftEntity) bool { return e.ID == m.EntityID }); i >= 0 {
			outE[i] = m.NewValue.Apply(outE[i])
		}
	}
	outE = append(outE, mods.AddedEntities...)
	outR = append(outR, mods.AddedRelations...)
	for _, m := range mods.ModifiedRelations {
		if i := slices.IndexFunc(outR, func(r common.DraftRelation) bool { return r.ID == m.RelationID }); i >= 0 {
			outR[i] = m.NewValue.Apply(outR[i])
		}
	}
	for i, e := range outE {
		if target, ok := e.AlignmentSuggestion.MergeTarget(); ok && slices.Contains(mods.DeletedEntityIDs, target.ID) {
			outE[i].AlignmentSuggestion = common.NewSuggestion()
		}
	}
	return outE, outR
}

// nodeKeys returns the graph node id of every entity. Entities linked by
// merge suggestions inside the draft form one group written to a single
// node: the id of the group's earliest entity, or that entity's merge
// target when the target lies outside the draft.
func nodeKeys(entities []common.DraftEntity) []string {
	parent := make([]int, len(entities))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra == rb {
			return
		}
		// The earlier entity stays the root.
		if rb < ra {
			ra, rb = rb, ra
		}
		parent[rb] = ra
	}

	index := make(map[string]int, len(entities))
	for i, e := range entities {
		if _, ok := index[e.ID]; !ok {
			index[e.ID] = i
		}
	}
	for i, e := range entities {
		target, ok := e.AlignmentSuggestion.MergeTarget()
		if !ok {
			continue
		}
		if j, inDraft := index[target.ID]; inDraft {
			union(i, j)
		}
	}

	keys := make([]string, len(entities))
	for i := range entities {
		root := entities[find(i)]
		keys[i] = root.ID
		if target, ok := root.AlignmentSuggestion.MergeTarget(); ok {
			if _, inDraft := index[target.ID]; !inDraft {
				keys[i] = target.ID
			}
		}
	}
	return keys
}
