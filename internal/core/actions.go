package core

import (
	"context"
	"fmt"
)

// CompileActions turns declarative filter actions into a label delta.
// A label never appears in both lists; removal wins.
func CompileActions(actions FilterActions) CompiledActions {
	var add, remove labelSet

	if id := actions.ApplyLabel; !isBlank(id) {
		add.put(id)
	}
	if actions.Archive {
		remove.put(LabelInbox)
	}
	if actions.Trash {
		add.put(LabelTrash)
		remove.put(LabelInbox)
	}
	if actions.Star {
		add.put(LabelStarred)
	}

	compiled := CompiledActions{
		MarkRead: actions.MarkRead,
		Star:     actions.Star,
	}
	for _, id := range add.ids {
		if !remove.has(id) {
			compiled.AddLabelIDs = append(compiled.AddLabelIDs, id)
		}
	}
	compiled.RemoveLabelIDs = append(compiled.RemoveLabelIDs, remove.ids...)

	return compiled
}

// labelSet is an insertion-ordered set of label ids
type labelSet struct {
	ids  []string
	seen map[string]struct{}
}

func (s *labelSet) put(id string) bool {
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	if _, ok := s.seen[id]; ok {
		return false
	}
	s.seen[id] = struct{}{}
	s.ids = append(s.ids, id)
	return true
}

func (s *labelSet) has(id string) bool {
	_, ok := s.seen[id]
	return ok
}

func (s *labelSet) len() int {
	return len(s.ids)
}

// ActionLabelApplier adapts a ThreadModifier into a LabelApplier by compiling
// an apply-label action for each call.
type ActionLabelApplier struct {
	modifier ThreadModifier
}

// NewActionLabelApplier creates a new ActionLabelApplier
func NewActionLabelApplier(modifier ThreadModifier) *ActionLabelApplier {
	return &ActionLabelApplier{modifier: modifier}
}

// AddLabelToThread applies labelID to the thread through the modifier
func (a *ActionLabelApplier) AddLabelToThread(ctx context.Context, accountID, threadID, labelID string) error {
	compiled := CompileActions(FilterActions{ApplyLabel: labelID})
	if len(compiled.AddLabelIDs) == 0 {
		return fmt.Errorf("invalid label id %q", labelID)
	}
	return a.modifier.ModifyThread(ctx, accountID, threadID, compiled)
}
