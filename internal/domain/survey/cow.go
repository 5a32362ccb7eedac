package survey

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/clinform/clinform/internal/platform/apperr"
)

// Copy-on-write resolution. A section or question referenced by more than
// one parent is never mutated in place: the caller's parent gets a private
// clone and every sibling parent keeps the original. ParentCount locks the
// join rows, so two concurrent resolutions of the same shared child
// serialize and produce exactly one clone.

// memberOf asserts that childID is an active child of parentID in the
// given scope, locking the parent's rows. Resolving through a parent that
// does not hold the child would either mutate a sibling's content in place
// or commit an orphaned clone, so a missing row is a hard NotFound.
func (s *Service) memberOf(ctx context.Context, sc Scope, parentID, childID uuid.UUID) error {
	edges, err := s.edges.EdgesForUpdate(ctx, sc, parentID)
	if err != nil {
		return err
	}
	for _, e := range edges {
		if e.ChildID == childID {
			return nil
		}
	}
	return fmt.Errorf("%w: %s has no child %s", apperr.ErrNotFound, parentID, childID)
}

// ensureWritableSection returns the section id the survey may mutate,
// cloning the section (and its question join rows, shallow) when it is
// shared with other surveys. The section must currently belong to the
// survey.
func (s *Service) ensureWritableSection(ctx context.Context, surveyID, sectionID uuid.UUID) (uuid.UUID, error) {
	if err := s.memberOf(ctx, SurveySections, surveyID, sectionID); err != nil {
		return uuid.Nil, err
	}
	n, err := s.edges.ParentCount(ctx, SurveySections, sectionID)
	if err != nil {
		return uuid.Nil, err
	}
	if n <= 1 {
		return sectionID, nil
	}

	orig, err := s.sections.GetByID(ctx, sectionID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: section %s", apperr.ErrNotFound, sectionID)
	}

	clone := &Section{Name: orig.Name, Note: orig.Note, CoordinatorID: orig.CoordinatorID}
	if err := s.sections.Create(ctx, clone); err != nil {
		return uuid.Nil, err
	}

	// Shallow copy: the clone references the same shared questions.
	qEdges, err := s.edges.Edges(ctx, SectionQuestions, sectionID)
	if err != nil {
		return uuid.Nil, err
	}
	for _, e := range qEdges {
		if err := s.edges.Insert(ctx, SectionQuestions, clone.ID, e.ChildID, e.Order); err != nil {
			return uuid.Nil, err
		}
	}

	if err := s.edges.Relink(ctx, SurveySections, surveyID, sectionID, clone.ID); err != nil {
		return uuid.Nil, err
	}
	if err := compactScope(ctx, s.edges, SectionQuestions, clone.ID); err != nil {
		return uuid.Nil, err
	}
	return clone.ID, nil
}

// ensureWritableQuestion returns the question id the section may mutate.
// A shared question is cloned along with its response links and, when it
// owns a question list, that list and its item rows; item questions stay
// shared. The question must currently belong to the section.
func (s *Service) ensureWritableQuestion(ctx context.Context, sectionID, questionID uuid.UUID) (uuid.UUID, error) {
	if err := s.memberOf(ctx, SectionQuestions, sectionID, questionID); err != nil {
		return uuid.Nil, err
	}
	n, err := s.edges.ParentCount(ctx, SectionQuestions, questionID)
	if err != nil {
		return uuid.Nil, err
	}
	if n <= 1 {
		return questionID, nil
	}

	orig, err := s.questions.GetByID(ctx, questionID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: question %s", apperr.ErrNotFound, questionID)
	}

	clone := &Question{Name: orig.Name}

	var origListID, cloneListID uuid.UUID
	if orig.QuestionListID != nil {
		origListID = *orig.QuestionListID
		origList, err := s.lists.GetByID(ctx, origListID)
		if err != nil {
			return uuid.Nil, fmt.Errorf("%w: question list %s", apperr.ErrNotFound, origListID)
		}
		newList := &QuestionList{Label: origList.Label}
		if err := s.lists.Create(ctx, newList); err != nil {
			return uuid.Nil, err
		}
		cloneListID = newList.ID
		clone.QuestionListID = &newList.ID
	}

	if err := s.questions.Create(ctx, clone); err != nil {
		return uuid.Nil, err
	}

	rEdges, err := s.edges.Edges(ctx, QuestionResponses, questionID)
	if err != nil {
		return uuid.Nil, err
	}
	for _, e := range rEdges {
		if err := s.edges.Insert(ctx, QuestionResponses, clone.ID, e.ChildID, e.Order); err != nil {
			return uuid.Nil, err
		}
	}

	if orig.QuestionListID != nil {
		items, err := s.edges.Edges(ctx, ListItems, origListID)
		if err != nil {
			return uuid.Nil, err
		}
		for _, e := range items {
			if err := s.edges.Insert(ctx, ListItems, cloneListID, e.ChildID, e.Order); err != nil {
				return uuid.Nil, err
			}
		}
	}

	if err := s.edges.Relink(ctx, SectionQuestions, sectionID, questionID, clone.ID); err != nil {
		return uuid.Nil, err
	}
	if err := compactScope(ctx, s.edges, QuestionResponses, clone.ID); err != nil {
		return uuid.Nil, err
	}
	if orig.QuestionListID != nil {
		if err := compactScope(ctx, s.edges, ListItems, cloneListID); err != nil {
			return uuid.Nil, err
		}
	}
	return clone.ID, nil
}
