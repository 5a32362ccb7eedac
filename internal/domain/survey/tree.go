package survey

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/clinform/clinform/internal/platform/apperr"
)

// Tree reads assemble the ordered schema graph reachable from a survey or
// section. Plain joins over the same entities the composer mutates.

func (s *Service) SurveyTree(ctx context.Context, surveyID uuid.UUID) (*SurveyTree, error) {
	sv, err := s.GetSurvey(ctx, surveyID)
	if err != nil {
		return nil, err
	}
	edges, err := s.edges.Edges(ctx, SurveySections, surveyID)
	if err != nil {
		return nil, err
	}
	tree := &SurveyTree{Survey: sv, Sections: make([]*SectionNode, 0, len(edges))}
	for _, e := range edges {
		sec, err := s.sections.GetByID(ctx, e.ChildID)
		if err != nil {
			return nil, fmt.Errorf("%w: section %s", apperr.ErrNotFound, e.ChildID)
		}
		questions, err := s.questionNodes(ctx, sec.ID, false)
		if err != nil {
			return nil, err
		}
		tree.Sections = append(tree.Sections, &SectionNode{Section: sec, Order: e.Order, Questions: questions})
	}
	return tree, nil
}

func (s *Service) SectionTree(ctx context.Context, sectionID uuid.UUID) (*SectionTree, error) {
	sec, err := s.sections.GetByID(ctx, sectionID)
	if err != nil {
		return nil, fmt.Errorf("%w: section %s", apperr.ErrNotFound, sectionID)
	}
	questions, err := s.questionNodes(ctx, sectionID, true)
	if err != nil {
		return nil, err
	}
	return &SectionTree{Section: sec, Questions: questions}, nil
}

// SectionTrees bulk-reads several section trees in one call.
func (s *Service) SectionTrees(ctx context.Context, sectionIDs []uuid.UUID) ([]*SectionTree, error) {
	trees := make([]*SectionTree, 0, len(sectionIDs))
	for _, id := range sectionIDs {
		t, err := s.SectionTree(ctx, id)
		if err != nil {
			return nil, err
		}
		trees = append(trees, t)
	}
	return trees, nil
}

// questionNodes loads the ordered questions of a section. withResponses
// also loads each question's response links, list and item questions.
func (s *Service) questionNodes(ctx context.Context, sectionID uuid.UUID, withResponses bool) ([]*QuestionNode, error) {
	edges, err := s.edges.Edges(ctx, SectionQuestions, sectionID)
	if err != nil {
		return nil, err
	}
	nodes := make([]*QuestionNode, 0, len(edges))
	for _, e := range edges {
		node, err := s.questionNode(ctx, e.ChildID, e.Order, withResponses)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

func (s *Service) questionNode(ctx context.Context, questionID uuid.UUID, order int, withResponses bool) (*QuestionNode, error) {
	q, err := s.questions.GetByID(ctx, questionID)
	if err != nil {
		return nil, fmt.Errorf("%w: question %s", apperr.ErrNotFound, questionID)
	}
	node := &QuestionNode{Question: q, Order: order}
	if !withResponses {
		return node, nil
	}

	rEdges, err := s.edges.Edges(ctx, QuestionResponses, q.ID)
	if err != nil {
		return nil, err
	}
	for _, re := range rEdges {
		r, err := s.responses.GetByID(ctx, re.ChildID)
		if err != nil {
			return nil, fmt.Errorf("%w: response %s", apperr.ErrNotFound, re.ChildID)
		}
		node.Responses = append(node.Responses, &ResponseNode{Response: r, Order: re.Order})
	}

	if q.QuestionListID != nil {
		list, err := s.lists.GetByID(ctx, *q.QuestionListID)
		if err != nil {
			return nil, fmt.Errorf("%w: question list %s", apperr.ErrNotFound, *q.QuestionListID)
		}
		items, err := s.edges.Edges(ctx, ListItems, list.ID)
		if err != nil {
			return nil, err
		}
		ln := &ListNode{List: list}
		for _, ie := range items {
			item, err := s.questionNode(ctx, ie.ChildID, ie.Order, true)
			if err != nil {
				return nil, err
			}
			ln.Items = append(ln.Items, item)
		}
		node.List = ln
	}
	return node, nil
}
