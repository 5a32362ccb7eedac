package survey

// Scope identifies one ordered join relation. Every structural operation
// (attach, move, detach, compact) addresses a parent row inside exactly one
// scope; order values within that parent form a dense 1..N permutation.
type Scope struct {
	Table     string
	ParentCol string
	ChildCol  string
	// RemovedCol names the link-level soft-remove flag; empty when the
	// relation deletes its rows outright.
	RemovedCol string
}

var (
	// SurveySections orders sections inside a survey.
	SurveySections = Scope{Table: "survey_section", ParentCol: "survey_id", ChildCol: "section_id"}
	// SectionQuestions orders questions inside a section.
	SectionQuestions = Scope{Table: "section_question", ParentCol: "section_id", ChildCol: "question_id", RemovedCol: "removed"}
	// QuestionResponses orders response links under a question.
	QuestionResponses = Scope{Table: "question_response", ParentCol: "question_id", ChildCol: "response_id", RemovedCol: "removed"}
	// ListItems orders item questions inside a question list.
	ListItems = Scope{Table: "question_list_item", ParentCol: "question_list_id", ChildCol: "question_id"}
)
