package survey

import (
	"time"

	"github.com/google/uuid"
)

// Survey kinds.
const (
	KindHistory  = "history"
	KindRevision = "revision"
)

var validKinds = map[string]bool{KindHistory: true, KindRevision: true}

// Survey maps to the survey table. A survey owns an ordered sequence of
// section references; the sections themselves may be shared with other
// surveys until a write forces a copy.
type Survey struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Kind      string    `db:"kind" json:"kind"`
	Deleted   bool      `db:"deleted" json:"deleted"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Section maps to the section table. Referenced by any number of surveys.
type Section struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	Name          string     `db:"name" json:"name"`
	Note          *string    `db:"note" json:"note,omitempty"`
	CoordinatorID *uuid.UUID `db:"coordinator_id" json:"coordinator_id,omitempty"`
	Deleted       bool       `db:"deleted" json:"deleted"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// Question maps to the question table. QuestionListID is set when this
// question owns a list of item questions; item questions themselves never
// attach directly to a section.
type Question struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	Name           string     `db:"name" json:"name"`
	QuestionListID *uuid.UUID `db:"question_list_id" json:"question_list_id,omitempty"`
	Deleted        bool       `db:"deleted" json:"deleted"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// QuestionList maps to the question_list table. Always owned by exactly one
// question for its whole life; it is cloned together with that question.
type QuestionList struct {
	ID    uuid.UUID `db:"id" json:"id"`
	Label string    `db:"label" json:"label"`
}

// Response maps to the response table. Linked to any number of questions.
type Response struct {
	ID       uuid.UUID `db:"id" json:"id"`
	Text     string    `db:"text" json:"text"`
	MinValue *float64  `db:"min_value" json:"min_value,omitempty"`
	MaxValue *float64  `db:"max_value" json:"max_value,omitempty"`
	Deleted  bool      `db:"deleted" json:"deleted"`
}

// Edge is one ordered join row inside a parent scope.
type Edge struct {
	ChildID uuid.UUID `json:"child_id"`
	Order   int       `json:"order"`
}

// Tree read models.

type SurveyTree struct {
	Survey   *Survey        `json:"survey"`
	Sections []*SectionNode `json:"sections"`
}

type SectionNode struct {
	Section   *Section        `json:"section"`
	Order     int             `json:"order"`
	Questions []*QuestionNode `json:"questions"`
}

type SectionTree struct {
	Section   *Section        `json:"section"`
	Questions []*QuestionNode `json:"questions"`
}

type QuestionNode struct {
	Question  *Question       `json:"question"`
	Order     int             `json:"order"`
	Responses []*ResponseNode `json:"responses,omitempty"`
	List      *ListNode       `json:"list,omitempty"`
}

type ResponseNode struct {
	Response *Response `json:"response"`
	Order    int       `json:"order"`
}

type ListNode struct {
	List  *QuestionList   `json:"list"`
	Items []*QuestionNode `json:"items"`
}

// SurveyPreview is the search row: survey plus its section count.
type SurveyPreview struct {
	Survey       *Survey `json:"survey"`
	SectionCount int     `json:"section_count"`
}

type SectionPreview struct {
	Section       *Section `json:"section"`
	QuestionCount int      `json:"question_count"`
}
