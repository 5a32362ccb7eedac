package survey

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinform/clinform/internal/platform/apperr"
	"github.com/clinform/clinform/internal/platform/auth"
	"github.com/clinform/clinform/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole("coordinator", "revisor"))
	read.GET("/surveys", h.SearchSurveys)
	read.GET("/surveys/:id", h.GetSurvey)
	read.GET("/surveys/:id/tree", h.SurveyTree)
	read.GET("/sections", h.SearchSections)
	read.GET("/sections/:id/tree", h.SectionTree)
	read.POST("/sections/trees", h.SectionTrees)
	read.GET("/questions", h.SearchQuestions)
	read.GET("/responses", h.SearchResponses)

	write := api.Group("", auth.RequireRole("coordinator"))
	write.POST("/surveys", h.CreateSurvey)
	write.PUT("/surveys/:id", h.UpdateSurvey)
	write.DELETE("/surveys/:id", h.DeleteSurvey)
	write.POST("/surveys/:id/finalize", h.FinalizeSurvey)
	write.POST("/surveys/:id/duplicate", h.DuplicateSurvey)
	write.POST("/surveys/:id/replace-content", h.ReplaceContent)

	write.POST("/surveys/:id/sections", h.CreateSectionAndAttach)
	write.POST("/surveys/:id/sections/attach", h.AttachExistingSections)
	write.PATCH("/surveys/:id/sections/:sectionID", h.UpdateSection)
	write.DELETE("/surveys/:id/sections/:sectionID", h.DetachSection)

	write.POST("/surveys/:id/sections/:sectionID/questions", h.CreateQuestionAndAttach)
	write.POST("/surveys/:id/sections/:sectionID/questions/attach", h.AttachExistingQuestions)
	write.PATCH("/surveys/:id/sections/:sectionID/questions/:questionID", h.UpdateQuestion)
	write.DELETE("/surveys/:id/sections/:sectionID/questions/:questionID", h.DetachQuestion)

	write.POST("/surveys/:id/sections/:sectionID/questions/:questionID/responses", h.CreateResponseAndAttach)
	write.POST("/surveys/:id/sections/:sectionID/questions/:questionID/responses/attach", h.AttachExistingResponses)
	write.PUT("/surveys/:id/sections/:sectionID/questions/:questionID/responses/:responseID", h.AddResponseToQuestion)
	write.DELETE("/surveys/:id/sections/:sectionID/questions/:questionID/responses/:responseID", h.DetachResponse)

	write.POST("/surveys/:id/sections/:sectionID/questions/:questionID/list", h.CreateListForQuestion)
	write.POST("/surveys/:id/sections/:sectionID/questions/:questionID/list/items", h.AddQuestionToList)

	write.PUT("/responses/:id", h.UpdateResponse)
}

func httpError(err error) error {
	return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
}

func pathID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

// -- Surveys --

func (h *Handler) CreateSurvey(c echo.Context) error {
	var in SurveyInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sv, err := h.svc.CreateSurvey(c.Request().Context(), in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, sv)
}

func (h *Handler) GetSurvey(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	sv, err := h.svc.GetSurvey(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sv)
}

func (h *Handler) UpdateSurvey(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var in SurveyInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sv, err := h.svc.UpdateSurvey(c.Request().Context(), id, in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sv)
}

func (h *Handler) DeleteSurvey(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteSurvey(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) SearchSurveys(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.SearchSurveys(c.Request().Context(), c.QueryParam("name"), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) SurveyTree(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	tree, err := h.svc.SurveyTree(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, tree)
}

func (h *Handler) FinalizeSurvey(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.FinalizeSurvey(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) DuplicateSurvey(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var in SurveyInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	dup, err := h.svc.DuplicateSurvey(c.Request().Context(), id, in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, dup)
}

func (h *Handler) ReplaceContent(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var body struct {
		SourceID uuid.UUID `json:"source_id"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.ReplaceContent(c.Request().Context(), id, body.SourceID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Sections --

type attachRequest struct {
	IDs              []uuid.UUID `json:"ids"`
	InsertAfterOrder *int        `json:"insert_after_order,omitempty"`
}

func (h *Handler) AttachExistingSections(c echo.Context) error {
	surveyID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var body attachRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.AttachExistingSections(c.Request().Context(), surveyID, body.IDs, body.InsertAfterOrder); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) CreateSectionAndAttach(c echo.Context) error {
	surveyID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var body struct {
		SectionInput
		Position *int `json:"position,omitempty"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sec, err := h.svc.CreateSectionAndAttach(c.Request().Context(), surveyID, body.SectionInput, body.Position)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, sec)
}

func (h *Handler) UpdateSection(c echo.Context) error {
	surveyID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	sectionID, err := pathID(c, "sectionID")
	if err != nil {
		return err
	}
	var patch SectionPatch
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sec, err := h.svc.UpdateSection(c.Request().Context(), surveyID, sectionID, patch)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sec)
}

// DetachSection removes the section reference; with ?purge=true the
// section entity is soft-deleted as well.
func (h *Handler) DetachSection(c echo.Context) error {
	surveyID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	sectionID, err := pathID(c, "sectionID")
	if err != nil {
		return err
	}
	if c.QueryParam("purge") == "true" {
		err = h.svc.DeleteSection(c.Request().Context(), surveyID, sectionID)
	} else {
		err = h.svc.DetachSection(c.Request().Context(), surveyID, sectionID)
	}
	if err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) SearchSections(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.SearchSections(c.Request().Context(), c.QueryParam("name"), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) SectionTree(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	tree, err := h.svc.SectionTree(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, tree)
}

func (h *Handler) SectionTrees(c echo.Context) error {
	var body struct {
		IDs []uuid.UUID `json:"ids"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	trees, err := h.svc.SectionTrees(c.Request().Context(), body.IDs)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, trees)
}

// -- Questions --

func (h *Handler) AttachExistingQuestions(c echo.Context) error {
	surveyID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	sectionID, err := pathID(c, "sectionID")
	if err != nil {
		return err
	}
	var body attachRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.AttachExistingQuestions(c.Request().Context(), surveyID, sectionID, body.IDs, body.InsertAfterOrder); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) CreateQuestionAndAttach(c echo.Context) error {
	surveyID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	sectionID, err := pathID(c, "sectionID")
	if err != nil {
		return err
	}
	var body struct {
		QuestionInput
		Position *int `json:"position,omitempty"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	q, err := h.svc.CreateQuestionAndAttach(c.Request().Context(), surveyID, sectionID, body.QuestionInput, body.Position)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, q)
}

func (h *Handler) UpdateQuestion(c echo.Context) error {
	surveyID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	sectionID, err := pathID(c, "sectionID")
	if err != nil {
		return err
	}
	questionID, err := pathID(c, "questionID")
	if err != nil {
		return err
	}
	var patch QuestionPatch
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	q, err := h.svc.UpdateQuestion(c.Request().Context(), surveyID, sectionID, questionID, patch)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, q)
}

func (h *Handler) DetachQuestion(c echo.Context) error {
	surveyID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	sectionID, err := pathID(c, "sectionID")
	if err != nil {
		return err
	}
	questionID, err := pathID(c, "questionID")
	if err != nil {
		return err
	}
	if c.QueryParam("purge") == "true" {
		err = h.svc.DeleteQuestion(c.Request().Context(), surveyID, sectionID, questionID)
	} else {
		err = h.svc.DetachQuestion(c.Request().Context(), surveyID, sectionID, questionID)
	}
	if err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) SearchQuestions(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.SearchQuestions(c.Request().Context(), c.QueryParam("name"), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

// -- Responses --

func (h *Handler) AttachExistingResponses(c echo.Context) error {
	surveyID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	sectionID, err := pathID(c, "sectionID")
	if err != nil {
		return err
	}
	questionID, err := pathID(c, "questionID")
	if err != nil {
		return err
	}
	var body attachRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.AttachExistingResponses(c.Request().Context(), surveyID, sectionID, questionID, body.IDs, body.InsertAfterOrder); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) CreateResponseAndAttach(c echo.Context) error {
	surveyID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	sectionID, err := pathID(c, "sectionID")
	if err != nil {
		return err
	}
	questionID, err := pathID(c, "questionID")
	if err != nil {
		return err
	}
	var body struct {
		ResponseInput
		Position *int `json:"position,omitempty"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	resp, err := h.svc.CreateResponseAndAttach(c.Request().Context(), surveyID, sectionID, questionID, body.ResponseInput, body.Position)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, resp)
}

func (h *Handler) AddResponseToQuestion(c echo.Context) error {
	surveyID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	sectionID, err := pathID(c, "sectionID")
	if err != nil {
		return err
	}
	questionID, err := pathID(c, "questionID")
	if err != nil {
		return err
	}
	responseID, err := pathID(c, "responseID")
	if err != nil {
		return err
	}
	var body struct {
		Position *int `json:"position,omitempty"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.AddResponseToQuestion(c.Request().Context(), surveyID, sectionID, questionID, responseID, body.Position); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) DetachResponse(c echo.Context) error {
	surveyID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	sectionID, err := pathID(c, "sectionID")
	if err != nil {
		return err
	}
	questionID, err := pathID(c, "questionID")
	if err != nil {
		return err
	}
	responseID, err := pathID(c, "responseID")
	if err != nil {
		return err
	}
	if err := h.svc.DetachResponse(c.Request().Context(), surveyID, sectionID, questionID, responseID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) UpdateResponse(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var in ResponseInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	resp, err := h.svc.UpdateResponse(c.Request().Context(), id, in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) SearchResponses(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.SearchResponses(c.Request().Context(), c.QueryParam("text"), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

// -- Question lists --

func (h *Handler) CreateListForQuestion(c echo.Context) error {
	surveyID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	sectionID, err := pathID(c, "sectionID")
	if err != nil {
		return err
	}
	questionID, err := pathID(c, "questionID")
	if err != nil {
		return err
	}
	var body struct {
		Label string `json:"label"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	list, err := h.svc.CreateListForQuestion(c.Request().Context(), surveyID, sectionID, questionID, body.Label)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, list)
}

func (h *Handler) AddQuestionToList(c echo.Context) error {
	surveyID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	sectionID, err := pathID(c, "sectionID")
	if err != nil {
		return err
	}
	questionID, err := pathID(c, "questionID")
	if err != nil {
		return err
	}
	var body struct {
		QuestionID  uuid.UUID `json:"question_id"`
		Position    *int      `json:"position,omitempty"`
		ForceDetach bool      `json:"force_detach"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.AddQuestionToList(c.Request().Context(), surveyID, sectionID, questionID, body.QuestionID, body.Position, body.ForceDetach); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
