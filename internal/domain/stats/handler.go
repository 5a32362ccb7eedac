package stats

import (
	"net/http"
	"time"

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
	g := api.Group("/stats", auth.RequireRole("coordinator"))
	g.GET("/surveys/:id", h.SurveySummary)
	g.GET("/groups/:id", h.GroupSummary)
	g.GET("/indices/:id/values", h.IndexValues)
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

// rangeFromQuery reads the optional from/to bounds as RFC 3339.
func rangeFromQuery(c echo.Context) (Range, error) {
	var r Range
	for _, b := range []struct {
		param string
		dst   **time.Time
	}{
		{"from", &r.From},
		{"to", &r.To},
	} {
		v := c.QueryParam(b.param)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return Range{}, echo.NewHTTPError(http.StatusBadRequest, "invalid "+b.param+" timestamp")
		}
		*b.dst = &t
	}
	return r, nil
}

func (h *Handler) SurveySummary(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	r, err := rangeFromQuery(c)
	if err != nil {
		return err
	}
	out, err := h.svc.SurveySummary(c.Request().Context(), id, r)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) GroupSummary(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	r, err := rangeFromQuery(c)
	if err != nil {
		return err
	}
	out, err := h.svc.GroupSummary(c.Request().Context(), id, r)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) IndexValues(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	r, err := rangeFromQuery(c)
	if err != nil {
		return err
	}
	p := pagination.FromContext(c)
	items, total, err := h.svc.IndexValues(c.Request().Context(), id, r, p.Limit, p.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p.Limit, p.Offset))
}
