package mchms

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/mchms/internal/domain/metadata"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/calculations/tested-for-hiv", h.Evaluate)
}

// EvaluateRequest is the JSON body of an evaluation call.
type EvaluateRequest struct {
	Cohort []uuid.UUID `json:"cohort"`
	Stage  string      `json:"stage,omitempty"`
	Result string      `json:"result,omitempty"`
	AsOf   string      `json:"as_of,omitempty"`
}

func (h *Handler) Evaluate(c echo.Context) error {
	var body EvaluateRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(body.Cohort) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "cohort is required")
	}
	stage, err := ParseStage(body.Stage)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	asOf, err := ParseAsOf(body.AsOf)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	eval, err := h.svc.Evaluate(c.Request().Context(), EvaluationRequest{
		Cohort: body.Cohort,
		Stage:  stage,
		Result: ResultCode(body.Result),
		AsOf:   asOf,
	})
	if err != nil {
		return evaluationError(err)
	}
	return c.JSON(http.StatusOK, eval)
}

func evaluationError(err error) error {
	switch {
	case errors.Is(err, ErrMissingDate):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, metadata.ErrUnknownMetadata):
		return echo.NewHTTPError(http.StatusInternalServerError, "calculation metadata is not configured: "+err.Error())
	case errors.Is(err, ErrUnknownStage):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
