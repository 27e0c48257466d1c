package patientview

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/crosscare/exchange/pkg/cdm"
)

// Handler exposes view assembly over HTTP.
type Handler struct {
	service *Service
}

// NewHandler creates a patient-view handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers patient-view routes on the API group.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/patient-view", h.AssembleView)
}

type documentInput struct {
	ID       string `json:"id,omitempty"`
	Content  string `json:"content"`
	Format   string `json:"format,omitempty"`
	Country  string `json:"country,omitempty"`
	Language string `json:"language,omitempty"`
}

type assembleRequest struct {
	Documents []documentInput `json:"documents"`
}

// AssembleView handles POST /api/v1/patient-view: source documents in, one
// merged clinical view out.
func (h *Handler) AssembleView(c echo.Context) error {
	var req assembleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.Documents) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "at least one document is required")
	}

	docs := make([]cdm.ClinicalDocument, 0, len(req.Documents))
	for _, in := range req.Documents {
		if in.Content == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "document content is required")
		}
		id, err := uuid.Parse(in.ID)
		if err != nil {
			id = uuid.New()
		}
		docs = append(docs, cdm.ClinicalDocument{
			ID:       id,
			Content:  []byte(in.Content),
			Format:   cdm.Format(in.Format),
			Country:  in.Country,
			Language: in.Language,
		})
	}

	view, err := h.service.Assemble(c.Request().Context(), docs)
	if err != nil {
		if errors.Is(err, cdm.ErrMalformedDocument) {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, view)
}
