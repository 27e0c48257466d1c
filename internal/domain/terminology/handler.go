package terminology

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handler exposes the resolver as a FHIR terminology operation endpoint.
type Handler struct {
	resolver *Resolver
}

// NewHandler creates a terminology handler.
func NewHandler(resolver *Resolver) *Handler {
	return &Handler{resolver: resolver}
}

// RegisterRoutes registers terminology routes on the FHIR group.
func (h *Handler) RegisterRoutes(fhirGroup *echo.Group) {
	fhirGroup.POST("/CodeSystem/$lookup", h.FHIRLookup)
}

type lookupRequest struct {
	System   string `json:"system"`
	Code     string `json:"code"`
	Language string `json:"language,omitempty"`
}

// FHIRLookup handles POST /fhir/CodeSystem/$lookup.
func (h *Handler) FHIRLookup(c echo.Context) error {
	var req lookupRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.System == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "system is required")
	}
	if req.Code == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "code is required")
	}

	resp, err := h.resolver.Lookup(c.Request().Context(), req.Code, req.System, req.Language)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "code not found: "+req.Code)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, resp)
}
