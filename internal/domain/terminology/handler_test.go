package terminology

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func newTestHandler() *Handler {
	return NewHandler(NewResolver(nil, nil, 0, zerolog.Nop()))
}

func TestFHIRLookupOK(t *testing.T) {
	e := echo.New()
	body := `{"system":"http://www.whocc.no/atc","code":"H03AA01"}`
	req := httptest.NewRequest(http.MethodPost, "/fhir/CodeSystem/$lookup", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := newTestHandler().FHIRLookup(c); err != nil {
		t.Fatalf("FHIRLookup: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp LookupResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ResourceType != "Parameters" {
		t.Fatalf("resourceType = %q", resp.ResourceType)
	}
}

func TestFHIRLookupValidation(t *testing.T) {
	e := echo.New()
	tests := []struct {
		name string
		body string
		want int
	}{
		{"missing system", `{"code":"H03AA01"}`, http.StatusBadRequest},
		{"missing code", `{"system":"http://loinc.org"}`, http.StatusBadRequest},
		{"unknown code", `{"system":"http://loinc.org","code":"0000-0"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/fhir/CodeSystem/$lookup", strings.NewReader(tt.body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			err := newTestHandler().FHIRLookup(c)
			he, ok := err.(*echo.HTTPError)
			if !ok {
				t.Fatalf("expected HTTPError, got %v", err)
			}
			if he.Code != tt.want {
				t.Fatalf("status = %d, want %d", he.Code, tt.want)
			}
		})
	}
}
