package patientview

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/crosscare/exchange/pkg/cdm"
)

// stubParser returns a canned fragment per document, or an error.
func stubParser(category cdm.Category, failOn map[uuid.UUID]error) ParseFunc {
	return func(ctx context.Context, doc cdm.ClinicalDocument) (*cdm.PatientClinicalView, error) {
		if err, ok := failOn[doc.ID]; ok {
			return nil, err
		}
		v := cdm.NewPatientClinicalView()
		v.AddRecord(cdm.ClinicalRecord{
			Category: category,
			Code:     cdm.Coding{Code: doc.ID.String(), System: "test"},
		})
		return v, nil
	}
}

func cdaDoc() cdm.ClinicalDocument {
	return cdm.ClinicalDocument{ID: uuid.New(), Content: []byte(`<ClinicalDocument/>`), Format: cdm.FormatCDA}
}

func fhirDoc() cdm.ClinicalDocument {
	return cdm.ClinicalDocument{ID: uuid.New(), Content: []byte(`{"resourceType":"Bundle"}`), Format: cdm.FormatFHIRBundle}
}

func TestAssembleRoutesByFormat(t *testing.T) {
	svc := NewService(
		stubParser(cdm.CategoryProblem, nil),
		stubParser(cdm.CategoryMedication, nil),
		0, zerolog.Nop(),
	)

	view, err := svc.Assemble(context.Background(), []cdm.ClinicalDocument{cdaDoc(), fhirDoc()})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(view.Records[cdm.CategoryProblem]) != 1 {
		t.Error("CDA document not routed to the CDA parser")
	}
	if len(view.Records[cdm.CategoryMedication]) != 1 {
		t.Error("FHIR document not routed to the FHIR parser")
	}
}

func TestAssembleSniffsUndeclaredFormat(t *testing.T) {
	svc := NewService(
		stubParser(cdm.CategoryProblem, nil),
		stubParser(cdm.CategoryMedication, nil),
		0, zerolog.Nop(),
	)

	doc := cdm.ClinicalDocument{ID: uuid.New(), Content: []byte(`  {"resourceType":"Bundle"}`)}
	view, err := svc.Assemble(context.Background(), []cdm.ClinicalDocument{doc})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(view.Records[cdm.CategoryMedication]) != 1 {
		t.Error("JSON content not sniffed as a FHIR bundle")
	}
}

func TestAssembleMalformedSiblingKeepsPartialView(t *testing.T) {
	bad := cdaDoc()
	good := cdaDoc()
	svc := NewService(
		stubParser(cdm.CategoryProblem, map[uuid.UUID]error{
			bad.ID: fmt.Errorf("%w: bad xml", cdm.ErrMalformedDocument),
		}),
		stubParser(cdm.CategoryMedication, nil),
		0, zerolog.Nop(),
	)

	view, err := svc.Assemble(context.Background(), []cdm.ClinicalDocument{bad, good})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(view.Records[cdm.CategoryProblem]) != 1 {
		t.Errorf("valid sibling lost: %v", view.Records)
	}
	found := false
	for _, w := range view.Warnings {
		if w.Code == cdm.WarnMalformed && w.Source == bad.ID.String() {
			found = true
		}
	}
	if !found {
		t.Errorf("missing malformed warning for failed document: %v", view.Warnings)
	}
}

func TestAssembleAllMalformedFails(t *testing.T) {
	doc := cdaDoc()
	svc := NewService(
		stubParser(cdm.CategoryProblem, map[uuid.UUID]error{
			doc.ID: fmt.Errorf("%w: bad xml", cdm.ErrMalformedDocument),
		}),
		stubParser(cdm.CategoryMedication, nil),
		0, zerolog.Nop(),
	)

	_, err := svc.Assemble(context.Background(), []cdm.ClinicalDocument{doc})
	if !errors.Is(err, cdm.ErrMalformedDocument) {
		t.Errorf("err = %v, want malformed", err)
	}
}

func TestAssembleUnknownFormatWarns(t *testing.T) {
	unknown := cdm.ClinicalDocument{ID: uuid.New(), Content: []byte(`plain text`)}
	good := fhirDoc()
	svc := NewService(
		stubParser(cdm.CategoryProblem, nil),
		stubParser(cdm.CategoryMedication, nil),
		0, zerolog.Nop(),
	)

	view, err := svc.Assemble(context.Background(), []cdm.ClinicalDocument{unknown, good})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(view.Records[cdm.CategoryMedication]) != 1 {
		t.Error("valid sibling lost")
	}
	found := false
	for _, w := range view.Warnings {
		if w.Code == cdm.WarnMalformed && w.Source == unknown.ID.String() {
			found = true
		}
	}
	if !found {
		t.Errorf("missing warning for unrecognized format: %v", view.Warnings)
	}
}

func TestAssembleTimeoutReturnsCompletedFragments(t *testing.T) {
	fast := fhirDoc()
	slow := cdaDoc()

	slowParse := func(ctx context.Context, doc cdm.ClinicalDocument) (*cdm.PatientClinicalView, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
			return cdm.NewPatientClinicalView(), nil
		}
	}
	svc := NewService(
		slowParse,
		stubParser(cdm.CategoryMedication, nil),
		50*time.Millisecond, zerolog.Nop(),
	)

	view, err := svc.Assemble(context.Background(), []cdm.ClinicalDocument{fast, slow})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(view.Records[cdm.CategoryMedication]) != 1 {
		t.Error("completed fragment lost on timeout")
	}
	found := false
	for _, w := range view.Warnings {
		if w.Code == cdm.WarnTimeout && w.Source == slow.ID.String() {
			found = true
		}
	}
	if !found {
		t.Errorf("missing timeout warning: %v", view.Warnings)
	}
}

func TestAssembleEmptyInput(t *testing.T) {
	svc := NewService(
		stubParser(cdm.CategoryProblem, nil),
		stubParser(cdm.CategoryMedication, nil),
		0, zerolog.Nop(),
	)
	view, err := svc.Assemble(context.Background(), nil)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if view.RecordCount() != 0 {
		t.Errorf("empty input produced records: %v", view.Records)
	}
}
