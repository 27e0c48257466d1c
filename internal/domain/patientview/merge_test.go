package patientview

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/crosscare/exchange/pkg/cdm"
)

func med(code, display string, effective *time.Time) cdm.ClinicalRecord {
	return cdm.ClinicalRecord{
		Category:  cdm.CategoryMedication,
		Code:      cdm.Coding{Code: code, System: "2.16.840.1.113883.6.73", Display: display},
		Effective: effective,
	}
}

func viewWith(recs ...cdm.ClinicalRecord) *cdm.PatientClinicalView {
	v := cdm.NewPatientClinicalView()
	for _, r := range recs {
		v.AddRecord(r)
	}
	return v
}

func ts(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestMergeOverlappingMedications(t *testing.T) {
	// Five medications in one document, three in another, one shared.
	a := viewWith(
		med("A01", "med one", ts("2023-01-01")),
		med("A02", "med two", ts("2023-01-02")),
		med("A03", "med three", ts("2023-01-03")),
		med("A04", "med four", ts("2023-01-04")),
		med("A05", "med five", ts("2023-01-05")),
	)
	b := viewWith(
		med("A05", "med five", ts("2023-01-05")),
		med("B01", "med six", ts("2023-02-01")),
		med("B02", "med seven", ts("2023-02-02")),
	)

	merged := Merge(a, b)
	if got := len(merged.Records[cdm.CategoryMedication]); got != 7 {
		t.Errorf("merged medication count = %d, want 7", got)
	}
}

func TestMergeIdempotent(t *testing.T) {
	v := viewWith(
		med("A01", "med one", ts("2023-01-01")),
		med("A02", "med two", nil),
	)
	v.AddContact(cdm.ContactRecord{Role: cdm.RolePatient, Name: cdm.Name{Given: "Ana", Family: "Silva"}})
	v.Sources = append(v.Sources, cdm.Provenance{DocumentID: uuid.New(), Format: cdm.FormatCDA, Country: "PT"})
	v.AddWarning(cdm.WarnEmptySection, "section 48765-2 present but has zero entries", "section[48765-2]")

	merged := Merge(v, v)
	if got := len(merged.Records[cdm.CategoryMedication]); got != 2 {
		t.Errorf("self-merge medication count = %d, want 2", got)
	}
	if got := len(merged.Contacts); got != 1 {
		t.Errorf("self-merge contact count = %d, want 1", got)
	}
	if got := len(merged.Sources); got != 1 {
		t.Errorf("self-merge source count = %d, want 1", got)
	}
	if got := len(merged.Warnings); got != 1 {
		t.Errorf("self-merge warning count = %d, want 1", got)
	}

	// Re-merging an already-merged view must also be a no-op.
	again := Merge(merged, v)
	if len(again.Sources) != 1 || len(again.Warnings) != 1 {
		t.Errorf("re-merge grew provenance/warnings: %d sources, %d warnings",
			len(again.Sources), len(again.Warnings))
	}
}

func TestMergeKeepsDistinctSourcesAndWarnings(t *testing.T) {
	a := viewWith(med("A01", "med one", nil))
	a.Sources = append(a.Sources, cdm.Provenance{DocumentID: uuid.New(), Format: cdm.FormatCDA})
	a.AddWarning(cdm.WarnEmptySection, "zero entries", "section[48765-2]")

	b := viewWith(med("B01", "med two", nil))
	b.Sources = append(b.Sources, cdm.Provenance{DocumentID: uuid.New(), Format: cdm.FormatFHIRBundle})
	b.AddWarning(cdm.WarnUnrecognized, "resource type NutritionOrder has no mapping", "entry[3]")

	merged := Merge(a, b)
	if got := len(merged.Sources); got != 2 {
		t.Errorf("source count = %d, want both documents", got)
	}
	if got := len(merged.Warnings); got != 2 {
		t.Errorf("warning count = %d, want both warnings", got)
	}
}

func TestMergeCommutative(t *testing.T) {
	a := viewWith(med("A01", "med one", ts("2023-01-01")), med("A02", "med two", ts("2023-01-02")))
	b := viewWith(med("A02", "med two", ts("2023-01-02")), med("B01", "med three", ts("2023-02-01")))

	ab := Merge(a, b)
	ba := Merge(b, a)
	if len(ab.Records[cdm.CategoryMedication]) != len(ba.Records[cdm.CategoryMedication]) {
		t.Errorf("merge not commutative: %d vs %d records",
			len(ab.Records[cdm.CategoryMedication]), len(ba.Records[cdm.CategoryMedication]))
	}

	keys := func(v *cdm.PatientClinicalView) map[recordKey]bool {
		m := make(map[recordKey]bool)
		for _, rec := range v.Records[cdm.CategoryMedication] {
			m[keyOf(rec)] = true
		}
		return m
	}
	ka, kb := keys(ab), keys(ba)
	for k := range ka {
		if !kb[k] {
			t.Errorf("record %v present in a+b but not b+a", k)
		}
	}
}

func TestMergeCompletenessWins(t *testing.T) {
	sparse := med("A01", "", ts("2023-01-01"))
	rich := med("A01", "levothyroxine sodium", ts("2023-01-01"))
	rich.Dosage = "1 tablet daily"
	rich.Status = "active"

	merged := Merge(viewWith(sparse), viewWith(rich))
	recs := merged.Records[cdm.CategoryMedication]
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	if recs[0].Dosage != "1 tablet daily" {
		t.Errorf("sparse record survived over complete one: %+v", recs[0])
	}

	// Order must not matter.
	merged = Merge(viewWith(rich), viewWith(sparse))
	if merged.Records[cdm.CategoryMedication][0].Dosage != "1 tablet daily" {
		t.Error("complete record lost when it came first")
	}
}

func TestMergeTimezoneNormalizedDates(t *testing.T) {
	utc := time.Date(2023, 4, 7, 22, 0, 0, 0, time.UTC)
	lisbon := utc.In(time.FixedZone("WEST", 1*60*60))

	merged := Merge(viewWith(med("A01", "med", &utc)), viewWith(med("A01", "med", &lisbon)))
	if got := len(merged.Records[cdm.CategoryMedication]); got != 1 {
		t.Errorf("same instant in two zones produced %d records, want 1", got)
	}
}

func TestMergeKeepsEmptyCategories(t *testing.T) {
	a := cdm.NewPatientClinicalView()
	a.MarkCategory(cdm.CategoryAllergy)
	b := viewWith(med("A01", "med", nil))

	merged := Merge(a, b)
	if _, ok := merged.Records[cdm.CategoryAllergy]; !ok {
		t.Error("present-but-empty allergy section lost in merge")
	}
	if len(merged.Records[cdm.CategoryAllergy]) != 0 {
		t.Error("empty category gained records")
	}
}

func TestMergeContactUnion(t *testing.T) {
	a := cdm.NewPatientClinicalView()
	a.AddContact(cdm.ContactRecord{
		Role:      cdm.RolePatient,
		Name:      cdm.Name{Given: "Ana", Family: "Silva"},
		Addresses: []cdm.Address{{Street: "Rua Augusta 12", City: "Lisboa"}},
		Telecoms:  []cdm.Telecom{{System: cdm.TelecomPhone, Value: "+351-21-555-0100"}},
	})
	b := cdm.NewPatientClinicalView()
	b.AddContact(cdm.ContactRecord{
		Role:      cdm.RolePatient,
		Name:      cdm.Name{Given: "ana", Family: "SILVA"},
		Addresses: []cdm.Address{{Street: "Rua Augusta 12", City: "Lisboa"}, {Street: "Av da Liberdade 1", City: "Lisboa"}},
		Telecoms:  []cdm.Telecom{{System: cdm.TelecomEmail, Value: "ana@example.org"}},
	})

	merged := Merge(a, b)
	if len(merged.Contacts) != 1 {
		t.Fatalf("got %d contacts, want 1 (case-insensitive name match)", len(merged.Contacts))
	}
	c := merged.Contacts[0]
	if len(c.Addresses) != 2 {
		t.Errorf("address union size = %d, want 2", len(c.Addresses))
	}
	if len(c.Telecoms) != 2 {
		t.Errorf("telecom union size = %d, want 2", len(c.Telecoms))
	}
}

func TestMergePatientSummaryFillsGaps(t *testing.T) {
	a := cdm.NewPatientClinicalView()
	a.Patient = cdm.PatientSummary{Name: cdm.Name{Given: "Ana", Family: "Silva"}, Identifiers: []string{"PT-1001"}}
	b := cdm.NewPatientClinicalView()
	b.Patient = cdm.PatientSummary{Name: cdm.Name{Given: "A.", Family: "Silva"}, BirthDate: "1975-03-21", Gender: "female", Identifiers: []string{"PT-1001", "EU-99"}}

	merged := Merge(a, b)
	if merged.Patient.Name.Given != "Ana" {
		t.Errorf("first fragment's name overwritten: %+v", merged.Patient.Name)
	}
	if merged.Patient.BirthDate != "1975-03-21" || merged.Patient.Gender != "female" {
		t.Errorf("gaps not filled: %+v", merged.Patient)
	}
	if len(merged.Patient.Identifiers) != 2 {
		t.Errorf("identifiers = %v, want deduplicated union of 2", merged.Patient.Identifiers)
	}
}

func TestSortRecordsNewestFirst(t *testing.T) {
	v := viewWith(
		med("A01", "oldest", ts("2020-01-01")),
		med("A02", "undated", nil),
		med("A03", "newest", ts("2024-06-01")),
	)
	SortRecords(v)
	recs := v.Records[cdm.CategoryMedication]
	if recs[0].Code.Code != "A03" {
		t.Errorf("first record = %s, want newest", recs[0].Code.Code)
	}
	if recs[len(recs)-1].Code.Code != "A02" {
		t.Errorf("last record = %s, want undated", recs[len(recs)-1].Code.Code)
	}
}

func TestMergeManyFragments(t *testing.T) {
	fragments := make([]*cdm.PatientClinicalView, 10)
	for i := range fragments {
		fragments[i] = viewWith(med(fmt.Sprintf("A%02d", i%5), "med", ts("2023-01-01")))
	}
	merged := Merge(fragments...)
	if got := len(merged.Records[cdm.CategoryMedication]); got != 5 {
		t.Errorf("got %d records, want 5 distinct codes", got)
	}
}
