package negation

import (
	"testing"

	"github.com/crosscare/exchange/pkg/cdm"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		code    string
		system  string
		wantCat cdm.Category
		wantOK  bool
	}{
		{"no-allergy-info", SystemAbsentUnknown, cdm.CategoryAllergy, true},
		{"no-medication-info", SystemAbsentUnknown, cdm.CategoryMedication, true},
		{"No-Known-Problems", SystemAbsentUnknown, cdm.CategoryProblem, true},
		{"716186003", SystemSNOMED, cdm.CategoryAllergy, true},
		{"409137002", "2.16.840.1.113883.6.96", cdm.CategoryMedication, true},
		{"H03AA01", "http://www.whocc.no/atc", "", false},
		{"", "", "", false},
	}
	for _, tt := range tests {
		cat, ok := Detect(tt.code, tt.system)
		if ok != tt.wantOK || cat != tt.wantCat {
			t.Errorf("Detect(%q, %q) = (%q, %v), want (%q, %v)",
				tt.code, tt.system, cat, ok, tt.wantCat, tt.wantOK)
		}
	}
}

func TestPhraseNeverEmpty(t *testing.T) {
	for _, cat := range cdm.CategoryOrder {
		if Phrase(cat) == "" {
			t.Errorf("Phrase(%q) is empty", cat)
		}
	}
	if Phrase(cdm.Category("something-else")) == "" {
		t.Error("Phrase for unmapped category is empty")
	}
}

func TestApplySuppressesSubFields(t *testing.T) {
	rec := cdm.ClinicalRecord{
		Category: cdm.CategoryUnknown,
		Code:     cdm.Coding{Code: "no-allergy-info", System: SystemAbsentUnknown, Display: "should be replaced"},
		SecondaryCodes: []cdm.Coding{{Code: "20053000"}},
		Value:    "1",
		Unit:     "mg",
		Dosage:   "1 tablet daily",
		Severity: "severe",
		Reaction: "rash",
	}
	Apply(&rec, cdm.CategoryAllergy)

	if !rec.NegativeAssertion {
		t.Fatal("NegativeAssertion not set")
	}
	if rec.Category != cdm.CategoryAllergy {
		t.Fatalf("category = %q, want allergy", rec.Category)
	}
	if rec.Code.Display != "No information about allergies" {
		t.Fatalf("display = %q", rec.Code.Display)
	}
	if rec.SecondaryCodes != nil || rec.Value != "" || rec.Unit != "" ||
		rec.Dosage != "" || rec.Severity != "" || rec.Reaction != "" {
		t.Fatalf("sub-fields not suppressed: %+v", rec)
	}
	if rec.Code.Code != "no-allergy-info" {
		t.Fatal("original code must be preserved for traceability")
	}
}
