package cda

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/crosscare/exchange/pkg/cdm"
)

func TestDefaultFieldMapCoversAllSections(t *testing.T) {
	fm := DefaultFieldMap()
	wanted := map[string]cdm.Category{
		SectionMedications:   cdm.CategoryMedication,
		SectionAllergies:     cdm.CategoryAllergy,
		SectionProblems:      cdm.CategoryProblem,
		SectionProcedures:    cdm.CategoryProcedure,
		SectionResults:       cdm.CategoryLabResult,
		SectionVitalSigns:    cdm.CategoryVitalSign,
		SectionImmunizations: cdm.CategoryImmunization,
		SectionSocialHistory: cdm.CategorySocialHistory,
		SectionPregnancies:   cdm.CategoryPregnancyEvent,
	}
	for code, cat := range wanted {
		spec, ok := fm.Section(code)
		if !ok {
			t.Errorf("section %s missing from default map", code)
			continue
		}
		if spec.Category != cat {
			t.Errorf("section %s category = %s, want %s", code, spec.Category, cat)
		}
		if len(spec.Roots) == 0 {
			t.Errorf("section %s has no statement roots", code)
		}
		if len(spec.Fields[FieldCode]) == 0 {
			t.Errorf("section %s has no code locators", code)
		}
	}
}

func TestLoadFieldMapFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fieldmap.yaml")
	data := `version: "test.1"
sections:
  - code: "10160-0"
    category: medication
    roots: ["substanceAdministration"]
    fields:
      code:
        - path: "consumable/manufacturedProduct/manufacturedMaterial/code"
          attr: "code"
      display:
        - attr: "displayName"
        - pattern: "(?i)drug:\\s*(\\S+)"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	fm, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if fm.Version != "test.1" {
		t.Fatalf("version = %q", fm.Version)
	}
	spec, ok := fm.Section("10160-0")
	if !ok {
		t.Fatal("section missing after load")
	}
	if spec.Category != cdm.CategoryMedication {
		t.Fatalf("category = %s", spec.Category)
	}
	if len(spec.Fields[FieldDisplay]) != 2 || spec.Fields[FieldDisplay][1].Pattern == "" {
		t.Fatalf("display locators = %+v", spec.Fields[FieldDisplay])
	}
}

func TestLoadEmptyPathReturnsDefault(t *testing.T) {
	fm, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(fm.Sections) == 0 {
		t.Fatal("default map empty")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/fieldmap.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
