package cdm

import "testing"

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name     string
		declared Format
		content  string
		want     Format
	}{
		{"declared cda wins", FormatCDA, `{"resourceType":"Bundle"}`, FormatCDA},
		{"declared fhir wins", FormatFHIRBundle, "<ClinicalDocument/>", FormatFHIRBundle},
		{"sniff xml", FormatUnknown, "  <?xml version=\"1.0\"?><ClinicalDocument/>", FormatCDA},
		{"sniff json", FormatUnknown, "\n{\"resourceType\":\"Bundle\"}", FormatFHIRBundle},
		{"sniff bom xml", FormatUnknown, "\xef\xbb\xbf<ClinicalDocument/>", FormatCDA},
		{"empty", FormatUnknown, "", FormatUnknown},
		{"garbage", FormatUnknown, "hello", FormatUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectFormat(tt.declared, []byte(tt.content))
			if got != tt.want {
				t.Errorf("DetectFormat() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestContactRecordEmpty(t *testing.T) {
	if !(ContactRecord{Role: RoleOther}).Empty() {
		t.Error("contact with only a role should be empty")
	}
	if (ContactRecord{Name: Name{Family: "Peeters"}}).Empty() {
		t.Error("contact with a family name should not be empty")
	}
	if (ContactRecord{Telecoms: []Telecom{{System: TelecomPhone, Value: "tel:+3221234567"}}}).Empty() {
		t.Error("contact with a telecom should not be empty")
	}
	if (ContactRecord{Organization: "University Hospital"}).Empty() {
		t.Error("contact with an organization should not be empty")
	}
}

func TestMarkCategoryKeepsEmptySection(t *testing.T) {
	v := NewPatientClinicalView()
	v.MarkCategory(CategoryAllergy)

	recs, ok := v.Records[CategoryAllergy]
	if !ok {
		t.Fatal("marked category missing from record map")
	}
	if len(recs) != 0 {
		t.Fatalf("expected zero records, got %d", len(recs))
	}

	// Marking must not wipe existing records.
	v.AddRecord(ClinicalRecord{Category: CategoryAllergy, Code: Coding{Code: "91936005"}})
	v.MarkCategory(CategoryAllergy)
	if len(v.Records[CategoryAllergy]) != 1 {
		t.Fatal("MarkCategory dropped existing records")
	}
}

func TestAddContactDropsEmpty(t *testing.T) {
	v := NewPatientClinicalView()
	v.AddContact(ContactRecord{Role: RoleAuthor})
	if len(v.Contacts) != 0 {
		t.Fatal("empty contact was retained")
	}
	v.AddContact(ContactRecord{Role: RoleAuthor, Name: Name{Given: "Ana", Family: "Silva"}})
	if len(v.Contacts) != 1 {
		t.Fatal("non-empty contact was dropped")
	}
}

func TestRecordCount(t *testing.T) {
	v := NewPatientClinicalView()
	v.AddRecord(ClinicalRecord{Category: CategoryMedication})
	v.AddRecord(ClinicalRecord{Category: CategoryMedication})
	v.AddRecord(ClinicalRecord{Category: CategoryProblem})
	if got := v.RecordCount(); got != 3 {
		t.Fatalf("RecordCount() = %d, want 3", got)
	}
}
