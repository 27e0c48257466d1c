// Package fhir classifies FHIR Bundle resources into the normalized
// clinical model. Resources with an unambiguous type map directly to a
// category; generic Observation resources are sub-classified by category
// coding, curated code sets, and finally display keywords.
package fhir

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Bundle is the resource-graph container. Entries hold raw resources
// decoded on demand by declared type.
type Bundle struct {
	ResourceType string        `json:"resourceType"`
	Type         string        `json:"type,omitempty"`
	Entry        []BundleEntry `json:"entry,omitempty"`
}

// BundleEntry wraps one resource.
type BundleEntry struct {
	FullURL  string          `json:"fullUrl,omitempty"`
	Resource json.RawMessage `json:"resource,omitempty"`
}

// resourceHeader is the minimal decode used to route an entry by type.
type resourceHeader struct {
	ResourceType string `json:"resourceType"`
	ID           string `json:"id,omitempty"`
}

// Coding is a single code from a code system.
type Coding struct {
	System  string `json:"system,omitempty"`
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

// CodeableConcept is a coded value with optional fallback text.
type CodeableConcept struct {
	Coding []Coding `json:"coding,omitempty"`
	Text   string   `json:"text,omitempty"`
}

// First returns the first coding, or a zero coding.
func (c *CodeableConcept) First() Coding {
	if c == nil || len(c.Coding) == 0 {
		return Coding{}
	}
	return c.Coding[0]
}

// DisplayText returns the best human-readable text for the concept.
func (c *CodeableConcept) DisplayText() string {
	if c == nil {
		return ""
	}
	for _, coding := range c.Coding {
		if coding.Display != "" {
			return coding.Display
		}
	}
	return c.Text
}

// HasCoding reports whether any coding carries the given code.
func (c *CodeableConcept) HasCoding(code string) bool {
	if c == nil {
		return false
	}
	for _, coding := range c.Coding {
		if coding.Code == code {
			return true
		}
	}
	return false
}

// Quantity is a measured amount. Value and unit must be preserved together
// or not at all.
type Quantity struct {
	Value *float64 `json:"value,omitempty"`
	Unit  string   `json:"unit,omitempty"`
	Code  string   `json:"code,omitempty"`
}

// ValueString renders the numeric value, or "" when absent.
func (q *Quantity) ValueString() string {
	if q == nil || q.Value == nil {
		return ""
	}
	return strconv.FormatFloat(*q.Value, 'f', -1, 64)
}

// UnitText prefers the human unit over the UCUM code.
func (q *Quantity) UnitText() string {
	if q == nil {
		return ""
	}
	if q.Unit != "" {
		return q.Unit
	}
	return q.Code
}

// Period is a time interval.
type Period struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// HumanName is a FHIR person name.
type HumanName struct {
	Text   string   `json:"text,omitempty"`
	Family string   `json:"family,omitempty"`
	Given  []string `json:"given,omitempty"`
}

// Address is a FHIR postal address.
type Address struct {
	Use        string   `json:"use,omitempty"`
	Line       []string `json:"line,omitempty"`
	City       string   `json:"city,omitempty"`
	PostalCode string   `json:"postalCode,omitempty"`
	Country    string   `json:"country,omitempty"`
}

// ContactPoint is a FHIR telecom entry.
type ContactPoint struct {
	System string `json:"system,omitempty"`
	Value  string `json:"value,omitempty"`
	Use    string `json:"use,omitempty"`
}

// Identifier is a FHIR business identifier.
type Identifier struct {
	System string `json:"system,omitempty"`
	Value  string `json:"value,omitempty"`
}

// Patient is the administrative patient resource.
type Patient struct {
	ResourceType string         `json:"resourceType"`
	ID           string         `json:"id,omitempty"`
	Identifier   []Identifier   `json:"identifier,omitempty"`
	Name         []HumanName    `json:"name,omitempty"`
	Gender       string         `json:"gender,omitempty"`
	BirthDate    string         `json:"birthDate,omitempty"`
	Address      []Address      `json:"address,omitempty"`
	Telecom      []ContactPoint `json:"telecom,omitempty"`
}

// Practitioner is a clinical author.
type Practitioner struct {
	Name    []HumanName    `json:"name,omitempty"`
	Address []Address      `json:"address,omitempty"`
	Telecom []ContactPoint `json:"telecom,omitempty"`
}

// Organization is a healthcare organization.
type Organization struct {
	Name    string         `json:"name,omitempty"`
	Address []Address      `json:"address,omitempty"`
	Telecom []ContactPoint `json:"telecom,omitempty"`
}

// RelatedPerson is a person related to the patient.
type RelatedPerson struct {
	Relationship []CodeableConcept `json:"relationship,omitempty"`
	Name         []HumanName       `json:"name,omitempty"`
	Address      []Address         `json:"address,omitempty"`
	Telecom      []ContactPoint    `json:"telecom,omitempty"`
}

// Dosage is a medication dosage instruction.
type Dosage struct {
	Text  string           `json:"text,omitempty"`
	Route *CodeableConcept `json:"route,omitempty"`
}

// MedicationStatement records medication use.
type MedicationStatement struct {
	Status                    string           `json:"status,omitempty"`
	MedicationCodeableConcept *CodeableConcept `json:"medicationCodeableConcept,omitempty"`
	EffectiveDateTime         string           `json:"effectiveDateTime,omitempty"`
	EffectivePeriod           *Period          `json:"effectivePeriod,omitempty"`
	Dosage                    []Dosage         `json:"dosage,omitempty"`
}

// AllergyReaction is one adverse reaction event.
type AllergyReaction struct {
	Manifestation []CodeableConcept `json:"manifestation,omitempty"`
	Severity      string            `json:"severity,omitempty"`
}

// AllergyIntolerance records an allergy or intolerance.
type AllergyIntolerance struct {
	ClinicalStatus *CodeableConcept  `json:"clinicalStatus,omitempty"`
	Code           *CodeableConcept  `json:"code,omitempty"`
	Criticality    string            `json:"criticality,omitempty"`
	OnsetDateTime  string            `json:"onsetDateTime,omitempty"`
	Reaction       []AllergyReaction `json:"reaction,omitempty"`
}

// Condition records a problem or diagnosis.
type Condition struct {
	ClinicalStatus *CodeableConcept `json:"clinicalStatus,omitempty"`
	Code           *CodeableConcept `json:"code,omitempty"`
	OnsetDateTime  string           `json:"onsetDateTime,omitempty"`
}

// Procedure records a performed procedure.
type Procedure struct {
	Status            string           `json:"status,omitempty"`
	Code              *CodeableConcept `json:"code,omitempty"`
	PerformedDateTime string           `json:"performedDateTime,omitempty"`
	PerformedPeriod   *Period          `json:"performedPeriod,omitempty"`
}

// Immunization records a vaccination.
type Immunization struct {
	Status             string           `json:"status,omitempty"`
	VaccineCode        *CodeableConcept `json:"vaccineCode,omitempty"`
	OccurrenceDateTime string           `json:"occurrenceDateTime,omitempty"`
}

// ObservationComponent is one member of a multi-component observation, such
// as the systolic reading of a blood pressure panel.
type ObservationComponent struct {
	Code          *CodeableConcept `json:"code,omitempty"`
	ValueQuantity *Quantity        `json:"valueQuantity,omitempty"`
}

// Observation is the generic measurement/finding resource.
type Observation struct {
	Status               string                 `json:"status,omitempty"`
	Category             []CodeableConcept      `json:"category,omitempty"`
	Code                 *CodeableConcept       `json:"code,omitempty"`
	EffectiveDateTime    string                 `json:"effectiveDateTime,omitempty"`
	ValueQuantity        *Quantity              `json:"valueQuantity,omitempty"`
	ValueCodeableConcept *CodeableConcept       `json:"valueCodeableConcept,omitempty"`
	ValueString          string                 `json:"valueString,omitempty"`
	Component            []ObservationComponent `json:"component,omitempty"`
}

// fhirTimeLayouts cover the FHIR dateTime precision ladder.
var fhirTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006-01",
	"2006",
}

// parseFHIRTime parses a FHIR dateTime of any precision, preserving the
// recorded offset.
func parseFHIRTime(s string) (time.Time, bool) {
	v := strings.TrimSpace(s)
	if v == "" {
		return time.Time{}, false
	}
	for _, layout := range fhirTimeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
