// Package cdm defines the normalized clinical data model produced by the
// document parsing engine. Every extractor emits these types and every
// presentation layer consumes them.
package cdm

import (
	"bytes"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Format identifies the source document format.
type Format string

// Supported source document formats.
const (
	FormatCDA        Format = "CDA"
	FormatFHIRBundle Format = "FHIR_BUNDLE"
	FormatUnknown    Format = ""
)

// ErrMalformedDocument indicates the input could not be parsed as well-formed
// markup or JSON at all. Fatal for that document only; sibling documents in a
// multi-document assembly are unaffected.
var ErrMalformedDocument = errors.New("malformed clinical document")

// ClinicalDocument is the raw input to the engine: document bytes plus the
// metadata supplied by the retrieval layer. Immutable once received.
type ClinicalDocument struct {
	ID       uuid.UUID `json:"id"`
	Content  []byte    `json:"content"`
	Format   Format    `json:"format"`
	Country  string    `json:"country"`
	Language string    `json:"language"`
}

// DetectFormat returns the declared format when present, otherwise sniffs the
// content: XML markup is treated as CDA, a JSON object as a FHIR Bundle.
func DetectFormat(declared Format, content []byte) Format {
	if declared == FormatCDA || declared == FormatFHIRBundle {
		return declared
	}
	trimmed := bytes.TrimLeft(content, " \t\r\n\xef\xbb\xbf")
	if len(trimmed) == 0 {
		return FormatUnknown
	}
	switch trimmed[0] {
	case '<':
		return FormatCDA
	case '{':
		return FormatFHIRBundle
	}
	return FormatUnknown
}

// Category is the semantic clinical category of a record.
type Category string

// Clinical record categories.
const (
	CategoryMedication     Category = "medication"
	CategoryAllergy        Category = "allergy"
	CategoryProblem        Category = "problem"
	CategoryProcedure      Category = "procedure"
	CategoryVitalSign      Category = "vital_sign"
	CategorySocialHistory  Category = "social_history"
	CategoryLabResult      Category = "lab_result"
	CategoryImmunization   Category = "immunization"
	CategoryPregnancyEvent Category = "pregnancy_event"
	CategoryUnknown        Category = "unknown"
)

// CategoryOrder is the display ordering of categories in a patient view.
var CategoryOrder = []Category{
	CategoryMedication,
	CategoryAllergy,
	CategoryProblem,
	CategoryProcedure,
	CategoryVitalSign,
	CategorySocialHistory,
	CategoryLabResult,
	CategoryImmunization,
	CategoryPregnancyEvent,
	CategoryUnknown,
}

// Coding is a single coded value with its code system and display text.
type Coding struct {
	Code    string `json:"code,omitempty"`
	System  string `json:"system,omitempty"`
	Display string `json:"display,omitempty"`
}

// Empty reports whether the coding carries no information at all.
func (c Coding) Empty() bool {
	return c.Code == "" && c.System == "" && c.Display == ""
}

// ClinicalRecord is the normalized unit of clinical fact.
//
// When NegativeAssertion is true the record represents "no known X" rather
// than a fact; Code.Display then holds a descriptive phrase and the
// sub-fields (Value, Unit, Dosage, Severity, Reaction) are empty.
type ClinicalRecord struct {
	Category          Category   `json:"category"`
	Code              Coding     `json:"code"`
	SecondaryCodes    []Coding   `json:"secondaryCodes,omitempty"`
	Effective         *time.Time `json:"effective,omitempty"`
	Status            string     `json:"status,omitempty"`
	NegativeAssertion bool       `json:"negativeAssertion,omitempty"`
	Value             string     `json:"value,omitempty"`
	Unit              string     `json:"unit,omitempty"`
	Dosage            string     `json:"dosage,omitempty"`
	Severity          string     `json:"severity,omitempty"`
	Reaction          string     `json:"reaction,omitempty"`
	Narrative         string     `json:"narrative,omitempty"`
	SourceLocator     string     `json:"sourceLocator,omitempty"`
}

// ContactRole classifies a contact record.
type ContactRole string

// Contact roles.
const (
	RolePatient            ContactRole = "patient"
	RoleAuthor             ContactRole = "author"
	RoleLegalAuthenticator ContactRole = "legal_authenticator"
	RoleCustodian          ContactRole = "custodian"
	RoleGuardian           ContactRole = "guardian"
	RoleEmergencyContact   ContactRole = "emergency_contact"
	RoleOther              ContactRole = "other"
)

// Name is a person name.
type Name struct {
	Given  string `json:"given,omitempty"`
	Family string `json:"family,omitempty"`
}

// Empty reports whether no name parts are present.
func (n Name) Empty() bool { return n.Given == "" && n.Family == "" }

// Address is a postal address.
type Address struct {
	Street     string `json:"street,omitempty"`
	City       string `json:"city,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country,omitempty"`
	Use        string `json:"use,omitempty"`
}

// Telecom system values.
const (
	TelecomPhone = "phone"
	TelecomEmail = "email"
	TelecomFax   = "fax"
)

// Telecom is a phone, email, or fax contact point.
type Telecom struct {
	System string `json:"system,omitempty"`
	Value  string `json:"value,omitempty"`
	Use    string `json:"use,omitempty"`
}

// ContactRecord represents a person or organization contact extracted from a
// document. Fully empty contacts are dropped during extraction.
type ContactRecord struct {
	Role         ContactRole `json:"role"`
	Name         Name        `json:"name"`
	Addresses    []Address   `json:"addresses,omitempty"`
	Telecoms     []Telecom   `json:"telecoms,omitempty"`
	Organization string      `json:"organization,omitempty"`
}

// Empty reports whether the contact carries neither a name, an address, a
// telecom, nor an organization name.
func (c ContactRecord) Empty() bool {
	return c.Name.Empty() && len(c.Addresses) == 0 && len(c.Telecoms) == 0 && c.Organization == ""
}

// Warning codes for non-fatal parse conditions.
const (
	WarnEmptySection      = "empty-section"
	WarnNarrativeFallback = "narrative-fallback"
	WarnNegativeAssertion = "negative-assertion"
	WarnInvalidField      = "invalid-field"
	WarnUnrecognized      = "unrecognized"
	WarnMalformed         = "malformed-document"
	WarnTimeout           = "assembly-timeout"
)

// Warning is a structured non-fatal parse diagnostic.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Source  string `json:"source,omitempty"`
}

// PatientSummary is the patient identity extracted from a document header or
// Patient resource.
type PatientSummary struct {
	Name        Name     `json:"name"`
	BirthDate   string   `json:"birthDate,omitempty"`
	Gender      string   `json:"gender,omitempty"`
	Identifiers []string `json:"identifiers,omitempty"`
}

// Empty reports whether nothing about the patient is known.
func (p PatientSummary) Empty() bool {
	return p.Name.Empty() && p.BirthDate == "" && p.Gender == "" && len(p.Identifiers) == 0
}

// Provenance identifies a source document that contributed to a view.
type Provenance struct {
	DocumentID uuid.UUID `json:"documentId"`
	Format     Format    `json:"format"`
	Country    string    `json:"country,omitempty"`
}

// PatientClinicalView is the aggregate output of the engine: clinical records
// grouped by category, contacts, patient identity, provenance, and warnings.
// A category key with an empty slice means the source document carried the
// section but no valid entries ("not recorded" as opposed to "not
// applicable", where the key is absent).
type PatientClinicalView struct {
	Patient  PatientSummary              `json:"patient"`
	Records  map[Category][]ClinicalRecord `json:"records"`
	Contacts []ContactRecord             `json:"contacts,omitempty"`
	Sources  []Provenance                `json:"sources,omitempty"`
	Warnings []Warning                   `json:"warnings,omitempty"`
}

// NewPatientClinicalView returns an empty view with an initialized record map.
func NewPatientClinicalView() *PatientClinicalView {
	return &PatientClinicalView{Records: make(map[Category][]ClinicalRecord)}
}

// AddRecord appends a record under its category.
func (v *PatientClinicalView) AddRecord(rec ClinicalRecord) {
	if v.Records == nil {
		v.Records = make(map[Category][]ClinicalRecord)
	}
	v.Records[rec.Category] = append(v.Records[rec.Category], rec)
}

// MarkCategory ensures the category key exists even with zero records, so an
// empty-but-present section survives into the output.
func (v *PatientClinicalView) MarkCategory(cat Category) {
	if v.Records == nil {
		v.Records = make(map[Category][]ClinicalRecord)
	}
	if _, ok := v.Records[cat]; !ok {
		v.Records[cat] = []ClinicalRecord{}
	}
}

// AddContact appends a contact unless it is empty.
func (v *PatientClinicalView) AddContact(c ContactRecord) {
	if c.Empty() {
		return
	}
	v.Contacts = append(v.Contacts, c)
}

// AddWarning records a non-fatal parse diagnostic.
func (v *PatientClinicalView) AddWarning(code, message, source string) {
	v.Warnings = append(v.Warnings, Warning{Code: code, Message: message, Source: source})
}

// RecordCount returns the total number of clinical records in the view.
func (v *PatientClinicalView) RecordCount() int {
	n := 0
	for _, recs := range v.Records {
		n += len(recs)
	}
	return n
}
