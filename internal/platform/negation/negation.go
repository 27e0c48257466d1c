// Package negation recognizes "absence of data" coding patterns shared by
// both document formats. A negative assertion ("no known allergies") is a
// coded statement that no data of a kind exists; it must not be displayed as
// if it were a clinical fact.
package negation

import (
	"strings"

	"github.com/crosscare/exchange/pkg/cdm"
)

// Code systems that carry absent/unknown codes.
const (
	SystemAbsentUnknown = "http://hl7.org/fhir/uv/ips/CodeSystem/absent-unknown-uv-ips"
	SystemSNOMED        = "http://snomed.info/sct"
)

// absenceCodes maps known absent/unknown codes to the clinical category the
// absence statement is about. IPS absent-unknown codes cover both the
// "no information" and "known absent" flavors; the SNOMED entries are the
// situation codes national producers commonly use instead.
var absenceCodes = map[string]cdm.Category{
	// IPS absent-unknown value set
	"no-allergy-info":      cdm.CategoryAllergy,
	"no-known-allergies":   cdm.CategoryAllergy,
	"no-medication-info":   cdm.CategoryMedication,
	"no-known-medications": cdm.CategoryMedication,
	"no-problem-info":      cdm.CategoryProblem,
	"no-known-problems":    cdm.CategoryProblem,
	"no-immunization-info": cdm.CategoryImmunization,
	"no-known-immunizations": cdm.CategoryImmunization,
	"no-procedure-info":    cdm.CategoryProcedure,
	"no-known-procedures":  cdm.CategoryProcedure,

	// SNOMED CT situation codes
	"716186003": cdm.CategoryAllergy,    // No known allergy
	"409137002": cdm.CategoryMedication, // No history of drug therapy
	"787481004": cdm.CategoryMedication, // No known medication
	"160245001": cdm.CategoryProblem,    // No current problems or disability
	"160243008": cdm.CategoryProblem,    // Well
	"787545006": cdm.CategoryImmunization, // No history of vaccination
}

// phrases are the category-appropriate display substitutions.
var phrases = map[cdm.Category]string{
	cdm.CategoryMedication:     "No information about medications",
	cdm.CategoryAllergy:        "No information about allergies",
	cdm.CategoryProblem:        "No information about problems",
	cdm.CategoryProcedure:      "No information about procedures",
	cdm.CategoryVitalSign:      "No information about vital signs",
	cdm.CategorySocialHistory:  "No information about social history",
	cdm.CategoryLabResult:      "No information about laboratory results",
	cdm.CategoryImmunization:   "No information about immunizations",
	cdm.CategoryPregnancyEvent: "No information about pregnancy history",
	cdm.CategoryUnknown:        "No information available",
}

// Detect reports whether the (code, system) pair is a known absence code and,
// if so, which category the absence statement is about.
func Detect(code, system string) (cdm.Category, bool) {
	if code == "" {
		return "", false
	}
	cat, ok := absenceCodes[strings.ToLower(strings.TrimSpace(code))]
	if !ok {
		// SNOMED situation codes are numeric; retry without lowering in case
		// the map key casing ever diverges.
		cat, ok = absenceCodes[strings.TrimSpace(code)]
	}
	if !ok {
		return "", false
	}
	// The situation codes are meaningful regardless of the exact system URI
	// or OID the producer used, so the system is not checked strictly.
	_ = system
	return cat, true
}

// Phrase returns the descriptive "no information" display text for a
// category. It is never empty.
func Phrase(cat cdm.Category) string {
	if p, ok := phrases[cat]; ok {
		return p
	}
	return phrases[cdm.CategoryUnknown]
}

// Apply rewrites a record into its negative-assertion form: the flag is set,
// the display text becomes the category phrase, and sub-fields that would
// render as nonsensical blank columns are suppressed.
func Apply(rec *cdm.ClinicalRecord, cat cdm.Category) {
	rec.Category = cat
	rec.NegativeAssertion = true
	rec.Code.Display = Phrase(cat)
	rec.SecondaryCodes = nil
	rec.Value = ""
	rec.Unit = ""
	rec.Dosage = ""
	rec.Severity = ""
	rec.Reaction = ""
}
