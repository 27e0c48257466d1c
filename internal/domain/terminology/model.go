package terminology

import "strings"

// Entry is the terminology lookup unit: one display text for a (code,
// code system, language) triple. Reference data only; the engine never
// mutates it.
type Entry struct {
	Code     string `db:"code" json:"code"`
	System   string `db:"code_system" json:"system"`
	Language string `db:"language" json:"language"`
	Display  string `db:"display" json:"display"`
}

// Canonical code system OIDs used by the terminology store. The store is
// keyed by OID because the CDA producers identify systems that way; URI wire
// forms are normalized before lookup.
const (
	OIDLOINC       = "2.16.840.1.113883.6.1"
	OIDSNOMED      = "2.16.840.1.113883.6.96"
	OIDICD10       = "2.16.840.1.113883.6.3"
	OIDRxNorm      = "2.16.840.1.113883.6.88"
	OIDATC         = "2.16.840.1.113883.6.73"
	OIDEDQM        = "0.4.0.127.0.16.1.1.2.1"
	OIDUCUM        = "2.16.840.1.113883.6.8"
	OIDCVX         = "2.16.840.1.113883.12.292"
	OIDAdminGender = "2.16.840.1.113883.5.1"
)

// Code system URI wire forms.
const (
	SystemLOINC  = "http://loinc.org"
	SystemSNOMED = "http://snomed.info/sct"
	SystemICD10  = "http://hl7.org/fhir/sid/icd-10"
	SystemRxNorm = "http://www.nlm.nih.gov/research/umls/rxnorm"
	SystemATC    = "http://www.whocc.no/atc"
	SystemEDQM   = "http://standardterms.edqm.eu"
	SystemUCUM   = "http://unitsofmeasure.org"
	SystemCVX    = "http://hl7.org/fhir/sid/cvx"
)

var uriToOID = map[string]string{
	SystemLOINC:                         OIDLOINC,
	SystemSNOMED:                        OIDSNOMED,
	SystemICD10:                         OIDICD10,
	"http://hl7.org/fhir/sid/icd-10-cm": OIDICD10,
	SystemRxNorm:                        OIDRxNorm,
	SystemATC:                           OIDATC,
	SystemEDQM:                          OIDEDQM,
	SystemUCUM:                          OIDUCUM,
	SystemCVX:                           OIDCVX,
}

// NormalizeSystem converts a code system identifier from its wire form (a
// canonical URI or a urn:oid: prefixed OID) to the bare OID the store is
// keyed by. Unrecognized identifiers pass through unchanged so that lookups
// against producer-specific systems still hit the store when it carries them.
func NormalizeSystem(system string) string {
	s := strings.TrimSpace(system)
	if s == "" {
		return ""
	}
	if oid, ok := uriToOID[strings.TrimRight(strings.ToLower(s), "/")]; ok {
		return oid
	}
	if strings.HasPrefix(strings.ToLower(s), "urn:oid:") {
		return s[len("urn:oid:"):]
	}
	return s
}

// NormalizeLanguage reduces a BCP 47 tag to its primary subtag, lowered
// ("pt-PT" -> "pt"). Empty input defaults to English, the pivot language of
// the reference dataset.
func NormalizeLanguage(language string) string {
	l := strings.ToLower(strings.TrimSpace(language))
	if l == "" {
		return "en"
	}
	if i := strings.IndexAny(l, "-_"); i > 0 {
		l = l[:i]
	}
	return l
}
