// Package contact normalizes postal addresses, telecom entries, and person
// names from either source format into the common contact record. Both the
// CDA extractor and the FHIR classifier route their header material through
// this package so that a phone number or address looks the same in the
// output regardless of where it came from.
package contact

import (
	"strings"

	"github.com/crosscare/exchange/pkg/cdm"
)

// ParseTelecom converts a telecom value in wire form (tel:, mailto:, fax:
// prefixed, or bare) into a normalized telecom entry. The boolean is false
// when the value is blank.
func ParseTelecom(value, use string) (cdm.Telecom, bool) {
	v := strings.TrimSpace(value)
	if v == "" {
		return cdm.Telecom{}, false
	}

	system := cdm.TelecomPhone
	switch {
	case strings.HasPrefix(strings.ToLower(v), "mailto:"):
		system = cdm.TelecomEmail
		v = v[len("mailto:"):]
	case strings.HasPrefix(strings.ToLower(v), "tel:"):
		v = v[len("tel:"):]
	case strings.HasPrefix(strings.ToLower(v), "fax:"):
		system = cdm.TelecomFax
		v = v[len("fax:"):]
	case strings.Contains(v, "@"):
		system = cdm.TelecomEmail
	}

	v = strings.TrimSpace(v)
	if v == "" {
		return cdm.Telecom{}, false
	}
	return cdm.Telecom{System: system, Value: v, Use: normalizeUse(use)}, true
}

// NormalizeSystem maps a FHIR ContactPoint.system value onto the model's
// telecom systems. Systems outside phone/email/fax collapse to phone only
// when the value looks dialable; otherwise the entry is rejected.
func NormalizeSystem(system, value string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(system)) {
	case "phone", "sms":
		return cdm.TelecomPhone, true
	case "email":
		return cdm.TelecomEmail, true
	case "fax":
		return cdm.TelecomFax, true
	case "":
		t, ok := ParseTelecom(value, "")
		return t.System, ok
	}
	return "", false
}

// NormalizeAddress trims an address and reports whether anything remains.
func NormalizeAddress(a cdm.Address) (cdm.Address, bool) {
	a.Street = strings.TrimSpace(a.Street)
	a.City = strings.TrimSpace(a.City)
	a.PostalCode = strings.TrimSpace(a.PostalCode)
	a.Country = strings.TrimSpace(a.Country)
	a.Use = normalizeUse(a.Use)
	if a.Street == "" && a.City == "" && a.PostalCode == "" && a.Country == "" {
		return cdm.Address{}, false
	}
	return a, true
}

// NormalizeName trims name parts.
func NormalizeName(n cdm.Name) cdm.Name {
	n.Given = strings.TrimSpace(n.Given)
	n.Family = strings.TrimSpace(n.Family)
	return n
}

func normalizeUse(use string) string {
	switch strings.ToUpper(strings.TrimSpace(use)) {
	case "H", "HP", "HOME":
		return "home"
	case "WP", "WORK":
		return "work"
	case "MC", "MOBILE":
		return "mobile"
	case "TMP", "TEMP":
		return "temp"
	}
	return strings.ToLower(strings.TrimSpace(use))
}

// guardianVocabulary holds relationship phrasings that indicate a guardian,
// next-of-kin, or emergency contact across national producers.
var guardianVocabulary = []string{
	"guardian",
	"next of kin",
	"next-of-kin",
	"emergency",
	"parent",
	"mother",
	"father",
	"legal representative",
}

// emergencyVocabulary narrows guardian matches to the emergency-contact role.
var emergencyVocabulary = []string{"emergency"}

// RelatedRole maps a RelatedPerson relationship text (or code display) to a
// contact role. Relationships outside the guardian/next-of-kin/emergency
// vocabulary report false and default to the generic related-person role.
func RelatedRole(relationship string) (cdm.ContactRole, bool) {
	rel := strings.ToLower(strings.TrimSpace(relationship))
	if rel == "" {
		return cdm.RoleOther, false
	}
	for _, kw := range emergencyVocabulary {
		if strings.Contains(rel, kw) {
			return cdm.RoleEmergencyContact, true
		}
	}
	for _, kw := range guardianVocabulary {
		if strings.Contains(rel, kw) {
			return cdm.RoleGuardian, true
		}
	}
	return cdm.RoleOther, false
}
