package terminology

// fallbackKey identifies an entry in the embedded fallback table.
type fallbackKey struct {
	code   string
	system string
}

// fallbackTable is a small embedded set of safety-critical displays so that
// the core view never breaks when the store is unavailable. English only;
// language is deliberately not part of the key.
var fallbackTable = map[fallbackKey]string{
	// ATC medications commonly exchanged cross-border
	{"H03AA01", OIDATC}: "levothyroxine sodium",
	{"B01AC06", OIDATC}: "acetylsalicylic acid",
	{"C07AB02", OIDATC}: "metoprolol",
	{"A10BA02", OIDATC}: "metformin",
	{"C10AA01", OIDATC}: "simvastatin",
	{"N02BE01", OIDATC}: "paracetamol",
	{"B01AA03", OIDATC}: "warfarin",
	{"C09AA02", OIDATC}: "enalapril",

	// SNOMED allergens and situations
	{"91936005", OIDSNOMED}:  "Allergy to penicillin",
	{"293586001", OIDSNOMED}: "Allergy to ibuprofen",
	{"91935009", OIDSNOMED}:  "Allergy to peanut",
	{"716186003", OIDSNOMED}: "No known allergy",
	{"38341003", OIDSNOMED}:  "Hypertensive disorder",
	{"73211009", OIDSNOMED}:  "Diabetes mellitus",

	// LOINC vital sign and laboratory panels
	{"85354-9", OIDLOINC}: "Blood pressure panel with all children optional",
	{"8480-6", OIDLOINC}:  "Systolic blood pressure",
	{"8462-4", OIDLOINC}:  "Diastolic blood pressure",
	{"8867-4", OIDLOINC}:  "Heart rate",
	{"8310-5", OIDLOINC}:  "Body temperature",
	{"29463-7", OIDLOINC}: "Body weight",
	{"8302-2", OIDLOINC}:  "Body height",
	{"718-7", OIDLOINC}:   "Hemoglobin [Mass/volume] in Blood",
	{"2339-0", OIDLOINC}:  "Glucose [Mass/volume] in Blood",
	{"72166-2", OIDLOINC}: "Tobacco smoking status",

	// EDQM routes and dose forms
	{"20053000", OIDEDQM}: "Oral use",
	{"20066000", OIDEDQM}: "Subcutaneous use",
	{"10219000", OIDEDQM}: "Tablet",
	{"50060000", OIDEDQM}: "Solution for injection",
}

// fallbackDisplay consults the embedded safety table. The system must
// already be normalized.
func fallbackDisplay(code, system string) (string, bool) {
	d, ok := fallbackTable[fallbackKey{code: code, system: system}]
	return d, ok
}
