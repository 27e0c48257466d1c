package fhir

import (
	"strings"

	"github.com/crosscare/exchange/pkg/cdm"
)

// Observation.category coding values from the FHIR observation-category
// vocabulary.
const (
	obsCategoryVitalSigns    = "vital-signs"
	obsCategoryLaboratory    = "laboratory"
	obsCategorySocialHistory = "social-history"
	obsCategorySurvey        = "survey"
	obsCategoryExam          = "exam"
)

// vitalSignCodes are LOINC codes for the common vital-sign panel members,
// used when an observation carries no category coding.
var vitalSignCodes = map[string]bool{
	"85354-9": true, // blood pressure panel
	"8480-6":  true, // systolic blood pressure
	"8462-4":  true, // diastolic blood pressure
	"8867-4":  true, // heart rate
	"9279-1":  true, // respiratory rate
	"8310-5":  true, // body temperature
	"29463-7": true, // body weight
	"8302-2":  true, // body height
	"39156-5": true, // body mass index
	"2708-6":  true, // oxygen saturation
}

// socialHistoryCodes are LOINC codes for tobacco, alcohol, and occupation
// observations.
var socialHistoryCodes = map[string]bool{
	"72166-2": true, // tobacco smoking status
	"74013-4": true, // alcoholic drinks per day
	"11367-0": true, // history of tobacco use
	"11331-6": true, // history of alcohol use
}

// pregnancyCodes are LOINC codes for pregnancy status and outcome
// observations.
var pregnancyCodes = map[string]bool{
	"82810-3": true, // pregnancy status
	"11636-8": true, // births live
	"11778-8": true, // delivery date estimated
	"11779-6": true, // delivery date estimated from LMP
	"11780-4": true, // delivery date estimated from ovulation date
}

// labResultCodes are LOINC codes for common laboratory analytes.
var labResultCodes = map[string]bool{
	"718-7":  true, // hemoglobin
	"2339-0": true, // glucose
	"2160-0": true, // creatinine
	"4548-4": true, // hemoglobin A1c
	"2093-3": true, // cholesterol
	"2571-8": true, // triglyceride
	"6690-2": true, // leukocytes
	"777-3":  true, // platelets
	"2951-2": true, // sodium
	"2823-3": true, // potassium
}

// keyword fallbacks for observations with neither a category coding nor a
// recognized code, matched against the concept display text.
var (
	vitalKeywords     = []string{"blood pressure", "heart rate", "pulse", "temperature", "respiratory rate", "oxygen saturation", "weight", "height", "bmi"}
	socialKeywords    = []string{"smoking", "tobacco", "alcohol", "occupation"}
	pregnancyKeywords = []string{"pregnan", "gestation", "delivery"}
)

// classifyObservation resolves the clinical category of an Observation.
// Category codings win; then curated LOINC sets; then display keywords; an
// observation nothing recognizes stays unknown rather than being guessed
// into a lab result.
func classifyObservation(res *Observation) cdm.Category {
	for _, concept := range res.Category {
		for _, coding := range concept.Coding {
			switch coding.Code {
			case obsCategoryVitalSigns:
				return cdm.CategoryVitalSign
			case obsCategoryLaboratory:
				return cdm.CategoryLabResult
			case obsCategorySocialHistory:
				return cdm.CategorySocialHistory
			case obsCategorySurvey, obsCategoryExam:
				// No dedicated category; fall through to code matching.
			}
		}
	}

	code := res.Code.First().Code
	switch {
	case vitalSignCodes[code]:
		return cdm.CategoryVitalSign
	case socialHistoryCodes[code]:
		return cdm.CategorySocialHistory
	case pregnancyCodes[code]:
		return cdm.CategoryPregnancyEvent
	case labResultCodes[code]:
		return cdm.CategoryLabResult
	}

	display := strings.ToLower(res.Code.DisplayText())
	if display != "" {
		for _, kw := range vitalKeywords {
			if strings.Contains(display, kw) {
				return cdm.CategoryVitalSign
			}
		}
		for _, kw := range socialKeywords {
			if strings.Contains(display, kw) {
				return cdm.CategorySocialHistory
			}
		}
		for _, kw := range pregnancyKeywords {
			if strings.Contains(display, kw) {
				return cdm.CategoryPregnancyEvent
			}
		}
	}
	return cdm.CategoryUnknown
}
