package cda

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/crosscare/exchange/pkg/cdm"
)

// Well-known field names a section spec can populate.
const (
	FieldCode         = "code"
	FieldCodeSystem   = "codeSystem"
	FieldDisplay      = "display"
	FieldStatus       = "status"
	FieldEffective    = "effective"
	FieldValue        = "value"
	FieldUnit         = "unit"
	FieldDosage       = "dosage"
	FieldDosageUnit   = "dosageUnit"
	FieldSeverity     = "severity"
	FieldReaction     = "reaction"
	FieldRoute        = "route"
	FieldRouteSystem  = "routeSystem"
	FieldRouteDisplay = "routeDisplay"
)

// Locator is one extraction strategy for a field. Strategies are attempted
// in the declared order and the first non-empty result wins, so a
// structural-path locator listed before an attribute or pattern locator
// takes precedence on conflict.
//
// Exactly one strategy is active per locator:
//   - Path (optionally with Attr): walk the path from the statement root and
//     read the attribute, or the element text when Attr is empty.
//   - Attr alone: depth-first search of the statement subtree for the first
//     non-empty value of that attribute.
//   - Pattern: regular expression applied to the statement's flattened text;
//     the first capture group (or the whole match) is the value.
type Locator struct {
	Path    string `mapstructure:"path" json:"path,omitempty"`
	Attr    string `mapstructure:"attr" json:"attr,omitempty"`
	Pattern string `mapstructure:"pattern" json:"pattern,omitempty"`
}

// SectionSpec declares how one coded section is extracted.
type SectionSpec struct {
	// Code is the section identifier (a LOINC code); matching is on this
	// code only, never on the localized section title.
	Code     string       `mapstructure:"code" json:"code"`
	Category cdm.Category `mapstructure:"category" json:"category"`

	// Roots are candidate paths from an <entry> element to the clinical
	// statement the field locators are relative to. The first path yielding
	// nodes wins; organizer-based sections list the component observation
	// path first so each member observation becomes its own record.
	Roots []string `mapstructure:"roots" json:"roots"`

	// Fields maps a field name to its ranked locators.
	Fields map[string][]Locator `mapstructure:"fields" json:"fields"`
}

// FieldMap is the versioned, declarative extraction configuration. Producer
// quirks are handled by editing this data, not the extractor.
type FieldMap struct {
	Version  string        `mapstructure:"version" json:"version"`
	Sections []SectionSpec `mapstructure:"sections" json:"sections"`
}

// Section returns the spec for a section code.
func (m *FieldMap) Section(code string) (SectionSpec, bool) {
	for _, s := range m.Sections {
		if s.Code == code {
			return s, true
		}
	}
	return SectionSpec{}, false
}

// Load reads a field map from a YAML file. The compiled-in default map is
// used when path is empty.
func Load(path string) (*FieldMap, error) {
	if path == "" {
		return DefaultFieldMap(), nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read field map: %w", err)
	}
	fm := &FieldMap{}
	if err := v.Unmarshal(fm); err != nil {
		return nil, fmt.Errorf("unmarshal field map: %w", err)
	}
	if len(fm.Sections) == 0 {
		return nil, fmt.Errorf("field map %s declares no sections", path)
	}
	return fm, nil
}

// LOINC codes identifying clinical sections.
const (
	SectionMedications   = "10160-0"
	SectionAllergies     = "48765-2"
	SectionProblems      = "11450-4"
	SectionProcedures    = "47519-4"
	SectionResults       = "30954-2"
	SectionVitalSigns    = "8716-3"
	SectionImmunizations = "11369-6"
	SectionSocialHistory = "29762-2"
	SectionPregnancies   = "10162-6"
)

// codingAttrs are the shared ranked locators for a coded element found at
// the given path.
func codingAttrs(path string) (code, system, display []Locator) {
	code = []Locator{{Path: path, Attr: "code"}, {Attr: "code"}}
	system = []Locator{{Path: path, Attr: "codeSystem"}, {Attr: "codeSystem"}}
	display = []Locator{{Path: path, Attr: "displayName"}, {Attr: "displayName"}}
	return
}

// DefaultFieldMap returns the compiled-in extraction configuration covering
// the section layouts the national producers are known to emit.
func DefaultFieldMap() *FieldMap {
	medCode, medSystem, medDisplay := codingAttrs("consumable/manufacturedProduct/manufacturedMaterial/code")
	immCode, immSystem, immDisplay := codingAttrs("consumable/manufacturedProduct/manufacturedMaterial/code")
	prbCode, prbSystem, prbDisplay := codingAttrs("value")
	prcCode, prcSystem, prcDisplay := codingAttrs("code")

	return &FieldMap{
		Version: "2024.1",
		Sections: []SectionSpec{
			{
				Code:     SectionMedications,
				Category: cdm.CategoryMedication,
				Roots:    []string{"substanceAdministration"},
				Fields: map[string][]Locator{
					FieldCode:       medCode,
					FieldCodeSystem: medSystem,
					FieldDisplay: append(medDisplay,
						Locator{Path: "consumable/manufacturedProduct/manufacturedMaterial/name"}),
					FieldStatus: {{Path: "statusCode", Attr: "code"}},
					FieldEffective: {
						{Path: "effectiveTime/low", Attr: "value"},
						{Path: "effectiveTime", Attr: "value"},
					},
					FieldDosage:       {{Path: "doseQuantity", Attr: "value"}},
					FieldDosageUnit:   {{Path: "doseQuantity", Attr: "unit"}},
					FieldRoute:        {{Path: "routeCode", Attr: "code"}},
					FieldRouteSystem:  {{Path: "routeCode", Attr: "codeSystem"}},
					FieldRouteDisplay: {{Path: "routeCode", Attr: "displayName"}},
				},
			},
			{
				Code:     SectionAllergies,
				Category: cdm.CategoryAllergy,
				Roots:    []string{"act/entryRelationship/observation", "observation"},
				Fields: map[string][]Locator{
					FieldCode: {
						{Path: "participant/participantRole/playingEntity/code", Attr: "code"},
						{Path: "value", Attr: "code"},
					},
					FieldCodeSystem: {
						{Path: "participant/participantRole/playingEntity/code", Attr: "codeSystem"},
						{Path: "value", Attr: "codeSystem"},
					},
					FieldDisplay: {
						{Path: "participant/participantRole/playingEntity/code", Attr: "displayName"},
						{Path: "participant/participantRole/playingEntity/name"},
						{Path: "value", Attr: "displayName"},
					},
					FieldStatus: {{Path: "statusCode", Attr: "code"}},
					FieldEffective: {
						{Path: "effectiveTime/low", Attr: "value"},
						{Path: "effectiveTime", Attr: "value"},
					},
					FieldSeverity: {
						{Path: "entryRelationship/observation/value", Attr: "displayName"},
					},
					FieldReaction: {
						{Path: "entryRelationship/observation/text"},
						{Pattern: `(?i)reaction:\s*([^.;]+)`},
					},
				},
			},
			{
				Code:     SectionProblems,
				Category: cdm.CategoryProblem,
				Roots:    []string{"act/entryRelationship/observation", "observation"},
				Fields: map[string][]Locator{
					FieldCode:       prbCode,
					FieldCodeSystem: prbSystem,
					FieldDisplay:    append(prbDisplay, Locator{Path: "text"}),
					FieldStatus:     {{Path: "statusCode", Attr: "code"}},
					FieldEffective: {
						{Path: "effectiveTime/low", Attr: "value"},
						{Path: "effectiveTime", Attr: "value"},
					},
				},
			},
			{
				Code:     SectionProcedures,
				Category: cdm.CategoryProcedure,
				Roots:    []string{"procedure", "act"},
				Fields: map[string][]Locator{
					FieldCode:       prcCode,
					FieldCodeSystem: prcSystem,
					FieldDisplay:    prcDisplay,
					FieldStatus:     {{Path: "statusCode", Attr: "code"}},
					FieldEffective: {
						{Path: "effectiveTime/low", Attr: "value"},
						{Path: "effectiveTime", Attr: "value"},
					},
				},
			},
			{
				Code:     SectionResults,
				Category: cdm.CategoryLabResult,
				Roots:    []string{"organizer/component/observation", "observation"},
				Fields:   observationFields(),
			},
			{
				Code:     SectionVitalSigns,
				Category: cdm.CategoryVitalSign,
				Roots:    []string{"organizer/component/observation", "observation"},
				Fields:   observationFields(),
			},
			{
				Code:     SectionImmunizations,
				Category: cdm.CategoryImmunization,
				Roots:    []string{"substanceAdministration"},
				Fields: map[string][]Locator{
					FieldCode:       immCode,
					FieldCodeSystem: immSystem,
					FieldDisplay:    immDisplay,
					FieldStatus:     {{Path: "statusCode", Attr: "code"}},
					FieldEffective: {
						{Path: "effectiveTime/low", Attr: "value"},
						{Path: "effectiveTime", Attr: "value"},
					},
				},
			},
			{
				Code:     SectionSocialHistory,
				Category: cdm.CategorySocialHistory,
				Roots:    []string{"observation"},
				Fields:   observationFields(),
			},
			{
				Code:     SectionPregnancies,
				Category: cdm.CategoryPregnancyEvent,
				Roots:    []string{"observation"},
				Fields:   observationFields(),
			},
		},
	}
}

func observationFields() map[string][]Locator {
	return map[string][]Locator{
		FieldCode:       {{Path: "code", Attr: "code"}},
		FieldCodeSystem: {{Path: "code", Attr: "codeSystem"}},
		FieldDisplay: {
			{Path: "code", Attr: "displayName"},
			{Path: "value", Attr: "displayName"},
		},
		FieldStatus: {{Path: "statusCode", Attr: "code"}},
		FieldEffective: {
			{Path: "effectiveTime/low", Attr: "value"},
			{Path: "effectiveTime", Attr: "value"},
		},
		FieldValue: {{Path: "value", Attr: "value"}},
		FieldUnit:  {{Path: "value", Attr: "unit"}},
	}
}
