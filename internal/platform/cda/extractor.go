package cda

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/crosscare/exchange/internal/platform/negation"
	"github.com/crosscare/exchange/pkg/cdm"
)

// DisplayResolver resolves a coded value to display text. A non-empty
// supplied display is returned unchanged.
type DisplayResolver interface {
	Resolve(ctx context.Context, code, system, language, supplied string) string
}

// Extractor parses CDA documents into normalized clinical views. It holds no
// per-document state and is safe for concurrent use.
type Extractor struct {
	fieldMap *FieldMap
	resolver DisplayResolver
	log      zerolog.Logger

	mu       sync.Mutex
	patterns map[string]*regexp.Regexp
}

// NewExtractor creates an extractor driven by the given field map.
func NewExtractor(fieldMap *FieldMap, resolver DisplayResolver, log zerolog.Logger) *Extractor {
	if fieldMap == nil {
		fieldMap = DefaultFieldMap()
	}
	return &Extractor{
		fieldMap: fieldMap,
		resolver: resolver,
		log:      log,
		patterns: make(map[string]*regexp.Regexp),
	}
}

// Extract parses the document and returns its normalized clinical view.
func (e *Extractor) Extract(ctx context.Context, doc cdm.ClinicalDocument) (*cdm.PatientClinicalView, error) {
	root, err := Parse(doc.Content)
	if err != nil {
		return nil, err
	}

	view := cdm.NewPatientClinicalView()
	view.Sources = append(view.Sources, cdm.Provenance{DocumentID: doc.ID, Format: cdm.FormatCDA, Country: doc.Country})

	e.extractHeader(root, view)

	sections := root.FindAll("component/structuredBody/component/section")
	for _, section := range sections {
		e.extractSection(ctx, doc, section, view)
	}

	e.log.Debug().
		Str("document", doc.ID.String()).
		Int("sections", len(sections)).
		Int("records", view.RecordCount()).
		Msg("cda extraction complete")
	return view, nil
}

// extractSection routes one section by its coded identifier. Unknown section
// codes become unknown-category records rather than silently dropped data.
func (e *Extractor) extractSection(ctx context.Context, doc cdm.ClinicalDocument, section *Node, view *cdm.PatientClinicalView) {
	codeEl := section.Child("code")
	if codeEl == nil {
		view.AddWarning(cdm.WarnUnrecognized, "section without a code element skipped", "section")
		return
	}
	sectionCode := codeEl.Attr("code")

	spec, known := e.fieldMap.Section(sectionCode)
	locator := fmt.Sprintf("section[%s]", sectionCode)
	if !known {
		e.extractUnknownSection(section, sectionCode, view)
		return
	}

	entries := section.Children("entry")
	if len(entries) == 0 {
		if rec, ok := e.narrativeFallback(section, spec.Category, locator); ok {
			view.AddRecord(rec)
			view.AddWarning(cdm.WarnNarrativeFallback, "no structured entries, narrative text used", locator)
			return
		}
		view.MarkCategory(spec.Category)
		view.AddWarning(cdm.WarnEmptySection, fmt.Sprintf("section %s present but has zero entries", sectionCode), locator)
		return
	}

	emitted := 0
	for i, entry := range entries {
		roots := e.statementRoots(entry, spec)
		for _, stmt := range roots {
			rec, ok := e.buildRecord(ctx, doc, spec, stmt, fmt.Sprintf("%s/entry[%d]", locator, i), view)
			if !ok {
				continue
			}
			if rec.NegativeAssertion {
				view.AddWarning(cdm.WarnNegativeAssertion, rec.Code.Display, rec.SourceLocator)
			}
			view.AddRecord(rec)
			emitted++
		}
	}
	if emitted == 0 {
		// Entries existed but none were valid: the category still appears,
		// distinguishing "not recorded" from "not applicable".
		view.MarkCategory(spec.Category)
		view.AddWarning(cdm.WarnEmptySection, fmt.Sprintf("section %s present but has zero valid entries", sectionCode), locator)
	}
}

// statementRoots resolves the clinical statement nodes of an entry using the
// spec's ranked root paths.
func (e *Extractor) statementRoots(entry *Node, spec SectionSpec) []*Node {
	for _, path := range spec.Roots {
		if roots := entry.FindAll(path); len(roots) > 0 {
			return roots
		}
	}
	return nil
}

// buildRecord evaluates the spec's field locators against one clinical
// statement. ok is false when the statement carries no code and no display
// at all.
func (e *Extractor) buildRecord(ctx context.Context, doc cdm.ClinicalDocument, spec SectionSpec, stmt *Node, locator string, view *cdm.PatientClinicalView) (cdm.ClinicalRecord, bool) {
	field := func(name string) string { return e.evalField(stmt, spec.Fields[name]) }

	rec := cdm.ClinicalRecord{
		Category:      spec.Category,
		SourceLocator: locator,
		Status:        field(FieldStatus),
		Code: cdm.Coding{
			Code:    field(FieldCode),
			System:  field(FieldCodeSystem),
			Display: field(FieldDisplay),
		},
	}

	if cat, negative := negation.Detect(rec.Code.Code, rec.Code.System); negative {
		negation.Apply(&rec, cat)
		return rec, true
	}
	if rec.Code.Empty() {
		return cdm.ClinicalRecord{}, false
	}

	if raw := field(FieldEffective); raw != "" {
		if t, err := ParseTime(raw); err == nil {
			rec.Effective = &t
		} else {
			// Invalid date: the field is treated as absent, the record is
			// still emitted with its other fields intact.
			view.AddWarning(cdm.WarnInvalidField, fmt.Sprintf("unparseable effective time %q", raw), locator)
		}
	}

	// Numeric value and unit travel together or not at all.
	value, unit := field(FieldValue), field(FieldUnit)
	if value != "" && unit != "" {
		rec.Value, rec.Unit = value, unit
	}

	if dose := field(FieldDosage); dose != "" {
		if doseUnit := field(FieldDosageUnit); doseUnit != "" {
			rec.Dosage = dose + " " + doseUnit
		} else {
			rec.Dosage = dose
		}
	}
	rec.Severity = field(FieldSeverity)
	rec.Reaction = field(FieldReaction)

	if route := field(FieldRoute); route != "" {
		routeCoding := cdm.Coding{
			Code:    route,
			System:  field(FieldRouteSystem),
			Display: field(FieldRouteDisplay),
		}
		routeCoding.Display = e.resolver.Resolve(ctx, routeCoding.Code, routeCoding.System, doc.Language, routeCoding.Display)
		rec.SecondaryCodes = append(rec.SecondaryCodes, routeCoding)
	}

	rec.Code.Display = e.resolver.Resolve(ctx, rec.Code.Code, rec.Code.System, doc.Language, rec.Code.Display)
	return rec, true
}

// evalField runs the ranked locator strategies and returns the first
// non-empty result. Path locators precede attribute and pattern locators in
// the field map, so a structural-path match wins any conflict.
func (e *Extractor) evalField(stmt *Node, locators []Locator) string {
	for _, loc := range locators {
		switch {
		case loc.Path != "":
			node := stmt.Find(loc.Path)
			if node == nil {
				continue
			}
			var v string
			if loc.Attr != "" {
				v = node.Attr(loc.Attr)
			} else {
				v = node.FlatText()
			}
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		case loc.Attr != "":
			if v := strings.TrimSpace(stmt.firstAttr(loc.Attr)); v != "" {
				return v
			}
		case loc.Pattern != "":
			re, err := e.compile(loc.Pattern)
			if err != nil {
				continue
			}
			m := re.FindStringSubmatch(stmt.FlatText())
			if len(m) > 1 && strings.TrimSpace(m[1]) != "" {
				return strings.TrimSpace(m[1])
			}
			if len(m) == 1 && strings.TrimSpace(m[0]) != "" {
				return strings.TrimSpace(m[0])
			}
		}
	}
	return ""
}

func (e *Extractor) compile(pattern string) (*regexp.Regexp, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if re, ok := e.patterns[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	e.patterns[pattern] = re
	return re, nil
}

// extractUnknownSection keeps data from unmapped sections visible instead of
// discarding it.
func (e *Extractor) extractUnknownSection(section *Node, sectionCode string, view *cdm.PatientClinicalView) {
	locator := fmt.Sprintf("section[%s]", sectionCode)
	rec := cdm.ClinicalRecord{
		Category:      cdm.CategoryUnknown,
		Code:          cdm.Coding{Code: sectionCode, Display: strings.TrimSpace(textOf(section.Child("title")))},
		Narrative:     narrativeText(section),
		SourceLocator: locator,
	}
	if rec.Code.Display == "" {
		rec.Code.Display = sectionCode
	}
	view.AddRecord(rec)
	view.AddWarning(cdm.WarnUnrecognized, fmt.Sprintf("section code %s has no mapping", sectionCode), locator)
}

func textOf(n *Node) string {
	if n == nil {
		return ""
	}
	return n.FlatText()
}
