package fhir

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/crosscare/exchange/internal/platform/contact"
	"github.com/crosscare/exchange/internal/platform/negation"
	"github.com/crosscare/exchange/pkg/cdm"
)

// DisplayResolver resolves a coded value to display text. A non-empty
// supplied display is returned unchanged.
type DisplayResolver interface {
	Resolve(ctx context.Context, code, system, language, supplied string) string
}

// Classifier turns FHIR Bundles into normalized clinical views. It holds no
// per-document state and is safe for concurrent use.
type Classifier struct {
	resolver DisplayResolver
	log      zerolog.Logger
}

// NewClassifier creates a classifier backed by the given resolver.
func NewClassifier(resolver DisplayResolver, log zerolog.Logger) *Classifier {
	return &Classifier{resolver: resolver, log: log}
}

// Classify decodes the bundle and classifies every entry into a view. Input
// that is not valid JSON or not a Bundle fails with cdm.ErrMalformedDocument;
// an undecodable individual entry is skipped with a warning instead.
func (c *Classifier) Classify(ctx context.Context, doc cdm.ClinicalDocument) (*cdm.PatientClinicalView, error) {
	var bundle Bundle
	if err := json.Unmarshal(doc.Content, &bundle); err != nil {
		return nil, fmt.Errorf("%w: %v", cdm.ErrMalformedDocument, err)
	}
	if !strings.EqualFold(bundle.ResourceType, "Bundle") {
		return nil, fmt.Errorf("%w: resource type %q is not a bundle", cdm.ErrMalformedDocument, bundle.ResourceType)
	}

	view := cdm.NewPatientClinicalView()
	view.Sources = append(view.Sources, cdm.Provenance{DocumentID: doc.ID, Format: cdm.FormatFHIRBundle, Country: doc.Country})

	for i, entry := range bundle.Entry {
		if len(entry.Resource) == 0 {
			continue
		}
		locator := fmt.Sprintf("entry[%d]", i)
		var header resourceHeader
		if err := json.Unmarshal(entry.Resource, &header); err != nil {
			view.AddWarning(cdm.WarnMalformed, "undecodable bundle entry", locator)
			continue
		}
		if err := c.classifyEntry(ctx, doc, view, header.ResourceType, entry.Resource, locator); err != nil {
			view.AddWarning(cdm.WarnMalformed, fmt.Sprintf("%s: %v", header.ResourceType, err), locator)
		}
	}

	c.log.Debug().
		Str("document", doc.ID.String()).
		Int("entries", len(bundle.Entry)).
		Int("records", view.RecordCount()).
		Msg("fhir classification complete")
	return view, nil
}

// classifyEntry routes one resource by its declared type. Resources outside
// the clinical and administrative sets become unknown-category records rather
// than silently dropped data.
func (c *Classifier) classifyEntry(ctx context.Context, doc cdm.ClinicalDocument, view *cdm.PatientClinicalView, resourceType string, raw json.RawMessage, locator string) error {
	switch resourceType {
	case "MedicationStatement", "MedicationRequest":
		var res MedicationStatement
		if err := json.Unmarshal(raw, &res); err != nil {
			return err
		}
		c.addMedication(ctx, doc, view, &res, locator)
	case "AllergyIntolerance":
		var res AllergyIntolerance
		if err := json.Unmarshal(raw, &res); err != nil {
			return err
		}
		c.addAllergy(ctx, doc, view, &res, locator)
	case "Condition":
		var res Condition
		if err := json.Unmarshal(raw, &res); err != nil {
			return err
		}
		c.addCondition(ctx, doc, view, &res, locator)
	case "Procedure":
		var res Procedure
		if err := json.Unmarshal(raw, &res); err != nil {
			return err
		}
		c.addProcedure(ctx, doc, view, &res, locator)
	case "Immunization":
		var res Immunization
		if err := json.Unmarshal(raw, &res); err != nil {
			return err
		}
		c.addImmunization(ctx, doc, view, &res, locator)
	case "Observation":
		var res Observation
		if err := json.Unmarshal(raw, &res); err != nil {
			return err
		}
		c.addObservation(ctx, doc, view, &res, locator)
	case "Patient":
		var res Patient
		if err := json.Unmarshal(raw, &res); err != nil {
			return err
		}
		addPatient(view, &res)
	case "Practitioner":
		var res Practitioner
		if err := json.Unmarshal(raw, &res); err != nil {
			return err
		}
		addPractitioner(view, &res)
	case "Organization":
		var res Organization
		if err := json.Unmarshal(raw, &res); err != nil {
			return err
		}
		addOrganization(view, &res)
	case "RelatedPerson":
		var res RelatedPerson
		if err := json.Unmarshal(raw, &res); err != nil {
			return err
		}
		addRelatedPerson(view, &res)
	case "Composition", "Encounter", "Device", "Location", "Provenance":
		// Structural and contextual resources carry no clinical entries.
	default:
		addUnknown(view, resourceType, raw, locator)
	}
	return nil
}

// baseRecord builds the record skeleton for a coded concept, applying
// negative-assertion detection before terminology resolution. ok is false
// when the concept carries no code and no display at all.
func (c *Classifier) baseRecord(ctx context.Context, doc cdm.ClinicalDocument, view *cdm.PatientClinicalView, cat cdm.Category, concept *CodeableConcept, locator string) (cdm.ClinicalRecord, bool) {
	coding := concept.First()
	rec := cdm.ClinicalRecord{
		Category:      cat,
		SourceLocator: locator,
		Code: cdm.Coding{
			Code:    coding.Code,
			System:  coding.System,
			Display: coding.Display,
		},
	}
	if rec.Code.Display == "" {
		rec.Code.Display = concept.DisplayText()
	}

	if negCat, negative := negation.Detect(rec.Code.Code, rec.Code.System); negative {
		negation.Apply(&rec, negCat)
		view.AddWarning(cdm.WarnNegativeAssertion, rec.Code.Display, locator)
		return rec, true
	}
	if rec.Code.Empty() {
		return cdm.ClinicalRecord{}, false
	}
	rec.Code.Display = c.resolver.Resolve(ctx, rec.Code.Code, rec.Code.System, doc.Language, rec.Code.Display)
	return rec, true
}

func (c *Classifier) addMedication(ctx context.Context, doc cdm.ClinicalDocument, view *cdm.PatientClinicalView, res *MedicationStatement, locator string) {
	rec, ok := c.baseRecord(ctx, doc, view, cdm.CategoryMedication, res.MedicationCodeableConcept, locator)
	if !ok {
		return
	}
	rec.Status = res.Status
	if !rec.NegativeAssertion {
		if t, ok := parseFHIRTime(effectiveStart(res.EffectiveDateTime, res.EffectivePeriod)); ok {
			rec.Effective = &t
		}
		for _, d := range res.Dosage {
			if rec.Dosage == "" && d.Text != "" {
				rec.Dosage = d.Text
			}
			if d.Route != nil {
				if route := d.Route.First(); route.Code != "" {
					route.Display = c.resolver.Resolve(ctx, route.Code, route.System, doc.Language, route.Display)
					rec.SecondaryCodes = append(rec.SecondaryCodes, cdm.Coding{Code: route.Code, System: route.System, Display: route.Display})
				}
			}
		}
	}
	view.AddRecord(rec)
}

func (c *Classifier) addAllergy(ctx context.Context, doc cdm.ClinicalDocument, view *cdm.PatientClinicalView, res *AllergyIntolerance, locator string) {
	rec, ok := c.baseRecord(ctx, doc, view, cdm.CategoryAllergy, res.Code, locator)
	if !ok {
		return
	}
	rec.Status = res.ClinicalStatus.First().Code
	if !rec.NegativeAssertion {
		if t, ok := parseFHIRTime(res.OnsetDateTime); ok {
			rec.Effective = &t
		}
		rec.Severity = res.Criticality
		for _, reaction := range res.Reaction {
			if rec.Reaction == "" && len(reaction.Manifestation) > 0 {
				rec.Reaction = reaction.Manifestation[0].DisplayText()
			}
			if reaction.Severity != "" {
				rec.Severity = reaction.Severity
			}
		}
	}
	view.AddRecord(rec)
}

func (c *Classifier) addCondition(ctx context.Context, doc cdm.ClinicalDocument, view *cdm.PatientClinicalView, res *Condition, locator string) {
	rec, ok := c.baseRecord(ctx, doc, view, cdm.CategoryProblem, res.Code, locator)
	if !ok {
		return
	}
	rec.Status = res.ClinicalStatus.First().Code
	if !rec.NegativeAssertion {
		if t, ok := parseFHIRTime(res.OnsetDateTime); ok {
			rec.Effective = &t
		}
	}
	view.AddRecord(rec)
}

func (c *Classifier) addProcedure(ctx context.Context, doc cdm.ClinicalDocument, view *cdm.PatientClinicalView, res *Procedure, locator string) {
	rec, ok := c.baseRecord(ctx, doc, view, cdm.CategoryProcedure, res.Code, locator)
	if !ok {
		return
	}
	rec.Status = res.Status
	if !rec.NegativeAssertion {
		if t, ok := parseFHIRTime(effectiveStart(res.PerformedDateTime, res.PerformedPeriod)); ok {
			rec.Effective = &t
		}
	}
	view.AddRecord(rec)
}

func (c *Classifier) addImmunization(ctx context.Context, doc cdm.ClinicalDocument, view *cdm.PatientClinicalView, res *Immunization, locator string) {
	rec, ok := c.baseRecord(ctx, doc, view, cdm.CategoryImmunization, res.VaccineCode, locator)
	if !ok {
		return
	}
	rec.Status = res.Status
	if !rec.NegativeAssertion {
		if t, ok := parseFHIRTime(res.OccurrenceDateTime); ok {
			rec.Effective = &t
		}
	}
	view.AddRecord(rec)
}

func (c *Classifier) addObservation(ctx context.Context, doc cdm.ClinicalDocument, view *cdm.PatientClinicalView, res *Observation, locator string) {
	rec, ok := c.baseRecord(ctx, doc, view, classifyObservation(res), res.Code, locator)
	if !ok {
		return
	}
	rec.Status = res.Status
	if rec.NegativeAssertion {
		view.AddRecord(rec)
		return
	}
	if t, ok := parseFHIRTime(res.EffectiveDateTime); ok {
		rec.Effective = &t
	}
	switch {
	case res.ValueQuantity != nil:
		// Numeric value and unit travel together or not at all.
		value, unit := res.ValueQuantity.ValueString(), res.ValueQuantity.UnitText()
		if value != "" && unit != "" {
			rec.Value, rec.Unit = value, unit
		}
	case res.ValueCodeableConcept != nil:
		rec.Value = res.ValueCodeableConcept.DisplayText()
	case res.ValueString != "":
		rec.Value = res.ValueString
	case len(res.Component) > 0:
		rec.Value = componentSummary(res.Component)
	}
	view.AddRecord(rec)
}

// componentSummary flattens a multi-component panel (a blood pressure
// reading, say) into one readable value, keeping each component's quantity
// and unit paired.
func componentSummary(components []ObservationComponent) string {
	parts := make([]string, 0, len(components))
	for _, comp := range components {
		value, unit := comp.ValueQuantity.ValueString(), comp.ValueQuantity.UnitText()
		if value == "" || unit == "" {
			continue
		}
		if label := comp.Code.DisplayText(); label != "" {
			parts = append(parts, label+": "+value+" "+unit)
		} else {
			parts = append(parts, value+" "+unit)
		}
	}
	return strings.Join(parts, "; ")
}

// addUnknown keeps data from unmapped resource types visible instead of
// discarding it.
func addUnknown(view *cdm.PatientClinicalView, resourceType string, raw json.RawMessage, locator string) {
	var generic struct {
		Code *CodeableConcept `json:"code,omitempty"`
	}
	_ = json.Unmarshal(raw, &generic)
	coding := generic.Code.First()
	rec := cdm.ClinicalRecord{
		Category:      cdm.CategoryUnknown,
		Code:          cdm.Coding{Code: coding.Code, System: coding.System, Display: coding.Display},
		Narrative:     resourceType,
		SourceLocator: locator,
	}
	if rec.Code.Display == "" {
		rec.Code.Display = resourceType
	}
	view.AddRecord(rec)
	view.AddWarning(cdm.WarnUnrecognized, fmt.Sprintf("resource type %s has no mapping", resourceType), locator)
}

func addPatient(view *cdm.PatientClinicalView, res *Patient) {
	rec := cdm.ContactRecord{Role: cdm.RolePatient}
	if len(res.Name) > 0 {
		rec.Name = humanName(res.Name[0])
	}
	fillContactDetails(&rec, res.Address, res.Telecom)
	view.AddContact(rec)

	view.Patient.Name = rec.Name
	view.Patient.Gender = res.Gender
	view.Patient.BirthDate = res.BirthDate
	for _, id := range res.Identifier {
		if id.Value != "" {
			view.Patient.Identifiers = append(view.Patient.Identifiers, id.Value)
		}
	}
}

func addPractitioner(view *cdm.PatientClinicalView, res *Practitioner) {
	rec := cdm.ContactRecord{Role: cdm.RoleAuthor}
	if len(res.Name) > 0 {
		rec.Name = humanName(res.Name[0])
	}
	fillContactDetails(&rec, res.Address, res.Telecom)
	view.AddContact(rec)
}

func addOrganization(view *cdm.PatientClinicalView, res *Organization) {
	rec := cdm.ContactRecord{Role: cdm.RoleCustodian, Organization: strings.TrimSpace(res.Name)}
	fillContactDetails(&rec, res.Address, res.Telecom)
	view.AddContact(rec)
}

func addRelatedPerson(view *cdm.PatientClinicalView, res *RelatedPerson) {
	role := cdm.RoleOther
	for _, rel := range res.Relationship {
		text := rel.Text
		if text == "" {
			text = rel.First().Display
		}
		if text == "" {
			text = rel.First().Code
		}
		if r, ok := contact.RelatedRole(text); ok {
			role = r
			break
		}
	}
	rec := cdm.ContactRecord{Role: role}
	if len(res.Name) > 0 {
		rec.Name = humanName(res.Name[0])
	}
	fillContactDetails(&rec, res.Address, res.Telecom)
	view.AddContact(rec)
}

func humanName(n HumanName) cdm.Name {
	name := contact.NormalizeName(cdm.Name{Given: strings.Join(n.Given, " "), Family: n.Family})
	if name.Empty() && n.Text != "" {
		name.Family = strings.TrimSpace(n.Text)
	}
	return name
}

// fillContactDetails routes FHIR address and telecom entries through the
// shared contact normalizer.
func fillContactDetails(rec *cdm.ContactRecord, addrs []Address, telecoms []ContactPoint) {
	for _, a := range addrs {
		norm, ok := contact.NormalizeAddress(cdm.Address{
			Street:     strings.Join(a.Line, ", "),
			City:       a.City,
			PostalCode: a.PostalCode,
			Country:    a.Country,
			Use:        a.Use,
		})
		if ok {
			rec.Addresses = append(rec.Addresses, norm)
		}
	}
	for _, t := range telecoms {
		system, ok := contact.NormalizeSystem(t.System, t.Value)
		if !ok {
			continue
		}
		tel, ok := contact.ParseTelecom(t.Value, t.Use)
		if !ok {
			continue
		}
		tel.System = system
		rec.Telecoms = append(rec.Telecoms, tel)
	}
}

func effectiveStart(dateTime string, period *Period) string {
	if dateTime != "" {
		return dateTime
	}
	if period != nil {
		return period.Start
	}
	return ""
}
