// Package patientview assembles normalized clinical views from source
// documents: per-document parsing fans out concurrently, then a deterministic
// merge deduplicates the fragments into one view per patient.
package patientview

import (
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/crosscare/exchange/pkg/cdm"
)

// recordKey is the content-derived identity of a clinical record. Two
// records from different documents that describe the same fact collapse to
// one key.
type recordKey struct {
	category cdm.Category
	code     string
	system   string
	date     string
}

func keyOf(rec cdm.ClinicalRecord) recordKey {
	k := recordKey{
		category: rec.Category,
		code:     strings.ToLower(strings.TrimSpace(rec.Code.Code)),
		system:   strings.ToLower(strings.TrimSpace(rec.Code.System)),
	}
	if rec.Effective != nil {
		// Normalized to UTC calendar date so the same event recorded in two
		// timezones still collapses.
		k.date = rec.Effective.UTC().Format("2006-01-02")
	}
	return k
}

// completeness scores a record by how many of its optional fields are
// populated. On a key collision the more complete record survives.
func completeness(rec cdm.ClinicalRecord) int {
	n := 0
	for _, f := range []string{rec.Code.Display, rec.Status, rec.Value, rec.Unit, rec.Dosage, rec.Severity, rec.Reaction, rec.Narrative} {
		if f != "" {
			n++
		}
	}
	if rec.Effective != nil {
		n++
	}
	n += len(rec.SecondaryCodes)
	return n
}

// contactKey is the content-derived identity of a contact record.
type contactKey struct {
	role         cdm.ContactRole
	given        string
	family       string
	organization string
}

func contactKeyOf(c cdm.ContactRecord) contactKey {
	return contactKey{
		role:         c.Role,
		given:        strings.ToLower(strings.TrimSpace(c.Name.Given)),
		family:       strings.ToLower(strings.TrimSpace(c.Name.Family)),
		organization: strings.ToLower(strings.TrimSpace(c.Organization)),
	}
}

// Merge combines view fragments into one deduplicated view. It is
// commutative up to record ordering within a category (ties between equally
// complete duplicates keep the first seen) and idempotent: merging a view
// with itself returns the same view, provenance and warnings included, so
// re-merging an already-merged view is always safe.
func Merge(fragments ...*cdm.PatientClinicalView) *cdm.PatientClinicalView {
	out := cdm.NewPatientClinicalView()
	seen := make(map[recordKey]int) // key -> index into out.Records[category]
	best := make(map[recordKey]int) // key -> completeness of kept record
	contacts := make(map[contactKey]int)
	sources := make(map[uuid.UUID]bool)
	warnings := make(map[cdm.Warning]bool)

	for _, frag := range fragments {
		if frag == nil {
			continue
		}
		mergePatient(&out.Patient, frag.Patient)
		for _, src := range frag.Sources {
			if !sources[src.DocumentID] {
				out.Sources = append(out.Sources, src)
				sources[src.DocumentID] = true
			}
		}
		for _, w := range frag.Warnings {
			if !warnings[w] {
				out.Warnings = append(out.Warnings, w)
				warnings[w] = true
			}
		}

		for _, cat := range categoriesOf(frag) {
			// Present-but-empty categories survive the merge.
			out.MarkCategory(cat)
			for _, rec := range frag.Records[cat] {
				k := keyOf(rec)
				score := completeness(rec)
				if idx, ok := seen[k]; ok {
					if score > best[k] {
						out.Records[cat][idx] = rec
						best[k] = score
					}
					continue
				}
				out.Records[cat] = append(out.Records[cat], rec)
				seen[k] = len(out.Records[cat]) - 1
				best[k] = score
			}
		}

		for _, c := range frag.Contacts {
			k := contactKeyOf(c)
			if idx, ok := contacts[k]; ok {
				merged := &out.Contacts[idx]
				merged.Addresses = unionAddresses(merged.Addresses, c.Addresses)
				merged.Telecoms = unionTelecoms(merged.Telecoms, c.Telecoms)
				continue
			}
			out.Contacts = append(out.Contacts, c)
			contacts[k] = len(out.Contacts) - 1
		}
	}
	return out
}

// categoriesOf returns a fragment's categories in the canonical display
// order so merge output does not depend on map iteration.
func categoriesOf(v *cdm.PatientClinicalView) []cdm.Category {
	cats := make([]cdm.Category, 0, len(v.Records))
	known := make(map[cdm.Category]bool, len(cdm.CategoryOrder))
	for _, cat := range cdm.CategoryOrder {
		known[cat] = true
		if _, ok := v.Records[cat]; ok {
			cats = append(cats, cat)
		}
	}
	extra := make([]cdm.Category, 0)
	for cat := range v.Records {
		if !known[cat] {
			extra = append(extra, cat)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(cats, extra...)
}

// mergePatient fills gaps in the accumulated patient summary without
// overwriting fields an earlier fragment already provided.
func mergePatient(dst *cdm.PatientSummary, src cdm.PatientSummary) {
	if dst.Name.Empty() {
		dst.Name = src.Name
	}
	if dst.BirthDate == "" {
		dst.BirthDate = src.BirthDate
	}
	if dst.Gender == "" {
		dst.Gender = src.Gender
	}
	seen := make(map[string]bool, len(dst.Identifiers))
	for _, id := range dst.Identifiers {
		seen[id] = true
	}
	for _, id := range src.Identifiers {
		if !seen[id] {
			dst.Identifiers = append(dst.Identifiers, id)
			seen[id] = true
		}
	}
}

func unionAddresses(dst, src []cdm.Address) []cdm.Address {
	for _, a := range src {
		dup := false
		for _, existing := range dst {
			if sameAddress(existing, a) {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, a)
		}
	}
	return dst
}

func sameAddress(a, b cdm.Address) bool {
	return strings.EqualFold(a.Street, b.Street) &&
		strings.EqualFold(a.City, b.City) &&
		strings.EqualFold(a.PostalCode, b.PostalCode) &&
		strings.EqualFold(a.Country, b.Country)
}

func unionTelecoms(dst, src []cdm.Telecom) []cdm.Telecom {
	for _, t := range src {
		dup := false
		for _, existing := range dst {
			if existing.System == t.System && strings.EqualFold(existing.Value, t.Value) {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, t)
		}
	}
	return dst
}

// SortRecords orders each category's records newest first, undated last, for
// stable presentation. Called once after the final merge.
func SortRecords(v *cdm.PatientClinicalView) {
	for cat := range v.Records {
		recs := v.Records[cat]
		sort.SliceStable(recs, func(i, j int) bool {
			ti, tj := recs[i].Effective, recs[j].Effective
			switch {
			case ti == nil:
				return false
			case tj == nil:
				return true
			default:
				return ti.After(*tj)
			}
		})
	}
}
