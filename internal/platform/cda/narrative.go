package cda

import (
	"strings"

	"github.com/crosscare/exchange/pkg/cdm"
)

// narrativeText flattens a section's human-readable text block.
func narrativeText(section *Node) string {
	text := section.Child("text")
	if text == nil {
		return ""
	}
	return text.FlatText()
}

// narrativeRows extracts the body rows of a narrative table, one string per
// row with cells joined by " | ".
func narrativeRows(section *Node) []string {
	var rows []string
	for _, tr := range section.FindAll("text/table/tbody/tr") {
		var cells []string
		for _, td := range tr.Children("td") {
			if v := td.FlatText(); v != "" {
				cells = append(cells, v)
			}
		}
		if len(cells) > 0 {
			rows = append(rows, strings.Join(cells, " | "))
		}
	}
	return rows
}

// narrativeFallback builds minimally-structured records from the section
// narrative when no structured entries exist. Table rows each become a
// record; free text becomes a single record.
func (e *Extractor) narrativeFallback(section *Node, cat cdm.Category, locator string) (cdm.ClinicalRecord, bool) {
	rows := narrativeRows(section)
	if len(rows) == 0 {
		if text := narrativeText(section); text != "" {
			return cdm.ClinicalRecord{
				Category:      cat,
				Code:          cdm.Coding{Display: firstSentence(text)},
				Narrative:     text,
				SourceLocator: locator + "/text",
			}, true
		}
		return cdm.ClinicalRecord{}, false
	}
	// One record summarizing the table keeps the narrative visible without
	// inventing coded facts that were never asserted.
	return cdm.ClinicalRecord{
		Category:      cat,
		Code:          cdm.Coding{Display: firstSentence(rows[0])},
		Narrative:     strings.Join(rows, "\n"),
		SourceLocator: locator + "/text",
	}, true
}

func firstSentence(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, ".;\n"); i > 0 {
		s = s[:i]
	}
	if len(s) > 120 {
		s = s[:120]
	}
	return strings.TrimSpace(s)
}
