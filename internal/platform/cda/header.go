package cda

import (
	"github.com/crosscare/exchange/internal/platform/contact"
	"github.com/crosscare/exchange/pkg/cdm"
)

// extractHeader pulls the patient identity and the administrative contacts
// (patient, guardian, author, legal authenticator, custodian) from the
// document header.
func (e *Extractor) extractHeader(root *Node, view *cdm.PatientClinicalView) {
	if role := root.Find("recordTarget/patientRole"); role != nil {
		e.extractPatient(role, view)
	}
	if author := root.Find("author/assignedAuthor"); author != nil {
		c := cdm.ContactRecord{
			Role: cdm.RoleAuthor,
			Name: personName(author.Find("assignedPerson/name")),
		}
		if org := author.Find("representedOrganization/name"); org != nil {
			c.Organization = org.FlatText()
		}
		addContactDetails(author, &c)
		view.AddContact(c)
	}
	if auth := root.Find("legalAuthenticator/assignedEntity"); auth != nil {
		c := cdm.ContactRecord{
			Role: cdm.RoleLegalAuthenticator,
			Name: personName(auth.Find("assignedPerson/name")),
		}
		addContactDetails(auth, &c)
		view.AddContact(c)
	}
	if cust := root.Find("custodian/assignedCustodian/representedCustodianOrganization"); cust != nil {
		c := cdm.ContactRecord{Role: cdm.RoleCustodian}
		if name := cust.Child("name"); name != nil {
			c.Organization = name.FlatText()
		}
		addContactDetails(cust, &c)
		view.AddContact(c)
	}
}

func (e *Extractor) extractPatient(role *Node, view *cdm.PatientClinicalView) {
	patient := role.Child("patient")
	if patient != nil {
		view.Patient.Name = personName(patient.Child("name"))
		if g := patient.Child("administrativeGenderCode"); g != nil {
			view.Patient.Gender = g.Attr("displayName")
			if view.Patient.Gender == "" {
				view.Patient.Gender = g.Attr("code")
			}
		}
		if bt := patient.Child("birthTime"); bt != nil {
			view.Patient.BirthDate = FormatDate(bt.Attr("value"))
		}
	}
	for _, id := range role.Children("id") {
		if ext := id.Attr("extension"); ext != "" {
			view.Patient.Identifiers = append(view.Patient.Identifiers, ext)
		} else if r := id.Attr("root"); r != "" {
			view.Patient.Identifiers = append(view.Patient.Identifiers, r)
		}
	}

	c := cdm.ContactRecord{Role: cdm.RolePatient, Name: view.Patient.Name}
	addContactDetails(role, &c)
	view.AddContact(c)

	if patient != nil {
		for _, g := range patient.Children("guardian") {
			gc := cdm.ContactRecord{
				Role: cdm.RoleGuardian,
				Name: personName(g.Find("guardianPerson/name")),
			}
			addContactDetails(g, &gc)
			view.AddContact(gc)
		}
	}
}

// addContactDetails collects addr and telecom children of an entity node.
func addContactDetails(entity *Node, c *cdm.ContactRecord) {
	for _, addr := range entity.Children("addr") {
		a := cdm.Address{
			Street:     textOf(addr.Child("streetAddressLine")),
			City:       textOf(addr.Child("city")),
			PostalCode: textOf(addr.Child("postalCode")),
			Country:    textOf(addr.Child("country")),
			Use:        addr.Attr("use"),
		}
		if norm, ok := contact.NormalizeAddress(a); ok {
			c.Addresses = append(c.Addresses, norm)
		}
	}
	for _, tel := range entity.Children("telecom") {
		if t, ok := contact.ParseTelecom(tel.Attr("value"), tel.Attr("use")); ok {
			c.Telecoms = append(c.Telecoms, t)
		}
	}
}

func personName(name *Node) cdm.Name {
	if name == nil {
		return cdm.Name{}
	}
	return contact.NormalizeName(cdm.Name{
		Given:  textOf(name.Child("given")),
		Family: textOf(name.Child("family")),
	})
}
