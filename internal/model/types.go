package model

// ElementType represents the kind of a schema element
type ElementType string

const (
	ElementText              ElementType = "text"
	ElementNumber            ElementType = "number"
	ElementParagraph         ElementType = "paragraph"
	ElementDropdown          ElementType = "dropdown"
	ElementRadio             ElementType = "radio"
	ElementDate              ElementType = "date"
	ElementCalculated        ElementType = "calculated"
	ElementDivider           ElementType = "divider"
	ElementHeader            ElementType = "header"
	ElementImage             ElementType = "image"
	ElementFooter            ElementType = "footer"
	ElementDocumentHeader    ElementType = "documentHeader"
	ElementMedicalHistory    ElementType = "medicalHistory"
	ElementPatientName       ElementType = "patientName"
	ElementPatientEmail      ElementType = "patientEmail"
	ElementPatientPhone      ElementType = "patientPhone"
	ElementPatientAddress    ElementType = "patientAddress"
	ElementPatientAge        ElementType = "patientAge"
	ElementPatientGender     ElementType = "patientGender"
	ElementPatientBloodGroup ElementType = "patientBloodGroup"
)

// ElementTypes lists every known element type in palette order
var ElementTypes = []ElementType{
	ElementText, ElementNumber, ElementParagraph, ElementDropdown, ElementRadio,
	ElementDate, ElementCalculated, ElementDivider, ElementHeader, ElementImage,
	ElementFooter, ElementDocumentHeader, ElementMedicalHistory,
	ElementPatientName, ElementPatientEmail, ElementPatientPhone,
	ElementPatientAddress, ElementPatientAge, ElementPatientGender,
	ElementPatientBloodGroup,
}

var knownTypes = func() map[ElementType]bool {
	m := make(map[ElementType]bool, len(ElementTypes))
	for _, t := range ElementTypes {
		m[t] = true
	}
	return m
}()

// Known reports whether t is part of the closed element type set
func (t ElementType) Known() bool {
	return knownTypes[t]
}

// HasData reports whether elements of this type carry a value under a name.
// Decorative elements (divider, header, image, footer, documentHeader) do not.
func (t ElementType) HasData() bool {
	switch t {
	case ElementDivider, ElementHeader, ElementImage, ElementFooter, ElementDocumentHeader:
		return false
	}
	return t.Known()
}

// IsChoice reports whether the type renders a fixed option list
func (t ElementType) IsChoice() bool {
	return t == ElementDropdown || t == ElementRadio
}

// IsTextLike reports whether ValidationConfig applies to the type
func (t ElementType) IsTextLike() bool {
	switch t {
	case ElementText, ElementParagraph, ElementMedicalHistory,
		ElementPatientName, ElementPatientEmail, ElementPatientPhone,
		ElementPatientAddress, ElementPatientGender, ElementPatientBloodGroup:
		return true
	}
	return false
}

// IsNumeric reports whether values of the type are numbers
func (t ElementType) IsNumeric() bool {
	return t == ElementNumber || t == ElementPatientAge
}

// DisplayName is the human label used for freshly created elements
func (t ElementType) DisplayName() string {
	switch t {
	case ElementText:
		return "Text Field"
	case ElementNumber:
		return "Number"
	case ElementParagraph:
		return "Paragraph"
	case ElementDropdown:
		return "Dropdown"
	case ElementRadio:
		return "Radio Group"
	case ElementDate:
		return "Date"
	case ElementCalculated:
		return "Calculated Field"
	case ElementDivider:
		return "Divider"
	case ElementHeader:
		return "Section Header"
	case ElementImage:
		return "Image"
	case ElementFooter:
		return "Footer"
	case ElementDocumentHeader:
		return "Document Header"
	case ElementMedicalHistory:
		return "Medical History"
	case ElementPatientName:
		return "Patient Name"
	case ElementPatientEmail:
		return "Patient Email"
	case ElementPatientPhone:
		return "Patient Phone"
	case ElementPatientAddress:
		return "Patient Address"
	case ElementPatientAge:
		return "Patient Age"
	case ElementPatientGender:
		return "Patient Gender"
	case ElementPatientBloodGroup:
		return "Blood Group"
	}
	return string(t)
}

// GridColumns is the width of the horizontal layout track
const GridColumns = 12

// SchemaVersion is the current structured schema version
const SchemaVersion = 2

// Position places an element on the grid. Row and Col are advisory ordering
// hints; the layout engine recomputes placement from order and width.
type Position struct {
	Row   int `json:"row"`
	Col   int `json:"col"`
	Width int `json:"width"`
}

// PrefillSource names an external data source for prefill
type PrefillSource string

const (
	SourcePatient     PrefillSource = "patient"
	SourceDoctor      PrefillSource = "doctor"
	SourceAppointment PrefillSource = "appointment"
	SourceSystem      PrefillSource = "system"
)

// PrefillConfig binds an element to a source field
type PrefillConfig struct {
	Enabled  bool          `json:"enabled"`
	Source   PrefillSource `json:"source"`
	Field    string        `json:"field"`
	Readonly bool          `json:"readonly"`
}

// ValidationConfig holds constraints for text-like elements
type ValidationConfig struct {
	MinLength *int   `json:"minLength,omitempty"`
	MaxLength *int   `json:"maxLength,omitempty"`
	Pattern   string `json:"pattern,omitempty"`
	Message   string `json:"message,omitempty"`
}

// CalculationType selects a built-in calculator or a custom formula
type CalculationType string

const (
	CalcBMI         CalculationType = "bmi"
	CalcAge         CalculationType = "age"
	CalcAgeMonths   CalculationType = "age_months"
	CalcDaysBetween CalculationType = "days_between"
	CalcCustom      CalculationType = "custom"
)

// Known reports whether c is a supported calculation
func (c CalculationType) Known() bool {
	switch c {
	case CalcBMI, CalcAge, CalcAgeMonths, CalcDaysBetween, CalcCustom:
		return true
	}
	return false
}
