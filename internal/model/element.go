package model

import (
	"encoding/json"
	"fmt"
)

// Properties is the type-specific part of an element. Each element type maps
// to exactly one concrete variant; see PropertiesFor.
type Properties interface {
	isProperties()
}

// TextProps applies to text elements
type TextProps struct {
	Placeholder  string `json:"placeholder,omitempty"`
	DefaultValue string `json:"defaultValue,omitempty"`
}

// NumberProps applies to number elements
type NumberProps struct {
	Placeholder string   `json:"placeholder,omitempty"`
	Min         *float64 `json:"min,omitempty"`
	Max         *float64 `json:"max,omitempty"`
	Step        *float64 `json:"step,omitempty"`
	Unit        string   `json:"unit,omitempty"`
}

// ParagraphProps applies to paragraph elements
type ParagraphProps struct {
	Placeholder string `json:"placeholder,omitempty"`
	Rows        int    `json:"rows,omitempty"`
}

// ChoiceProps applies to dropdown and radio elements
type ChoiceProps struct {
	Options []string `json:"options"`
}

// DateProps applies to date elements
type DateProps struct {
	MinDate string `json:"minDate,omitempty"`
	MaxDate string `json:"maxDate,omitempty"`
}

// CalculatedProps applies to calculated elements
type CalculatedProps struct {
	Calculation CalculationType `json:"calculation"`
	Formula     string          `json:"calculationFormula,omitempty"`
	Unit        string          `json:"unit,omitempty"`
}

// DividerProps applies to divider elements
type DividerProps struct {
	Style string `json:"style,omitempty"`
}

// HeaderProps applies to section header elements
type HeaderProps struct {
	Text  string `json:"text,omitempty"`
	Level int    `json:"level,omitempty"`
}

// ImageProps applies to image elements
type ImageProps struct {
	Src    string `json:"src,omitempty"`
	Alt    string `json:"alt,omitempty"`
	Height int    `json:"height,omitempty"`
}

// FooterProps applies to footer elements
type FooterProps struct {
	Text string `json:"text,omitempty"`
}

// DocumentHeaderProps applies to the printed letterhead
type DocumentHeaderProps struct {
	ClinicName string `json:"clinicName,omitempty"`
	Address    string `json:"address,omitempty"`
	Phone      string `json:"phone,omitempty"`
	LogoSrc    string `json:"logoSrc,omitempty"`
}

// PatientFieldProps applies to the patient* elements and medicalHistory
type PatientFieldProps struct {
	Placeholder string `json:"placeholder,omitempty"`
}

// UnknownProps keeps the raw properties of an element whose type is not in
// the known set, so the validator can report it instead of decoding failing.
type UnknownProps struct {
	Raw json.RawMessage `json:"-"`
}

func (TextProps) isProperties()           {}
func (NumberProps) isProperties()         {}
func (ParagraphProps) isProperties()      {}
func (ChoiceProps) isProperties()         {}
func (DateProps) isProperties()           {}
func (CalculatedProps) isProperties()     {}
func (DividerProps) isProperties()        {}
func (HeaderProps) isProperties()         {}
func (ImageProps) isProperties()          {}
func (FooterProps) isProperties()         {}
func (DocumentHeaderProps) isProperties() {}
func (PatientFieldProps) isProperties()   {}
func (UnknownProps) isProperties()        {}

// PropertiesFor returns the zero properties variant for t
func PropertiesFor(t ElementType) Properties {
	switch t {
	case ElementText:
		return &TextProps{}
	case ElementNumber:
		return &NumberProps{}
	case ElementParagraph:
		return &ParagraphProps{}
	case ElementDropdown, ElementRadio:
		return &ChoiceProps{}
	case ElementDate:
		return &DateProps{}
	case ElementCalculated:
		return &CalculatedProps{}
	case ElementDivider:
		return &DividerProps{}
	case ElementHeader:
		return &HeaderProps{}
	case ElementImage:
		return &ImageProps{}
	case ElementFooter:
		return &FooterProps{}
	case ElementDocumentHeader:
		return &DocumentHeaderProps{}
	case ElementMedicalHistory, ElementPatientName, ElementPatientEmail, ElementPatientPhone,
		ElementPatientAddress, ElementPatientAge, ElementPatientGender, ElementPatientBloodGroup:
		return &PatientFieldProps{}
	}
	return &UnknownProps{}
}

// Element is one configured field or decorative unit of a schema
type Element struct {
	ID         string            `json:"id"`
	Type       ElementType       `json:"type"`
	Label      string            `json:"label"`
	Name       string            `json:"name,omitempty"`
	Required   bool              `json:"required"`
	Properties Properties        `json:"properties"`
	Position   Position          `json:"position"`
	Prefill    *PrefillConfig    `json:"prefill,omitempty"`
	Validation *ValidationConfig `json:"validation,omitempty"`
}

// ReadOnly reports whether the element value is server-authoritative
func (e Element) ReadOnly() bool {
	return e.Prefill != nil && e.Prefill.Enabled && e.Prefill.Readonly
}

// Prefilled reports whether the element has an enabled prefill binding
func (e Element) Prefilled() bool {
	return e.Prefill != nil && e.Prefill.Enabled
}

// Choice returns the option properties of a dropdown or radio element
func (e Element) Choice() (*ChoiceProps, bool) {
	p, ok := e.Properties.(*ChoiceProps)
	return p, ok
}

// Number returns the numeric properties of a number element
func (e Element) Number() (*NumberProps, bool) {
	p, ok := e.Properties.(*NumberProps)
	return p, ok
}

// Calculated returns the calculation properties of a calculated element
func (e Element) Calculated() (*CalculatedProps, bool) {
	p, ok := e.Properties.(*CalculatedProps)
	return p, ok
}

type elementWire struct {
	ID         string            `json:"id"`
	Type       ElementType       `json:"type"`
	Label      string            `json:"label"`
	Name       string            `json:"name,omitempty"`
	Required   bool              `json:"required"`
	Properties json.RawMessage   `json:"properties,omitempty"`
	Position   Position          `json:"position"`
	Prefill    *PrefillConfig    `json:"prefill,omitempty"`
	Validation *ValidationConfig `json:"validation,omitempty"`
}

// UnmarshalJSON decodes properties into the variant selected by type
func (e *Element) UnmarshalJSON(data []byte) error {
	var w elementWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	props := PropertiesFor(w.Type)
	if u, ok := props.(*UnknownProps); ok {
		u.Raw = w.Properties
	} else if len(w.Properties) > 0 && string(w.Properties) != "null" {
		if err := json.Unmarshal(w.Properties, props); err != nil {
			return fmt.Errorf("element %q: invalid %s properties: %w", w.ID, w.Type, err)
		}
	}

	*e = Element{
		ID:         w.ID,
		Type:       w.Type,
		Label:      w.Label,
		Name:       w.Name,
		Required:   w.Required,
		Properties: props,
		Position:   w.Position,
		Prefill:    w.Prefill,
		Validation: w.Validation,
	}
	return nil
}

// MarshalJSON writes properties as a plain object
func (e Element) MarshalJSON() ([]byte, error) {
	w := elementWire{
		ID:         e.ID,
		Type:       e.Type,
		Label:      e.Label,
		Name:       e.Name,
		Required:   e.Required,
		Position:   e.Position,
		Prefill:    e.Prefill,
		Validation: e.Validation,
	}

	switch p := e.Properties.(type) {
	case nil:
		w.Properties = json.RawMessage("{}")
	case *UnknownProps:
		w.Properties = p.Raw
	default:
		raw, err := json.Marshal(p)
		if err != nil {
			return nil, err
		}
		w.Properties = raw
	}
	return json.Marshal(w)
}

// Clone returns a deep copy of e
func (e Element) Clone() Element {
	out := e
	if e.Prefill != nil {
		p := *e.Prefill
		out.Prefill = &p
	}
	if e.Validation != nil {
		v := *e.Validation
		v.MinLength = cloneInt(v.MinLength)
		v.MaxLength = cloneInt(v.MaxLength)
		out.Validation = &v
	}
	out.Properties = cloneProperties(e.Properties)
	return out
}

func cloneProperties(p Properties) Properties {
	switch v := p.(type) {
	case nil:
		return nil
	case *TextProps:
		c := *v
		return &c
	case *NumberProps:
		c := *v
		c.Min, c.Max, c.Step = cloneFloat(v.Min), cloneFloat(v.Max), cloneFloat(v.Step)
		return &c
	case *ParagraphProps:
		c := *v
		return &c
	case *ChoiceProps:
		c := ChoiceProps{Options: append([]string(nil), v.Options...)}
		return &c
	case *DateProps:
		c := *v
		return &c
	case *CalculatedProps:
		c := *v
		return &c
	case *DividerProps:
		c := *v
		return &c
	case *HeaderProps:
		c := *v
		return &c
	case *ImageProps:
		c := *v
		return &c
	case *FooterProps:
		c := *v
		return &c
	case *DocumentHeaderProps:
		c := *v
		return &c
	case *PatientFieldProps:
		c := *v
		return &c
	case *UnknownProps:
		return &UnknownProps{Raw: append(json.RawMessage(nil), v.Raw...)}
	}
	return p
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
