package layout

import "clinicdocs/internal/model"

// Cell is one element placed in a rendered row
type Cell struct {
	ElementID string            `json:"elementId"`
	Type      model.ElementType `json:"type"`
	Label     string            `json:"label,omitempty"`
	Name      string            `json:"name,omitempty"`
	Span      int               `json:"span"`
	Value     string            `json:"value,omitempty"`
}

// RenderRow is the row/column structure a renderer emits. FullWidth rows are
// drawn as a single block with no column wrapper.
type RenderRow struct {
	FullWidth bool   `json:"fullWidth"`
	Cells     []Cell `json:"cells"`
}

// PagePlan is the print order of a paginated document: letterheads, packed
// body rows, then footers.
type PagePlan struct {
	Header []Cell      `json:"header"`
	Rows   []RenderRow `json:"rows"`
	Footer []Cell      `json:"footer"`
}

// EditorGrid lays out every element of the schema in order
func EditorGrid(s model.Schema) []RenderRow {
	return renderRows(PackRows(Normalize(s.Elements)), nil)
}

// BuildPagePlan lays out a schema for print. documentHeader elements are
// pulled to the top and footer elements to the bottom, both in schema order
// and regardless of their position. values may be nil for a blank template.
func BuildPagePlan(s model.Schema, values model.FormData) PagePlan {
	plan := PagePlan{
		Header: []Cell{},
		Rows:   []RenderRow{},
		Footer: []Cell{},
	}

	body := make([]model.Element, 0, len(s.Elements))
	for _, el := range Normalize(s.Elements) {
		switch el.Type {
		case model.ElementDocumentHeader:
			plan.Header = append(plan.Header, newCell(el, model.GridColumns, values))
		case model.ElementFooter:
			plan.Footer = append(plan.Footer, newCell(el, model.GridColumns, values))
		default:
			body = append(body, el)
		}
	}

	plan.Rows = renderRows(PackRows(body), values)
	return plan
}

func renderRows(rows []Row, values model.FormData) []RenderRow {
	out := make([]RenderRow, 0, len(rows))
	for _, row := range rows {
		rr := RenderRow{
			FullWidth: row.FullWidth(),
			Cells:     make([]Cell, 0, len(row.Elements)),
		}
		for _, el := range row.Elements {
			rr.Cells = append(rr.Cells, newCell(el, el.Position.Width, values))
		}
		out = append(out, rr)
	}
	return out
}

func newCell(el model.Element, span int, values model.FormData) Cell {
	c := Cell{
		ElementID: el.ID,
		Type:      el.Type,
		Label:     el.Label,
		Name:      el.Name,
		Span:      span,
	}
	if values != nil && el.Name != "" {
		c.Value = model.Stringify(values[el.Name])
	}
	return c
}
