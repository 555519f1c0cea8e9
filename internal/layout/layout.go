// Package layout packs schema elements into rows of a 12-column grid. Every
// renderer (editor canvas, printed document) goes through PackRows so that
// row breaks are identical everywhere.
package layout

import "clinicdocs/internal/model"

// Row is a sequence of elements whose widths sum to at most 12
type Row struct {
	Elements []model.Element
	Width    int
}

// FullWidth reports whether the row is a single 12-wide element. Such rows
// render as a plain block without a column wrapper.
func (r Row) FullWidth() bool {
	return len(r.Elements) == 1 && r.Width == model.GridColumns
}

// NormalizeWidth clamps widths outside 1..12 to a full row. PackRows expects
// callers to have applied it.
func NormalizeWidth(w int) int {
	if w < 1 || w > model.GridColumns {
		return model.GridColumns
	}
	return w
}

// PackRows wraps elements left to right into rows. A row closes when the next
// element would overflow it or as soon as it is exactly full.
func PackRows(elements []model.Element) []Row {
	var (
		rows         []Row
		currentRow   []model.Element
		currentWidth int
	)

	closeRow := func() {
		if len(currentRow) > 0 {
			rows = append(rows, Row{Elements: currentRow, Width: currentWidth})
		}
		currentRow = nil
		currentWidth = 0
	}

	for _, el := range elements {
		w := el.Position.Width
		if currentWidth+w > model.GridColumns {
			closeRow()
		}
		currentRow = append(currentRow, el)
		currentWidth += w

		if currentWidth == model.GridColumns {
			closeRow()
		}
	}
	closeRow()

	return rows
}

// Normalize returns a copy of elements with every width clamped
func Normalize(elements []model.Element) []model.Element {
	out := make([]model.Element, len(elements))
	for i, el := range elements {
		el.Position.Width = NormalizeWidth(el.Position.Width)
		out[i] = el
	}
	return out
}

// Reindex rewrites the advisory row/col hints from the packed layout
func Reindex(s model.Schema) model.Schema {
	out := s.Clone()
	out.Elements = Normalize(out.Elements)
	idx := 0
	for r, row := range PackRows(out.Elements) {
		col := 0
		for range row.Elements {
			out.Elements[idx].Position.Row = r
			out.Elements[idx].Position.Col = col
			col += out.Elements[idx].Position.Width
			idx++
		}
	}
	return out
}
