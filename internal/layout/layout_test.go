package layout

import (
	"fmt"
	"math/rand"
	"testing"

	"clinicdocs/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func el(id string, width int) model.Element {
	return model.Element{ID: id, Type: model.ElementText, Name: id, Position: model.Position{Width: width}}
}

func ids(rows []Row) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		for _, e := range r.Elements {
			out[i] = append(out[i], e.ID)
		}
	}
	return out
}

func TestPackRows_Empty(t *testing.T) {
	assert.Empty(t, PackRows(nil))
}

func TestPackRows_WrapsOnOverflow(t *testing.T) {
	rows := PackRows([]model.Element{el("a", 6), el("b", 4), el("c", 4), el("d", 8)})

	assert.Equal(t, [][]string{{"a", "b"}, {"c", "d"}}, ids(rows))
	assert.Equal(t, 10, rows[0].Width)
	assert.Equal(t, 12, rows[1].Width)
}

func TestPackRows_FullRowClosesImmediately(t *testing.T) {
	rows := PackRows([]model.Element{el("a", 6), el("b", 6), el("c", 3)})

	assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, ids(rows))
}

func TestPackRows_TrailingPartialRow(t *testing.T) {
	rows := PackRows([]model.Element{el("a", 12), el("b", 5)})

	require.Len(t, rows, 2)
	assert.True(t, rows[0].FullWidth())
	assert.False(t, rows[1].FullWidth())
	assert.Equal(t, 5, rows[1].Width)
}

func TestPackRows_SingleNarrowElementIsNotFullWidth(t *testing.T) {
	rows := PackRows([]model.Element{el("a", 12), el("b", 4), el("c", 12)})

	assert.Equal(t, [][]string{{"a"}, {"b"}, {"c"}}, ids(rows))
	assert.True(t, rows[0].FullWidth())
	assert.False(t, rows[1].FullWidth())
	assert.True(t, rows[2].FullWidth())
}

func randomElements(r *rand.Rand, n int) []model.Element {
	out := make([]model.Element, n)
	for i := range out {
		out[i] = el(fmt.Sprintf("e%d", i), 1+r.Intn(12))
	}
	return out
}

func TestPackRows_Idempotent(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		elements := randomElements(r, r.Intn(30))
		assert.Equal(t, ids(PackRows(elements)), ids(PackRows(elements)))
	}
}

func TestPackRows_WidthConservation(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	for i := 0; i < 200; i++ {
		elements := randomElements(r, 1+r.Intn(30))
		rows := PackRows(elements)

		next := 0
		for ri, row := range rows {
			sum := 0
			for _, e := range row.Elements {
				sum += e.Position.Width
			}
			assert.Equal(t, sum, row.Width)
			assert.LessOrEqual(t, sum, model.GridColumns)

			next += len(row.Elements)
			if ri < len(rows)-1 && sum < model.GridColumns {
				assert.Greater(t, sum+elements[next].Position.Width, model.GridColumns,
					"row %d could have taken the next element", ri)
			}
		}
		assert.Equal(t, len(elements), next)
	}
}

func TestNormalizeWidth(t *testing.T) {
	assert.Equal(t, 12, NormalizeWidth(0))
	assert.Equal(t, 12, NormalizeWidth(13))
	assert.Equal(t, 12, NormalizeWidth(-3))
	assert.Equal(t, 7, NormalizeWidth(7))
}

func TestEditorGrid_FullWidthRowHasNoColumns(t *testing.T) {
	s := model.Schema{Version: 2, Elements: []model.Element{el("a", 12), el("b", 6), el("c", 6)}}

	grid := EditorGrid(s)
	require.Len(t, grid, 2)
	assert.True(t, grid[0].FullWidth)
	require.Len(t, grid[0].Cells, 1)
	assert.False(t, grid[1].FullWidth)
	assert.Equal(t, []int{6, 6}, []int{grid[1].Cells[0].Span, grid[1].Cells[1].Span})
}

func TestEditorGrid_ClampsInvalidWidths(t *testing.T) {
	s := model.Schema{Version: 2, Elements: []model.Element{el("a", 0), el("b", 20)}}

	grid := EditorGrid(s)
	require.Len(t, grid, 2)
	assert.True(t, grid[0].FullWidth)
	assert.True(t, grid[1].FullWidth)
}

func TestBuildPagePlan_HeadersFirstFootersLast(t *testing.T) {
	header := model.Element{ID: "h", Type: model.ElementDocumentHeader, Position: model.Position{Width: 4}}
	footer := model.Element{ID: "f", Type: model.ElementFooter, Position: model.Position{Width: 6}}
	s := model.Schema{Version: 2, Elements: []model.Element{
		el("a", 6), footer, el("b", 6), header, el("c", 12),
	}}

	plan := BuildPagePlan(s, model.FormData{"a": "x", "c": 3.0})

	require.Len(t, plan.Header, 1)
	assert.Equal(t, "h", plan.Header[0].ElementID)
	assert.Equal(t, 12, plan.Header[0].Span)
	require.Len(t, plan.Footer, 1)
	assert.Equal(t, "f", plan.Footer[0].ElementID)

	require.Len(t, plan.Rows, 2)
	assert.Equal(t, "x", plan.Rows[0].Cells[0].Value)
	assert.Equal(t, "3", plan.Rows[1].Cells[0].Value)
	assert.True(t, plan.Rows[1].FullWidth)
}

func TestEditorAndPageAgreeWithoutLetterheads(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	s := model.Schema{Version: 2, Elements: randomElements(r, 25)}

	editor := EditorGrid(s)
	page := BuildPagePlan(s, nil).Rows
	assert.Equal(t, editor, page)
}

func TestReindex(t *testing.T) {
	s := model.Schema{Version: 2, Elements: []model.Element{el("a", 6), el("b", 6), el("c", 4)}}

	out := Reindex(s)
	assert.Equal(t, model.Position{Row: 0, Col: 0, Width: 6}, out.Elements[0].Position)
	assert.Equal(t, model.Position{Row: 0, Col: 6, Width: 6}, out.Elements[1].Position)
	assert.Equal(t, model.Position{Row: 1, Col: 0, Width: 4}, out.Elements[2].Position)
}
