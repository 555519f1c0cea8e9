package history

import (
	"encoding/json"
	"testing"

	"clinicdocs/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	cases := []struct {
		op   string
		args string
		want Command
	}{
		{OpAdd, `{"type":"number"}`, AddElement{Type: model.ElementNumber, Index: -1}},
		{OpAdd, `{"type":"text","index":0}`, AddElement{Type: model.ElementText, Index: 0}},
		{OpRemove, `{"id":"a"}`, RemoveElement{ID: "a"}},
		{OpMove, `{"id":"a","to":2}`, MoveElement{ID: "a", To: 2}},
		{OpResize, `{"id":"a","width":6}`, ResizeElement{ID: "a", Width: 6}},
	}

	for _, tc := range cases {
		t.Run(tc.op+tc.args, func(t *testing.T) {
			cmd, err := Decode(tc.op, json.RawMessage(tc.args))
			require.NoError(t, err)
			assert.Equal(t, tc.want, cmd)
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode("rename", nil)
	assert.Error(t, err)

	_, err = Decode(OpMove, json.RawMessage(`{"id":`))
	assert.Error(t, err)
}

func TestDecode_AppliesToHistory(t *testing.T) {
	cmd, err := Decode(OpAdd, json.RawMessage(`{"type":"date"}`))
	require.NoError(t, err)

	h, err := New(model.NewSchema(), 0).Apply(cmd)
	require.NoError(t, err)
	require.Len(t, h.Present.Elements, 1)
	assert.Equal(t, model.ElementDate, h.Present.Elements[0].Type)
}
