package ws

import (
	"sync"
	"testing"
	"time"

	"clinicdocs/internal/calc"
	"clinicdocs/internal/history"
	"clinicdocs/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recorder struct {
	mu     sync.Mutex
	frames []map[string]interface{}
}

func (r *recorder) emit(frame map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, frame)
}

func (r *recorder) snapshot() []map[string]interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]map[string]interface{}(nil), r.frames...)
}

func bmiSchema() model.Schema {
	return model.Schema{Version: 2, Elements: []model.Element{
		{ID: "w", Type: model.ElementNumber, Label: "Weight", Name: "weight",
			Properties: &model.NumberProps{}, Position: model.Position{Width: 6}},
		{ID: "h", Type: model.ElementNumber, Label: "Height", Name: "height",
			Properties: &model.NumberProps{}, Position: model.Position{Width: 6}},
		{ID: "b", Type: model.ElementCalculated, Label: "BMI", Name: "bmi",
			Properties: &model.CalculatedProps{Calculation: model.CalcBMI}, Position: model.Position{Row: 1, Width: 12}},
	}}
}

func fixedCalc() *calc.Calculator {
	return calc.New(func() time.Time { return time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC) })
}

func TestLiveSession_DebouncesRapidUpdates(t *testing.T) {
	rec := &recorder{}
	s := NewLiveSession(fixedCalc(), 30*time.Millisecond, rec.emit)
	defer s.Close()

	s.SetSchema(bmiSchema())
	s.Update(model.FormData{"weight": 50.0, "height": 160.0}, 1)
	s.Update(model.FormData{"weight": 60.0, "height": 160.0}, 2)
	s.Update(model.FormData{"weight": 70.0, "height": 175.0}, 3)

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)

	frames := rec.snapshot()
	require.Len(t, frames, 1)
	assert.Equal(t, "computed", frames[0]["type"])
	assert.Equal(t, int64(3), frames[0]["seq"])

	results := frames[0]["results"].(map[string]calc.Result)
	assert.Equal(t, "22.9", results["bmi"].String())
}

func TestLiveSession_IgnoresStaleSeq(t *testing.T) {
	rec := &recorder{}
	s := NewLiveSession(fixedCalc(), 20*time.Millisecond, rec.emit)
	defer s.Close()

	s.SetSchema(bmiSchema())
	s.Update(model.FormData{"weight": 70.0, "height": 175.0}, 5)
	s.Update(model.FormData{"weight": 50.0, "height": 160.0}, 4)

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 5*time.Millisecond)

	frames := rec.snapshot()
	assert.Equal(t, int64(5), frames[0]["seq"])
	results := frames[0]["results"].(map[string]calc.Result)
	assert.Equal(t, "22.9", results["bmi"].String())
}

func TestLiveSession_CloseCancelsPending(t *testing.T) {
	rec := &recorder{}
	s := NewLiveSession(fixedCalc(), 20*time.Millisecond, rec.emit)

	s.SetSchema(bmiSchema())
	s.Close()

	time.Sleep(60 * time.Millisecond)
	assert.Empty(t, rec.snapshot())
}

func ageSchema() model.Schema {
	return model.Schema{Version: 2, Elements: []model.Element{
		{ID: "a", Type: model.ElementNumber, Label: "Age", Name: "age",
			Properties: &model.NumberProps{}, Position: model.Position{Width: 6},
			Prefill: &model.PrefillConfig{Enabled: true, Source: model.SourcePatient, Field: "patient_age", Readonly: true}},
		{ID: "d", Type: model.ElementCalculated, Label: "Double", Name: "double",
			Properties: &model.CalculatedProps{Calculation: model.CalcCustom, Formula: "{age} * 2"}, Position: model.Position{Width: 6}},
	}}
}

func lastResult(rec *recorder, name string) func() string {
	return func() string {
		frames := rec.snapshot()
		if len(frames) == 0 {
			return ""
		}
		results := frames[len(frames)-1]["results"].(map[string]calc.Result)
		return results[name].String()
	}
}

func TestLiveSession_ReadOnlyEditsAreIgnored(t *testing.T) {
	rec := &recorder{}
	s := NewLiveSession(fixedCalc(), 10*time.Millisecond, rec.emit)
	defer s.Close()

	s.Open(ageSchema(), model.FormData{"age": 34.0})
	s.Update(model.FormData{"age": 99.0}, 1)

	last := lastResult(rec, "double")
	require.Eventually(t, func() bool { return last() == "68" }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, "68", last())
}

func TestLiveSession_EditUndoRedo(t *testing.T) {
	rec := &recorder{}
	s := NewLiveSession(fixedCalc(), 10*time.Millisecond, rec.emit)
	defer s.Close()

	s.SetSchema(bmiSchema())
	_, err := s.Undo()
	assert.ErrorIs(t, err, history.ErrNothingToUndo)

	state, err := s.Edit(history.RemoveElement{ID: "b"})
	require.NoError(t, err)
	assert.Len(t, state.Schema.Elements, 2)
	assert.True(t, state.CanUndo)

	state, err = s.Undo()
	require.NoError(t, err)
	assert.Len(t, state.Schema.Elements, 3)
	assert.True(t, state.CanRedo)

	s.Update(model.FormData{"weight": 70.0, "height": 175.0}, 1)
	last := lastResult(rec, "bmi")
	require.Eventually(t, func() bool { return last() == "22.9" }, time.Second, 5*time.Millisecond)

	state, err = s.Redo()
	require.NoError(t, err)
	assert.Len(t, state.Schema.Elements, 2)
	assert.False(t, state.CanRedo)
}

func TestConn_SendAfterUnregister(t *testing.T) {
	hub := NewHub(fixedCalc(), zap.NewNop())
	conn := NewConn(nil, hub, "d1")
	hub.Register(conn)
	hub.Subscribe(conn, "template:t1")

	hub.unregister(conn)
	hub.unregister(conn)

	assert.NotPanics(t, func() {
		conn.sendAck("pong", "")
		conn.live.SetSchema(bmiSchema())
		time.Sleep(2 * DefaultDebounce)
	})
	select {
	case <-conn.done:
	default:
		t.Fatal("done is not closed")
	}
}
