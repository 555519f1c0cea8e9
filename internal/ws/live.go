package ws

import (
	"sync"
	"time"

	"clinicdocs/internal/calc"
	"clinicdocs/internal/history"
	"clinicdocs/internal/model"
	"clinicdocs/internal/prefill"
)

// DefaultDebounce is the quiet period before a live recomputation runs
const DefaultDebounce = 100 * time.Millisecond

// Debouncer runs the last triggered function once no trigger has arrived for
// the delay.
type Debouncer struct {
	mu    sync.Mutex
	delay time.Duration
	timer *time.Timer
}

func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, fn)
}

func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// LiveSession recomputes calculated fields while a form is being filled or
// edited. Results of a superseded update are discarded, never emitted.
// Client values never replace the seeded value of a read-only field.
type LiveSession struct {
	mu       sync.Mutex
	schema   model.Schema
	seed     model.FormData
	values   model.FormData
	history  history.History
	gen      uint64
	lastSeq  int64
	calc     *calc.Calculator
	debounce *Debouncer
	emit     func(map[string]interface{})
}

func NewLiveSession(calculator *calc.Calculator, delay time.Duration, emit func(map[string]interface{})) *LiveSession {
	if calculator == nil {
		calculator = calc.New(nil)
	}
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &LiveSession{
		schema:   model.NewSchema(),
		seed:     model.FormData{},
		values:   model.FormData{},
		history:  history.New(model.NewSchema(), 0),
		calc:     calculator,
		debounce: NewDebouncer(delay),
		emit:     emit,
	}
}

// SetSchema switches the form being filled and recomputes
func (s *LiveSession) SetSchema(schema model.Schema) {
	s.Open(schema, nil)
}

// Open switches the form being filled. seed holds the server prefill values;
// it restarts the edit history at schema.
func (s *LiveSession) Open(schema model.Schema, seed model.FormData) {
	s.mu.Lock()
	s.schema = schema.Clone()
	s.seed = seed.Clone()
	s.history = history.New(schema, 0)
	s.values = prefill.Merge(s.schema, s.seed, s.values)
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	s.debounce.Trigger(func() { s.compute(gen) })
}

// EditorState is the schema after an edit, undo or redo
type EditorState struct {
	Schema  model.Schema `json:"schema"`
	CanUndo bool         `json:"canUndo"`
	CanRedo bool         `json:"canRedo"`
}

// Edit applies cmd to the open schema
func (s *LiveSession) Edit(cmd history.Command) (EditorState, error) {
	return s.step(func(h history.History) (history.History, error) { return h.Apply(cmd) })
}

func (s *LiveSession) Undo() (EditorState, error) {
	return s.step(history.History.Undo)
}

func (s *LiveSession) Redo() (EditorState, error) {
	return s.step(history.History.Redo)
}

func (s *LiveSession) step(fn func(history.History) (history.History, error)) (EditorState, error) {
	s.mu.Lock()
	next, err := fn(s.history)
	if err != nil {
		state := editorState(s.history)
		s.mu.Unlock()
		return state, err
	}
	s.history = next
	s.schema = next.Present.Clone()
	s.values = prefill.Merge(s.schema, s.seed, s.values)
	s.gen++
	gen := s.gen
	state := editorState(next)
	s.mu.Unlock()

	s.debounce.Trigger(func() { s.compute(gen) })
	return state, nil
}

func editorState(h history.History) EditorState {
	return EditorState{Schema: h.Present.Clone(), CanUndo: h.CanUndo(), CanRedo: h.CanRedo()}
}

// Update replaces the current values. A positive seq orders updates from
// the client; updates older than the last seen one are ignored.
func (s *LiveSession) Update(values model.FormData, seq int64) {
	s.mu.Lock()
	if seq > 0 && seq <= s.lastSeq {
		s.mu.Unlock()
		return
	}
	if seq > 0 {
		s.lastSeq = seq
	}
	s.values = prefill.Merge(s.schema, s.seed, values)
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	s.debounce.Trigger(func() { s.compute(gen) })
}

func (s *LiveSession) Close() {
	s.debounce.Stop()
}

func (s *LiveSession) compute(gen uint64) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	schema, values, seq := s.schema, s.values, s.lastSeq
	s.mu.Unlock()

	results := s.calc.ComputeAll(schema, values)

	s.mu.Lock()
	current := s.gen == gen
	s.mu.Unlock()
	if !current {
		return
	}

	s.emit(map[string]interface{}{
		"type":    "computed",
		"seq":     seq,
		"results": results,
	})
}
