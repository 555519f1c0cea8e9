// Package history is the editor's undo/redo model: a serializable stack of
// schema snapshots advanced by commands.
package history

import (
	"errors"
	"fmt"

	"clinicdocs/internal/layout"
	"clinicdocs/internal/model"
)

// DefaultLimit is the number of undo steps kept when none is given
const DefaultLimit = 50

var (
	ErrNothingToUndo   = errors.New("nothing to undo")
	ErrNothingToRedo   = errors.New("nothing to redo")
	ErrElementNotFound = errors.New("element not found")
)

// Command transforms a schema. Apply must not modify its input.
type Command interface {
	Apply(s model.Schema) (model.Schema, error)
	Describe() string
}

// History holds past and future snapshots around the present schema. All
// operations return a new History and leave the receiver untouched.
type History struct {
	Past    []model.Schema `json:"past"`
	Present model.Schema   `json:"present"`
	Future  []model.Schema `json:"future"`
	Limit   int            `json:"limit"`
}

// New starts a history at s
func New(s model.Schema, limit int) History {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return History{Past: []model.Schema{}, Present: s.Clone(), Future: []model.Schema{}, Limit: limit}
}

// Apply runs cmd against the present schema. The previous present becomes
// undoable and the redo stack is cleared.
func (h History) Apply(cmd Command) (History, error) {
	next, err := cmd.Apply(h.Present.Clone())
	if err != nil {
		return h, fmt.Errorf("failed to %s: %w", cmd.Describe(), err)
	}

	past := append(copySnapshots(h.Past), h.Present)
	if limit := h.limitOrDefault(); len(past) > limit {
		past = past[len(past)-limit:]
	}
	return History{Past: past, Present: next, Future: []model.Schema{}, Limit: h.Limit}, nil
}

// Undo steps back one snapshot
func (h History) Undo() (History, error) {
	if len(h.Past) == 0 {
		return h, ErrNothingToUndo
	}
	last := len(h.Past) - 1
	future := append([]model.Schema{h.Present}, h.Future...)
	return History{Past: copySnapshots(h.Past[:last]), Present: h.Past[last], Future: future, Limit: h.Limit}, nil
}

// Redo re-applies the most recently undone snapshot
func (h History) Redo() (History, error) {
	if len(h.Future) == 0 {
		return h, ErrNothingToRedo
	}
	past := append(copySnapshots(h.Past), h.Present)
	return History{Past: past, Present: h.Future[0], Future: copySnapshots(h.Future[1:]), Limit: h.Limit}, nil
}

func (h History) CanUndo() bool { return len(h.Past) > 0 }
func (h History) CanRedo() bool { return len(h.Future) > 0 }

func (h History) limitOrDefault() int {
	if h.Limit <= 0 {
		return DefaultLimit
	}
	return h.Limit
}

func copySnapshots(in []model.Schema) []model.Schema {
	out := make([]model.Schema, len(in))
	copy(out, in)
	return out
}

// AddElement inserts a default element of Type at Index (-1 appends)
type AddElement struct {
	Type  model.ElementType `json:"type"`
	Index int               `json:"index"`
}

func (c AddElement) Describe() string { return "add " + string(c.Type) }

func (c AddElement) Apply(s model.Schema) (model.Schema, error) {
	if !c.Type.Known() {
		return s, fmt.Errorf("unknown element type %q", c.Type)
	}
	el := model.NewDefaultElement(c.Type, s.Names())
	idx := c.Index
	if idx < 0 || idx > len(s.Elements) {
		idx = len(s.Elements)
	}
	s.Elements = append(s.Elements[:idx], append([]model.Element{el}, s.Elements[idx:]...)...)
	return layout.Reindex(s), nil
}

// RemoveElement deletes the element with ID
type RemoveElement struct {
	ID string `json:"id"`
}

func (c RemoveElement) Describe() string { return "remove element" }

func (c RemoveElement) Apply(s model.Schema) (model.Schema, error) {
	i := s.Index(c.ID)
	if i < 0 {
		return s, ErrElementNotFound
	}
	s.Elements = append(s.Elements[:i], s.Elements[i+1:]...)
	return layout.Reindex(s), nil
}

// UpdateElement replaces the element with the same ID
type UpdateElement struct {
	Element model.Element `json:"element"`
}

func (c UpdateElement) Describe() string { return "update element" }

func (c UpdateElement) Apply(s model.Schema) (model.Schema, error) {
	i := s.Index(c.Element.ID)
	if i < 0 {
		return s, ErrElementNotFound
	}
	el := c.Element.Clone()
	el.Position.Width = layout.NormalizeWidth(el.Position.Width)
	s.Elements[i] = el
	return layout.Reindex(s), nil
}

// MoveElement moves the element with ID to index To
type MoveElement struct {
	ID string `json:"id"`
	To int    `json:"to"`
}

func (c MoveElement) Describe() string { return "move element" }

func (c MoveElement) Apply(s model.Schema) (model.Schema, error) {
	from := s.Index(c.ID)
	if from < 0 {
		return s, ErrElementNotFound
	}
	to := c.To
	if to < 0 {
		to = 0
	}
	if to >= len(s.Elements) {
		to = len(s.Elements) - 1
	}
	el := s.Elements[from]
	rest := append(s.Elements[:from:from], s.Elements[from+1:]...)
	s.Elements = append(rest[:to:to], append([]model.Element{el}, rest[to:]...)...)
	return layout.Reindex(s), nil
}

// ResizeElement sets the width of the element with ID
type ResizeElement struct {
	ID    string `json:"id"`
	Width int    `json:"width"`
}

func (c ResizeElement) Describe() string { return "resize element" }

func (c ResizeElement) Apply(s model.Schema) (model.Schema, error) {
	i := s.Index(c.ID)
	if i < 0 {
		return s, ErrElementNotFound
	}
	s.Elements[i].Position.Width = layout.NormalizeWidth(c.Width)
	return layout.Reindex(s), nil
}

// ReplaceSchema swaps in a whole schema, e.g. after a legacy import
type ReplaceSchema struct {
	Schema model.Schema `json:"schema"`
}

func (c ReplaceSchema) Describe() string { return "replace schema" }

func (c ReplaceSchema) Apply(model.Schema) (model.Schema, error) {
	return layout.Reindex(c.Schema.Clone()), nil
}
