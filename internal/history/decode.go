package history

import (
	"encoding/json"
	"fmt"
)

// Editor operation names as sent by clients
const (
	OpAdd     = "add"
	OpRemove  = "remove"
	OpUpdate  = "update"
	OpMove    = "move"
	OpResize  = "resize"
	OpReplace = "replace"
)

// Decode builds the command named by op from its JSON arguments
func Decode(op string, args json.RawMessage) (Command, error) {
	var cmd Command
	switch op {
	case OpAdd:
		c := AddElement{Index: -1}
		if err := unmarshalArgs(args, &c); err != nil {
			return nil, err
		}
		cmd = c
	case OpRemove:
		var c RemoveElement
		if err := unmarshalArgs(args, &c); err != nil {
			return nil, err
		}
		cmd = c
	case OpUpdate:
		var c UpdateElement
		if err := unmarshalArgs(args, &c); err != nil {
			return nil, err
		}
		cmd = c
	case OpMove:
		var c MoveElement
		if err := unmarshalArgs(args, &c); err != nil {
			return nil, err
		}
		cmd = c
	case OpResize:
		var c ResizeElement
		if err := unmarshalArgs(args, &c); err != nil {
			return nil, err
		}
		cmd = c
	case OpReplace:
		var c ReplaceSchema
		if err := unmarshalArgs(args, &c); err != nil {
			return nil, err
		}
		cmd = c
	default:
		return nil, fmt.Errorf("unknown edit operation %q", op)
	}
	return cmd, nil
}

func unmarshalArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("failed to decode edit arguments: %w", err)
	}
	return nil
}
