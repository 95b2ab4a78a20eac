package bridge

import (
	"fmt"
	"maps"
	"slices"

	"github.com/dshills/gridline/internal/rpc"
)

// Notification names sent by the editor.
const (
	MethodRedraw               = "redraw"
	MethodSettingChanged       = "setting_changed"
	MethodRegisterRightClick   = "gridline.reg_right_click"
	MethodUnregisterRightClick = "gridline.unreg_right_click"
)

// Notification is an inbound editor notification decoded at the RPC
// boundary. The set of implementations is closed.
type Notification interface {
	Method() string
	notification()
}

// RedrawEvent is one event of a redraw batch: its name and every argument
// tuple the editor grouped under it.
type RedrawEvent struct {
	Name  string
	Calls [][]any
}

// RedrawNotification carries an ordered batch of redraw events.
type RedrawNotification struct {
	Events []RedrawEvent
}

// SettingChange is a single key/value update for a frontend setting.
type SettingChange struct {
	Key   string
	Value any
}

// SettingChangedNotification reports frontend settings changed in the editor.
type SettingChangedNotification struct {
	Changes []SettingChange
}

// RegisterRightClickNotification asks for shell context-menu entries.
type RegisterRightClickNotification struct{}

// UnregisterRightClickNotification asks to remove shell context-menu entries.
type UnregisterRightClickNotification struct{}

// UnrecognizedNotification is any notification without a handler.
type UnrecognizedNotification struct {
	Name string
	Args []any
}

func (RedrawNotification) Method() string               { return MethodRedraw }
func (SettingChangedNotification) Method() string       { return MethodSettingChanged }
func (RegisterRightClickNotification) Method() string   { return MethodRegisterRightClick }
func (UnregisterRightClickNotification) Method() string { return MethodUnregisterRightClick }
func (n UnrecognizedNotification) Method() string       { return n.Name }

func (RedrawNotification) notification()               {}
func (SettingChangedNotification) notification()       {}
func (RegisterRightClickNotification) notification()   {}
func (UnregisterRightClickNotification) notification() {}
func (UnrecognizedNotification) notification()         {}

// DecodeNotification converts a raw notification into its typed form.
// Unknown names decode to UnrecognizedNotification without error.
func DecodeNotification(method string, args []any) (Notification, error) {
	switch method {
	case MethodRedraw:
		return decodeRedraw(args)
	case MethodSettingChanged:
		return decodeSettingChanged(args)
	case MethodRegisterRightClick:
		return RegisterRightClickNotification{}, nil
	case MethodUnregisterRightClick:
		return UnregisterRightClickNotification{}, nil
	default:
		return UnrecognizedNotification{Name: method, Args: args}, nil
	}
}

// decodeRedraw decodes [[name, args...], [name, args...], ...].
func decodeRedraw(args []any) (RedrawNotification, error) {
	n := RedrawNotification{Events: make([]RedrawEvent, 0, len(args))}
	for i, raw := range args {
		group, err := rpc.ToSlice(raw)
		if err != nil || len(group) == 0 {
			return RedrawNotification{}, fmt.Errorf("%w: redraw event %d is not a non-empty array", ErrMalformedNotification, i)
		}
		name, err := rpc.ToString(group[0])
		if err != nil {
			return RedrawNotification{}, fmt.Errorf("%w: redraw event %d name: %v", ErrMalformedNotification, i, err)
		}

		ev := RedrawEvent{Name: name, Calls: make([][]any, 0, len(group)-1)}
		for j, c := range group[1:] {
			call, err := rpc.ToSlice(c)
			if err != nil {
				return RedrawNotification{}, fmt.Errorf("%w: %s call %d: %v", ErrMalformedNotification, name, j, err)
			}
			ev.Calls = append(ev.Calls, call)
		}
		n.Events = append(n.Events, ev)
	}
	return n, nil
}

// decodeSettingChanged accepts either [key, value] or [{key: value, ...}].
func decodeSettingChanged(args []any) (SettingChangedNotification, error) {
	if len(args) == 2 {
		if key, err := rpc.ToString(args[0]); err == nil {
			return SettingChangedNotification{Changes: []SettingChange{{Key: key, Value: args[1]}}}, nil
		}
	}
	if len(args) == 1 {
		m, err := rpc.ToMap(args[0])
		if err == nil && m != nil {
			n := SettingChangedNotification{Changes: make([]SettingChange, 0, len(m))}
			for _, k := range slices.Sorted(maps.Keys(m)) {
				n.Changes = append(n.Changes, SettingChange{Key: k, Value: m[k]})
			}
			return n, nil
		}
	}
	return SettingChangedNotification{}, fmt.Errorf("%w: setting_changed expects [key, value] or [map], got %d args", ErrMalformedNotification, len(args))
}
