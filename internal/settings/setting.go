package settings

import (
	"fmt"

	"github.com/dshills/gridline/internal/rpc"
)

// Type is a setting's value type.
type Type uint8

const (
	TypeBool Type = iota
	TypeInt
	TypeFloat
	TypeString
)

// String returns the type name.
func (t Type) String() string {
	switch t {
	case TypeBool:
		return "bool"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeString:
		return "string"
	default:
		return "unknown"
	}
}

// Setting defines a frontend setting.
type Setting struct {
	// Key is the setting name. The editor sees it as g:gridline_<Key>.
	Key string

	Type    Type
	Default any

	Description string

	// Minimum and Maximum bound numeric settings when non-nil.
	Minimum *float64
	Maximum *float64
}

// Coerce converts value to the setting's type and validates it. Values
// arrive from TOML, YAML, Lua and msgpack with different numeric types, so
// integers, floats, and Vimscript-style booleans are normalized here.
func (s *Setting) Coerce(value any) (any, error) {
	var (
		out any
		err error
	)
	switch s.Type {
	case TypeBool:
		out, err = rpc.ToBool(value)
	case TypeInt:
		var n int
		n, err = rpc.ToInt(value)
		out = n
	case TypeFloat:
		out, err = rpc.ToFloat(value)
	case TypeString:
		out, err = rpc.ToString(value)
	default:
		err = fmt.Errorf("unknown type %d", s.Type)
	}
	if err != nil {
		return nil, &ValidationError{Key: s.Key, Value: value, Reason: err.Error()}
	}
	if err := s.checkRange(out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Setting) checkRange(value any) error {
	var f float64
	switch v := value.(type) {
	case int:
		f = float64(v)
	case float64:
		f = v
	default:
		return nil
	}
	if s.Minimum != nil && f < *s.Minimum {
		return &ValidationError{Key: s.Key, Value: value, Reason: fmt.Sprintf("must be >= %v", *s.Minimum)}
	}
	if s.Maximum != nil && f > *s.Maximum {
		return &ValidationError{Key: s.Key, Value: value, Reason: fmt.Sprintf("must be <= %v", *s.Maximum)}
	}
	return nil
}

func bound(f float64) *float64 { return &f }

// Built-in setting keys.
const (
	KeyRefreshRate         = "refresh_rate"
	KeyNoIdle              = "no_idle"
	KeyFullscreen          = "fullscreen"
	KeyHideMouseWhenTyping = "hide_mouse_when_typing"
)

// Defaults returns the built-in window settings.
func Defaults() []Setting {
	return []Setting{
		{
			Key:         KeyRefreshRate,
			Type:        TypeInt,
			Default:     60,
			Description: "Target frames per second",
			Minimum:     bound(1),
			Maximum:     bound(1000),
		},
		{
			Key:         KeyNoIdle,
			Type:        TypeBool,
			Default:     false,
			Description: "Draw every frame even when nothing changed",
		},
		{
			Key:         KeyFullscreen,
			Type:        TypeBool,
			Default:     false,
			Description: "Fill the whole display",
		},
		{
			Key:         KeyHideMouseWhenTyping,
			Type:        TypeBool,
			Default:     false,
			Description: "Hide the pointer while keys are pressed",
		},
	}
}
