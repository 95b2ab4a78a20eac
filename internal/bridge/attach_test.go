package bridge

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/dshills/gridline/internal/rpc"
)

type fakeSettings struct {
	values  map[string]any
	changed map[string]any
}

func (f *fakeSettings) Keys() []string { return []string{"refresh_rate", "no_idle"} }

func (f *fakeSettings) Value(key string) (any, bool) {
	v, ok := f.values[key]
	return v, ok
}

func (f *fakeSettings) HandleChanged(key string, value any) error {
	f.changed[key] = value
	return nil
}

func TestAttach(t *testing.T) {
	api := newFakeAPI()
	api.results["nvim_get_api_info"] = []any{int64(3), map[string]any{}}
	api.errs["nvim_get_var"] = &rpc.CallError{Value: []any{int64(1), "Key not found"}}

	settings := &fakeSettings{
		values:  map[string]any{"refresh_rate": 60, "no_idle": false},
		changed: map[string]any{},
	}

	channel, err := Attach(context.Background(), api, AttachOptions{
		Width:    100,
		Height:   50,
		Settings: settings,
	})
	if err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	if channel != 3 {
		t.Errorf("channel = %d, expected 3", channel)
	}

	calls := api.recorded()
	if calls[0].Method != "nvim_get_api_info" {
		t.Errorf("first call = %s", calls[0].Method)
	}

	last := calls[len(calls)-1]
	wantAttach := apiCall{"nvim_ui_attach", []any{100, 50, map[string]any{
		"rgb": true, "ext_linegrid": true, "ext_multigrid": true,
	}}}
	if !reflect.DeepEqual(last, wantAttach) {
		t.Errorf("last call = %#v", last)
	}

	var setVars []string
	var watchers int
	for _, c := range calls {
		switch c.Method {
		case "nvim_set_var":
			setVars = append(setVars, c.Args[0].(string))
		case "nvim_command":
			if cmd := c.Args[0].(string); strings.Contains(cmd, "dictwatcheradd") {
				watchers++
				if !strings.Contains(cmd, "rpcnotify(3, 'setting_changed'") {
					t.Errorf("watcher does not notify channel 3: %s", cmd)
				}
			}
		}
	}
	wantVars := []string{"gridline", "gridline_refresh_rate", "gridline_no_idle"}
	if !reflect.DeepEqual(setVars, wantVars) {
		t.Errorf("set vars = %v, expected %v", setVars, wantVars)
	}
	if watchers != 2 {
		t.Errorf("watchers = %d, expected 2", watchers)
	}
	if len(settings.changed) != 0 {
		t.Errorf("no editor values exist, got %v", settings.changed)
	}
}

func TestAttach_EditorValueWins(t *testing.T) {
	api := newFakeAPI()
	api.results["nvim_get_api_info"] = []any{int64(1), nil}
	api.results["nvim_get_var"] = int64(30)

	settings := &fakeSettings{values: map[string]any{}, changed: map[string]any{}}
	if _, err := Attach(context.Background(), api, AttachOptions{Width: 80, Height: 24, Settings: settings}); err != nil {
		t.Fatalf("Attach() error = %v", err)
	}

	if settings.changed["refresh_rate"] != int64(30) {
		t.Errorf("changed = %v", settings.changed)
	}
	for _, c := range api.recorded() {
		if c.Method == "nvim_set_var" && c.Args[0] != "gridline" {
			t.Errorf("should not overwrite editor value: %v", c.Args)
		}
	}
}

func TestAttach_BadAPIInfo(t *testing.T) {
	api := newFakeAPI()
	api.results["nvim_get_api_info"] = "nonsense"

	if _, err := Attach(context.Background(), api, AttachOptions{}); err == nil {
		t.Error("Attach() should fail on malformed api info")
	}
}
