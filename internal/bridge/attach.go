package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/dshills/gridline/internal/logging"
	"github.com/dshills/gridline/internal/rpc"
)

// VarPrefix prefixes every editor global variable gridline owns.
const VarPrefix = "gridline_"

// SettingsSource is the frontend settings registry as seen by Attach.
type SettingsSource interface {
	// Keys returns the keys of every setting mirrored into the editor.
	Keys() []string
	// Value returns the current value of key.
	Value(key string) (any, bool)
	// HandleChanged applies a value reported by the editor.
	HandleChanged(key string, value any) error
}

// AttachOptions configures Attach.
type AttachOptions struct {
	// Width and Height are the initial grid size in cells.
	Width  int
	Height int

	// Settings, when set, are mirrored into g:gridline_<key> variables and
	// watched for changes.
	Settings SettingsSource

	Log *logging.Logger
}

// Attach registers gridline as the editor's UI. It records the RPC channel
// id, installs setting watchers and shell integration commands, and finally
// attaches with ext_linegrid and ext_multigrid enabled. It returns the
// channel id.
func Attach(ctx context.Context, api Caller, opts AttachOptions) (int, error) {
	log := opts.Log
	if log == nil {
		log = logging.Discard()
	}

	channel, err := channelID(ctx, api)
	if err != nil {
		return 0, err
	}
	log.Debug("attached on channel %d", channel)

	if _, err := api.Call(ctx, "nvim_set_var", "gridline", true); err != nil {
		return 0, fmt.Errorf("set g:gridline: %w", err)
	}

	if opts.Settings != nil {
		if err := watchSettings(ctx, api, channel, opts.Settings, log); err != nil {
			return 0, err
		}
	}

	for _, cmd := range shellCommands(channel) {
		if _, err := api.Call(ctx, "nvim_command", cmd); err != nil {
			return 0, fmt.Errorf("define shell integration command: %w", err)
		}
	}

	uiOpts := map[string]any{
		"rgb":           true,
		"ext_linegrid":  true,
		"ext_multigrid": true,
	}
	if _, err := api.Call(ctx, "nvim_ui_attach", opts.Width, opts.Height, uiOpts); err != nil {
		return 0, fmt.Errorf("nvim_ui_attach: %w", err)
	}
	return channel, nil
}

func channelID(ctx context.Context, api Caller) (int, error) {
	res, err := api.Call(ctx, "nvim_get_api_info")
	if err != nil {
		return 0, fmt.Errorf("nvim_get_api_info: %w", err)
	}
	info, err := rpc.ToSlice(res)
	if err != nil || len(info) == 0 {
		return 0, fmt.Errorf("nvim_get_api_info: unexpected result %v", res)
	}
	return rpc.ToInt(info[0])
}

// watchSettings syncs each setting with its editor variable: a value the user
// already set in the editor wins, otherwise the frontend value is published.
// A dict watcher then reports later changes as setting_changed.
func watchSettings(ctx context.Context, api Caller, channel int, src SettingsSource, log *logging.Logger) error {
	for _, key := range src.Keys() {
		name := VarPrefix + key

		existing, err := api.Call(ctx, "nvim_get_var", name)
		var callErr *rpc.CallError
		switch {
		case err == nil:
			if herr := src.HandleChanged(key, existing); herr != nil {
				log.Warn("ignoring g:%s: %v", name, herr)
			}
		case errors.As(err, &callErr):
			if v, ok := src.Value(key); ok {
				if _, err := api.Call(ctx, "nvim_set_var", name, v); err != nil {
					return fmt.Errorf("set g:%s: %w", name, err)
				}
			}
		default:
			return fmt.Errorf("get g:%s: %w", name, err)
		}

		if _, err := api.Call(ctx, "nvim_command", watcherCommand(channel, key)); err != nil {
			return fmt.Errorf("watch g:%s: %w", name, err)
		}
	}
	return nil
}

func watcherCommand(channel int, key string) string {
	return fmt.Sprintf(
		"call dictwatcheradd(g:, '%s%s', {d, k, z -> rpcnotify(%d, '%s', '%s', get(z, 'new', v:null))})",
		VarPrefix, key, channel, MethodSettingChanged, key,
	)
}

func shellCommands(channel int) []string {
	return []string{
		fmt.Sprintf("command! GridlineRegisterRightClick call rpcnotify(%d, '%s')", channel, MethodRegisterRightClick),
		fmt.Sprintf("command! GridlineUnregisterRightClick call rpcnotify(%d, '%s')", channel, MethodUnregisterRightClick),
	}
}
