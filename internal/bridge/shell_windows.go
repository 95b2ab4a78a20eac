//go:build windows

package bridge

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/windows/registry"
)

const (
	fileShellKey      = `Software\Classes\*\shell\gridline`
	directoryShellKey = `Software\Classes\Directory\Background\shell\gridline`
)

// RegisterRightClick adds "Open with gridline" entries to the Explorer
// context menu for files and directory backgrounds.
func RegisterRightClick() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}

	if err := UnregisterRightClick(); err != nil {
		return err
	}
	if err := writeShellKey(directoryShellKey, "Open gridline here", exe, `"%V"`); err != nil {
		return err
	}
	return writeShellKey(fileShellKey, "Open with gridline", exe, `"%1"`)
}

// UnregisterRightClick removes the context menu entries.
func UnregisterRightClick() error {
	for _, key := range []string{fileShellKey, directoryShellKey} {
		for _, k := range []string{key + `\command`, key} {
			err := registry.DeleteKey(registry.CURRENT_USER, k)
			if err != nil && !errors.Is(err, registry.ErrNotExist) {
				return fmt.Errorf("delete %s: %w", k, err)
			}
		}
	}
	return nil
}

func writeShellKey(path, label, exe, arg string) error {
	k, _, err := registry.CreateKey(registry.CURRENT_USER, path, registry.ALL_ACCESS)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer k.Close()

	if err := k.SetStringValue("", label); err != nil {
		return fmt.Errorf("set %s label: %w", path, err)
	}
	if err := k.SetStringValue("Icon", exe); err != nil {
		return fmt.Errorf("set %s icon: %w", path, err)
	}

	cmd, _, err := registry.CreateKey(k, "command", registry.ALL_ACCESS)
	if err != nil {
		return fmt.Errorf("create %s\\command: %w", path, err)
	}
	defer cmd.Close()

	return cmd.SetStringValue("", fmt.Sprintf(`"%s" %s`, exe, arg))
}
