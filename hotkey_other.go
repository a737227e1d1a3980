//go:build !windows

package main

// RegisterRecordingHotkey is only available on Windows
func (a *App) RegisterRecordingHotkey() {
	a.log.Debug("Global hotkeys are not supported on this platform")
}

// ToggleWindow is only available on Windows
func (a *App) ToggleWindow() {}
