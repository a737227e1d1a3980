package main

import (
	"syscall"
	"unsafe"

	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

var (
	user32               = syscall.NewLazyDLL("user32.dll")
	procSetWindowsHookEx = user32.NewProc("SetWindowsHookExW")
	procCallNextHookEx   = user32.NewProc("CallNextHookEx")
	procGetMessage       = user32.NewProc("GetMessageW")
	procGetAsyncKeyState = user32.NewProc("GetAsyncKeyState")
)

const (
	WH_KEYBOARD_LL = 13
	WM_KEYDOWN     = 0x0100
	VK_O           = 0x4F
	VK_R           = 0x52
	VK_CONTROL     = 0x11
	VK_SHIFT       = 0x10
)

// KBDLLHOOKSTRUCT contains information about a low-level keyboard input event
type KBDLLHOOKSTRUCT struct {
	VkCode      uint32
	ScanCode    uint32
	Flags       uint32
	Time        uint32
	DwExtraInfo uintptr
}

type MSG struct {
	HWND    uintptr
	Message uint32
	WParam  uintptr
	LParam  uintptr
	Time    uint32
	Pt      struct{ X, Y int32 }
}

var appInstance *App
var keyboardHook uintptr

func isKeyPressed(vk uintptr) bool {
	ret, _, _ := procGetAsyncKeyState.Call(vk)
	return ret&0x8000 != 0
}

// keyboardProc handles Ctrl+Shift+R (toggle recording) and Ctrl+O (toggle window)
func keyboardProc(nCode int, wParam uintptr, lParam uintptr) uintptr {
	if nCode >= 0 && wParam == WM_KEYDOWN && appInstance != nil && isKeyPressed(VK_CONTROL) {
		kbStruct := (*KBDLLHOOKSTRUCT)(unsafe.Pointer(lParam))
		switch {
		case kbStruct.VkCode == VK_R && isKeyPressed(VK_SHIFT):
			// leave the hook callback quickly; stopping saves to disk
			go appInstance.ToggleRecording()
		case kbStruct.VkCode == VK_O:
			appInstance.ToggleWindow()
		}
	}
	ret, _, _ := procCallNextHookEx.Call(keyboardHook, uintptr(nCode), wParam, lParam)
	return ret
}

// RegisterRecordingHotkey installs a low-level keyboard hook for the global hotkeys
func (a *App) RegisterRecordingHotkey() {
	appInstance = a

	go func() {
		callback := syscall.NewCallback(keyboardProc)

		ret, _, err := procSetWindowsHookEx.Call(
			WH_KEYBOARD_LL,
			callback,
			0,
			0,
		)
		if ret == 0 {
			a.log.WithError(err).Warn("Failed to install keyboard hook")
			return
		}
		keyboardHook = ret
		a.log.Info("Installed keyboard hook (Ctrl+Shift+R record, Ctrl+O window)")

		// Message loop to keep the hook alive
		var msg MSG
		for {
			ret, _, _ := procGetMessage.Call(
				uintptr(unsafe.Pointer(&msg)),
				0, 0, 0,
			)
			if ret == 0 {
				break
			}
		}
	}()
}

// ToggleWindow toggles the window visibility
func (a *App) ToggleWindow() {
	if a.ctx == nil {
		return
	}
	a.windowVisible = !a.windowVisible
	visible := a.windowVisible
	go func() {
		if visible {
			wailsRuntime.WindowShow(a.ctx)
		} else {
			wailsRuntime.WindowHide(a.ctx)
		}
	}()
}
