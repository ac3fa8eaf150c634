//go:build windows
// +build windows

package platform

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

type windowsImpl struct{}

var (
	user32   = windows.NewLazyDLL("user32.dll")
	kernel32 = windows.NewLazyDLL("kernel32.dll")

	procGetLastInputInfo = user32.NewProc("GetLastInputInfo")
	procGetTickCount     = kernel32.NewProc("GetTickCount")
)

type lastInputInfo struct {
	cbSize uint32
	dwTime uint32
}

func newPlatform() (Platform, error) {
	return &windowsImpl{}, nil
}

// SystemIdleSeconds reads the time of the last input event from
// GetLastInputInfo and compares it to the current tick count.
func (p *windowsImpl) SystemIdleSeconds() (int64, error) {
	info := lastInputInfo{}
	info.cbSize = uint32(unsafe.Sizeof(info))

	ret, _, err := procGetLastInputInfo.Call(uintptr(unsafe.Pointer(&info)))
	if ret == 0 {
		return 0, fmt.Errorf("GetLastInputInfo failed: %w", err)
	}

	tickCount, _, _ := procGetTickCount.Call()

	// Both values are milliseconds since boot; GetTickCount wraps at
	// ~49 days and the subtraction stays correct in uint32 arithmetic.
	idleMillis := uint32(tickCount) - info.dwTime
	return int64(idleMillis) / 1000, nil
}

func (p *windowsImpl) CaptureDisplays() ([][]byte, error) {
	// TODO: capture via GDI BitBlt per monitor
	return nil, fmt.Errorf("Windows screen capture not yet implemented")
}
