package platform

// Platform defines the desktop-side operations the tracking loops need.
type Platform interface {
	// SystemIdleSeconds returns seconds since the last mouse or keyboard
	// input.
	SystemIdleSeconds() (int64, error)

	// CaptureDisplays returns one PNG per connected display.
	CaptureDisplays() ([][]byte, error)
}
