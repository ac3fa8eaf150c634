//go:build darwin
// +build darwin

package platform

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

type darwinImpl struct{}

func newPlatform() (Platform, error) {
	return &darwinImpl{}, nil
}

// SystemIdleSeconds reads HIDIdleTime (nanoseconds) from the IOHID
// registry entry.
func (p *darwinImpl) SystemIdleSeconds() (int64, error) {
	cmd := exec.Command("ioreg", "-c", "IOHIDSystem", "-d", "4")
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ioreg failed: %w", err)
	}

	for _, line := range strings.Split(string(output), "\n") {
		if !strings.Contains(line, "HIDIdleTime") {
			continue
		}
		parts := strings.Split(line, "=")
		if len(parts) < 2 {
			continue
		}
		nanos, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
		if err != nil {
			continue
		}
		return nanos / 1e9, nil
	}

	return 0, fmt.Errorf("HIDIdleTime not found in ioreg output")
}

// CaptureDisplays shells out to screencapture, which writes one file per
// display for as many paths as it is given.
func (p *darwinImpl) CaptureDisplays() ([][]byte, error) {
	dir, err := os.MkdirTemp("", "timeclock-capture")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	// Up to four displays; paths beyond the display count are not written.
	paths := make([]string, 4)
	for i := range paths {
		paths[i] = filepath.Join(dir, fmt.Sprintf("display-%d.png", i))
	}

	args := append([]string{"-x", "-t", "png"}, paths...)
	if err := exec.Command("screencapture", args...).Run(); err != nil {
		return nil, fmt.Errorf("screencapture failed: %w", err)
	}

	var images [][]byte
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		images = append(images, data)
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("screencapture produced no images")
	}
	return images, nil
}
