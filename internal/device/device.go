package device

import (
	"os"
	"strings"

	"github.com/google/uuid"
)

// DeviceManager handles device ID generation and management
type DeviceManager struct{}

// NewDeviceManager creates a new device manager
func NewDeviceManager() *DeviceManager {
	return &DeviceManager{}
}

// GetOrGenerateDeviceID returns the configured ID, the machine ID, or a
// fresh UUID, in that order.
func (dm *DeviceManager) GetOrGenerateDeviceID(existingID string) (string, error) {
	if existingID != "" {
		return existingID, nil
	}

	if machineID := dm.readMachineID(); machineID != "" {
		return machineID, nil
	}

	return uuid.New().String(), nil
}

func (dm *DeviceManager) readMachineID() string {
	for _, path := range []string{"/etc/machine-id", "/var/lib/dbus/machine-id"} {
		data, err := os.ReadFile(path)
		if err == nil && len(data) > 0 {
			return strings.TrimSpace(string(data))
		}
	}

	hostname, err := os.Hostname()
	if err == nil && hostname != "" {
		return hostname
	}
	return ""
}
