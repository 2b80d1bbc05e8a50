package telemetry

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"kusensors/internal/config"
)

// Identity is the hex SHA-256 of the platform device id. It is used as the publish topic.
func Identity(platformID string) string {
	sum := sha256.Sum256([]byte(platformID))
	return hex.EncodeToString(sum[:])
}

// PlatformID returns the stable device identifier: the configured override, the machine id
// file, or a name-based UUID of the hostname, in that order.
func PlatformID(cfg config.DeviceConf) (string, error) {
	if id := strings.TrimSpace(cfg.ID); id != "" {
		return id, nil
	}
	if cfg.MachineIDPath != "" {
		if data, err := os.ReadFile(cfg.MachineIDPath); err == nil {
			if id := strings.TrimSpace(string(data)); id != "" {
				return id, nil
			}
		}
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "", fmt.Errorf("%w: hostname: %v", ErrNoDeviceID, err)
	}
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(host)).String(), nil
}
