package port

import (
	"strings"
)

// macOS lists every device twice, as /dev/tty.* and /dev/cu.*. Only
// the callout devices can be opened without waiting for carrier.
const calloutPrefix = "/dev/cu."

// Devices paired over Bluetooth that are never displays.
var ignoredDevices = []string{"AirPod", "iPhone", "iPad", "Bluetooth-Incoming-Port"}

func portName(port string) string {
	if strings.HasPrefix(port, "/") {
		return port
	}
	return calloutPrefix + port
}

func ignored(dev string) bool {
	for _, s := range ignoredDevices {
		if strings.Contains(dev, s) {
			return true
		}
	}
	return false
}

func filterPorts(ports []string) []string {
	var filtered []string
	for _, p := range ports {
		name, ok := strings.CutPrefix(p, calloutPrefix)
		if ok && !ignored(name) {
			filtered = append(filtered, name)
		}
	}
	return filtered
}
