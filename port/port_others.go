//go:build !darwin

package port

func portName(port string) string {
	return port
}

func filterPorts(ports []string) []string {
	return ports
}
