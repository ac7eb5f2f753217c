package adapter

import "time"

// NmapOption is a functional option for configuring NmapSource
type NmapOption func(*NmapSource)

// WithInterval sets how long a scan result is served before rescanning
func WithInterval(d time.Duration) NmapOption {
	return func(n *NmapSource) {
		if d > 0 {
			n.interval = d
		}
	}
}

// WithTimeout sets the timeout for the entire nmap scan
func WithTimeout(d time.Duration) NmapOption {
	return func(n *NmapSource) {
		if d > 0 {
			n.timeout = d
		}
	}
}

// WithPortRange sets the ports to scan
// Format: "80,443,8080" or "1-1000" or "22,80-443,8080"
func WithPortRange(ports string) NmapOption {
	return func(n *NmapSource) {
		if validated, err := parsePorts(ports); err == nil {
			n.portRange = validated
		}
	}
}

// WithServiceDetection enables or disables service version detection (-sV)
func WithServiceDetection(enabled bool) NmapOption {
	return func(n *NmapSource) {
		n.serviceDetection = enabled
	}
}

// WithOSDetection enables or disables OS detection (-O)
// Note: OS detection requires root privileges
func WithOSDetection(enabled bool) NmapOption {
	return func(n *NmapSource) {
		n.osDetection = enabled
	}
}

// WithSkipHostDiscovery sets whether to skip ping and treat all hosts as online (-Pn)
func WithSkipHostDiscovery(skip bool) NmapOption {
	return func(n *NmapSource) {
		n.skipHostDiscovery = skip
	}
}

// WithFastScan enables fast scan mode (fewer ports, quicker results)
func WithFastScan() NmapOption {
	return func(n *NmapSource) {
		n.portRange = "22,80,443,2375"
		n.serviceDetection = false
		n.timeout = 5 * time.Minute
	}
}

// withScanner replaces the nmap invocation
func withScanner(fn scanFunc) NmapOption {
	return func(n *NmapSource) {
		n.scan = fn
	}
}
