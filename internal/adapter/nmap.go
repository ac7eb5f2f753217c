package adapter

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	nmap "github.com/Ullaakut/nmap/v3"
	"github.com/rs/zerolog"

	"github.com/theredcat/heimdall/internal/domain"
)

// Common service ports with their typical service names
var wellKnownPorts = map[int]string{
	21:   "ftp",
	22:   "ssh",
	23:   "telnet",
	25:   "smtp",
	53:   "dns",
	80:   "http",
	110:  "pop3",
	143:  "imap",
	443:  "https",
	445:  "smb",
	993:  "imaps",
	995:  "pop3s",
	2375: "docker",
	2376: "docker-tls",
	3306: "mysql",
	3389: "rdp",
	5432: "postgres",
	5900: "vnc",
	6379: "redis",
	6443: "k8s-api",
	8080: "http-alt",
	8443: "https-alt",
	9090: "prometheus",
	9100: "node-exporter",
}

// PortInfo contains details about an open port
type PortInfo struct {
	Port    int    `json:"port"`
	Service string `json:"service"`
	Banner  string `json:"banner,omitempty"`
}

// ScannedHost is the data blob attached to hosts found by a scan
type ScannedHost struct {
	IP        string         `json:"ip"`
	Hostname  string         `json:"hostname,omitempty"`
	MAC       string         `json:"mac,omitempty"`
	Vendor    string         `json:"vendor,omitempty"`
	Role      string         `json:"role"`
	OpenPorts []int          `json:"open_ports,omitempty"`
	Services  []PortInfo     `json:"services,omitempty"`
	OS        map[string]any `json:"os,omitempty"`
}

type scanFunc func(ctx context.Context, target string) (*nmap.Run, error)

// NmapSource discovers hosts on the configured targets using nmap.
// Scan results are cached for the scan interval, so refresh cycles in
// between serve the last scan.
type NmapSource struct {
	targets           []string
	interval          time.Duration
	timeout           time.Duration
	portRange         string
	serviceDetection  bool
	osDetection       bool
	skipHostDiscovery bool

	logger zerolog.Logger
	scan   scanFunc
	cache  *ttlCache[[]*nmap.Host]
}

// NewNmapSource creates a new nmap-based host source
// targets: list of CIDR ranges or individual IPs to scan
// opts: optional configuration options
func NewNmapSource(targets []string, logger zerolog.Logger, opts ...NmapOption) (*NmapSource, error) {
	expanded, err := expandTargets(targets)
	if err != nil {
		return nil, err
	}

	source := &NmapSource{
		targets:          expanded,
		interval:         5 * time.Minute,
		timeout:          10 * time.Minute,
		portRange:        "22,25,53,80,443,445,2375,3389,5432,5900,6443,8080,8443,9090,9100",
		serviceDetection: true,
		osDetection:      false, // Requires root
		logger:           logger.With().Str("source", "nmap").Logger(),
	}

	for _, opt := range opts {
		opt(source)
	}

	if source.scan == nil {
		source.scan = source.runScanner
	}
	source.cache = newTTLCache[[]*nmap.Host]("nmap/hosts", source.interval, source.timeout, nil)
	return source, nil
}

// Name returns the source identifier
func (n *NmapSource) Name() string {
	return "nmap"
}

// ListHosts returns the up hosts of the latest scan
func (n *NmapSource) ListHosts(ctx context.Context) ([]*domain.Host, error) {
	scanned, err := n.cache.Get(ctx, n.scanAll)
	if err != nil {
		return nil, err
	}

	hosts := make([]*domain.Host, 0, len(scanned))
	for _, h := range scanned {
		if host := n.hostFromScan(*h); host != nil {
			hosts = append(hosts, host)
		}
	}
	return hosts, nil
}

// scanAll scans every target; a failing target is logged and skipped
// unless all of them fail
func (n *NmapSource) scanAll(ctx context.Context) ([]*nmap.Host, error) {
	if len(n.targets) == 0 {
		return nil, nil
	}

	var (
		hosts   []*nmap.Host
		lastErr error
		failed  int
	)
	for _, target := range n.targets {
		result, err := n.scan(ctx, target)
		if err != nil {
			n.logger.Warn().Err(err).Str("target", target).Msg("Nmap scan failed")
			lastErr = err
			failed++
			continue
		}
		if result == nil {
			continue
		}
		for i := range result.Hosts {
			hosts = append(hosts, &result.Hosts[i])
		}
	}
	if failed == len(n.targets) {
		return nil, fmt.Errorf("%w: all nmap targets failed: %w", domain.ErrBackendUnreachable, lastErr)
	}

	n.logger.Debug().Int("hosts", len(hosts)).Msg("Nmap scan complete")
	return hosts, nil
}

// runScanner performs an nmap scan on a single target
func (n *NmapSource) runScanner(ctx context.Context, target string) (*nmap.Run, error) {
	opts := []nmap.Option{
		nmap.WithTargets(target),
		nmap.WithPorts(n.portRange),
	}
	if n.serviceDetection {
		opts = append(opts, nmap.WithServiceInfo())
	}
	if n.osDetection {
		opts = append(opts, nmap.WithOSDetection())
	}
	if n.skipHostDiscovery {
		opts = append(opts, nmap.WithSkipHostDiscovery())
	}

	scanner, err := nmap.NewScanner(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create scanner: %w", err)
	}

	n.logger.Debug().Str("target", target).Msg("Nmap: scanning target")
	result, warnings, err := scanner.Run()
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}
	if warnings != nil && len(*warnings) > 0 {
		n.logger.Debug().Strs("warnings", *warnings).Str("target", target).Msg("Nmap warnings")
	}
	return result, nil
}

// hostFromScan converts one nmap host result; down hosts and hosts without an address are dropped
func (n *NmapSource) hostFromScan(h nmap.Host) *domain.Host {
	if len(h.Addresses) == 0 || h.Status.State != "up" {
		return nil
	}

	var ip string
	for _, addr := range h.Addresses {
		if addr.AddrType == "ipv4" {
			ip = addr.Addr
			break
		}
	}
	if ip == "" {
		ip = h.Addresses[0].Addr
	}

	data := ScannedHost{
		IP:        ip,
		Role:      inferRole(h.Ports),
		OpenPorts: getOpenPorts(h.Ports),
		Services:  createPortDetails(h.Ports),
		OS:        extractOSInfo(h.OS),
	}
	for _, addr := range h.Addresses {
		if addr.AddrType == "mac" {
			data.MAC = strings.ToUpper(addr.Addr)
			data.Vendor = addr.Vendor
		}
	}

	name := ip
	dns := []string{}
	for _, hn := range h.Hostnames {
		if hn.Name != "" {
			dns = append(dns, hn.Name)
		}
	}
	if len(dns) > 0 {
		data.Hostname = dns[0]
		name = dns[0]
		if idx := strings.Index(name, "."); idx > 2 {
			name = name[:idx]
		}
	}

	host := domain.NewHost("nmap-"+sanitizeIP(ip), name, domain.HostStateRunning)
	host.Source = n.Name()
	host.DNS = dns
	host.Data = data
	return host
}

// createPortDetails creates PortInfo structures from nmap ports
func createPortDetails(ports []nmap.Port) []PortInfo {
	var details []PortInfo

	for _, port := range ports {
		if port.State.State != "open" {
			continue
		}

		serviceName := port.Service.Name
		if serviceName == "" {
			serviceName = wellKnownPorts[int(port.ID)]
			if serviceName == "" {
				serviceName = fmt.Sprintf("unknown-%d", port.ID)
			}
		}

		info := PortInfo{
			Port:    int(port.ID),
			Service: serviceName,
		}

		if port.Service.Product != "" {
			banner := port.Service.Product
			if port.Service.Version != "" {
				banner += " " + port.Service.Version
			}
			if port.Service.ExtraInfo != "" {
				banner += " (" + port.Service.ExtraInfo + ")"
			}
			info.Banner = banner
		}

		details = append(details, info)
	}

	return details
}

// getOpenPorts extracts list of open port numbers
func getOpenPorts(ports []nmap.Port) []int {
	var openPorts []int
	for _, port := range ports {
		if port.State.State == "open" {
			openPorts = append(openPorts, int(port.ID))
		}
	}
	return openPorts
}

// extractOSInfo converts nmap OS detection to map
func extractOSInfo(os nmap.OS) map[string]any {
	if len(os.Matches) == 0 {
		return nil
	}

	// Use first (best) match
	match := os.Matches[0]

	info := map[string]any{
		"name":     match.Name,
		"accuracy": match.Accuracy,
	}
	for _, class := range match.Classes {
		if class.Type != "" {
			info["type"] = class.Type
		}
		if class.Vendor != "" {
			info["vendor"] = class.Vendor
		}
		if class.Family != "" {
			info["family"] = class.Family
		}
	}

	return info
}

// inferRole guesses what a host is from its open ports
func inferRole(ports []nmap.Port) string {
	portSet := make(map[uint16]bool)
	for _, p := range ports {
		if p.State.State == "open" {
			portSet[p.ID] = true
		}
	}

	switch {
	case portSet[2375] || portSet[2376]:
		return "container-host"
	case portSet[53] && (portSet[80] || portSet[443]):
		return "router"
	case portSet[6443] || portSet[10250]:
		return "kubernetes"
	case portSet[22] || portSet[3389] || portSet[445]:
		return "server"
	case portSet[80] || portSet[443] || portSet[8080]:
		return "web"
	}
	return "unknown"
}

// sanitizeIP converts an IP address to a valid host ID
func sanitizeIP(ip string) string {
	parsed := net.ParseIP(ip)
	if parsed != nil {
		ip = parsed.String()
	}
	return strings.NewReplacer(".", "-", ":", "-").Replace(ip)
}

// expandTargets validates CIDR notation targets
func expandTargets(targets []string) ([]string, error) {
	var expanded []string
	for _, target := range targets {
		if strings.Contains(target, "/") {
			_, ipNet, err := net.ParseCIDR(target)
			if err != nil {
				return nil, fmt.Errorf("invalid CIDR %s: %w", target, err)
			}
			// nmap handles the expansion itself
			expanded = append(expanded, ipNet.String())
		} else {
			expanded = append(expanded, target)
		}
	}
	return expanded, nil
}

// parsePorts validates a port list such as "80,443,8080", "1-1000" or "22,80-443,8080"
func parsePorts(portRange string) (string, error) {
	parts := strings.Split(portRange, ",")
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if strings.Contains(part, "-") {
			rangeParts := strings.Split(part, "-")
			if len(rangeParts) != 2 {
				return "", fmt.Errorf("invalid port range: %s", part)
			}
			start, err := strconv.Atoi(strings.TrimSpace(rangeParts[0]))
			if err != nil || start < 1 || start > 65535 {
				return "", fmt.Errorf("invalid port number: %s", rangeParts[0])
			}
			end, err := strconv.Atoi(strings.TrimSpace(rangeParts[1]))
			if err != nil || end < 1 || end > 65535 || end < start {
				return "", fmt.Errorf("invalid port number: %s", rangeParts[1])
			}
		} else {
			port, err := strconv.Atoi(part)
			if err != nil || port < 1 || port > 65535 {
				return "", fmt.Errorf("invalid port number: %s", part)
			}
		}
	}
	return portRange, nil
}
