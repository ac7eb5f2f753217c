package adapter

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	nmap "github.com/Ullaakut/nmap/v3"
	"github.com/rs/zerolog"

	"github.com/theredcat/heimdall/internal/domain"
)

func mockScanResult() *nmap.Run {
	return &nmap.Run{
		Hosts: []nmap.Host{
			{
				Addresses: []nmap.Address{
					{Addr: "192.168.1.100", AddrType: "ipv4"},
					{Addr: "aa:bb:cc:dd:ee:ff", AddrType: "mac", Vendor: "Test Vendor"},
				},
				Hostnames: []nmap.Hostname{
					{Name: "testhost.local"},
				},
				Status: nmap.Status{State: "up"},
				Ports: []nmap.Port{
					{
						ID:       22,
						Protocol: "tcp",
						State:    nmap.State{State: "open"},
						Service: nmap.Service{
							Name:    "ssh",
							Product: "OpenSSH",
							Version: "8.9p1",
						},
					},
					{
						ID:       2375,
						Protocol: "tcp",
						State:    nmap.State{State: "open"},
					},
					{
						ID:       443,
						Protocol: "tcp",
						State:    nmap.State{State: "closed"},
					},
				},
			},
			{
				Addresses: []nmap.Address{{Addr: "192.168.1.101", AddrType: "ipv4"}},
				Status:    nmap.Status{State: "down"},
			},
		},
	}
}

// TestNmapSource_Creation tests source creation with various options
func TestNmapSource_Creation(t *testing.T) {
	tests := []struct {
		name        string
		targets     []string
		opts        []NmapOption
		wantTargets int
		wantErr     bool
	}{
		{
			name:        "default configuration",
			targets:     []string{"192.168.1.0/24"},
			wantTargets: 1,
		},
		{
			name:        "with custom interval",
			targets:     []string{"10.0.0.0/24"},
			opts:        []NmapOption{WithInterval(10 * time.Minute)},
			wantTargets: 1,
		},
		{
			name:        "fast scan mode",
			targets:     []string{"192.168.1.1", "10.0.0.0/28"},
			opts:        []NmapOption{WithFastScan()},
			wantTargets: 2,
		},
		{
			name:    "invalid CIDR",
			targets: []string{"192.168.1.0/99"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source, err := NewNmapSource(tt.targets, zerolog.Nop(), tt.opts...)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(source.targets) != tt.wantTargets {
				t.Errorf("expected %d targets, got %d", tt.wantTargets, len(source.targets))
			}
		})
	}
}

// TestNmapSource_Options tests option functions
func TestNmapSource_Options(t *testing.T) {
	newSource := func(opts ...NmapOption) *NmapSource {
		t.Helper()
		s, err := NewNmapSource([]string{"192.168.1.1"}, zerolog.Nop(), opts...)
		if err != nil {
			t.Fatal(err)
		}
		return s
	}

	t.Run("WithInterval", func(t *testing.T) {
		if s := newSource(WithInterval(15 * time.Minute)); s.interval != 15*time.Minute {
			t.Errorf("expected interval 15m, got %v", s.interval)
		}
	})

	t.Run("WithTimeout", func(t *testing.T) {
		if s := newSource(WithTimeout(20 * time.Minute)); s.timeout != 20*time.Minute {
			t.Errorf("expected timeout 20m, got %v", s.timeout)
		}
	})

	t.Run("WithPortRange", func(t *testing.T) {
		if s := newSource(WithPortRange("1-1000")); s.portRange != "1-1000" {
			t.Errorf("expected port range 1-1000, got %s", s.portRange)
		}
	})

	t.Run("WithPortRange ignores invalid", func(t *testing.T) {
		def := newSource().portRange
		if s := newSource(WithPortRange("abc")); s.portRange != def {
			t.Errorf("expected default port range to remain, got %s", s.portRange)
		}
	})

	t.Run("WithServiceDetection", func(t *testing.T) {
		if s := newSource(WithServiceDetection(false)); s.serviceDetection {
			t.Error("expected service detection disabled")
		}
	})

	t.Run("WithOSDetection", func(t *testing.T) {
		if s := newSource(WithOSDetection(true)); !s.osDetection {
			t.Error("expected OS detection enabled")
		}
	})

	t.Run("WithSkipHostDiscovery", func(t *testing.T) {
		if s := newSource(WithSkipHostDiscovery(true)); !s.skipHostDiscovery {
			t.Error("expected skip host discovery enabled")
		}
	})
}

// TestNmapSource_Interface verifies the source only discovers hosts
func TestNmapSource_Interface(t *testing.T) {
	s, err := NewNmapSource(nil, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	caps := Inspect(s)
	if caps.Hosts == nil {
		t.Error("expected host discovery capability")
	}
	if caps.Networks != nil || caps.Links != nil || caps.Control != nil {
		t.Errorf("unexpected capabilities: %v", caps.List())
	}
}

// TestNmapSource_ListHosts tests conversion of mock nmap results
func TestNmapSource_ListHosts(t *testing.T) {
	s, err := NewNmapSource([]string{"192.168.1.0/24"}, zerolog.Nop(),
		withScanner(func(ctx context.Context, target string) (*nmap.Run, error) {
			return mockScanResult(), nil
		}),
	)
	if err != nil {
		t.Fatal(err)
	}

	hosts, err := s.ListHosts(context.Background())
	if err != nil {
		t.Fatalf("ListHosts failed: %v", err)
	}
	if len(hosts) != 1 {
		t.Fatalf("expected 1 up host, got %d", len(hosts))
	}

	host := hosts[0]
	if host.ID != "nmap-192-168-1-100" {
		t.Errorf("expected host ID nmap-192-168-1-100, got %s", host.ID)
	}
	if host.Name != "testhost" {
		t.Errorf("expected name 'testhost', got %s", host.Name)
	}
	if host.State != domain.HostStateRunning {
		t.Errorf("expected running, got %s", host.State)
	}
	if !host.HasAlias("testhost.local") {
		t.Errorf("expected reverse DNS as alias, got %v", host.DNS)
	}

	data, ok := host.Data.(ScannedHost)
	if !ok {
		t.Fatalf("expected ScannedHost data, got %T", host.Data)
	}
	if data.MAC != "AA:BB:CC:DD:EE:FF" {
		t.Errorf("expected upper-case MAC, got %s", data.MAC)
	}
	if data.Vendor != "Test Vendor" {
		t.Errorf("expected vendor 'Test Vendor', got %s", data.Vendor)
	}
	if len(data.OpenPorts) != 2 {
		t.Errorf("expected 2 open ports, got %d", len(data.OpenPorts))
	}
	if data.Role != "container-host" {
		t.Errorf("expected container-host role, got %s", data.Role)
	}

	sshFound := false
	for _, svc := range data.Services {
		if svc.Port == 22 && svc.Service == "ssh" {
			sshFound = true
			if svc.Banner != "OpenSSH 8.9p1" {
				t.Errorf("expected SSH banner 'OpenSSH 8.9p1', got %s", svc.Banner)
			}
		}
		if svc.Port == 2375 && svc.Service != "docker" {
			t.Errorf("expected well-known name for 2375, got %s", svc.Service)
		}
	}
	if !sshFound {
		t.Error("SSH service not found in port details")
	}

	// Actions on scanned hosts are not supported
	status, err := host.Stop(context.Background())
	if err != nil || status != domain.ActionNotSupported {
		t.Errorf("expected not_supported, got %s %v", status, err)
	}
}

// TestNmapSource_CachesScans verifies scans are reused within the interval
func TestNmapSource_CachesScans(t *testing.T) {
	var calls atomic.Int32
	s, err := NewNmapSource([]string{"10.0.0.1"}, zerolog.Nop(),
		WithInterval(time.Hour),
		withScanner(func(ctx context.Context, target string) (*nmap.Run, error) {
			calls.Add(1)
			return mockScanResult(), nil
		}),
	)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		if _, err := s.ListHosts(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("expected 1 scan, got %d", got)
	}
}

// TestNmapSource_PartialTargetFailure tests that one bad target does not fail the scan
func TestNmapSource_PartialTargetFailure(t *testing.T) {
	s, err := NewNmapSource([]string{"10.0.0.1", "10.0.0.2"}, zerolog.Nop(),
		withScanner(func(ctx context.Context, target string) (*nmap.Run, error) {
			if target == "10.0.0.1" {
				return nil, errors.New("boom")
			}
			return mockScanResult(), nil
		}),
	)
	if err != nil {
		t.Fatal(err)
	}

	hosts, err := s.ListHosts(context.Background())
	if err != nil {
		t.Fatalf("expected partial success, got %v", err)
	}
	if len(hosts) != 1 {
		t.Errorf("expected 1 host, got %d", len(hosts))
	}

	all, err := NewNmapSource([]string{"10.0.0.1"}, zerolog.Nop(),
		withScanner(func(ctx context.Context, target string) (*nmap.Run, error) {
			return nil, errors.New("boom")
		}),
	)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := all.ListHosts(context.Background()); !errors.Is(err, domain.ErrBackendUnreachable) {
		t.Errorf("expected ErrBackendUnreachable when every target fails, got %v", err)
	}
}

// TestInferRole tests role guessing from open ports
func TestInferRole(t *testing.T) {
	open := func(ids ...uint16) []nmap.Port {
		var ports []nmap.Port
		for _, id := range ids {
			ports = append(ports, nmap.Port{ID: id, State: nmap.State{State: "open"}})
		}
		return ports
	}

	tests := []struct {
		name  string
		ports []nmap.Port
		want  string
	}{
		{"docker daemon", open(2375, 22), "container-host"},
		{"router", open(53, 80), "router"},
		{"kubernetes", open(6443, 22), "kubernetes"},
		{"windows", open(3389, 445), "server"},
		{"ssh only", open(22), "server"},
		{"web only", open(443), "web"},
		{"nothing open", nil, "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := inferRole(tt.ports); got != tt.want {
				t.Errorf("inferRole() = %s, want %s", got, tt.want)
			}
		})
	}
}

// TestParsePorts tests port range validation
func TestParsePorts(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantError bool
	}{
		{"single port", "80", false},
		{"multiple ports", "80,443,8080", false},
		{"port range", "1-1000", false},
		{"mixed format", "22,80-443,8080", false},
		{"with spaces", "22, 80, 443", false},
		{"invalid range", "80-", true},
		{"invalid port", "99999", true},
		{"invalid format", "abc", true},
		{"negative port", "-1", true},
		{"reversed range", "443-80", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parsePorts(tt.input)
			if (err != nil) != tt.wantError {
				t.Errorf("parsePorts(%s) error = %v, wantError %v", tt.input, err, tt.wantError)
			}
		})
	}
}

// TestSanitizeIP tests host id generation from addresses
func TestSanitizeIP(t *testing.T) {
	if got := sanitizeIP("10.0.0.1"); got != "10-0-0-1" {
		t.Errorf("expected 10-0-0-1, got %s", got)
	}
	if got := sanitizeIP("fe80::1"); got != "fe80--1" {
		t.Errorf("expected fe80--1, got %s", got)
	}
}
