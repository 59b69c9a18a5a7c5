// Package probe discovers host identity and measures network latency. The
// host-command and network-backed implementations sit behind narrow
// capability interfaces so the poll loop can be tested with doubles.
package probe

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// RouteTable discovers the default gateway from the host routing table.
type RouteTable interface {
	DefaultGateway(ctx context.Context) (string, error)
}

// Prober measures the average ICMP round-trip time to a host, in
// milliseconds, over a fixed number of echo probes.
type Prober interface {
	AverageRTT(ctx context.Context, host string, count int) (float64, error)
}

// ExternalIP resolves the host's public address via an IP-echo service.
type ExternalIP interface {
	Lookup(ctx context.Context) (string, error)
}

// IPRouteTable reads the default gateway from `ip route show default`.
type IPRouteTable struct{}

func (IPRouteTable) DefaultGateway(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, "ip", "route", "show", "default").Output()
	if err != nil {
		return "", fmt.Errorf("querying routing table: %w", err)
	}
	gw, err := parseDefaultGateway(string(out))
	if err != nil {
		return "", err
	}
	return gw, nil
}

// parseDefaultGateway extracts the gateway address from `ip route` output,
// e.g. "default via 192.168.1.1 dev eth0 proto dhcp metric 100".
func parseDefaultGateway(out string) (string, error) {
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		for i := 0; i < len(fields)-1; i++ {
			if fields[i] == "via" {
				return fields[i+1], nil
			}
		}
	}
	return "", fmt.Errorf("no default gateway in routing table output")
}

// PingProber measures RTT by running the system ping utility.
type PingProber struct {
	// Timeout bounds the wait for each individual echo reply.
	Timeout time.Duration
}

func (p PingProber) AverageRTT(ctx context.Context, host string, count int) (float64, error) {
	if count <= 0 {
		count = 1
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	// Bound the whole command so a blackholed target cannot stall the tick
	// past count*timeout plus slack.
	cmdCtx, cancel := context.WithTimeout(ctx, time.Duration(count)*timeout+2*time.Second)
	defer cancel()

	out, err := exec.CommandContext(cmdCtx, "ping",
		"-n", "-q",
		"-c", strconv.Itoa(count),
		"-W", strconv.Itoa(int(timeout.Seconds())),
		host,
	).Output()
	if err != nil {
		return 0, fmt.Errorf("pinging %s: %w", host, err)
	}
	return ParsePingAverage(string(out))
}

// ParsePingAverage extracts the average RTT in milliseconds from iputils ping
// summary output, e.g.
// "rtt min/avg/max/mdev = 0.045/0.052/0.059/0.007 ms".
func ParsePingAverage(out string) (float64, error) {
	for _, line := range strings.Split(out, "\n") {
		if !strings.Contains(line, "min/avg/max") {
			continue
		}
		_, stats, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		parts := strings.Split(strings.Fields(strings.TrimSpace(stats))[0], "/")
		if len(parts) < 2 {
			continue
		}
		avg, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return 0, fmt.Errorf("parsing rtt average %q: %w", parts[1], err)
		}
		return avg, nil
	}
	return 0, fmt.Errorf("no rtt summary in ping output")
}

// EchoService resolves the public IP from a plain-text IP-echo endpoint.
type EchoService struct {
	URL    string
	Client *http.Client
}

// NewEchoService returns an ExternalIP backed by the given echo endpoint,
// with a bounded request timeout.
func NewEchoService(url string) *EchoService {
	return &EchoService{
		URL:    url,
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (e *EchoService) Lookup(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.URL, nil)
	if err != nil {
		return "", fmt.Errorf("building ip-echo request: %w", err)
	}
	resp, err := e.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("querying ip-echo service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ip-echo service returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 256))
	if err != nil {
		return "", fmt.Errorf("reading ip-echo response: %w", err)
	}
	addr := strings.TrimSpace(string(body))
	if net.ParseIP(addr) == nil {
		return "", fmt.Errorf("ip-echo service returned %q, not an address", addr)
	}
	return addr, nil
}

// InternalIP returns the address of the interface that would carry outbound
// traffic. The UDP dial performs no handshake and sends no packets; it only
// asks the kernel for a route.
func InternalIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", fmt.Errorf("resolving outbound interface: %w", err)
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "", fmt.Errorf("unexpected local address type %T", conn.LocalAddr())
	}
	return addr.IP.String(), nil
}
