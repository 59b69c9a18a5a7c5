package probe

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// ParsePingAverage
// ---------------------------------------------------------------------------

func TestParsePingAverage(t *testing.T) {
	tests := []struct {
		name string
		out  string
		want float64
	}{
		{
			name: "iputils summary",
			out: `PING 192.168.1.1 (192.168.1.1) 56(84) bytes of data.

--- 192.168.1.1 ping statistics ---
2 packets transmitted, 2 received, 0% packet loss, time 1001ms
rtt min/avg/max/mdev = 0.412/0.509/0.607/0.097 ms
`,
			want: 0.509,
		},
		{
			name: "busybox summary",
			out: `PING 8.8.8.8 (8.8.8.8): 56 data bytes

--- 8.8.8.8 ping statistics ---
2 packets transmitted, 2 packets received, 0% packet loss
round-trip min/avg/max = 11.344/12.802/14.260 ms
`,
			want: 12.802,
		},
		{
			name: "single probe",
			out:  "rtt min/avg/max/mdev = 23.150/23.150/23.150/0.000 ms",
			want: 23.150,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePingAverage(tt.out)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestParsePingAverage_NoSummary(t *testing.T) {
	out := `PING 10.0.0.99 (10.0.0.99) 56(84) bytes of data.

--- 10.0.0.99 ping statistics ---
2 packets transmitted, 0 received, 100% packet loss, time 1013ms
`
	_, err := ParsePingAverage(out)
	assert.Error(t, err)
}

func TestParsePingAverage_Empty(t *testing.T) {
	_, err := ParsePingAverage("")
	assert.Error(t, err)
}

// ---------------------------------------------------------------------------
// parseDefaultGateway
// ---------------------------------------------------------------------------

func TestParseDefaultGateway(t *testing.T) {
	tests := []struct {
		name string
		out  string
		want string
	}{
		{
			name: "dhcp route",
			out:  "default via 192.168.1.1 dev eth0 proto dhcp src 192.168.1.42 metric 100\n",
			want: "192.168.1.1",
		},
		{
			name: "static route",
			out:  "default via 10.0.0.1 dev ens18 onlink\n",
			want: "10.0.0.1",
		},
		{
			name: "multiple defaults uses first",
			out:  "default via 192.168.1.1 dev eth0 metric 100\ndefault via 192.168.2.1 dev wlan0 metric 600\n",
			want: "192.168.1.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseDefaultGateway(tt.out)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDefaultGateway_NoRoute(t *testing.T) {
	_, err := parseDefaultGateway("")
	assert.Error(t, err)
}

// ---------------------------------------------------------------------------
// EchoService
// ---------------------------------------------------------------------------

func TestEchoService_Lookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("203.0.113.9\n"))
	}))
	defer srv.Close()

	e := NewEchoService(srv.URL)
	ip, err := e.Lookup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.9", ip)
}

func TestEchoService_Lookup_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewEchoService(srv.URL).Lookup(context.Background())
	assert.Error(t, err)
}

func TestEchoService_Lookup_NotAnAddress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("<html>blocked</html>"))
	}))
	defer srv.Close()

	_, err := NewEchoService(srv.URL).Lookup(context.Background())
	assert.Error(t, err)
}

func TestEchoService_Lookup_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	srv.Close() // refuse connections

	_, err := NewEchoService(srv.URL).Lookup(context.Background())
	assert.Error(t, err)
}

// ---------------------------------------------------------------------------
// InternalIP
// ---------------------------------------------------------------------------

func TestInternalIP(t *testing.T) {
	ip, err := InternalIP()
	if err != nil {
		t.Skipf("no outbound route on this host: %v", err)
	}
	assert.NotNil(t, net.ParseIP(ip))
}
