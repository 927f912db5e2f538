package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/mastermind/pkg/log"
)

// addrResolver is the reverse-DNS surface HTTPDirectory depends on.
// *net.Resolver satisfies it.
type addrResolver interface {
	LookupAddr(ctx context.Context, addr string) ([]string, error)
}

// HTTPDirectory resolves datacenters through an external host
// directory: the host address is reverse-resolved to its hostname and
// the directory is asked for that host's record.
type HTTPDirectory struct {
	baseURL  string
	client   *http.Client
	resolver addrResolver
	logger   zerolog.Logger
}

// NewHTTPDirectory creates a directory-backed inventory
func NewHTTPDirectory(baseURL string) *HTTPDirectory {
	return &HTTPDirectory{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		client:   &http.Client{Timeout: 5 * time.Second},
		resolver: net.DefaultResolver,
		logger:   log.WithComponent("inventory"),
	}
}

// hostRecord is the directory's answer for one host
type hostRecord struct {
	Datacenter string `json:"datacenter"`
}

func (d *HTTPDirectory) DC(ctx context.Context, hostAddr string) (string, error) {
	hostname, err := d.reverseResolve(ctx, hostAddr)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/hosts/%s", d.baseURL, hostname)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build directory request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("directory request for host %s failed: %w", hostname, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("directory returned %d for host %s", resp.StatusCode, hostname)
	}

	var record hostRecord
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return "", fmt.Errorf("failed to decode directory record for host %s: %w", hostname, err)
	}
	if record.Datacenter == "" {
		return "", fmt.Errorf("directory record for host %s has no datacenter", hostname)
	}

	d.logger.Debug().
		Str("host", hostAddr).
		Str("hostname", hostname).
		Str("dc", record.Datacenter).
		Msg("resolved host datacenter")

	return record.Datacenter, nil
}

// reverseResolve maps the host address to its canonical hostname. An
// address that does not parse as an IP is assumed to already be a
// hostname.
func (d *HTTPDirectory) reverseResolve(ctx context.Context, hostAddr string) (string, error) {
	if net.ParseIP(hostAddr) == nil {
		return hostAddr, nil
	}

	names, err := d.resolver.LookupAddr(ctx, hostAddr)
	if err != nil {
		return "", fmt.Errorf("reverse lookup of %s failed: %w", hostAddr, err)
	}
	if len(names) == 0 {
		return "", fmt.Errorf("reverse lookup of %s returned no names", hostAddr)
	}
	return strings.TrimSuffix(names[0], "."), nil
}
