// Package resolver discovers the caller's public address through a plain-text
// lookup endpoint such as http://members.3322.org/dyndns/getip or
// https://api.ipify.org.
package resolver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/bcnelson/homesync/internal/domain"
)

// maxBodySize bounds how much of the lookup response is read.
const maxBodySize = 1024

const userAgent = "homesync/1.0"

// Family restricts which address family a lookup may return.
type Family string

const (
	FamilyAny  Family = "any"
	FamilyIPv4 Family = "ipv4"
	FamilyIPv6 Family = "ipv6"
)

// Resolver defines the interface for public address discovery.
type Resolver interface {
	Resolve(ctx context.Context) (netip.Addr, error)
}

// HTTPResolver performs one GET per Resolve call. It never retries.
type HTTPResolver struct {
	url    string
	family Family
	client *http.Client
}

// Ensure HTTPResolver implements Resolver.
var _ Resolver = (*HTTPResolver)(nil)

// New creates a resolver for url. A zero timeout leaves the request bounded
// only by ctx.
func New(url string, timeout time.Duration, family Family) *HTTPResolver {
	if family == "" {
		family = FamilyAny
	}
	return &HTTPResolver{
		url:    url,
		family: Family(strings.ToLower(string(family))),
		client: &http.Client{Timeout: timeout},
	}
}

// Resolve fetches and parses the public address.
func (r *HTTPResolver) Resolve(ctx context.Context) (netip.Addr, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return netip.Addr{}, &domain.ResolutionError{URL: r.url, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/plain")

	resp, err := r.client.Do(req)
	if err != nil {
		return netip.Addr{}, &domain.ResolutionError{URL: r.url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return netip.Addr{}, &domain.ResolutionError{URL: r.url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return netip.Addr{}, &domain.ResolutionError{URL: r.url, StatusCode: resp.StatusCode, Err: err}
	}

	addr, err := Parse(string(body))
	if err != nil {
		return netip.Addr{}, &domain.ResolutionError{URL: r.url, StatusCode: resp.StatusCode, Body: string(body), Err: err}
	}

	if err := r.checkFamily(addr); err != nil {
		return netip.Addr{}, &domain.ResolutionError{URL: r.url, StatusCode: resp.StatusCode, Body: string(body), Err: err}
	}

	return addr, nil
}

func (r *HTTPResolver) checkFamily(addr netip.Addr) error {
	switch r.family {
	case FamilyIPv4:
		if !addr.Is4() {
			return fmt.Errorf("expected an IPv4 address, got %s", addr)
		}
	case FamilyIPv6:
		if !addr.Is6() {
			return fmt.Errorf("expected an IPv6 address, got %s", addr)
		}
	}
	return nil
}

// Parse parses a lookup response body into an address. Surrounding whitespace
// is ignored and IPv4-mapped IPv6 addresses are unmapped.
func Parse(body string) (netip.Addr, error) {
	text := strings.TrimSpace(body)
	if text == "" {
		return netip.Addr{}, fmt.Errorf("empty response")
	}
	addr, err := netip.ParseAddr(text)
	if err != nil {
		return netip.Addr{}, err
	}
	if addr.Zone() != "" {
		return netip.Addr{}, fmt.Errorf("zoned address %q is not a public address", text)
	}
	return addr.Unmap(), nil
}
