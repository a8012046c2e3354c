package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxPayloadBytes caps how much of a source response is read. Upstream OSINT
// endpoints occasionally return unbounded HTML error pages.
const maxPayloadBytes = 1 << 20

// DefaultEndpoints maps query types to GET URL templates. "{query}" is
// replaced with the URL-safe normalized query. Deployments override these
// through configuration; the defaults only illustrate the template shape.
func DefaultEndpoints() map[string]string {
	return map[string]string{
		TypePhone:   "https://osint-source.example/num/{query}",
		TypeUPI:     "https://osint-source.example/upi/{query}",
		TypePAN:     "https://osint-source.example/pan?pan={query}",
		TypeIP:      "https://osint-source.example/ip?q={query}",
		TypeVehicle: "https://osint-source.example/vehicle?vh={query}",
		TypeIFSC:    "https://ifsc.razorpay.com/{query}",
	}
}

// HTTPProvider performs lookups against per-type HTTP endpoints. A response
// is a success when the endpoint returns 200 with a JSON body; 404 and
// JSON bodies that flag "not found" are authoritative misses; everything
// else is transient.
type HTTPProvider struct {
	endpoints map[string]string
	client    *http.Client
}

// NewHTTPProvider builds a provider over the given endpoint templates.
// A nil client gets a default with the supplied timeout applied.
func NewHTTPProvider(endpoints map[string]string, client *http.Client, timeout time.Duration) *HTTPProvider {
	if client == nil {
		client = &http.Client{}
	}
	if timeout > 0 {
		client.Timeout = timeout
	}
	eps := make(map[string]string, len(endpoints))
	for k, v := range endpoints {
		if strings.TrimSpace(v) != "" {
			eps[k] = v
		}
	}
	return &HTTPProvider{endpoints: eps, client: client}
}

// Supports reports whether an endpoint template exists for qtype.
func (p *HTTPProvider) Supports(qtype string) bool {
	_, ok := p.endpoints[qtype]
	return ok
}

// Lookup implements Provider.
func (p *HTTPProvider) Lookup(ctx context.Context, qtype, query string) (string, error) {
	tpl, ok := p.endpoints[qtype]
	if !ok {
		return "", ErrUnknownType
	}
	url := strings.ReplaceAll(tpl, "{query}", escapeQuery(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return "", fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}
	if !json.Valid(body) {
		return "", fmt.Errorf("%w: non-JSON body", ErrUnavailable)
	}
	if payloadSaysNotFound(body) {
		return "", ErrNotFound
	}
	return string(body), nil
}

// payloadSaysNotFound sniffs the common "success: false" / "status: not
// found" envelopes the upstream sources use for authoritative misses.
func payloadSaysNotFound(body []byte) bool {
	var env struct {
		Success *bool  `json:"success"`
		Status  string `json:"status"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return false
	}
	if env.Success != nil && !*env.Success {
		return true
	}
	return strings.EqualFold(env.Status, "not_found") || strings.EqualFold(env.Status, "not found")
}

// escapeQuery percent-encodes the characters that would break a path or
// query-string template slot. Normalized queries are already trimmed and
// case-folded, so only reserved characters need care.
func escapeQuery(q string) string {
	r := strings.NewReplacer(
		" ", "%20",
		"#", "%23",
		"&", "%26",
		"?", "%3F",
		"/", "%2F",
	)
	return r.Replace(q)
}
