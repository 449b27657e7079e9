package fx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"fintrack/internal/core"

	"github.com/beevik/etree"
	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
)

const (
	DefaultExchangeRateAPIURL = "https://api.exchangerate-api.com"
	DefaultECBURL             = "https://www.ecb.europa.eu/stats/eurofxref/eurofxref-daily.xml"

	maxResponseBytes = 1 << 20
)

// ExchangeRateAPI reads rates from the exchangerate-api v4 JSON endpoint.
type ExchangeRateAPI struct {
	baseURL string
	client  *http.Client
}

func NewExchangeRateAPI(baseURL string, client *http.Client) *ExchangeRateAPI {
	if baseURL == "" {
		baseURL = DefaultExchangeRateAPIURL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &ExchangeRateAPI{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (p *ExchangeRateAPI) Name() string { return "exchangerate-api" }

type latestResponse struct {
	Base  string                     `json:"base"`
	Rates map[string]decimal.Decimal `json:"rates"`
}

func (p *ExchangeRateAPI) Latest(ctx context.Context, base core.Currency) (map[core.Currency]decimal.Decimal, error) {
	body, err := fetch(ctx, p.client, fmt.Sprintf("%s/v4/latest/%s", p.baseURL, base))
	if err != nil {
		return nil, err
	}
	var payload latestResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode rates: %w", err)
	}
	if len(payload.Rates) == 0 {
		return nil, fmt.Errorf("no rates in response for %s", base)
	}
	out := make(map[core.Currency]decimal.Decimal)
	for code, rate := range payload.Rates {
		cur := core.Currency(code)
		if cur.IsSupported() && rate.IsPositive() {
			out[cur] = rate
		}
	}
	out[base] = one
	return out, nil
}

// ECB reads the European Central Bank daily reference rates. The feed is
// quoted per euro; other bases are crossed through EUR.
type ECB struct {
	url    string
	client *http.Client
}

func NewECB(url string, client *http.Client) *ECB {
	if url == "" {
		url = DefaultECBURL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &ECB{url: url, client: client}
}

func (p *ECB) Name() string { return "ecb" }

func (p *ECB) Latest(ctx context.Context, base core.Currency) (map[core.Currency]decimal.Decimal, error) {
	body, err := fetch(ctx, p.client, p.url)
	if err != nil {
		return nil, err
	}
	perEUR, err := parseECB(body)
	if err != nil {
		return nil, err
	}
	b, ok := perEUR[base]
	if !ok {
		return nil, fmt.Errorf("ecb feed has no rate for %s", base)
	}
	out := make(map[core.Currency]decimal.Decimal, len(perEUR))
	for cur, r := range perEUR {
		out[cur] = r.Div(b)
	}
	out[base] = one
	return out, nil
}

// parseECB extracts supported currencies from the eurofxref XML document.
func parseECB(raw []byte) (map[core.Currency]decimal.Decimal, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return nil, fmt.Errorf("failed to parse XML: %w", err)
	}
	cubes := doc.FindElements("//Cube[@currency]")
	if len(cubes) == 0 {
		return nil, fmt.Errorf("no rate data found in XML")
	}
	out := map[core.Currency]decimal.Decimal{core.EUR: one}
	for _, cube := range cubes {
		cur := core.Currency(cube.SelectAttrValue("currency", ""))
		if !cur.IsSupported() {
			continue
		}
		rate, err := decimal.NewFromString(cube.SelectAttrValue("rate", ""))
		if err != nil || !rate.IsPositive() {
			return nil, fmt.Errorf("invalid rate for %s", cur)
		}
		out[cur] = rate
	}
	return out, nil
}

func fetch(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json, application/xml")
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

// CachedProvider memoizes another provider's tables for a TTL.
type CachedProvider struct {
	next  Provider
	cache *cache.Cache
}

func NewCachedProvider(next Provider, ttl time.Duration) *CachedProvider {
	return &CachedProvider{next: next, cache: cache.New(ttl, 2*ttl)}
}

func (p *CachedProvider) Name() string { return p.next.Name() }

func (p *CachedProvider) Latest(ctx context.Context, base core.Currency) (map[core.Currency]decimal.Decimal, error) {
	key := "latest-" + string(base)
	if v, found := p.cache.Get(key); found {
		return v.(map[core.Currency]decimal.Decimal), nil
	}
	rates, err := p.next.Latest(ctx, base)
	if err != nil {
		return nil, err
	}
	p.cache.Set(key, rates, cache.DefaultExpiration)
	return rates, nil
}

// Flush drops all cached tables.
func (p *CachedProvider) Flush() { p.cache.Flush() }

// NewProvider builds the provider named in configuration. "none" yields nil,
// leaving conversions on the fixed table.
func NewProvider(name, url string, ttl time.Duration) (Provider, error) {
	var p Provider
	switch name {
	case "", "none":
		return nil, nil
	case "exchangerate-api":
		p = NewExchangeRateAPI(url, nil)
	case "ecb":
		p = NewECB(url, nil)
	default:
		return nil, fmt.Errorf("unknown rates provider %q", name)
	}
	if ttl > 0 {
		p = NewCachedProvider(p, ttl)
	}
	return p, nil
}
