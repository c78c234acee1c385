package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Per-call deadlines, mirroring how the upstream behaves: the previous-day
// lookup is on the hot path of every dashboard load and gets the tightest
// budget, the detail endpoint is the slowest upstream route.
const (
	dayFetchTimeout = 20 * time.Second
	lookupTimeout   = 10 * time.Second
	detailTimeout   = 30 * time.Second
)

// Client talks to the upstream dashboard API that serves voucher
// transactions for both payment providers. Every failure mode (network
// error, timeout, non-200) is reported as an error for logging, but callers
// are expected to continue with empty data rather than fail the request.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// NewClient creates an upstream API client. baseURL is the
// voucher-transactions endpoint without query parameters.
func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{},
		log:     log,
	}
}

// envelope is the upstream response shape. Totals arrive as numbers or
// numeric strings depending on the provider backend.
type envelope struct {
	Data        []*Record `json:"data"`
	TotalAmount Number    `json:"total_amount"`
	TotalVolume Number    `json:"total_volume"`
}

// FetchProviderDay fetches one provider's transaction set for one date and
// tags every record with the provider. On any failure it returns an empty
// DayData along with the reason.
func (c *Client) FetchProviderDay(ctx context.Context, date, prov string) (DayData, error) {
	ctx, cancel := context.WithTimeout(ctx, dayFetchTimeout)
	defer cancel()

	env, err := c.fetchDay(ctx, date, prov)
	if err != nil {
		return DayData{}, err
	}

	if prov == "" {
		prov = Pinelabs
	}
	for _, txn := range env.Data {
		txn.Provider = prov
	}

	return DayData{
		Transactions: env.Data,
		TotalAmount:  numberToFloat(env.TotalAmount),
		TotalVolume:  numberToFloat(env.TotalVolume),
	}, nil
}

// FetchPinelabsDay fetches the pinelabs set for a date under the lookup
// deadline. It exists for the previous-day closing-balance lookup.
func (c *Client) FetchPinelabsDay(ctx context.Context, date string) ([]*Record, error) {
	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	env, err := c.fetchDay(ctx, date, Pinelabs)
	if err != nil {
		return nil, err
	}
	for _, txn := range env.Data {
		txn.Provider = Pinelabs
	}
	return env.Data, nil
}

func (c *Client) fetchDay(ctx context.Context, date, prov string) (*envelope, error) {
	u := fmt.Sprintf("%s?date=%s", c.baseURL, url.QueryEscape(date))
	// The upstream treats pinelabs as the default provider; only gyftr is
	// requested explicitly.
	if prov == Gyftr {
		u += "&provider=" + Gyftr
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s/%s: %w", date, displayProvider(prov), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s/%s: upstream status %d", date, displayProvider(prov), resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", date, displayProvider(prov), err)
	}
	return &env, nil
}

// FetchDay is the day-scoped retrieval helper: it fetches the requested
// provider's set, or both sets when filter is "all", tagging every record.
// When both are fetched the upstream aggregates are summed. Fetch failures
// are logged and degrade to an empty contribution; this method never fails.
func (c *Client) FetchDay(ctx context.Context, date, filter string) DayData {
	switch filter {
	case FilterAll:
		// Independent reads; issue them concurrently.
		var wg sync.WaitGroup
		results := make([]DayData, 2)
		for i, prov := range []string{Pinelabs, Gyftr} {
			wg.Add(1)
			go func(i int, prov string) {
				defer wg.Done()
				day, err := c.FetchProviderDay(ctx, date, prov)
				if err != nil {
					c.log.Warn().Err(err).Str("date", date).Str("provider", prov).Msg("Day fetch failed, continuing with empty set")
				}
				results[i] = day
			}(i, prov)
		}
		wg.Wait()
		return mergeDays(results[0], results[1])
	default:
		day, err := c.FetchProviderDay(ctx, date, filter)
		if err != nil {
			c.log.Warn().Err(err).Str("date", date).Str("provider", displayProvider(filter)).Msg("Day fetch failed, continuing with empty set")
		}
		return day
	}
}

// FetchDetail fetches the single-voucher detail payload used by the drawer
// view. The payload shape varies by provider, so it is returned as a map.
func (c *Client) FetchDetail(ctx context.Context, userID, orderID, prov string) (map[string]interface{}, error) {
	ctx, cancel := context.WithTimeout(ctx, detailTimeout)
	defer cancel()

	u := fmt.Sprintf("%s/%s/%s", c.baseURL, url.PathEscape(userID), url.PathEscape(orderID))
	if prov == Gyftr {
		u += "?provider=" + Gyftr
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch detail %s: %w", orderID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch detail %s: upstream status %d", orderID, resp.StatusCode)
	}

	var detail map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&detail); err != nil {
		return nil, fmt.Errorf("decode detail %s: %w", orderID, err)
	}
	return detail, nil
}

// mergeDays concatenates two provider sets and sums their aggregates.
// Decimal arithmetic keeps the summed totals exact; the upstream reports
// them with two decimal places.
func mergeDays(a, b DayData) DayData {
	merged := DayData{
		Transactions: append(append([]*Record{}, a.Transactions...), b.Transactions...),
	}
	merged.TotalAmount = decimal.NewFromFloat(a.TotalAmount).Add(decimal.NewFromFloat(b.TotalAmount)).InexactFloat64()
	merged.TotalVolume = decimal.NewFromFloat(a.TotalVolume).Add(decimal.NewFromFloat(b.TotalVolume)).InexactFloat64()
	return merged
}

// numberToFloat coerces an upstream aggregate to float64, treating absent or
// malformed values as zero.
func numberToFloat(n Number) float64 {
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return 0
	}
	return d.InexactFloat64()
}

func displayProvider(prov string) string {
	if prov == "" {
		return Pinelabs
	}
	return prov
}
