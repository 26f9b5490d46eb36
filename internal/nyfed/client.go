package nyfed

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rewired-gh/mbsbuydown/internal/models"
)

// DefaultBaseURL is the NY Fed markets API root for MBS TBA transactions.
const DefaultBaseURL = "https://markets.newyorkfed.org/api/mbs/transactions"

// probeReadLimit bounds how much of the payload the existence probe reads.
// One header row plus one transaction row always fits well inside it.
const probeReadLimit = 8192

// NetworkError wraps transport failures and server errors that persisted
// through retries.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("nyfed: network failure: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// EmptyPayloadError indicates the feed responded but carried no transaction
// rows for the requested date. A 404 for a date counts as empty too.
type EmptyPayloadError struct {
	Date time.Time
}

func (e *EmptyPayloadError) Error() string {
	return fmt.Sprintf("nyfed: no transaction data for %s", e.Date.Format(models.DateLayout))
}

// Client fetches daily TBA transaction summaries from the NY Fed.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new NY Fed feed client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) dateURL(date time.Time) string {
	return fmt.Sprintf("%s/%s.csv", c.baseURL, date.Format(models.DateLayout))
}

// Exists reports whether the feed has transaction data for the given date.
// A payload with no row past the CSV header counts as absent, however wide
// the header is.
func (c *Client) Exists(ctx context.Context, date time.Time) (bool, error) {
	resp, err := c.doRequest(ctx, c.dateURL(date))
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, &NetworkError{Err: fmt.Errorf("unexpected status: %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, probeReadLimit))
	if err != nil {
		return false, &NetworkError{Err: err}
	}
	return hasDataRow(body), nil
}

// hasDataRow reports whether the CSV payload carries anything past the
// header line.
func hasDataRow(body []byte) bool {
	i := bytes.IndexByte(body, '\n')
	if i < 0 {
		return false
	}
	return len(bytes.TrimSpace(body[i+1:])) > 0
}

// FetchPrices retrieves the day's TBA transactions and reduces them to one
// price point per coupon: purchase trades only, mean weighted average price.
func (c *Client) FetchPrices(ctx context.Context, date time.Time) ([]models.PricePoint, error) {
	resp, err := c.doRequest(ctx, c.dateURL(date))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, &EmptyPayloadError{Date: date}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &NetworkError{Err: fmt.Errorf("unexpected status: %d", resp.StatusCode)}
	}

	points, err := parseTransactions(resp.Body, date)
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, &EmptyPayloadError{Date: date}
	}
	return points, nil
}

// parseTransactions reads the NY Fed CSV and aggregates purchase trades
// into mean weighted average price per coupon.
func parseTransactions(r io.Reader, date time.Time) ([]models.PricePoint, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	tradeTypeIdx, couponIdx, priceIdx := -1, -1, -1
	for i, name := range header {
		switch strings.TrimSpace(name) {
		case "Trade Type":
			tradeTypeIdx = i
		case "Coupon":
			couponIdx = i
		case "Weighted Average Price":
			priceIdx = i
		}
	}
	if tradeTypeIdx < 0 || couponIdx < 0 || priceIdx < 0 {
		return nil, &models.ValidationError{Msg: "feed CSV missing required columns"}
	}

	sums := make(map[float64]float64)
	counts := make(map[float64]int)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row: %w", err)
		}
		if tradeTypeIdx >= len(record) || couponIdx >= len(record) || priceIdx >= len(record) {
			continue
		}
		if strings.TrimSpace(record[tradeTypeIdx]) != "Purchase" {
			continue
		}
		coupon, err := strconv.ParseFloat(strings.TrimSpace(record[couponIdx]), 64)
		if err != nil {
			return nil, &models.ValidationError{Msg: fmt.Sprintf("malformed coupon value %q", record[couponIdx])}
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(record[priceIdx]), 64)
		if err != nil {
			return nil, &models.ValidationError{Msg: fmt.Sprintf("malformed price value %q", record[priceIdx])}
		}
		sums[coupon] += price
		counts[coupon]++
	}

	coupons := make([]float64, 0, len(sums))
	for coupon := range sums {
		coupons = append(coupons, coupon)
	}
	sort.Float64s(coupons)

	points := make([]models.PricePoint, 0, len(coupons))
	for _, coupon := range coupons {
		points = append(points, models.PricePoint{
			Date:       date,
			CouponRate: coupon,
			Price:      sums[coupon] / float64(counts[coupon]),
		})
	}
	return points, nil
}

// doRequest performs HTTP request with retry logic
func (c *Client) doRequest(ctx context.Context, urlStr string) (*http.Response, error) {
	maxRetries := 3
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		req, err := http.NewRequestWithContext(ctx, "GET", urlStr, nil)
		if err != nil {
			return nil, err
		}

		req.Header.Set("Accept", "text/csv")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			time.Sleep(time.Duration(i+1) * time.Second)
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			time.Sleep(time.Duration(i+1) * time.Second)
			continue
		}

		return resp, nil
	}

	return nil, &NetworkError{Err: fmt.Errorf("max retries exceeded: %w", lastErr)}
}
