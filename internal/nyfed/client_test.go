package nyfed

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rewired-gh/mbsbuydown/internal/models"
)

const sampleCSV = `Trade Type,Coupon,Weighted Average Price,Par Amount
Purchase,5.0,97.25,100000000
Purchase,5.0,97.75,50000000
Purchase,5.5,99.10,75000000
Sale,5.5,110.00,25000000
Purchase,6.0,100.40,60000000
`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL, 5*time.Second)
}

func TestFetchPrices_AggregatesPurchases(t *testing.T) {
	date := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2025-06-02.csv" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(sampleCSV))
	})

	points, err := client.FetchPrices(context.Background(), date)
	if err != nil {
		t.Fatalf("FetchPrices: %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("got %d points, want 3", len(points))
	}

	// Two 5.0 purchases average to 97.5; the 5.5 sale is excluded.
	byRate := make(map[float64]models.PricePoint)
	for _, p := range points {
		byRate[p.CouponRate] = p
		if !p.Date.Equal(date) {
			t.Errorf("point carries wrong date: %v", p.Date)
		}
	}
	if got := byRate[5.0].Price; math.Abs(got-97.5) > 1e-9 {
		t.Errorf("mean price for 5.0 = %v, want 97.5", got)
	}
	if got := byRate[5.5].Price; math.Abs(got-99.10) > 1e-9 {
		t.Errorf("price for 5.5 = %v, want 99.10 (sale row must be ignored)", got)
	}
}

func TestFetchPrices_SortedByCoupon(t *testing.T) {
	date := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("Trade Type,Coupon,Weighted Average Price\nPurchase,6.0,100.4\nPurchase,5.0,97.5\n"))
	})

	points, err := client.FetchPrices(context.Background(), date)
	if err != nil {
		t.Fatalf("FetchPrices: %v", err)
	}
	if len(points) != 2 || points[0].CouponRate != 5.0 || points[1].CouponRate != 6.0 {
		t.Errorf("points not sorted by coupon: %+v", points)
	}
}

func TestFetchPrices_NotFoundIsEmptyPayload(t *testing.T) {
	date := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	_, err := client.FetchPrices(context.Background(), date)
	var empty *EmptyPayloadError
	if !errors.As(err, &empty) {
		t.Fatalf("expected EmptyPayloadError, got %v", err)
	}
	if !empty.Date.Equal(date) {
		t.Errorf("error date = %v, want %v", empty.Date, date)
	}
}

func TestFetchPrices_HeaderOnlyIsEmptyPayload(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("Trade Type,Coupon,Weighted Average Price\n"))
	})

	_, err := client.FetchPrices(context.Background(), time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC))
	var empty *EmptyPayloadError
	if !errors.As(err, &empty) {
		t.Fatalf("expected EmptyPayloadError, got %v", err)
	}
}

func TestFetchPrices_NoPurchaseRowsIsEmptyPayload(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("Trade Type,Coupon,Weighted Average Price\nSale,5.5,110.0\n"))
	})

	_, err := client.FetchPrices(context.Background(), time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC))
	var empty *EmptyPayloadError
	if !errors.As(err, &empty) {
		t.Fatalf("expected EmptyPayloadError, got %v", err)
	}
}

func TestFetchPrices_MissingColumnsIsValidationError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("Foo,Bar\n1,2\n"))
	})

	_, err := client.FetchPrices(context.Background(), time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC))
	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestFetchPrices_MalformedPriceIsValidationError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("Trade Type,Coupon,Weighted Average Price\nPurchase,5.0,not-a-number\n"))
	})

	_, err := client.FetchPrices(context.Background(), time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC))
	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestFetchPrices_ServerErrorIsNetworkError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.FetchPrices(context.Background(), time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC))
	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
}

func TestExists(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    bool
	}{
		{
			name: "data present",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(sampleCSV))
			},
			want: true,
		},
		{
			name: "not found",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.NotFound(w, r)
			},
			want: false,
		},
		{
			// A wide header is still no data; the probe must not be fooled
			// by header length alone.
			name: "full header only",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("Operation Date,Trade Date,Settlement Date,Trade Type,Agency,Term,Coupon,Weighted Average Price,Par Amount\n"))
			},
			want: false,
		},
		{
			name: "header with trailing blank lines",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("Trade Type,Coupon,Weighted Average Price,Par Amount\n\n  \n"))
			},
			want: false,
		},
		{
			name: "header without trailing newline",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("Trade Type,Coupon,Weighted Average Price,Par Amount"))
			},
			want: false,
		},
		{
			name: "single data row",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("Trade Type,Coupon,Weighted Average Price,Par Amount\nPurchase,5.5,99.1,1000000\n"))
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, tt.handler)
			got, err := client.Exists(context.Background(), time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC))
			if err != nil {
				t.Fatalf("Exists: %v", err)
			}
			if got != tt.want {
				t.Errorf("Exists = %v, want %v", got, tt.want)
			}
		})
	}
}
