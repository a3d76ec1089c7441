package inventory

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func stockServer(t *testing.T, available bool) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/inventory/availability" {
			http.NotFound(w, r)
			return
		}
		var in struct {
			SKU      string `json:"sku"`
			Quantity int    `json:"quantity"`
		}
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]bool{"available": available})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCheckAvailabilityDefinitiveAnswer(t *testing.T) {
	tests := []struct {
		name      string
		available bool
	}{
		{name: "in stock", available: true},
		{name: "out of stock", available: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := stockServer(t, tt.available)
			g := &Gateway{BaseURL: srv.URL, Client: srv.Client()}

			got := g.CheckAvailability("COLA-330", 2)
			if got.Available != tt.available {
				t.Errorf("Available = %v, want %v", got.Available, tt.available)
			}
			if got.Unreachable {
				t.Error("a definitive answer must not read as unreachable")
			}
		})
	}
}

func TestCheckAvailabilityFailsOpen(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T) *Gateway
	}{
		{
			name: "no base url configured",
			setup: func(t *testing.T) *Gateway {
				return &Gateway{Client: http.DefaultClient}
			},
		},
		{
			name: "connection refused",
			setup: func(t *testing.T) *Gateway {
				srv := httptest.NewServer(http.NotFoundHandler())
				srv.Close() // dead endpoint
				return &Gateway{BaseURL: srv.URL, Client: &http.Client{Timeout: time.Second}}
			},
		},
		{
			name: "server error",
			setup: func(t *testing.T) *Gateway {
				srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					http.Error(w, "boom", http.StatusInternalServerError)
				}))
				t.Cleanup(srv.Close)
				return &Gateway{BaseURL: srv.URL, Client: srv.Client()}
			},
		},
		{
			name: "garbage payload",
			setup: func(t *testing.T) *Gateway {
				srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.Write([]byte("not json"))
				}))
				t.Cleanup(srv.Close)
				return &Gateway{BaseURL: srv.URL, Client: srv.Client()}
			},
		},
		{
			name: "timeout",
			setup: func(t *testing.T) *Gateway {
				srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					time.Sleep(200 * time.Millisecond)
				}))
				t.Cleanup(srv.Close)
				return &Gateway{BaseURL: srv.URL, Client: &http.Client{Timeout: 20 * time.Millisecond}}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.setup(t).CheckAvailability("COLA-330", 1)
			if !got.Available || !got.Unreachable {
				t.Errorf("Result = %+v, want available and unreachable", got)
			}
		})
	}
}

func TestDeductPostsAdjustments(t *testing.T) {
	type adjustment struct {
		SKU       string `json:"sku"`
		Delta     int    `json:"delta"`
		UnitCost  string `json:"unit_cost"`
		Source    string `json:"source"`
		SourceRef string `json:"source_ref"`
	}
	var got []adjustment
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/inventory/adjust" {
			http.NotFound(w, r)
			return
		}
		var adj adjustment
		if err := json.NewDecoder(r.Body).Decode(&adj); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		got = append(got, adj)
	}))
	t.Cleanup(srv.Close)

	g := &Gateway{BaseURL: srv.URL, Client: srv.Client()}
	err := g.Deduct(7, []DeductionLine{
		{SKU: "COLA-330", Quantity: 2, UnitCost: decimal.RequireFromString("1.20")},
		{SKU: "BEER-500", Quantity: 1, UnitCost: decimal.RequireFromString("2.50")},
	})
	if err != nil {
		t.Fatalf("Deduct error = %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("adjustments = %d, want 2", len(got))
	}
	first := got[0]
	if first.SKU != "COLA-330" || first.Delta != -2 || first.Source != "order" || first.SourceRef != "order-7" {
		t.Errorf("first adjustment = %+v", first)
	}
}

// A dead inventory endpoint must neither error nor abort the remaining
// lines.
func TestDeductSwallowsFailures(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	g := &Gateway{BaseURL: srv.URL, Client: srv.Client()}
	err := g.Deduct(7, []DeductionLine{
		{SKU: "COLA-330", Quantity: 1, UnitCost: decimal.RequireFromString("1.20")},
		{SKU: "BEER-500", Quantity: 1, UnitCost: decimal.RequireFromString("2.50")},
	})
	if err != nil {
		t.Fatalf("Deduct error = %v, want nil", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2 (failures must not stop the batch)", calls.Load())
	}
}

func TestDeductNoopWithoutConfig(t *testing.T) {
	g := &Gateway{Client: http.DefaultClient}
	if err := g.Deduct(1, []DeductionLine{{SKU: "X", Quantity: 1}}); err != nil {
		t.Errorf("Deduct error = %v, want nil", err)
	}
}
