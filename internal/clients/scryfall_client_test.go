package clients

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/adverant/nexus/cardsort-worker/internal/errors"
	"github.com/adverant/nexus/cardsort-worker/internal/logging"
)

func newTestClient(url string, timeout time.Duration, retries int) *ScryfallClient {
	return NewScryfallClient(&ScryfallConfig{
		BaseURL:    url,
		Timeout:    timeout,
		MaxRetries: retries,
		Logger:     logging.Discard(),
	})
}

func TestGetCardByCollectorNumber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cards/mh3/102" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("User-Agent") == "" {
			t.Errorf("missing User-Agent")
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"object":"card","id":"abc","name":"Lightning Bolt","set":"mh3","set_name":"Modern Horizons 3",
			"collector_number":"102","rarity":"uncommon","lang":"en","prices":{"usd":"1.00"},"legalities":{}}`)
	}))
	defer srv.Close()

	card, err := newTestClient(srv.URL, time.Second, 0).GetCardByCollectorNumber(context.Background(), "MH3", "0102")
	if err != nil {
		t.Fatalf("GetCardByCollectorNumber() error = %v", err)
	}
	if card.Name != "Lightning Bolt" || card.SetName != "Modern Horizons 3" || card.Rarity != "uncommon" {
		t.Fatalf("unexpected card: %+v", card)
	}
}

func TestGetCardNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"object":"error","code":"not_found","status":404,"details":"No card found with the given ID or set code and collector number."}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, time.Second, 3).GetCardByCollectorNumber(context.Background(), "ZZZ", "999")
	if !errors.HasCode(err, errors.ErrorNotFound) {
		t.Fatalf("expected CARD_NOT_FOUND, got %v", err)
	}
	ie, _ := errors.As(err)
	if ie.Details["set_code"] != "ZZZ" || ie.Details["collector_number"] != "999" {
		t.Fatalf("unexpected details: %+v", ie.Details)
	}
}

func TestGetCardServiceError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, time.Second, 3).GetCardByCollectorNumber(context.Background(), "MH3", "102")
	if !errors.HasCode(err, errors.ErrorService) {
		t.Fatalf("expected SERVICE_FAILED, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("service errors must not be retried, got %d calls", got)
	}
}

func TestGetCardMalformedResponse(t *testing.T) {
	cases := map[string]string{
		"invalid json": `{"name":`,
		"missing name": `{"object":"card","set":"mh3"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, body)
			}))
			defer srv.Close()

			_, err := newTestClient(srv.URL, time.Second, 0).GetCardByCollectorNumber(context.Background(), "MH3", "102")
			if !errors.HasCode(err, errors.ErrorTransport) {
				t.Fatalf("expected TRANSPORT_FAILED, got %v", err)
			}
		})
	}
}

func TestGetCardTimeoutNoRetryByDefault(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 50*time.Millisecond, 0).GetCardByCollectorNumber(context.Background(), "MH3", "102")
	if !errors.HasCode(err, errors.ErrorTransport) {
		t.Fatalf("expected TRANSPORT_FAILED, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("baseline must not retry, got %d calls", got)
	}
	ie, _ := errors.As(err)
	if ie.Details["attempts"] != 1 {
		t.Fatalf("attempts = %v", ie.Details["attempts"])
	}
}

func TestGetCardRetriesTransportFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			fmt.Fprint(w, `not json`)
			return
		}
		fmt.Fprint(w, `{"name":"Lightning Bolt"}`)
	}))
	defer srv.Close()

	card, err := newTestClient(srv.URL, time.Second, 1).GetCardByCollectorNumber(context.Background(), "MH3", "102")
	if err != nil {
		t.Fatalf("GetCardByCollectorNumber() error = %v", err)
	}
	if card.Name != "Lightning Bolt" {
		t.Fatalf("unexpected card %+v", card)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("expected 2 calls, got %d", got)
	}
}

func TestGetCardUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newTestClient(url, time.Second, 0).GetCardByCollectorNumber(context.Background(), "MH3", "102")
	if !errors.HasCode(err, errors.ErrorTransport) {
		t.Fatalf("expected TRANSPORT_FAILED, got %v", err)
	}
}

func TestCardURL(t *testing.T) {
	c := newTestClient("https://api.scryfall.com/", time.Second, 0)
	cases := map[[2]string]string{
		{"MH3", "0102"}: "https://api.scryfall.com/cards/mh3/102",
		{"SET", "042"}:  "https://api.scryfall.com/cards/set/42",
		{"M21", "7"}:    "https://api.scryfall.com/cards/m21/7",
		{"MH3", "102a"}: "https://api.scryfall.com/cards/mh3/102a",
		{"ABC", "000"}:  "https://api.scryfall.com/cards/abc/0",
	}
	for in, want := range cases {
		if got := c.CardURL(in[0], in[1]); got != want {
			t.Errorf("CardURL(%s, %s) = %s, want %s", in[0], in[1], got, want)
		}
	}
}
