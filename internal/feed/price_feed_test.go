package feed

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/alanyoungcy/spreadbot/internal/domain"
)

type fakeStream struct {
	handlers    []func(domain.Ticker)
	connects    int
	subscribes  int
	closed      bool
}

func (s *fakeStream) Connect(context.Context) error { s.connects++; return nil }

func (s *fakeStream) SubscribeTickers(context.Context) error { s.subscribes++; return nil }

func (s *fakeStream) OnTicker(h func(domain.Ticker)) { s.handlers = append(s.handlers, h) }

func (s *fakeStream) Close() error { s.closed = true; return nil }

func (s *fakeStream) push(t domain.Ticker) {
	for _, h := range s.handlers {
		h(t)
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPriceFeed_StartIsIdempotent(t *testing.T) {
	stream := &fakeStream{}
	pf := NewPriceFeed(stream, testLogger())

	if err := pf.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := pf.Start(context.Background()); err != nil {
		t.Fatalf("second Start: %v", err)
	}

	if stream.connects != 1 {
		t.Errorf("expected 1 connect, got %d", stream.connects)
	}
	if stream.subscribes != 1 {
		t.Errorf("expected 1 subscribe, got %d", stream.subscribes)
	}
}

func TestPriceFeed_TracksLatestPrices(t *testing.T) {
	stream := &fakeStream{}
	pf := NewPriceFeed(stream, testLogger())

	if err := pf.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	stream.push(domain.Ticker{Symbol: "BTC", LastPrice: 65000})
	stream.push(domain.Ticker{Symbol: "SOL", LastPrice: 150})
	stream.push(domain.Ticker{Symbol: "BTC", LastPrice: 65100})

	if got, ok := pf.Price("BTC"); !ok || got != 65100 {
		t.Errorf("expected BTC 65100, got %v (ok=%v)", got, ok)
	}
	if _, ok := pf.Price("ETH"); ok {
		t.Error("expected no price for ETH")
	}
	if pf.Len() != 2 {
		t.Errorf("expected 2 symbols, got %d", pf.Len())
	}
}

func TestPriceFeed_PricesReturnsCopy(t *testing.T) {
	stream := &fakeStream{}
	pf := NewPriceFeed(stream, testLogger())
	_ = pf.Start(context.Background())

	stream.push(domain.Ticker{Symbol: "BTC", LastPrice: 65000})

	snap := pf.Prices()
	snap["BTC"] = 0
	snap["FAKE"] = 1

	if got, _ := pf.Price("BTC"); got != 65000 {
		t.Errorf("mutating the snapshot changed the feed: %v", got)
	}
	if pf.Len() != 1 {
		t.Errorf("mutating the snapshot changed the feed size: %d", pf.Len())
	}
}

func TestPriceFeed_Close(t *testing.T) {
	stream := &fakeStream{}
	pf := NewPriceFeed(stream, testLogger())
	_ = pf.Start(context.Background())

	if err := pf.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !stream.closed {
		t.Error("expected stream closed")
	}
}
