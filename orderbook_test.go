package tollgate

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
)

func TestCreateEncryptedOrderbookValidation(t *testing.T) {
	p := newTestPipeline(nil, nil, nil)

	if p.CreateEncryptedOrderbook("") != nil {
		t.Fatal("blank pair should not create a book")
	}
	if p.CreateEncryptedOrderbook("   ") != nil {
		t.Fatal("whitespace pair should not create a book")
	}

	book := p.CreateEncryptedOrderbook("ETH/USDC")
	if book == nil || book.ID == "" {
		t.Fatal("expected a book with an id")
	}
	if got, ok := p.GetOrderbook(book.ID); !ok || got.Pair != "ETH/USDC" {
		t.Fatal("book not retrievable after creation")
	}
}

func TestSubmitEncryptedOrder(t *testing.T) {
	encryptor := &mockEncryptor{}
	p := newTestPipeline(nil, encryptor, nil)
	book := p.CreateEncryptedOrderbook("ETH/USDC")

	price := decimal.NewFromInt(3_000)
	size := decimal.NewFromInt(50_000)

	order, err := p.SubmitEncryptedOrder(context.Background(), book.ID, SideBid, price, size, "agent-1")
	if err != nil {
		t.Fatal(err)
	}
	if order == nil {
		t.Fatal("expected an order")
	}
	if !strings.HasPrefix(order.Commitment, "0x") || len(order.Commitment) != 66 {
		t.Fatalf("commitment %q, want 0x + 64 hex chars", order.Commitment)
	}
	if order.Ciphertext == nil {
		t.Fatal("price should be encrypted when an encryptor is configured")
	}
	if encryptor.callCount() != 1 {
		t.Fatalf("encryptor calls = %d, want 1", encryptor.callCount())
	}

	// Invalid submissions are advisory no-ops, not errors.
	for _, tc := range []struct {
		name   string
		bookID string
		price  decimal.Decimal
		size   decimal.Decimal
	}{
		{"zero price", book.ID, decimal.Zero, size},
		{"negative size", book.ID, price, decimal.NewFromInt(-1)},
		{"unknown book", "book_missing", price, size},
	} {
		got, err := p.SubmitEncryptedOrder(context.Background(), tc.bookID, SideAsk, tc.price, tc.size, "agent-1")
		if err != nil || got != nil {
			t.Fatalf("%s: got (%v, %v), want (nil, nil)", tc.name, got, err)
		}
	}
}

func TestMatchEncryptedOrdersPositional(t *testing.T) {
	prover := &mockProver{}
	p := newTestPipeline(prover, &mockEncryptor{}, nil)
	book := p.CreateEncryptedOrderbook("ETH/USDC")

	ctx := context.Background()
	var bids, asks []*EncryptedOrder
	for i := 0; i < 3; i++ {
		bid, _ := p.SubmitEncryptedOrder(ctx, book.ID, SideBid, decimal.NewFromInt(int64(3000+i)), decimal.NewFromInt(10), "buyer")
		bids = append(bids, bid)
	}
	for i := 0; i < 2; i++ {
		ask, _ := p.SubmitEncryptedOrder(ctx, book.ID, SideAsk, decimal.NewFromInt(int64(3100+i)), decimal.NewFromInt(10), "seller")
		asks = append(asks, ask)
	}

	matches, err := p.MatchEncryptedOrders(ctx, book.ID)
	if err != nil {
		t.Fatal(err)
	}
	// Three bids against two asks: two positional matches.
	if len(matches) != 2 {
		t.Fatalf("matches = %d, want 2", len(matches))
	}
	for i, m := range matches {
		if m.BidOrderID != bids[i].OrderID || m.AskOrderID != asks[i].OrderID {
			t.Fatalf("match %d pairs %s/%s, want %s/%s", i, m.BidOrderID, m.AskOrderID, bids[i].OrderID, asks[i].OrderID)
		}
		if m.Proof == "" {
			t.Fatalf("match %d missing proof", i)
		}
	}
	if prover.callCount() != 2 {
		t.Fatalf("prover calls = %d, want one per match", prover.callCount())
	}

	// Matched orders stay matched: a second pass finds nothing to pair.
	matches, err = p.MatchEncryptedOrders(ctx, book.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 0 {
		t.Fatalf("rematch produced %d matches, want 0", len(matches))
	}
	if !bids[0].Matched || bids[2].Matched {
		t.Fatal("matched flags wrong after matching pass")
	}
}

func TestMatchEncryptedOrdersConcurrent(t *testing.T) {
	// The first matching pass blocks inside the prover while a second pass
	// runs; the pair must be reserved before proving starts so only one
	// pass settles it.
	entered := make(chan struct{})
	release := make(chan struct{})
	var calls int32
	prover := &mockProver{
		prove: func(string, map[string]string, map[string]string) (*EligibilityProof, error) {
			if atomic.AddInt32(&calls, 1) == 1 {
				close(entered)
				<-release
			}
			return &EligibilityProof{Proof: "0xproof"}, nil
		},
	}
	p := newTestPipeline(prover, nil, nil)
	book := p.CreateEncryptedOrderbook("ETH/USDC")

	ctx := context.Background()
	p.SubmitEncryptedOrder(ctx, book.ID, SideBid, decimal.NewFromInt(3_000), decimal.NewFromInt(10), "buyer")
	p.SubmitEncryptedOrder(ctx, book.ID, SideAsk, decimal.NewFromInt(3_100), decimal.NewFromInt(10), "seller")

	firstDone := make(chan []OrderMatch)
	go func() {
		matches, err := p.MatchEncryptedOrders(ctx, book.ID)
		if err != nil {
			t.Error(err)
		}
		firstDone <- matches
	}()

	<-entered
	second, err := p.MatchEncryptedOrders(ctx, book.ID)
	if err != nil {
		t.Fatal(err)
	}
	close(release)
	first := <-firstDone

	if total := len(first) + len(second); total != 1 {
		t.Fatalf("concurrent passes produced %d matches for a 1-bid/1-ask book, want 1", total)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("prover calls = %d, want 1", calls)
	}
}

func TestMatchEncryptedOrdersProofFailureReleasesPairs(t *testing.T) {
	prover := &mockProver{
		prove: func(string, map[string]string, map[string]string) (*EligibilityProof, error) {
			return nil, errors.New("prover offline")
		},
	}
	p := newTestPipeline(prover, nil, nil)
	book := p.CreateEncryptedOrderbook("ETH/USDC")

	ctx := context.Background()
	bid, _ := p.SubmitEncryptedOrder(ctx, book.ID, SideBid, decimal.NewFromInt(3_000), decimal.NewFromInt(10), "buyer")
	ask, _ := p.SubmitEncryptedOrder(ctx, book.ID, SideAsk, decimal.NewFromInt(3_100), decimal.NewFromInt(10), "seller")

	if _, err := p.MatchEncryptedOrders(ctx, book.ID); err == nil {
		t.Fatal("proving failure must surface as an error")
	}
	if bid.Matched || ask.Matched {
		t.Fatal("unproven pairs must be released for retry")
	}

	// Retry succeeds once the prover recovers.
	prover.prove = nil
	matches, err := p.MatchEncryptedOrders(ctx, book.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 {
		t.Fatalf("retry produced %d matches, want 1", len(matches))
	}
}

func TestCloseOrderbook(t *testing.T) {
	p := newTestPipeline(&mockProver{}, nil, nil)
	book := p.CreateEncryptedOrderbook("ETH/USDC")

	if !p.CloseOrderbook(book.ID) {
		t.Fatal("expected close to succeed")
	}
	if p.CloseOrderbook(book.ID) {
		t.Fatal("double close should report false")
	}
	if _, err := p.MatchEncryptedOrders(context.Background(), book.ID); err == nil {
		t.Fatal("matching a closed book must error")
	}
}
