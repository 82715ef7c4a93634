package tollgate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide distinguishes bids from asks.
type OrderSide string

const (
	SideBid OrderSide = "bid"
	SideAsk OrderSide = "ask"
)

// EncryptedOrder is one resting order. The price travels as an FHE
// ciphertext; the commitment binds the order parameters without revealing
// them.
type EncryptedOrder struct {
	OrderID     string          `json:"orderId"`
	Side        OrderSide       `json:"side"`
	AgentID     string          `json:"agentId"`
	Commitment  string          `json:"commitment"`
	Ciphertext  *Ciphertext     `json:"ciphertext,omitempty"`
	SizeUSD     decimal.Decimal `json:"sizeUsd"`
	Matched     bool            `json:"matched"`
	SubmittedAt time.Time       `json:"submittedAt"`
}

// EncryptedOrderbook holds resting encrypted orders for one asset pair.
type EncryptedOrderbook struct {
	ID        string            `json:"id"`
	Pair      string            `json:"pair"`
	Bids      []*EncryptedOrder `json:"bids"`
	Asks      []*EncryptedOrder `json:"asks"`
	CreatedAt time.Time         `json:"createdAt"`
}

// OrderMatch pairs one bid with one ask and carries the correctness proof
// for the match.
type OrderMatch struct {
	MatchID    string `json:"matchId"`
	BidOrderID string `json:"bidOrderId"`
	AskOrderID string `json:"askOrderId"`
	Proof      string `json:"proof"`
}

// CreateEncryptedOrderbook registers a new order book. Returns nil for a
// blank asset-pair label; validation is advisory, not exceptional.
func (p *Pipeline) CreateEncryptedOrderbook(pair string) *EncryptedOrderbook {
	if strings.TrimSpace(pair) == "" {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	book := &EncryptedOrderbook{
		ID:        p.tokens.NewID("book"),
		Pair:      pair,
		CreatedAt: p.clock(),
	}
	p.orderbooks[book.ID] = book
	return book
}

// SubmitEncryptedOrder places an order on a book. Returns (nil, nil) for a
// non-positive price or size or an unknown book id, so callers can branch
// without error handling. An encryptor failure is a real error.
func (p *Pipeline) SubmitEncryptedOrder(ctx context.Context, bookID string, side OrderSide, price, size decimal.Decimal, agentID string) (*EncryptedOrder, error) {
	if price.LessThanOrEqual(decimal.Zero) || size.LessThanOrEqual(decimal.Zero) {
		return nil, nil
	}

	p.mu.Lock()
	_, exists := p.orderbooks[bookID]
	p.mu.Unlock()
	if !exists {
		return nil, nil
	}

	// Encrypt outside the lock; the encryptor is a blocking boundary.
	var ct *Ciphertext
	if p.encryptor != nil {
		var err error
		ct, err = p.encryptor.Encrypt(ctx, price.String(), "euint64")
		if err != nil {
			return nil, fmt.Errorf("encrypt order price: %w", err)
		}
	}

	order := &EncryptedOrder{
		OrderID:     p.tokens.NewID("order"),
		Side:        side,
		AgentID:     agentID,
		Commitment:  orderCommitment(bookID, agentID, price, size),
		Ciphertext:  ct,
		SizeUSD:     size,
		SubmittedAt: p.clock(),
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	book, exists := p.orderbooks[bookID]
	if !exists {
		// Book was torn down while the price was being encrypted.
		return nil, nil
	}
	if side == SideAsk {
		book.Asks = append(book.Asks, order)
	} else {
		book.Bids = append(book.Bids, order)
	}
	return order, nil
}

// MatchEncryptedOrders pairs unmatched bids and asks positionally by
// submission order (bid i against ask i), producing one correctness proof
// per match. Positional matching rather than price priority is a
// deliberate simplification of this book.
//
// Pairs are reserved under the lock before any proving starts, so two
// concurrent matching passes on the same book never settle the same order
// twice. A proving failure releases the pairs that never got a proof so
// the matching pass can be retried.
func (p *Pipeline) MatchEncryptedOrders(ctx context.Context, bookID string) ([]OrderMatch, error) {
	if p.prover == nil {
		return nil, fmt.Errorf("match prover not configured")
	}

	p.mu.Lock()
	book, exists := p.orderbooks[bookID]
	if !exists {
		p.mu.Unlock()
		return nil, fmt.Errorf("unknown orderbook %s", bookID)
	}
	bids := unmatchedOrders(book.Bids)
	asks := unmatchedOrders(book.Asks)
	n := len(bids)
	if len(asks) < n {
		n = len(asks)
	}
	for i := 0; i < n; i++ {
		bids[i].Matched = true
		asks[i].Matched = true
	}
	p.mu.Unlock()

	matches := make([]OrderMatch, 0, n)
	for i := 0; i < n; i++ {
		bid, ask := bids[i], asks[i]

		proof, err := p.prover.Prove(ctx, "order_match",
			map[string]string{
				"orderbook_id": bookID,
				"bid_order":    bid.OrderID,
				"ask_order":    ask.OrderID,
			},
			map[string]string{
				"bid_commitment": bid.Commitment,
				"ask_commitment": ask.Commitment,
			},
		)
		if err != nil {
			p.mu.Lock()
			for j := i; j < n; j++ {
				bids[j].Matched = false
				asks[j].Matched = false
			}
			p.mu.Unlock()
			return matches, fmt.Errorf("prove match %d: %w", i, err)
		}

		matches = append(matches, OrderMatch{
			MatchID:    p.tokens.NewID("match"),
			BidOrderID: bid.OrderID,
			AskOrderID: ask.OrderID,
			Proof:      proof.Proof,
		})
	}

	return matches, nil
}

// CloseOrderbook tears down a book and reports whether it existed.
func (p *Pipeline) CloseOrderbook(bookID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.orderbooks[bookID]; !exists {
		return false
	}
	delete(p.orderbooks, bookID)
	return true
}

// GetOrderbook returns a live book by id.
func (p *Pipeline) GetOrderbook(bookID string) (*EncryptedOrderbook, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	book, ok := p.orderbooks[bookID]
	return book, ok
}

func unmatchedOrders(orders []*EncryptedOrder) []*EncryptedOrder {
	out := make([]*EncryptedOrder, 0, len(orders))
	for _, o := range orders {
		if !o.Matched {
			out = append(out, o)
		}
	}
	return out
}

func orderCommitment(bookID, agentID string, price, size decimal.Decimal) string {
	h := sha256.New()
	h.Write([]byte(bookID))
	h.Write([]byte(agentID))
	h.Write([]byte(price.String()))
	h.Write([]byte(size.String()))
	return "0x" + hex.EncodeToString(h.Sum(nil))
}
