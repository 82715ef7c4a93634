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

// AuctionStatus is the lifecycle of a private auction.
type AuctionStatus string

const (
	AuctionBidding   AuctionStatus = "bidding"
	AuctionSettling  AuctionStatus = "settling"
	AuctionCompleted AuctionStatus = "completed"
)

// PrivateBid is one sealed bid. The amount is held by the pipeline operator
// only; other bidders see the commitment and optional ciphertext.
type PrivateBid struct {
	BidID       string          `json:"bidId"`
	Bidder      string          `json:"bidder"`
	AmountUSD   decimal.Decimal `json:"amountUsd"`
	Commitment  string          `json:"commitment"`
	Ciphertext  *Ciphertext     `json:"ciphertext,omitempty"`
	SubmittedAt time.Time       `json:"submittedAt"`
}

// PrivateAuction is a sealed-bid auction with an optionally encrypted
// reserve price.
type PrivateAuction struct {
	ID               string          `json:"id"`
	Auctioneer       string          `json:"auctioneer"`
	Asset            string          `json:"asset"`
	ReserveUSD       decimal.Decimal `json:"reserveUsd"`
	EncryptedReserve *Ciphertext     `json:"encryptedReserve,omitempty"`
	Status           AuctionStatus   `json:"status"`
	Bids             []*PrivateBid   `json:"bids"`
	CreatedAt        time.Time       `json:"createdAt"`
}

// AuctionSettlement is the outcome of settling a private auction.
type AuctionSettlement struct {
	AuctionID     string          `json:"auctionId"`
	WinnerID      string          `json:"winnerId"`
	WinningBidID  string          `json:"winningBidId"`
	WinningBidUSD decimal.Decimal `json:"winningBidUsd"`
	Proof         string          `json:"proof"`
	MetReserve    bool            `json:"metReserve"`
}

// CreatePrivateAuction registers a sealed-bid auction. Returns (nil, nil)
// for a blank auctioneer or asset or a negative reserve. When
// encryptReserve is set and an encryptor is configured, the reserve is
// encrypted before the auction opens.
func (p *Pipeline) CreatePrivateAuction(ctx context.Context, auctioneer, asset string, reserveUSD decimal.Decimal, encryptReserve bool) (*PrivateAuction, error) {
	if strings.TrimSpace(auctioneer) == "" || strings.TrimSpace(asset) == "" {
		return nil, nil
	}
	if reserveUSD.IsNegative() {
		return nil, nil
	}

	var encrypted *Ciphertext
	if encryptReserve && p.encryptor != nil {
		var err error
		encrypted, err = p.encryptor.Encrypt(ctx, reserveUSD.String(), "euint64")
		if err != nil {
			return nil, fmt.Errorf("encrypt reserve: %w", err)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	auction := &PrivateAuction{
		ID:               p.tokens.NewID("auction"),
		Auctioneer:       auctioneer,
		Asset:            asset,
		ReserveUSD:       reserveUSD,
		EncryptedReserve: encrypted,
		Status:           AuctionBidding,
		CreatedAt:        p.clock(),
	}
	p.auctions[auction.ID] = auction
	return auction, nil
}

// SubmitPrivateBid places a sealed bid. Returns (nil, nil) for a
// non-positive amount, an unknown auction, or an auction no longer
// accepting bids.
func (p *Pipeline) SubmitPrivateBid(ctx context.Context, auctionID, bidder string, amountUSD decimal.Decimal) (*PrivateBid, error) {
	if amountUSD.LessThanOrEqual(decimal.Zero) {
		return nil, nil
	}

	p.mu.Lock()
	auction, exists := p.auctions[auctionID]
	if !exists || auction.Status != AuctionBidding {
		p.mu.Unlock()
		return nil, nil
	}
	p.mu.Unlock()

	var ct *Ciphertext
	if p.encryptor != nil {
		var err error
		ct, err = p.encryptor.Encrypt(ctx, amountUSD.String(), "euint64")
		if err != nil {
			return nil, fmt.Errorf("encrypt bid: %w", err)
		}
	}

	bid := &PrivateBid{
		BidID:       p.tokens.NewID("bid"),
		Bidder:      bidder,
		AmountUSD:   amountUSD,
		Commitment:  bidCommitment(auctionID, bidder, amountUSD),
		Ciphertext:  ct,
		SubmittedAt: p.clock(),
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	auction, exists = p.auctions[auctionID]
	if !exists || auction.Status != AuctionBidding {
		// Auction settled while the bid was being encrypted.
		return nil, nil
	}
	auction.Bids = append(auction.Bids, bid)
	return bid, nil
}

// SettlePrivateAuction closes bidding and selects the winner: the highest
// bid, with submission order breaking ties. The status walks bidding ->
// settling -> completed; a proving failure reopens bidding so settlement
// can be retried.
func (p *Pipeline) SettlePrivateAuction(ctx context.Context, auctionID string) (*AuctionSettlement, error) {
	p.mu.Lock()
	auction, exists := p.auctions[auctionID]
	if !exists || auction.Status != AuctionBidding || len(auction.Bids) == 0 {
		p.mu.Unlock()
		return nil, nil
	}
	auction.Status = AuctionSettling

	winner := auction.Bids[0]
	for _, bid := range auction.Bids[1:] {
		if bid.AmountUSD.GreaterThan(winner.AmountUSD) {
			winner = bid
		}
	}
	p.mu.Unlock()

	var proofValue string
	if p.prover != nil {
		proof, err := p.prover.Prove(ctx, "winning_bid",
			map[string]string{
				"auction_id": auctionID,
				"asset":      auction.Asset,
			},
			map[string]string{
				"winning_commitment": winner.Commitment,
				"winning_amount":     winner.AmountUSD.String(),
			},
		)
		if err != nil {
			p.mu.Lock()
			auction.Status = AuctionBidding
			p.mu.Unlock()
			return nil, fmt.Errorf("prove winning bid: %w", err)
		}
		proofValue = proof.Proof
	}

	p.mu.Lock()
	auction.Status = AuctionCompleted
	p.mu.Unlock()

	return &AuctionSettlement{
		AuctionID:     auctionID,
		WinnerID:      winner.Bidder,
		WinningBidID:  winner.BidID,
		WinningBidUSD: winner.AmountUSD,
		Proof:         proofValue,
		MetReserve:    winner.AmountUSD.GreaterThanOrEqual(auction.ReserveUSD),
	}, nil
}

// GetAuction returns a live auction by id.
func (p *Pipeline) GetAuction(auctionID string) (*PrivateAuction, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	auction, ok := p.auctions[auctionID]
	return auction, ok
}

// CloseAuction tears down an auction and reports whether it existed.
func (p *Pipeline) CloseAuction(auctionID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.auctions[auctionID]; !exists {
		return false
	}
	delete(p.auctions, auctionID)
	return true
}

func bidCommitment(auctionID, bidder string, amount decimal.Decimal) string {
	h := sha256.New()
	h.Write([]byte(auctionID))
	h.Write([]byte(bidder))
	h.Write([]byte(amount.String()))
	return "0x" + hex.EncodeToString(h.Sum(nil))
}
