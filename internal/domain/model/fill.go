package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RawFillRecord represents one fill event as reported by the venue.
// Amounts are kept exactly as the source sent them so that malformed values
// can be detected during classification.
type RawFillRecord struct {
	TransactionID     string
	Timestamp         time.Time
	Maker             string
	Taker             string
	MakerAssetID      string
	TakerAssetID      string
	MakerAmountFilled string
	TakerAmountFilled string
	ContractsFilled   string
}

// Side labels which counterparty's perspective a fill event represents.
type Side int

const (
	SideUnclassifiable Side = iota
	SideTakerFocused
	SideMakerFocused
)

func (s Side) String() string {
	switch s {
	case SideTakerFocused:
		return "taker_focused"
	case SideMakerFocused:
		return "maker_focused"
	default:
		return "unclassifiable"
	}
}

// ClassifiedEvent is a RawFillRecord annotated with its side.
// MakerAmount and TakerAmount are only meaningful when Side is not
// SideUnclassifiable.
type ClassifiedEvent struct {
	Record      RawFillRecord
	Side        Side
	MakerAmount decimal.Decimal
	TakerAmount decimal.Decimal
}

// ContractSet is the set of addresses known to be exchange/matching-engine
// contracts. Lookups are case-insensitive since on-chain addresses are
// reported in mixed case by different indexers.
type ContractSet map[string]struct{}

func NewContractSet(addrs ...string) ContractSet {
	set := make(ContractSet, len(addrs))
	for _, a := range addrs {
		a = normalizeAddress(a)
		if a == "" {
			continue
		}
		set[a] = struct{}{}
	}
	return set
}

func (c ContractSet) Contains(addr string) bool {
	if len(c) == 0 {
		return false
	}
	_, ok := c[normalizeAddress(addr)]
	return ok
}

func normalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// SettlementAsset identifies the asset whose amounts are counted as notional
// volume and the number of decimals its raw amounts are expressed in
// (6 for USDC base units, 0 for whole dollars/contracts).
type SettlementAsset struct {
	ID       string
	Decimals int32
}

// DayKey returns the UTC calendar date of t as a midnight UTC time.
// It is the key type used by every daily aggregation.
func DayKey(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// PageRequest asks a record source for the page following Cursor.
// An empty cursor requests the first page.
type PageRequest struct {
	Cursor string
	Since  time.Time
	Limit  int
}

// FillPage is one page of fills. Done is set when the source reports no
// further pages (short page or empty continuation).
type FillPage struct {
	Records    []RawFillRecord
	NextCursor string
	Done       bool
}
