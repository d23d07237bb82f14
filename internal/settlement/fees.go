package settlement

import (
	"github.com/openagora/agora-backend/pkg/config"
	"github.com/openagora/agora-backend/pkg/types"
)

// FeeBreakdown is the full fee math for one settlement at a given price.
// The identities total = base + buyer fee, payout = base - seller fee and
// revenue = buyer fee + seller fee also hold as database checks.
type FeeBreakdown struct {
	BaseCents      int64 `json:"base_cents"`
	BuyerFeeCents  int64 `json:"buyer_fee_cents"`
	SellerFeeCents int64 `json:"seller_fee_cents"`
	TotalCents     int64 `json:"total_cents"`
	PayoutCents    int64 `json:"payout_cents"`
	RevenueCents   int64 `json:"revenue_cents"`
}

// ComputeFees derives the breakdown from basis-point rates. Both fees
// round half up independently on the base amount.
func ComputeFees(baseCents int64, fees config.FeesConfig) FeeBreakdown {
	buyerFee := types.FeeFromBps(baseCents, fees.BuyerFeeBps)
	sellerFee := types.FeeFromBps(baseCents, fees.SellerFeeBps)
	return FeeBreakdown{
		BaseCents:      baseCents,
		BuyerFeeCents:  buyerFee,
		SellerFeeCents: sellerFee,
		TotalCents:     baseCents + buyerFee,
		PayoutCents:    baseCents - sellerFee,
		RevenueCents:   buyerFee + sellerFee,
	}
}
