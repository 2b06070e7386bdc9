package model

import "time"

// RedemptionStatus is the closed set of redemption states.
type RedemptionStatus string

const (
	RedemptionPending   RedemptionStatus = "pending"
	RedemptionApproved  RedemptionStatus = "approved"
	RedemptionDenied    RedemptionStatus = "denied"
	RedemptionCancelled RedemptionStatus = "cancelled"
)

// CanTransition reports whether status next is reachable from s. Approvals,
// denials and cancellations are only legal from pending.
func (s RedemptionStatus) CanTransition(next RedemptionStatus) bool {
	if s != RedemptionPending {
		return false
	}
	return next == RedemptionApproved || next == RedemptionDenied || next == RedemptionCancelled
}

// Redemption records an exchange of points for an external voucher. The
// amount is reserved (debited) at creation; denial and cancellation refund
// exactly AmountNacho.
type Redemption struct {
	ID           int64            `json:"-"`
	RedemptionID string           `json:"redemption_id"`
	UserID       string           `json:"user_id"`
	VoucherID    string           `json:"voucher_id"`
	VoucherName  string           `json:"voucher_name,omitempty"`
	AmountNacho  int64            `json:"amount_nacho"`
	AmountUSD    float64          `json:"amount_usd,omitempty"`
	Status       RedemptionStatus `json:"status"`
	ReviewedBy   string           `json:"reviewed_by,omitempty"`
	ReviewNote   string           `json:"review_note,omitempty"`
	VoucherLink  string           `json:"voucher_link,omitempty"`
	RequestedAt  time.Time        `json:"requested_at"`
	ReviewedAt   *time.Time       `json:"reviewed_at,omitempty"`
	DeliveredAt  *time.Time       `json:"delivered_at,omitempty"`
}
