package model

import (
	"encoding/json"
	"time"
)

// TransactionType tags the workflow that produced a ledger entry.
type TransactionType string

const (
	TypeTaskReward       TransactionType = "task_reward"
	TypeAdminGrant       TransactionType = "admin_grant"
	TypeAdminDeduct      TransactionType = "admin_deduct"
	TypeRedemptionDeduct TransactionType = "redemption_deduct"
	TypeRedemptionRefund TransactionType = "redemption_refund"
	TypePredictionWin    TransactionType = "prediction_win"
)

// PointTransaction is an immutable ledger entry. Amount is signed;
// BalanceAfter is the authoritative post-commit balance and must equal the
// pre-commit balance plus Amount.
type PointTransaction struct {
	ID            int64           `json:"-"`
	TransactionID string          `json:"transaction_id"`
	UserID        string          `json:"user_id"`
	Amount        int64           `json:"amount"`
	BalanceAfter  int64           `json:"balance_after"`
	Type          TransactionType `json:"transaction_type"`
	ReferenceID   string          `json:"reference_id,omitempty"`
	Reason        string          `json:"reason,omitempty"`
	CreatedBy     string          `json:"created_by,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

func (t *PointTransaction) ToJSON() ([]byte, error) {
	return json.Marshal(t)
}
