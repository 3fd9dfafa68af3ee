package model

import "github.com/shopspring/decimal"

// Payment status values as reported by the payment service.
const (
	PaymentCaptured = "captured"
	PaymentRefunded = "refunded"
)

// PaymentState is the typed payment outcome attached to a registration
// by a stable foreign key.  It replaces the free-form metadata blob the
// registration once carried: the amount is a decimal, the refund a
// nested value, and nothing is round-tripped through JSON columns.
type PaymentState struct {
	RegistrationID uint64          `json:"-"`
	PaymentID      string          `json:"id"`
	Status         string          `json:"status"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Refund         *RefundState    `json:"refund,omitempty"`
}

// RefundState records the outcome of a refund issued on cancellation.
type RefundState struct {
	Status    string `json:"status"`
	Reference string `json:"reference,omitempty"`
}
