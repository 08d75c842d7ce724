package model

import "time"

// PaymentCallback 付款閘道回傳結果
type PaymentCallback struct {
	OrderRef    string    `json:"order_ref"`
	Code        string    `json:"code"`
	ExternalRef string    `json:"external_ref"`
	Amount      int64     `json:"amount"`
	PaidAt      time.Time `json:"paid_at"`
	Success     bool      `json:"success"`
}
