package domain

import (
	"fmt"
	"strings"
)

type PaymentStatus string

const (
	PaymentPaid    PaymentStatus = "paid"
	PaymentPending PaymentStatus = "pending"
	PaymentHold    PaymentStatus = "hold"
	// PaymentAllRemoved is reached only when returns remove every line of a
	// receipt. No transition leaves it.
	PaymentAllRemoved PaymentStatus = "all product got removed"
)

func (s PaymentStatus) Terminal() bool {
	return s == PaymentAllRemoved
}

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPaid, PaymentPending, PaymentHold, PaymentAllRemoved:
		return true
	}
	return false
}

// ParseCheckoutStatus accepts the statuses a new receipt may start in.
// Empty input means paid.
func ParseCheckoutStatus(raw string) (PaymentStatus, error) {
	status := PaymentStatus(strings.ToLower(strings.TrimSpace(raw)))
	switch status {
	case "":
		return PaymentPaid, nil
	case PaymentPaid, PaymentPending:
		return status, nil
	}
	return "", NewValidationError(fmt.Sprintf("payment_status must be paid or pending, got %q", raw))
}

// ParseStatusUpdate accepts the statuses an operator may set explicitly.
func ParseStatusUpdate(raw string) (PaymentStatus, error) {
	status := PaymentStatus(strings.ToLower(strings.TrimSpace(raw)))
	switch status {
	case PaymentPaid, PaymentPending, PaymentHold:
		return status, nil
	}
	return "", NewValidationError(fmt.Sprintf("payment_status must be paid, pending or hold, got %q", raw))
}
