// Package apperr holds the error classes shared by the money engine.
package apperr

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrValidation        = errors.New("validation_failed")
	ErrInsufficientFunds = errors.New("insufficient_funds")
	ErrRecipientNotFound = errors.New("recipient_not_found")
	ErrExternalService   = errors.New("external_service_error")
	ErrNotFound          = errors.New("not_found")
	ErrUserBlocked       = errors.New("user_blocked")
)

type ValidationError struct {
	Field  string
	Reason string
}

func Invalid(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrValidation, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// FundsError reports which balance could not cover an amount.
type FundsError struct {
	Account string
	Need    decimal.Decimal
	Have    decimal.Decimal
}

func (e *FundsError) Error() string {
	return fmt.Sprintf("%s: %s needs %s, has %s", ErrInsufficientFunds, e.Account, e.Need, e.Have)
}

func (e *FundsError) Unwrap() error {
	return ErrInsufficientFunds
}

type ExternalError struct {
	Service string
	Op      string
	Err     error
}

func External(service, op string, err error) *ExternalError {
	return &ExternalError{Service: service, Op: op, Err: err}
}

func (e *ExternalError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s %s", ErrExternalService, e.Service, e.Op)
	}
	return fmt.Sprintf("%s: %s %s: %v", ErrExternalService, e.Service, e.Op, e.Err)
}

func (e *ExternalError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrExternalService}
	}
	return []error{ErrExternalService, e.Err}
}
