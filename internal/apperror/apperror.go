// Package apperror holds the error taxonomy of the sale core. Validation and
// stock errors carry enough detail to render a user-facing message; persistence
// errors are surfaced generically with retry guidance.
package apperror

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrInvalidDate = errors.New("invalid date format, expected YYYY-MM-DD")
)

// RetryMessage is what callers see for a PersistenceError.
const RetryMessage = "the sale could not be recorded, please retry the whole operation"

type Rule string

const (
	RuleBasket              Rule = "basket"
	RuleItem                Rule = "item"
	RulePaymentMethod       Rule = "payment_method"
	RulePaymentAmount       Rule = "payment_amount"
	RuleInsufficientPayment Rule = "insufficient_payment"
	RuleTenant              Rule = "tenant"
	RuleTarget              Rule = "target"
	RuleRequest             Rule = "request"
)

type ValidationError struct {
	Rule     Rule     `json:"rule"`
	Field    string   `json:"field,omitempty"`
	Line     int      `json:"line,omitempty"`
	Message  string   `json:"message"`
	Required *float64 `json:"required,omitempty"`
	Received *float64 `json:"received,omitempty"`
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidation(rule Rule, field string, format string, args ...any) *ValidationError {
	return &ValidationError{Rule: rule, Field: field, Message: fmt.Sprintf(format, args...)}
}

func InsufficientPayment(required float64, received float64) *ValidationError {
	return &ValidationError{
		Rule:     RuleInsufficientPayment,
		Field:    "payment_received",
		Message:  fmt.Sprintf("insufficient payment: required %.2f, received %.2f", required, received),
		Required: &required,
		Received: &received,
	}
}

type StockErrorKind string

const (
	KindProductNotFound   StockErrorKind = "product_not_found"
	KindInsufficientStock StockErrorKind = "insufficient_stock"
)

type StockLineError struct {
	ProductID string         `json:"product_id"`
	Name      string         `json:"name"`
	Kind      StockErrorKind `json:"kind"`
	Requested int            `json:"requested"`
	Available int            `json:"available_stock"`
	Shortfall int            `json:"shortfall"`
	Message   string         `json:"message"`
}

// StockError aborts a sale. It lists every failing line, not only the first.
type StockError struct {
	Lines []StockLineError `json:"lines"`
}

func (e *StockError) Error() string {
	messages := make([]string, 0, len(e.Lines))
	for _, line := range e.Lines {
		messages = append(messages, line.Message)
	}
	return "stock check failed: " + strings.Join(messages, "; ")
}

func ProductNotFound(productID string, name string, requested int) StockLineError {
	return StockLineError{
		ProductID: productID,
		Name:      name,
		Kind:      KindProductNotFound,
		Requested: requested,
		Message:   fmt.Sprintf("product %s (%s) not found", productID, name),
	}
}

func InsufficientStock(productID string, name string, requested int, available int) StockLineError {
	return StockLineError{
		ProductID: productID,
		Name:      name,
		Kind:      KindInsufficientStock,
		Requested: requested,
		Available: available,
		Shortfall: requested - available,
		Message:   fmt.Sprintf("insufficient stock for %s: requested %d, available %d", name, requested, available),
	}
}

type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}

// Detail is the caller-facing rendering of one error. Stock figures are
// pointers so an available stock of zero is still reported.
type Detail struct {
	Kind      string   `json:"kind"`
	Message   string   `json:"message"`
	Field     string   `json:"field,omitempty"`
	Line      int      `json:"line,omitempty"`
	ProductID string   `json:"product_id,omitempty"`
	Requested *int     `json:"requested,omitempty"`
	Available *int     `json:"available_stock,omitempty"`
	Shortfall *int     `json:"shortfall,omitempty"`
	Required  *float64 `json:"required,omitempty"`
	Received  *float64 `json:"received,omitempty"`
}

// Details flattens err into the list shown to the caller. Persistence and
// unknown errors never leak their cause.
func Details(err error) []Detail {
	if err == nil {
		return nil
	}

	var verr *ValidationError
	if errors.As(err, &verr) {
		return []Detail{{
			Kind:     string(verr.Rule),
			Message:  verr.Message,
			Field:    verr.Field,
			Line:     verr.Line,
			Required: verr.Required,
			Received: verr.Received,
		}}
	}

	var serr *StockError
	if errors.As(err, &serr) {
		out := make([]Detail, 0, len(serr.Lines))
		for _, line := range serr.Lines {
			requested, shortfall := line.Requested, line.Shortfall
			detail := Detail{
				Kind:      string(line.Kind),
				Message:   line.Message,
				ProductID: line.ProductID,
				Requested: &requested,
			}
			if line.Kind == KindInsufficientStock {
				available := line.Available
				detail.Available = &available
				detail.Shortfall = &shortfall
			}
			out = append(out, detail)
		}
		return out
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return []Detail{{Kind: "not_found", Message: err.Error()}}
	case errors.Is(err, ErrInvalidDate):
		return []Detail{{Kind: "invalid_date", Message: ErrInvalidDate.Error()}}
	}

	var perr *PersistenceError
	if errors.As(err, &perr) {
		return []Detail{{Kind: "persistence", Message: RetryMessage}}
	}
	return []Detail{{Kind: "internal", Message: "internal server error"}}
}
