// Package validate checks the shape of a sale before anything is read or
// written. Rules are evaluated in a fixed order and the first violation wins:
//
//  1. basket non-empty and within the configured maximum size
//  2. every line has a positive price and quantity and its identifying fields
//  3. a supported payment method
//  4. a payment amount at or above the configured minimum
package validate

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"kasirinaja/salecore/internal/apperror"
	"kasirinaja/salecore/internal/domain"
)

type Rules struct {
	MaxBasketItems int
	MinPayment     float64
}

type Validator struct {
	rules  Rules
	fields *validator.Validate
}

func New(rules Rules) *Validator {
	if rules.MaxBasketItems < 1 {
		rules.MaxBasketItems = 100
	}
	if rules.MinPayment < 0 {
		rules.MinPayment = 0
	}

	fields := validator.New(validator.WithRequiredStructEnabled())
	fields.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	// gt=0 lets +Inf through.
	if err := fields.RegisterValidation("finite", finite); err != nil {
		panic(err)
	}

	return &Validator{rules: rules, fields: fields}
}

func finite(fl validator.FieldLevel) bool {
	v := fl.Field().Float()
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func (v *Validator) Validate(req domain.SaleRequest) error {
	if len(req.Items) == 0 {
		return apperror.NewValidation(apperror.RuleBasket, "items", "basket is empty")
	}
	if len(req.Items) > v.rules.MaxBasketItems {
		return apperror.NewValidation(apperror.RuleBasket, "items", "basket has %d items, maximum is %d", len(req.Items), v.rules.MaxBasketItems)
	}

	for i, item := range req.Items {
		if err := v.validateItem(i, item); err != nil {
			return err
		}
	}

	method := strings.TrimSpace(req.PaymentMethod)
	if method == "" {
		return apperror.NewValidation(apperror.RulePaymentMethod, "payment_method", "payment method is required")
	}
	if !domain.IsPaymentMethod(method) {
		return apperror.NewValidation(apperror.RulePaymentMethod, "payment_method", "unsupported payment method %q", method)
	}

	if req.PaymentReceived == nil || math.IsNaN(*req.PaymentReceived) || math.IsInf(*req.PaymentReceived, 0) {
		return apperror.NewValidation(apperror.RulePaymentAmount, "payment_received", "payment amount is required")
	}
	if *req.PaymentReceived < v.rules.MinPayment {
		return apperror.NewValidation(apperror.RulePaymentAmount, "payment_received", "payment amount must be at least %.2f", v.rules.MinPayment)
	}

	return nil
}

func (v *Validator) validateItem(index int, item domain.LineItem) error {
	// Whitespace-only identifiers pass the required tag, so trim first.
	item.ID = strings.TrimSpace(item.ID)
	item.Name = strings.TrimSpace(item.Name)

	err := v.fields.Struct(item)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperror.NewValidation(apperror.RuleItem, "", "item %d is invalid: %v", index+1, err)
	}

	first := fieldErrs[0]
	verr := apperror.NewValidation(apperror.RuleItem, first.Field(), "item %d: %s %s", index+1, first.Field(), describe(first))
	verr.Line = index + 1
	return verr
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte", "lte":
		return "must be between 0 and 1"
	case "finite":
		return "must be a finite number"
	default:
		return fmt.Sprintf("failed %s check", fe.Tag())
	}
}
