package domain

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var currencyRegex = regexp.MustCompile(`^[A-Z]{3}$`)

// ValidateCurrency checks if a currency code is ISO 4217.
func ValidateCurrency(currency string) error {
	if !currencyRegex.MatchString(currency) {
		return ErrValidation(fmt.Sprintf("invalid currency code: %q", currency))
	}
	return nil
}

// ValidatePositiveAmount checks that a monetary amount is strictly positive.
func ValidatePositiveAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrValidation(fmt.Sprintf("amount must be positive, got %s", amount))
	}
	return nil
}

// ValidateReason checks the mandatory human-readable reason on refund,
// adjustment and cancellation operations.
func ValidateReason(reason string) error {
	if strings.TrimSpace(reason) == "" {
		return ErrValidation("reason is required")
	}
	return nil
}

// ValidateReferralCode checks the required referral code on a click.
func ValidateReferralCode(code string) error {
	if strings.TrimSpace(code) == "" {
		return ErrValidation("referral code is required")
	}
	return nil
}

// ValidateConversionType checks the conversion type enum.
func ValidateConversionType(t ConversionType) error {
	switch t {
	case ConversionSale, ConversionSignup, ConversionLead:
		return nil
	default:
		return ErrValidation(fmt.Sprintf("unknown conversion type: %q", t))
	}
}
