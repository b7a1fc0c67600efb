package domain

import (
	"fmt"
	"regexp"
)

var (
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	currencyRegex = regexp.MustCompile(`^[A-Z]{3}$`)
	roundIDRegex  = regexp.MustCompile(`^[A-Za-z0-9_\-:]{1,64}$`)
)

// ValidateEmail checks if an email address is valid.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email is required")
	}
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

// ValidateCurrency checks if a currency code is ISO 4217.
func ValidateCurrency(currency string) error {
	if !currencyRegex.MatchString(currency) {
		return fmt.Errorf("invalid currency code: %s", currency)
	}
	return nil
}

// ValidatePositiveAmount checks that an amount is positive (in cents).
func ValidatePositiveAmount(amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("amount must be positive, got %d", amount)
	}
	return nil
}

// ValidateRoundID checks a casino round identifier.
func ValidateRoundID(roundID string) error {
	if roundID == "" {
		return fmt.Errorf("round id is required")
	}
	if !roundIDRegex.MatchString(roundID) {
		return fmt.Errorf("invalid round id: %s", roundID)
	}
	return nil
}

// ValidateCommissionRate checks a percentage commission rate.
func ValidateCommissionRate(rate int64) error {
	if rate < 0 || rate > 100 {
		return fmt.Errorf("commission rate must be between 0 and 100, got %d", rate)
	}
	return nil
}
