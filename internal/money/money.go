package money

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Normalisation failures. Handlers map these onto 400 responses.
var (
	ErrNotANumber      = errors.New("amount is not a number")
	ErrNonPositive     = errors.New("amount must be greater than zero")
	ErrInvalidCurrency = errors.New("currency must be a three-letter code")
)

// DefaultCurrency is assumed when the client omits a currency.
const DefaultCurrency = "usd"

var currencyPattern = regexp.MustCompile(`^[a-z]{3}$`)

// NormalizeAmount converts a raw amount (JSON number or string, comma or
// period decimal separator) into integer minor units.
func NormalizeAmount(raw any) (int64, error) {
	var value float64
	switch v := raw.(type) {
	case nil:
		return 0, ErrNotANumber
	case float64:
		value = v
	case float32:
		value = float64(v)
	case int:
		value = float64(v)
	case int64:
		value = float64(v)
	case string:
		normalised := strings.ReplaceAll(strings.TrimSpace(v), ",", ".")
		parsed, err := strconv.ParseFloat(normalised, 64)
		if err != nil {
			return 0, ErrNotANumber
		}
		value = parsed
	default:
		return 0, ErrNotANumber
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, ErrNotANumber
	}
	minor := int64(math.Round(value * 100))
	if minor <= 0 {
		return 0, ErrNonPositive
	}
	return minor, nil
}

// NormalizeCurrency lowercases and validates a currency code. A missing value
// falls back to DefaultCurrency.
func NormalizeCurrency(raw any) (string, error) {
	if raw == nil {
		return DefaultCurrency, nil
	}
	code, ok := raw.(string)
	if !ok {
		return "", ErrInvalidCurrency
	}
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return DefaultCurrency, nil
	}
	if !currencyPattern.MatchString(code) {
		return "", ErrInvalidCurrency
	}
	return code, nil
}

// Amount pairs minor units with a validated currency code.
type Amount struct {
	MinorUnits int64
	Currency   string
}

// Normalize validates both parts of a raw amount/currency pair.
func Normalize(rawAmount, rawCurrency any) (Amount, error) {
	currency, err := NormalizeCurrency(rawCurrency)
	if err != nil {
		return Amount{}, err
	}
	minor, err := NormalizeAmount(rawAmount)
	if err != nil {
		return Amount{}, err
	}
	return Amount{MinorUnits: minor, Currency: currency}, nil
}
