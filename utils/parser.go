package utils

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/vitwit/jobcredits/types"
)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
}

// Validator returns the shared validator instance.
func Validator() *validator.Validate {
	return validate
}

// DecodeJSON decodes one JSON document from r into target and validates it with
// struct tags. Slices are validated element by element. Any mismatch is reported as
// a DECODE_FAILED error rather than defaulted.
func DecodeJSON(r io.Reader, target any) error {
	if err := json.NewDecoder(r).Decode(target); err != nil {
		return types.NewError(types.ErrDecodeFailed, err, "failed to decode response")
	}

	if err := validateValue(reflect.ValueOf(target)); err != nil {
		return types.NewError(types.ErrDecodeFailed, err, "response validation failed")
	}
	return nil
}

func validateValue(v reflect.Value) error {
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return fmt.Errorf("response is null")
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Struct:
		return validate.Struct(v.Addr().Interface())
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.IsNil() {
			return fmt.Errorf("response is null")
		}
		for i := 0; i < v.Len(); i++ {
			if err := validateValue(v.Index(i).Addr()); err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
		}
	}
	return nil
}

// ParseConfig parses a Config from JSON, applies defaults and validates it
func ParseConfig(data []byte) (*types.Config, error) {
	var config types.Config

	if err := json.Unmarshal(data, &config); err != nil {
		return nil, types.NewError(types.ErrConfigError, err, "failed to parse config")
	}

	if err := ValidateConfig(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// ValidateConfig applies defaults to config and validates it
func ValidateConfig(config *types.Config) error {
	if config == nil {
		return types.NewError(types.ErrConfigError, nil, "config is required")
	}

	config.ApplyDefaults()

	if err := validate.Struct(config); err != nil {
		return types.NewError(types.ErrConfigError, err, "validation failed")
	}
	if _, err := ValidateSolanaAddress(config.MerchantAddress); err != nil {
		return types.NewError(types.ErrConfigError, err, "invalid merchant address")
	}
	if _, err := ValidateAmount(config.PriceSOL); err != nil {
		return types.NewError(types.ErrConfigError, err, "invalid price")
	}
	if _, err := config.PriceLamports(); err != nil {
		return types.NewError(types.ErrConfigError, err, "invalid price")
	}
	return nil
}
