package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
)

// Validator validates request structs and sanitizes free text
type Validator struct {
	validator *validator.Validate
	logger    *zap.Logger
	sanitizer *bluemonday.Policy
	xssRegex  *regexp.Regexp
}

// NewValidator creates a validator with the custom tags eth_address,
// tx_hash and safe_text registered.
func NewValidator(logger *zap.Logger) *Validator {
	v := &Validator{
		validator: validator.New(),
		logger:    logger,
		sanitizer: bluemonday.StrictPolicy(),
		xssRegex:  regexp.MustCompile(`(?i)(<script|<iframe|<object|<embed|<link|<meta|javascript:|vbscript:|data:|on\w+\s*=)`),
	}
	v.registerCustomValidators()
	return v
}

// ValidationError represents a validation error with details
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", ve[0].Message)
}

// ValidateStruct validates a struct using struct tags
func (v *Validator) ValidateStruct(s interface{}) error {
	return v.Translate(v.validator.Struct(s))
}

// Translate converts validator field errors, such as those returned by
// gin binding, into ValidationErrors. Other errors are returned unchanged.
func (v *Validator) Translate(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	validationErrs := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		validationErrs = append(validationErrs, ValidationError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Value:   fmt.Sprintf("%v", fe.Value()),
			Message: v.getErrorMessage(fe),
		})
	}
	return validationErrs
}

// SanitizeText strips all markup from user supplied text
func (v *Validator) SanitizeText(input string) string {
	return strings.TrimSpace(v.sanitizer.Sanitize(strings.TrimSpace(input)))
}

// ValidateText checks a required free text field and returns it sanitized
func (v *Validator) ValidateText(input, fieldName string, maxLength int) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("%s cannot be empty", fieldName)
	}
	if utf8.RuneCountInString(input) > maxLength {
		return "", fmt.Errorf("%s exceeds maximum length of %d characters", fieldName, maxLength)
	}
	if v.xssRegex.MatchString(input) {
		v.logger.Warn("Potential XSS attempt detected",
			zap.String("field", fieldName))
		return "", fmt.Errorf("%s contains invalid characters", fieldName)
	}

	sanitized := v.SanitizeText(input)
	if sanitized == "" {
		return "", fmt.Errorf("%s cannot be empty", fieldName)
	}
	return sanitized, nil
}

// IsTxHash reports whether s is a 0x-prefixed 32-byte hex hash
func IsTxHash(s string) bool {
	b, err := hexutil.Decode(s)
	return err == nil && len(b) == common.HashLength
}

func (v *Validator) registerCustomValidators() {
	if err := v.RegisterTags(v.validator); err != nil {
		panic(err)
	}
}

// RegisterTags installs eth_address, tx_hash and safe_text on engine
func (v *Validator) RegisterTags(engine *validator.Validate) error {
	tags := map[string]validator.Func{
		"eth_address": func(fl validator.FieldLevel) bool {
			return common.IsHexAddress(fl.Field().String())
		},
		"tx_hash": func(fl validator.FieldLevel) bool {
			return IsTxHash(fl.Field().String())
		},
		"safe_text": func(fl validator.FieldLevel) bool {
			return !v.xssRegex.MatchString(fl.Field().String())
		},
	}
	for tag, fn := range tags {
		if err := engine.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("failed to register %s validator: %w", tag, err)
		}
	}
	return nil
}

// getErrorMessage returns a human-readable error message for validation errors
func (v *Validator) getErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", fe.Field())
	case "eth_address":
		return fmt.Sprintf("%s must be a valid Ethereum address", fe.Field())
	case "tx_hash":
		return fmt.Sprintf("%s must be a 0x-prefixed 32-byte transaction hash", fe.Field())
	case "safe_text":
		return fmt.Sprintf("%s contains invalid characters", fe.Field())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
