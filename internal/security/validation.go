// Package security provides input validation for everything that arrives from
// peers, the host UI or the command line.
package security

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"advisory-canvas/internal/errors"
	"advisory-canvas/internal/models"
)

// Validation patterns
var (
	// Ticker pattern: uppercase letters, digits, class separators and index/FX markers
	// (BRK.A, BF-B, M&M, ^GSPC, EURUSD=X)
	tickerPattern = regexp.MustCompile(`^\^?[A-Z0-9][A-Z0-9.&=\-]{0,19}$`)

	// Period pattern: short alphanumeric window codes (1D, 5D, 3M, YTD, 15m)
	periodPattern = regexp.MustCompile(`^[A-Za-z0-9]{1,8}$`)

	// Identifier pattern for shape IDs, peer IDs and session names
	identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_\-]{1,64}$`)

	// Named CSS colors (red, steelblue, ...)
	namedColorPattern = regexp.MustCompile(`^[a-z]{3,20}$`)

	// SQL injection patterns
	sqlInjectionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(union\s+select|select\s+\*|drop\s+table|insert\s+into|delete\s+from|update\s+.*\s+set)`),
		regexp.MustCompile(`(?i)(--|;|'|"|\\x00|\\n|\\r)`),
	}
)

var colorValidate = validator.New()

// InputValidator provides input validation functionality.
type InputValidator struct {
	strictMode bool
}

// NewInputValidator creates a new input validator.
func NewInputValidator(strictMode bool) *InputValidator {
	return &InputValidator{strictMode: strictMode}
}

// ValidateTicker validates a ticker symbol.
func (v *InputValidator) ValidateTicker(ticker string) error {
	if ticker == "" {
		return errors.NewValidationError("ticker", ticker, "ticker cannot be empty")
	}
	if len(ticker) > 20 {
		return errors.NewValidationError("ticker", ticker, "ticker too long (max 20 characters)")
	}
	if !tickerPattern.MatchString(ticker) {
		return errors.NewValidationError("ticker", ticker, "invalid ticker format")
	}
	return nil
}

// ValidatePeriod validates a chart period code.
func (v *InputValidator) ValidatePeriod(period string) error {
	if period == "" {
		return errors.NewValidationError("period", period, "period cannot be empty")
	}
	if !periodPattern.MatchString(period) {
		return errors.NewValidationError("period", period, "invalid period format")
	}
	return nil
}

// ValidateChartKey validates both parts of a chart key.
func (v *InputValidator) ValidateChartKey(key models.ChartKey) error {
	if err := v.ValidateTicker(key.Ticker); err != nil {
		return err
	}
	return v.ValidatePeriod(key.Period)
}

// ValidateIdentifier validates a shape ID, peer ID or session name.
func (v *InputValidator) ValidateIdentifier(field, id string) error {
	if id == "" {
		return errors.NewValidationError(field, id, "identifier cannot be empty")
	}
	if !identifierPattern.MatchString(id) {
		return errors.NewValidationError(field, id, "invalid identifier format")
	}
	if v.strictMode && v.containsInjection(id) {
		return errors.NewValidationError(field, id, "invalid characters detected")
	}
	return nil
}

// ValidateShapeID validates a shape ID.
func (v *InputValidator) ValidateShapeID(id string) error {
	return v.ValidateIdentifier("shape_id", id)
}

// ValidateColor accepts hex, rgb(a), hsl(a) and lowercase named colors.
func (v *InputValidator) ValidateColor(color string) error {
	color = strings.TrimSpace(color)
	if color == "" {
		return errors.NewValidationError("color", color, "color cannot be empty")
	}
	if namedColorPattern.MatchString(color) {
		return nil
	}
	if err := colorValidate.Var(color, "hexcolor|rgb|rgba|hsl|hsla"); err != nil {
		return errors.NewValidationError("color", color, "unsupported color format")
	}
	return nil
}

// ValidateStrokeWidth validates a stroke width in pixels.
func (v *InputValidator) ValidateStrokeWidth(width float64) error {
	if width <= 0 {
		return errors.NewValidationError("stroke_width", width, "stroke width must be positive")
	}
	if width > 50 {
		return errors.NewValidationError("stroke_width", width, "stroke width exceeds maximum allowed")
	}
	return nil
}

// containsInjection checks for SQL injection patterns.
func (v *InputValidator) containsInjection(input string) bool {
	for _, pattern := range sqlInjectionPatterns {
		if pattern.MatchString(input) {
			return true
		}
	}
	return false
}

// IsTicker reports whether s is a well-formed ticker.
func IsTicker(s string) bool {
	return tickerPattern.MatchString(s)
}

// IsPeriod reports whether s is a well-formed period code.
func IsPeriod(s string) bool {
	return periodPattern.MatchString(s)
}

// IsIdentifier reports whether s is a well-formed identifier.
func IsIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}

// SanitizeTicker normalizes a ticker typed by a user.
func SanitizeTicker(ticker string) string {
	ticker = strings.TrimSpace(strings.ToUpper(ticker))

	var result strings.Builder
	for _, r := range ticker {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune(".&=-^", r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// SanitizeChartKey normalizes a chart key typed by a user.
func SanitizeChartKey(key models.ChartKey) models.ChartKey {
	return models.ChartKey{
		Ticker: SanitizeTicker(key.Ticker),
		Period: strings.TrimSpace(key.Period),
	}
}
