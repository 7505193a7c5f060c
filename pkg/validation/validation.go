package validation

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"weylus/internal/core/domain"
)

// MaxAccessCodeLength bounds the access code sent in the handshake header.
const MaxAccessCodeLength = 128

// ValidateServerURL validates a host websocket URL
func ValidateServerURL(urlStr string) error {
	urlStr = strings.TrimSpace(urlStr)
	if urlStr == "" {
		return fmt.Errorf("server URL is required")
	}
	u, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid server URL format: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("invalid server URL scheme %q (must be ws or wss)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("server URL must have a host")
	}
	return nil
}

// ValidateAccessCode validates the optional host access code
func ValidateAccessCode(code string) error {
	if code == "" {
		return nil
	}
	if !utf8.ValidString(code) {
		return fmt.Errorf("access code contains invalid characters")
	}
	if utf8.RuneCountInString(code) > MaxAccessCodeLength {
		return fmt.Errorf("access code is too long (max %d characters)", MaxAccessCodeLength)
	}
	if strings.ContainsAny(code, "\r\n") {
		return fmt.Errorf("access code must not contain line breaks")
	}
	return nil
}

// ValidateSensitivity validates the palm rejection sensitivity
func ValidateSensitivity(sensitivity int) error {
	if sensitivity < 0 || sensitivity > 100 {
		return fmt.Errorf("sensitivity must be in 0..100, got %d", sensitivity)
	}
	return nil
}

// ValidateVideoConfig validates a requested stream configuration
func ValidateVideoConfig(cfg domain.VideoConfig) error {
	if cfg.MaxWidth <= 0 || cfg.MaxHeight <= 0 {
		return fmt.Errorf("max width and height must be > 0")
	}
	if cfg.FrameRate <= 0 || cfg.FrameRate > 240 {
		return fmt.Errorf("frame rate must be in 1..240")
	}
	if cfg.Quality < domain.QualityLow || cfg.Quality > domain.QualityUltra {
		return fmt.Errorf("invalid quality level")
	}
	return nil
}

// ValidateUnitInterval validates that v lies in [0,1]
func ValidateUnitInterval(v float64, fieldName string) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("%s must be in [0, 1]", fieldName)
	}
	return nil
}
