package logger

import (
	"log/slog"
	"strings"
)

// Sensitive value prefixes that are partially masked.
var sensitiveValuePrefixes = []string{
	"utrt_",   // refresh token issued by the dev backend
	"Bearer ", // Authorization header value
	"eyJ",     // base64url-encoded JSON, i.e. a JWT header
}

// Sensitive key patterns that should be redacted.
var sensitiveKeyPatterns = []string{
	"password",
	"secret",
	"token",
	"credential",
	"auth",
	"bearer",
	"cookie",
	"api_key",
	"apikey",
	"private_key",
}

// RedactedValue replaces sensitive values in logs and printed config.
const RedactedValue = "***REDACTED***"

// redactSensitive checks if an attribute contains sensitive data
// and redacts it if necessary.
func redactSensitive(a slog.Attr) slog.Attr {
	// Known token shapes take priority over key-based detection.
	if a.Value.Kind() == slog.KindString {
		strVal := a.Value.String()
		if prefix, ok := sensitivePrefix(strVal); ok {
			return slog.String(a.Key, maskValue(strVal, prefix))
		}

		if strVal != "" && IsSensitiveKey(a.Key) {
			return slog.String(a.Key, RedactedValue)
		}
	}

	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		newAttrs := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			newAttrs[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(newAttrs...)}
	}

	return a
}

func sensitivePrefix(value string) (string, bool) {
	for _, prefix := range sensitiveValuePrefixes {
		if !strings.HasPrefix(value, prefix) {
			continue
		}
		// "eyJ" alone is too common; require the three-segment JWT shape.
		if prefix == "eyJ" && strings.Count(value, ".") != 2 {
			continue
		}
		return prefix, true
	}
	return "", false
}

// maskValue partially masks a sensitive value, keeping prefix and hints.
// Format: prefix + first 3 chars + "..." + last 3 chars
func maskValue(value, prefix string) string {
	if len(value) <= len(prefix)+6 {
		return prefix + "***"
	}

	body := value[len(prefix):]
	return prefix + body[:3] + "..." + body[len(body)-3:]
}

// RedactString manually redacts a string value.
// Use this when you need to redact a value before logging or printing.
func RedactString(value string) string {
	if prefix, ok := sensitivePrefix(value); ok {
		return maskValue(value, prefix)
	}
	return value
}

// IsSensitiveKey checks if a key name suggests sensitive content.
func IsSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(keyLower, pattern) {
			return true
		}
	}
	return false
}

// IsSensitiveValue checks if a value appears to be a credential.
func IsSensitiveValue(value string) bool {
	_, ok := sensitivePrefix(value)
	return ok
}
