package security

import (
	"regexp"
)

// Sensitive data patterns that should be redacted from logs
var sensitivePatterns = []*regexp.Regexp{
	// Bearer credentials first, so the header pattern below does not eat the scheme
	regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9\-._~+/]+=*`),
	regexp.MustCompile(`(?i)(access_token|refresh_token|id_token|authorization)["':=\s]*["']?([A-Za-z0-9\-._~+/]+=*)`),

	// API keys and secrets
	regexp.MustCompile(`(?i)(api_key|client_secret)["':=\s]*["']?([A-Za-z0-9\-._~+/]{16,})`),

	// Authorization codes, PKCE material and nonces
	regexp.MustCompile(`(?i)(code|code_verifier|nonce)=([A-Za-z0-9\-._~+/]{8,})`),

	// URLs with embedded tokens
	regexp.MustCompile(`(https?://[^\s]*[?&](?:token|key|secret)=)([A-Za-z0-9\-._~+/]+=*)`),
}

// redactSensitiveData applies redaction patterns to remove sensitive information
func redactSensitiveData(input string) string {
	result := input

	for _, pattern := range sensitivePatterns {
		result = pattern.ReplaceAllStringFunc(result, func(match string) string {
			// Keep the key, drop the value
			submatches := pattern.FindStringSubmatch(match)
			if len(submatches) >= 3 {
				return match[:len(match)-len(submatches[2])] + "[REDACTED]"
			}
			return "[REDACTED]"
		})
	}

	return result
}

// RedactString redacts tokens, secrets and authorization codes from s.
func RedactString(s string) string {
	return redactSensitiveData(s)
}

// Mask keeps the first four characters of a secret, for log lines that need
// to tell two values apart.
func Mask(secret string) string {
	if len(secret) <= 4 {
		return "****"
	}
	return secret[:4] + "****"
}
