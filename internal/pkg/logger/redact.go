package logger

import (
	"regexp"
	"strings"
)

var (
	emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	tokenRegex = regexp.MustCompile(`((?:token|key)=)[^&\s"]+`)
)

// RedactEmail masks an email address for safe logging.
// "john.doe@example.com" → "jo***@example.com"
// Short local parts (≤2 chars) are fully masked: "ab@example.com" → "***@example.com"
func RedactEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "***@***"
	}
	name := parts[0]
	if len(name) > 2 {
		return name[:2] + "***@" + parts[1]
	}
	return "***@" + parts[1]
}

// RedactTokens masks API credentials passed as query parameters.
// "…/events/1/?token=ABC" → "…/events/1/?token=***"
func RedactTokens(s string) string {
	return tokenRegex.ReplaceAllString(s, "${1}***")
}

func redactValue(key, val string) string {
	key = strings.ToLower(key)
	if strings.Contains(key, "token") || strings.Contains(key, "api_key") {
		return "***"
	}
	val = RedactTokens(val)
	return emailRegex.ReplaceAllStringFunc(val, RedactEmail)
}
