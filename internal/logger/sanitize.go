package logger

import (
	"strings"
	"unicode"

	"go.uber.org/zap"
)

// Length caps for user-controlled values written to logs
const (
	MaxPathLength          = 500
	MaxUserIDLength        = 128
	MaxImageNameLength     = 255
	MaxErrorMessageLength  = 1000
	MaxGeneralStringLength = 2000
)

// SanitizeString makes s safe to log: invalid UTF-8 and control characters
// other than tab, newline and carriage return are dropped, and the result
// is cut to maxRunes (MaxGeneralStringLength when <= 0) with "..." appended.
func SanitizeString(s string, maxRunes int) string {
	if s == "" {
		return ""
	}
	if maxRunes <= 0 {
		maxRunes = MaxGeneralStringLength
	}

	var b strings.Builder
	b.Grow(len(s))
	n := 0
	for _, r := range strings.ToValidUTF8(s, "") {
		if !unicode.IsPrint(r) && r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			continue
		}
		if n == maxRunes {
			b.WriteString("...")
			break
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}

// SanitizePath sanitizes a URL path
func SanitizePath(path string) string {
	return SanitizeString(path, MaxPathLength)
}

// SanitizeError sanitizes an error message; nil yields ""
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeString(err.Error(), MaxErrorMessageLength)
}

// SanitizeUserID sanitizes a token subject
func SanitizeUserID(userID string) string {
	return SanitizeString(userID, MaxUserIDLength)
}

// UserID is the log field for the caller's token subject
func UserID(userID string) zap.Field {
	return zap.String("user_id", SanitizeUserID(userID))
}

// ImageName is the log field for an uploaded screenshot's file name
func ImageName(name string) zap.Field {
	return zap.String("image", SanitizeString(name, MaxImageNameLength))
}

// Path is the log field for a request path
func Path(path string) zap.Field {
	return zap.String("path", SanitizePath(path))
}
