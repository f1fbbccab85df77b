package api

import "strings"

// validUsername checks length (3-20) and character set (alphanumeric plus
// underscore).
func validUsername(username string) bool {
	if len(username) < 3 || len(username) > 20 {
		return false
	}
	for _, char := range username {
		if !((char >= 'a' && char <= 'z') ||
			(char >= 'A' && char <= 'Z') ||
			(char >= '0' && char <= '9') ||
			char == '_') {
			return false
		}
	}
	return true
}

// validMessageContent trims whitespace and checks length (1-500).
func validMessageContent(content string) bool {
	content = strings.TrimSpace(content)
	return len(content) >= 1 && len(content) <= 500
}
