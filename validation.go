// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"fmt"
	"unicode"
	"unicode/utf8"
)

// MaxSessionIDLength bounds caller-supplied session ids.
const MaxSessionIDLength = 256

// validateFramebufferSize checks a framebuffer geometry. Zero is allowed and
// means an empty frame.
func validateFramebufferSize(op string, width, height int) error {
	if width < 0 || height < 0 {
		return validationError(op, fmt.Sprintf("negative framebuffer size %dx%d", width, height), nil)
	}
	if width > maxDesktopDimension || height > maxDesktopDimension {
		return validationError(op,
			fmt.Sprintf("framebuffer size %dx%d too large (max %d)", width, height, maxDesktopDimension), nil)
	}
	if width*height > maxRectPixels {
		return validationError(op,
			fmt.Sprintf("framebuffer area too large: %d pixels (max %d)", width*height, maxRectPixels), nil)
	}
	return nil
}

// validateSessionID rejects ids that cannot be used as map keys in logs and
// URLs.
func validateSessionID(id string) error {
	if len(id) > MaxSessionIDLength {
		return validationError("open", fmt.Sprintf("session id longer than %d bytes", MaxSessionIDLength), nil)
	}
	if !utf8.ValidString(id) {
		return validationError("open", "session id contains invalid UTF-8", nil)
	}
	for i, r := range id {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return validationError("open", fmt.Sprintf("session id contains whitespace or control character at position %d", i), nil)
		}
	}
	return nil
}

// SanitizeText makes peer-supplied text such as a desktop name safe to log
// and display. Control characters other than tab and newline become spaces;
// invalid bytes and unprintable runes become U+FFFD.
func SanitizeText(text string) string {
	if text == "" {
		return text
	}

	out := make([]rune, 0, len(text))
	for _, r := range text {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
			out = append(out, r)
		case r < 32:
			out = append(out, ' ')
		case unicode.IsPrint(r):
			out = append(out, r)
		default:
			out = append(out, utf8.RuneError)
		}
	}
	return string(out)
}
