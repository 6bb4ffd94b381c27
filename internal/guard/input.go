// Package guard performs input and output safety checks. Both checks are pure:
// they report violations and overrides explicitly instead of mutating their
// arguments.
package guard

import (
	"errors"
	"fmt"
	"strings"
)

// Terminal guard violations. Handlers map these to 400; they are never retried.
var (
	ErrInputTooLong = errors.New("input exceeds max length")
	ErrUnsafeInput  = errors.New("input failed injection guard")
)

var injectionPatterns = []string{
	"ignore previous instructions",
	"system:",
	"[inst]",
	"[/inst]",
	"act as",
	"you are now",
	"forget all",
	"disregard",
	"developer mode",
	"jailbreak",
	"bypass",
	"pretend you",
	"<|system|>",
	"[system]",
	"###instruction",
}

// CheckInput validates inbound text before any processing or side effects.
func CheckInput(text string, maxLength int) error {
	if len(text) > maxLength {
		return fmt.Errorf("%w (%d)", ErrInputTooLong, maxLength)
	}
	lowered := strings.ToLower(text)
	for _, pattern := range injectionPatterns {
		if strings.Contains(lowered, pattern) {
			return ErrUnsafeInput
		}
	}
	return nil
}
