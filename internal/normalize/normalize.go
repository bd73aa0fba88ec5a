// Package normalize cleans recognized speech into answer values.
//
// Normalize never fails: input it cannot interpret comes back trimmed, and
// callers decide whether that is good enough.
package normalize

import (
	"strconv"
	"strings"
	"unicode"

	"triage/assistant/internal/types"
)

var (
	yesWords = []string{"yes", "yeah", "yep", "yup"}
	noWords  = []string{"no", "nope", "not", "nah"}
)

const nameStrip = ".,!?;:"

func Normalize(raw string, kind types.AnswerKind) string {
	trimmed := strings.TrimSpace(raw)
	switch kind.Type {
	case types.KindName:
		return name(trimmed)
	case types.KindIntegerRange:
		return integer(trimmed, kind.Min, kind.Max)
	case types.KindYesNo:
		return yesNo(trimmed)
	case types.KindEnum:
		return enum(trimmed, kind.Options)
	default:
		return trimmed
	}
}

func name(s string) string {
	cleaned := strings.Map(func(r rune) rune {
		if strings.ContainsRune(nameStrip, r) {
			return -1
		}
		return r
	}, s)
	fields := strings.Fields(cleaned)
	if len(fields) == 0 {
		return s
	}
	for i, f := range fields {
		fields[i] = titleWord(f)
	}
	return strings.Join(fields, " ")
}

func titleWord(w string) string {
	runes := []rune(strings.ToLower(w))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func integer(s string, min, max int) string {
	digits := firstDigitRun(s)
	if digits == "" {
		return s
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < min || n > max {
		return s
	}
	return strconv.Itoa(n)
}

func firstDigitRun(s string) string {
	start := -1
	for i, r := range s {
		isDigit := r >= '0' && r <= '9'
		if isDigit && start < 0 {
			start = i
		}
		if !isDigit && start >= 0 {
			return s[start:i]
		}
	}
	if start < 0 {
		return ""
	}
	return s[start:]
}

func yesNo(s string) string {
	lower := strings.ToLower(s)
	if containsAny(lower, yesWords) {
		return "Yes"
	}
	if containsAny(lower, noWords) {
		return "No"
	}
	return s
}

func enum(s string, options []types.Option) string {
	lower := strings.ToLower(s)
	if lower == "" {
		return s
	}
	for _, opt := range options {
		if opt.Label != "" && strings.Contains(lower, strings.ToLower(opt.Label)) {
			return opt.Label
		}
		for _, alias := range opt.Aliases {
			if alias != "" && strings.Contains(lower, strings.ToLower(alias)) {
				return opt.Label
			}
		}
	}
	return s
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
