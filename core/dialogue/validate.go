package dialogue

import (
	"strings"
	"unicode/utf8"
)

// OneOf accepts only the listed options, compared after trimming spaces.
func OneOf(hint string, options ...string) Validator {
	return func(input string) (string, error) {
		in := strings.TrimSpace(input)
		for _, opt := range options {
			if in == opt {
				return opt, nil
			}
		}
		return "", Invalid(hint)
	}
}

// NonEmpty rejects blank input and trims the accepted value.
func NonEmpty(hint string) Validator {
	return func(input string) (string, error) {
		in := strings.TrimSpace(input)
		if in == "" {
			return "", Invalid(hint)
		}
		return in, nil
	}
}

// MaxLen rejects answers longer than max runes.
func MaxLen(max int, hint string) Validator {
	return func(input string) (string, error) {
		if utf8.RuneCountInString(input) > max {
			return "", Invalid(hint)
		}
		return input, nil
	}
}

// Chain runs validators in order, feeding each the previous value.
func Chain(validators ...Validator) Validator {
	return func(input string) (string, error) {
		value := input
		for _, v := range validators {
			if v == nil {
				continue
			}
			out, err := v(value)
			if err != nil {
				return "", err
			}
			value = out
		}
		return value, nil
	}
}
