package nbastore

import (
	"errors"
	"fmt"
	"strconv"
)

// StatKind tags how a textually stored statistic value should be read
// back: as an integer, a float or left as a string.
type StatKind string

const (
	StatInteger StatKind = "Integer"
	StatFloat   StatKind = "Float"
	StatString  StatKind = "String"
)

var ErrUnsupportedStatType = errors.New("unsupported stat type")

// encodeStatValue converts a statistic value into its storage form and
// kind tag. Only int, int64, float64 and string are accepted.
func encodeStatValue(value any) (string, StatKind, error) {
	switch v := value.(type) {
	case int:
		return strconv.Itoa(v), StatInteger, nil
	case int64:
		return strconv.FormatInt(v, 10), StatInteger, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), StatFloat, nil
	case string:
		return v, StatString, nil
	default:
		return "", "", fmt.Errorf("%w: %T", ErrUnsupportedStatType, value)
	}
}

// decodeStatValue is the inverse of encodeStatValue, integer values
// come back as int64, float values as float64.
func decodeStatValue(text string, kind StatKind) (any, error) {
	switch kind {
	case StatInteger:
		return strconv.ParseInt(text, 10, 64)
	case StatFloat:
		return strconv.ParseFloat(text, 64)
	case StatString:
		return text, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedStatType, kind)
	}
}
