package bug

import (
	"errors"
	"fmt"
)

// ErrInvalidCriticality is returned when a label is outside the closed
// criticality set.
var ErrInvalidCriticality = errors.New("invalid criticality")

// InvalidCode is the sentinel Encode returns for labels it cannot map.
const InvalidCode = -1

// Criticality is the severity of a bug.
type Criticality uint8

const (
	CriticalityLow Criticality = iota
	CriticalityMedium
	CriticalityHigh

	// CriticalityUnknown is any ledger code outside 0..2.
	CriticalityUnknown
)

// Selectable lists the criticalities a user can pick, in display order.
var Selectable = []Criticality{CriticalityLow, CriticalityMedium, CriticalityHigh}

// String returns the label used on screen and in Encode.
func (c Criticality) String() string {
	switch c {
	case CriticalityLow:
		return "Low"
	case CriticalityMedium:
		return "Medium"
	case CriticalityHigh:
		return "High"
	default:
		return "Unknown"
	}
}

// Code returns the ledger code for c. The second result is false for
// CriticalityUnknown, which has no code of its own.
func (c Criticality) Code() (uint8, bool) {
	switch c {
	case CriticalityLow, CriticalityMedium, CriticalityHigh:
		return uint8(c), true
	default:
		return 0, false
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c Criticality) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// ParseCriticality maps a label to its Criticality.
//
// Only the selectable labels are accepted; "Unknown" is a display state and
// cannot be chosen.
func ParseCriticality(label string) (Criticality, error) {
	switch label {
	case "Low":
		return CriticalityLow, nil
	case "Medium":
		return CriticalityMedium, nil
	case "High":
		return CriticalityHigh, nil
	default:
		return CriticalityUnknown, fmt.Errorf("%w: %q (want Low, Medium or High)", ErrInvalidCriticality, label)
	}
}

// Encode maps a label to its ledger code, or InvalidCode if the label is not
// selectable.
func Encode(label string) int {
	c, err := ParseCriticality(label)
	if err != nil {
		return InvalidCode
	}
	code, _ := c.Code()
	return int(code)
}

// Decode maps a ledger code to a Criticality. It always returns a value.
func Decode(code int64) Criticality {
	switch code {
	case 0:
		return CriticalityLow
	case 1:
		return CriticalityMedium
	case 2:
		return CriticalityHigh
	default:
		return CriticalityUnknown
	}
}
