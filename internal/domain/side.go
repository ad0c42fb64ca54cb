package domain

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// Side distinguishes purchases from sales in the transaction log.
type Side int

const (
	// SideUnknown is the zero value and never valid on a transaction.
	SideUnknown Side = iota
	// SideBuy marks shares bought against the cash balance.
	SideBuy
	// SideSell marks shares sold back into the cash balance.
	SideSell
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "BUY"
	case SideSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether s is one of the two trade sides.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// ParseSide converts the wire form ("buy"/"sell", case-insensitive) into a Side.
func ParseSide(raw string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "BUY":
		return SideBuy, nil
	case "SELL":
		return SideSell, nil
	default:
		return SideUnknown, errors.Errorf("unknown trade side %q", raw)
	}
}

// MarshalJSON encodes the side in its string form.
func (s Side) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts the string form produced by MarshalJSON.
func (s *Side) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	side, err := ParseSide(raw)
	if err != nil {
		return err
	}

	*s = side
	return nil
}
