package reference

import (
	"encoding/json"
	"fmt"
)

// Flag is a tri-valued status flag. On disk it is the string "true",
// the string "false", or NULL.
type Flag int8

const (
	FlagUnset Flag = iota
	FlagFalse
	FlagTrue
)

// ParseFlag converts the stored representation into a Flag.
// Anything other than "true" or "false" is unset.
func ParseFlag(s string) Flag {
	switch s {
	case "true":
		return FlagTrue
	case "false":
		return FlagFalse
	default:
		return FlagUnset
	}
}

// BoolFlag converts a bool into FlagTrue or FlagFalse.
func BoolFlag(b bool) Flag {
	if b {
		return FlagTrue
	}
	return FlagFalse
}

// IsTrue reports whether the flag is explicitly true. Unset reads as false.
func (f Flag) IsTrue() bool {
	return f == FlagTrue
}

// String returns "true", "false", or "" for unset.
func (f Flag) String() string {
	switch f {
	case FlagTrue:
		return "true"
	case FlagFalse:
		return "false"
	default:
		return ""
	}
}

// Or returns FlagTrue if either flag is true, FlagFalse if either is set.
func (f Flag) Or(other Flag) Flag {
	if f == FlagTrue || other == FlagTrue {
		return FlagTrue
	}
	if f == FlagFalse || other == FlagFalse {
		return FlagFalse
	}
	return FlagUnset
}

func (f Flag) MarshalJSON() ([]byte, error) {
	if f == FlagUnset {
		return []byte("null"), nil
	}
	return json.Marshal(f.String())
}

func (f *Flag) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = FlagUnset
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = ParseFlag(s)
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = BoolFlag(b)
		return nil
	}
	return fmt.Errorf("cannot unmarshal %s into Flag", string(data))
}
