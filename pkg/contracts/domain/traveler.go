package domain

import (
	"fmt"
	"strings"
)

// TravelerType identifies a visitor category in the tourism counts.
// The set is closed: three countable categories plus Total, which is always
// derived as the sum of the other three and never read from a source.
//
// The zero value is TravelerTotal so that an unset filter selects the overall count.
type TravelerType uint8

const (
	TravelerTotal TravelerType = iota
	TravelerDomestic
	TravelerForeign
	TravelerOverseas
)

var travelerNames = map[TravelerType]string{
	TravelerTotal:    "total",
	TravelerDomestic: "domestic",
	TravelerForeign:  "foreign",
	TravelerOverseas: "overseas",
}

// ConcreteTravelerTypes returns the countable categories in canonical order.
func ConcreteTravelerTypes() []TravelerType {
	return []TravelerType{TravelerDomestic, TravelerForeign, TravelerOverseas}
}

// AllTravelerTypes returns the countable categories followed by TravelerTotal.
func AllTravelerTypes() []TravelerType {
	return []TravelerType{TravelerDomestic, TravelerForeign, TravelerOverseas, TravelerTotal}
}

// ParseTravelerType parses a case-insensitive category name.
func ParseTravelerType(s string) (TravelerType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "total":
		return TravelerTotal, nil
	case "domestic":
		return TravelerDomestic, nil
	case "foreign":
		return TravelerForeign, nil
	case "overseas":
		return TravelerOverseas, nil
	}
	return TravelerTotal, fmt.Errorf("unknown traveler type %q", s)
}

func (t TravelerType) String() string {
	if name, ok := travelerNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TravelerType(%d)", uint8(t))
}

// IsConcrete reports whether t is one of the three countable categories.
func (t TravelerType) IsConcrete() bool {
	return t == TravelerDomestic || t == TravelerForeign || t == TravelerOverseas
}

// Valid reports whether t is a member of the closed set.
func (t TravelerType) Valid() bool {
	_, ok := travelerNames[t]
	return ok
}

func (t TravelerType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid traveler type %d", uint8(t))
	}
	return []byte(t.String()), nil
}

func (t *TravelerType) UnmarshalText(text []byte) error {
	parsed, err := ParseTravelerType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
