package core

import (
	"fmt"
	"strconv"
	"strings"
)

// ZoneSize is the number of slots grouped per navigation zone.
const ZoneSize = 50

// Custom challenges are bounded so the grid fits in memory and the goal
// arithmetic stays within int64.
const (
	MaxGridSlots  = 10_000
	MaxSlotNumber = 1_000_000_000
)

const customPrefix = "custom_"

// ChallengeConfig describes a savings goal template.
type ChallengeConfig struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	StartNumber int64  `json:"startNumber"`
	EndNumber   int64  `json:"endNumber"`
	TotalItems  int64  `json:"totalItems"`
	GoalAmount  int64  `json:"goalAmount"`
}

// Zone is a contiguous block of grid slots.
type Zone struct {
	Index   int     `json:"index"`
	Start   int64   `json:"start"`
	End     int64   `json:"end"`
	Numbers []int64 `json:"numbers"`
}

// Presets returns the built-in challenges. IDs are stable: stored data is
// keyed by them.
func Presets() []ChallengeConfig {
	return []ChallengeConfig{
		{
			ID:          "250",
			Name:        "ORIGINAL 250",
			Description: "El reto clásico. Ahorra de 1 a 250.",
			StartNumber: 1,
			EndNumber:   250,
			TotalItems:  250,
			GoalAmount:  31375,
		},
		{
			ID:          "100",
			Name:        "100 SOBRES",
			Description: "Método rápido. Ahorra de 1 a 100.",
			StartNumber: 1,
			EndNumber:   100,
			TotalItems:  100,
			GoalAmount:  5050,
		},
		{
			ID:          "52",
			Name:        "52 SEMANAS",
			Description: "Constancia anual. Ahorra de 1 a 52.",
			StartNumber: 1,
			EndNumber:   52,
			TotalItems:  52,
			GoalAmount:  1378,
		},
	}
}

// DefaultChallenge is the preset used when nothing else was selected.
func DefaultChallenge() ChallengeConfig {
	return Presets()[0]
}

// FindPreset looks up a built-in challenge by id.
func FindPreset(id string) (ChallengeConfig, bool) {
	for _, c := range Presets() {
		if c.ID == id {
			return c, true
		}
	}
	return ChallengeConfig{}, false
}

// IsCustomID reports whether id belongs to a user-created challenge.
func IsCustomID(id string) bool {
	return strings.HasPrefix(id, customPrefix)
}

// RangeID and ProgressionID build custom challenge ids from a unique suffix.
func RangeID(suffix string) string       { return customPrefix + "range_" + suffix }
func ProgressionID(suffix string) string { return customPrefix + "prog_" + suffix }

// NewRangeChallenge builds a consecutive-number challenge from start to end.
// The goal is the arithmetic series sum of the range.
func NewRangeChallenge(start, end int64, id string) (ChallengeConfig, error) {
	if start >= end || !withinSlotBounds(start, end) {
		return ChallengeConfig{}, ErrInvalidRange
	}
	count := end - start + 1
	if count > MaxGridSlots {
		return ChallengeConfig{}, fmt.Errorf("%w: at most %d slots", ErrInvalidRange, MaxGridSlots)
	}
	return ChallengeConfig{
		ID:          id,
		Name:        fmt.Sprintf("RETO RANGO %d-%d", start, end),
		Description: "Personalizado: Consecutivo",
		StartNumber: start,
		EndNumber:   end,
		TotalItems:  count,
		GoalAmount:  count * (start + end) / 2,
	}, nil
}

// NewProgressionChallenge builds a weekly progression: start, start+inc, ...
// for count terms. EndNumber holds the last term, so the consecutive grid
// only approximates the progression when increment != 1.
func NewProgressionChallenge(start, increment, count int64, id string) (ChallengeConfig, error) {
	if count <= 0 || !withinSlotBounds(start, increment) {
		return ChallengeConfig{}, ErrInvalidProgression
	}
	if count > MaxGridSlots {
		return ChallengeConfig{}, fmt.Errorf("%w: at most %d weeks", ErrInvalidProgression, MaxGridSlots)
	}
	return ChallengeConfig{
		ID:          id,
		Name:        fmt.Sprintf("PROGRESIÓN %d SEMANAS", count),
		Description: fmt.Sprintf("Inicio $%d, +$%d/semana", start, increment),
		StartNumber: start,
		EndNumber:   start + (count-1)*increment,
		TotalItems:  count,
		GoalAmount:  count * (2*start + (count-1)*increment) / 2,
	}, nil
}

func withinSlotBounds(vs ...int64) bool {
	for _, v := range vs {
		if v < -MaxSlotNumber || v > MaxSlotNumber {
			return false
		}
	}
	return true
}

// Valid reports whether c describes a grid that can be rendered. Stored
// configs failing it are treated as malformed.
func (c ChallengeConfig) Valid() bool {
	return c.ID != "" && c.TotalItems > 0 && c.TotalItems <= MaxGridSlots &&
		withinSlotBounds(c.StartNumber)
}

// ParseInteger parses user-entered text as a base-10 integer.
func ParseInteger(s string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", s, ErrNotInteger)
	}
	return v, nil
}

// Slots enumerates the values rendered on the grid.
func (c ChallengeConfig) Slots() []int64 {
	if c.TotalItems <= 0 {
		return nil
	}
	out := make([]int64, c.TotalItems)
	for i := range out {
		out[i] = c.StartNumber + int64(i)
	}
	return out
}

// Contains reports whether v is a slot of the grid.
func (c ChallengeConfig) Contains(v int64) bool {
	return v >= c.StartNumber && v < c.StartNumber+c.TotalItems
}

// Zones partitions the grid into blocks of size slots. Zones exist for
// navigation only and carry no ledger meaning.
func (c ChallengeConfig) Zones(size int) []Zone {
	if size <= 0 {
		size = ZoneSize
	}
	slots := c.Slots()
	var zones []Zone
	for i := 0; i < len(slots); i += size {
		end := i + size
		if end > len(slots) {
			end = len(slots)
		}
		zones = append(zones, Zone{
			Index:   len(zones),
			Start:   slots[i],
			End:     slots[end-1],
			Numbers: slots[i:end],
		})
	}
	return zones
}

// ParseRangeInput converts the text fields of the range form.
func ParseRangeInput(start, end string) (int64, int64, error) {
	s, err := ParseInteger(start)
	if err != nil {
		return 0, 0, err
	}
	e, err := ParseInteger(end)
	if err != nil {
		return 0, 0, err
	}
	return s, e, nil
}

// ParseProgressionInput converts the text fields of the progression form.
func ParseProgressionInput(start, increment, count string) (int64, int64, int64, error) {
	s, err := ParseInteger(start)
	if err != nil {
		return 0, 0, 0, err
	}
	i, err := ParseInteger(increment)
	if err != nil {
		return 0, 0, 0, err
	}
	n, err := ParseInteger(count)
	if err != nil {
		return 0, 0, 0, err
	}
	return s, i, n, nil
}
