package timeclock

import "strings"

// ActionKind is the semantic meaning of a punch label.
type ActionKind int

const (
	Other ActionKind = iota
	ClockIn
	ClockOut
	BreakStart
	BreakEnd
)

func (k ActionKind) String() string {
	switch k {
	case ClockIn:
		return "CLOCK_IN"
	case ClockOut:
		return "CLOCK_OUT"
	case BreakStart:
		return "BREAK_START"
	case BreakEnd:
		return "BREAK_END"
	default:
		return "OTHER"
	}
}

// classifyRules are checked in order; the first substring match wins, so a
// label such as "Clock In / Break Start" is a clock-in.
var classifyRules = []struct {
	needle string
	kind   ActionKind
}{
	{"CLOCK IN", ClockIn},
	{"CLOCK OUT", ClockOut},
	{"START", BreakStart},
	{"END", BreakEnd},
}

// Classify maps a free-text punch label to an ActionKind. Matching is
// case-insensitive and empty labels are Other.
func Classify(label string) ActionKind {
	upper := strings.ToUpper(label)
	for _, rule := range classifyRules {
		if strings.Contains(upper, rule.needle) {
			return rule.kind
		}
	}
	return Other
}
