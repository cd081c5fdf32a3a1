package scheduling

import (
	"encoding/json"
	"math/bits"
	"sort"
	"strings"
	"time"
	"unicode"
)

// WeekdaySet is a set of weekdays stored as a bit mask, bit i standing for
// time.Weekday(i) (0 = Sunday).
type WeekdaySet uint8

// DefaultWeekdays is used when a schedule text names no day at all.
var DefaultWeekdays = NewWeekdaySet(time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday)

// NewWeekdaySet builds a set from the given days.
func NewWeekdaySet(days ...time.Weekday) WeekdaySet {
	var s WeekdaySet
	for _, d := range days {
		s = s.With(d)
	}
	return s
}

// With returns the set extended by d.
func (s WeekdaySet) With(d time.Weekday) WeekdaySet {
	if d < time.Sunday || d > time.Saturday {
		return s
	}
	return s | 1<<uint(d)
}

// Has reports whether d is in the set.
func (s WeekdaySet) Has(d time.Weekday) bool {
	if d < time.Sunday || d > time.Saturday {
		return false
	}
	return s&(1<<uint(d)) != 0
}

// Len returns the number of days in the set.
func (s WeekdaySet) Len() int {
	return bits.OnesCount8(uint8(s) & 0x7f)
}

// IsEmpty reports whether the set holds no day.
func (s WeekdaySet) IsEmpty() bool {
	return s.Len() == 0
}

// Days lists the members in ascending weekday order, Sunday first.
func (s WeekdaySet) Days() []time.Weekday {
	days := make([]time.Weekday, 0, s.Len())
	for d := time.Sunday; d <= time.Saturday; d++ {
		if s.Has(d) {
			days = append(days, d)
		}
	}
	return days
}

// Ints lists the members as integers 0-6.
func (s WeekdaySet) Ints() []int {
	days := s.Days()
	out := make([]int, len(days))
	for i, d := range days {
		out[i] = int(d)
	}
	return out
}

func (s WeekdaySet) String() string {
	days := s.Days()
	names := make([]string, len(days))
	for i, d := range days {
		names[i] = d.String()[:3]
	}
	return strings.Join(names, ",")
}

// MarshalJSON encodes the set as an ascending array of weekday numbers.
func (s WeekdaySet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Ints())
}

// UnmarshalJSON accepts an array of weekday numbers.
func (s *WeekdaySet) UnmarshalJSON(data []byte) error {
	var days []int
	if err := json.Unmarshal(data, &days); err != nil {
		return err
	}
	var out WeekdaySet
	for _, d := range days {
		out = out.With(time.Weekday(d))
	}
	*s = out
	return nil
}

// dayFragments lists, per day, every token prefix that names it: Uzbek (Latin
// and Cyrillic), Russian and English. A fragment may belong to one day only.
var dayFragments = map[time.Weekday][]string{
	time.Monday:    {"du", "dush", "dushanba", "mon", "monday", "ду", "душ", "душанба", "пн", "пон", "понедельник"},
	time.Tuesday:   {"se", "sesh", "seshanba", "tue", "tues", "tuesday", "се", "сеш", "сешанба", "вт", "вто", "вторник"},
	time.Wednesday: {"cho", "chor", "chorshanba", "wed", "wednesday", "чо", "чор", "чоршанба", "ср", "сре", "среда"},
	time.Thursday:  {"pa", "pay", "payshanba", "thu", "thur", "thurs", "thursday", "па", "пай", "пайшанба", "чт", "чет", "четверг"},
	time.Friday:    {"ju", "jum", "juma", "fri", "friday", "жу", "жум", "жума", "пт", "пят", "пятница"},
	time.Saturday:  {"sha", "shan", "shanba", "sat", "saturday", "ша", "шан", "шанба", "сб", "суб", "суббота"},
	time.Sunday:    {"ya", "yak", "yakshanba", "sun", "sunday", "як", "якш", "якшанба", "вс", "вос", "воскресенье"},
}

// presetTokens name whole day groups and are checked before day fragments,
// so "juft" is never read as "ju" (Friday).
var presetTokens = map[string]WeekdaySet{
	"toq":      NewWeekdaySet(time.Monday, time.Wednesday, time.Friday),
	"odd":      NewWeekdaySet(time.Monday, time.Wednesday, time.Friday),
	"juft":     NewWeekdaySet(time.Tuesday, time.Thursday, time.Saturday),
	"even":     NewWeekdaySet(time.Tuesday, time.Thursday, time.Saturday),
	"daily":    NewWeekdaySet(time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday),
	"everyday": NewWeekdaySet(time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday),
}

type fragment struct {
	text string
	day  time.Weekday
}

// fragmentPriority is dayFragments flattened and ordered longest first, so the
// first prefix hit is the longest one.
var fragmentPriority = buildFragmentPriority()

func buildFragmentPriority() []fragment {
	var out []fragment
	for day, texts := range dayFragments {
		for _, text := range texts {
			out = append(out, fragment{text: text, day: day})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		li, lj := len([]rune(out[i].text)), len([]rune(out[j].text))
		if li != lj {
			return li > lj
		}
		return out[i].text < out[j].text
	})
	return out
}

// ParseWeekdays reads the days named in a free-text schedule such as
// "Dush-Chors-Juma, 18:00-19:30". Times and unknown words are ignored. When no
// day is recognised it returns DefaultWeekdays and false.
func ParseWeekdays(text string) (WeekdaySet, bool) {
	var set WeekdaySet
	for _, token := range tokenize(text) {
		if preset, ok := presetTokens[token]; ok {
			set |= preset
			continue
		}
		if day, ok := matchDay(token); ok {
			set = set.With(day)
		}
	}
	if set.IsEmpty() {
		return DefaultWeekdays, false
	}
	return set, true
}

func matchDay(token string) (time.Weekday, bool) {
	for _, f := range fragmentPriority {
		if strings.HasPrefix(token, f.text) {
			return f.day, true
		}
	}
	return 0, false
}

// tokenize splits on every non-letter and on lower-to-upper transitions, so
// "Dush-Chors" and "DushChors" both yield two tokens.
func tokenize(text string) []string {
	var (
		tokens  []string
		current []rune
		prev    rune
	)
	flush := func() {
		if len(current) > 0 {
			tokens = append(tokens, strings.ToLower(string(current)))
			current = current[:0]
		}
	}
	for _, r := range text {
		if !unicode.IsLetter(r) {
			flush()
			prev = 0
			continue
		}
		if prev != 0 && unicode.IsLower(prev) && unicode.IsUpper(r) {
			flush()
		}
		current = append(current, r)
		prev = r
	}
	flush()
	return tokens
}
