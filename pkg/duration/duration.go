// Package duration parses the ISO-8601 duration subset used for recipe times
// (days, hours, minutes) and renders it as a short localized string.
package duration

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/language"
)

// P[nD][T[nH][nM]]. Years, months, weeks and seconds never match.
var isoDuration = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?)?$`)

// Parsed is a decoded duration. Hours are not normalized into days.
type Parsed struct {
	Days    int `json:"days"`
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
}

// IsZero reports whether every component is zero.
func (p Parsed) IsZero() bool {
	return p.Days == 0 && p.Hours == 0 && p.Minutes == 0
}

// ISO encodes p back into the accepted grammar.
func (p Parsed) ISO() string {
	if p.IsZero() {
		return "P0D"
	}
	var b strings.Builder
	b.WriteByte('P')
	if p.Days > 0 {
		b.WriteString(strconv.Itoa(p.Days))
		b.WriteByte('D')
	}
	if p.Hours > 0 || p.Minutes > 0 {
		b.WriteByte('T')
		if p.Hours > 0 {
			b.WriteString(strconv.Itoa(p.Hours))
			b.WriteByte('H')
		}
		if p.Minutes > 0 {
			b.WriteString(strconv.Itoa(p.Minutes))
			b.WriteByte('M')
		}
	}
	return b.String()
}

// Parse decodes iso. ok is false for the empty string, malformed input,
// unsupported components or components that overflow int.
func Parse(iso string) (Parsed, bool) {
	m := isoDuration.FindStringSubmatch(iso)
	if m == nil {
		return Parsed{}, false
	}
	var p Parsed
	for i, dst := range []*int{&p.Days, &p.Hours, &p.Minutes} {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return Parsed{}, false
		}
		*dst = n
	}
	return p, true
}

// Format renders iso in the short style of locale. The input is returned
// unchanged when it does not parse or is zero, so Format is idempotent.
func Format(iso, locale string) string {
	p, ok := Parse(iso)
	if !ok || p.IsZero() {
		return iso
	}
	return resolve(locale).format(p)
}

type unit struct {
	sep   string
	one   string
	other string
}

func (u unit) render(n int) string {
	label := u.other
	if n == 1 {
		label = u.one
	}
	return strconv.Itoa(n) + u.sep + label
}

// style follows the CLDR "unit-short" list patterns: pair joins exactly two
// parts, otherwise middle joins all but the last which uses end.
type style struct {
	day, hour, minute unit
	pair, middle, end string
}

func (s style) format(p Parsed) string {
	parts := make([]string, 0, 3)
	if p.Days > 0 {
		parts = append(parts, s.day.render(p.Days))
	}
	if p.Hours > 0 {
		parts = append(parts, s.hour.render(p.Hours))
	}
	if p.Minutes > 0 {
		parts = append(parts, s.minute.render(p.Minutes))
	}

	switch len(parts) {
	case 1:
		return parts[0]
	case 2:
		return parts[0] + s.pair + parts[1]
	}
	last := len(parts) - 1
	return strings.Join(parts[:last], s.middle) + s.end + parts[last]
}

const (
	nbsp  = "\u00a0"
	nnbsp = "\u202f"
)

var supported = []language.Tag{
	language.English,
	language.Spanish,
	language.German,
	language.French,
	language.Italian,
	language.Portuguese,
	language.Dutch,
}

// Indexed like supported.
var styles = []style{
	{
		day: unit{" ", "day", "days"}, hour: unit{" ", "hr", "hr"}, minute: unit{" ", "min", "min"},
		pair: ", ", middle: ", ", end: ", ",
	},
	{
		day: unit{" ", "d", "d"}, hour: unit{" ", "h", "h"}, minute: unit{" ", "min", "min"},
		pair: " y ", middle: ", ", end: " y ",
	},
	{
		day: unit{" ", "Tg.", "Tg."}, hour: unit{" ", "Std.", "Std."}, minute: unit{" ", "Min.", "Min."},
		pair: ", ", middle: ", ", end: " und ",
	},
	{
		day: unit{nbsp, "j", "j"}, hour: unit{nnbsp, "h", "h"}, minute: unit{nbsp, "min", "min"},
		pair: " et ", middle: ", ", end: " et ",
	},
	{
		day: unit{" ", "g", "gg"}, hour: unit{" ", "h", "h"}, minute: unit{" ", "min", "min"},
		pair: " e ", middle: ", ", end: " e ",
	},
	{
		day: unit{" ", "dia", "dias"}, hour: unit{" ", "h", "h"}, minute: unit{" ", "min", "min"},
		pair: " e ", middle: ", ", end: " e ",
	},
	{
		day: unit{" ", "dag", "dgn"}, hour: unit{" ", "u", "u"}, minute: unit{" ", "min", "min"},
		pair: ", ", middle: ", ", end: " en ",
	},
}

var matcher = language.NewMatcher(supported)

// resolve never fails: malformed or unsupported tags get English.
func resolve(locale string) style {
	tag, err := language.Parse(strings.TrimSpace(locale))
	if err != nil {
		return styles[0]
	}
	_, idx, conf := matcher.Match(tag)
	if conf == language.No || idx < 0 || idx >= len(styles) {
		return styles[0]
	}
	return styles[idx]
}
