package converter

import (
	"strings"
	"time"

	"github.com/vjeantet/jodaTime"
)

// datePattern is a configured date format. Patterns holding the Go reference
// time are Go layouts; anything else is a yyyy-MM-dd style pattern.
type datePattern string

func (p datePattern) goLayout() bool {
	s := string(p)
	return strings.Contains(s, "2006") || strings.Contains(s, "15:04")
}

func (p datePattern) format(t time.Time) string {
	if p.goLayout() {
		return t.Format(string(p))
	}
	return jodaTime.Format(string(p), t)
}

func (p datePattern) parse(s string, loc *time.Location) (time.Time, error) {
	if p.goLayout() {
		return time.ParseInLocation(string(p), s, loc)
	}
	return jodaTime.ParseInLocation(string(p), s, loc.String())
}
