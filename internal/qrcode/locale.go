package qrcode

import (
	"fmt"
	"time"
)

// Date layouts per locale. Times are always rendered as zero-padded
// 12-hour clock with an AM/PM marker.
var dateLayouts = map[string]string{
	"en-US": "1/2/2006",
	"en-GB": "02/01/2006",
	"en-IN": "2/1/2006",
	"en-CA": "2006-01-02",
	"de-DE": "2.1.2006",
	"fr-FR": "02/01/2006",
	"es-ES": "2/1/2006",
}

const timeLayout = "03:04 PM"

// Formatter renders the expected return date and time shown in a payload.
type Formatter struct {
	Locale   string
	Location *time.Location
}

// DefaultFormatter formats in en-US and UTC.
var DefaultFormatter = Formatter{Locale: "en-US", Location: time.UTC}

// NewFormatter resolves a locale tag and an IANA zone name.
func NewFormatter(locale, tz string) (Formatter, error) {
	if _, ok := dateLayouts[locale]; !ok {
		return Formatter{}, fmt.Errorf("unsupported locale %q", locale)
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return Formatter{}, fmt.Errorf("load time zone %q: %w", tz, err)
	}
	return Formatter{Locale: locale, Location: loc}, nil
}

func (f Formatter) Date(t time.Time) string {
	layout, ok := dateLayouts[f.Locale]
	if !ok {
		layout = dateLayouts["en-US"]
	}
	return t.In(f.location()).Format(layout)
}

func (f Formatter) Time(t time.Time) string {
	return t.In(f.location()).Format(timeLayout)
}

func (f Formatter) location() *time.Location {
	if f.Location == nil {
		return time.UTC
	}
	return f.Location
}
