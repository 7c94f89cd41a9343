package qrcode

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"knowmystatus/internal/teacher"
)

// ErrInvalidPayload is returned for payloads without a teacher id or name,
// JSON that is not an object, and empty text.
var ErrInvalidPayload = errors.New("invalid QR code data")

// Payload is the JSON object embedded in a teacher's QR code. Field order is
// the wire order; absent values encode as null.
type Payload struct {
	TeacherID          string  `json:"teacherId"`
	Name               string  `json:"name"`
	Subject            *string `json:"subject"`
	Department         *string `json:"department"`
	Phone              *string `json:"phone"`
	Office             *string `json:"office"`
	Email              *string `json:"email"`
	Status             *string `json:"status"`
	StatusNote         *string `json:"status_note"`
	StatusUntil        *string `json:"status_until"`
	ExpectedReturnDate *string `json:"expected_return_date"`
	ExpectedReturnTime *string `json:"expected_return_time"`

	// Bare is set when the scanned text was a plain identifier rather than
	// a JSON object.
	Bare bool `json:"-"`
}

// FromProfile assembles the payload for p, deriving the display date and
// time from its status_until in f's locale and zone.
func FromProfile(p teacher.Profile, f Formatter) (Payload, error) {
	out := Payload{
		TeacherID:  strings.TrimSpace(p.ID),
		Name:       strings.TrimSpace(p.Name),
		Subject:    p.Subject,
		Department: p.Department,
		Phone:      p.Phone,
		Office:     p.Office,
		Email:      p.Email,
		Status:     p.Status,
		StatusNote: p.StatusNote,
	}
	if err := out.Validate(); err != nil {
		return Payload{}, err
	}
	if p.StatusUntil != nil {
		until := p.StatusUntil.UTC().Format(time.RFC3339)
		date, clock := f.Date(*p.StatusUntil), f.Time(*p.StatusUntil)
		out.StatusUntil = &until
		out.ExpectedReturnDate = &date
		out.ExpectedReturnTime = &clock
	}
	return out, nil
}

// Validate checks the identifying fields. A bare identifier carries no name.
func (p Payload) Validate() error {
	if strings.TrimSpace(p.TeacherID) == "" {
		return fmt.Errorf("%w: missing teacherId", ErrInvalidPayload)
	}
	if !p.Bare && strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidPayload)
	}
	return nil
}

// Marshal encodes p as the compact JSON stored in the QR image.
func (p Payload) Marshal() ([]byte, error) {
	return json.Marshal(p)
}

// ParseText interprets decoded QR text. A JSON object is validated as a
// payload, any other JSON value is rejected, and text that is not JSON is
// taken as a bare teacher identifier.
func ParseText(text string) (Payload, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Payload{}, fmt.Errorf("%w: empty", ErrInvalidPayload)
	}
	if !json.Valid([]byte(text)) {
		return Payload{TeacherID: text, Bare: true}, nil
	}
	if text[0] != '{' {
		return Payload{}, fmt.Errorf("%w: not an object", ErrInvalidPayload)
	}
	return parseObject([]byte(text))
}

// ParseJSON decodes the qrData value of a scan request: either the payload
// object itself or a JSON string holding the scanned text.
func ParseJSON(raw json.RawMessage) (Payload, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Payload{}, fmt.Errorf("%w: empty", ErrInvalidPayload)
	}
	switch raw[0] {
	case '{':
		return parseObject(raw)
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Payload{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		return ParseText(s)
	default:
		return Payload{}, fmt.Errorf("%w: not an object", ErrInvalidPayload)
	}
}

func parseObject(raw []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := p.Validate(); err != nil {
		return Payload{}, err
	}
	return p, nil
}

// Merge returns the live record with any null field filled from the
// embedded payload. The live record always wins where it has a value.
func Merge(live teacher.Profile, embedded Payload) teacher.Profile {
	fill := func(dst **string, src *string) {
		if *dst == nil && src != nil {
			v := *src
			*dst = &v
		}
	}
	fill(&live.Subject, embedded.Subject)
	fill(&live.Department, embedded.Department)
	fill(&live.Phone, embedded.Phone)
	fill(&live.Office, embedded.Office)
	fill(&live.Email, embedded.Email)
	fill(&live.Status, embedded.Status)
	fill(&live.StatusNote, embedded.StatusNote)
	if live.StatusUntil == nil && embedded.StatusUntil != nil {
		if ts, err := time.Parse(time.RFC3339, *embedded.StatusUntil); err == nil {
			live.StatusUntil = &ts
		}
	}
	if live.Name == "" {
		live.Name = embedded.Name
	}
	return live
}
