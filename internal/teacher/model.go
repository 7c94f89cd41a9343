package teacher

import (
	"encoding/json"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Availability statuses a teacher can publish.
const (
	StatusAvailable    = "available"
	StatusNotAvailable = "not_available"
	StatusOnLeave      = "on_leave"
	StatusLunch        = "lunch"
	StatusInMeeting    = "in_meeting"
)

// MaxStatusNoteLen bounds the free-text status note, in characters.
const MaxStatusNoteLen = 100

var Statuses = []string{StatusAvailable, StatusNotAvailable, StatusOnLeave, StatusLunch, StatusInMeeting}

// ValidStatus reports whether s is one of Statuses.
func ValidStatus(s string) bool {
	for _, v := range Statuses {
		if v == s {
			return true
		}
	}
	return false
}

// Teacher is a stored teacher record.
type Teacher struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Subject      *string    `json:"subject"`
	Department   *string    `json:"department"`
	Phone        *string    `json:"phone"`
	Office       *string    `json:"office"`
	Status       string     `json:"status"`
	StatusNote   *string    `json:"status_note"`
	StatusUntil  *time.Time `json:"status_until"`
	// AvailableUntil is the legacy name of StatusUntil. It is only read as a
	// fallback for rows that predate the rename and is cleared by any write
	// to StatusUntil.
	AvailableUntil *time.Time `json:"available_until,omitempty"`
	QRCode         *string    `json:"qr_code"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (t *Teacher) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	t.PasswordHash = string(hash)
	return nil
}

func (t *Teacher) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword([]byte(t.PasswordHash), []byte(pwd))
}

// ReturnAt resolves the "available until" timestamp, preferring status_until
// over the legacy available_until column.
func (t Teacher) ReturnAt() *time.Time {
	if t.StatusUntil != nil {
		return t.StatusUntil
	}
	return t.AvailableUntil
}

// Profile is the public view of a teacher returned to students after a scan.
type Profile struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Email       *string    `json:"email"`
	Subject     *string    `json:"subject"`
	Department  *string    `json:"department"`
	Phone       *string    `json:"phone"`
	Office      *string    `json:"office"`
	Status      *string    `json:"status"`
	StatusNote  *string    `json:"status_note"`
	StatusUntil *time.Time `json:"status_until"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Profile strips credentials and the QR reference.
func (t Teacher) Profile() Profile {
	p := Profile{
		ID:          t.ID,
		Name:        t.Name,
		Subject:     t.Subject,
		Department:  t.Department,
		Phone:       t.Phone,
		Office:      t.Office,
		StatusNote:  t.StatusNote,
		StatusUntil: t.ReturnAt(),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if t.Email != "" {
		email := t.Email
		p.Email = &email
	}
	if t.Status != "" {
		status := t.Status
		p.Status = &status
	}
	return p
}

// Listing is the directory view of a teacher. Contact fields are only set
// for single-teacher lookups.
type Listing struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Subject    *string    `json:"subject"`
	Department *string    `json:"department"`
	Office     *string    `json:"office"`
	QRCode     *string    `json:"qr_code,omitempty"`
	Phone      *string    `json:"phone,omitempty"`
	Email      string     `json:"email,omitempty"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
}

func (t Teacher) Listing() Listing {
	return Listing{
		ID:         t.ID,
		Name:       t.Name,
		Subject:    t.Subject,
		Department: t.Department,
		Office:     t.Office,
		QRCode:     t.QRCode,
	}
}

func (t Teacher) Contact() Listing {
	l := t.Listing()
	l.Phone = t.Phone
	l.Email = t.Email
	created := t.CreatedAt
	l.CreatedAt = &created
	return l
}

// ScanEvent is one append-only QR scan log entry.
type ScanEvent struct {
	ID        string    `json:"id"`
	TeacherID string    `json:"teacher_id"`
	ScannedAt time.Time `json:"scanned_at"`
	IPAddress string    `json:"ip_address"`
}

// NewTeacher contains what is needed to register a teacher.
type NewTeacher struct {
	Name       string  `json:"name" binding:"required"`
	Email      string  `json:"email" binding:"required,email"`
	Password   string  `json:"password" binding:"required,min=6"`
	Subject    string  `json:"subject" binding:"required"`
	Department string  `json:"department" binding:"required"`
	Phone      *string `json:"phone"`
	Office     *string `json:"office"`
}

// Field is a JSON field that records whether it was present in the request,
// so an explicit null can be told apart from an omitted key.
type Field[T any] struct {
	Set   bool
	Value *T
}

func (f *Field[T]) UnmarshalJSON(b []byte) error {
	f.Set = true
	if string(b) == "null" {
		f.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	f.Value = &v
	return nil
}

// Value returns a Field holding v.
func Value[T any](v T) Field[T] {
	return Field[T]{Set: true, Value: &v}
}

// Null returns a Field that clears the column.
func Null[T any]() Field[T] {
	return Field[T]{Set: true}
}

// Update is a partial profile update. Empty strings in the plain pointer
// fields are ignored; Field values are applied whenever present.
type Update struct {
	Name       *string `json:"name"`
	Subject    *string `json:"subject"`
	Department *string `json:"department"`
	Status     *string `json:"status"`

	Phone      Field[string] `json:"phone"`
	Office     Field[string] `json:"office"`
	StatusNote Field[string] `json:"status_note"`
	// StatusUntil accepts RFC 3339 or datetime-local input; "" clears it.
	StatusUntil Field[string] `json:"status_until"`
	// AvailableUntil is accepted as an alias of StatusUntil.
	AvailableUntil Field[string] `json:"available_until"`
}

// Changes is the validated, normalized form of an Update handed to repositories.
type Changes struct {
	Name        *string
	Subject     *string
	Department  *string
	Status      *string
	Phone       Field[string]
	Office      Field[string]
	StatusNote  Field[string]
	StatusUntil Field[time.Time]
}

func (c Changes) empty() bool {
	return c.Name == nil && c.Subject == nil && c.Department == nil && c.Status == nil &&
		!c.Phone.Set && !c.Office.Set && !c.StatusNote.Set && !c.StatusUntil.Set
}

// ListOptions filters teacher listings.
type ListOptions struct {
	Department  string
	NewestFirst bool
}

// Analytics summarizes the scans of one teacher's QR code.
type Analytics struct {
	TotalScans  int         `json:"totalScans"`
	TodayScans  int         `json:"todayScans"`
	WeeklyScans int         `json:"weeklyScans"`
	RecentScans []ScanEvent `json:"recentScans"`
}

// Stats aggregates all teachers for the admin dashboard.
type Stats struct {
	Total                int            `json:"total"`
	ByStatus             map[string]int `json:"byStatus"`
	ByDepartment         map[string]int `json:"byDepartment"`
	BySubject            map[string]int `json:"bySubject"`
	RegistrationsByMonth map[string]int `json:"registrationsByMonth"`
}

func cleanString(s string) string {
	return strings.TrimSpace(s)
}

func optional(p *string) *string {
	if p == nil {
		return nil
	}
	v := cleanString(*p)
	if v == "" {
		return nil
	}
	return &v
}
