package teacher

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

// Until layouts accepted besides RFC 3339. The first two are what an HTML
// datetime-local input submits.
var untilLayouts = []string{"2006-01-02T15:04", "2006-01-02T15:04:05", "2006-01-02 15:04"}

// MaxRecentScans caps the recentScans list of Analytics.
const MaxRecentScans = 10

// Service coordinates teacher accounts, status updates and scan statistics.
type Service struct {
	repo Repository
	log  *zap.Logger
	now  func() time.Time
	loc  *time.Location
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation sets the zone used for day boundaries and naive until inputs.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// NewService creates a service backed by a repository.
func NewService(repo Repository, log *zap.Logger, opts ...Option) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{repo: repo, log: log, now: time.Now, loc: time.UTC}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register validates and persists a new teacher with a hashed password.
func (s *Service) Register(ctx context.Context, in NewTeacher) (Teacher, error) {
	in.Name = cleanString(in.Name)
	in.Email = strings.ToLower(cleanString(in.Email))
	in.Subject = cleanString(in.Subject)
	in.Department = cleanString(in.Department)

	verr := &ValidationError{}
	if in.Name == "" {
		verr.add("name", "required")
	}
	if in.Email == "" {
		verr.add("email", "required")
	} else if _, err := mail.ParseAddress(in.Email); err != nil {
		verr.add("email", "invalid email address")
	}
	if len(in.Password) < 6 {
		verr.add("password", "must be at least 6 characters")
	}
	if in.Subject == "" {
		verr.add("subject", "required")
	}
	if in.Department == "" {
		verr.add("department", "required")
	}
	if err := verr.orNil(); err != nil {
		return Teacher{}, err
	}

	t := Teacher{
		Name:       in.Name,
		Email:      in.Email,
		Subject:    &in.Subject,
		Department: &in.Department,
		Phone:      optional(in.Phone),
		Office:     optional(in.Office),
		Status:     StatusAvailable,
	}
	if err := t.SetPassword(in.Password); err != nil {
		return Teacher{}, fmt.Errorf("hash password: %w", err)
	}
	created, err := s.repo.Create(ctx, t)
	if err != nil {
		return Teacher{}, err
	}
	s.log.Info("teacher registered", zap.String("teacher_id", created.ID))
	return created, nil
}

// Authenticate returns the teacher owning email when password matches.
func (s *Service) Authenticate(ctx context.Context, email, password string) (Teacher, error) {
	t, err := s.repo.GetByEmail(ctx, strings.ToLower(cleanString(email)))
	if errors.Is(err, ErrNotFound) {
		return Teacher{}, ErrInvalidCredentials
	}
	if err != nil {
		return Teacher{}, err
	}
	if err := t.CheckPassword(password); err != nil {
		return Teacher{}, ErrInvalidCredentials
	}
	return t, nil
}

func (s *Service) Get(ctx context.Context, id string) (Teacher, error) {
	return s.repo.GetByID(ctx, id)
}

// Update applies a partial profile update. Name, subject, department and
// status are only applied when non-empty; the remaining fields are applied
// whenever present, and null or "" clears them.
func (s *Service) Update(ctx context.Context, id string, in Update) (Teacher, error) {
	c, err := s.normalize(in)
	if err != nil {
		return Teacher{}, err
	}
	t, err := s.repo.Update(ctx, id, c)
	if err != nil {
		return Teacher{}, err
	}
	if c.Status != nil {
		s.log.Info("teacher status updated", zap.String("teacher_id", id), zap.String("status", *c.Status))
	}
	return t, nil
}

// StatusChange is an administrative status override.
type StatusChange struct {
	Status      string        `json:"status" binding:"required"`
	StatusNote  Field[string] `json:"status_note"`
	StatusUntil Field[string] `json:"status_until"`
}

// SetStatus overrides the status of any teacher.
func (s *Service) SetStatus(ctx context.Context, id string, in StatusChange) (Teacher, error) {
	if cleanString(in.Status) == "" {
		return Teacher{}, &ValidationError{Fields: []FieldError{{Field: "status", Error: "required"}}}
	}
	return s.Update(ctx, id, Update{Status: &in.Status, StatusNote: in.StatusNote, StatusUntil: in.StatusUntil})
}

func (s *Service) normalize(in Update) (Changes, error) {
	var c Changes
	verr := &ValidationError{}

	c.Name = optional(in.Name)
	c.Subject = optional(in.Subject)
	c.Department = optional(in.Department)
	if status := optional(in.Status); status != nil {
		if !ValidStatus(*status) {
			verr.add("status", "must be one of "+strings.Join(Statuses, ", "))
		}
		c.Status = status
	}

	if in.Phone.Set {
		c.Phone = Field[string]{Set: true, Value: optional(in.Phone.Value)}
	}
	if in.Office.Set {
		c.Office = Field[string]{Set: true, Value: optional(in.Office.Value)}
	}
	if in.StatusNote.Set {
		note := optional(in.StatusNote.Value)
		if note != nil && utf8.RuneCountInString(*note) > MaxStatusNoteLen {
			verr.add("status_note", fmt.Sprintf("must be at most %d characters", MaxStatusNoteLen))
		}
		c.StatusNote = Field[string]{Set: true, Value: note}
	}

	until := in.StatusUntil
	if !until.Set {
		until = in.AvailableUntil
	}
	if until.Set {
		c.StatusUntil = Field[time.Time]{Set: true}
		if v := optional(until.Value); v != nil {
			ts, err := s.parseUntil(*v)
			if err != nil {
				verr.add("status_until", "invalid timestamp")
			} else {
				c.StatusUntil.Value = &ts
			}
		}
	}
	return c, verr.orNil()
}

func (s *Service) parseUntil(v string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, v); err == nil {
		return ts.UTC(), nil
	}
	for _, layout := range untilLayouts {
		if ts, err := time.ParseInLocation(layout, v, s.loc); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("parse until %q", v)
}

func (s *Service) List(ctx context.Context, opts ListOptions) ([]Teacher, error) {
	return s.repo.List(ctx, opts)
}

func (s *Service) Search(ctx context.Context, query string) ([]Teacher, error) {
	query = cleanString(query)
	if query == "" {
		return nil, &ValidationError{Fields: []FieldError{{Field: "query", Error: "required"}}}
	}
	return s.repo.Search(ctx, query)
}

func (s *Service) Departments(ctx context.Context) ([]string, error) {
	return s.repo.Departments(ctx)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("teacher deleted", zap.String("teacher_id", id))
	return nil
}

// Analytics counts the scans of one teacher: all time, since local midnight
// and over the last seven days.
func (s *Service) Analytics(ctx context.Context, teacherID string) (Analytics, error) {
	scans, err := s.repo.ListScans(ctx, teacherID)
	if err != nil {
		return Analytics{}, err
	}
	now := s.now().In(s.loc)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	weekAgo := now.AddDate(0, 0, -7)

	a := Analytics{TotalScans: len(scans), RecentScans: []ScanEvent{}}
	for _, scan := range scans {
		if !scan.ScannedAt.Before(midnight) {
			a.TodayScans++
		}
		if !scan.ScannedAt.Before(weekAgo) {
			a.WeeklyScans++
		}
	}
	if len(scans) > MaxRecentScans {
		scans = scans[:MaxRecentScans]
	}
	a.RecentScans = append(a.RecentScans, scans...)
	return a, nil
}

// RecentlyScanned returns the distinct teachers scanned within window, by name.
func (s *Service) RecentlyScanned(ctx context.Context, window time.Duration) ([]Teacher, error) {
	scans, err := s.repo.ScansSince(ctx, s.now().Add(-window))
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var ids []string
	for _, scan := range scans {
		if !seen[scan.TeacherID] {
			seen[scan.TeacherID] = true
			ids = append(ids, scan.TeacherID)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	all, err := s.repo.List(ctx, ListOptions{})
	if err != nil {
		return nil, err
	}
	res := make([]Teacher, 0, len(ids))
	for _, t := range all {
		if seen[t.ID] {
			res = append(res, t)
		}
	}
	return res, nil
}

// Stats aggregates all teachers. A missing status counts as available.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	all, err := s.repo.List(ctx, ListOptions{})
	if err != nil {
		return Stats{}, err
	}
	st := Stats{
		Total:                len(all),
		ByStatus:             map[string]int{},
		ByDepartment:         map[string]int{},
		BySubject:            map[string]int{},
		RegistrationsByMonth: map[string]int{},
	}
	for _, t := range all {
		status := t.Status
		if status == "" {
			status = StatusAvailable
		}
		st.ByStatus[status]++
		if t.Department != nil && *t.Department != "" {
			st.ByDepartment[*t.Department]++
		}
		if t.Subject != nil && *t.Subject != "" {
			st.BySubject[*t.Subject]++
		}
		st.RegistrationsByMonth[t.CreatedAt.In(s.loc).Format("2006-01")]++
	}
	return st, nil
}
