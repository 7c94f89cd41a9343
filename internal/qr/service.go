package qr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"knowmystatus/internal/metrics"
	"knowmystatus/internal/objectstore"
	"knowmystatus/internal/qrcode"
	"knowmystatus/internal/teacher"
)

// ErrNoQRCode is returned when a teacher has not generated a code yet.
var ErrNoQRCode = errors.New("QR code not generated")

// Store is the part of the record store the QR service needs.
type Store interface {
	GetByID(ctx context.Context, id string) (teacher.Teacher, error)
	SetQRCode(ctx context.Context, id, url string) error
}

// ScanRecorder appends scan events. It must not block on failure.
type ScanRecorder interface {
	Record(ctx context.Context, teacherID, ip string)
}

// Code is a teacher's current QR code.
type Code struct {
	URL     string         `json:"qrCodeUrl"`
	Payload qrcode.Payload `json:"qrData"`
}

// Service generates, serves and resolves teacher QR codes.
type Service struct {
	store   Store
	objects objectstore.Store
	scans   ScanRecorder
	encoder *qrcode.Encoder
	format  qrcode.Formatter
	log     *zap.Logger
	now     func() time.Time
}

func NewService(store Store, objects objectstore.Store, scans ScanRecorder, enc *qrcode.Encoder, f qrcode.Formatter, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, objects: objects, scans: scans, encoder: enc, format: f, log: log, now: time.Now}
}

// Generate renders a fresh code for the teacher, uploads it and stores its
// URL. Nothing is uploaded when encoding fails.
func (s *Service) Generate(ctx context.Context, teacherID string) (Code, error) {
	t, err := s.store.GetByID(ctx, teacherID)
	if err != nil {
		return Code{}, err
	}
	payload, err := qrcode.FromProfile(t.Profile(), s.format)
	if err != nil {
		metrics.QRGenerateFailures.WithLabelValues("payload").Inc()
		return Code{}, err
	}
	img, err := s.encoder.Encode(payload)
	if err != nil {
		metrics.QRGenerateFailures.WithLabelValues("encode").Inc()
		return Code{}, fmt.Errorf("encode qr: %w", err)
	}

	key := fmt.Sprintf("teachers/teacher_%s_%d.png", t.ID, s.now().UnixMilli())
	url, err := s.objects.Put(ctx, key, img, "image/png")
	if err != nil {
		metrics.QRGenerateFailures.WithLabelValues("upload").Inc()
		return Code{}, fmt.Errorf("upload qr: %w", err)
	}
	if err := s.store.SetQRCode(ctx, t.ID, url); err != nil {
		metrics.QRGenerateFailures.WithLabelValues("store").Inc()
		return Code{}, fmt.Errorf("store qr reference: %w", err)
	}
	metrics.QRGenerated.Inc()
	s.log.Info("qr code generated", zap.String("teacher_id", t.ID), zap.String("url", url), zap.Int("bytes", len(img)))
	return Code{URL: url, Payload: payload}, nil
}

// Current returns the stored code of a teacher with a freshly derived payload.
func (s *Service) Current(ctx context.Context, teacherID string) (Code, error) {
	t, err := s.store.GetByID(ctx, teacherID)
	if err != nil {
		return Code{}, err
	}
	if t.QRCode == nil || *t.QRCode == "" {
		return Code{}, ErrNoQRCode
	}
	payload, err := qrcode.FromProfile(t.Profile(), s.format)
	if err != nil {
		return Code{}, err
	}
	return Code{URL: *t.QRCode, Payload: payload}, nil
}

// ScanJSON resolves the qrData value of a scan request.
func (s *Service) ScanJSON(ctx context.Context, raw json.RawMessage, ip string) (teacher.Profile, error) {
	payload, err := qrcode.ParseJSON(raw)
	if err != nil {
		metrics.Scans.WithLabelValues("invalid").Inc()
		return teacher.Profile{}, err
	}
	return s.Scan(ctx, payload, ip)
}

// Scan looks up the live record named by payload, records the scan and
// returns the live profile with gaps filled from the payload.
func (s *Service) Scan(ctx context.Context, payload qrcode.Payload, ip string) (teacher.Profile, error) {
	if err := payload.Validate(); err != nil {
		metrics.Scans.WithLabelValues("invalid").Inc()
		return teacher.Profile{}, err
	}
	t, err := s.store.GetByID(ctx, payload.TeacherID)
	if err != nil {
		if errors.Is(err, teacher.ErrNotFound) {
			metrics.Scans.WithLabelValues("not_found").Inc()
		}
		return teacher.Profile{}, err
	}
	metrics.Scans.WithLabelValues("ok").Inc()
	s.scans.Record(ctx, t.ID, ip)
	return qrcode.Merge(t.Profile(), payload), nil
}
