package teacher

import (
	"context"
	"time"
)

// Repository persists teachers, their scan log and refresh tokens.
type Repository interface {
	Create(ctx context.Context, t Teacher) (Teacher, error)
	GetByID(ctx context.Context, id string) (Teacher, error)
	GetByEmail(ctx context.Context, email string) (Teacher, error)
	List(ctx context.Context, opts ListOptions) ([]Teacher, error)
	// Search matches query case-insensitively against name, subject and department.
	Search(ctx context.Context, query string) ([]Teacher, error)
	Departments(ctx context.Context) ([]string, error)
	Update(ctx context.Context, id string, c Changes) (Teacher, error)
	SetQRCode(ctx context.Context, id, url string) error
	Delete(ctx context.Context, id string) error

	InsertScan(ctx context.Context, evt ScanEvent) error
	ListScans(ctx context.Context, teacherID string) ([]ScanEvent, error)
	ScansSince(ctx context.Context, since time.Time) ([]ScanEvent, error)

	SaveRefreshToken(ctx context.Context, teacherID, token string, expiresAt time.Time) error
	RefreshTokenActive(ctx context.Context, token string) (bool, error)
	RevokeRefreshToken(ctx context.Context, token string) error
}
