package export

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/audit"
)

// DefaultValidity is how long a download token stays usable.
const DefaultValidity = 7 * 24 * time.Hour

var (
	// ErrDeliveryNotFound means no delivery record exists for the request.
	ErrDeliveryNotFound = errors.New("delivery not found")
	// ErrTokenInvalid means the presented token does not match the record.
	ErrTokenInvalid = errors.New("download token invalid")
	// ErrTokenExpired means the record exists but its validity window passed.
	ErrTokenExpired = errors.New("download token expired")
	// ErrNotReady means the token was issued but the package is still being
	// generated.
	ErrNotReady = errors.New("export package not ready")
)

// IntegrityError reports a digest mismatch between the stored record and the
// file on disk. The file is left in place for investigation.
type IntegrityError struct {
	RequestID string
	Expected  string
	Actual    string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity violation for request %s: digest mismatch", e.RequestID)
}

// Delivery is the download record for one generated package. A request has
// at most one active delivery at a time.
type Delivery struct {
	RequestID string
	Token     string
	FilePath  string
	Digest    string
	SizeBytes int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Ready reports whether the package behind this record has been sealed.
func (d *Delivery) Ready() bool {
	return d.FilePath != ""
}

// DeliveryRepository persists download records.
type DeliveryRepository interface {
	Put(ctx context.Context, d *Delivery) error
	Get(ctx context.Context, requestID string) (*Delivery, error)
	Delete(ctx context.Context, requestID string) error
	ListExpired(ctx context.Context, now time.Time) ([]*Delivery, error)
}

// DeliveryManager issues download tokens and serves single-use downloads
// with integrity verification.
type DeliveryManager struct {
	repo     DeliveryRepository
	audit    *audit.Service
	logger   zerolog.Logger
	validity time.Duration
	clock    func() time.Time
}

// NewDeliveryManager creates a delivery manager with the default 7-day
// validity window.
func NewDeliveryManager(repo DeliveryRepository, auditSvc *audit.Service, logger zerolog.Logger) *DeliveryManager {
	return &DeliveryManager{
		repo:     repo,
		audit:    auditSvc,
		logger:   logger,
		validity: DefaultValidity,
		clock:    time.Now,
	}
}

// SetClock overrides the time source. Tests only.
func (m *DeliveryManager) SetClock(clock func() time.Time) {
	m.clock = clock
}

// Issue creates a pending delivery record and returns its token. The record
// carries no file yet; Attach seals it once the package exists. Re-issuing
// replaces any previous record for the request.
func (m *DeliveryManager) Issue(ctx context.Context, requestID string) (string, error) {
	token, err := randomToken()
	if err != nil {
		return "", fmt.Errorf("generating download token: %w", err)
	}

	now := m.clock().UTC()
	d := &Delivery{
		RequestID: requestID,
		Token:     token,
		CreatedAt: now,
		ExpiresAt: now.Add(m.validity),
	}
	if err := m.repo.Put(ctx, d); err != nil {
		return "", fmt.Errorf("storing delivery record: %w", err)
	}
	return token, nil
}

// Attach records the sealed package on the pending delivery.
func (m *DeliveryManager) Attach(ctx context.Context, requestID string, archive *Archive) error {
	d, err := m.repo.Get(ctx, requestID)
	if err != nil {
		return err
	}
	d.FilePath = archive.Path
	d.Digest = archive.Digest
	d.SizeBytes = archive.SizeBytes
	return m.repo.Put(ctx, d)
}

// Discard drops the delivery record for a request, removing its file when
// one was attached.
func (m *DeliveryManager) Discard(ctx context.Context, requestID string) error {
	d, err := m.repo.Get(ctx, requestID)
	if err != nil {
		if errors.Is(err, ErrDeliveryNotFound) {
			return nil
		}
		return err
	}
	if err := m.repo.Delete(ctx, requestID); err != nil {
		return err
	}
	if d.FilePath != "" {
		if err := os.Remove(d.FilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
			m.logger.Warn().Err(err).Str("request_id", requestID).Msg("failed to remove discarded package")
		}
	}
	return nil
}

// Download is an open archive stream. Closing it deletes the underlying
// file; the delivery record is already gone by the time a Download exists.
type Download struct {
	SizeBytes int64
	file      *os.File
	path      string
	logger    zerolog.Logger
}

func (d *Download) Read(p []byte) (int, error) { return d.file.Read(p) }

// Close closes the stream and deletes the archive from disk.
func (d *Download) Close() error {
	err := d.file.Close()
	if rmErr := os.Remove(d.path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
		d.logger.Warn().Err(rmErr).Str("path", d.path).Msg("failed to remove downloaded package")
	}
	return err
}

var _ io.ReadCloser = (*Download)(nil)

// HandleDownload validates the token, re-verifies the archive digest, and
// opens the file for streaming. The delivery record is deleted before the
// stream is handed over, so a token is spent even if the caller aborts the
// transfer. On a digest mismatch the file is left untouched.
func (m *DeliveryManager) HandleDownload(ctx context.Context, requestID, token string, meta audit.RequestMeta) (*Download, error) {
	d, err := m.repo.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if subtle.ConstantTimeCompare([]byte(d.Token), []byte(token)) != 1 {
		return nil, ErrTokenInvalid
	}
	if m.clock().UTC().After(d.ExpiresAt) {
		return nil, ErrTokenExpired
	}
	if !d.Ready() {
		return nil, ErrNotReady
	}

	digest, size, err := FileDigest(d.FilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrDeliveryNotFound
		}
		return nil, fmt.Errorf("verifying package: %w", err)
	}
	if digest != d.Digest || size != d.SizeBytes {
		m.logger.Error().
			Str("request_id", requestID).
			Str("expected", d.Digest).
			Str("actual", digest).
			Msg("export package digest mismatch")
		return nil, &IntegrityError{RequestID: requestID, Expected: d.Digest, Actual: digest}
	}

	// Spend the token before streaming so it is single-use no matter how
	// the transfer ends.
	if err := m.repo.Delete(ctx, requestID); err != nil {
		return nil, fmt.Errorf("consuming delivery record: %w", err)
	}

	f, err := os.Open(d.FilePath)
	if err != nil {
		return nil, fmt.Errorf("opening package: %w", err)
	}

	m.audit.Record(ctx, requestID, audit.ActionExportDownloaded, nil, "", map[string]interface{}{
		"size_bytes": d.SizeBytes,
	}, meta)

	return &Download{SizeBytes: d.SizeBytes, file: f, path: d.FilePath, logger: m.logger}, nil
}

// Reap deletes expired delivery records and their files. It returns how many
// records were removed and is safe to run repeatedly.
func (m *DeliveryManager) Reap(ctx context.Context) (int, error) {
	expired, err := m.repo.ListExpired(ctx, m.clock().UTC())
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, d := range expired {
		if err := m.repo.Delete(ctx, d.RequestID); err != nil {
			m.logger.Warn().Err(err).Str("request_id", d.RequestID).Msg("failed to reap delivery record")
			continue
		}
		if d.FilePath != "" {
			if err := os.Remove(d.FilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
				m.logger.Warn().Err(err).Str("request_id", d.RequestID).Msg("failed to remove expired package")
			}
		}
		removed++
	}
	return removed, nil
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
