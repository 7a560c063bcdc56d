package certificates_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduevent/backend/internal/apperr"
	"github.com/eduevent/backend/internal/certificates"
	"github.com/eduevent/backend/internal/memstore"
	"github.com/eduevent/backend/internal/models"
)

type fakeRenderer struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (r *fakeRenderer) Render(_ context.Context, d certificates.RenderData) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return []byte("certificate " + d.SerialNumber + " for " + d.ParticipantName), nil
}

func (r *fakeRenderer) ContentType() string { return "text/plain" }
func (r *fakeRenderer) Extension() string   { return ".txt" }

type memArtifacts struct {
	mu      sync.Mutex
	files   map[string][]byte
	saveErr error
}

func newArtifacts() *memArtifacts { return &memArtifacts{files: make(map[string][]byte)} }

func (m *memArtifacts) Save(_ context.Context, key string, body []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.files[key] = body
	return nil
}

func (m *memArtifacts) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[key]
	return ok, nil
}

func (m *memArtifacts) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, key)
	return nil
}

func (m *memArtifacts) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.files)
}

func (m *memArtifacts) Open(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return io.NopCloser(bytes.NewReader(m.files[key])), nil
}

type fixture struct {
	db        *memstore.DB
	renderer  *fakeRenderer
	artifacts *memArtifacts
	svc       *certificates.Service
	actor     models.Actor
	reg       *models.Registration
	now       time.Time
}

func newFixture(t *testing.T, opts ...certificates.Option) *fixture {
	t.Helper()
	f := &fixture{
		db:        memstore.New(),
		renderer:  &fakeRenderer{},
		artifacts: newArtifacts(),
		actor:     models.Actor{UserID: uuid.New(), Name: "Siti Aminah"},
		now:       time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	ev := &models.Event{
		ID:          uuid.New(),
		Title:       "Lokakarya Data",
		EventDate:   models.Date{Year: 2025, Month: time.March, Day: 10},
		IsPublished: true,
	}
	f.db.PutEvent(ev)
	f.reg = &models.Registration{
		ID:      uuid.New(),
		EventID: ev.ID,
		UserID:  f.actor.UserID,
		Status:  models.RegistrationCompleted,
	}
	f.db.PutRegistration(f.reg)

	opts = append([]certificates.Option{certificates.WithClock(func() time.Time { return f.now })}, opts...)
	f.svc = certificates.NewService(f.db.Events(), f.db.Registrations(), f.db.Attendances(), f.db.Certificates(),
		f.renderer, f.artifacts, opts...)
	return f
}

func (f *fixture) attend() {
	f.db.PutAttendance(&models.Attendance{
		ID:             uuid.New(),
		EventID:        f.reg.EventID,
		UserID:         f.reg.UserID,
		RegistrationID: f.reg.ID,
		Status:         models.AttendancePresent,
		CheckedInAt:    f.now.Add(-3 * time.Hour),
	})
}

func TestIssueIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.attend()
	ctx := context.Background()

	first, created, err := f.svc.Issue(ctx, f.reg.ID, f.actor)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, models.CertificateIssued, first.Status)
	assert.Regexp(t, `^CERT-2025-[A-Z2-7]{8}$`, first.SerialNumber)
	assert.Equal(t, "certificates/2025/"+first.ID.String()+".txt", first.ArtifactPath)

	second, created, err := f.svc.Issue(ctx, f.reg.ID, f.actor)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.SerialNumber, second.SerialNumber)

	assert.Equal(t, 1, f.db.CountCertificates(f.reg.ID))
	assert.Equal(t, 1, f.renderer.calls)
}

func TestIssueConcurrentCallsYieldOneCertificate(t *testing.T) {
	f := newFixture(t)
	f.attend()

	const n = 10
	serials := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cert, _, err := f.svc.Issue(context.Background(), f.reg.ID, f.actor)
			if assert.NoError(t, err) {
				serials[i] = cert.SerialNumber
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, f.db.CountCertificates(f.reg.ID))
	for _, s := range serials[1:] {
		assert.Equal(t, serials[0], s)
	}
	// Losing issuers remove the artifacts they rendered.
	assert.Equal(t, 1, f.artifacts.count())
}

func TestIssueRequiresAttendance(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.svc.Issue(context.Background(), f.reg.ID, f.actor)
	assert.True(t, apperr.Is(err, apperr.KindNotAttended))
	assert.Zero(t, f.renderer.calls)
	assert.Zero(t, f.db.CountCertificates(f.reg.ID))
}

func TestIssueForeignRegistration(t *testing.T) {
	f := newFixture(t)
	f.attend()
	_, _, err := f.svc.Issue(context.Background(), f.reg.ID, models.Actor{UserID: uuid.New()})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestIssueRenderFailure(t *testing.T) {
	f := newFixture(t)
	f.attend()
	f.renderer.err = errors.New("font missing")

	_, _, err := f.svc.Issue(context.Background(), f.reg.ID, f.actor)
	assert.True(t, apperr.Is(err, apperr.KindRenderFailed))
	assert.Zero(t, f.db.CountCertificates(f.reg.ID))
	assert.Empty(t, f.artifacts.files)
}

func TestIssueRemovesArtifactWhenInsertFails(t *testing.T) {
	f := newFixture(t)
	f.attend()
	f.db.Fail("certificates.create", errors.New("connection reset"))

	_, _, err := f.svc.Issue(context.Background(), f.reg.ID, f.actor)
	assert.True(t, apperr.Is(err, apperr.KindStorageUnavailable))
	assert.Zero(t, f.artifacts.count())
}

func TestIssueArtifactStorageFailure(t *testing.T) {
	f := newFixture(t)
	f.attend()
	f.artifacts.saveErr = errors.New("bucket unreachable")

	_, _, err := f.svc.Issue(context.Background(), f.reg.ID, f.actor)
	assert.True(t, apperr.Is(err, apperr.KindStorageUnavailable))
	assert.Zero(t, f.db.CountCertificates(f.reg.ID))
}

func TestIssueRetriesSerialCollision(t *testing.T) {
	serials := []string{"CERT-2025-AAAAAAAA", "CERT-2025-BBBBBBBB"}
	var next int
	f := newFixture(t, certificates.WithSerialSource(func(time.Time) (string, error) {
		s := serials[next]
		next++
		return s, nil
	}))

	other := &models.Registration{ID: uuid.New(), EventID: f.reg.EventID, UserID: uuid.New(), Status: models.RegistrationCompleted}
	f.db.PutRegistration(other)
	f.db.PutCertificate(&models.Certificate{
		ID:             uuid.New(),
		EventID:        other.EventID,
		UserID:         other.UserID,
		RegistrationID: other.ID,
		SerialNumber:   "CERT-2025-AAAAAAAA",
		Status:         models.CertificateIssued,
	})
	f.attend()

	cert, created, err := f.svc.Issue(context.Background(), f.reg.ID, f.actor)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "CERT-2025-BBBBBBBB", cert.SerialNumber)
	require.Equal(t, 1, f.artifacts.count())
	assert.Contains(t, f.artifacts.files, cert.ArtifactPath)
}

func TestIssueGivesUpAfterRepeatedCollisions(t *testing.T) {
	f := newFixture(t, certificates.WithSerialSource(func(time.Time) (string, error) {
		return "CERT-2025-AAAAAAAA", nil
	}))
	other := &models.Registration{ID: uuid.New(), EventID: f.reg.EventID, UserID: uuid.New(), Status: models.RegistrationCompleted}
	f.db.PutRegistration(other)
	f.db.PutCertificate(&models.Certificate{
		ID: uuid.New(), RegistrationID: other.ID, UserID: other.UserID, SerialNumber: "CERT-2025-AAAAAAAA",
	})
	f.attend()

	_, _, err := f.svc.Issue(context.Background(), f.reg.ID, f.actor)
	assert.True(t, apperr.Is(err, apperr.KindStorageUnavailable))
	assert.Equal(t, 3, f.renderer.calls)
	assert.Zero(t, f.artifacts.count())
}

func TestStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v, err := f.svc.Status(ctx, f.reg.ID, f.actor)
	require.NoError(t, err)
	assert.False(t, v.Eligible)
	assert.Nil(t, v.Certificate)

	f.attend()
	v, err = f.svc.Status(ctx, f.reg.ID, f.actor)
	require.NoError(t, err)
	assert.True(t, v.Eligible)
	assert.Nil(t, v.Certificate)

	cert, _, err := f.svc.Issue(ctx, f.reg.ID, f.actor)
	require.NoError(t, err)
	v, err = f.svc.Status(ctx, f.reg.ID, f.actor)
	require.NoError(t, err)
	require.NotNil(t, v.Certificate)
	assert.Equal(t, cert.ID, v.Certificate.ID)
}

func TestOpen(t *testing.T) {
	f := newFixture(t)
	f.attend()
	ctx := context.Background()
	cert, _, err := f.svc.Issue(ctx, f.reg.ID, f.actor)
	require.NoError(t, err)

	a, err := f.svc.Open(ctx, cert.ID, f.actor)
	require.NoError(t, err)
	defer a.Body.Close()
	body, err := io.ReadAll(a.Body)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("certificate %s for Siti Aminah", cert.SerialNumber), string(body))
	assert.Equal(t, cert.SerialNumber+".txt", a.FileName)
	assert.Equal(t, "text/plain", a.ContentType)

	admin := models.Actor{UserID: uuid.New(), Role: models.RoleAdmin}
	a, err = f.svc.Open(ctx, cert.ID, admin)
	require.NoError(t, err)
	a.Body.Close()

	_, err = f.svc.Open(ctx, cert.ID, models.Actor{UserID: uuid.New()})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = f.svc.Open(ctx, uuid.New(), f.actor)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	delete(f.artifacts.files, cert.ArtifactPath)
	_, err = f.svc.Open(ctx, cert.ID, f.actor)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestListMine(t *testing.T) {
	f := newFixture(t)
	f.attend()
	_, _, err := f.svc.Issue(context.Background(), f.reg.ID, f.actor)
	require.NoError(t, err)

	list, err := f.svc.ListMine(context.Background(), f.actor)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	list, err = f.svc.ListMine(context.Background(), models.Actor{UserID: uuid.New()})
	require.NoError(t, err)
	assert.Empty(t, list)
}
