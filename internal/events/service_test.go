package events_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduevent/backend/internal/apperr"
	"github.com/eduevent/backend/internal/events"
	"github.com/eduevent/backend/internal/memstore"
	"github.com/eduevent/backend/internal/models"
	"github.com/eduevent/backend/internal/timewindow"
	"github.com/eduevent/backend/pkg/storage"
)

var jakarta = time.FixedZone("WIB", 7*3600)

func newService(t *testing.T) (*events.Service, *memstore.DB, *storage.Local) {
	t.Helper()
	db := memstore.New()
	files, err := storage.NewLocal(t.TempDir(), "/files/")
	require.NoError(t, err)
	svc := events.NewService(db.Events(), files, timewindow.DefaultPolicy(jakarta), nil)
	svc.SetClock(func() time.Time { return time.Date(2025, 3, 10, 8, 45, 0, 0, jakarta) })
	return svc, db, files
}

func tod(h, m int) *models.TimeOfDay { return &models.TimeOfDay{Hour: h, Minute: m} }

func seminar() events.Input {
	capacity := 2
	return events.Input{
		Title:           "  Seminar AI  ",
		EventDate:       models.Date{Year: 2025, Month: time.March, Day: 10},
		StartTime:       tod(9, 0),
		EndTime:         tod(12, 0),
		Location:        "Aula",
		Category:        models.CategoryTechnology,
		IsPublished:     true,
		MaxParticipants: &capacity,
	}
}

func TestCreateAndView(t *testing.T) {
	svc, _, _ := newService(t)
	admin := models.Actor{UserID: uuid.New(), Role: models.RoleAdmin}

	v, err := svc.Create(context.Background(), admin, seminar())
	require.NoError(t, err)
	assert.Equal(t, "Seminar AI", v.Title)
	assert.True(t, v.CanRegister)
	require.NotNil(t, v.RemainingSeats)
	assert.Equal(t, 2, *v.RemainingSeats)
	assert.Equal(t, timewindow.PhaseOpen, v.CheckInPhase)
	assert.Equal(t, time.Date(2025, 3, 10, 8, 30, 0, 0, jakarta), v.CheckIn.OpensAt)
	require.NotNil(t, v.CreatedBy)
	assert.Equal(t, admin.UserID, *v.CreatedBy)
}

func TestCreateValidation(t *testing.T) {
	svc, _, _ := newService(t)

	in := seminar()
	in.EndTime = tod(8, 0)
	_, err := svc.Create(context.Background(), models.Actor{}, in)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	in = seminar()
	in.Category = "music"
	_, err = svc.Create(context.Background(), models.Actor{}, in)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestGetHidesUnpublished(t *testing.T) {
	svc, _, _ := newService(t)
	in := seminar()
	in.IsPublished = false
	v, err := svc.Create(context.Background(), models.Actor{}, in)
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), v.ID, false)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	got, err := svc.Get(context.Background(), v.ID, true)
	require.NoError(t, err)
	assert.False(t, got.CanRegister)

	pub, err := svc.SetPublished(context.Background(), v.ID, true)
	require.NoError(t, err)
	assert.True(t, pub.IsPublished)
}

func TestUpdateCapacityBelowRegistered(t *testing.T) {
	svc, db, _ := newService(t)
	v, err := svc.Create(context.Background(), models.Actor{}, seminar())
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		db.PutRegistration(&models.Registration{ID: uuid.New(), EventID: v.ID, UserID: uuid.New(), Status: models.RegistrationConfirmed})
	}

	in := seminar()
	one := 1
	in.MaxParticipants = &one
	_, err = svc.Update(context.Background(), v.ID, in)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	in.MaxParticipants = nil
	in.Title = "Seminar AI 2"
	got, err := svc.Update(context.Background(), v.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "Seminar AI 2", got.Title)
	assert.Nil(t, got.RemainingSeats)

	_, err = svc.Update(context.Background(), uuid.New(), in)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestListFilters(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	for _, title := range []string{"Seminar AI", "Lomba Lari", "Workshop Go"} {
		in := seminar()
		in.Title = title
		if title == "Lomba Lari" {
			in.Category = models.CategorySports
		}
		_, err := svc.Create(ctx, models.Actor{}, in)
		require.NoError(t, err)
	}
	hidden := seminar()
	hidden.Title = "Draft"
	hidden.IsPublished = false
	_, err := svc.Create(ctx, models.Actor{}, hidden)
	require.NoError(t, err)

	list, total, err := svc.List(ctx, events.ListFilter{PublishedOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, list, 3)

	list, total, err = svc.List(ctx, events.ListFilter{PublishedOnly: true, Category: models.CategorySports})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Lomba Lari", list[0].Title)

	_, total, err = svc.List(ctx, events.ListFilter{Query: "workshop"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	list, total, err = svc.List(ctx, events.ListFilter{PerPage: 2, Page: 2})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Len(t, list, 2)
}

func TestListStorageFailure(t *testing.T) {
	svc, db, _ := newService(t)
	db.Fail("events.list", errors.New("connection refused"))
	_, _, err := svc.List(context.Background(), events.ListFilter{})
	assert.True(t, apperr.Is(err, apperr.KindStorageUnavailable))
}

func TestUploadFlyer(t *testing.T) {
	svc, _, files := newService(t)
	ctx := context.Background()
	v, err := svc.Create(ctx, models.Actor{}, seminar())
	require.NoError(t, err)

	first, err := svc.UploadFlyer(ctx, v.ID, "poster.png", "image/png", strings.NewReader("png-1"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(first.FlyerPath, "flyers/"+v.ID.String()+"/"))
	assert.Equal(t, "/files/"+first.FlyerPath, first.FlyerURL)
	ok, err := files.Exists(ctx, first.FlyerPath)
	require.NoError(t, err)
	assert.True(t, ok)

	second, err := svc.UploadFlyer(ctx, v.ID, "poster.jpg", "image/jpeg", strings.NewReader("jpg-2"))
	require.NoError(t, err)
	assert.NotEqual(t, first.FlyerPath, second.FlyerPath)
	ok, err = files.Exists(ctx, first.FlyerPath)
	require.NoError(t, err)
	assert.False(t, ok, "replaced flyer is removed")

	_, err = svc.UploadFlyer(ctx, v.ID, "notes.txt", "text/plain", strings.NewReader("x"))
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	big := bytes.NewReader(make([]byte, storage.MaxImageSize+1))
	_, err = svc.UploadFlyer(ctx, v.ID, "big.png", "image/png", big)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = svc.UploadFlyer(ctx, uuid.New(), "poster.png", "image/png", strings.NewReader("png"))
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestDeleteRemovesFlyer(t *testing.T) {
	svc, _, files := newService(t)
	ctx := context.Background()
	v, err := svc.Create(ctx, models.Actor{}, seminar())
	require.NoError(t, err)
	withFlyer, err := svc.UploadFlyer(ctx, v.ID, "poster.png", "image/png", strings.NewReader("png"))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, v.ID))
	ok, err := files.Exists(ctx, withFlyer.FlyerPath)
	require.NoError(t, err)
	assert.False(t, ok)

	err = svc.Delete(ctx, v.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
