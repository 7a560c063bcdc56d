// Package memstore is an in-memory implementation of the service stores. It
// enforces the same uniqueness rules as the Postgres schema and is used by tests
// and by local runs without a database.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eduevent/backend/internal/analytics"
	"github.com/eduevent/backend/internal/attendance"
	"github.com/eduevent/backend/internal/auth"
	"github.com/eduevent/backend/internal/banners"
	"github.com/eduevent/backend/internal/certificates"
	"github.com/eduevent/backend/internal/emaillogs"
	"github.com/eduevent/backend/internal/events"
	"github.com/eduevent/backend/internal/history"
	"github.com/eduevent/backend/internal/models"
	"github.com/eduevent/backend/internal/payments"
	"github.com/eduevent/backend/internal/registrations"
	"github.com/eduevent/backend/internal/wishlist"
	"github.com/eduevent/backend/pkg/sentinel"
)

// DB holds all tables behind one lock.
type DB struct {
	mu            sync.RWMutex
	users         map[uuid.UUID]models.User
	events        map[uuid.UUID]models.Event
	registrations map[uuid.UUID]models.Registration
	payments      map[uuid.UUID]models.Payment
	attendances   map[uuid.UUID]models.Attendance
	certificates  map[uuid.UUID]models.Certificate
	banners       map[uuid.UUID]models.Banner
	emailLogs     []models.EmailLog
	wishlists     []models.WishlistItem
	failures      map[string]error
}

// New returns an empty DB.
func New() *DB {
	return &DB{
		users:         make(map[uuid.UUID]models.User),
		events:        make(map[uuid.UUID]models.Event),
		registrations: make(map[uuid.UUID]models.Registration),
		payments:      make(map[uuid.UUID]models.Payment),
		attendances:   make(map[uuid.UUID]models.Attendance),
		certificates:  make(map[uuid.UUID]models.Certificate),
		banners:       make(map[uuid.UUID]models.Banner),
		failures:      make(map[string]error),
	}
}

// Fail makes every call of op ("registrations.create", "attendances.record", ...)
// return err until cleared with a nil err.
func (db *DB) Fail(op string, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err == nil {
		delete(db.failures, op)
		return
	}
	db.failures[op] = err
}

func (db *DB) failure(op string) error {
	return db.failures[op]
}

// PutEvent inserts or replaces an event.
func (db *DB) PutEvent(ev *models.Event) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.events[ev.ID] = *ev
}

// PutRegistration inserts or replaces a registration without checks, for fixtures.
func (db *DB) PutRegistration(reg *models.Registration) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.registrations[reg.ID] = *reg
}

// PutAttendance inserts an attendance without checks, for fixtures.
func (db *DB) PutAttendance(att *models.Attendance) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.attendances[att.ID] = *att
}

// PutCertificate inserts a certificate without checks, for fixtures.
func (db *DB) PutCertificate(cert *models.Certificate) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.certificates[cert.ID] = *cert
}

// PaymentFor returns the payment of a registration.
func (db *DB) PaymentFor(registrationID uuid.UUID) (*models.Payment, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	for _, p := range db.payments {
		if p.RegistrationID == registrationID {
			cp := p
			return &cp, true
		}
	}
	return nil, false
}

// CountAttendances returns the number of attendance rows of a registration.
func (db *DB) CountAttendances(registrationID uuid.UUID) int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	n := 0
	for _, a := range db.attendances {
		if a.RegistrationID == registrationID {
			n++
		}
	}
	return n
}

// CountCertificates returns the number of certificate rows of a registration.
func (db *DB) CountCertificates(registrationID uuid.UUID) int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	n := 0
	for _, c := range db.certificates {
		if c.RegistrationID == registrationID {
			n++
		}
	}
	return n
}

// Users returns the user store.
func (db *DB) Users() *Users { return &Users{db: db} }

// Events returns the event reader.
func (db *DB) Events() *Events { return &Events{db: db} }

// Registrations returns the registration store.
func (db *DB) Registrations() *Registrations { return &Registrations{db: db} }

// Attendances returns the attendance store.
func (db *DB) Attendances() *Attendances { return &Attendances{db: db} }

// Certificates returns the certificate store.
func (db *DB) Certificates() *Certificates { return &Certificates{db: db} }

// Analytics returns the dashboard store.
func (db *DB) Analytics() *Analytics { return &Analytics{db: db} }

// Banners returns the banner store.
func (db *DB) Banners() *Banners { return &Banners{db: db} }

// Payments returns the payment store.
func (db *DB) Payments() *Payments { return &Payments{db: db} }

// EmailLogs returns the email log store.
func (db *DB) EmailLogs() *EmailLogs { return &EmailLogs{db: db} }

// History returns the history store.
func (db *DB) History() *History { return &History{db: db} }

// Wishlists returns the wishlist store.
func (db *DB) Wishlists() *Wishlists { return &Wishlists{db: db} }

// Users stores accounts with a case-insensitive unique email.
type Users struct{ db *DB }

var _ auth.UserStore = (*Users)(nil)

func (s *Users) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	if err := s.db.failure("users.get"); err != nil {
		return nil, err
	}
	u, ok := s.db.users[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &u, nil
}

func (s *Users) GetByEmail(_ context.Context, email string) (*models.User, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	if err := s.db.failure("users.get"); err != nil {
		return nil, err
	}
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range s.db.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *Users) Create(_ context.Context, u *models.User) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.failure("users.create"); err != nil {
		return err
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	for _, other := range s.db.users {
		if other.Email == u.Email {
			return sentinel.ErrConflict
		}
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	now := time.Now()
	u.CreatedAt, u.UpdatedAt = now, now
	s.db.users[u.ID] = *u
	return nil
}

func (s *Users) UpdatePassword(_ context.Context, id uuid.UUID, hash string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.failure("users.update"); err != nil {
		return err
	}
	u, ok := s.db.users[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	u.Password = hash
	u.UpdatedAt = time.Now()
	s.db.users[id] = u
	return nil
}

func (s *Users) UpdateProfile(_ context.Context, u *models.User) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.failure("users.update"); err != nil {
		return err
	}
	cur, ok := s.db.users[u.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	for id, other := range s.db.users {
		if id != u.ID && other.Email == u.Email {
			return sentinel.ErrConflict
		}
	}
	cur.Email, cur.FullName, cur.Phone = u.Email, u.FullName, u.Phone
	cur.UpdatedAt = time.Now()
	s.db.users[u.ID] = cur
	*u = cur
	return nil
}

// Events reads events.
type Events struct{ db *DB }

func (s *Events) GetByID(_ context.Context, id uuid.UUID) (*models.Event, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	if err := s.db.failure("events.get"); err != nil {
		return nil, err
	}
	ev, ok := s.db.events[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	ev.RegisteredCount = s.db.activeCount(id)
	return &ev, nil
}

var _ events.Store = (*Events)(nil)

func (s *Events) List(_ context.Context, f events.ListFilter) ([]models.Event, int, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	if err := s.db.failure("events.list"); err != nil {
		return nil, 0, err
	}
	q := strings.ToLower(strings.TrimSpace(f.Query))
	var all []models.Event
	for _, ev := range s.db.events {
		if f.PublishedOnly && !ev.IsPublished {
			continue
		}
		if f.Category != "" && ev.Category != f.Category {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(ev.Title+" "+ev.Description+" "+ev.Location), q) {
			continue
		}
		ev.RegisteredCount = s.db.activeCount(ev.ID)
		all = append(all, ev)
	}
	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		switch f.Sort {
		case events.SortNewest:
			return a.CreatedAt.After(b.CreatedAt)
		case events.SortOldest:
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.EventDate.String() < b.EventDate.String()
	})
	page, perPage := f.Page, f.PerPage
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = len(all) + 1
	}
	from := (page - 1) * perPage
	if from > len(all) {
		from = len(all)
	}
	to := from + perPage
	if to > len(all) {
		to = len(all)
	}
	return all[from:to], len(all), nil
}

func (s *Events) Create(_ context.Context, ev *models.Event) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.failure("events.create"); err != nil {
		return err
	}
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	now := time.Now()
	ev.CreatedAt, ev.UpdatedAt = now, now
	s.db.events[ev.ID] = *ev
	return nil
}

func (s *Events) Update(_ context.Context, ev *models.Event) error {
	return s.modify(ev.ID, func(stored *models.Event) {
		flyer, created, by := stored.FlyerPath, stored.CreatedAt, stored.CreatedBy
		*stored = *ev
		stored.FlyerPath, stored.CreatedAt, stored.CreatedBy = flyer, created, by
	})
}

func (s *Events) SetPublished(_ context.Context, id uuid.UUID, published bool) error {
	return s.modify(id, func(ev *models.Event) { ev.IsPublished = published })
}

func (s *Events) SetFlyer(_ context.Context, id uuid.UUID, key string) error {
	return s.modify(id, func(ev *models.Event) { ev.FlyerPath = key })
}

func (s *Events) modify(id uuid.UUID, fn func(ev *models.Event)) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.failure("events.update"); err != nil {
		return err
	}
	ev, ok := s.db.events[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	fn(&ev)
	ev.UpdatedAt = time.Now()
	s.db.events[id] = ev
	return nil
}

// Delete removes the event and cascades to its registrations like the schema does.
func (s *Events) Delete(_ context.Context, id uuid.UUID) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.failure("events.delete"); err != nil {
		return err
	}
	if _, ok := s.db.events[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.db.events, id)
	for rid, r := range s.db.registrations {
		if r.EventID == id {
			delete(s.db.registrations, rid)
		}
	}
	return nil
}

func (db *DB) activeCount(eventID uuid.UUID) int {
	n := 0
	for _, r := range db.registrations {
		if r.EventID == eventID && r.IsActive() {
			n++
		}
	}
	return n
}

// Registrations stores registrations.
type Registrations struct{ db *DB }

var _ registrations.Store = (*Registrations)(nil)

func (s *Registrations) Create(_ context.Context, reg *models.Registration, admit registrations.Admission) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.failure("registrations.create"); err != nil {
		return err
	}
	ev, ok := s.db.events[reg.EventID]
	if !ok {
		return sentinel.ErrNotFound
	}
	payment, err := admit(&ev, s.db.activeCount(ev.ID))
	if err != nil {
		return err
	}
	for _, r := range s.db.registrations {
		if r.EventID == reg.EventID && r.UserID == reg.UserID && r.IsActive() {
			return sentinel.ErrConflict
		}
	}
	s.db.registrations[reg.ID] = *reg
	if payment != nil {
		s.db.payments[payment.ID] = *payment
	}
	return nil
}

func (s *Registrations) GetByID(_ context.Context, id uuid.UUID) (*models.Registration, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	if err := s.db.failure("registrations.get"); err != nil {
		return nil, err
	}
	r, ok := s.db.registrations[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &r, nil
}

func (s *Registrations) GetLatestByEventAndUser(_ context.Context, eventID, userID uuid.UUID) (*models.Registration, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	var best *models.Registration
	for _, r := range s.db.registrations {
		if r.EventID != eventID || r.UserID != userID {
			continue
		}
		r := r
		switch {
		case best == nil:
			best = &r
		case r.IsActive() && !best.IsActive():
			best = &r
		case r.IsActive() == best.IsActive() && r.RegisteredAt.After(best.RegisteredAt):
			best = &r
		}
	}
	if best == nil {
		return nil, sentinel.ErrNotFound
	}
	return best, nil
}

func (s *Registrations) Cancel(_ context.Context, id uuid.UUID, at time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.failure("registrations.cancel"); err != nil {
		return err
	}
	r, ok := s.db.registrations[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if r.Status == models.RegistrationCancelled {
		return sentinel.ErrConflict
	}
	r.Status = models.RegistrationCancelled
	r.CancelledAt = &at
	r.UpdatedAt = at
	s.db.registrations[id] = r
	for pid, p := range s.db.payments {
		if p.RegistrationID == id && p.Status == models.PaymentPending {
			p.Status = models.PaymentCancelled
			p.UpdatedAt = at
			s.db.payments[pid] = p
		}
	}
	return nil
}

func (s *Registrations) MarkTokenSent(_ context.Context, id uuid.UUID, at time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	r, ok := s.db.registrations[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	r.TokenSentAt = &at
	s.db.registrations[id] = r
	return nil
}

func (s *Registrations) ListByUser(_ context.Context, userID uuid.UUID) ([]registrations.WithEvent, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	if err := s.db.failure("registrations.list"); err != nil {
		return nil, err
	}
	var out []registrations.WithEvent
	for _, r := range s.db.registrations {
		if r.UserID != userID {
			continue
		}
		ev := s.db.events[r.EventID]
		ev.RegisteredCount = s.db.activeCount(ev.ID)
		out = append(out, registrations.WithEvent{Registration: r, Event: ev})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RegisteredAt.After(out[j].RegisteredAt)
	})
	return out, nil
}

// Attendances stores attendances.
type Attendances struct{ db *DB }

var _ attendance.Store = (*Attendances)(nil)

func (s *Attendances) GetByRegistration(_ context.Context, registrationID uuid.UUID) (*models.Attendance, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	if err := s.db.failure("attendances.get"); err != nil {
		return nil, err
	}
	for _, a := range s.db.attendances {
		if a.RegistrationID == registrationID {
			return &a, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *Attendances) Record(_ context.Context, att *models.Attendance) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.failure("attendances.record"); err != nil {
		return err
	}
	for _, a := range s.db.attendances {
		if a.RegistrationID == att.RegistrationID {
			return sentinel.ErrConflict
		}
	}
	r, ok := s.db.registrations[att.RegistrationID]
	if !ok || r.Status != models.RegistrationConfirmed {
		return sentinel.ErrInvalidState
	}
	r.Status = models.RegistrationCompleted
	r.UpdatedAt = att.CheckedInAt
	s.db.registrations[r.ID] = r
	s.db.attendances[att.ID] = *att
	return nil
}

func (s *Attendances) ListByEvent(_ context.Context, eventID uuid.UUID) ([]attendance.CheckIn, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	if err := s.db.failure("attendances.list"); err != nil {
		return nil, err
	}
	var out []attendance.CheckIn
	for _, a := range s.db.attendances {
		if a.EventID != eventID {
			continue
		}
		u := s.db.users[a.UserID]
		out = append(out, attendance.CheckIn{
			AttendanceID:   a.ID,
			RegistrationID: a.RegistrationID,
			UserID:         a.UserID,
			FullName:       u.FullName,
			Email:          u.Email,
			CheckedInAt:    a.CheckedInAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CheckedInAt.After(out[j].CheckedInAt) })
	return out, nil
}

// Certificates stores certificates.
type Certificates struct{ db *DB }

var _ certificates.Store = (*Certificates)(nil)

func (s *Certificates) GetByID(_ context.Context, id uuid.UUID) (*models.Certificate, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	c, ok := s.db.certificates[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &c, nil
}

func (s *Certificates) GetByRegistration(_ context.Context, registrationID uuid.UUID) (*models.Certificate, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	if err := s.db.failure("certificates.get"); err != nil {
		return nil, err
	}
	for _, c := range s.db.certificates {
		if c.RegistrationID == registrationID {
			return &c, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *Certificates) GetBySerial(_ context.Context, serial string) (*models.Certificate, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	for _, c := range s.db.certificates {
		if c.SerialNumber == serial {
			return &c, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *Certificates) Create(_ context.Context, cert *models.Certificate) (*models.Certificate, bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.failure("certificates.create"); err != nil {
		return nil, false, err
	}
	for _, c := range s.db.certificates {
		if c.RegistrationID == cert.RegistrationID {
			return &c, false, nil
		}
	}
	for _, c := range s.db.certificates {
		if c.SerialNumber == cert.SerialNumber {
			return nil, false, sentinel.ErrConflict
		}
	}
	s.db.certificates[cert.ID] = *cert
	cp := *cert
	return &cp, true, nil
}

func (s *Certificates) ListByUser(_ context.Context, userID uuid.UUID) ([]*models.Certificate, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	var list []*models.Certificate
	for _, c := range s.db.certificates {
		if c.UserID == userID {
			c := c
			list = append(list, &c)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return list, nil
}

// Payments reads payments.
type Payments struct{ db *DB }

var _ payments.Store = (*Payments)(nil)

func (s *Payments) GetByID(_ context.Context, id uuid.UUID) (*models.Payment, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	if err := s.db.failure("payments.get"); err != nil {
		return nil, err
	}
	p, ok := s.db.payments[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &p, nil
}

// EmailLogs appends delivery attempts.
type EmailLogs struct{ db *DB }

var _ emaillogs.Store = (*EmailLogs)(nil)

func (s *EmailLogs) Create(_ context.Context, el *models.EmailLog) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.failure("email_logs.create"); err != nil {
		return err
	}
	if el.CreatedAt.IsZero() {
		el.CreatedAt = time.Now()
	}
	s.db.emailLogs = append(s.db.emailLogs, *el)
	return nil
}

func (s *EmailLogs) ListByEvent(_ context.Context, eventID uuid.UUID) ([]*models.EmailLog, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	if err := s.db.failure("email_logs.list"); err != nil {
		return nil, err
	}
	var list []*models.EmailLog
	for i := len(s.db.emailLogs) - 1; i >= 0; i-- {
		el := s.db.emailLogs[i]
		if el.EventID != nil && *el.EventID == eventID {
			list = append(list, &el)
		}
	}
	return list, nil
}

// History joins a user's registrations with their event, attendance,
// certificate and payment.
type History struct{ db *DB }

var _ history.Store = (*History)(nil)

func (s *History) ListByUser(_ context.Context, userID uuid.UUID) ([]history.Record, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	if err := s.db.failure("history.list"); err != nil {
		return nil, err
	}
	var out []history.Record
	for _, r := range s.db.registrations {
		if r.UserID != userID {
			continue
		}
		rec := history.Record{Registration: r, Event: s.db.events[r.EventID]}
		for _, a := range s.db.attendances {
			if a.RegistrationID == r.ID {
				a := a
				rec.Attendance = &a
			}
		}
		for _, c := range s.db.certificates {
			if c.RegistrationID == r.ID {
				c := c
				rec.Certificate = &c
			}
		}
		for _, p := range s.db.payments {
			if p.RegistrationID == r.ID {
				p := p
				rec.Payment = &p
			}
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Registration.RegisteredAt.After(out[j].Registration.RegisteredAt)
	})
	return out, nil
}

// Wishlists keeps entries in insertion order. Entries of deleted events are
// skipped when listing.
type Wishlists struct{ db *DB }

var _ wishlist.Store = (*Wishlists)(nil)

func (s *Wishlists) Toggle(_ context.Context, userID, eventID uuid.UUID) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.failure("wishlists.toggle"); err != nil {
		return false, err
	}
	if _, ok := s.db.events[eventID]; !ok {
		return false, sentinel.ErrNotFound
	}
	for i, w := range s.db.wishlists {
		if w.UserID == userID && w.EventID == eventID {
			s.db.wishlists = append(s.db.wishlists[:i], s.db.wishlists[i+1:]...)
			return false, nil
		}
	}
	s.db.wishlists = append(s.db.wishlists, models.WishlistItem{
		ID: uuid.New(), UserID: userID, EventID: eventID, CreatedAt: time.Now(),
	})
	return true, nil
}

func (s *Wishlists) Exists(_ context.Context, userID, eventID uuid.UUID) (bool, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	if err := s.db.failure("wishlists.get"); err != nil {
		return false, err
	}
	for _, w := range s.db.wishlists {
		if w.UserID == userID && w.EventID == eventID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Wishlists) ListByUser(_ context.Context, userID uuid.UUID) ([]models.WishlistItem, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	if err := s.db.failure("wishlists.list"); err != nil {
		return nil, err
	}
	var out []models.WishlistItem
	for i := len(s.db.wishlists) - 1; i >= 0; i-- {
		w := s.db.wishlists[i]
		if w.UserID != userID {
			continue
		}
		ev, ok := s.db.events[w.EventID]
		if !ok {
			continue
		}
		ev.RegisteredCount = s.db.activeCount(ev.ID)
		w.Event = &ev
		out = append(out, w)
	}
	return out, nil
}

// Banners stores landing page banners.
type Banners struct{ db *DB }

var _ banners.Store = (*Banners)(nil)

func (s *Banners) List(_ context.Context, activeOnly bool) ([]models.Banner, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	if err := s.db.failure("banners.list"); err != nil {
		return nil, err
	}
	var out []models.Banner
	for _, b := range s.db.banners {
		if activeOnly && !b.IsActive {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Banners) GetByID(_ context.Context, id uuid.UUID) (*models.Banner, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	b, ok := s.db.banners[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &b, nil
}

func (s *Banners) Create(_ context.Context, b *models.Banner) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.failure("banners.create"); err != nil {
		return err
	}
	now := time.Now()
	b.CreatedAt, b.UpdatedAt = now, now
	s.db.banners[b.ID] = *b
	return nil
}

func (s *Banners) Update(_ context.Context, b *models.Banner) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.failure("banners.update"); err != nil {
		return err
	}
	cur, ok := s.db.banners[b.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	b.CreatedAt = cur.CreatedAt
	b.UpdatedAt = time.Now()
	s.db.banners[b.ID] = *b
	return nil
}

func (s *Banners) ToggleActive(_ context.Context, id uuid.UUID) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	b, ok := s.db.banners[id]
	if !ok {
		return false, sentinel.ErrNotFound
	}
	b.IsActive = !b.IsActive
	b.UpdatedAt = time.Now()
	s.db.banners[id] = b
	return b.IsActive, nil
}

func (s *Banners) Delete(_ context.Context, id uuid.UUID) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.banners[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.db.banners, id)
	return nil
}

// ListParticipants returns the registrations of an event joined with users
// and check-in times, oldest first.
func (s *Registrations) ListParticipants(_ context.Context, eventID uuid.UUID) ([]registrations.Participant, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	if err := s.db.failure("registrations.participants"); err != nil {
		return nil, err
	}
	var out []registrations.Participant
	for _, r := range s.db.registrations {
		if r.EventID != eventID {
			continue
		}
		u := s.db.users[r.UserID]
		p := registrations.Participant{
			RegistrationID:  r.ID,
			FullName:        u.FullName,
			Email:           u.Email,
			Phone:           u.Phone,
			Status:          r.Status,
			AttendanceToken: r.AttendanceToken,
			RegisteredAt:    r.RegisteredAt,
		}
		for _, a := range s.db.attendances {
			if a.RegistrationID == r.ID {
				at := a.CheckedInAt
				p.CheckedInAt = &at
			}
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RegisteredAt.Before(out[j].RegisteredAt) })
	return out, nil
}

// Analytics computes dashboard figures from the tables.
type Analytics struct{ db *DB }

var _ analytics.Store = (*Analytics)(nil)

func (s *Analytics) EventCounts(_ context.Context, year int) (total, published, thisYear int, err error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	if err := s.db.failure("analytics.events"); err != nil {
		return 0, 0, 0, err
	}
	for _, e := range s.db.events {
		total++
		if e.IsPublished {
			published++
		}
		if e.CreatedAt.Year() == year {
			thisYear++
		}
	}
	return total, published, thisYear, nil
}

func (s *Analytics) RegistrationCounts(_ context.Context, year int) (active, thisYear int, err error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	for _, r := range s.db.registrations {
		if !r.IsActive() {
			continue
		}
		active++
		if r.RegisteredAt.Year() == year {
			thisYear++
		}
	}
	return active, thisYear, nil
}

func (s *Analytics) AttendanceCounts(_ context.Context) (attendances, attendees int, err error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	users := make(map[uuid.UUID]struct{})
	for _, a := range s.db.attendances {
		attendances++
		if a.IsPresent() {
			users[a.UserID] = struct{}{}
		}
	}
	return attendances, len(users), nil
}

func (s *Analytics) PaidRevenue(_ context.Context) (int64, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	var total int64
	for _, p := range s.db.payments {
		if p.Status == models.PaymentPaid {
			total += p.Amount
		}
	}
	return total, nil
}

func (s *Analytics) MonthlyEvents(_ context.Context, year int) ([12]int, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	var out [12]int
	for _, e := range s.db.events {
		if e.CreatedAt.Year() == year {
			out[e.CreatedAt.Month()-1]++
		}
	}
	return out, nil
}

func (s *Analytics) MonthlyAttendees(_ context.Context, year int) ([12]int, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	var out [12]int
	for _, a := range s.db.attendances {
		if a.IsPresent() && a.CheckedInAt.Year() == year {
			out[a.CheckedInAt.Month()-1]++
		}
	}
	return out, nil
}

func (s *Analytics) TopEvents(_ context.Context, limit int) ([]analytics.TopEvent, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	var out []analytics.TopEvent
	for _, e := range s.db.events {
		out = append(out, analytics.TopEvent{
			ID:              e.ID,
			Title:           e.Title,
			EventDate:       e.EventDate,
			Category:        e.Category,
			RegisteredCount: s.db.activeCount(e.ID),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RegisteredCount != out[j].RegisteredCount {
			return out[i].RegisteredCount > out[j].RegisteredCount
		}
		return out[i].Title < out[j].Title
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
