package appointments

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"booking/backend/internal/domain"
	"booking/backend/internal/store"
)

// memStore is an in-memory appointment store that enforces the active-slot
// uniqueness at insert time, the way the partial unique index does.
type memStore struct {
	mu            sync.Mutex
	appointments  map[uuid.UUID]*memRow
	notifications []domain.Notification
	users         map[int64]domain.User
	nextTx        int64

	createAppointmentHook  func(appt domain.Appointment) error
	createNotificationHook func(n domain.Notification) error
}

type memRow struct {
	appt domain.Appointment
	tx   int64
}

func newMemStore(users ...domain.User) *memStore {
	m := &memStore{
		appointments: make(map[uuid.UUID]*memRow),
		users:        make(map[int64]domain.User),
	}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *memStore) FindByID(ctx context.Context, id int64) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return domain.User{}, store.ErrNotFound
	}
	return u, nil
}

func (m *memStore) FindProviderByID(ctx context.Context, id int64) (domain.User, error) {
	u, err := m.FindByID(ctx, id)
	if err != nil {
		return domain.User{}, err
	}
	if !u.Provider {
		return domain.User{}, store.ErrNotFound
	}
	return u, nil
}

func (m *memStore) FindActiveAppointment(ctx context.Context, providerID int64, slot time.Time) (domain.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.appointments {
		if r.appt.ProviderID == providerID && r.appt.Active() && r.appt.ScheduledAt.Equal(slot) {
			return r.appt, nil
		}
	}
	return domain.Appointment{}, store.ErrNotFound
}

func (m *memStore) ListProviderAppointments(ctx context.Context, providerID int64, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Appointment
	for _, r := range m.appointments {
		a := r.appt
		if a.ProviderID != providerID || !a.Active() {
			continue
		}
		if a.ScheduledAt.Before(windowStart) || !a.ScheduledAt.Before(windowEnd) {
			continue
		}
		out = append(out, m.withUsers(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out, nil
}

func (m *memStore) ListRequesterAppointments(ctx context.Context, requesterID int64, limit, offset int) ([]domain.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []domain.Appointment
	for _, r := range m.appointments {
		if r.appt.RequesterID == requesterID && r.appt.Active() {
			all = append(all, m.withUsers(r.appt))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ScheduledAt.Before(all[j].ScheduledAt) })
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *memStore) InProviderTransaction(ctx context.Context, providerID int64, fn func(ctx context.Context, tx store.BookingTx) error) error {
	return m.InTransaction(ctx, fn)
}

func (m *memStore) InTransaction(ctx context.Context, fn func(ctx context.Context, tx store.BookingTx) error) error {
	tx := &memTx{store: m, id: atomic.AddInt64(&m.nextTx, 1)}
	if err := fn(ctx, tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

func (m *memStore) withUsers(a domain.Appointment) domain.Appointment {
	if p, ok := m.users[a.ProviderID]; ok {
		a.Provider = &p
	}
	if r, ok := m.users[a.RequesterID]; ok {
		a.Requester = &r
	}
	return a
}

func (m *memStore) activeCount(providerID int64, slot time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.appointments {
		if r.appt.ProviderID == providerID && r.appt.Active() && r.appt.ScheduledAt.Equal(slot) {
			n++
		}
	}
	return n
}

func (m *memStore) notificationsFor(recipientID int64) []domain.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Notification
	for _, n := range m.notifications {
		if n.RecipientUserID == recipientID {
			out = append(out, n)
		}
	}
	return out
}

type memTx struct {
	store *memStore
	id    int64

	createdIDs    []uuid.UUID
	notifications int
	cancels       map[uuid.UUID]*time.Time
}

func (t *memTx) FindActiveAppointment(ctx context.Context, providerID int64, slot time.Time) (domain.Appointment, error) {
	return t.store.FindActiveAppointment(ctx, providerID, slot)
}

func (t *memTx) ListProviderAppointments(ctx context.Context, providerID int64, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	return t.store.ListProviderAppointments(ctx, providerID, windowStart, windowEnd)
}

func (t *memTx) FindAppointment(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	r, ok := t.store.appointments[appointmentID]
	if !ok {
		return domain.Appointment{}, store.ErrNotFound
	}
	return r.appt, nil
}

func (t *memTx) LockAppointment(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	r, ok := t.store.appointments[appointmentID]
	if !ok {
		return domain.Appointment{}, store.ErrNotFound
	}
	return t.store.withUsers(r.appt), nil
}

func (t *memTx) CreateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	if hook := t.store.createAppointmentHook; hook != nil {
		if err := hook(appt); err != nil {
			return domain.Appointment{}, err
		}
	}

	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}
	if _, ok := t.store.appointments[appt.ID]; ok {
		return domain.Appointment{}, store.ErrIdempotencyConflict
	}
	for _, r := range t.store.appointments {
		if r.appt.ProviderID == appt.ProviderID && r.appt.Active() && r.appt.ScheduledAt.Equal(appt.ScheduledAt) {
			return domain.Appointment{}, store.ErrConflict
		}
	}
	appt.CreatedAt = time.Now().UTC()
	appt.UpdatedAt = appt.CreatedAt
	t.store.appointments[appt.ID] = &memRow{appt: appt, tx: t.id}
	t.createdIDs = append(t.createdIDs, appt.ID)
	return appt, nil
}

func (t *memTx) CancelAppointment(ctx context.Context, appointmentID uuid.UUID, canceledAt time.Time) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	r, ok := t.store.appointments[appointmentID]
	if !ok {
		return store.ErrNotFound
	}
	if t.cancels == nil {
		t.cancels = make(map[uuid.UUID]*time.Time)
	}
	t.cancels[appointmentID] = r.appt.CanceledAt
	at := canceledAt
	r.appt.CanceledAt = &at
	return nil
}

func (t *memTx) CreateNotification(ctx context.Context, n domain.Notification) (domain.Notification, error) {
	if hook := t.store.createNotificationHook; hook != nil {
		if err := hook(n); err != nil {
			return domain.Notification{}, err
		}
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	n.ID = int64(len(t.store.notifications) + 1)
	t.store.notifications = append(t.store.notifications, n)
	t.notifications++
	return n, nil
}

func (t *memTx) rollback() {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for _, id := range t.createdIDs {
		delete(t.store.appointments, id)
	}
	if t.notifications > 0 {
		t.store.notifications = t.store.notifications[:len(t.store.notifications)-t.notifications]
	}
	for id, prev := range t.cancels {
		if r, ok := t.store.appointments[id]; ok {
			r.appt.CanceledAt = prev
		}
	}
}

type fakeQueue struct {
	mu    sync.Mutex
	err   error
	kinds []string
	jobs  []any
}

func (q *fakeQueue) Enqueue(ctx context.Context, kind string, payload any) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.kinds = append(q.kinds, kind)
	q.jobs = append(q.jobs, payload)
	return nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

var errBoom = errors.New("boom")
