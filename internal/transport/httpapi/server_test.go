package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booking/backend/internal/domain"
	"booking/backend/internal/service/appointments"
	"booking/backend/internal/service/notifications"
	"booking/backend/internal/service/sessions"
	"booking/backend/internal/service/users"
	"booking/backend/internal/service/validation"
)

type fakeAppointments struct {
	create       func(ctx context.Context, in appointments.CreateInput) (domain.Appointment, error)
	cancel       func(ctx context.Context, id uuid.UUID, requesterID int64) (domain.Appointment, error)
	list         func(ctx context.Context, requesterID int64, page int) ([]appointments.RequesterAppointment, error)
	schedule     func(ctx context.Context, providerID int64, day time.Time) ([]domain.Appointment, error)
	availability func(ctx context.Context, providerID int64, day time.Time) ([]appointments.DaySlot, error)
}

func (f *fakeAppointments) Create(ctx context.Context, in appointments.CreateInput) (domain.Appointment, error) {
	return f.create(ctx, in)
}

func (f *fakeAppointments) Cancel(ctx context.Context, id uuid.UUID, requesterID int64) (domain.Appointment, error) {
	return f.cancel(ctx, id, requesterID)
}

func (f *fakeAppointments) ListForRequester(ctx context.Context, requesterID int64, page int) ([]appointments.RequesterAppointment, error) {
	return f.list(ctx, requesterID, page)
}

func (f *fakeAppointments) ProviderSchedule(ctx context.Context, providerID int64, day time.Time) ([]domain.Appointment, error) {
	return f.schedule(ctx, providerID, day)
}

func (f *fakeAppointments) ProviderAvailability(ctx context.Context, providerID int64, day time.Time) ([]appointments.DaySlot, error) {
	return f.availability(ctx, providerID, day)
}

func (f *fakeAppointments) Location() *time.Location { return time.UTC }

type fakeUsers struct {
	create    func(ctx context.Context, in users.CreateInput) (domain.User, error)
	update    func(ctx context.Context, in users.UpdateInput) (domain.User, error)
	providers func(ctx context.Context) ([]domain.User, error)
}

func (f *fakeUsers) Create(ctx context.Context, in users.CreateInput) (domain.User, error) {
	return f.create(ctx, in)
}

func (f *fakeUsers) Update(ctx context.Context, in users.UpdateInput) (domain.User, error) {
	return f.update(ctx, in)
}

func (f *fakeUsers) ListProviders(ctx context.Context) ([]domain.User, error) {
	return f.providers(ctx)
}

type fakeSessions struct {
	create func(ctx context.Context, email, password string) (sessions.Session, error)
}

func (f *fakeSessions) Create(ctx context.Context, email, password string) (sessions.Session, error) {
	return f.create(ctx, email, password)
}

type fakeNotifications struct {
	list     func(ctx context.Context, userID int64) ([]domain.Notification, error)
	markRead func(ctx context.Context, id, userID int64) (domain.Notification, error)
}

func (f *fakeNotifications) List(ctx context.Context, userID int64) ([]domain.Notification, error) {
	return f.list(ctx, userID)
}

func (f *fakeNotifications) MarkRead(ctx context.Context, id, userID int64) (domain.Notification, error) {
	return f.markRead(ctx, id, userID)
}

// tokens maps bearer tokens to user ids.
type fakeTokens map[string]int64

func (f fakeTokens) Verify(token string) (int64, error) {
	id, ok := f[token]
	if !ok {
		return 0, errors.New("bad token")
	}
	return id, nil
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type testEnv struct {
	appts   *fakeAppointments
	users   *fakeUsers
	sess    *fakeSessions
	notifs  *fakeNotifications
	handler http.Handler
}

func newTestEnv(t *testing.T, limiter *RateLimiter) *testEnv {
	t.Helper()
	env := &testEnv{
		appts:  &fakeAppointments{},
		users:  &fakeUsers{},
		sess:   &fakeSessions{},
		notifs: &fakeNotifications{},
	}
	srv := NewServer(Deps{
		Appointments:   env.appts,
		Users:          env.users,
		Sessions:       env.sess,
		Notifications:  env.notifs,
		Tokens:         fakeTokens{"requester": 2, "provider": 1},
		BookingLimiter: limiter,
		FilesBaseURL:   "http://files.local",
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	env.handler = srv.Routes()
	return env
}

func (e *testEnv) do(t *testing.T, method, path, token, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestRequireAuth(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/appointments", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Token not provided", decodeBody[errorBody](t, rec).Error)

	rec = env.do(t, http.MethodGet, "/appointments", "forged", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Token invalid", decodeBody[errorBody](t, rec).Error)
}

func TestCreateAppointment(t *testing.T) {
	env := newTestEnv(t, nil)
	id := uuid.New()
	var got appointments.CreateInput
	env.appts.create = func(_ context.Context, in appointments.CreateInput) (domain.Appointment, error) {
		got = in
		return domain.Appointment{
			ID:          id,
			RequesterID: in.RequesterID,
			ProviderID:  in.ProviderID,
			ScheduledAt: domain.NormalizeSlot(in.Date),
		}, nil
	}

	rec := env.do(t, http.MethodPost, "/appointments", "requester",
		`{"provider_id":1,"date":"2024-06-10T14:37:00Z"}`, "Idempotency-Key", "abc-123")

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, int64(2), got.RequesterID)
	assert.Equal(t, int64(1), got.ProviderID)
	assert.Equal(t, "abc-123", got.IdempotencyKey)
	assert.True(t, got.Date.Equal(time.Date(2024, 6, 10, 14, 37, 0, 0, time.UTC)))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, id.String(), body["id"])
	assert.Equal(t, float64(2), body["requester_id"])
	assert.Equal(t, float64(1), body["provider_id"])
	assert.Equal(t, "2024-06-10T14:00:00Z", body["date"])
	assert.NotContains(t, body, "canceled_at")
}

func TestCreateAppointment_ReplayOfCanceledBooking(t *testing.T) {
	env := newTestEnv(t, nil)
	canceledAt := time.Date(2024, 6, 10, 10, 0, 0, 0, time.UTC)
	env.appts.create = func(_ context.Context, in appointments.CreateInput) (domain.Appointment, error) {
		return domain.Appointment{
			ID:          uuid.New(),
			RequesterID: in.RequesterID,
			ProviderID:  in.ProviderID,
			ScheduledAt: domain.NormalizeSlot(in.Date),
			CanceledAt:  &canceledAt,
		}, nil
	}

	rec := env.do(t, http.MethodPost, "/appointments", "requester",
		`{"provider_id":1,"date":"2024-06-10T14:00:00Z"}`, "Idempotency-Key", "abc-123")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	view := decodeBody[createdAppointmentView](t, rec)
	require.NotNil(t, view.CanceledAt)
	assert.True(t, view.CanceledAt.Equal(canceledAt))
}

func TestCORSPreflightAllowsIdempotencyHeaders(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, header := range []string{"Idempotency-Key", "X-Idempotency-Key"} {
		req := httptest.NewRequest(http.MethodOptions, "/appointments", nil)
		req.Header.Set("Origin", "http://app.local")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", header)
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)

		assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Origin"), header)
		assert.Contains(t, strings.ToLower(rec.Header().Get("Access-Control-Allow-Headers")), strings.ToLower(header))
	}
}

func TestCreateAppointment_BadBody(t *testing.T) {
	env := newTestEnv(t, nil)
	env.appts.create = func(context.Context, appointments.CreateInput) (domain.Appointment, error) {
		t.Fatal("service must not be called")
		return domain.Appointment{}, nil
	}

	for _, body := range []string{`{"provider_id":1}`, `{"provider_id":1,"date":"tomorrow"}`, `{"nope":true}`, ``} {
		rec := env.do(t, http.MethodPost, "/appointments", "requester", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, "validation_error", decodeBody[errorBody](t, rec).Code, body)
	}
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{appointments.ErrSlotUnavailable, http.StatusBadRequest, "slot_unavailable"},
		{appointments.ErrPastDate, http.StatusBadRequest, "past_date"},
		{appointments.ErrSelfBooking, http.StatusBadRequest, "self_booking"},
		{appointments.ErrInvalidProvider, http.StatusBadRequest, "invalid_provider"},
		{appointments.ErrIdempotencyConflict, http.StatusConflict, "idempotency_conflict"},
		{validation.New("date is required"), http.StatusBadRequest, "validation_error"},
		{errors.New("db down"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			env := newTestEnv(t, nil)
			env.appts.create = func(context.Context, appointments.CreateInput) (domain.Appointment, error) {
				return domain.Appointment{}, tc.err
			}
			rec := env.do(t, http.MethodPost, "/appointments", "requester", `{"provider_id":1,"date":"2024-06-10T14:00:00Z"}`)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.code, decodeBody[errorBody](t, rec).Code)
		})
	}
}

func TestCancelAppointment(t *testing.T) {
	env := newTestEnv(t, nil)
	id := uuid.New()
	canceledAt := time.Date(2024, 6, 10, 11, 0, 0, 0, time.UTC)
	env.appts.cancel = func(_ context.Context, got uuid.UUID, requesterID int64) (domain.Appointment, error) {
		if got != id {
			return domain.Appointment{}, appointments.ErrNotFound
		}
		if requesterID != 2 {
			return domain.Appointment{}, appointments.ErrNotOwner
		}
		return domain.Appointment{ID: id, CanceledAt: &canceledAt}, nil
	}

	rec := env.do(t, http.MethodDelete, "/appointments/"+id.String(), "requester", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	view := decodeBody[appointmentView](t, rec)
	require.NotNil(t, view.CanceledAt)
	assert.True(t, view.CanceledAt.Equal(canceledAt))

	rec = env.do(t, http.MethodDelete, "/appointments/"+id.String(), "provider", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "not_owner", decodeBody[errorBody](t, rec).Code)

	rec = env.do(t, http.MethodDelete, "/appointments/"+uuid.NewString(), "requester", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodDelete, "/appointments/42", "requester", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListAppointments(t *testing.T) {
	env := newTestEnv(t, nil)
	var gotPage int
	env.appts.list = func(_ context.Context, requesterID int64, page int) ([]appointments.RequesterAppointment, error) {
		gotPage = page
		return []appointments.RequesterAppointment{{
			Appointment: domain.Appointment{
				ID:          uuid.New(),
				ScheduledAt: time.Date(2024, 6, 10, 14, 0, 0, 0, time.UTC),
				Provider: &domain.User{
					ID: 1, Name: "Ana", Provider: true,
					Avatar: &domain.File{ID: 7, Name: "ana.png", Path: "abc.png"},
				},
			},
			Past:       false,
			Cancelable: true,
		}}, nil
	}

	rec := env.do(t, http.MethodGet, "/appointments?page=3", "requester", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 3, gotPage)

	views := decodeBody[[]appointmentView](t, rec)
	require.Len(t, views, 1)
	require.NotNil(t, views[0].Cancelable)
	assert.True(t, *views[0].Cancelable)
	require.NotNil(t, views[0].Past)
	assert.False(t, *views[0].Past)
	require.NotNil(t, views[0].Provider)
	require.NotNil(t, views[0].Provider.Avatar)
	assert.Equal(t, "http://files.local/abc.png", views[0].Provider.Avatar.URL)

	rec = env.do(t, http.MethodGet, "/appointments?page=x", "requester", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProviderAvailability(t *testing.T) {
	env := newTestEnv(t, nil)
	var gotProvider int64
	var gotDay time.Time
	env.appts.availability = func(_ context.Context, providerID int64, day time.Time) ([]appointments.DaySlot, error) {
		gotProvider, gotDay = providerID, day
		return []appointments.DaySlot{
			{Time: "08:00", Value: time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC), Available: false},
			{Time: "09:00", Value: time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC), Available: true},
		}, nil
	}

	rec := env.do(t, http.MethodGet, "/providers/1/available?date=2024-06-10", "requester", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(1), gotProvider)
	assert.True(t, gotDay.Equal(time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)))

	slots := decodeBody[[]slotView](t, rec)
	require.Len(t, slots, 2)
	assert.Equal(t, "09:00", slots[1].Time)
	assert.True(t, slots[1].Available)

	rec = env.do(t, http.MethodGet, "/providers/1/available", "requester", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProviderSchedule_NotAProvider(t *testing.T) {
	env := newTestEnv(t, nil)
	env.appts.schedule = func(_ context.Context, providerID int64, _ time.Time) ([]domain.Appointment, error) {
		if providerID != 1 {
			return nil, appointments.ErrNotAProvider
		}
		return nil, nil
	}

	rec := env.do(t, http.MethodGet, "/schedule?date=1718020800000", "requester", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "not_a_provider", decodeBody[errorBody](t, rec).Code)

	rec = env.do(t, http.MethodGet, "/schedule?date=1718020800000", "provider", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestCreateSession(t *testing.T) {
	env := newTestEnv(t, nil)
	env.sess.create = func(_ context.Context, email, password string) (sessions.Session, error) {
		if password != "secret-pass" {
			return sessions.Session{}, sessions.ErrPasswordMismatch
		}
		return sessions.Session{User: domain.User{ID: 2, Name: "Bruno", Email: email}, Token: "tok"}, nil
	}

	rec := env.do(t, http.MethodPost, "/sessions", "", `{"email":"bruno@example.com","password":"secret-pass"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sess := decodeBody[sessionView](t, rec)
	assert.Equal(t, "tok", sess.Token)
	require.NotNil(t, sess.User)
	assert.Equal(t, "bruno@example.com", sess.User.Email)

	rec = env.do(t, http.MethodPost, "/sessions", "", `{"email":"bruno@example.com","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "password_mismatch", decodeBody[errorBody](t, rec).Code)
}

func TestCreateAndUpdateUser(t *testing.T) {
	env := newTestEnv(t, nil)
	env.users.create = func(_ context.Context, in users.CreateInput) (domain.User, error) {
		if in.Email == "taken@example.com" {
			return domain.User{}, users.ErrEmailTaken
		}
		return domain.User{ID: 9, Name: in.Name, Email: in.Email, Provider: in.Provider}, nil
	}
	var gotUpdate users.UpdateInput
	env.users.update = func(_ context.Context, in users.UpdateInput) (domain.User, error) {
		gotUpdate = in
		return domain.User{ID: in.UserID, Name: *in.Name}, nil
	}

	rec := env.do(t, http.MethodPost, "/users", "", `{"name":"Ana","email":"ana@example.com","password":"12345678","provider":true}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	u := decodeBody[userView](t, rec)
	assert.True(t, u.Provider)
	assert.Nil(t, u.Avatar)

	rec = env.do(t, http.MethodPost, "/users", "", `{"name":"X","email":"taken@example.com","password":"12345678"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "email_taken", decodeBody[errorBody](t, rec).Code)

	rec = env.do(t, http.MethodPut, "/users", "requester", `{"name":"Bruno B"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(2), gotUpdate.UserID)
	assert.Nil(t, gotUpdate.Email)
}

func TestNotifications(t *testing.T) {
	env := newTestEnv(t, nil)
	env.notifs.list = func(_ context.Context, userID int64) ([]domain.Notification, error) {
		return []domain.Notification{{ID: 5, Content: "hello", RecipientUserID: userID}}, nil
	}
	env.notifs.markRead = func(_ context.Context, id, userID int64) (domain.Notification, error) {
		if id != 5 {
			return domain.Notification{}, notifications.ErrNotFound
		}
		return domain.Notification{ID: id, Content: "hello", Read: true}, nil
	}

	rec := env.do(t, http.MethodGet, "/notifications", "provider", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]notificationView](t, rec), 1)

	rec = env.do(t, http.MethodPut, "/notifications/5", "provider", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[notificationView](t, rec).Read)

	rec = env.do(t, http.MethodPut, "/notifications/6", "provider", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBookingRateLimit(t *testing.T) {
	counts := map[string]int64{}
	limiter := newRateLimiter(func(_ context.Context, key string) (int64, error) {
		counts[key]++
		return counts[key], nil
	}, 1, "test", false)

	env := newTestEnv(t, limiter)
	env.appts.create = func(_ context.Context, in appointments.CreateInput) (domain.Appointment, error) {
		return domain.Appointment{ID: uuid.New(), ScheduledAt: in.Date}, nil
	}
	body := `{"provider_id":1,"date":"2024-06-10T14:00:00Z"}`

	rec := env.do(t, http.MethodPost, "/appointments", "requester", body)
	assert.Equal(t, http.StatusCreated, rec.Code)
	rec = env.do(t, http.MethodPost, "/appointments", "requester", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, int64(2), counts["test:user:2"])
}

func TestBookingRateLimit_BackendDown(t *testing.T) {
	broken := func(context.Context, string) (int64, error) { return 0, errors.New("redis down") }
	create := func(_ context.Context, in appointments.CreateInput) (domain.Appointment, error) {
		return domain.Appointment{ID: uuid.New(), ScheduledAt: in.Date}, nil
	}
	body := `{"provider_id":1,"date":"2024-06-10T14:00:00Z"}`

	closed := newTestEnv(t, newRateLimiter(broken, 5, "", false))
	closed.appts.create = create
	assert.Equal(t, http.StatusServiceUnavailable, closed.do(t, http.MethodPost, "/appointments", "requester", body).Code)

	open := newTestEnv(t, newRateLimiter(broken, 5, "", true))
	open.appts.create = create
	assert.Equal(t, http.StatusCreated, open.do(t, http.MethodPost, "/appointments", "requester", body).Code)
}

func TestHealthz(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	up := NewServer(Deps{Health: pingFunc(func(context.Context) error { return nil }), Logger: logger}).Routes()
	down := NewServer(Deps{Health: pingFunc(func(context.Context) error { return errors.New("down") }), Logger: logger}).Routes()

	rec := httptest.NewRecorder()
	up.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	down.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestParseDate(t *testing.T) {
	loc := time.FixedZone("BRT", -3*3600)

	got, err := parseDate("2024-06-10T14:00", loc)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2024, 6, 10, 17, 0, 0, 0, time.UTC)))

	got, err = parseDate("2024-06-10T14:00:00Z", loc)
	require.NoError(t, err)
	assert.Equal(t, 11, got.Hour())

	_, err = parseDate("", loc)
	assert.Error(t, err)
}
