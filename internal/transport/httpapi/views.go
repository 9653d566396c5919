package httpapi

import (
	"time"

	"booking/backend/internal/domain"
	"booking/backend/internal/service/appointments"
)

type fileView struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Path string `json:"path"`
	URL  string `json:"url"`
}

type userView struct {
	ID       int64     `json:"id"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Provider bool      `json:"provider"`
	Avatar   *fileView `json:"avatar,omitempty"`
}

type appointmentView struct {
	ID         string     `json:"id"`
	Date       time.Time  `json:"date"`
	CanceledAt *time.Time `json:"canceled_at,omitempty"`
	Past       *bool      `json:"past,omitempty"`
	Cancelable *bool      `json:"cancelable,omitempty"`
	Provider   *userView  `json:"provider,omitempty"`
	User       *userView  `json:"user,omitempty"`
}

// createdAppointmentView is the create response: the booking as stored.
type createdAppointmentView struct {
	ID          string     `json:"id"`
	RequesterID int64      `json:"requester_id"`
	ProviderID  int64      `json:"provider_id"`
	Date        time.Time  `json:"date"`
	CanceledAt  *time.Time `json:"canceled_at,omitempty"`
}

type slotView struct {
	Time      string    `json:"time"`
	Value     time.Time `json:"value"`
	Available bool      `json:"available"`
}

type notificationView struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Server) toUserView(u *domain.User) *userView {
	if u == nil {
		return nil
	}
	v := &userView{ID: u.ID, Name: u.Name, Email: u.Email, Provider: u.Provider}
	if u.Avatar != nil {
		v.Avatar = &fileView{
			ID:   u.Avatar.ID,
			Name: u.Avatar.Name,
			Path: u.Avatar.Path,
			URL:  s.filesBaseURL + "/" + u.Avatar.Path,
		}
	}
	return v
}

func (s *Server) toAppointmentView(a domain.Appointment, loc *time.Location) appointmentView {
	v := appointmentView{
		ID:       a.ID.String(),
		Date:     a.ScheduledAt.In(loc),
		Provider: s.toUserView(a.Provider),
		User:     s.toUserView(a.Requester),
	}
	if a.CanceledAt != nil {
		t := a.CanceledAt.In(loc)
		v.CanceledAt = &t
	}
	return v
}

func toCreatedAppointmentView(a domain.Appointment, loc *time.Location) createdAppointmentView {
	v := createdAppointmentView{
		ID:          a.ID.String(),
		RequesterID: a.RequesterID,
		ProviderID:  a.ProviderID,
		Date:        a.ScheduledAt.In(loc),
	}
	if a.CanceledAt != nil {
		t := a.CanceledAt.In(loc)
		v.CanceledAt = &t
	}
	return v
}

func (s *Server) toRequesterAppointmentView(a appointments.RequesterAppointment, loc *time.Location) appointmentView {
	v := s.toAppointmentView(a.Appointment, loc)
	past, cancelable := a.Past, a.Cancelable
	v.Past = &past
	v.Cancelable = &cancelable
	return v
}

func toNotificationView(n domain.Notification) notificationView {
	return notificationView{ID: n.ID, Content: n.Content, Read: n.Read, CreatedAt: n.CreatedAt}
}
