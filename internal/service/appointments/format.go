package appointments

import (
	"fmt"
	"strings"
	"time"
)

var ptMonths = [...]string{
	"janeiro", "fevereiro", "março", "abril", "maio", "junho",
	"julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
}

// Locale renders slot descriptions and notification texts.
type Locale string

const (
	LocalePT Locale = "pt"
	LocaleEN Locale = "en"
)

func ParseLocale(s string) Locale {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "en", "en-us", "en_us", "en-gb":
		return LocaleEN
	default:
		return LocalePT
	}
}

// FormatSlot describes a slot, e.g. "dia 10 de junho, às 14:00h".
func (l Locale) FormatSlot(t time.Time) string {
	switch l {
	case LocaleEN:
		return fmt.Sprintf("%s %d at %d:%02d", t.Month().String(), t.Day(), t.Hour(), t.Minute())
	default:
		return fmt.Sprintf("dia %02d de %s, às %d:%02dh", t.Day(), ptMonths[t.Month()-1], t.Hour(), t.Minute())
	}
}

func (l Locale) NewAppointmentMessage(requesterName string, slot time.Time) string {
	switch l {
	case LocaleEN:
		return fmt.Sprintf("New appointment from %s on %s", requesterName, l.FormatSlot(slot))
	default:
		return fmt.Sprintf("Novo agendamento de %s para o %s", requesterName, l.FormatSlot(slot))
	}
}
