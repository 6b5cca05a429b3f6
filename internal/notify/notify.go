package notify

import (
	"bytes"
	"fmt"
	"text/template"
)

type Event string

const (
	EventOTPIssued          Event = "OTP_ISSUED"
	EventAppointmentCreated Event = "APPOINTMENT_CREATED"
	EventConfirmed          Event = "CONFIRMED"
	EventRejected           Event = "REJECTED"
	EventCancelled          Event = "CANCELLED"
	EventCompleted          Event = "COMPLETED"
)

// Context carries everything a template may reference. Callers fill the
// fields that apply to the event.
type Context struct {
	ApplicantName    string
	ApplicantEmail   string
	OfficialName     string
	OfficialEmail    string
	Category         string
	Date             string
	Time             string
	Purpose          string
	Notes            string
	OTPCode          string
	ExpiresInMinutes int
}

// Message is a rendered plain-text email ready for a Provider.
type Message struct {
	To      []string
	Subject string
	Body    string
}

var templates = map[Event]*template.Template{
	EventOTPIssued: template.Must(template.New("otp").Parse(
		`Your one-time verification code is {{.OTPCode}}.

It is valid for {{.ExpiresInMinutes}} minutes. If you did not request an
appointment booking, you can ignore this message.
`)),
	EventAppointmentCreated: template.Must(template.New("created").Parse(
		`Dear {{.ApplicantName}},

Your appointment request with the {{.Category}} ({{.OfficialName}}) has been
received for {{.Date}} at {{.Time}}.

Purpose: {{.Purpose}}

You will be notified once the request is reviewed.
`)),
	EventConfirmed: template.Must(template.New("confirmed").Parse(
		`Dear {{.ApplicantName}},

Your appointment with the {{.Category}} ({{.OfficialName}}) on {{.Date}} at
{{.Time}} has been confirmed.
{{if .Notes}}
Notes: {{.Notes}}
{{end}}`)),
	EventRejected: template.Must(template.New("rejected").Parse(
		`Dear {{.ApplicantName}},

Your appointment request with the {{.Category}} for {{.Date}} at {{.Time}}
could not be accommodated.
{{if .Notes}}
Notes: {{.Notes}}
{{end}}`)),
	EventCancelled: template.Must(template.New("cancelled").Parse(
		`Dear {{.ApplicantName}},

Your appointment with the {{.Category}} on {{.Date}} at {{.Time}} has been
cancelled.
{{if .Notes}}
Notes: {{.Notes}}
{{end}}`)),
	EventCompleted: template.Must(template.New("completed").Parse(
		`Dear {{.ApplicantName}},

Your appointment with the {{.Category}} on {{.Date}} at {{.Time}} has been
marked completed. Thank you for visiting.
`)),
}

var subjects = map[Event]string{
	EventOTPIssued:          "Your appointment booking verification code",
	EventAppointmentCreated: "Appointment request received",
	EventConfirmed:          "Appointment confirmed",
	EventRejected:           "Appointment request rejected",
	EventCancelled:          "Appointment cancelled",
	EventCompleted:          "Appointment completed",
}

// Render picks the template for an event and renders it. Recipients are the
// applicant, plus the official for everything except the OTP mail.
func Render(ev Event, c Context) (Message, error) {
	tmpl, ok := templates[ev]
	if !ok {
		return Message{}, fmt.Errorf("no template for event %q", ev)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, c); err != nil {
		return Message{}, fmt.Errorf("render %s: %w", ev, err)
	}

	to := []string{c.ApplicantEmail}
	if ev != EventOTPIssued && c.OfficialEmail != "" {
		to = append(to, c.OfficialEmail)
	}

	return Message{
		To:      to,
		Subject: subjects[ev],
		Body:    buf.String(),
	}, nil
}
