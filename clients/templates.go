package clients

import (
	"bytes"
	"fmt"
	"html/template"
	"ticketing/entity"
)

var (
	reminderTemplate = template.Must(template.New("reminder").Parse(`<!DOCTYPE html>
<html>
<body>
  <h2>Reminder: {{.Event.Title}}</h2>
  <p>Hi {{.Name}},</p>
  <p>{{.Event.Title}} starts on {{.Event.StartsAt.Format "Monday, 2 January 2006 at 15:04 MST"}}.</p>
  {{if .Event.Location}}<p>Location: {{.Event.Location}}</p>{{end}}
  <p>Have your ticket QR code ready at the entrance.</p>
</body>
</html>`))

	confirmationTemplate = template.Must(template.New("confirmation").Parse(`<!DOCTYPE html>
<html>
<body>
  <h2>Your tickets for {{.Event.Title}}</h2>
  <p>{{.Event.Title}} starts on {{.Event.StartsAt.Format "Monday, 2 January 2006 at 15:04 MST"}}.</p>
  <ul>
  {{range .Codes}}<li><code>{{.}}</code></li>
  {{end}}</ul>
  <p>Show the QR code of each ticket at the entrance. Each code can be scanned once.</p>
</body>
</html>`))
)

// ReminderEmail renders the reminder sent before an event.
func ReminderEmail(user entity.User, event entity.Event) (string, string, error) {
	name := user.FirstName
	if name == "" {
		name = user.Email
	}

	var buf bytes.Buffer
	err := reminderTemplate.Execute(&buf, struct {
		Name  string
		Event entity.Event
	}{name, event})
	if err != nil {
		return "", "", fmt.Errorf("executing reminder template: %w", err)
	}

	return "Reminder: " + event.Title, buf.String(), nil
}

// TicketConfirmationEmail renders the list of issued ticket codes.
func TicketConfirmationEmail(event entity.Event, codes []string) (string, string, error) {
	var buf bytes.Buffer
	err := confirmationTemplate.Execute(&buf, struct {
		Event entity.Event
		Codes []string
	}{event, codes})
	if err != nil {
		return "", "", fmt.Errorf("executing confirmation template: %w", err)
	}

	return "Your tickets for " + event.Title, buf.String(), nil
}
