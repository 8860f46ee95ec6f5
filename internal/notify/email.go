package notify

import (
	"bytes"
	"fmt"
	"net/smtp"
	"text/template"
	"time"

	"github.com/rcmukkamala/aqi-pipeline/pkg/config"
)

// AnomalyEvent is one anomalous city result from a pipeline run.
type AnomalyEvent struct {
	City     string
	AQI      float64
	Category string
	Dominant string
	At       time.Time
}

// EmailNotifier sends a digest of anomalous cities after a run.
type EmailNotifier struct {
	config *config.SMTPConfig
}

// NewEmailNotifier creates a new email notifier
func NewEmailNotifier(cfg *config.SMTPConfig) *EmailNotifier {
	return &EmailNotifier{config: cfg}
}

var digestTemplate = template.Must(template.New("digest").Parse(`
AQI Anomaly Digest
==================

The following cities produced anomalous AQI readings this run:
{{range .}}
City: {{.City}}
AQI: {{printf "%.1f" .AQI}} ({{.Category}})
Dominant Pollutant: {{.Dominant}}
Observed At: {{.At.Format "2006-01-02 15:04 MST"}}
{{end}}
This is an automated message from the AQI pipeline.
`))

// SendAnomalyDigest sends one email covering all anomalous cities of a run.
func (e *EmailNotifier) SendAnomalyDigest(events []AnomalyEvent) error {
	if len(events) == 0 {
		return nil
	}

	var body bytes.Buffer
	if err := digestTemplate.Execute(&body, events); err != nil {
		return fmt.Errorf("failed to render digest template: %w", err)
	}

	subject := fmt.Sprintf("AQI Anomaly Alert - %d city(ies)", len(events))
	return e.sendEmail(subject, body.String())
}

func (e *EmailNotifier) sendEmail(subject, body string) error {
	addr := fmt.Sprintf("%s:%d", e.config.Host, e.config.Port)
	auth := smtp.PlainAuth("", e.config.Username, e.config.Password, e.config.Host)

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		e.config.From, e.config.To, subject, body)

	if err := smtp.SendMail(addr, auth, e.config.From, []string{e.config.To}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
