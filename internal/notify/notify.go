// Package notify delivers session lifecycle notifications to a webhook
// endpoint and/or a local log file.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/serrebi/streamgate/internal/types"
	"github.com/serrebi/streamgate/internal/util"
)

// Session lifecycle events reported to notification channels.
const (
	EventSessionStarted = "session_started"
	EventSessionCrashed = "session_crashed"
	EventSessionEvicted = "session_evicted"
	EventEngineMissing  = "engine_missing"
)

// Payload is the body sent to webhook endpoints and appended to log files.
type Payload struct {
	Event       string        `json:"event"`
	Fingerprint string        `json:"fingerprint,omitempty"`
	Source      string        `json:"source,omitempty"`
	Profile     types.Profile `json:"profile,omitempty"`
	Message     string        `json:"message,omitempty"`
	Timestamp   string        `json:"timestamp"`
}

// timestampUTC returns the current UTC time in RFC3339 format.
func timestampUTC() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// SessionEvent builds a payload for a session lifecycle event.
func SessionEvent(event string, status types.SessionStatus, message string) *Payload {
	return &Payload{
		Event:       event,
		Fingerprint: status.Fingerprint,
		Source:      status.Source,
		Profile:     status.Profile,
		Message:     message,
		Timestamp:   timestampUTC(),
	}
}

// GatewayEvent builds a payload for an event not tied to any session.
func GatewayEvent(event, message string) *Payload {
	return &Payload{
		Event:     event,
		Message:   message,
		Timestamp: timestampUTC(),
	}
}

// SendWebhook delivers a notification to the configured webhook endpoint.
// A missing webhook URL is not an error; delivery is silently skipped.
func SendWebhook(webhookURL string, payload *Payload) error {
	if !util.IsConfigured(webhookURL) {
		return nil
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return util.WrapError("marshal payload", err)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(webhookURL, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return util.WrapError("send webhook request", err)
	}
	defer util.SafeCloseFunc(resp.Body, "webhook response body")()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}

// AppendLog appends a notification entry to the log file as one JSON line.
// A missing log path is not an error; the write is silently skipped.
func AppendLog(logPath string, payload *Payload) error {
	if !util.IsConfigured(logPath) {
		return nil
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return util.WrapError("marshal log entry", err)
	}

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return util.WrapError("open log file", err)
	}
	defer util.SafeCloseFunc(f, "log file")()

	if _, err := f.Write(append(jsonData, '\n')); err != nil {
		return util.WrapError("write log entry", err)
	}

	return nil
}

// Notifier fans one payload out to every configured channel.
type Notifier struct {
	webhookURL string
	logPath    string
}

// NewNotifier returns a Notifier for the given channels. Either value may
// be empty to disable that channel.
func NewNotifier(webhookURL, logPath string) *Notifier {
	return &Notifier{webhookURL: webhookURL, logPath: logPath}
}

// Notify delivers the payload to all configured channels, logging failures.
func (n *Notifier) Notify(payload *Payload) {
	if util.IsConfigured(n.webhookURL) {
		util.LogNotifyResult(func() error {
			return SendWebhook(n.webhookURL, payload)
		}, "webhook:"+payload.Event)
	}
	if util.IsConfigured(n.logPath) {
		util.LogNotifyResult(func() error {
			return AppendLog(n.logPath, payload)
		}, "log:"+payload.Event)
	}
}
