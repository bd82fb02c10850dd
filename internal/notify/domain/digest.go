package domain

import (
	"fmt"
	"html"
	"strings"
	"time"

	memberdomain "topli_chat/internal/member/domain"
)

const (
	// LockName system_locks document guarding the daily digest
	LockName = "daily_digest"
	// DefaultCooldown minimum gap between two digest runs
	DefaultCooldown = 23 * time.Hour
	// DefaultConcurrency dispatches in flight
	DefaultConcurrency = 10
	// DefaultDispatchTimeout per-user dispatch deadline
	DefaultDispatchTimeout = 20 * time.Second
	// DefaultRunBudget wall-clock budget of one run
	DefaultRunBudget = 540 * time.Second

	// EmailTitleLimit room titles listed in the email body
	EmailTitleLimit = 10
	// WhatsAppTitleLimit room titles listed in the whatsapp body
	WhatsAppTitleLimit = 5
	// UntitledRoom placeholder when a room has no title or is gone
	UntitledRoom = "Untitled"
	// ProductName shown in every notification
	ProductName = "Topli Chat"
)

// DigestLock system_locks/daily_digest
type DigestLock struct {
	ID      string    `bson:"_id"`
	LastRun time.Time `bson:"last_run"`
}

// Acquirable a run may start when there is no previous run or the cooldown has passed
func (l *DigestLock) Acquirable(now time.Time, cooldown time.Duration) bool {
	if l == nil || l.LastRun.IsZero() {
		return true
	}
	return now.Sub(l.LastRun) >= cooldown
}

// DigestReport outcome of one run
type DigestReport struct {
	Candidates int       `json:"candidates"`
	Sent       int       `json:"sent"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	StartedAt  time.Time `json:"started_at"`
	Duration   string    `json:"duration"`
}

// Recipient one user the digest will reach
type Recipient struct {
	UID         string
	Channel     memberdomain.NotificationChannel
	Email       string
	Phone       string
	UnreadTotal int
	RoomTitles  []string
}

// Contact address for the recipient's channel, empty when it can't be reached
func (r Recipient) Contact() string {
	switch r.Channel {
	case memberdomain.NotifyEmail:
		return r.Email
	case memberdomain.NotifySMS, memberdomain.NotifyWhatsApp:
		return r.Phone
	}
	return ""
}

// EmailMessage rendered email digest
type EmailMessage struct {
	To      string
	Subject string
	HTML    string
}

// RoomsLink page the notifications point to
func RoomsLink(appURL string) string {
	return strings.TrimRight(appURL, "/") + "/rooms"
}

// BuildEmail subject and html body listing up to EmailTitleLimit rooms
func BuildEmail(r Recipient, appURL string) EmailMessage {
	escaped := make([]string, 0, len(r.RoomTitles))
	for _, t := range r.RoomTitles {
		escaped = append(escaped, html.EscapeString(t))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<h2>You have %d unread messages</h2>", r.UnreadTotal)
	fmt.Fprintf(&b, "<p>Chats: %s</p>", listTitles(escaped, EmailTitleLimit))
	fmt.Fprintf(&b, `<p><a href="%s">Open chat</a></p>`, html.EscapeString(RoomsLink(appURL)))

	return EmailMessage{
		To:      r.Email,
		Subject: fmt.Sprintf("You have %d new messages in %s", r.UnreadTotal, ProductName),
		HTML:    b.String(),
	}
}

// BuildWhatsApp text body listing up to WhatsAppTitleLimit rooms
func BuildWhatsApp(r Recipient, appURL string) string {
	titles := r.RoomTitles
	if len(titles) > WhatsAppTitleLimit {
		titles = titles[:WhatsAppTitleLimit]
	}
	return fmt.Sprintf("%s\nYou have %d new messages!\n\nChats: %s\n\n%s",
		ProductName, r.UnreadTotal, strings.Join(titles, ", "), RoomsLink(appURL))
}

// BuildSMS short text body
func BuildSMS(r Recipient, appURL string) string {
	return fmt.Sprintf("%s: %d new messages. Open: %s", ProductName, r.UnreadTotal, RoomsLink(appURL))
}

func listTitles(titles []string, limit int) string {
	if len(titles) <= limit {
		return strings.Join(titles, ", ")
	}
	return strings.Join(titles[:limit], ", ") + " and others"
}
