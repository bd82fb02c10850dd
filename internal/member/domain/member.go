package domain

import (
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"time"
)

// NotificationChannel 每日摘要的通知方式
type NotificationChannel string

const (
	// NotifyEmail send digest by email
	NotifyEmail NotificationChannel = "email"
	// NotifySMS send digest by sms
	NotifySMS NotificationChannel = "sms"
	// NotifyWhatsApp send digest by whatsapp
	NotifyWhatsApp NotificationChannel = "whatsapp"
	// NotifyNone digest disabled
	NotifyNone NotificationChannel = "none"
)

// Valid check channel value
func (c NotificationChannel) Valid() bool {
	switch c {
	case NotifyEmail, NotifySMS, NotifyWhatsApp, NotifyNone:
		return true
	}
	return false
}

const (
	// DefaultLanguage language of new users
	DefaultLanguage = "TR"
	// DefaultNotification channel of new users
	DefaultNotification = NotifyEmail
)

// User public user record
type User struct {
	UID          string              `json:"uid"`
	Name         string              `json:"name"`
	PhotoURL     string              `json:"photo_url,omitempty"`
	Phone        string              `json:"-"`
	MaskedPhone  string              `json:"masked_phone,omitempty"`
	Role         string              `json:"role"`
	Position     string              `json:"position,omitempty"`
	Company      string              `json:"company,omitempty"`
	Language     string              `json:"language"`
	Notification NotificationChannel `json:"notification"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// SaveUserInput save-user request
type SaveUserInput struct {
	UID          string              `json:"uid"`
	Email        string              `json:"email"`
	Phone        string              `json:"phone"`
	Name         string              `json:"name"`
	PhotoURL     string              `json:"photo_url"`
	Role         string              `json:"role"`
	Position     string              `json:"position"`
	Company      string              `json:"company"`
	Language     string              `json:"language"`
	Notification NotificationChannel `json:"notification"`
	MaskedPhone  string              `json:"masked_phone"`
}

// OTPCode hashed phone code stored in redis
type OTPCode struct {
	Hash      string    `json:"hash"`
	CreatedAt time.Time `json:"created_at"`
}

// 密碼重設流程的時間限制
const (
	ResetResendLimit = 5 * time.Minute
	ResetCodeTTL     = 10 * time.Minute
	ResetSessionTTL  = 15 * time.Minute
)

// 密碼長度；bcrypt 只接受 72 bytes
const (
	MinPasswordLength = 8
	MaxPasswordLength = 72
)

// MaxAvatarSize avatar upload limit
const MaxAvatarSize = 5 << 20

// AvatarUpload upload-avatar request; UID empty means the caller
type AvatarUpload struct {
	UID         string
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// AvatarObjectKey users/{uid}/avatar_{name}; directories in name are dropped
func AvatarObjectKey(uid, fileName string) string {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(fileName), "\\", "/"))
	return fmt.Sprintf("users/%s/avatar_%s", uid, name)
}

// NormalizeEmail trim and lower-case; emails are matched case-insensitively
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

var phonePattern = regexp.MustCompile(`(\+\d{2})\d{6}(\d{2})`)

// MaskPhone hide the six digits after the country code: +905321234567 -> +90••••••4567
func MaskPhone(phone string) string {
	if phone == "" {
		return ""
	}
	return phonePattern.ReplaceAllString(phone, "$1••••••$2")
}

// NormalizePhone strip spaces and dashes
func NormalizePhone(phone string) string {
	return strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(phone))
}
