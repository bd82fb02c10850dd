package token

import (
	"errors"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoleType set member role
type RoleType string

const (
	// RoleAdmin is the admin role
	RoleAdmin RoleType = "admin"
	// RoleManager can create rooms and manage participants
	RoleManager RoleType = "manager"
	// RoleClient is the default role
	RoleClient RoleType = "client"
	// RoleDeveloper is a partner role
	RoleDeveloper RoleType = "developer"
	// RoleBank is a partner role
	RoleBank RoleType = "bank"
	// RoleInsurance is a partner role
	RoleInsurance RoleType = "insurance"
)

// Permission action guarded by role
type Permission string

const (
	// PermCreateRoom create rooms and invites
	PermCreateRoom Permission = "createRoom"
	// PermManageParticipants add/remove room participants
	PermManageParticipants Permission = "manageParticipants"
	// PermDeleteMessages delete any message
	PermDeleteMessages Permission = "deleteMessages"
	// PermSendMessage send messages
	PermSendMessage Permission = "sendMessage"
	// PermUploadFile upload attachments
	PermUploadFile Permission = "uploadFile"
)

var rolePermissions = map[RoleType][]Permission{
	RoleManager:   {PermCreateRoom, PermManageParticipants, PermDeleteMessages},
	RoleClient:    {PermSendMessage, PermUploadFile},
	RoleDeveloper: {PermSendMessage, PermUploadFile},
	RoleBank:      {PermSendMessage, PermUploadFile},
	RoleInsurance: {PermSendMessage, PermUploadFile},
}

// Can report whether role is granted p; admin is granted everything
func (r RoleType) Can(p Permission) bool {
	if r == RoleAdmin {
		return true
	}
	for _, granted := range rolePermissions[r] {
		if granted == p {
			return true
		}
	}
	return false
}

// Valid report whether r is a known role
func (r RoleType) Valid() bool {
	if r == RoleAdmin {
		return true
	}
	_, ok := rolePermissions[r]
	return ok
}

// Claims structure for custom claims in JWT
type Claims struct {
	MemberID string `json:"user_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Secret Key for JWT signing and validation
var (
	JWTSecret       = loadSecret()
	tokenExpiration = 7 * 24 * time.Hour
)

func loadSecret() []byte {
	if s := os.Getenv("JWT_SECRET"); s != "" {
		return []byte(s)
	}
	return []byte("secure_secret_key")
}

// GenerateJWT generates a JWT token
func GenerateJWT(memberID, role, issuer string) (string, error) {
	claims := Claims{
		MemberID: memberID,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenExpiration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    issuer,
			Subject:   memberID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(JWTSecret)
}

// ParseJWT parses a JWT and extracts the Claims
func ParseJWT(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return JWTSecret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}
