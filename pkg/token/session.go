package token

import (
	"fmt"

	"topli_chat/pkg/config"
)

// IssueSession sign the session token handed out after OTP login.
// The iss claim is the chat service name from the environment.
func IssueSession(uid, role string) (string, error) {
	if !RoleType(role).Valid() {
		return "", fmt.Errorf("issue session for %s: unknown role %q", uid, role)
	}
	return GenerateJWT(uid, role, config.EnvConfig.ChatService)
}

// VerifySession parse a bearer token; tokens without a member id or with a role
// this service does not know are rejected
func VerifySession(raw string) (*Claims, error) {
	claims, err := ParseJWT(raw)
	if err != nil {
		return nil, err
	}
	if claims.MemberID == "" {
		return nil, fmt.Errorf("session token has no member id")
	}
	if !RoleType(claims.Role).Valid() {
		return nil, fmt.Errorf("session token role %q is not known", claims.Role)
	}
	return claims, nil
}
