package auth

import (
	"testing"
	"time"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	token, err := NewAccessToken("secret", "issuer", time.Minute, Claims{
		UserID:   "user-1",
		Role:     RoleTeacher,
		SchoolID: "school-1",
	})
	if err != nil {
		t.Fatalf("token error: %v", err)
	}

	claims, err := ParseToken("secret", token)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	if claims.UserID != "user-1" || claims.Role != RoleTeacher || claims.SchoolID != "school-1" {
		t.Fatalf("unexpected claims")
	}
}

func TestParseTokenWrongSecret(t *testing.T) {
	token, err := NewAccessToken("secret", "issuer", time.Minute, Claims{UserID: "user-1", Role: RoleTeacher})
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if _, err := ParseToken("other", token); err == nil {
		t.Fatalf("expected wrong secret to error")
	}
}

func TestValidRole(t *testing.T) {
	for _, role := range []string{RoleSuperAdmin, RoleSchoolAdmin, RoleTeacher} {
		if !ValidRole(role) {
			t.Fatalf("expected role %s to be valid", role)
		}
	}
	if ValidRole("student") {
		t.Fatalf("expected unknown role to be invalid")
	}
}
