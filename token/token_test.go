package token

import (
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	codec := NewCodec("test-secret", fixedClock(now))

	signed, err := codec.Issue("visitor-1", "community-1", now.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	claims, err := codec.Verify(signed)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if claims.SubjectID != "visitor-1" {
		t.Fatalf("expected subject visitor-1 got %s", claims.SubjectID)
	}
	if claims.CommunityID != "community-1" {
		t.Fatalf("expected community community-1 got %s", claims.CommunityID)
	}
	if !claims.ExpiresAt.Equal(now.Add(24 * time.Hour)) {
		t.Fatalf("unexpected expiry %s", claims.ExpiresAt)
	}
}

func TestVerifyExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	codec := NewCodec("test-secret", fixedClock(now))

	signed, err := codec.Issue("visitor-1", "community-1", now.Add(time.Hour))
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	late := NewCodec("test-secret", fixedClock(now.Add(2*time.Hour)))
	if _, err := late.Verify(signed); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired got %v", err)
	}
}

func TestVerifyTampered(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	codec := NewCodec("test-secret", fixedClock(now))

	signed, err := codec.Issue("visitor-1", "community-1", now.Add(time.Hour))
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	// flip one byte of the signature
	flipped := []byte(signed)
	last := len(flipped) - 1
	if flipped[last] == 'A' {
		flipped[last] = 'B'
	} else {
		flipped[last] = 'A'
	}

	if _, err := codec.Verify(string(flipped)); !errors.Is(err, ErrTampered) {
		t.Fatalf("expected ErrTampered got %v", err)
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	codec := NewCodec("test-secret", fixedClock(now))

	signed, err := codec.Issue("visitor-1", "community-1", now.Add(time.Hour))
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	other := NewCodec("other-secret", fixedClock(now))
	if _, err := other.Verify(signed); !errors.Is(err, ErrTampered) {
		t.Fatalf("expected ErrTampered got %v", err)
	}
}

func TestIssueRejectsPastExpiry(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	codec := NewCodec("test-secret", fixedClock(now))

	if _, err := codec.Issue("visitor-1", "community-1", now.Add(-time.Minute)); err == nil {
		t.Fatalf("expected error issuing already-expired token")
	}
	if _, err := codec.Issue("visitor-1", "community-1", now); err == nil {
		t.Fatalf("expected error issuing token expiring now")
	}
}

func TestNewVisitorCodeFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^VIS-[0-9A-F]{16}$`)
	seen := map[string]bool{}
	for i := 0; i < 64; i++ {
		code, err := NewVisitorCode()
		if err != nil {
			t.Fatalf("generate failed: %v", err)
		}
		if !pattern.MatchString(code) {
			t.Fatalf("code %q does not match expected format", code)
		}
		if seen[code] {
			t.Fatalf("duplicate code %q", code)
		}
		seen[code] = true
	}
}

func TestNewDeliveryPasscodeFormat(t *testing.T) {
	for i := 0; i < 64; i++ {
		code, err := NewDeliveryPasscode()
		if err != nil {
			t.Fatalf("generate failed: %v", err)
		}
		if len(code) != 6 || strings.Trim(code, "0123456789") != "" {
			t.Fatalf("passcode %q is not 6 digits", code)
		}
		if code[0] == '0' {
			t.Fatalf("passcode %q outside 100000-999999", code)
		}
	}
}
