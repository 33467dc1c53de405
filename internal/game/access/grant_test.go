package access

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"
)

func newTestKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}
	return public, private
}

func newTestSigner(t *testing.T, private ed25519.PrivateKey, now time.Time, ttl time.Duration) *Signer {
	t.Helper()
	signer := NewSigner(SignerConfig{
		Issuer:   "exquisite",
		Audience: "exquisite-play",
		Key:      private,
		TTL:      ttl,
	})
	signer.clock = func() time.Time { return now }
	signer.newID = func() (string, error) { return "grant-1", nil }
	return signer
}

func newTestVerifier(public ed25519.PublicKey, now time.Time) *Verifier {
	return NewVerifier(VerifierConfig{
		Issuer:   "exquisite",
		Audience: "exquisite-play",
		Key:      public,
		Now:      func() time.Time { return now },
	})
}

func TestGrantRoundTrip(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	public, private := newTestKeys(t)
	signer := newTestSigner(t, private, now, time.Hour)
	verifier := newTestVerifier(public, now.Add(30*time.Minute))

	grant, err := signer.IssueParticipantGrant("game-1", "part-2")
	if err != nil {
		t.Fatalf("issue grant: %v", err)
	}

	claims, err := verifier.VerifyParticipantGrant(grant, "game-1", "part-2")
	if err != nil {
		t.Fatalf("verify grant: %v", err)
	}
	if claims.GameID != "game-1" || claims.ParticipantID != "part-2" {
		t.Fatalf("claims = %+v", claims)
	}
	if claims.JWTID != "grant-1" {
		t.Fatalf("JWTID = %q", claims.JWTID)
	}
	if !claims.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("ExpiresAt = %v", claims.ExpiresAt)
	}
}

func TestVerify_ExpiredGrant(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	public, private := newTestKeys(t)
	signer := newTestSigner(t, private, now, time.Hour)
	verifier := newTestVerifier(public, now.Add(2*time.Hour))

	grant, err := signer.IssueParticipantGrant("game-1", "part-2")
	if err != nil {
		t.Fatalf("issue grant: %v", err)
	}
	if _, err := verifier.VerifyParticipantGrant(grant, "game-1", "part-2"); !errors.Is(err, ErrGrantExpired) {
		t.Fatalf("err = %v, want ErrGrantExpired", err)
	}
}

func TestVerify_MismatchedSlot(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	public, private := newTestKeys(t)
	signer := newTestSigner(t, private, now, time.Hour)
	verifier := newTestVerifier(public, now)

	grant, err := signer.IssueParticipantGrant("game-1", "part-2")
	if err != nil {
		t.Fatalf("issue grant: %v", err)
	}
	if _, err := verifier.VerifyParticipantGrant(grant, "game-2", "part-2"); !errors.Is(err, ErrGrantMismatch) {
		t.Fatalf("game mismatch err = %v, want ErrGrantMismatch", err)
	}
	if _, err := verifier.VerifyParticipantGrant(grant, "game-1", "part-3"); !errors.Is(err, ErrGrantMismatch) {
		t.Fatalf("participant mismatch err = %v, want ErrGrantMismatch", err)
	}
}

func TestVerify_WrongKeyRejected(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	_, private := newTestKeys(t)
	otherPublic, _ := newTestKeys(t)
	signer := newTestSigner(t, private, now, time.Hour)
	verifier := newTestVerifier(otherPublic, now)

	grant, err := signer.IssueParticipantGrant("game-1", "part-2")
	if err != nil {
		t.Fatalf("issue grant: %v", err)
	}
	if _, err := verifier.VerifyParticipantGrant(grant, "game-1", "part-2"); !errors.Is(err, ErrGrantInvalid) {
		t.Fatalf("err = %v, want ErrGrantInvalid", err)
	}
}

func TestVerify_GarbageToken(t *testing.T) {
	t.Parallel()

	public, _ := newTestKeys(t)
	verifier := newTestVerifier(public, time.Now())
	if _, err := verifier.VerifyParticipantGrant("not-a-token", "game-1", "part-2"); !errors.Is(err, ErrGrantInvalid) {
		t.Fatalf("err = %v, want ErrGrantInvalid", err)
	}
	if _, err := verifier.VerifyParticipantGrant("  ", "game-1", "part-2"); !errors.Is(err, ErrGrantInvalid) {
		t.Fatalf("blank err = %v, want ErrGrantInvalid", err)
	}
}
