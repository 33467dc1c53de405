// Package access mints and verifies participant grants, the signed tokens
// embedded in play links so a participant can act without an account.
package access

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"

	"github.com/louisbranch/exquisite/internal/platform/id"
)

var (
	// ErrGrantInvalid indicates the grant is malformed, unsigned, or missing
	// required claims.
	ErrGrantInvalid = errors.New("participant grant is invalid")
	// ErrGrantExpired indicates the grant is past its expiry.
	ErrGrantExpired = errors.New("participant grant is expired")
	// ErrGrantMismatch indicates the grant names a different game or
	// participant than the request.
	ErrGrantMismatch = errors.New("participant grant does not match the request")
)

// grantEnv holds raw env values before post-parse validation.
type grantEnv struct {
	Issuer     string        `env:"EXQUISITE_GRANT_ISSUER"`
	Audience   string        `env:"EXQUISITE_GRANT_AUDIENCE"`
	PrivateKey string        `env:"EXQUISITE_GRANT_PRIVATE_KEY"`
	PublicKey  string        `env:"EXQUISITE_GRANT_PUBLIC_KEY"`
	TTL        time.Duration `env:"EXQUISITE_GRANT_TTL"         envDefault:"168h"`
}

// SignerConfig defines how participant grants are minted.
type SignerConfig struct {
	Issuer   string
	Audience string
	Key      ed25519.PrivateKey
	TTL      time.Duration
}

// VerifierConfig defines how participant grants are verified.
type VerifierConfig struct {
	Issuer   string
	Audience string
	Key      ed25519.PublicKey
	Now      func() time.Time
}

// grantClaims is the internal claims type used for JWT parsing.
type grantClaims struct {
	jwt.RegisteredClaims
	GameID        string `json:"game_id"`
	ParticipantID string `json:"participant_id"`
}

// Claims captures validated participant grant claims.
type Claims struct {
	GameID        string
	ParticipantID string
	ExpiresAt     time.Time
	JWTID         string
}

// LoadSignerConfigFromEnv reads grant signing configuration.
func LoadSignerConfigFromEnv() (SignerConfig, error) {
	var raw grantEnv
	if err := env.Parse(&raw); err != nil {
		return SignerConfig{}, fmt.Errorf("parse grant env: %w", err)
	}
	issuer := strings.TrimSpace(raw.Issuer)
	audience := strings.TrimSpace(raw.Audience)
	privateKey := strings.TrimSpace(raw.PrivateKey)
	if issuer == "" {
		return SignerConfig{}, fmt.Errorf("EXQUISITE_GRANT_ISSUER is required")
	}
	if audience == "" {
		return SignerConfig{}, fmt.Errorf("EXQUISITE_GRANT_AUDIENCE is required")
	}
	if privateKey == "" {
		return SignerConfig{}, fmt.Errorf("EXQUISITE_GRANT_PRIVATE_KEY is required")
	}
	keyBytes, err := decodeBase64(privateKey)
	if err != nil {
		return SignerConfig{}, fmt.Errorf("decode grant private key: %w", err)
	}
	if len(keyBytes) != ed25519.PrivateKeySize {
		return SignerConfig{}, fmt.Errorf("grant private key must be %d bytes", ed25519.PrivateKeySize)
	}
	if raw.TTL <= 0 {
		return SignerConfig{}, fmt.Errorf("grant ttl must be positive")
	}
	return SignerConfig{
		Issuer:   issuer,
		Audience: audience,
		Key:      ed25519.PrivateKey(keyBytes),
		TTL:      raw.TTL,
	}, nil
}

// LoadVerifierConfigFromEnv reads grant verification configuration.
func LoadVerifierConfigFromEnv(now func() time.Time) (VerifierConfig, error) {
	var raw grantEnv
	if err := env.Parse(&raw); err != nil {
		return VerifierConfig{}, fmt.Errorf("parse grant env: %w", err)
	}
	issuer := strings.TrimSpace(raw.Issuer)
	audience := strings.TrimSpace(raw.Audience)
	publicKey := strings.TrimSpace(raw.PublicKey)
	if issuer == "" {
		return VerifierConfig{}, fmt.Errorf("EXQUISITE_GRANT_ISSUER is required")
	}
	if audience == "" {
		return VerifierConfig{}, fmt.Errorf("EXQUISITE_GRANT_AUDIENCE is required")
	}
	if publicKey == "" {
		return VerifierConfig{}, fmt.Errorf("EXQUISITE_GRANT_PUBLIC_KEY is required")
	}
	keyBytes, err := decodeBase64(publicKey)
	if err != nil {
		return VerifierConfig{}, fmt.Errorf("decode grant public key: %w", err)
	}
	if len(keyBytes) != ed25519.PublicKeySize {
		return VerifierConfig{}, fmt.Errorf("grant public key must be %d bytes", ed25519.PublicKeySize)
	}
	if now == nil {
		now = time.Now
	}
	return VerifierConfig{
		Issuer:   issuer,
		Audience: audience,
		Key:      ed25519.PublicKey(keyBytes),
		Now:      now,
	}, nil
}

// Signer mints participant grants. It implements the grant issuer contract
// the game coordinator expects.
type Signer struct {
	cfg   SignerConfig
	clock func() time.Time
	newID func() (string, error)
}

// NewSigner constructs a grant signer.
func NewSigner(cfg SignerConfig) *Signer {
	return &Signer{cfg: cfg, clock: time.Now, newID: id.NewID}
}

// IssueParticipantGrant mints a signed grant scoped to one participant slot.
func (s *Signer) IssueParticipantGrant(gameID string, participantID string) (string, error) {
	if s == nil || s.cfg.Issuer == "" || s.cfg.Audience == "" || len(s.cfg.Key) != ed25519.PrivateKeySize {
		return "", errors.New("grant signer is not configured")
	}
	gameID = strings.TrimSpace(gameID)
	participantID = strings.TrimSpace(participantID)
	if gameID == "" || participantID == "" {
		return "", errors.New("grant requires a game and participant")
	}

	jti, err := s.newID()
	if err != nil {
		return "", fmt.Errorf("generate grant id: %w", err)
	}
	now := s.clock().UTC()
	claims := grantClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Audience:  jwt.ClaimStrings{s.cfg.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TTL)),
			ID:        jti,
		},
		GameID:        gameID,
		ParticipantID: participantID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	signed, err := token.SignedString(s.cfg.Key)
	if err != nil {
		return "", fmt.Errorf("sign participant grant: %w", err)
	}
	return signed, nil
}

// Verifier checks participant grants against a request's game and
// participant.
type Verifier struct {
	cfg VerifierConfig
}

// NewVerifier constructs a grant verifier.
func NewVerifier(cfg VerifierConfig) *Verifier {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Verifier{cfg: cfg}
}

// VerifyParticipantGrant validates the grant signature and claims against
// the requested participant slot.
func (v *Verifier) VerifyParticipantGrant(grant string, gameID string, participantID string) (Claims, error) {
	grant = strings.TrimSpace(grant)
	if grant == "" {
		return Claims{}, ErrGrantInvalid
	}
	if v == nil || v.cfg.Issuer == "" || v.cfg.Audience == "" || len(v.cfg.Key) != ed25519.PublicKeySize {
		return Claims{}, errors.New("grant verifier is not configured")
	}

	var parsed grantClaims
	_, err := jwt.ParseWithClaims(grant, &parsed, func(token *jwt.Token) (any, error) {
		return v.cfg.Key, nil
	},
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrGrantInvalid, err)
	}

	if parsed.Issuer != v.cfg.Issuer {
		return Claims{}, ErrGrantMismatch
	}
	if !audienceContains(parsed.Audience, v.cfg.Audience) {
		return Claims{}, ErrGrantMismatch
	}
	if parsed.ID == "" || parsed.ExpiresAt == nil {
		return Claims{}, ErrGrantInvalid
	}

	now := v.cfg.Now().UTC()
	if !parsed.ExpiresAt.Time.After(now) {
		return Claims{}, ErrGrantExpired
	}
	if parsed.NotBefore != nil && now.Before(parsed.NotBefore.Time) {
		return Claims{}, ErrGrantInvalid
	}

	if strings.TrimSpace(parsed.GameID) == "" || parsed.GameID != strings.TrimSpace(gameID) {
		return Claims{}, ErrGrantMismatch
	}
	if strings.TrimSpace(parsed.ParticipantID) == "" || parsed.ParticipantID != strings.TrimSpace(participantID) {
		return Claims{}, ErrGrantMismatch
	}

	return Claims{
		GameID:        parsed.GameID,
		ParticipantID: parsed.ParticipantID,
		ExpiresAt:     parsed.ExpiresAt.Time.UTC(),
		JWTID:         parsed.ID,
	}, nil
}

func audienceContains(audience jwt.ClaimStrings, want string) bool {
	for _, value := range audience {
		if value == want {
			return true
		}
	}
	return false
}

func decodeBase64(value string) ([]byte, error) {
	if value == "" {
		return nil, errors.New("empty base64 value")
	}
	decoded, err := base64.RawStdEncoding.DecodeString(value)
	if err == nil {
		return decoded, nil
	}
	return base64.StdEncoding.DecodeString(value)
}
