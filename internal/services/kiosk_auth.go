package services

import (
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// TokenSigner issues a bearer token for a kiosk.
type TokenSigner func(kioskID string, ttl time.Duration) (string, error)

// KioskAuthService pairs scanner kiosks with the wall. An operator types the
// PIN once on the kiosk; the kiosk keeps the returned token.
type KioskAuthService struct {
	pinHash   []byte
	signToken TokenSigner
	tokenTTL  time.Duration
}

type KioskToken struct {
	Token     string    `json:"token"`
	KioskID   string    `json:"kiosk_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewKioskAuthService takes the bcrypt hash of the operator PIN. An empty hash
// disables pairing.
func NewKioskAuthService(pinHash string, signer TokenSigner, ttl time.Duration) *KioskAuthService {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &KioskAuthService{pinHash: []byte(strings.TrimSpace(pinHash)), signToken: signer, tokenTTL: ttl}
}

func (s *KioskAuthService) Pair(kioskID, pin string) (*KioskToken, error) {
	kioskID = strings.TrimSpace(kioskID)
	if kioskID == "" || strings.TrimSpace(pin) == "" {
		return nil, NewInvalidError("kiosk_id/pin required")
	}
	if len(s.pinHash) == 0 {
		return nil, NewUnauthorizedError("kiosk pairing disabled")
	}
	if err := bcrypt.CompareHashAndPassword(s.pinHash, []byte(pin)); err != nil {
		return nil, NewUnauthorizedError("invalid pin")
	}
	if s.signToken == nil {
		return nil, NewInvalidError("token signer not configured")
	}
	token, err := s.signToken(kioskID, s.tokenTTL)
	if err != nil {
		return nil, err
	}
	return &KioskToken{Token: token, KioskID: kioskID, ExpiresAt: time.Now().UTC().Add(s.tokenTTL)}, nil
}

func (s *KioskAuthService) TokenTTL() time.Duration {
	return s.tokenTTL
}

// HashPIN is used by the CLI to produce the value stored in config.
func HashPIN(pin string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
