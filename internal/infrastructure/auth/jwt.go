package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/zatekoja/hospital-appointments/internal/domain/entities"
)

var (
	// ErrInvalidToken is returned for tokens that fail signature, expiry or claim checks
	ErrInvalidToken = errors.New("invalid token")

	// ErrMissingSecret is returned when no signing secret is configured
	ErrMissingSecret = errors.New("jwt secret is not configured")
)

// Claims are the bearer token claims understood by the API
type Claims struct {
	Role       entities.Role `json:"role"`
	HospitalID string        `json:"hospital_id,omitempty"`
	DoctorID   string        `json:"doctor_id,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies HS256 bearer tokens
type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager creates a token manager. An empty issuer disables the issuer check.
func NewTokenManager(secret, issuer string, ttl time.Duration) (*TokenManager, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenManager{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}, nil
}

// Issue signs a token for the principal
func (m *TokenManager) Issue(principal entities.Principal) (string, error) {
	now := m.now()
	claims := &Claims{
		Role:       principal.Role,
		HospitalID: principal.HospitalID,
		DoctorID:   principal.DoctorID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principal.UserID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Parse verifies a token and returns the principal it carries
func (m *TokenManager) Parse(tokenString string) (*entities.Principal, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	principal := &entities.Principal{
		UserID:     claims.Subject,
		Role:       claims.Role,
		HospitalID: claims.HospitalID,
		DoctorID:   claims.DoctorID,
	}
	if err := validatePrincipal(principal); err != nil {
		return nil, err
	}
	return principal, nil
}

func validatePrincipal(p *entities.Principal) error {
	if p.UserID == "" {
		return fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	if !p.Role.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidToken, p.Role)
	}
	if p.Role == entities.RoleHospitalAdmin && p.HospitalID == "" {
		return fmt.Errorf("%w: hospital_admin without hospital_id", ErrInvalidToken)
	}
	if p.Role == entities.RoleDoctor && p.DoctorID == "" {
		return fmt.Errorf("%w: doctor without doctor_id", ErrInvalidToken)
	}
	return nil
}
