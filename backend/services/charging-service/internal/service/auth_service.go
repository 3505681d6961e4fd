package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"evcharge/backend/services/charging-service/internal/models"
)

// CredentialHasher hashes and verifies RFID card numbers.
type CredentialHasher struct {
	cost int
}

// NewCredentialHasher returns a bcrypt-backed hasher. Zero cost means bcrypt.DefaultCost.
func NewCredentialHasher(cost int) *CredentialHasher {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &CredentialHasher{cost: cost}
}

// Hash converts an RFID number into a bcrypt hash.
func (h *CredentialHasher) Hash(rfid string) (string, error) {
	rfid = normalizeRFID(rfid)
	if rfid == "" {
		return "", errors.New("auth: empty rfid")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(rfid), h.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Compare checks rfid against the stored hash.
func (h *CredentialHasher) Compare(hash, rfid string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(normalizeRFID(rfid)))
}

func normalizeRFID(v string) string {
	return strings.ToUpper(strings.TrimSpace(v))
}

// AuthService matches vehicle id and RFID card against the user directory.
type AuthService struct {
	users     *UserDirectory
	hasher    *CredentialHasher
	tokenizer *TokenService
	logger    *zap.Logger
}

// NewAuthService builds AuthService.
func NewAuthService(users *UserDirectory, hasher *CredentialHasher, tokenizer *TokenService, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:     users,
		hasher:    hasher,
		tokenizer: tokenizer,
		logger:    logger,
	}
}

// Login authenticates a user and produces a JWT.
func (s *AuthService) Login(_ context.Context, vehicleID, rfid string) (string, models.User, error) {
	if strings.TrimSpace(vehicleID) == "" || strings.TrimSpace(rfid) == "" {
		return "", models.User{}, ErrInvalidCredentials
	}

	user, err := s.users.ByVehicle(vehicleID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return "", models.User{}, ErrInvalidCredentials
		}
		return "", models.User{}, err
	}

	if err := s.hasher.Compare(user.RFIDHash, rfid); err != nil {
		s.logger.Info("login rejected", zap.String("vehicle_id", user.VehicleID))
		return "", models.User{}, ErrInvalidCredentials
	}

	token, err := s.tokenizer.GenerateToken(user.ID, user.Role())
	if err != nil {
		return "", models.User{}, err
	}

	s.logger.Info("user logged in", zap.String("user_id", user.ID), zap.String("role", user.Role()))
	return token, user, nil
}
