package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"regexp"
	"strings"
	"time"

	"eventhub/internal/domain"
)

const (
	minPasswordLen          = 8
	verificationCodeDigits  = 6
	verificationCodeExpiry  = 15 * time.Minute
	verificationCodeInvalid = "invalid or expired code"
)

var verificationCodeRegexp = regexp.MustCompile(`^\d{6}$`)

type authService struct {
	userRepo       domain.UserRepository
	codeRepo       domain.VerificationCodeRepository
	hasher         domain.PasswordHasher
	tokenIssuer    domain.TokenIssuer
	tokenExpiry    time.Duration
	emailService   domain.EmailService
	logger         *slog.Logger
	contextTimeout time.Duration
}

// NewAuthService creates an AuthService with the given repositories and auth ports.
func NewAuthService(
	userRepo domain.UserRepository,
	codeRepo domain.VerificationCodeRepository,
	hasher domain.PasswordHasher,
	tokenIssuer domain.TokenIssuer,
	tokenExpiry time.Duration,
	emailService domain.EmailService,
	logger *slog.Logger,
	timeout time.Duration,
) domain.AuthService {
	return &authService{
		userRepo:       userRepo,
		codeRepo:       codeRepo,
		hasher:         hasher,
		tokenIssuer:    tokenIssuer,
		tokenExpiry:    tokenExpiry,
		emailService:   emailService,
		logger:         logger,
		contextTimeout: timeout,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *authService) SignUp(ctx context.Context, in domain.SignUpInput) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	email := normalizeEmail(in.Email)
	if !emailRegexp.MatchString(email) {
		return nil, fmt.Errorf("%w: invalid email format", domain.ErrInvalidInput)
	}
	if len(in.Password) < minPasswordLen {
		return nil, fmt.Errorf("%w: password must be at least %d characters", domain.ErrInvalidInput, minPasswordLen)
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}
	role := in.Role
	if role == "" {
		role = domain.RoleUser
	}
	if role != domain.RoleUser && role != domain.RoleCommunity {
		return nil, fmt.Errorf("%w: role must be user or community", domain.ErrInvalidInput)
	}

	user, err := s.createUser(ctx, email, in.Password, name, role, strings.TrimSpace(in.DisplayLabel), false)
	if err != nil {
		return nil, err
	}
	if err := s.issueCode(ctx, user); err != nil {
		s.logger.WarnContext(ctx, "verification code not sent after sign-up", "user_id", user.ID, "err", err)
	}
	return user, nil
}

func (s *authService) createUser(ctx context.Context, email, password, name string, role domain.Role, label string, verified bool) (*domain.User, error) {
	salt, err := s.hasher.GenerateSalt()
	if err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	hash, err := s.hasher.Hash(salt, password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := time.Now().UTC()
	user := domain.NewUser(email, name, role, label, now, now)
	user.PasswordHash = hash
	user.Salt = salt
	user.Verified = verified
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			return nil, domain.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	user, err := s.userRepo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return "", nil, domain.ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("get user: %w", err)
	}
	if err := s.hasher.Compare(user.PasswordHash, user.Salt, password); err != nil {
		return "", nil, domain.ErrInvalidCredentials
	}
	token, err := s.tokenIssuer.Issue(user, s.tokenExpiry)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return token, user, nil
}

// RequestVerificationCode sends a fresh code. Unknown or already verified
// addresses succeed silently so the endpoint cannot be used to probe accounts.
func (s *authService) RequestVerificationCode(ctx context.Context, email string) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	email = normalizeEmail(email)
	if !emailRegexp.MatchString(email) {
		return fmt.Errorf("%w: invalid email format", domain.ErrInvalidInput)
	}
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.logger.DebugContext(ctx, "verification code requested for unknown email")
			return nil
		}
		return fmt.Errorf("get user: %w", err)
	}
	if user.Verified {
		return nil
	}
	return s.issueCode(ctx, user)
}

func (s *authService) issueCode(ctx context.Context, user *domain.User) error {
	code, err := generateVerificationCode(verificationCodeDigits)
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}
	expiresAt := time.Now().UTC().Add(verificationCodeExpiry)
	if err := s.codeRepo.Create(ctx, user.Email, hashVerificationCode(code), expiresAt); err != nil {
		return fmt.Errorf("store verification code: %w", err)
	}
	return s.emailService.SendVerificationCode(ctx, &domain.VerificationCodeEmailData{
		Email:            user.Email,
		Name:             user.Name,
		Code:             code,
		ExpiresInMinutes: int(verificationCodeExpiry / time.Minute),
	})
}

func (s *authService) VerifyEmail(ctx context.Context, email, code string) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	email = normalizeEmail(email)
	code = strings.TrimSpace(code)
	if !emailRegexp.MatchString(email) || !verificationCodeRegexp.MatchString(code) {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidInput, verificationCodeInvalid)
	}
	consumed, err := s.codeRepo.Consume(ctx, email, hashVerificationCode(code))
	if err != nil {
		return nil, fmt.Errorf("consume verification code: %w", err)
	}
	if !consumed {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidInput, verificationCodeInvalid)
	}
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if err := s.userRepo.SetVerified(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("mark user verified: %w", err)
	}
	user.Verified = true
	return user, nil
}

func (s *authService) EnsureSuperAdmin(ctx context.Context, email, password string) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	email = normalizeEmail(email)
	if !emailRegexp.MatchString(email) {
		return nil, fmt.Errorf("%w: invalid superadmin email", domain.ErrInvalidInput)
	}
	existing, err := s.userRepo.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.Role != domain.RoleSuperAdmin {
			return nil, fmt.Errorf("%w: %s exists with role %s", domain.ErrConflict, email, existing.Role)
		}
		return existing, nil
	case !errors.Is(err, domain.ErrUserNotFound):
		return nil, fmt.Errorf("get user: %w", err)
	}
	if len(password) < minPasswordLen {
		return nil, fmt.Errorf("%w: superadmin password must be at least %d characters", domain.ErrInvalidInput, minPasswordLen)
	}
	user, err := s.createUser(ctx, email, password, "Super Admin", domain.RoleSuperAdmin, "", true)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "superadmin account created", "user_id", user.ID)
	return user, nil
}

func generateVerificationCode(digits int) (string, error) {
	var b strings.Builder
	ten := big.NewInt(10)
	for range digits {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}

func hashVerificationCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}
