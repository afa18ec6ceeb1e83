package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"evmarket/internal/domain"
	"evmarket/internal/repository"
)

// RegisterInput is a new account's sign-up data
type RegisterInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name" validate:"required"`
	Brand    string `json:"brand"`
	Role     string `json:"role"`
}

// AccountService registers and authenticates accounts
type AccountService struct {
	accounts repository.AccountRepository
	opts     Options
}

func NewAccountService(repos *repository.Repositories, opts Options) *AccountService {
	return &AccountService{accounts: repos.Accounts, opts: opts.withDefaults()}
}

// Register creates a user or business account. Admin accounts are only
// created through EnsureAdmin.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*domain.Account, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := domain.ValidateStruct(in); err != nil {
		return nil, err
	}
	if in.Role == "" {
		in.Role = domain.RoleBusiness
	}
	if in.Role != domain.RoleUser && in.Role != domain.RoleBusiness {
		return nil, domain.NewValidationError("role", "must be user or business")
	}

	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	account := &domain.Account{
		Email:        in.Email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(in.Name),
		Brand:        strings.TrimSpace(in.Brand),
		Role:         in.Role,
		Entitlement:  domain.Entitlement{PlanTier: domain.PlanNone, Status: domain.EntitlementInactive},
		CreatedAt:    s.opts.now(),
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, err
	}
	s.opts.Logger.InfoContext(ctx, "account registered",
		"module", "accounts", "account_id", account.ID, "role", account.Role)
	return account, nil
}

// Authenticate returns the account for matching credentials, or
// domain.ErrUnauthorized
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (*domain.Account, error) {
	account, err := s.accounts.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	if !checkPasswordHash(password, account.PasswordHash) {
		return nil, domain.ErrUnauthorized
	}
	return account, nil
}

// EnsureAdmin creates the first admin account when none exists. It returns
// true when an account was created.
func (s *AccountService) EnsureAdmin(ctx context.Context, email, password string) (bool, error) {
	n, err := s.accounts.Count(ctx, domain.RoleAdmin)
	if err != nil {
		return false, fmt.Errorf("count admins: %w", err)
	}
	if n > 0 {
		return false, nil
	}
	if email == "" || password == "" {
		return false, errors.New("no admin account exists and no admin credentials are configured")
	}

	hash, err := hashPassword(password)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}
	admin := &domain.Account{
		Email:        strings.ToLower(email),
		PasswordHash: hash,
		Name:         "Administrator",
		Role:         domain.RoleAdmin,
		Entitlement:  domain.Entitlement{PlanTier: domain.PlanNone, Status: domain.EntitlementInactive},
		CreatedAt:    s.opts.now(),
	}
	if err := s.accounts.Create(ctx, admin); err != nil {
		return false, fmt.Errorf("create admin: %w", err)
	}
	s.opts.Logger.InfoContext(ctx, "default admin created", "module", "accounts", "email", admin.Email)
	return true, nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func checkPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
