package authservice

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/GlebRadaev/walletledger/internal/domain"
	"github.com/GlebRadaev/walletledger/internal/pg"
	"github.com/GlebRadaev/walletledger/pkg/auth"
	"go.uber.org/zap"
)

//go:generate mockgen -source=authservice.go -destination=mock_authservice.go -package=authservice

const tokenTTL = 15 * time.Minute

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type Repo interface {
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id int) (*domain.User, error)
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
}

type WalletService interface {
	OpenAccount(ctx context.Context, userID int) (*domain.Account, error)
}

type Service struct {
	userRepo      Repo
	walletService WalletService
	txManager     pg.TXManager
	hashService   auth.HashServiceInterface
	jwtService    auth.JWTServiceInterface
	adminEmails   map[string]struct{}
}

func New(
	repo Repo,
	walletService WalletService,
	txManager pg.TXManager,
	hashService auth.HashServiceInterface,
	jwtService auth.JWTServiceInterface,
) *Service {
	return &Service{
		userRepo:      repo,
		walletService: walletService,
		txManager:     txManager,
		hashService:   hashService,
		jwtService:    jwtService,
		adminEmails:   make(map[string]struct{}),
	}
}

// WithAdminEmails marks users registering with one of emails as admins.
func (s *Service) WithAdminEmails(emails []string) *Service {
	for _, e := range emails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			s.adminEmails[e] = struct{}{}
		}
	}
	return s
}

// Register creates the user together with its zero-balance wallet account.
func (s *Service) Register(ctx context.Context, email, password string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	existingUser, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		zap.L().Error("can't find user", zap.Error(err))
		return nil, err
	}
	if existingUser != nil {
		zap.L().Info("user already exists", zap.String("email", email))
		return nil, ErrEmailTaken
	}
	hashedPassword, err := s.hashService.HashPassword(password)
	if err != nil {
		zap.L().Error("can't hash password", zap.Error(err))
		return nil, err
	}

	_, isAdmin := s.adminEmails[email]

	var newUser *domain.User
	err = s.txManager.Begin(ctx, func(ctx context.Context) error {
		user, err := s.userRepo.Create(ctx, &domain.User{
			Email:        email,
			PasswordHash: hashedPassword,
			IsAdmin:      isAdmin,
		})
		if err != nil {
			zap.L().Error("can't create user", zap.Error(err))
			return err
		}
		if _, err := s.walletService.OpenAccount(ctx, user.ID); err != nil {
			zap.L().Error("can't open account", zap.Error(err))
			return err
		}
		newUser = user
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("user successfully registered", zap.String("email", email))
	return newUser, nil
}

func (s *Service) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		zap.L().Error("can't find user", zap.String("email", email), zap.Error(err))
		return nil, domain.WrapStorage("find user", err)
	}
	if user == nil {
		zap.L().Info("invalid credentials", zap.String("email", email))
		return nil, ErrInvalidCredentials
	}
	if ok := s.hashService.ComparePassword(user.PasswordHash, password); !ok {
		zap.L().Info("invalid credentials", zap.String("email", email))
		return nil, ErrInvalidCredentials
	}
	zap.L().Info("user successfully authenticated", zap.String("email", email))
	return user, nil
}

func (s *Service) GenerateToken(userID int, admin bool) (string, error) {
	expirationTime := time.Now().Add(tokenTTL)

	token, err := s.jwtService.GenerateJWT(userID, admin, expirationTime)
	if err != nil {
		zap.L().Error("can't generate token", zap.Error(err))
		return "", err
	}
	return token, nil
}
