package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/eduevent/backend/internal/apperr"
	"github.com/eduevent/backend/internal/models"
	"github.com/eduevent/backend/pkg/sentinel"
	"github.com/eduevent/backend/pkg/utils"
)

// UserStore persists users.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, u *models.User) error
	UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error
	// UpdateProfile saves email, name and phone. A taken email returns
	// sentinel.ErrConflict.
	UpdateProfile(ctx context.Context, u *models.User) error
}

// Session is a logged-in user with their bearer token.
type Session struct {
	Token string            `json:"token"`
	User  models.UserPublic `json:"user"`
}

// SignUp is the input of Service.Register.
type SignUp struct {
	Email    string
	Password string
	FullName string
	Phone    string
}

// Service registers and authenticates users.
type Service struct {
	users      UserStore
	jwt        *JWTService
	logger     *zap.Logger
	bcryptCost int
}

// NewService creates an auth service.
func NewService(users UserStore, jwt *JWTService, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{users: users, jwt: jwt, logger: logger, bcryptCost: bcrypt.DefaultCost}
}

// SetBcryptCost lowers the hashing cost, for tests.
func (s *Service) SetBcryptCost(cost int) { s.bcryptCost = cost }

// Register creates a participant account and logs it in. Admin accounts are
// provisioned out of band.
func (s *Service) Register(ctx context.Context, in SignUp) (*Session, error) {
	hash, err := utils.HashPasswordCost(in.Password, s.bcryptCost)
	if err != nil {
		if errors.Is(err, utils.ErrPasswordTooLong) {
			return nil, apperr.WithReason(apperr.KindValidation, "password_too_long", "password too long")
		}
		return nil, apperr.Wrap(apperr.KindInternal, "hash password", err)
	}
	u := &models.User{
		Email:    strings.ToLower(strings.TrimSpace(in.Email)),
		Password: hash,
		FullName: strings.TrimSpace(in.FullName),
		Phone:    strings.TrimSpace(in.Phone),
		Role:     models.RoleParticipant,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, apperr.WithReason(apperr.KindValidation, "email_taken", "email already registered")
		}
		s.logger.Error("create user", zap.String("email", u.Email), zap.Error(err))
		return nil, apperr.Wrap(apperr.KindStorageUnavailable, "create user", err)
	}
	return s.session(u)
}

// Login checks credentials. With adminOnly set, only admins may log in.
func (s *Service) Login(ctx context.Context, email, password string, adminOnly bool) (*Session, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, apperr.WithReason(apperr.KindUnauthorized, "credentials", "invalid email or password")
		}
		s.logger.Error("load user", zap.Error(err))
		return nil, apperr.Wrap(apperr.KindStorageUnavailable, "load user", err)
	}
	if !utils.CheckPassword(password, u.Password) {
		return nil, apperr.WithReason(apperr.KindUnauthorized, "credentials", "invalid email or password")
	}
	if adminOnly && u.Role != models.RoleAdmin {
		return nil, apperr.New(apperr.KindForbidden, "admin access required")
	}
	return s.session(u)
}

// Me returns the actor's account.
func (s *Service) Me(ctx context.Context, actor models.Actor) (*models.UserPublic, error) {
	u, err := s.load(ctx, actor)
	if err != nil {
		return nil, err
	}
	pub := u.ToPublic()
	return &pub, nil
}

// Profile is the input of Service.UpdateProfile. Empty fields keep their value.
type Profile struct {
	Email    string
	FullName string
	Phone    *string
}

// UpdateProfile changes the actor's name, email or phone.
func (s *Service) UpdateProfile(ctx context.Context, actor models.Actor, in Profile) (*models.UserPublic, error) {
	u, err := s.load(ctx, actor)
	if err != nil {
		return nil, err
	}
	if e := strings.ToLower(strings.TrimSpace(in.Email)); e != "" {
		u.Email = e
	}
	if n := strings.TrimSpace(in.FullName); n != "" {
		u.FullName = n
	}
	if in.Phone != nil {
		u.Phone = strings.TrimSpace(*in.Phone)
	}
	if err := s.users.UpdateProfile(ctx, u); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, apperr.WithReason(apperr.KindValidation, "email_taken", "email already registered")
		}
		return nil, s.storageErr("update profile", actor, err)
	}
	pub := u.ToPublic()
	return &pub, nil
}

// ChangePassword replaces the actor's password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, actor models.Actor, current, next string) error {
	u, err := s.load(ctx, actor)
	if err != nil {
		return err
	}
	if !utils.CheckPassword(current, u.Password) {
		return apperr.WithReason(apperr.KindValidation, "current_password", "current password is incorrect")
	}
	hash, err := utils.HashPasswordCost(next, s.bcryptCost)
	if err != nil {
		if errors.Is(err, utils.ErrPasswordTooLong) {
			return apperr.WithReason(apperr.KindValidation, "password_too_long", "password too long")
		}
		return apperr.Wrap(apperr.KindInternal, "hash password", err)
	}
	if err := s.users.UpdatePassword(ctx, u.ID, hash); err != nil {
		return s.storageErr("update password", actor, err)
	}
	s.logger.Info("password changed", zap.String("actor_id", actor.UserID.String()))
	return nil
}

func (s *Service) load(ctx context.Context, actor models.Actor) (*models.User, error) {
	u, err := s.users.GetByID(ctx, actor.UserID)
	if err != nil {
		return nil, s.storageErr("load user", actor, err)
	}
	return u, nil
}

func (s *Service) storageErr(op string, actor models.Actor, err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return apperr.New(apperr.KindNotFound, "user not found")
	}
	s.logger.Error(op, zap.String("actor_id", actor.UserID.String()), zap.Error(err))
	return apperr.Wrap(apperr.KindStorageUnavailable, op, err)
}

func (s *Service) session(u *models.User) (*Session, error) {
	token, err := s.jwt.Generate(u)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "generate token", err)
	}
	return &Session{Token: token, User: u.ToPublic()}, nil
}
