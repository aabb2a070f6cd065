package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"syscall"
	"time"

	"github.com/haatos/simple-cd/internal/settings"
	"github.com/haatos/simple-cd/internal/store"
	"github.com/haatos/simple-cd/internal/util"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
)

type UserService struct {
	userStore store.UserStore
}

func NewUserService(s store.UserStore) *UserService {
	return &UserService{userStore: s}
}

func (s *UserService) GetUserByID(ctx context.Context, userID int64) (*store.User, error) {
	return s.userStore.ReadUserByID(ctx, userID)
}

func (s *UserService) GetUserBySessionID(
	ctx context.Context,
	sessionID string,
) (*store.User, error) {
	u, err := s.userStore.ReadUserBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !u.SessionExpires.Valid || u.SessionExpires.Time.Before(time.Now().UTC()) {
		return nil, errors.New("session expired")
	}
	return u, nil
}

func (s *UserService) CreateAuthSession(
	ctx context.Context,
	userID int64,
) (*store.AuthSession, error) {
	return s.userStore.CreateAuthSession(
		ctx,
		generateRandomSessionID(),
		userID,
		time.Now().UTC().Add(settings.Settings.SessionExpires),
	)
}

func generateRandomSessionID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

func (s *UserService) GetUserByUsernameAndPassword(
	ctx context.Context,
	username, password string,
) (*store.User, error) {
	u, err := s.userStore.ReadUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *UserService) CreateUser(
	ctx context.Context,
	userRoleID store.Role,
	username, password string,
) (*store.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return s.userStore.CreateUser(ctx, userRoleID, username, string(hash))
}

func (s *UserService) ListUsers(ctx context.Context) ([]*store.User, error) {
	users, err := s.userStore.ListUsers(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return users, nil
}

func (s *UserService) ChangeUserPassword(
	ctx context.Context,
	userID int64,
	oldPassword, newPassword string,
) error {
	u, err := s.userStore.ReadUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if u.IsSuperuser() {
		return errors.New("attempt to change superuser's password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(oldPassword)); err != nil {
		return err
	}
	newHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.userStore.UpdateUserPassword(ctx, u.UserID, string(newHash), util.AsPtr(time.Now().UTC()))
}

func (s *UserService) ResetUserPassword(
	ctx context.Context,
	userID int64,
	newPassword string,
) error {
	u, err := s.userStore.ReadUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if u.IsSuperuser() {
		return errors.New("attempt to reset superuser's password")
	}
	newHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.userStore.UpdateUserPassword(ctx, u.UserID, string(newHash), nil)
}

func (s *UserService) DeleteUser(ctx context.Context, u *store.User) error {
	return s.userStore.DeleteUser(ctx, u.UserID)
}

func (s *UserService) Logout(ctx context.Context, userID int64) error {
	return s.userStore.DeleteAuthSessionsByUserID(ctx, userID)
}

func (s *UserService) UpdateUserRole(ctx context.Context, userID int64, role store.Role) error {
	return s.userStore.UpdateUserRole(ctx, userID, role)
}

// DeleteExpiredAuthSessions is run daily by the scheduler.
func (s *UserService) DeleteExpiredAuthSessions(ctx context.Context) error {
	return s.userStore.DeleteExpiredAuthSessions(ctx)
}

// InitializeSuperuser prompts for a superuser on first start.
func (s *UserService) InitializeSuperuser(ctx context.Context) {
	users, err := s.userStore.ListSuperusers(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		log.Fatal(err)
	}
	if len(users) == 0 {
		fmt.Println("Create a superuser")
		fmt.Print("Username: ")
		var username string
		if _, err := fmt.Scanln(&username); err != nil {
			log.Fatal(err)
		}
		fmt.Print("Password: ")
		passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			log.Fatal(err)
		}

		hash, err := bcrypt.GenerateFromPassword(passwordBytes, bcrypt.DefaultCost)
		if err != nil {
			log.Fatal(err)
		}

		if _, err = s.userStore.CreateSuperuser(ctx, username, string(hash)); err != nil {
			log.Fatal(err)
		}
	}
}
