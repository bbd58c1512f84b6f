package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/mail"
	"strings"

	"github.com/dvloznov/finance-dashboard/internal/apiclient"
	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/rs/zerolog"
)

// Doer is the part of apiclient.Client the auth service needs.
type Doer interface {
	Do(ctx context.Context, req apiclient.Request, out interface{}) error
}

type sessionResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Token   string      `json:"token"`
	User    domain.User `json:"user"`
}

// Service performs login/registration against the backend and keeps the result in a CredentialStore.
type Service struct {
	client Doer
	creds  *CredentialStore
	log    zerolog.Logger
}

// NewService creates an auth service.
func NewService(client Doer, creds *CredentialStore, log zerolog.Logger) *Service {
	return &Service{client: client, creds: creds, log: log}
}

// Login exchanges email and password for a token and persists it.
func (s *Service) Login(ctx context.Context, email, password string) (domain.User, error) {
	email = strings.TrimSpace(email)

	var errs domain.ValidationErrors
	if _, err := mail.ParseAddress(email); err != nil {
		errs = append(errs, &domain.ValidationError{Field: "email", Message: "please enter a valid email"})
	}
	if password == "" {
		errs = append(errs, &domain.ValidationError{Field: "password", Message: "password is required"})
	}
	if len(errs) > 0 {
		return domain.User{}, errs
	}

	var resp sessionResponse
	err := s.client.Do(ctx, apiclient.Request{
		Name:   "auth.login",
		Method: http.MethodPost,
		Path:   "/api/login",
		Body:   map[string]string{"email": email, "password": password},
		Public: true,
	}, &resp)
	if err != nil {
		return domain.User{}, fmt.Errorf("Login: %w", err)
	}

	return s.persist(ctx, resp)
}

// Register creates an account and logs in with the returned token.
func (s *Service) Register(ctx context.Context, name, email, password, confirm string) (domain.User, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)

	var errs domain.ValidationErrors
	if len(name) < 2 {
		errs = append(errs, &domain.ValidationError{Field: "name", Message: "name must be at least 2 characters long"})
	}
	if _, err := mail.ParseAddress(email); err != nil {
		errs = append(errs, &domain.ValidationError{Field: "email", Message: "please enter a valid email"})
	}
	if len(password) < 6 {
		errs = append(errs, &domain.ValidationError{Field: "password", Message: "password must be at least 6 characters long"})
	}
	if password != confirm {
		errs = append(errs, &domain.ValidationError{Field: "confirmPassword", Message: "passwords do not match"})
	}
	if len(errs) > 0 {
		return domain.User{}, errs
	}

	var resp sessionResponse
	err := s.client.Do(ctx, apiclient.Request{
		Name:   "auth.register",
		Method: http.MethodPost,
		Path:   "/api/register",
		Body:   map[string]string{"name": name, "email": email, "password": password},
		Public: true,
	}, &resp)
	if err != nil {
		return domain.User{}, fmt.Errorf("Register: %w", err)
	}

	return s.persist(ctx, resp)
}

// Profile fetches the current user from the backend.
func (s *Service) Profile(ctx context.Context) (domain.User, error) {
	var resp struct {
		User domain.User `json:"user"`
	}
	err := s.client.Do(ctx, apiclient.Request{Name: "auth.profile", Method: http.MethodGet, Path: "/api/profile"}, &resp)
	if err != nil {
		return domain.User{}, fmt.Errorf("Profile: %w", err)
	}
	return resp.User, nil
}

// Logout clears the stored credentials. It never contacts the backend.
func (s *Service) Logout(ctx context.Context) error {
	if err := s.creds.Clear(ctx); err != nil {
		return fmt.Errorf("Logout: %w", err)
	}
	s.log.Info().Msg("Logged out")
	return nil
}

func (s *Service) persist(ctx context.Context, resp sessionResponse) (domain.User, error) {
	if resp.Token == "" {
		return domain.User{}, fmt.Errorf("persist: backend returned no token")
	}
	if err := s.creds.Save(ctx, resp.Token, resp.User); err != nil {
		return domain.User{}, fmt.Errorf("persist: %w", err)
	}
	s.log.Info().Str("email", resp.User.Email).Msg("Logged in")
	return resp.User, nil
}
