package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"games_catalog/internal/models"
)

// SSOClient is the part of the SSO gRPC client used for sign in.
type SSOClient interface {
	Register(ctx context.Context, email, password, steamURL, pathToPhoto string) (uint32, error)
	Login(ctx context.Context, email, password string, appID uint32) (accessToken, refreshToken string, err error)
	ValidateToken(ctx context.Context, token string) (uint32, bool, error)
}

// SSOAuthenticator verifies credentials against the SSO service and keeps a
// local mirror of every account so ratings and lists have a local owner.
type SSOAuthenticator struct {
	users  *UserService
	client SSOClient
	appID  uint32
	log    *slog.Logger
}

func NewSSOAuthenticator(users *UserService, client SSOClient, appID uint32, log *slog.Logger) *SSOAuthenticator {
	return &SSOAuthenticator{
		users:  users,
		client: client,
		appID:  appID,
		log:    log,
	}
}

func (a *SSOAuthenticator) Signup(ctx context.Context, in SignupInput) (*models.User, error) {
	const op = "services.sso.Signup"

	username, err := validateSignup(in)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	image, err := a.users.saveImage(in.Image)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if _, err := a.client.Register(ctx, username, in.Password, "", image); err != nil {
		a.users.dropImage(image)
		if status.Code(err) == codes.AlreadyExists {
			return nil, fmt.Errorf("%s: %w", op, errUsernameTaken())
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user, err := a.users.ensureUser(ctx, username, image)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (a *SSOAuthenticator) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	const op = "services.sso.Authenticate"

	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	token, _, err := a.client.Login(ctx, username, password, a.appID)
	if err != nil {
		switch status.Code(err) {
		case codes.InvalidArgument, codes.NotFound, codes.Unauthenticated, codes.PermissionDenied:
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ssoID, valid, err := a.client.ValidateToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !valid || ssoID == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	user, err := a.users.ensureUser(ctx, username, models.DefaultProfileImage)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			// lost a race with a concurrent first login
			return a.users.byUsername(ctx, username)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	a.log.Debug("sso login", slog.String("username", username), slog.Uint64("sso_id", uint64(ssoID)))

	return user, nil
}
