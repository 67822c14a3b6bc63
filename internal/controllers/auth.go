package controllers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"games_catalog/internal/identity"
	"games_catalog/internal/models"
	"games_catalog/internal/services"
	"games_catalog/internal/storage/uploads"
)

type Authenticator interface {
	Signup(ctx context.Context, in services.SignupInput) (*models.User, error)
	Authenticate(ctx context.Context, username, password string) (*models.User, error)
}

type AccountServicer interface {
	DeleteAccount(ctx context.Context, id identity.Identity) error
}

type SessionWriter interface {
	SetCookie(w http.ResponseWriter, id identity.Identity) error
	ClearCookie(w http.ResponseWriter)
}

type AuthController struct {
	pages
	auth     Authenticator
	accounts AccountServicer
	sessions SessionWriter
}

func NewAuthController(renderer Renderer, auth Authenticator, accounts AccountServicer, sessions SessionWriter, log *slog.Logger) *AuthController {
	return &AuthController{
		pages:    pages{renderer: renderer, log: log},
		auth:     auth,
		accounts: accounts,
		sessions: sessions,
	}
}

type credentialsForm struct {
	Username string
}

// maxSignupBody bounds the multipart body: the image plus the text fields.
const maxSignupBody = uploads.MaxImageSize + 1<<20

func (c *AuthController) SignupForm(w http.ResponseWriter, r *http.Request) {
	c.render(w, r, http.StatusOK, "users/signup", "Sign up", credentialsForm{})
}

func (c *AuthController) Signup(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.auth.Signup"

	image, err := readImage(w, r)
	form := credentialsForm{Username: r.FormValue("username")}
	if err != nil {
		c.log.Info(ErrParsingForm.Error(), slog.String("operation", op), slog.String("error", err.Error()))
		c.renderNotice(w, r, http.StatusBadRequest, "users/signup", "Sign up", "Profile image is too large or unreadable", form)
		return
	}

	user, err := c.auth.Signup(r.Context(), services.SignupInput{
		Username: form.Username,
		Password: r.FormValue("password"),
		Image:    image,
	})
	if err != nil {
		status, msg := statusFor(err)
		logFailure(c.log, op, status, err)
		c.renderNotice(w, r, status, "users/signup", "Sign up", msg, form)
		return
	}

	if !c.startSession(w, r, op, user) {
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// readImage returns the optional "image" upload. A form without files is not
// an error.
func readImage(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSignupBody)

	if err := r.ParseMultipartForm(maxSignupBody); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, err
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	// One byte past the limit is enough for the size check downstream.
	return io.ReadAll(io.LimitReader(file, uploads.MaxImageSize+1))
}

func (c *AuthController) LoginForm(w http.ResponseWriter, r *http.Request) {
	c.render(w, r, http.StatusOK, "users/login", "Log in", credentialsForm{})
}

func (c *AuthController) Login(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.auth.Login"

	form := credentialsForm{Username: r.PostFormValue("username")}

	user, err := c.auth.Authenticate(r.Context(), form.Username, r.PostFormValue("password"))
	if err != nil {
		status, _ := statusFor(err)
		logFailure(c.log, op, status, err)

		notice := "Invalid credentials."
		if status >= http.StatusInternalServerError {
			notice = ErrInternal.Error()
		}
		c.renderNotice(w, r, status, "users/login", "Log in", notice, form)
		return
	}

	if !c.startSession(w, r, op, user) {
		return
	}

	c.done(w, r, fmt.Sprintf("Hello, %s!", user.Username), "/")
}

func (c *AuthController) startSession(w http.ResponseWriter, r *http.Request, op string, user *models.User) bool {
	err := c.sessions.SetCookie(w, identity.Identity{UserID: user.ID, Username: user.Username})
	if err != nil {
		c.renderError(w, r, op, err)
		return false
	}
	return true
}

func (c *AuthController) Logout(w http.ResponseWriter, r *http.Request) {
	c.sessions.ClearCookie(w)
	c.done(w, r, "Successfully logged out.", "/login")
}

func (c *AuthController) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.auth.DeleteAccount"

	if err := c.accounts.DeleteAccount(r.Context(), identity.FromContext(r.Context())); err != nil {
		c.fail(w, r, op, err, "/")
		return
	}

	c.sessions.ClearCookie(w)
	c.done(w, r, "Your account has been deleted.", "/signup")
}
