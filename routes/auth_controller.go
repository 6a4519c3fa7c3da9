package routes

import (
	"errors"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/mbolis/quick-forms/app"
	"github.com/mbolis/quick-forms/httpx"
	"github.com/mbolis/quick-forms/log"
	"github.com/mbolis/quick-forms/model"
	"golang.org/x/crypto/bcrypt"
)

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type profileRequest struct {
	Name     *string `json:"name" validate:"omitempty,min=1,max=100"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Password *string `json:"password" validate:"omitempty,min=6,max=72"`
}

// tokenResponse is what the bearer server writes.
type tokenResponse struct {
	AccessToken  string            `json:"access_token"`
	TokenType    string            `json:"token_type"`
	ExpiresIn    int64             `json:"expires_in"`
	RefreshToken string            `json:"refresh_token"`
	Properties   map[string]string `json:"properties"`
}

type session struct {
	Token        string      `json:"token"`
	RefreshToken string      `json:"refreshToken"`
	TokenType    string      `json:"tokenType"`
	ExpiresIn    int64       `json:"expiresIn"`
	User         *model.User `json:"user,omitempty"`
}

var reRefresh = regexp.MustCompile(`(?i)^refresh\s+(.*)`)

func Register(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if err := httpx.Decode(r, app.Validate, &req); err != nil {
			httpx.Error(w, r, "register.parse_body", err)
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			httpx.LogInternalError(w, r, "register.hash_password", err)
			return
		}

		user, err := app.CreateUser(r.Context(), model.User{
			ID:           uuid.NewString(),
			Name:         strings.TrimSpace(req.Name),
			Email:        req.Email,
			PasswordHash: string(hash),
			Role:         model.RoleUser,
		})
		if errors.Is(err, model.ErrConflict) {
			httpx.LogStatusMsg(w, r, http.StatusConflict, log.DebugLevel, "db.insert_account", "email already registered")
			return
		}
		if err != nil {
			httpx.Error(w, r, "db.insert_account", err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, user)
	}
}

func Login(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := httpx.Decode(r, app.Validate, &req); err != nil {
			httpx.Error(w, r, "login.parse_body", err)
			return
		}

		token, ok := issueToken(app, r, url.Values{
			"grant_type": {"password"},
			"username":   {strings.ToLower(strings.TrimSpace(req.Email))},
			"password":   {req.Password},
		})
		if !ok {
			httpx.LogStatusMsg(w, r, http.StatusUnauthorized, log.DebugLevel, "login.credentials", "invalid email or password")
			return
		}

		user, err := app.GetUserByEmail(r.Context(), req.Email)
		if err != nil {
			httpx.Error(w, r, "db.get_account", err)
			return
		}

		render.JSON(w, r, session{
			Token:        token.AccessToken,
			RefreshToken: token.RefreshToken,
			TokenType:    token.TokenType,
			ExpiresIn:    token.ExpiresIn,
			User:         &user,
		})
	}
}

// Refresh exchanges a refresh token, passed as "Authorization: Refresh <token>"
// or as {"refreshToken"} in the body, for a new token pair.
func Refresh(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var refreshToken string
		if match := reRefresh.FindStringSubmatch(r.Header.Get("authorization")); len(match) > 0 {
			refreshToken = match[1]
		} else {
			var req refreshRequest
			if err := render.DecodeJSON(r.Body, &req); err == nil {
				refreshToken = req.RefreshToken
			}
		}
		if refreshToken == "" {
			httpx.LogStatus(w, r, http.StatusUnauthorized, log.DebugLevel, "refresh.token")
			return
		}

		token, ok := issueToken(app, r, url.Values{
			"grant_type":    {"refresh_token"},
			"refresh_token": {refreshToken},
		})
		if !ok {
			httpx.LogStatus(w, r, http.StatusUnauthorized, log.DebugLevel, "refresh.rejected")
			return
		}

		render.JSON(w, r, session{
			Token:        token.AccessToken,
			RefreshToken: token.RefreshToken,
			TokenType:    token.TokenType,
			ExpiresIn:    token.ExpiresIn,
		})
	}
}

// issueToken runs the bearer server's token endpoint on a form-encoded
// request built from body.
func issueToken(app app.App, r *http.Request, body url.Values) (tokenResponse, bool) {
	encoded := body.Encode()
	req, err := http.NewRequestWithContext(r.Context(), "POST", "/", strings.NewReader(encoded))
	if err != nil {
		log.Debug("token.new_request:", err)
		return tokenResponse{}, false
	}
	req.Header.Set("content-type", "application/x-www-form-urlencoded")
	req.Header.Set("content-length", strconv.Itoa(len(encoded)))

	resp := httpx.NewResponseBuffer()
	app.UserCredentials(resp, req)
	if !resp.OK() {
		log.Debugf("token.status: %d", resp.Status())
		return tokenResponse{}, false
	}

	var token tokenResponse
	if err := resp.DecodeJSON(&token); err != nil || token.AccessToken == "" {
		log.Debug("token.parse_response:", err)
		return tokenResponse{}, false
	}
	return token, true
}

func GetProfile(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := app.GetUser(r.Context(), principal(r).UserID)
		if err != nil {
			httpx.Error(w, r, "db.get_account", err)
			return
		}
		render.JSON(w, r, user)
	}
}

func UpdateProfile(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req profileRequest
		if err := httpx.Decode(r, app.Validate, &req); err != nil {
			httpx.Error(w, r, "profile.parse_body", err)
			return
		}

		user, err := app.GetUser(r.Context(), principal(r).UserID)
		if err != nil {
			httpx.Error(w, r, "db.get_account", err)
			return
		}

		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				httpx.Error(w, r, "profile.name", &model.ValidationError{
					Msg:    "name: required",
					Fields: map[string]string{"name": "required"},
				})
				return
			}
			user.Name = name
		}
		if req.Email != nil {
			user.Email = *req.Email
		}
		if req.Password != nil {
			hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
			if err != nil {
				httpx.LogInternalError(w, r, "profile.hash_password", err)
				return
			}
			user.PasswordHash = string(hash)
		}

		user, err = app.UpdateUser(r.Context(), user)
		if errors.Is(err, model.ErrConflict) {
			httpx.LogStatusMsg(w, r, http.StatusConflict, log.DebugLevel, "db.update_account", "email already registered")
			return
		}
		if err != nil {
			httpx.Error(w, r, "db.update_account", err)
			return
		}
		render.JSON(w, r, user)
	}
}
