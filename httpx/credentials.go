package httpx

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/oauth"
	"github.com/mbolis/quick-forms/model"
	"golang.org/x/crypto/bcrypt"
)

// RefreshTokenTTL bounds how long a refresh token can be exchanged.
const RefreshTokenTTL = 8760 * time.Hour

// Claims added to every access token.
const (
	ClaimUserID = "user_id"
	ClaimRoles  = "roles"
)

// Accounts is the part of the store the token server needs.
type Accounts interface {
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
	StoreToken(ctx context.Context, username, tokenID, refreshTokenID string, expiration time.Time) error
	ConsumeToken(ctx context.Context, username, tokenID, refreshTokenID string) error
}

type credentialsVerifier struct {
	accounts Accounts
}

func CredentialsVerifier(accounts Accounts) oauth.CredentialsVerifier {
	return &credentialsVerifier{accounts}
}

// NewBearerServer issues access tokens valid for ttl, signed with secret.
func NewBearerServer(accounts Accounts, secret string, ttl time.Duration) *oauth.BearerServer {
	return oauth.NewBearerServer(secret, ttl, CredentialsVerifier(accounts), nil)
}

func requestContext(r *http.Request) context.Context {
	if r != nil {
		return r.Context()
	}
	return context.Background()
}

func (cs *credentialsVerifier) ValidateUser(username string, password string, scope string, r *http.Request) error {
	user, err := cs.accounts.GetUserByEmail(requestContext(r), username)
	if err != nil {
		return err
	}

	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password))
}
func (cs *credentialsVerifier) StoreTokenID(tokenType oauth.TokenType, credential string, tokenID string, refreshTokenID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return cs.accounts.StoreToken(ctx, credential, tokenID, refreshTokenID, time.Now().Add(RefreshTokenTTL))
}
func (cs *credentialsVerifier) ValidateTokenID(tokenType oauth.TokenType, credential string, tokenID string, refreshTokenID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := cs.accounts.ConsumeToken(ctx, credential, tokenID, refreshTokenID); err != nil {
		return errors.New("could not refresh")
	}
	return nil
}
func (cs *credentialsVerifier) AddClaims(tokenType oauth.TokenType, credential string, tokenID string, scope string, r *http.Request) (map[string]string, error) {
	user, err := cs.accounts.GetUserByEmail(requestContext(r), credential)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		ClaimUserID: user.ID,
		ClaimRoles:  user.Role,
	}, nil
}
func (cs *credentialsVerifier) AddProperties(tokenType oauth.TokenType, credential string, tokenID string, scope string, r *http.Request) (map[string]string, error) {
	user, err := cs.accounts.GetUserByEmail(requestContext(r), credential)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"id":    user.ID,
		"name":  user.Name,
		"email": user.Email,
		"role":  user.Role,
	}, nil
}
func (*credentialsVerifier) ValidateClient(clientID string, clientSecret string, scope string, r *http.Request) error {
	return errors.New("not supported")
}
