package middlewares

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/oauth"
	"github.com/mbolis/quick-forms/httpx"
	"github.com/mbolis/quick-forms/log"
	"github.com/mbolis/quick-forms/model"
)

type principalKey struct{}

// Principal is the authenticated caller.
type Principal struct {
	UserID string
	Email  string
	Roles  []string
}

func (p Principal) IsAdmin() bool {
	for _, role := range p.Roles {
		if role == model.RoleAdmin {
			return true
		}
	}
	return false
}

// CanManage reports whether p may modify a resource owned by ownerID.
func (p Principal) CanManage(ownerID string) bool {
	return p.UserID != "" && (p.UserID == ownerID || p.IsAdmin())
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// Authenticate checks the bearer token and stores the caller's Principal
// in the request context. Requests without a valid token get a 401.
func Authenticate(secret string) func(http.Handler) http.Handler {
	authorize := oauth.Authorize(secret, nil)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// the oauth middleware answers failures itself: run it on a
			// buffer and keep the request it lets through
			var authorized *http.Request
			check := authorize(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				authorized = r
			}))
			rejection := httpx.NewResponseBuffer()
			check.ServeHTTP(rejection, r)

			if authorized == nil {
				var reason string
				_ = rejection.DecodeJSON(&reason)
				httpx.LogStatus(w, r, http.StatusUnauthorized, log.DebugLevel, "auth.bearer: "+reason)
				return
			}

			p, ok := principalFromClaims(authorized.Context())
			if !ok {
				httpx.LogStatus(w, r, http.StatusUnauthorized, log.DebugLevel, "auth.claims")
				return
			}

			next.ServeHTTP(w, authorized.WithContext(WithPrincipal(authorized.Context(), p)))
		})
	}
}

func principalFromClaims(ctx context.Context) (Principal, bool) {
	claims, _ := ctx.Value(oauth.ClaimsContext).(map[string]string)
	if claims == nil || claims[httpx.ClaimUserID] == "" {
		return Principal{}, false
	}

	p := Principal{UserID: claims[httpx.ClaimUserID]}
	if credential, ok := ctx.Value(oauth.CredentialContext).(string); ok {
		p.Email = credential
	}
	if rolesClaim := claims[httpx.ClaimRoles]; rolesClaim != "" {
		for _, role := range strings.Split(rolesClaim, ",") {
			p.Roles = append(p.Roles, strings.TrimSpace(role))
		}
	}
	return p, true
}
