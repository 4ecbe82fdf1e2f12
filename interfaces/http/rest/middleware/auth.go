package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/awslabs/aws-lambda-go-api-proxy/core"
	"go.uber.org/zap"

	"github.com/noctisdark/mazenrecords-sst/pkg/auth"
)

// Authenticate resolves the caller's subject and stores it in the request
// context.
//
// Requests proxied from API Gateway were already checked by its JWT
// authorizer, so the subject is read from the authorizer claims. Other
// requests must carry a bearer token signed with the configured secret;
// with a nil validator they are rejected.
func Authenticate(validator *auth.JWTValidator, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if gw, ok := core.GetAPIGatewayV2ContextFromContext(r.Context()); ok {
				sub := subjectFromAuthorizer(gw.Authorizer)
				if sub == "" {
					logger.Warn("Authorizer context carries no subject", zap.String("path", r.URL.Path))
					respondUnauthorized(w, "Missing subject")
					return
				}
				next.ServeHTTP(w, r.WithContext(auth.SetUserInContext(r.Context(), &auth.UserContext{UserID: sub})))
				return
			}

			if validator == nil {
				respondUnauthorized(w, "Authentication is not configured")
				return
			}

			token := extractToken(r)
			if token == "" {
				respondUnauthorized(w, "Missing authentication token")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.Warn("Invalid token",
					zap.Error(err),
					zap.String("path", r.URL.Path),
				)
				switch {
				case errors.Is(err, auth.ErrExpiredToken):
					respondUnauthorized(w, "Token has expired")
				case errors.Is(err, auth.ErrInvalidSignature):
					respondUnauthorized(w, "Invalid token signature")
				default:
					respondUnauthorized(w, "Invalid token")
				}
				return
			}

			ctx := auth.SetUserInContext(r.Context(), &auth.UserContext{
				UserID: claims.Subject,
				Email:  claims.Email,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func subjectFromAuthorizer(a *events.APIGatewayV2HTTPRequestContextAuthorizerDescription) string {
	if a == nil {
		return ""
	}
	if a.JWT != nil {
		if sub := a.JWT.Claims["sub"]; sub != "" {
			return sub
		}
	}
	if sub, ok := a.Lambda["sub"].(string); ok {
		return sub
	}
	return ""
}

// extractToken reads a bearer token from the Authorization header
func extractToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// respondUnauthorized sends an unauthorized response
func respondUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
}
