package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"folderly-api/internal/models"
	"folderly-api/internal/repositories"
	"folderly-api/internal/responses"
	"folderly-api/internal/utils"
)

type contextKey string

const (
	userClaimsKey contextKey = "userClaims"
)

// sessionUserStore and sessionTokenStore are the two stores the session
// gate cross-checks on every request.
type sessionUserStore interface {
	FindByID(ctx context.Context, id int) (*models.User, error)
	TouchActivity(ctx context.Context, id int) error
}

type sessionTokenStore interface {
	Find(ctx context.Context, userID int, accessToken string) (*models.SessionToken, error)
}

// JWTMiddleware validates the bearer token on every request. A token must
// pass four gates: present, cryptographically valid, still recorded in the
// token store, and belonging to a user whose login flag is set. Signature
// validity alone is never enough; revocation works by deleting the stored
// row or clearing the flag.
func JWTMiddleware(jwtUtil *utils.JWTUtil, users sessionUserStore, tokens sessionTokenStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				responses.SendErrorResponse(w, http.StatusUnauthorized, "Authorization header is required")
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader || tokenString == "" {
				responses.SendErrorResponse(w, http.StatusUnauthorized, "Bearer token not found")
				return
			}

			claims, err := jwtUtil.ValidateToken(tokenString)
			if err != nil {
				if errors.Is(err, utils.ErrTokenExpired) {
					responses.SendTokenExpired(w, "Your session has expired. Please log in again.")
					return
				}
				responses.SendErrorResponse(w, http.StatusUnauthorized, "Token is not valid")
				return
			}

			// The signature alone doesn't prove the session is live; the
			// stored token row is the source of truth.
			if _, err := tokens.Find(r.Context(), claims.UserID, tokenString); err != nil {
				if errors.Is(err, repositories.ErrNotFound) {
					responses.SendSessionExpired(w, "Invalid token or session expired")
					return
				}
				responses.SendErrorResponse(w, http.StatusInternalServerError, "Database error")
				return
			}

			user, err := users.FindByID(r.Context(), claims.UserID)
			if err != nil {
				if errors.Is(err, repositories.ErrNotFound) {
					responses.SendSessionExpired(w, "Your session has expired. Please log in again.")
					return
				}
				responses.SendErrorResponse(w, http.StatusInternalServerError, "Database error")
				return
			}
			if !user.IsLoggedIn {
				responses.SendSessionExpired(w, "Your session has expired. Please log in again.")
				return
			}

			// Best-effort activity refresh; never fails the request.
			go func(userID int) {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := users.TouchActivity(ctx, userID); err != nil {
					log.Printf("Failed to update last activity for user %d: %v", userID, err)
				}
			}(claims.UserID)

			ctx := context.WithValue(r.Context(), userClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminMiddleware gates admin-only routes. It assumes JWTMiddleware already
// ran and rejects anything short of a validated admin role.
func AdminMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				responses.SendErrorResponse(w, http.StatusUnauthorized, "User not authenticated")
				return
			}
			if claims.Role != "admin" {
				responses.SendErrorResponse(w, http.StatusForbidden, "Access denied: admin role required")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClaimsFromContext returns the validated claims stored by JWTMiddleware.
func ClaimsFromContext(ctx context.Context) (*utils.Claims, bool) {
	claims, ok := ctx.Value(userClaimsKey).(*utils.Claims)
	return claims, ok
}
