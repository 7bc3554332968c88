package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"folderly-api/internal/models"
	"folderly-api/internal/repositories"
	"folderly-api/internal/responses"
	"folderly-api/internal/services"
	"folderly-api/internal/utils"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"
)

var validate = validator.New()

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func Register(users *repositories.UserRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			responses.SendErrorResponse(w, http.StatusBadRequest, "Invalid request format")
			return
		}
		if err := validate.Struct(req); err != nil {
			responses.SendValidationError(w, err)
			return
		}

		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to hash password")
			return
		}

		// Self-registration never grants admin
		user, err := users.Create(r.Context(), req.Username, req.Name, req.Email, req.Phone, string(hashedPassword), "user")
		if err != nil {
			var dup *repositories.DuplicateError
			if errors.As(err, &dup) {
				responses.SendErrorResponse(w, http.StatusConflict, "User already exists with this "+dup.Field)
				return
			}
			log.Printf("Database error during registration: %v", err)
			responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to create user")
			return
		}

		responses.SendSuccessResponse(w, http.StatusCreated, map[string]interface{}{
			"message": "User registered successfully",
			"user":    user,
		})
	}
}

func Login(users *repositories.UserRepository, tokens *repositories.SessionTokenRepository, jwtUtil *utils.JWTUtil) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var creds models.LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			responses.SendErrorResponse(w, http.StatusBadRequest, "Invalid request format")
			return
		}
		if creds.Username == "" || creds.Password == "" {
			responses.SendErrorResponse(w, http.StatusBadRequest, "Username and password are required")
			return
		}

		user, err := users.FindByIdentity(r.Context(), creds.Username)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				responses.SendErrorResponse(w, http.StatusUnauthorized, "Invalid username or password")
			} else {
				responses.SendErrorResponse(w, http.StatusInternalServerError, "Database error")
			}
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(creds.Password)); err != nil {
			responses.SendErrorResponse(w, http.StatusUnauthorized, "Invalid username or password")
			return
		}

		token, err := jwtUtil.GenerateToken(user.ID, user.Role)
		if err != nil {
			responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to generate token")
			return
		}

		if err := tokens.Create(r.Context(), user.ID, token); err != nil {
			responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to store session")
			return
		}

		if err := users.RecordLogin(r.Context(), user.ID, r.UserAgent(), clientIP(r)); err != nil {
			responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to update login status")
			return
		}
		user.IsLoggedIn = true

		responses.SendSuccessResponse(w, http.StatusOK, map[string]interface{}{
			"token": token,
			"user":  user,
		})
	}
}

func Logout(users *repositories.UserRepository, tokens *repositories.SessionTokenRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			responses.SendErrorResponse(w, http.StatusUnauthorized, "Invalid user context")
			return
		}

		if err := tokens.DeleteByUser(r.Context(), claims.UserID); err != nil {
			responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to logout")
			return
		}
		if err := users.SetLoggedIn(r.Context(), claims.UserID, false); err != nil {
			responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to logout")
			return
		}

		responses.SendSuccessResponse(w, http.StatusOK, map[string]string{
			"message": "Logged out successfully",
		})
	}
}

// RefreshToken rotates the caller's session: every outstanding token row is
// deleted before the replacement is stored, so the old access token dies at
// the token-store check even though its signature is still valid.
func RefreshToken(tokens *repositories.SessionTokenRepository, jwtUtil *utils.JWTUtil) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			responses.SendErrorResponse(w, http.StatusUnauthorized, "Invalid user context")
			return
		}

		token, err := jwtUtil.GenerateToken(claims.UserID, claims.Role)
		if err != nil {
			responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to generate token")
			return
		}

		if err := tokens.DeleteByUser(r.Context(), claims.UserID); err != nil {
			responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to rotate session")
			return
		}
		if err := tokens.Create(r.Context(), claims.UserID, token); err != nil {
			responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to store session")
			return
		}

		responses.SendSuccessResponse(w, http.StatusOK, map[string]string{
			"token": token,
		})
	}
}

func ForgotPassword(users *repositories.UserRepository, emailService *services.EmailService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.ForgotPasswordRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			responses.SendErrorResponse(w, http.StatusBadRequest, "Invalid request format")
			return
		}
		if err := validate.Struct(req); err != nil {
			responses.SendValidationError(w, err)
			return
		}

		user, err := users.FindByEmail(r.Context(), req.Email)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				responses.SendErrorResponse(w, http.StatusNotFound, "Email not found")
			} else {
				responses.SendErrorResponse(w, http.StatusInternalServerError, "Database error")
			}
			return
		}

		otp := utils.GenerateOTP(6)
		expiry := time.Now().Add(time.Hour)
		if err := users.SetResetOTP(r.Context(), user.ID, otp, expiry); err != nil {
			responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to process reset request")
			return
		}

		if err := emailService.SendResetEmail(req.Email, otp); err != nil {
			// Roll the OTP back if the mail never left
			if clearErr := users.ClearResetOTP(r.Context(), user.ID); clearErr != nil {
				log.Printf("Failed to roll back reset OTP for user %d: %v", user.ID, clearErr)
			}
			responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to send reset email")
			return
		}

		responses.SendSuccessResponse(w, http.StatusOK, map[string]string{
			"message": "Reset code sent. Please check your email.",
		})
	}
}

func ResetPassword(users *repositories.UserRepository, tokens *repositories.SessionTokenRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.ResetPasswordRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			responses.SendErrorResponse(w, http.StatusBadRequest, "Invalid request format")
			return
		}
		if err := validate.Struct(req); err != nil {
			responses.SendValidationError(w, err)
			return
		}

		user, err := users.FindByEmail(r.Context(), req.Email)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				responses.SendErrorResponse(w, http.StatusNotFound, "Email not found")
			} else {
				responses.SendErrorResponse(w, http.StatusInternalServerError, "Database error")
			}
			return
		}

		if user.ResetPasswordOTP == nil || *user.ResetPasswordOTP != req.OTP {
			responses.SendErrorResponse(w, http.StatusBadRequest, "Invalid reset code")
			return
		}
		if user.ResetPasswordExpiry == nil || time.Now().After(*user.ResetPasswordExpiry) {
			responses.SendErrorResponse(w, http.StatusBadRequest, "Reset code has expired")
			return
		}

		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to hash password")
			return
		}

		if err := users.UpdatePassword(r.Context(), user.ID, string(hashedPassword)); err != nil {
			responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to reset password")
			return
		}
		// Any live sessions die with the old password
		if err := tokens.DeleteByUser(r.Context(), user.ID); err != nil {
			log.Printf("Failed to revoke sessions for user %d after password reset: %v", user.ID, err)
		}

		responses.SendSuccessResponse(w, http.StatusOK, map[string]string{
			"message": "Password reset successful. Please log in again.",
		})
	}
}

// ForceLogout lets an admin terminate another user's sessions: the login
// flag is cleared and every stored token row is deleted.
func ForceLogout(users *repositories.UserRepository, tokens *repositories.SessionTokenRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		userID, err := strconv.Atoi(vars["userId"])
		if err != nil {
			responses.SendErrorResponse(w, http.StatusBadRequest, "Invalid user ID")
			return
		}

		if _, err := users.FindByID(r.Context(), userID); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				responses.SendErrorResponse(w, http.StatusNotFound, "User not found")
			} else {
				responses.SendErrorResponse(w, http.StatusInternalServerError, "Database error")
			}
			return
		}

		if err := users.SetLoggedIn(r.Context(), userID, false); err != nil {
			responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to force logout")
			return
		}
		if err := tokens.DeleteByUser(r.Context(), userID); err != nil {
			responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to force logout")
			return
		}

		responses.SendSuccessResponse(w, http.StatusOK, map[string]string{
			"message": "User has been logged out",
		})
	}
}

func RateLimitMiddleware(limiter *rate.Limiter) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				responses.SendErrorResponse(w, http.StatusTooManyRequests, "Too many requests. Please try again later.")
				return
			}
			next(w, r)
		}
	}
}
