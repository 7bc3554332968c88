package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"folderly-api/internal/models"
	"folderly-api/internal/repositories"
	"folderly-api/internal/responses"

	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"
)

// resolveRole keeps a requested role only when the requester is an admin;
// anything else is downgraded to a plain user.
func resolveRole(requested, requesterRole string) string {
	if requested == "admin" && requesterRole == "admin" {
		return "admin"
	}
	return "user"
}

func GetAllUsers(users *repositories.UserRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := strconv.Atoi(r.URL.Query().Get("page"))
		if err != nil || page < 1 {
			page = 1
		}
		limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
		if err != nil || limit < 1 {
			limit = 10
		}
		skip := (page - 1) * limit

		total, err := users.Count(r.Context())
		if err != nil {
			responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to fetch users")
			return
		}

		list, err := users.List(r.Context(), skip, limit)
		if err != nil {
			responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to fetch users")
			return
		}

		startRecord := 0
		if total > 0 {
			startRecord = skip + 1
		}
		endRecord := skip + limit
		if endRecord > total {
			endRecord = total
		}
		totalPages := (total + limit - 1) / limit

		responses.SendSuccessResponse(w, http.StatusOK, map[string]interface{}{
			"users": list,
			"pagination": models.Pagination{
				TotalRecords: total,
				TotalPages:   totalPages,
				CurrentPage:  page,
				PageSize:     limit,
				StartRecord:  startRecord,
				EndRecord:    endRecord,
			},
		})
	}
}

func GetUserByID(users *repositories.UserRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(mux.Vars(r)["id"])
		if err != nil {
			responses.SendErrorResponse(w, http.StatusBadRequest, "Invalid user ID")
			return
		}

		user, err := users.FindByID(r.Context(), id)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				responses.SendErrorResponse(w, http.StatusNotFound, "User not found")
			} else {
				responses.SendErrorResponse(w, http.StatusInternalServerError, "Database error")
			}
			return
		}

		responses.SendSuccessResponse(w, http.StatusOK, user)
	}
}

func CreateUser(users *repositories.UserRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			responses.SendErrorResponse(w, http.StatusUnauthorized, "Invalid user context")
			return
		}

		var req models.CreateUserRequest
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

		role := resolveRole(req.Role, claims.Role)
		user, err := users.Create(r.Context(), req.Username, req.Name, req.Email, req.Phone, string(hashedPassword), role)
		if err != nil {
			var dup *repositories.DuplicateError
			if errors.As(err, &dup) {
				responses.SendErrorResponse(w, http.StatusBadRequest, "User already exists with this "+dup.Field)
				return
			}
			log.Printf("Error creating user: %v", err)
			responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to create user")
			return
		}

		total, err := users.Count(r.Context())
		if err != nil {
			log.Printf("Error counting users: %v", err)
		}

		responses.SendSuccessResponse(w, http.StatusCreated, map[string]interface{}{
			"user":         user,
			"totalRecords": total,
		})
	}
}

func UpdateUser(users *repositories.UserRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			responses.SendErrorResponse(w, http.StatusUnauthorized, "Invalid user context")
			return
		}

		id, err := strconv.Atoi(mux.Vars(r)["id"])
		if err != nil {
			responses.SendErrorResponse(w, http.StatusBadRequest, "Invalid user ID")
			return
		}

		user, err := users.FindByID(r.Context(), id)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				responses.SendErrorResponse(w, http.StatusNotFound, "User not found")
			} else {
				responses.SendErrorResponse(w, http.StatusInternalServerError, "Database error")
			}
			return
		}

		// Users may only update themselves unless they are admins
		if claims.UserID != user.ID && claims.Role != "admin" {
			responses.SendErrorResponse(w, http.StatusForbidden, "Unauthorized to update this user")
			return
		}

		var req models.UpdateUserRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			responses.SendErrorResponse(w, http.StatusBadRequest, "Invalid request format")
			return
		}
		if err := validate.Struct(req); err != nil {
			responses.SendValidationError(w, err)
			return
		}

		username := user.Username
		if req.Username != nil {
			username = *req.Username
		}
		name := user.Name
		if req.Name != nil {
			name = *req.Name
		}
		email := user.Email
		if req.Email != nil {
			email = *req.Email
		}
		phone := user.Phone
		if req.Phone != nil {
			phone = *req.Phone
		}
		role := user.Role
		if req.Role != nil && claims.Role == "admin" && (*req.Role == "admin" || *req.Role == "user") {
			role = *req.Role
		}

		updated, err := users.Update(r.Context(), id, username, name, email, phone, role)
		if err != nil {
			var dup *repositories.DuplicateError
			if errors.As(err, &dup) {
				responses.SendErrorResponse(w, http.StatusBadRequest, dup.Field+" already exists")
				return
			}
			responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to update user")
			return
		}

		responses.SendSuccessResponse(w, http.StatusOK, updated)
	}
}

func DeleteUser(users *repositories.UserRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(mux.Vars(r)["id"])
		if err != nil {
			responses.SendErrorResponse(w, http.StatusBadRequest, "Invalid user ID")
			return
		}

		if err := users.Delete(r.Context(), id); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				responses.SendErrorResponse(w, http.StatusNotFound, "User not found")
			} else {
				responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to delete user")
			}
			return
		}

		total, err := users.Count(r.Context())
		if err != nil {
			log.Printf("Error counting users: %v", err)
		}

		responses.SendSuccessResponse(w, http.StatusOK, map[string]interface{}{
			"message":      "User removed",
			"totalRecords": total,
		})
	}
}

// BulkCreateUsers imports a user list. Failures are isolated per item: a
// bad or duplicate entry is recorded (or skipped) without aborting the rest.
func BulkCreateUsers(users *repositories.UserRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			responses.SendErrorResponse(w, http.StatusUnauthorized, "Invalid user context")
			return
		}

		var req models.BulkCreateUsersRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			responses.SendErrorResponse(w, http.StatusBadRequest, "Invalid request format")
			return
		}
		if len(req.Users) == 0 {
			responses.SendErrorResponse(w, http.StatusBadRequest, "No users provided")
			return
		}

		added := 0
		skipped := 0
		failed := []models.BulkUserFailure{}
		for _, item := range req.Users {
			if item.Username == "" || item.Phone == "" || item.Email == "" || item.Password == "" {
				failed = append(failed, models.BulkUserFailure{
					Username: item.Username,
					Email:    item.Email,
					Reason:   "username, phone, email and password are required",
				})
				continue
			}

			exists, err := users.ExistsByEmailOrUsername(r.Context(), item.Email, item.Username)
			if err != nil {
				responses.SendErrorResponse(w, http.StatusInternalServerError, "Database error")
				return
			}
			if exists {
				if req.SkipExisting {
					skipped++
					continue
				}
				failed = append(failed, models.BulkUserFailure{
					Username: item.Username,
					Email:    item.Email,
					Reason:   "user already exists",
				})
				continue
			}

			hashedPassword, err := bcrypt.GenerateFromPassword([]byte(item.Password), bcrypt.DefaultCost)
			if err != nil {
				responses.SendErrorResponse(w, http.StatusInternalServerError, "Failed to hash password")
				return
			}

			role := resolveRole(item.Role, claims.Role)
			if _, err := users.Create(r.Context(), item.Username, item.Name, item.Email, item.Phone, string(hashedPassword), role); err != nil {
				var dup *repositories.DuplicateError
				if errors.As(err, &dup) {
					// Lost the race with a concurrent insert
					if req.SkipExisting {
						skipped++
						continue
					}
					failed = append(failed, models.BulkUserFailure{
						Username: item.Username,
						Email:    item.Email,
						Reason:   dup.Field + " already exists",
					})
					continue
				}
				responses.SendErrorResponse(w, http.StatusInternalServerError, "Database error")
				return
			}
			added++
		}

		responses.SendSuccessResponse(w, http.StatusOK, map[string]interface{}{
			"message":      "Users registration completed",
			"addedCount":   added,
			"skippedCount": skipped,
			"failed":       failed,
		})
	}
}

// CheckUsers reports which of the submitted users already exist by email or
// username, so a bulk import can be previewed.
func CheckUsers(users *repositories.UserRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req []models.BulkUser
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			responses.SendErrorResponse(w, http.StatusBadRequest, "Invalid request format")
			return
		}

		existing := []map[string]string{}
		for _, item := range req {
			exists, err := users.ExistsByEmailOrUsername(r.Context(), item.Email, item.Username)
			if err != nil {
				responses.SendErrorResponse(w, http.StatusInternalServerError, "Database error")
				return
			}
			if exists {
				existing = append(existing, map[string]string{
					"email":    item.Email,
					"username": item.Username,
				})
			}
		}

		responses.SendSuccessResponse(w, http.StatusOK, map[string]interface{}{
			"existingUsers": existing,
		})
	}
}
