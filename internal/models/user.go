package models

import "time"

type User struct {
	ID                  int        `json:"id"`
	Username            string     `json:"username"`
	Name                string     `json:"name"`
	Email               string     `json:"email"`
	Phone               string     `json:"phone"`
	Password            string     `json:"-"`
	Role                string     `json:"role"`
	IsLoggedIn          bool       `json:"isLoggedIn"`
	ResetPasswordOTP    *string    `json:"-"`
	ResetPasswordExpiry *time.Time `json:"-"`
	LastLogin           *time.Time `json:"lastLogin,omitempty"`
	LastActivity        *time.Time `json:"lastActivity,omitempty"`
	UserAgent           *string    `json:"-"`
	IP                  *string    `json:"-"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Name     string `json:"name"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Email    string `json:"email" validate:"required,email"`
	OTP      string `json:"otp" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

type CreateUserRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Name     string `json:"name"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role"`
}

type UpdateUserRequest struct {
	Username *string `json:"username"`
	Name     *string `json:"name"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Phone    *string `json:"phone"`
	Role     *string `json:"role"`
}

type BulkUser struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type BulkCreateUsersRequest struct {
	Users        []BulkUser `json:"users" validate:"required,min=1"`
	SkipExisting bool       `json:"skipExisting"`
}

type BulkUserFailure struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Reason   string `json:"reason"`
}

type Pagination struct {
	TotalRecords int `json:"totalRecords"`
	TotalPages   int `json:"totalPages"`
	CurrentPage  int `json:"currentPage"`
	PageSize     int `json:"pageSize"`
	StartRecord  int `json:"startRecord"`
	EndRecord    int `json:"endRecord"`
}
