package domain

import (
	"net/mail"
	"strings"
	"time"
)

// Role определяет права пользователя.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// MinPasswordLength минимальная длина пароля при регистрации.
const MinPasswordLength = 8

// ParseRole разбирает роль без учёта регистра.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	if !role.Valid() {
		return "", ErrInvalidRole
	}
	return role, nil
}

// Valid проверяет, что роль поддерживается.
func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleAdmin
}

// IsPrivileged сообщает, что роль имеет неограниченный доступ к заказам.
func (r Role) IsPrivileged() bool {
	return r == RoleAdmin
}

// User — учётная запись покупателя или администратора.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Summary возвращает публичное представление пользователя.
func (u User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

// UserSummary — данные пользователя без секретов.
type UserSummary struct {
	ID    string
	Name  string
	Email string
	Role  Role
}

// NormalizeEmail приводит email к каноническому виду.
func NormalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrEmailInvalid
	}
	return email, nil
}

// Caller — аутентифицированный инициатор запроса.
type Caller struct {
	UserID string
	Role   Role
}

// OrderScope возвращает владельца, которым ограничен доступ к заказам.
// Пустая строка означает доступ ко всем заказам.
func (c Caller) OrderScope() string {
	if c.Role.IsPrivileged() {
		return ""
	}
	return c.UserID
}

// Session — выданный токен доступа. Роль не хранится в сессии и
// читается из учётной записи при каждой аутентификации.
type Session struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
}
