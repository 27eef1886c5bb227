package main

import (
	"fmt"
	"strings"

	"regis/models"
	"regis/pkg/authz"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// RegisterUser provisions a new account. The user row and its default
// student role assignment are created in one transaction: if either insert
// fails the whole registration fails, so a user can never exist roleless.
func RegisterUser(username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("username required")
	}
	if len(password) < 6 { // basic password policy
		return fmt.Errorf("password too short (min 6)")
	}
	// pre-check existing (optimistic)
	var existing models.User
	if err := db.Where("username = ?", username).First(&existing).Error; err == nil {
		return fmt.Errorf("user already exists")
	}
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		user := models.User{Username: username, HashedPassword: hashedPassword}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		return tx.Create(&models.RoleAssignment{UserID: user.ID, Role: authz.RoleStudent}).Error
	})
	if err != nil {
		if isUniqueConstraintError(err) { // race condition after initial check
			return fmt.Errorf("user already exists")
		}
		return err
	}
	return nil
}

func Authenticate(username, password string) (models.User, error) {
	username = strings.TrimSpace(username)
	var user models.User
	if err := db.Where("username = ?", username).First(&user).Error; err != nil {
		return models.User{}, fmt.Errorf("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword(user.HashedPassword, []byte(password)); err != nil {
		return models.User{}, fmt.Errorf("invalid credentials")
	}
	return user, nil
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "duplicate key") || strings.Contains(s, "unique constraint") || strings.Contains(s, "already exists")
}
