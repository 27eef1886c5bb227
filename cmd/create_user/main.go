package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"regis/models"
	"regis/pkg/authz"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	admin := flag.Bool("admin", false, "also grant the admin role")
	flag.Parse()
	if flag.NArg() < 2 {
		fmt.Println("usage: go run ./cmd/create_user [-admin] <username> <password>")
		os.Exit(2)
	}
	username := flag.Arg(0)
	password := flag.Arg(1)

	dsn := os.Getenv("DB_DSN")
	if strings.TrimSpace(dsn) == "" {
		log.Fatal("DB_DSN not set in environment")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to open db: %v", err)
	}

	var existing models.User
	if err := db.Where("username = ?", username).First(&existing).Error; err == nil {
		fmt.Printf("user %s already exists (id=%d)\n", username, existing.ID)
		os.Exit(0)
	}

	hpw, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("bcrypt failed: %v", err)
	}
	// user plus default role in one transaction; never a roleless user
	var user models.User
	err = db.Transaction(func(tx *gorm.DB) error {
		user = models.User{Username: username, HashedPassword: hpw}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		if err := tx.Create(&models.RoleAssignment{UserID: user.ID, Role: authz.RoleStudent}).Error; err != nil {
			return err
		}
		if *admin {
			return tx.Create(&models.RoleAssignment{UserID: user.ID, Role: authz.RoleAdmin}).Error
		}
		return nil
	})
	if err != nil {
		log.Fatalf("failed to create user: %v", err)
	}
	fmt.Printf("created user %s id=%d admin=%v\n", username, user.ID, *admin)
}
