// Command csu provisions the initial administrator account. It refuses to
// touch an existing account with the same email.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"gorm.io/gorm"

	"github.com/mkravch/buyrate/internal/authz"
	"github.com/mkravch/buyrate/internal/config"
	"github.com/mkravch/buyrate/internal/hash"
	"github.com/mkravch/buyrate/internal/models"
)

func main() {
	email := flag.String("email", "admin@example.com", "admin login email")
	password := flag.String("password", "admin", "admin password")
	chatID := flag.Int64("chat_id", 1, "telegram chat id")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	db, err := config.InitDB(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "db init failed: %v\n", err)
		os.Exit(1)
	}

	if err := createSuperuser(db, *email, *password, *chatID); err != nil {
		if errors.Is(err, errExists) {
			fmt.Println("A superuser with this email already exists.")
			return
		}
		fmt.Fprintf(os.Stderr, "create superuser failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Superuser %s created successfully!\n", *email)
}

var errExists = errors.New("superuser already exists")

func createSuperuser(db *gorm.DB, email, password string, chatID int64) error {
	var existing models.User
	err := db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		return errExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	passwordHash, err := hash.HashPassword(password)
	if err != nil {
		return err
	}

	user := models.User{
		Email:        email,
		PasswordHash: passwordHash,
		Role:         authz.RoleAdmin,
		ChatID:       chatID,
	}
	return db.Create(&user).Error
}
