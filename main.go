package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"regis/pkg/cluster"
	"regis/pkg/storage"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

var jwtSecret []byte // loaded from env JWT_SECRET (fallback to dev default)

var (
	blobs    *storage.Local
	clusters *cluster.Client
)

func main() {
	// Auto-load ./.env if present before reading vars; existing env wins.
	_ = godotenv.Load()
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "dev-insecure-secret-change" // development fallback
	}
	jwtSecret = []byte(secret)

	// Support a lightweight migrate command: `./regis_app migrate`
	// It runs AutoMigrate and seeding then exits. Useful for CI or manual DB setup.
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		initDB()
		fmt.Println("migration and seeding completed")
		return
	}

	initDB()
	initBlobStore()
	clusters = cluster.New(clusterAPIURL())

	registerValidators()

	r := gin.Default()

	setupRoutes(r)

	r.Run(":8081")
}

// initBlobStore opens the local blob store under UPLOAD_BASE. Signed URLs
// reuse the JWT secret unless URL_SIGNING_SECRET is set separately.
func initBlobStore() {
	urlSecret := os.Getenv("URL_SIGNING_SECRET")
	if urlSecret == "" {
		urlSecret = string(jwtSecret)
	}
	var err error
	blobs, err = storage.NewLocal(uploadBaseDir(), []byte(urlSecret), "/files")
	if err != nil {
		log.Fatalf("failed to open blob store: %v", err)
	}
}

func clusterAPIURL() string {
	if v := os.Getenv("CLUSTER_API_URL"); v != "" {
		return v
	}
	return "http://localhost:8000"
}

// registerValidators adds custom binding validators used by the enrollment
// form structs.
func registerValidators() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	// enrollment year must be a plausible school year, not a typo
	_ = v.RegisterValidation("enrollyear", func(fl validator.FieldLevel) bool {
		y := int(fl.Field().Int())
		return y >= 1990 && y <= time.Now().Year()+1
	})
}
