package main

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"time"

	"regis/models"
	"regis/pkg/authz"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
)

func setupRoutes(r *gin.Engine) {
	r.POST("/register", registerHandler)
	r.POST("/login", loginHandler)
	r.POST("/refresh", refreshHandler)
	r.POST("/revoke_refresh", revokeRefreshHandler)
	r.GET("/files/*key", serveFileHandler)

	authGroup := r.Group("")
	authGroup.Use(jwtAuthMiddleware())
	authGroup.GET("/me", meHandler)
	authGroup.GET("/roles", myRolesHandler)
	authGroup.POST("/profile", createProfileHandler)
	authGroup.GET("/profile", getProfileHandler)
	authGroup.PUT("/profile", updateProfileHandler)
	authGroup.POST("/documents", uploadDocumentHandler)
	authGroup.GET("/documents", listDocumentsHandler)
	authGroup.GET("/documents/:id", getDocumentHandler)
	authGroup.GET("/documents/:id/url", documentURLHandler)

	adminGroup := authGroup.Group("/admin")
	adminGroup.GET("/profiles", adminListProfilesHandler)
	adminGroup.GET("/profiles/:id", adminGetProfileHandler)
	adminGroup.PATCH("/profiles/:id/status", adminSetStatusHandler)
	adminGroup.DELETE("/profiles/:id", adminDeleteProfileHandler)
	adminGroup.POST("/users/:id/roles", adminGrantRoleHandler)
	adminGroup.DELETE("/users/:id/roles/:role", adminRevokeRoleHandler)
	adminGroup.DELETE("/documents/:id", adminDeleteDocumentHandler)
	adminGroup.GET("/analytics/municipalities", adminMunicipalityStatsHandler)
	adminGroup.GET("/analytics/schools", adminSchoolClustersHandler)
}

func jwtAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || len(authHeader) < 8 || authHeader[:7] != "Bearer " {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid Authorization header"})
			c.Abort()
			return
		}
		tokenString := authHeader[7:]
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrInvalidKeyType
			}
			return jwtSecret, nil
		})
		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid claims"})
			c.Abort()
			return
		}
		sub, _ := claims["sub"].(float64)
		if sub <= 0 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid claims"})
			c.Abort()
			return
		}
		username, _ := claims["username"].(string)
		c.Set("userID", uint(sub))
		c.Set("username", username)
		c.Next()
	}
}

// actorFromContext resolves the acting identity. Roles come fresh from the
// role store on every request rather than from token claims, so a revoked
// admin loses access on the next call.
func actorFromContext(c *gin.Context) (authz.Actor, bool) {
	idVal, ok := c.Get("userID")
	if !ok {
		return authz.Actor{}, false
	}
	actor, err := actorFor(idVal.(uint))
	if err != nil {
		return authz.Actor{}, false
	}
	return actor, true
}

// respondStoreError maps store errors onto HTTP codes. For reads a denial
// is reported as not found, so a student cannot tell "exists but hidden"
// from "does not exist"; for writes the denial is surfaced as forbidden.
func respondStoreError(c *gin.Context, err error, read bool) {
	switch {
	case errors.Is(err, authz.ErrDenied) && read:
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, authz.ErrDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, models.ErrGPARange), errors.Is(err, models.ErrBadStatus):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, errAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func meHandler(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	username, _ := c.Get("username")
	c.JSON(http.StatusOK, gin.H{"id": actor.ID, "username": username, "roles": actor.Roles})
}

func myRolesHandler(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	assignments, err := listRoleAssignments(actor, actor.ID)
	if err != nil {
		respondStoreError(c, err, true)
		return
	}
	c.JSON(http.StatusOK, assignments)
}

// --- registration & session ---

func registerHandler(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := RegisterUser(req.Username, req.Password); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user registered successfully"})
}

func loginHandler(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := Authenticate(req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	tokenString, err := mintAccessToken(user, 24*time.Hour)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}
	refreshToken, err := createAndStoreRefreshToken(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create refresh token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "login successful", "token": tokenString, "refresh_token": refreshToken})
}

// mintAccessToken signs an HS256 access token. Roles are included for the
// client's benefit only; authorization always re-reads the role store.
func mintAccessToken(user models.User, ttl time.Duration) (string, error) {
	actor, err := actorFor(user.ID)
	if err != nil {
		return "", err
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      float64(user.ID),
		"username": user.Username,
		"roles":    actor.Roles,
		"exp":      time.Now().Add(ttl).Unix(),
	})
	return token.SignedString(jwtSecret)
}

// createAndStoreRefreshToken generates a random refresh token, stores its hash with expiry and returns the raw token string
func createAndStoreRefreshToken(userID uint) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	token := hex.EncodeToString(b)
	h := sha256.Sum256([]byte(token))
	th := hex.EncodeToString(h[:])
	rt := models.RefreshToken{UserID: userID, TokenHash: th, ExpiresAt: time.Now().Add(30 * 24 * time.Hour)}
	if err := db.Create(&rt).Error; err != nil {
		return "", err
	}
	return token, nil
}

func findRefreshTokenByRaw(token string) (*models.RefreshToken, error) {
	h := sha256.Sum256([]byte(token))
	th := hex.EncodeToString(h[:])
	var rt models.RefreshToken
	if err := db.Where("token_hash = ?", th).First(&rt).Error; err != nil {
		return nil, err
	}
	return &rt, nil
}

// refreshHandler exchanges a refresh token for a new access token and rotates the refresh token
func refreshHandler(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rt, err := findRefreshTokenByRaw(req.RefreshToken)
	if err != nil || rt.Revoked || time.Now().After(rt.ExpiresAt) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired refresh token"})
		return
	}
	var user models.User
	if err := db.First(&user, rt.UserID).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	tokenString, err := mintAccessToken(user, 15*time.Minute)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}
	// rotate refresh token: revoke existing and create new one
	db.Model(&models.RefreshToken{}).Where("id = ?", rt.ID).Update("revoked", true)
	newRT, err := createAndStoreRefreshToken(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to rotate refresh token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": tokenString, "refresh_token": newRT})
}

// revokeRefreshHandler revokes a given refresh token (useful on logout)
func revokeRefreshHandler(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rt, err := findRefreshTokenByRaw(req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "refresh token not found"})
		return
	}
	rt.Revoked = true
	if err := db.Save(rt).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to revoke token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "refresh token revoked"})
}

// --- profiles ---

// profileRequest is the owner-editable subset of a profile. Status is
// absent on purpose: it only moves through the admin lifecycle endpoint.
type profileRequest struct {
	FirstName      string  `json:"first_name" binding:"required"`
	MiddleName     string  `json:"middle_name"`
	LastName       string  `json:"last_name" binding:"required"`
	EnrollmentYear int     `json:"enrollment_year" binding:"required,enrollyear"`
	SchoolName     string  `json:"school_name" binding:"required"`
	SchoolType     string  `json:"school_type" binding:"required,oneof=public private"`
	Municipality   string  `json:"municipality" binding:"required"`
	Program        string  `json:"program" binding:"required"`
	GPA            float64 `json:"gpa" binding:"min=0,max=100"`
	MotherName     string  `json:"mother_name"`
	FatherName     string  `json:"father_name"`
	GuardianName   string  `json:"guardian_name"`
	ContactNumber  string  `json:"contact_number" binding:"required"`
	HomeAddress    string  `json:"home_address" binding:"required"`
	Sex            string  `json:"sex" binding:"required,oneof=male female"`
}

func (r profileRequest) apply(p *models.StudentProfile) {
	p.FirstName = r.FirstName
	p.MiddleName = r.MiddleName
	p.LastName = r.LastName
	p.EnrollmentYear = r.EnrollmentYear
	p.SchoolName = r.SchoolName
	p.SchoolType = r.SchoolType
	p.Municipality = r.Municipality
	p.Program = r.Program
	p.GPA = r.GPA
	p.MotherName = r.MotherName
	p.FatherName = r.FatherName
	p.GuardianName = r.GuardianName
	p.ContactNumber = r.ContactNumber
	p.HomeAddress = r.HomeAddress
	p.Sex = r.Sex
}

func createProfileHandler(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	profile := models.StudentProfile{UserID: actor.ID, Status: models.StatusPending}
	req.apply(&profile)
	if err := createProfile(actor, &profile); err != nil {
		respondStoreError(c, err, false)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": profile.ID, "status": profile.Status})
}

func getProfileHandler(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	p, err := getProfile(actor, actor.ID)
	if err != nil {
		respondStoreError(c, err, true)
		return
	}
	c.JSON(http.StatusOK, p)
}

func updateProfileHandler(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := updateProfile(actor, actor.ID, req.apply)
	if err != nil {
		respondStoreError(c, err, false)
		return
	}
	c.JSON(http.StatusOK, p)
}
