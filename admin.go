package main

import (
	"net/http"
	"strconv"

	"regis/models"
	"regis/pkg/authz"
	"regis/pkg/cluster"

	"github.com/gin-gonic/gin"
)

// Registrar endpoints. None of them carry their own role check: the store
// layer consults the rule table on every call, so a student hitting these
// routes gets the same denial they would get anywhere else.

func adminListProfilesHandler(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	status := c.Query("status")
	if status != "" && !models.ValidStatus(status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status filter"})
		return
	}
	profiles, err := listProfiles(actor, status)
	if err != nil {
		respondStoreError(c, err, true)
		return
	}
	c.JSON(http.StatusOK, profiles)
}

func adminGetProfileHandler(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	ownerID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad id"})
		return
	}
	p, err := getProfile(actor, uint(ownerID))
	if err != nil {
		respondStoreError(c, err, true)
		return
	}
	c.JSON(http.StatusOK, p)
}

func adminSetStatusHandler(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	ownerID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad id"})
		return
	}
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := setStatus(actor, uint(ownerID), req.Status)
	if err != nil {
		respondStoreError(c, err, false)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": p.ID, "status": p.Status, "updated_at": p.UpdatedAt})
}

func adminDeleteProfileHandler(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	ownerID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad id"})
		return
	}
	if err := deleteProfile(actor, uint(ownerID)); err != nil {
		respondStoreError(c, err, false)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "profile deleted"})
}

func adminGrantRoleHandler(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	targetID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad id"})
		return
	}
	var req struct {
		Role string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := grantRole(actor, uint(targetID), req.Role); err != nil {
		respondStoreError(c, err, false)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "role granted"})
}

func adminRevokeRoleHandler(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	targetID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad id"})
		return
	}
	if err := revokeRole(actor, uint(targetID), c.Param("role")); err != nil {
		respondStoreError(c, err, false)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "role revoked"})
}

func adminDeleteDocumentHandler(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad id"})
		return
	}
	warning, err := deleteDocument(actor, uint(id))
	if err != nil {
		respondStoreError(c, err, false)
		return
	}
	resp := gin.H{"message": "document deleted"}
	if warning != "" {
		resp["blob_warning"] = warning
	}
	c.JSON(http.StatusOK, resp)
}

// --- analytics ---

type schoolCount struct {
	SchoolName   string `json:"school_name"`
	Municipality string `json:"municipality"`
	Students     int    `json:"students"`
}

// schoolStats aggregates distinct schools over all profiles; gated exactly
// like any other read-any on profiles.
func schoolStats(actor authz.Actor) ([]schoolCount, error) {
	if err := authz.Decide(actor, authz.ResourceProfile, authz.OpRead, 0); err != nil {
		return nil, err
	}
	var out []schoolCount
	err := db.Model(&models.StudentProfile{}).
		Select("school_name, municipality, count(*) as students").
		Group("school_name, municipality").
		Order("students desc").
		Scan(&out).Error
	return out, err
}

func adminMunicipalityStatsHandler(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	if err := authz.Decide(actor, authz.ResourceProfile, authz.OpRead, 0); err != nil {
		respondStoreError(c, err, true)
		return
	}
	type muniCount struct {
		Municipality string `json:"municipality"`
		Students     int    `json:"students"`
	}
	var out []muniCount
	err := db.Model(&models.StudentProfile{}).
		Select("municipality, count(*) as students").
		Group("municipality").
		Order("students desc").
		Scan(&out).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, out)
}

// adminSchoolClustersHandler feeds the distinct schools to the clustering
// service and returns its predictions merged with per-school student
// counts. When the service is down the local rule-based fallback answers.
func adminSchoolClustersHandler(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	stats, err := schoolStats(actor)
	if err != nil {
		respondStoreError(c, err, true)
		return
	}
	schools := make([]cluster.School, 0, len(stats))
	for _, s := range stats {
		schools = append(schools, cluster.School{Name: s.SchoolName, Municipality: s.Municipality})
	}
	batch := clusters.BatchOrFallback(c.Request.Context(), schools)
	c.JSON(http.StatusOK, gin.H{
		"schools":  stats,
		"results":  batch.Results,
		"summary":  batch.Summary,
		"degraded": batch.Summary.ModelUsed != "ml",
	})
}
