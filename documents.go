package main

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"regis/models"
	"regis/pkg/storage"

	"github.com/gin-gonic/gin"
)

const maxDocumentSize = 5 * 1024 * 1024 // 5MB

// uploadDocumentHandler stores the blob under the student's namespace and
// records the metadata row. The blob key's first segment is the owner id,
// so a student can only ever mint keys inside their own namespace.
func uploadDocumentHandler(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	// a profile must exist before documents can be attached to it
	profile, err := getProfile(actor, actor.ID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "profile missing"})
		return
	}
	docType := c.PostForm("doc_type")
	if docType == "" {
		docType = "other"
	}
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file missing"})
		return
	}
	if file.Size > maxDocumentSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file too large (max 5MB)"})
		return
	}
	ct := file.Header.Get("Content-Type")

	key := storage.NewKey(actor.ID, file.Filename)
	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read failed"})
		return
	}
	defer src.Close()
	size, err := blobs.Put(key, src)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}

	doc := models.Document{
		ProfileID:   profile.ID,
		UserID:      actor.ID,
		DocType:     docType,
		FileName:    file.Filename,
		StorePath:   key,
		Size:        size,
		ContentType: ct,
	}
	// review thumbnail for images; anything not decodable just has no preview
	if strings.HasPrefix(ct, "image/") {
		if previewKey, err := blobs.Preview(key); err == nil {
			doc.PreviewPath = previewKey
		}
	}
	if err := createDocument(actor, &doc); err != nil {
		// keep blob and metadata consistent when the row cannot be written
		_ = blobs.Remove(key)
		if doc.PreviewPath != "" {
			_ = blobs.Remove(doc.PreviewPath)
		}
		respondStoreError(c, err, false)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": doc.ID, "store_path": doc.StorePath, "size": doc.Size})
}

func listDocumentsHandler(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	docs, err := listDocuments(actor, actor.ID)
	if err != nil {
		respondStoreError(c, err, true)
		return
	}
	c.JSON(http.StatusOK, docs)
}

func getDocumentHandler(c *gin.Context) {
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
	doc, err := getDocument(actor, uint(id))
	if err != nil {
		respondStoreError(c, err, true)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// documentURLHandler mints a short-lived signed URL for the blob behind a
// document the actor may read.
func documentURLHandler(c *gin.Context) {
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
	url, err := signedDocumentURL(actor, uint(id), 15*time.Minute)
	if err != nil {
		respondStoreError(c, err, true)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url, "expires_in": int((15 * time.Minute).Seconds())})
}

// serveFileHandler serves a blob for a valid signed URL. Authorization
// happened when the URL was minted; the signature is the capability.
func serveFileHandler(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	if err := blobs.Verify(key, c.Query("exp"), c.Query("sig")); err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "bad or expired signature"})
		return
	}
	rc, err := blobs.Get(key)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	defer rc.Close()
	c.DataFromReader(http.StatusOK, -1, "application/octet-stream", rc, nil)
}
