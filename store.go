package main

import (
	"errors"
	"fmt"
	"log"
	"time"

	"regis/models"
	"regis/pkg/authz"
	"regis/pkg/storage"

	"gorm.io/gorm"
)

// store.go is the only place profile, role-assignment and document rows are
// touched on behalf of a client. Every function takes the acting identity
// and consults the authz rule table before the query runs, so no handler
// can slip past a rule.

// errAlreadyExists marks unique-constraint conflicts so handlers can answer 409.
var errAlreadyExists = errors.New("already exists")

// actorFor resolves the acting identity's roles with a plain lookup. This
// is the trusted role-check path: it is itself ungated, otherwise checking
// a rule would recurse into the rule it is checking.
func actorFor(userID uint) (authz.Actor, error) {
	var assignments []models.RoleAssignment
	if err := db.Where("user_id = ?", userID).Find(&assignments).Error; err != nil {
		return authz.Actor{}, err
	}
	roles := make([]string, 0, len(assignments))
	for _, ra := range assignments {
		roles = append(roles, ra.Role)
	}
	return authz.Actor{ID: userID, Roles: roles}, nil
}

// --- profiles ---

func createProfile(actor authz.Actor, p *models.StudentProfile) error {
	if err := authz.Decide(actor, authz.ResourceProfile, authz.OpCreate, p.UserID); err != nil {
		return err
	}
	if err := db.Create(p).Error; err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("profile %w", errAlreadyExists)
		}
		return err
	}
	return nil
}

func getProfile(actor authz.Actor, ownerID uint) (*models.StudentProfile, error) {
	if err := authz.Decide(actor, authz.ResourceProfile, authz.OpRead, ownerID); err != nil {
		return nil, err
	}
	var p models.StudentProfile
	if err := db.Where("user_id = ?", ownerID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// listProfiles is the registrar's view; owner 0 matches no actor id so only
// the admin override passes.
func listProfiles(actor authz.Actor, status string) ([]models.StudentProfile, error) {
	if err := authz.Decide(actor, authz.ResourceProfile, authz.OpRead, 0); err != nil {
		return nil, err
	}
	q := db.Model(&models.StudentProfile{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []models.StudentProfile
	if err := q.Order("id desc").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// updateProfile applies owner edits and saves through the model hooks, so
// GPA validation runs and UpdatedAt is stamped by the store. The status
// field is deliberately not among the editable fields.
func updateProfile(actor authz.Actor, ownerID uint, apply func(*models.StudentProfile)) (*models.StudentProfile, error) {
	if err := authz.Decide(actor, authz.ResourceProfile, authz.OpUpdate, ownerID); err != nil {
		return nil, err
	}
	var p models.StudentProfile
	if err := db.Where("user_id = ?", ownerID).First(&p).Error; err != nil {
		return nil, err
	}
	status := p.Status
	apply(&p)
	p.Status = status // owner edits can never touch the lifecycle
	if err := db.Save(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// setStatus is the dedicated lifecycle operation: admin only, any state to
// any state, idempotent. A no-op transition is still a write, so UpdatedAt
// advances either way.
func setStatus(actor authz.Actor, ownerID uint, status string) (*models.StudentProfile, error) {
	if err := authz.Decide(actor, authz.ResourceProfile, authz.OpSetStatus, ownerID); err != nil {
		return nil, err
	}
	if !models.ValidStatus(status) {
		return nil, models.ErrBadStatus
	}
	var p models.StudentProfile
	if err := db.Where("user_id = ?", ownerID).First(&p).Error; err != nil {
		return nil, err
	}
	now := time.Now()
	if err := db.Model(&p).Updates(map[string]any{"status": status, "updated_at": now}).Error; err != nil {
		return nil, err
	}
	p.Status = status
	p.UpdatedAt = now
	return &p, nil
}

// deleteProfile removes the profile row and its document metadata, then
// clears the blobs best-effort. Metadata deletion is the source of truth; a
// blob that cannot be removed is logged and left orphaned.
func deleteProfile(actor authz.Actor, ownerID uint) error {
	if err := authz.Decide(actor, authz.ResourceProfile, authz.OpDelete, ownerID); err != nil {
		return err
	}
	var p models.StudentProfile
	if err := db.Where("user_id = ?", ownerID).First(&p).Error; err != nil {
		return err
	}
	var docs []models.Document
	db.Where("profile_id = ?", p.ID).Find(&docs)
	if err := db.Where("profile_id = ?", p.ID).Delete(&models.Document{}).Error; err != nil {
		return err
	}
	if err := db.Unscoped().Delete(&p).Error; err != nil {
		return err
	}
	for _, d := range docs {
		removeBlobAndPreview(d)
	}
	return nil
}

// --- role assignments ---

func listRoleAssignments(actor authz.Actor, targetID uint) ([]models.RoleAssignment, error) {
	if err := authz.Decide(actor, authz.ResourceRoleAssignment, authz.OpRead, targetID); err != nil {
		return nil, err
	}
	var out []models.RoleAssignment
	if err := db.Where("user_id = ?", targetID).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func grantRole(actor authz.Actor, targetID uint, role string) error {
	if err := authz.Decide(actor, authz.ResourceRoleAssignment, authz.OpCreate, targetID); err != nil {
		return err
	}
	var master models.Role
	if err := db.Where("name = ?", role).First(&master).Error; err != nil {
		return fmt.Errorf("unknown role %q", role)
	}
	var user models.User
	if err := db.First(&user, targetID).Error; err != nil {
		return err
	}
	if err := db.Create(&models.RoleAssignment{UserID: targetID, Role: role}).Error; err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("role %q %w", role, errAlreadyExists)
		}
		return err
	}
	return nil
}

func revokeRole(actor authz.Actor, targetID uint, role string) error {
	if err := authz.Decide(actor, authz.ResourceRoleAssignment, authz.OpDelete, targetID); err != nil {
		return err
	}
	res := db.Where("user_id = ? AND role = ?", targetID, role).Delete(&models.RoleAssignment{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// --- documents ---

func createDocument(actor authz.Actor, doc *models.Document) error {
	if err := authz.Decide(actor, authz.ResourceDocument, authz.OpCreate, doc.UserID); err != nil {
		return err
	}
	owner, err := authz.OwnerOfKey(doc.StorePath)
	if err != nil {
		return err
	}
	if err := authz.Decide(actor, authz.ResourceBlob, authz.OpCreate, owner); err != nil {
		return err
	}
	return db.Create(doc).Error
}

func listDocuments(actor authz.Actor, ownerID uint) ([]models.Document, error) {
	if err := authz.Decide(actor, authz.ResourceDocument, authz.OpRead, ownerID); err != nil {
		return nil, err
	}
	var out []models.Document
	if err := db.Where("user_id = ?", ownerID).Order("id desc").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func getDocument(actor authz.Actor, docID uint) (*models.Document, error) {
	var d models.Document
	if err := db.First(&d, docID).Error; err != nil {
		return nil, err
	}
	if err := authz.Decide(actor, authz.ResourceDocument, authz.OpRead, d.UserID); err != nil {
		return nil, err
	}
	return &d, nil
}

// deleteDocument removes the metadata row first; its success decides the
// operation. A failing blob removal comes back as a warning, never as an
// error, and is not retried.
func deleteDocument(actor authz.Actor, docID uint) (warning string, err error) {
	var d models.Document
	if err := db.First(&d, docID).Error; err != nil {
		return "", err
	}
	if err := authz.Decide(actor, authz.ResourceDocument, authz.OpDelete, d.UserID); err != nil {
		return "", err
	}
	if err := db.Delete(&d).Error; err != nil {
		return "", err
	}
	if !removeBlobAndPreview(d) {
		warning = fmt.Sprintf("blob %s could not be removed; metadata deleted", d.StorePath)
	}
	return warning, nil
}

func signedDocumentURL(actor authz.Actor, docID uint, ttl time.Duration) (string, error) {
	d, err := getDocument(actor, docID)
	if err != nil {
		return "", err
	}
	owner, err := authz.OwnerOfKey(d.StorePath)
	if err != nil {
		return "", err
	}
	if err := authz.Decide(actor, authz.ResourceBlob, authz.OpRead, owner); err != nil {
		return "", err
	}
	return blobs.SignedURL(d.StorePath, ttl)
}

// removeBlobAndPreview clears a document's blob and preview, logging any
// failure. Returns false when the main blob survived.
func removeBlobAndPreview(d models.Document) bool {
	ok := true
	if err := blobs.Remove(d.StorePath); err != nil && !errors.Is(err, storage.ErrNotFound) {
		log.Printf("warning: orphaned blob %s: %v", d.StorePath, err)
		ok = false
	}
	if d.PreviewPath != "" {
		if err := blobs.Remove(d.PreviewPath); err != nil && !errors.Is(err, storage.ErrNotFound) {
			log.Printf("warning: orphaned preview %s: %v", d.PreviewPath, err)
		}
	}
	return ok
}
