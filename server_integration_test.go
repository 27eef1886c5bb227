package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"regis/pkg/cluster"

	"github.com/gin-gonic/gin"
)

// helper to perform requests with auth token
func performRequest(r http.Handler, method, path string, body io.Reader, token string, contentType string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func setupTestServer(t *testing.T) *gin.Engine {
	// integration tests are opt-in. Set DB_DSN_TEST=1 and DB_DSN to run them.
	if os.Getenv("DB_DSN_TEST") != "1" {
		t.Skip("integration tests are disabled; set DB_DSN_TEST=1 to enable")
	}
	gin.SetMode(gin.TestMode)
	jwtSecret = []byte("test-secret")
	_ = os.Setenv("ADMIN_PASSWORD", "admin123")
	tmp := t.TempDir()
	_ = os.Setenv("UPLOAD_BASE", tmp)
	initDB()
	initBlobStore()
	clusters = cluster.New("http://127.0.0.1:1") // unreachable, exercises the fallback
	registerValidators()
	r := gin.Default()
	setupRoutes(r)
	return r
}

func mustJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("bad json body %q: %v", rec.Body.String(), err)
	}
	return out
}

func registerAndLogin(t *testing.T, r http.Handler, username, password string) (token string, userID uint) {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	resp := performRequest(r, http.MethodPost, "/register", bytes.NewReader(body), "", "application/json")
	if resp.Code != 200 {
		t.Fatalf("register %s failed status=%d body=%s", username, resp.Code, resp.Body.String())
	}
	resp = performRequest(r, http.MethodPost, "/login", bytes.NewReader(body), "", "application/json")
	if resp.Code != 200 {
		t.Fatalf("login %s failed status=%d body=%s", username, resp.Code, resp.Body.String())
	}
	token, _ = mustJSON(t, resp)["token"].(string)
	if token == "" {
		t.Fatalf("empty token for %s", username)
	}
	me := performRequest(r, http.MethodGet, "/me", nil, token, "")
	if me.Code != 200 {
		t.Fatalf("me failed status=%d body=%s", me.Code, me.Body.String())
	}
	id, _ := mustJSON(t, me)["id"].(float64)
	return token, uint(id)
}

func adminLogin(t *testing.T, r http.Handler) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"username": "admin", "password": "admin123"})
	resp := performRequest(r, http.MethodPost, "/login", bytes.NewReader(body), "", "application/json")
	if resp.Code != 200 {
		t.Fatalf("admin login failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	token, _ := mustJSON(t, resp)["token"].(string)
	return token
}

func profileBody(gpa float64) []byte {
	b, _ := json.Marshal(map[string]any{
		"first_name":      "Maria",
		"last_name":       "Santos",
		"enrollment_year": time.Now().Year(),
		"school_name":     "Inabanga High School",
		"school_type":     "public",
		"municipality":    "Inabanga",
		"program":         "BS Information Technology",
		"gpa":             gpa,
		"contact_number":  "09171234567",
		"home_address":    "Poblacion, Inabanga, Bohol",
		"sex":             "female",
	})
	return b
}

func TestEnrollmentLifecycle(t *testing.T) {
	r := setupTestServer(t)
	suffix := time.Now().UnixNano()

	s1Token, s1ID := registerAndLogin(t, r, fmt.Sprintf("s1-%d", suffix), "pass123")
	adminToken := adminLogin(t, r)

	// GPA bounds are rejected before persistence
	for _, gpa := range []float64{-1, 101} {
		resp := performRequest(r, http.MethodPost, "/profile", bytes.NewReader(profileBody(gpa)), s1Token, "application/json")
		if resp.Code != 400 {
			t.Fatalf("gpa %v: expected 400 got %d body=%s", gpa, resp.Code, resp.Body.String())
		}
	}

	// profile creation defaults to pending
	resp := performRequest(r, http.MethodPost, "/profile", bytes.NewReader(profileBody(89.1)), s1Token, "application/json")
	if resp.Code != 200 {
		t.Fatalf("create profile failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	if status := mustJSON(t, resp)["status"]; status != "pending" {
		t.Fatalf("expected pending got %v", status)
	}

	// boundary GPAs are accepted on update
	for _, gpa := range []float64{0, 100} {
		resp := performRequest(r, http.MethodPut, "/profile", bytes.NewReader(profileBody(gpa)), s1Token, "application/json")
		if resp.Code != 200 {
			t.Fatalf("gpa %v: expected 200 got %d body=%s", gpa, resp.Code, resp.Body.String())
		}
	}

	// admin approves; repeating the call is a no-op that still advances updated_at
	statusBody, _ := json.Marshal(map[string]string{"status": "approved"})
	first := performRequest(r, http.MethodPatch, fmt.Sprintf("/admin/profiles/%d/status", s1ID), bytes.NewReader(statusBody), adminToken, "application/json")
	if first.Code != 200 {
		t.Fatalf("set status failed status=%d body=%s", first.Code, first.Body.String())
	}
	time.Sleep(20 * time.Millisecond)
	second := performRequest(r, http.MethodPatch, fmt.Sprintf("/admin/profiles/%d/status", s1ID), bytes.NewReader(statusBody), adminToken, "application/json")
	if second.Code != 200 {
		t.Fatalf("repeat set status failed status=%d body=%s", second.Code, second.Body.String())
	}
	t1, _ := time.Parse(time.RFC3339Nano, mustJSON(t, first)["updated_at"].(string))
	t2, _ := time.Parse(time.RFC3339Nano, mustJSON(t, second)["updated_at"].(string))
	if !t2.After(t1) {
		t.Fatalf("updated_at did not advance: %v then %v", t1, t2)
	}

	// student observes the new status on next read, no push involved
	resp = performRequest(r, http.MethodGet, "/profile", nil, s1Token, "")
	if resp.Code != 200 {
		t.Fatalf("read own profile failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	if status := mustJSON(t, resp)["Status"]; status != "approved" {
		t.Fatalf("expected approved got %v", status)
	}

	// a student cannot set status, even their own
	resp = performRequest(r, http.MethodPatch, fmt.Sprintf("/admin/profiles/%d/status", s1ID), bytes.NewReader(statusBody), s1Token, "application/json")
	if resp.Code != 403 {
		t.Fatalf("expected 403 for student status change got %d", resp.Code)
	}
}

func TestStudentIsolationAndEscalation(t *testing.T) {
	r := setupTestServer(t)
	suffix := time.Now().UnixNano()

	s1Token, s1ID := registerAndLogin(t, r, fmt.Sprintf("iso1-%d", suffix), "pass123")
	s2Token, s2ID := registerAndLogin(t, r, fmt.Sprintf("iso2-%d", suffix), "pass123")

	resp := performRequest(r, http.MethodPost, "/profile", bytes.NewReader(profileBody(75)), s1Token, "application/json")
	if resp.Code != 200 {
		t.Fatalf("create profile failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	// another student's profile is indistinguishable from a missing one
	resp = performRequest(r, http.MethodGet, fmt.Sprintf("/admin/profiles/%d", s1ID), nil, s2Token, "")
	if resp.Code != 404 {
		t.Fatalf("expected 404 for cross-student read got %d body=%s", resp.Code, resp.Body.String())
	}

	// self-escalation denied, no row created
	grant, _ := json.Marshal(map[string]string{"role": "admin"})
	resp = performRequest(r, http.MethodPost, fmt.Sprintf("/admin/users/%d/roles", s2ID), bytes.NewReader(grant), s2Token, "application/json")
	if resp.Code != 403 {
		t.Fatalf("expected 403 for self-escalation got %d body=%s", resp.Code, resp.Body.String())
	}
	roles := performRequest(r, http.MethodGet, "/roles", nil, s2Token, "")
	if strings.Contains(roles.Body.String(), `"admin"`) {
		t.Fatalf("admin role appeared after denied grant: %s", roles.Body.String())
	}

	// exactly one student assignment exists right after provisioning
	var assignments []map[string]any
	if err := json.Unmarshal(roles.Body.Bytes(), &assignments); err != nil {
		t.Fatalf("bad roles body: %v", err)
	}
	if len(assignments) != 1 || assignments[0]["Role"] != "student" {
		t.Fatalf("expected exactly one student assignment, got %s", roles.Body.String())
	}
}

func TestDocumentOwnershipAndDeletion(t *testing.T) {
	r := setupTestServer(t)
	suffix := time.Now().UnixNano()

	s1Token, s1ID := registerAndLogin(t, r, fmt.Sprintf("doc1-%d", suffix), "pass123")
	s2Token, _ := registerAndLogin(t, r, fmt.Sprintf("doc2-%d", suffix), "pass123")
	adminToken := adminLogin(t, r)

	resp := performRequest(r, http.MethodPost, "/profile", bytes.NewReader(profileBody(80)), s1Token, "application/json")
	if resp.Code != 200 {
		t.Fatalf("create profile failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	upload := func() (docID float64, storePath string) {
		buf := &bytes.Buffer{}
		mw := multipart.NewWriter(buf)
		_ = mw.WriteField("doc_type", "form137")
		w, _ := mw.CreateFormFile("file", "form137.pdf")
		_, _ = w.Write([]byte("FORM 137 CONTENT"))
		_ = mw.Close()
		resp := performRequest(r, http.MethodPost, "/documents", buf, s1Token, mw.FormDataContentType())
		if resp.Code != 200 {
			t.Fatalf("upload failed status=%d body=%s", resp.Code, resp.Body.String())
		}
		body := mustJSON(t, resp)
		return body["id"].(float64), body["store_path"].(string)
	}

	docID, storePath := upload()
	if !strings.HasPrefix(storePath, fmt.Sprintf("%d/", s1ID)) {
		t.Fatalf("store path %q does not start with owner id %d", storePath, s1ID)
	}

	// owner and admin can read the metadata; another student gets not-found
	for _, tc := range []struct {
		token string
		want  int
	}{{s1Token, 200}, {adminToken, 200}, {s2Token, 404}} {
		resp := performRequest(r, http.MethodGet, fmt.Sprintf("/documents/%.0f", docID), nil, tc.token, "")
		if resp.Code != tc.want {
			t.Fatalf("document read expected %d got %d body=%s", tc.want, resp.Code, resp.Body.String())
		}
	}

	// signed URL round-trip
	resp = performRequest(r, http.MethodGet, fmt.Sprintf("/documents/%.0f/url", docID), nil, s1Token, "")
	if resp.Code != 200 {
		t.Fatalf("signed url failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	signed, _ := mustJSON(t, resp)["url"].(string)
	resp = performRequest(r, http.MethodGet, signed, nil, "", "")
	if resp.Code != 200 || resp.Body.String() != "FORM 137 CONTENT" {
		t.Fatalf("signed download failed status=%d body=%q", resp.Code, resp.Body.String())
	}

	// students cannot delete, not even their own upload
	resp = performRequest(r, http.MethodDelete, fmt.Sprintf("/admin/documents/%.0f", docID), nil, s1Token, "")
	if resp.Code != 403 {
		t.Fatalf("expected 403 for student delete got %d", resp.Code)
	}

	// admin delete succeeds even when the blob cannot be removed: metadata
	// wins, the orphan is reported as a warning
	full := filepath.Join(os.Getenv("UPLOAD_BASE"), filepath.FromSlash(storePath))
	if err := os.Remove(full); err != nil {
		t.Fatalf("prep: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(full, "stuck"), 0o755); err != nil {
		t.Fatalf("prep: %v", err)
	}
	resp = performRequest(r, http.MethodDelete, fmt.Sprintf("/admin/documents/%.0f", docID), nil, adminToken, "")
	if resp.Code != 200 {
		t.Fatalf("admin delete failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	body := mustJSON(t, resp)
	if _, ok := body["blob_warning"]; !ok {
		t.Fatalf("expected blob_warning in %s", resp.Body.String())
	}
	resp = performRequest(r, http.MethodGet, fmt.Sprintf("/documents/%.0f", docID), nil, adminToken, "")
	if resp.Code != 404 {
		t.Fatalf("metadata row should be gone, got %d", resp.Code)
	}

	// clean delete path has no warning
	docID2, _ := upload()
	resp = performRequest(r, http.MethodDelete, fmt.Sprintf("/admin/documents/%.0f", docID2), nil, adminToken, "")
	if resp.Code != 200 {
		t.Fatalf("admin delete failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	if _, ok := mustJSON(t, resp)["blob_warning"]; ok {
		t.Fatalf("unexpected warning: %s", resp.Body.String())
	}
}

func TestAnalyticsFallback(t *testing.T) {
	r := setupTestServer(t)
	suffix := time.Now().UnixNano()

	s1Token, _ := registerAndLogin(t, r, fmt.Sprintf("an1-%d", suffix), "pass123")
	adminToken := adminLogin(t, r)

	resp := performRequest(r, http.MethodPost, "/profile", bytes.NewReader(profileBody(90)), s1Token, "application/json")
	if resp.Code != 200 {
		t.Fatalf("create profile failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	// the cluster service is unreachable in tests, so the response is degraded
	resp = performRequest(r, http.MethodGet, "/admin/analytics/schools", nil, adminToken, "")
	if resp.Code != 200 {
		t.Fatalf("analytics failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	body := mustJSON(t, resp)
	if degraded, _ := body["degraded"].(bool); !degraded {
		t.Fatalf("expected degraded analytics: %s", resp.Body.String())
	}

	// students cannot see aggregate data
	resp = performRequest(r, http.MethodGet, "/admin/analytics/schools", nil, s1Token, "")
	if resp.Code != 404 {
		t.Fatalf("expected 404 for student analytics got %d", resp.Code)
	}

	resp = performRequest(r, http.MethodGet, "/admin/analytics/municipalities", nil, adminToken, "")
	if resp.Code != 200 {
		t.Fatalf("municipality stats failed status=%d body=%s", resp.Code, resp.Body.String())
	}
}
