package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"wastemap-api/config"
	"wastemap-api/handlers"
	"wastemap-api/middleware"
	"wastemap-api/models"
	"wastemap-api/routes"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestServer wires a fresh in-memory database into the global config and
// returns a router with all routes registered.
func setupTestServer(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&models.User{}, &models.Pickup{}, &models.PickupStatusHistory{}); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	config.DB = db
	handlers.InitLifecycle()

	r := gin.New()
	routes.SetupRoutes(r)
	return r
}

func createUserWithToken(t *testing.T, role models.UserRole) (*models.User, string) {
	t.Helper()
	hash, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	user := models.User{
		Name:         fmt.Sprintf("Test %s", role),
		Email:        fmt.Sprintf("%s-%d@wastemap.test", role, time.Now().UnixNano()),
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := config.DB.Create(&user).Error; err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	token, err := middleware.GenerateToken(&user)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	return &user, token
}

func doRequest(t *testing.T, r *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("Failed to decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func pickupPayload() map[string]interface{} {
	return map[string]interface{}{
		"address": map[string]interface{}{
			"street":   "12 Riverside Drive",
			"city":     "Nairobi",
			"state":    "Nairobi",
			"zip_code": "00100",
		},
		"waste_type":     "plastic",
		"quantity":       "small",
		"scheduled_date": time.Now().Add(48 * time.Hour).Format(time.RFC3339),
	}
}

func createPickupViaAPI(t *testing.T, r *gin.Engine, token string) uint {
	t.Helper()
	w := doRequest(t, r, "POST", "/api/pickups", token, pickupPayload())
	if w.Code != http.StatusCreated {
		t.Fatalf("create pickup returned %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	pickup := body["pickup"].(map[string]interface{})
	return uint(pickup["id"].(float64))
}

func TestRegisterAndLogin(t *testing.T) {
	r := setupTestServer(t)

	register := map[string]interface{}{
		"name":     "Alice",
		"email":    "alice@wastemap.test",
		"password": "secret123",
		"role":     "user",
	}
	w := doRequest(t, r, "POST", "/api/auth/register", "", register)
	if w.Code != http.StatusCreated {
		t.Fatalf("register returned %d: %s", w.Code, w.Body.String())
	}
	if decodeBody(t, w)["token"] == nil {
		t.Error("register response missing token")
	}

	// Duplicate email
	w = doRequest(t, r, "POST", "/api/auth/register", "", register)
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate register returned %d, want 409", w.Code)
	}

	// Admins cannot self-register
	register["email"] = "mallory@wastemap.test"
	register["role"] = "admin"
	w = doRequest(t, r, "POST", "/api/auth/register", "", register)
	if w.Code != http.StatusBadRequest {
		t.Errorf("admin register returned %d, want 400", w.Code)
	}

	// Login and use the token
	w = doRequest(t, r, "POST", "/api/auth/login", "", map[string]interface{}{
		"email": "alice@wastemap.test", "password": "secret123",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login returned %d: %s", w.Code, w.Body.String())
	}
	token, _ := decodeBody(t, w)["token"].(string)
	if token == "" {
		t.Fatal("login response missing token")
	}

	w = doRequest(t, r, "GET", "/api/users/profile", token, nil)
	if w.Code != http.StatusOK {
		t.Errorf("profile with fresh token returned %d", w.Code)
	}

	// Wrong password
	w = doRequest(t, r, "POST", "/api/auth/login", "", map[string]interface{}{
		"email": "alice@wastemap.test", "password": "wrong",
	})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad login returned %d, want 401", w.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	r := setupTestServer(t)

	if w := doRequest(t, r, "GET", "/api/pickups", "", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("no token returned %d, want 401", w.Code)
	}
	if w := doRequest(t, r, "GET", "/api/pickups", "not.a.token", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("garbage token returned %d, want 401", w.Code)
	}
}

// TestPickupLifecycleScenario follows the end-to-end scenario: create a
// plastic/small pickup, watch a non-assignee collector get rejected, cancel as
// owner, and verify the pickup is then terminal.
func TestPickupLifecycleScenario(t *testing.T) {
	r := setupTestServer(t)
	_, ownerToken := createUserWithToken(t, models.RoleUser)
	_, bystanderToken := createUserWithToken(t, models.RoleCollector)
	_, adminToken := createUserWithToken(t, models.RoleAdmin)

	w := doRequest(t, r, "POST", "/api/pickups", ownerToken, pickupPayload())
	if w.Code != http.StatusCreated {
		t.Fatalf("create returned %d: %s", w.Code, w.Body.String())
	}
	pickup := decodeBody(t, w)["pickup"].(map[string]interface{})
	if pickup["status"] != "pending" {
		t.Errorf("new pickup status = %v, want pending", pickup["status"])
	}
	id := uint(pickup["id"].(float64))
	path := fmt.Sprintf("/api/pickups/%d", id)

	// A collector who never claimed it cannot advance it
	w = doRequest(t, r, "PUT", path+"/status", bystanderToken, map[string]interface{}{"status": "in-progress"})
	if w.Code != http.StatusForbidden {
		t.Errorf("non-assignee advance returned %d, want 403", w.Code)
	}

	// Owner cancels
	w = doRequest(t, r, "PUT", path+"/cancel", ownerToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("cancel returned %d: %s", w.Code, w.Body.String())
	}

	// Any further advance fails, even for an admin
	w = doRequest(t, r, "PUT", path+"/status", adminToken, map[string]interface{}{"status": "in-progress"})
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("advance after cancel returned %d, want 422", w.Code)
	}

	w = doRequest(t, r, "GET", path, ownerToken, nil)
	detail := decodeBody(t, w)["pickup"].(map[string]interface{})
	if detail["status"] != "cancelled" {
		t.Errorf("final status = %v, want cancelled", detail["status"])
	}
}

func TestCollectorClaimAndComplete(t *testing.T) {
	r := setupTestServer(t)
	_, ownerToken := createUserWithToken(t, models.RoleUser)
	_, collectorToken := createUserWithToken(t, models.RoleCollector)

	id := createPickupViaAPI(t, r, ownerToken)

	// Plain users cannot reach collector routes at all
	w := doRequest(t, r, "PUT", fmt.Sprintf("/api/collector/pickups/%d/claim", id), ownerToken, nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("claim by plain user returned %d, want 403", w.Code)
	}

	// The pickup shows up as available, then the collector claims it
	w = doRequest(t, r, "GET", "/api/collector/pickups/available", collectorToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("available returned %d", w.Code)
	}
	if count := decodeBody(t, w)["count"].(float64); count != 1 {
		t.Errorf("available count = %v, want 1", count)
	}

	w = doRequest(t, r, "PUT", fmt.Sprintf("/api/collector/pickups/%d/claim", id), collectorToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("claim returned %d: %s", w.Code, w.Body.String())
	}

	// Advance to completion with an actual duration
	path := fmt.Sprintf("/api/pickups/%d/status", id)
	w = doRequest(t, r, "PUT", path, collectorToken, map[string]interface{}{"status": "in-progress"})
	if w.Code != http.StatusOK {
		t.Fatalf("advance to in-progress returned %d: %s", w.Code, w.Body.String())
	}
	w = doRequest(t, r, "PUT", path, collectorToken, map[string]interface{}{
		"status": "completed", "actual_duration_minutes": 35,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("advance to completed returned %d: %s", w.Code, w.Body.String())
	}

	w = doRequest(t, r, "GET", fmt.Sprintf("/api/pickups/%d", id), ownerToken, nil)
	detail := decodeBody(t, w)["pickup"].(map[string]interface{})
	if detail["status"] != "completed" {
		t.Errorf("status = %v, want completed", detail["status"])
	}
	if detail["completed_date"] == nil {
		t.Error("completed_date missing after completion")
	}

	// Rate once, then conflict
	ratePath := fmt.Sprintf("/api/pickups/%d/rate", id)
	w = doRequest(t, r, "PUT", ratePath, ownerToken, map[string]interface{}{"score": 5, "comment": "spotless"})
	if w.Code != http.StatusOK {
		t.Fatalf("rate returned %d: %s", w.Code, w.Body.String())
	}
	w = doRequest(t, r, "PUT", ratePath, ownerToken, map[string]interface{}{"score": 1})
	if w.Code != http.StatusConflict {
		t.Errorf("second rate returned %d, want 409", w.Code)
	}
}

func TestAdminAssignRejectsNonCollector(t *testing.T) {
	r := setupTestServer(t)
	_, ownerToken := createUserWithToken(t, models.RoleUser)
	plainUser, _ := createUserWithToken(t, models.RoleUser)
	_, adminToken := createUserWithToken(t, models.RoleAdmin)

	id := createPickupViaAPI(t, r, ownerToken)

	w := doRequest(t, r, "PUT", fmt.Sprintf("/api/admin/pickups/%d/assign", id), adminToken,
		map[string]interface{}{"collector_id": plainUser.ID})
	if w.Code != http.StatusForbidden {
		t.Errorf("assign non-collector returned %d, want 403", w.Code)
	}

	w = doRequest(t, r, "GET", fmt.Sprintf("/api/pickups/%d", id), ownerToken, nil)
	detail := decodeBody(t, w)["pickup"].(map[string]interface{})
	if detail["status"] != "pending" {
		t.Errorf("status after rejected assign = %v, want pending", detail["status"])
	}
}

func TestAdminOverrideEndpoint(t *testing.T) {
	r := setupTestServer(t)
	_, ownerToken := createUserWithToken(t, models.RoleUser)
	_, collectorToken := createUserWithToken(t, models.RoleCollector)
	_, adminToken := createUserWithToken(t, models.RoleAdmin)

	id := createPickupViaAPI(t, r, ownerToken)
	path := fmt.Sprintf("/api/admin/pickups/%d/status", id)

	// The admin status route is role-gated
	w := doRequest(t, r, "PUT", path, collectorToken, map[string]interface{}{"status": "completed"})
	if w.Code != http.StatusForbidden {
		t.Errorf("override by collector returned %d, want 403", w.Code)
	}

	w = doRequest(t, r, "PUT", path, adminToken, map[string]interface{}{
		"status": "completed", "reason": "collected during audit",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("override returned %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["new_status"] != "completed" || body["previous_status"] != "pending" {
		t.Errorf("override response = %v", body)
	}
}

func TestListScopeAndPagination(t *testing.T) {
	r := setupTestServer(t)
	_, aliceToken := createUserWithToken(t, models.RoleUser)
	_, bobToken := createUserWithToken(t, models.RoleUser)
	_, collectorToken := createUserWithToken(t, models.RoleCollector)

	for i := 0; i < 3; i++ {
		createPickupViaAPI(t, r, aliceToken)
	}
	for i := 0; i < 2; i++ {
		createPickupViaAPI(t, r, bobToken)
	}

	// Plain users only see their own pickups
	w := doRequest(t, r, "GET", "/api/pickups", aliceToken, nil)
	body := decodeBody(t, w)
	if total := body["total"].(float64); total != 3 {
		t.Errorf("alice total = %v, want 3", total)
	}

	// Collectors see everything
	w = doRequest(t, r, "GET", "/api/pickups", collectorToken, nil)
	body = decodeBody(t, w)
	if total := body["total"].(float64); total != 5 {
		t.Errorf("collector total = %v, want 5", total)
	}

	// Pagination math
	w = doRequest(t, r, "GET", "/api/pickups?page=2&limit=2", collectorToken, nil)
	body = decodeBody(t, w)
	if body["totalPages"].(float64) != 3 || body["currentPage"].(float64) != 2 {
		t.Errorf("pagination = totalPages %v currentPage %v, want 3/2", body["totalPages"], body["currentPage"])
	}
	if n := len(body["pickups"].([]interface{})); n != 2 {
		t.Errorf("page 2 size = %d, want 2", n)
	}

	// Status filter
	w = doRequest(t, r, "GET", "/api/pickups?status=completed", collectorToken, nil)
	body = decodeBody(t, w)
	if total := body["total"].(float64); total != 0 {
		t.Errorf("completed total = %v, want 0", total)
	}
}

func TestAdminUsersAndStats(t *testing.T) {
	r := setupTestServer(t)
	_, ownerToken := createUserWithToken(t, models.RoleUser)
	target, _ := createUserWithToken(t, models.RoleUser)
	_, adminToken := createUserWithToken(t, models.RoleAdmin)

	createPickupViaAPI(t, r, ownerToken)

	// Role filter on the user list
	w := doRequest(t, r, "GET", "/api/admin/users?role=user", adminToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("admin users returned %d", w.Code)
	}
	if count := decodeBody(t, w)["count"].(float64); count != 2 {
		t.Errorf("user count = %v, want 2", count)
	}

	// Promote a user to collector
	w = doRequest(t, r, "PUT", fmt.Sprintf("/api/admin/users/%d/role", target.ID), adminToken,
		map[string]interface{}{"role": "collector"})
	if w.Code != http.StatusOK {
		t.Fatalf("role update returned %d: %s", w.Code, w.Body.String())
	}
	w = doRequest(t, r, "PUT", fmt.Sprintf("/api/admin/users/%d/role", target.ID), adminToken,
		map[string]interface{}{"role": "overlord"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown role update returned %d, want 400", w.Code)
	}

	w = doRequest(t, r, "GET", "/api/admin/stats", adminToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("stats returned %d", w.Code)
	}
	stats := decodeBody(t, w)
	if stats["total_pickups"].(float64) != 1 || stats["total_collectors"].(float64) != 1 {
		t.Errorf("stats = %v", stats)
	}

	// Admin routes are role-gated
	w = doRequest(t, r, "GET", "/api/admin/stats", ownerToken, nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("stats as plain user returned %d, want 403", w.Code)
	}
}
