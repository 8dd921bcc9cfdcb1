package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/bitfantasy/nimo-flow/internal/flow/entity"
	"github.com/bitfantasy/nimo-flow/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	TestSchema = "test_flow"
	JWTSecret  = "nimo-flow-jwt-secret-key-2025"
)

// projectRoot returns the project root directory by looking for go.mod
func projectRoot() string {
	_, filename, _, _ := runtime.Caller(0)
	dir := filepath.Dir(filename)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// loadEnv loads .env from the project root
func loadEnv() {
	root := projectRoot()
	if root != "" {
		godotenv.Load(filepath.Join(root, ".env"))
	}
}

// SetupTestDB creates a test database connection using a dedicated test schema.
// Each test gets an isolated schema that is cleaned up after the test.
// Tests are skipped when no database is reachable.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	loadEnv()

	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "nimo")
	password := getEnv("DB_PASSWORD", "nimo123")
	dbname := getEnv("DB_NAME", "nimo_flow")

	baseDSN := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	// Create a unique test schema for isolation
	schemaName := fmt.Sprintf("%s_%d", TestSchema, time.Now().UnixNano()%1000000)

	// First: create schema using a temporary connection
	setupDB, err := gorm.Open(postgres.Open(baseDSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Skipf("Skipping: test database unreachable: %v", err)
	}
	if err := setupDB.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schemaName)).Error; err != nil {
		t.Skipf("Skipping: cannot create test schema: %v", err)
	}
	sqlSetup, _ := setupDB.DB()
	sqlSetup.Close()

	// Second: open connection with search_path in DSN so ALL pooled connections use test schema
	testDSN := fmt.Sprintf("%s search_path=%s", baseDSN, schemaName)
	db, err := gorm.Open(postgres.Open(testDSN), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	// Migrate test tables
	err = db.AutoMigrate(
		&entity.Process{},
		&entity.State{},
		&entity.Route{},
		&entity.Action{},
		&entity.Activity{},
		&entity.Target{},
		&entity.User{},
		&entity.Group{},
		&entity.GroupMember{},
		&entity.Request{},
		&entity.RequestData{},
		&entity.RequestNote{},
		&entity.RequestStakeholder{},
		&entity.RequestAction{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate test tables: %v", err)
	}

	// Cleanup on test completion
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
		// Reconnect to drop the schema
		cleanDB, cleanErr := gorm.Open(postgres.Open(baseDSN), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if cleanErr == nil {
			cleanDB.Exec(fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", schemaName))
			sqlClean, _ := cleanDB.DB()
			if sqlClean != nil {
				sqlClean.Close()
			}
		}
	})

	return db
}

// SetupRouter creates a gin test router
func SetupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())
	return r
}

// AuthGroup creates an API group with JWT auth middleware for testing
func AuthGroup(r *gin.Engine, path string) *gin.RouterGroup {
	return r.Group(path, middleware.JWTAuth(JWTSecret))
}

// GenerateTestToken creates a valid JWT token for testing
func GenerateTestToken(userID, name, email string, roles, permissions []string) string {
	if roles == nil {
		roles = []string{}
	}
	if permissions == nil {
		permissions = []string{}
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   userID,
		"uid":   userID,
		"name":  name,
		"email": email,
		"roles": roles,
		"perms": permissions,
		"iss":   "nimo-flow",
		"iat":   now.Unix(),
		"exp":   now.Add(24 * time.Hour).Unix(),
		"jti":   fmt.Sprintf("test-jti-%d", now.UnixNano()),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, _ := token.SignedString([]byte(JWTSecret))
	return tokenString
}

// TokenFor returns a token for a seeded user
func TokenFor(user *entity.User) string {
	return GenerateTestToken(user.ID, user.Name, user.Email, []string{"flow_admin"}, []string{"*"})
}

// DoRequest executes an HTTP request against the test router
func DoRequest(r *gin.Engine, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ParseResponse parses the JSON response body into a handler.Response-like map
func ParseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &result)
	return result
}

// SeedTestUser creates a test user in the database
func SeedTestUser(t *testing.T, db *gorm.DB, name, email string) *entity.User {
	t.Helper()
	id := uuid.New().String()
	user := &entity.User{
		ID:       id,
		Username: "user_" + id[:8],
		Name:     name,
		Email:    email,
		Status:   "active",
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to seed test user: %v", err)
	}
	return user
}

// SeedTestGroup creates a group and adds the given users as members
func SeedTestGroup(t *testing.T, db *gorm.DB, name string, members ...*entity.User) *entity.Group {
	t.Helper()
	group := &entity.Group{
		ID:     uuid.New().String(),
		Name:   name,
		Status: "active",
	}
	if err := db.Create(group).Error; err != nil {
		t.Fatalf("Failed to seed test group: %v", err)
	}
	for _, m := range members {
		if err := db.Create(&entity.GroupMember{GroupID: group.ID, UserID: m.ID}).Error; err != nil {
			t.Fatalf("Failed to seed group member: %v", err)
		}
	}
	return group
}

// WorkflowGraph is a fully wired approval workflow for tests:
//
//	start point --raise(staff)--> request for approve --approve(leaders)--> done
//	                                                  --deny(leaders)-----> denied
//	                                                  --reject(leaders)---> start point
//	start point --edit(staff)--> (stays in place)
type WorkflowGraph struct {
	Process *entity.Process

	Start    *entity.State
	Review   *entity.State
	Done     *entity.State
	Denied   *entity.State

	Staff       *entity.User
	Leader      *entity.User
	StaffGroup  *entity.Group
	LeaderGroup *entity.Group

	EditAction    *entity.Action
	RaiseAction   *entity.Action
	ApproveAction *entity.Action
	DenyAction    *entity.Action
	RejectAction  *entity.Action

	EditRoute    *entity.Route
	RaiseRoute   *entity.Route
	ApproveRoute *entity.Route
	DenyRoute    *entity.Route
	RejectRoute  *entity.Route
}

// SeedWorkflowGraph builds the standard approval workflow used across tests
func SeedWorkflowGraph(t *testing.T, db *gorm.DB) *WorkflowGraph {
	t.Helper()

	g := &WorkflowGraph{}
	g.Staff = SeedTestUser(t, db, "Staff One", "staff@test.com")
	g.Leader = SeedTestUser(t, db, "Leader One", "leader@test.com")
	g.StaffGroup = SeedTestGroup(t, db, "staff", g.Staff)
	g.LeaderGroup = SeedTestGroup(t, db, "leaders", g.Leader)

	staffTarget := seedTarget(t, db, "staff only", g.StaffGroup.ID)
	leaderTarget := seedTarget(t, db, "leaders only", g.LeaderGroup.ID)

	g.EditAction = seedAction(t, db, "edit request", entity.ActionTypeEdit, staffTarget)
	g.RaiseAction = seedAction(t, db, "raise request", entity.ActionTypeStart, staffTarget)
	g.ApproveAction = seedAction(t, db, "approve request", entity.ActionTypeApprove, leaderTarget)
	g.DenyAction = seedAction(t, db, "deny request", entity.ActionTypeDeny, leaderTarget)
	g.RejectAction = seedAction(t, db, "reject request", entity.ActionTypeReject, leaderTarget)

	g.Process = &entity.Process{
		ID:     uuid.New().String(),
		Name:   "leave approval " + uuid.New().String()[:8],
		Status: entity.ProcessStatusActive,
	}
	if err := db.Create(g.Process).Error; err != nil {
		t.Fatalf("Failed to seed process: %v", err)
	}

	g.Start = seedState(t, db, g.Process.ID, "start point", entity.StateTypeStart)
	g.Review = seedState(t, db, g.Process.ID, "request for approve", entity.StateTypeNormal)
	g.Done = seedState(t, db, g.Process.ID, "done", entity.StateTypeComplete)
	g.Denied = seedState(t, db, g.Process.ID, "denied", entity.StateTypeDenied)

	g.EditRoute = seedRoute(t, db, g.Process.ID, g.Start.ID, "", g.EditAction)
	g.RaiseRoute = seedRoute(t, db, g.Process.ID, g.Start.ID, g.Review.ID, g.RaiseAction)
	g.ApproveRoute = seedRoute(t, db, g.Process.ID, g.Review.ID, g.Done.ID, g.ApproveAction)
	g.DenyRoute = seedRoute(t, db, g.Process.ID, g.Review.ID, g.Denied.ID, g.DenyAction)
	g.RejectRoute = seedRoute(t, db, g.Process.ID, g.Review.ID, g.Start.ID, g.RejectAction)

	return g
}

// AttachActivityToRoute wires a side effect onto a route
func AttachActivityToRoute(t *testing.T, db *gorm.DB, route *entity.Route, activityType, name string) *entity.Activity {
	t.Helper()
	activity := seedActivity(t, db, name, activityType)
	if err := db.Model(route).Association("Activities").Append(activity); err != nil {
		t.Fatalf("Failed to attach activity to route: %v", err)
	}
	return activity
}

// AttachActivityToState wires an entry side effect onto a state
func AttachActivityToState(t *testing.T, db *gorm.DB, state *entity.State, activityType, name string) *entity.Activity {
	t.Helper()
	activity := seedActivity(t, db, name, activityType)
	if err := db.Model(state).Association("Activities").Append(activity); err != nil {
		t.Fatalf("Failed to attach activity to state: %v", err)
	}
	return activity
}

func seedTarget(t *testing.T, db *gorm.DB, name, groupID string) *entity.Target {
	t.Helper()
	target := &entity.Target{
		ID:         uuid.New().String(),
		Name:       name + " " + uuid.New().String()[:8],
		TargetType: entity.TargetTypeGroup,
		GroupID:    groupID,
	}
	if err := db.Create(target).Error; err != nil {
		t.Fatalf("Failed to seed target: %v", err)
	}
	return target
}

func seedAction(t *testing.T, db *gorm.DB, name, actionType string, targets ...*entity.Target) *entity.Action {
	t.Helper()
	action := &entity.Action{
		ID:         uuid.New().String(),
		Name:       name + " " + uuid.New().String()[:8],
		ActionType: actionType,
	}
	if err := db.Create(action).Error; err != nil {
		t.Fatalf("Failed to seed action: %v", err)
	}
	for _, target := range targets {
		if err := db.Model(action).Association("Targets").Append(target); err != nil {
			t.Fatalf("Failed to attach target to action: %v", err)
		}
	}
	return action
}

func seedActivity(t *testing.T, db *gorm.DB, name, activityType string) *entity.Activity {
	t.Helper()
	activity := &entity.Activity{
		ID:           uuid.New().String(),
		Name:         name + " " + uuid.New().String()[:8],
		ActivityType: activityType,
	}
	if err := db.Create(activity).Error; err != nil {
		t.Fatalf("Failed to seed activity: %v", err)
	}
	return activity
}

func seedState(t *testing.T, db *gorm.DB, processID, name, stateType string) *entity.State {
	t.Helper()
	state := &entity.State{
		ID:        uuid.New().String(),
		ProcessID: processID,
		Name:      name,
		StateType: stateType,
	}
	if err := db.Create(state).Error; err != nil {
		t.Fatalf("Failed to seed state: %v", err)
	}
	return state
}

func seedRoute(t *testing.T, db *gorm.DB, processID, currentStateID, nextStateID string, actions ...*entity.Action) *entity.Route {
	t.Helper()
	route := &entity.Route{
		ID:             uuid.New().String(),
		ProcessID:      processID,
		CurrentStateID: currentStateID,
		NextStateID:    nextStateID,
	}
	if err := db.Create(route).Error; err != nil {
		t.Fatalf("Failed to seed route: %v", err)
	}
	for _, action := range actions {
		if err := db.Model(route).Association("Actions").Append(action); err != nil {
			t.Fatalf("Failed to attach action to route: %v", err)
		}
	}
	return route
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
