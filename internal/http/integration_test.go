package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"schoolhub/server/internal/auth"
	"schoolhub/server/internal/config"
	"schoolhub/server/internal/db"
	"schoolhub/server/internal/model"
	"schoolhub/server/internal/repository"
)

func testConfig() config.Config {
	return config.Config{
		HTTPAddr:        ":0",
		JWTSecret:       "test-secret",
		JWTIssuer:       "test-issuer",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	}
}

type fixture struct {
	store    *repository.Store
	app      *httptest.Server
	schoolA  string
	schoolB  string
	adminA   string
	teacherA string
}

func newFixture(t *testing.T, pool *pgxpool.Pool) *fixture {
	t.Helper()
	store := repository.NewStore(pool)
	server := NewServer(testConfig(), store, nil)
	app := httptest.NewServer(server.Router())
	t.Cleanup(app.Close)

	ctx := context.Background()
	now := time.Now().UTC()
	f := &fixture{store: store, app: app, schoolA: uuid.NewString(), schoolB: uuid.NewString()}
	for _, id := range []string{f.schoolA, f.schoolB} {
		if err := store.CreateSchool(ctx, model.School{ID: id, Name: "School " + id[:8], CreatedAt: now, UpdatedAt: now}); err != nil {
			t.Fatalf("seed school: %v", err)
		}
	}
	f.adminA = f.seedUser(t, auth.RoleSchoolAdmin, f.schoolA)
	f.teacherA = f.seedUser(t, auth.RoleTeacher, f.schoolA)
	return f
}

func (f *fixture) seedUser(t *testing.T, role, schoolID string) string {
	t.Helper()
	now := time.Now().UTC()
	id := uuid.NewString()
	email := id[:8] + "@example.local"
	identity := model.AuthUser{ID: id, Email: email, PasswordHash: "x", CreatedAt: now, UpdatedAt: now}
	user := model.User{ID: id, Email: email, FirstName: "Seed", LastName: role, Role: role, SchoolID: &schoolID, CreatedAt: now, UpdatedAt: now}
	if err := f.store.CreateUserWithIdentity(context.Background(), identity, user); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return id
}

func (f *fixture) seedClass(t *testing.T, schoolID string, teacherID *string) string {
	t.Helper()
	now := time.Now().UTC()
	id := uuid.NewString()
	class := model.Class{ID: id, Name: "Class " + id[:8], TeacherID: teacherID, SchoolID: &schoolID, CreatedAt: now, UpdatedAt: now}
	if err := f.store.CreateClass(context.Background(), class); err != nil {
		t.Fatalf("seed class: %v", err)
	}
	return id
}

func (f *fixture) seedStudent(t *testing.T, schoolID string) string {
	t.Helper()
	id := uuid.NewString()
	last := "Seed"
	student := model.Student{ID: id, FirstName: "Student", LastName: &last, SchoolID: &schoolID, CreatedAt: time.Now().UTC()}
	if err := f.store.CreateStudent(context.Background(), student); err != nil {
		t.Fatalf("seed student: %v", err)
	}
	return id
}

func TestTeacherDeleteDetachesClasses(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()
	f := newFixture(t, pool)

	classID := f.seedClass(t, f.schoolA, &f.teacherA)
	adminToken := mustToken(t, f.adminA, auth.RoleSchoolAdmin, f.schoolA)

	resp := doReq(t, http.MethodDelete, f.app.URL+"/api/teachers/"+f.teacherA, adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	class, err := f.store.GetClass(context.Background(), classID)
	if err != nil {
		t.Fatalf("class should survive teacher deletion: %v", err)
	}
	if class.TeacherID != nil {
		t.Fatalf("expected teacher_id to be cleared, got %v", *class.TeacherID)
	}
	if _, err := f.store.GetUser(context.Background(), f.teacherA); err == nil {
		t.Fatalf("expected teacher profile to be gone")
	}
	if _, err := f.store.GetAuthUserByEmail(context.Background(), f.teacherA[:8]+"@example.local"); err == nil {
		t.Fatalf("expected teacher identity to be gone")
	}
}

func TestCrossSchoolTeacherCreateForbidden(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()
	f := newFixture(t, pool)

	adminToken := mustToken(t, f.adminA, auth.RoleSchoolAdmin, f.schoolA)
	body := map[string]interface{}{
		"firstName": "Eve",
		"lastName":  "Intruder",
		"email":     uuid.NewString()[:8] + "@example.local",
		"password":  "password123",
		"schoolId":  f.schoolB,
	}
	resp := doReq(t, http.MethodPost, f.app.URL+"/api/teachers", adminToken, body)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestAttendanceRemarkReplaces(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()
	f := newFixture(t, pool)

	classID := f.seedClass(t, f.schoolA, &f.teacherA)
	studentID := f.seedStudent(t, f.schoolA)
	if err := f.store.EnrollStudent(context.Background(), classID, studentID); err != nil {
		t.Fatalf("enroll: %v", err)
	}

	teacherToken := mustToken(t, f.teacherA, auth.RoleTeacher, f.schoolA)
	mark := func(status string) {
		body := map[string]interface{}{
			"classId": classID,
			"date":    "2026-03-09",
			"records": []map[string]string{{"studentId": studentID, "status": status}},
		}
		resp := doReq(t, http.MethodPost, f.app.URL+"/api/attendance", teacherToken, body)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("mark %s: expected 200, got %d", status, resp.StatusCode)
		}
	}
	mark("present")
	mark("late")

	date, _ := parseDateYYYYMMDD("2026-03-09")
	records, err := f.store.ListAttendance(context.Background(), classID, date)
	if err != nil {
		t.Fatalf("list attendance: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected exactly one record after re-marking, got %d", len(records))
	}
	if records[0].Status != "late" {
		t.Fatalf("expected latest status to win, got %s", records[0].Status)
	}
}

func TestAssignmentRenamePreservesScores(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()
	f := newFixture(t, pool)

	classID := f.seedClass(t, f.schoolA, &f.teacherA)
	studentID := f.seedStudent(t, f.schoolA)
	if err := f.store.EnrollStudent(context.Background(), classID, studentID); err != nil {
		t.Fatalf("enroll: %v", err)
	}

	teacherToken := mustToken(t, f.teacherA, auth.RoleTeacher, f.schoolA)

	resp := doReq(t, http.MethodPost, f.app.URL+"/api/assignments", teacherToken, map[string]string{
		"classId": classID,
		"name":    "Midterm",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create assignment: expected 201, got %d", resp.StatusCode)
	}
	var created struct {
		Assignment model.Assignment `json:"assignment"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode assignment: %v", err)
	}

	score := 87.5
	resp = doReq(t, http.MethodPut, f.app.URL+"/api/grades", teacherToken, map[string]interface{}{
		"assignmentId": created.Assignment.ID,
		"grades":       []map[string]interface{}{{"studentId": studentID, "score": score}},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("set grade: expected 200, got %d", resp.StatusCode)
	}

	resp = doReq(t, http.MethodPut, f.app.URL+"/api/assignments/"+created.Assignment.ID, teacherToken, map[string]string{
		"name": "Midterm Exam",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("rename: expected 200, got %d", resp.StatusCode)
	}

	grades, err := f.store.ListGrades(context.Background(), created.Assignment.ID)
	if err != nil {
		t.Fatalf("list grades: %v", err)
	}
	if len(grades) != 1 || grades[0].Grade.Score == nil || *grades[0].Grade.Score != score {
		t.Fatalf("expected score to survive the rename, got %+v", grades)
	}
}

func TestStudentDeleteRemovesReferences(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()
	f := newFixture(t, pool)

	classID := f.seedClass(t, f.schoolA, &f.teacherA)
	studentID := f.seedStudent(t, f.schoolA)
	if err := f.store.EnrollStudent(context.Background(), classID, studentID); err != nil {
		t.Fatalf("enroll: %v", err)
	}

	adminToken := mustToken(t, f.adminA, auth.RoleSchoolAdmin, f.schoolA)
	resp := doReq(t, http.MethodDelete, f.app.URL+"/api/students/"+studentID, adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	if _, err := f.store.GetStudent(context.Background(), studentID); err == nil {
		t.Fatalf("expected student to be gone")
	}
	if f.store.StudentEnrolled(context.Background(), classID, studentID) {
		t.Fatalf("expected enrollment to be gone")
	}
}

func TestClassListScopedToTeacher(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()
	f := newFixture(t, pool)

	owned := f.seedClass(t, f.schoolA, &f.teacherA)
	f.seedClass(t, f.schoolA, nil)

	teacherToken := mustToken(t, f.teacherA, auth.RoleTeacher, f.schoolA)
	resp := doReq(t, http.MethodGet, f.app.URL+"/api/classes", teacherToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var payload struct {
		Classes []classResponse `json:"classes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Classes) != 1 || payload.Classes[0].ID != owned {
		t.Fatalf("teacher should only see owned classes, got %+v", payload.Classes)
	}
	if payload.Classes[0].Students == nil {
		t.Fatalf("roster must be a list, not null")
	}
}

func TestRegisterAndLogin(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()
	f := newFixture(t, pool)

	email := uuid.NewString()[:8] + "@example.local"
	resp := doReq(t, http.MethodPost, f.app.URL+"/api/auth/register", "", map[string]interface{}{
		"firstName": "Ada",
		"lastName":  "Admin",
		"email":     email,
		"password":  "password123",
		"schoolId":  f.schoolA,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d", resp.StatusCode)
	}

	resp = doReq(t, http.MethodPost, f.app.URL+"/api/auth/login", "", map[string]string{
		"email":    email,
		"password": "password123",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", resp.StatusCode)
	}
	var tokens struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		t.Fatalf("expected both tokens, got %+v", tokens)
	}

	resp = doReq(t, http.MethodPost, f.app.URL+"/api/auth/login", "", map[string]string{
		"email":    email,
		"password": "wrong-password",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong password: expected 401, got %d", resp.StatusCode)
	}
}

func TestSchoolDeleteCascade(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()
	f := newFixture(t, pool)

	classID := f.seedClass(t, f.schoolA, &f.teacherA)
	studentID := f.seedStudent(t, f.schoolA)

	superToken := mustToken(t, uuid.NewString(), auth.RoleSuperAdmin, "")
	resp := doReq(t, http.MethodDelete, f.app.URL+"/api/schools/"+f.schoolA, superToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	ctx := context.Background()
	if _, err := f.store.GetSchool(ctx, f.schoolA); err == nil {
		t.Fatalf("expected school to be gone")
	}
	if _, err := f.store.GetClass(ctx, classID); err == nil {
		t.Fatalf("expected class to be deleted with its school")
	}
	teacher, err := f.store.GetUser(ctx, f.teacherA)
	if err != nil {
		t.Fatalf("teacher should survive school deletion: %v", err)
	}
	if teacher.SchoolID != nil {
		t.Fatalf("expected teacher school_id to be cleared, got %v", *teacher.SchoolID)
	}
	student, err := f.store.GetStudent(ctx, studentID)
	if err != nil {
		t.Fatalf("student should survive school deletion: %v", err)
	}
	if student.SchoolID != nil {
		t.Fatalf("expected student school_id to be cleared, got %v", *student.SchoolID)
	}
}

func TestUserRoleLookupScopedToSchool(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()
	f := newFixture(t, pool)

	outsider := f.seedUser(t, auth.RoleTeacher, f.schoolB)
	adminToken := mustToken(t, f.adminA, auth.RoleSchoolAdmin, f.schoolA)

	resp := doReq(t, http.MethodGet, f.app.URL+"/api/user/role?userId="+outsider, adminToken, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("cross-school lookup: expected 403, got %d", resp.StatusCode)
	}

	resp = doReq(t, http.MethodGet, f.app.URL+"/api/user/role?userId="+f.teacherA, adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("own-school lookup: expected 200, got %d", resp.StatusCode)
	}
	var payload struct {
		Role string `json:"role"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Role != auth.RoleTeacher {
		t.Fatalf("expected teacher role, got %q", payload.Role)
	}
}

func TestBatchImportStudents(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()
	f := newFixture(t, pool)

	classID := f.seedClass(t, f.schoolA, &f.teacherA)
	adminToken := mustToken(t, f.adminA, auth.RoleSchoolAdmin, f.schoolA)

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	if err := form.WriteField("class_id", classID); err != nil {
		t.Fatalf("form field: %v", err)
	}
	part, err := form.CreateFormFile("file", "roster.csv")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	if _, err := part.Write([]byte("first_name,last_name\nAlice,Smith\nBob,\n,Jones\n")); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	if err := form.Close(); err != nil {
		t.Fatalf("close form: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, f.app.URL+"/api/students/batch", &buf)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+adminToken)
	req.Header.Set("Content-Type", form.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("http error: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var payload struct {
		StudentsAdded int             `json:"studentsAdded"`
		Students      []model.Student `json:"students"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.StudentsAdded != 2 {
		t.Fatalf("expected 2 students added, got %d", payload.StudentsAdded)
	}

	roster, err := f.store.ListStudentsByClass(context.Background(), classID)
	if err != nil {
		t.Fatalf("list roster: %v", err)
	}
	if len(roster) != 2 {
		t.Fatalf("expected both imports enrolled, got %d", len(roster))
	}
}

func openTestDB(t *testing.T) *pgxpool.Pool {
	url := os.Getenv("SCHOOLHUB_TEST_DB")
	if url == "" {
		url = os.Getenv("DATABASE_URL")
	}
	if url == "" {
		t.Skip("SCHOOLHUB_TEST_DB or DATABASE_URL not set")
		return nil
	}
	pool, err := db.NewPool(context.Background(), url)
	if err != nil {
		t.Skipf("db unavailable: %v", err)
		return nil
	}
	return pool
}

func mustToken(t *testing.T, userID, role, schoolID string) string {
	t.Helper()
	cfg := testConfig()
	token, err := auth.NewAccessToken(cfg.JWTSecret, cfg.JWTIssuer, 10*time.Minute, auth.Claims{
		UserID:   userID,
		Role:     role,
		SchoolID: schoolID,
	})
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	return token
}

func doReq(t *testing.T, method, url, token string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode error: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("http error: %v", err)
	}
	return resp
}
