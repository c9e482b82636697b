package http

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"schoolhub/server/internal/auth"
	"schoolhub/server/internal/config"
	"schoolhub/server/internal/repository"
)

type Server struct {
	cfg   config.Config
	store *repository.Store
	redis *redis.Client
}

func NewServer(cfg config.Config, store *repository.Store, redisClient *redis.Client) *Server {
	return &Server{cfg: cfg, store: store, redis: redisClient}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/refresh", s.handleRefresh)
		r.With(s.authMiddleware).Post("/auth/logout", s.handleLogout)

		r.With(s.authMiddleware).Get("/schools", s.handleListSchools)
		r.With(s.authMiddleware).Post("/schools", s.handleCreateSchool)
		r.With(s.authMiddleware).Put("/schools/{schoolId}", s.handleUpdateSchool)
		r.With(s.authMiddleware).Delete("/schools/{schoolId}", s.handleDeleteSchool)

		r.With(s.authMiddleware).Get("/classes", s.handleListClasses)
		r.With(s.authMiddleware).Post("/classes", s.handleCreateClass)
		r.With(s.authMiddleware).Put("/classes/{classId}", s.handleUpdateClass)
		r.With(s.authMiddleware).Delete("/classes/{classId}", s.handleDeleteClass)

		r.With(s.authMiddleware).Post("/class-students", s.handleEnrollStudent)
		r.With(s.authMiddleware).Delete("/class-students", s.handleRemoveEnrollment)

		r.With(s.authMiddleware).Get("/students", s.handleListStudents)
		r.With(s.authMiddleware).Post("/students", s.handleCreateStudent)
		r.With(s.authMiddleware).Post("/students/batch", s.handleBatchImportStudents)
		r.With(s.authMiddleware).Put("/students/{studentId}", s.handleUpdateStudent)
		r.With(s.authMiddleware).Delete("/students/{studentId}", s.handleDeleteStudent)

		r.With(s.authMiddleware).Get("/teachers", s.handleListTeachers)
		r.With(s.authMiddleware).Post("/teachers", s.handleCreateTeacher)
		r.With(s.authMiddleware).Put("/teachers/{teacherId}", s.handleUpdateTeacher)
		r.With(s.authMiddleware).Delete("/teachers/{teacherId}", s.handleDeleteTeacher)

		r.With(s.authMiddleware).Get("/attendance", s.handleGetAttendance)
		r.With(s.authMiddleware).Post("/attendance", s.handleMarkAttendance)

		r.With(s.authMiddleware).Get("/assignments", s.handleListAssignments)
		r.With(s.authMiddleware).Post("/assignments", s.handleCreateAssignment)
		r.With(s.authMiddleware).Put("/assignments/{assignmentId}", s.handleRenameAssignment)
		r.With(s.authMiddleware).Delete("/assignments/{assignmentId}", s.handleDeleteAssignment)

		r.With(s.authMiddleware).Get("/grades", s.handleListGrades)
		r.With(s.authMiddleware).Put("/grades", s.handleUpdateGrades)

		r.With(s.authMiddleware).Get("/user/role", s.handleGetUserRole)
		r.With(s.authMiddleware).Get("/stats", s.handleGetStats)
	})

	return r
}

// Auth

type claimsKey struct{}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}
		claims, err := auth.ParseToken(s.cfg.JWTSecret, token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// optionalClaims parses the bearer token when one is presented. No header
// means an anonymous caller, not an error.
func (s *Server) optionalClaims(r *http.Request) (*auth.Claims, error) {
	token := bearerToken(r.Header.Get("Authorization"))
	if token == "" {
		return nil, nil
	}
	return auth.ParseToken(s.cfg.JWTSecret, token)
}

func claimsFromContext(ctx context.Context) *auth.Claims {
	value := ctx.Value(claimsKey{})
	claims, _ := value.(*auth.Claims)
	return claims
}

// schoolScope resolves the school a scoped caller may touch. For super_admin
// the requested school wins (possibly empty, meaning all schools); for
// school_admin and teacher the caller's own school wins, and asking for a
// different one is a scope violation.
func schoolScope(claims *auth.Claims, requested string) (string, bool) {
	if claims.Role == auth.RoleSuperAdmin {
		return requested, true
	}
	if claims.SchoolID == "" {
		return "", false
	}
	if requested != "" && requested != claims.SchoolID {
		return "", false
	}
	return claims.SchoolID, true
}

// Utilities

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func clientIP(r *http.Request) *string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil || host == "" {
		return nil
	}
	return &host
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

// writeStoreError maps database failures onto the error taxonomy: not-found,
// unique and foreign-key violations get specific statuses, everything else is
// a 500.
func writeStoreError(w http.ResponseWriter, err error, notFoundCode string) {
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, notFoundCode)
		return
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			writeError(w, http.StatusConflict, "duplicate")
			return
		case "23503":
			writeError(w, http.StatusBadRequest, "invalid_reference")
			return
		}
	}
	writeError(w, http.StatusInternalServerError, "server_error")
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// parseDateYYYYMMDD parses a date-only value to UTC midnight.
func parseDateYYYYMMDD(value string) (time.Time, bool) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
}
