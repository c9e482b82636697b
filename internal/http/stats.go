package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"schoolhub/server/internal/auth"
)

type statsResponse struct {
	Teachers int64 `json:"teachers"`
	Classes  int64 `json:"classes"`
	Students int64 `json:"students"`
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	schoolID, ok := schoolScope(claims, r.URL.Query().Get("schoolId"))
	if !ok {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	cacheKey := "stats:" + schoolID
	if cached, ok := s.cacheGet(r.Context(), cacheKey); ok {
		var stats statsResponse
		if json.Unmarshal([]byte(cached), &stats) == nil {
			writeJSON(w, http.StatusOK, stats)
			return
		}
	}

	var stats statsResponse
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		count, err := s.store.CountTeachers(ctx, schoolID)
		stats.Teachers = count
		return err
	})
	g.Go(func() error {
		count, err := s.store.CountClasses(ctx, schoolID)
		stats.Classes = count
		return err
	})
	g.Go(func() error {
		count, err := s.store.CountStudents(ctx, schoolID)
		stats.Students = count
		return err
	})
	if err := g.Wait(); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	if payload, err := json.Marshal(stats); err == nil {
		s.cacheSet(r.Context(), cacheKey, string(payload), s.cfg.StatsCacheTTL)
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleGetUserRole(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		userID = claims.UserID
	}
	if userID != claims.UserID && claims.Role != auth.RoleSuperAdmin {
		// Only a school_admin may look up other users, and only within their
		// own school.
		if claims.Role != auth.RoleSchoolAdmin {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		target, err := s.store.GetUser(r.Context(), userID)
		if err != nil {
			writeStoreError(w, err, "user_not_found")
			return
		}
		if derefOrEmpty(target.SchoolID) != claims.SchoolID {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
	}

	cacheKey := "role:" + userID
	if role, ok := s.cacheGet(r.Context(), cacheKey); ok {
		writeJSON(w, http.StatusOK, map[string]string{"role": role})
		return
	}

	role, err := s.store.GetUserRole(r.Context(), userID)
	if err != nil {
		writeStoreError(w, err, "user_not_found")
		return
	}
	s.cacheSet(r.Context(), cacheKey, role, s.cfg.RoleCacheTTL)
	writeJSON(w, http.StatusOK, map[string]string{"role": role})
}

// Cache helpers. Redis is optional; with no client configured every lookup is
// a miss and every set is a no-op.

func (s *Server) cacheGet(ctx context.Context, key string) (string, bool) {
	if s.redis == nil {
		return "", false
	}
	value, err := s.redis.Get(ctx, key).Result()
	if err != nil {
		return "", false
	}
	return value, true
}

func (s *Server) cacheSet(ctx context.Context, key, value string, ttl time.Duration) {
	if s.redis == nil {
		return
	}
	s.redis.Set(ctx, key, value, ttl)
}
