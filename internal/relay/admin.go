package relay

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/cgp/crowdplay/internal/bans"
	"github.com/cgp/crowdplay/internal/protocol"
)

// banRequest is the body of every ban endpoint. durationSeconds of zero means
// permanent.
type banRequest struct {
	Target          string `json:"target"`
	Mode            string `json:"mode"`
	Reason          string `json:"reason"`
	DurationSeconds int    `json:"durationSeconds"`
}

type unbanRequest struct {
	Target string `json:"target"`
	Kind   string `json:"kind"`
}

// registerAdminRoutes mounts the secret-gated ban management API.
func (s *Server) registerAdminRoutes(r *mux.Router) {
	admin := r.PathPrefix("/api/v1/admin").Subrouter()
	admin.Use(s.requireAdmin)

	admin.HandleFunc("/ban/agent", s.handleBan(bans.KindAgent)).Methods(http.MethodPost)
	admin.HandleFunc("/ban/ip", s.handleBan(bans.KindIP)).Methods(http.MethodPost)
	admin.HandleFunc("/ban/cidr", s.handleBan(bans.KindCIDR)).Methods(http.MethodPost)
	admin.HandleFunc("/ban/user-agent", s.handleBan(bans.KindUA)).Methods(http.MethodPost)
	admin.HandleFunc("/unban", s.handleUnban).Methods(http.MethodPost)
	admin.HandleFunc("/bans", s.handleListBans).Methods(http.MethodGet)
}

// requireAdmin gates on X-Admin-Secret with a constant-time compare. An empty
// configured secret disables the whole surface.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		secret := s.cfg.Secrets.Admin
		presented := r.Header.Get("X-Admin-Secret")
		if secret == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(secret)) != 1 {
			writeError(w, http.StatusUnauthorized, protocol.CodeAuthFailed, "invalid admin secret")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleBan(kind bans.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req banRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, protocol.CodeParseError, "invalid JSON body")
			return
		}
		mode := bans.Mode(req.Mode)
		if mode != bans.ModeHard && mode != bans.ModeSoft {
			writeError(w, http.StatusBadRequest, protocol.CodeValidation, "mode must be hard or soft")
			return
		}

		duration := time.Duration(req.DurationSeconds) * time.Second
		rec, err := s.bans.Ban(r.Context(), req.Target, kind, mode, req.Reason, duration)
		if err != nil {
			writeError(w, http.StatusBadRequest, protocol.CodeValidation, err.Error())
			return
		}
		s.metrics.BansIssued.WithLabelValues(string(kind), "admin").Inc()
		s.logger.Info("[Admin] ban recorded", "target", req.Target, "kind", kind, "mode", mode)
		writeJSON(w, http.StatusOK, rec)
	}
}

func (s *Server) handleUnban(w http.ResponseWriter, r *http.Request) {
	var req unbanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, protocol.CodeParseError, "invalid JSON body")
		return
	}
	if err := s.bans.Unban(r.Context(), req.Target, bans.Kind(req.Kind)); err != nil {
		writeError(w, http.StatusBadRequest, protocol.CodeValidation, err.Error())
		return
	}
	s.logger.Info("[Admin] ban removed", "target", req.Target, "kind", req.Kind)
	writeJSON(w, http.StatusOK, map[string]bool{"removed": true})
}

func (s *Server) handleListBans(w http.ResponseWriter, r *http.Request) {
	records, err := s.bans.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, protocol.CodeInternal, "list bans failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"bans": records, "count": len(records)})
}
