package relay

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cgp/crowdplay/internal/auth"
	"github.com/cgp/crowdplay/internal/bans"
	"github.com/cgp/crowdplay/internal/config"
	"github.com/cgp/crowdplay/internal/protocol"
	"github.com/cgp/crowdplay/internal/ratelimit"
)

// errorBody is the JSON envelope for every non-2xx response.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: message, Code: code})
}

// clientIP resolves the caller's address under the configured proxy trust
// mode. The mode is fixed at startup; it is never inferred from the request.
func clientIP(r *http.Request, trustProxy string) string {
	switch trustProxy {
	case config.TrustCloudflare:
		if ip := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); ip != "" {
			return ip
		}
	case config.TrustAny:
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			parts := strings.SplitN(fwd, ",", 2)
			if ip := strings.TrimSpace(parts[0]); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// agentHandler receives the resolved credential after the auth chain.
type agentHandler func(w http.ResponseWriter, r *http.Request, cred auth.Credential)

// requireAgent runs the ingress chain on an API endpoint: credential lookup,
// ban check, then the plan's token bucket. Invalid-auth and rate-limit
// outcomes feed the violation counters that drive auto-bans.
func (s *Server) requireAgent(next agentHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r, s.cfg.Server.TrustProxy)
		userAgent := r.Header.Get("User-Agent")

		token := r.Header.Get("X-Api-Key")
		if token == "" {
			writeError(w, http.StatusUnauthorized, protocol.CodeMissingAuth, "X-Api-Key header is required")
			return
		}

		cred, err := s.creds.Lookup(r.Context(), token)
		if err != nil {
			if err == auth.ErrInvalidToken {
				if verr := s.bans.RecordViolation(r.Context(), ip, bans.ViolationInvalidRequest); verr != nil {
					s.logger.Warn("[Relay] violation record failed", "ip", ip, "error", verr)
				}
				writeError(w, http.StatusUnauthorized, protocol.CodeInvalidAuth, "invalid API key")
				return
			}
			s.logger.Error("[Relay] credential lookup failed", "error", err)
			writeError(w, http.StatusInternalServerError, protocol.CodeInternal, "credential lookup failed")
			return
		}

		decision, err := s.bans.Check(r.Context(), cred.AgentID, ip, userAgent)
		if err != nil {
			s.logger.Error("[Relay] ban check failed", "agentId", cred.AgentID, "error", err)
			writeError(w, http.StatusInternalServerError, protocol.CodeInternal, "ban check failed")
			return
		}
		if decision.Banned {
			if decision.Mode == bans.ModeHard {
				writeError(w, http.StatusForbidden, protocol.CodeBanned, decision.Reason)
				return
			}
			w.Header().Set("Retry-After", strconv.Itoa(softBanRetryAfter(decision.ExpiresAt)))
			writeError(w, http.StatusTooManyRequests, protocol.CodeSoftBanned, decision.Reason)
			return
		}

		limits := auth.PlanLimits(cred.Plan)
		res, err := s.limiter.Allow(r.Context(), cred.AgentID, limits.RPS, limits.Burst)
		if err != nil {
			s.logger.Error("[Relay] rate limit check failed", "agentId", cred.AgentID, "error", err)
			writeError(w, http.StatusInternalServerError, protocol.CodeInternal, "rate limit check failed")
			return
		}
		if !res.Allowed {
			s.metrics.RateLimitRejections.WithLabelValues(string(cred.Plan)).Inc()
			if verr := s.bans.RecordViolation(r.Context(), cred.AgentID, bans.ViolationRateLimit); verr != nil {
				s.logger.Warn("[Relay] violation record failed", "agentId", cred.AgentID, "error", verr)
			}
			w.Header().Set("Retry-After", strconv.Itoa(ratelimit.RetryAfterSeconds(res.RetryAfterMS)))
			writeError(w, http.StatusTooManyRequests, protocol.CodeRateLimited, "Rate limit exceeded")
			return
		}

		next(w, r, cred)
	}
}

// softBanRetryAfter converts a ban expiry to whole seconds, minimum 1.
// Permanent soft bans report a one-hour horizon.
func softBanRetryAfter(expiresAt int64) int {
	if expiresAt == 0 {
		return 3600
	}
	secs := int(time.Until(time.UnixMilli(expiresAt)) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
