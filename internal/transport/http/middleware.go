package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

type ctxKey int

const (
	userIDKey ctxKey = iota
	authTokenKey
)

// UserID returns the directory object id of the authenticated caller.
func UserID(ctx context.Context) string {
	v, _ := ctx.Value(userIDKey).(string)
	return v
}

// AuthToken returns the bearer token the caller presented.
func AuthToken(ctx context.Context) string {
	v, _ := ctx.Value(authTokenKey).(string)
	return v
}

// Authenticator validates HMAC signed bearer tokens issued to the tab.
type Authenticator struct {
	key    []byte
	issuer string
	log    logrus.FieldLogger
}

func NewAuthenticator(signingKey, issuer string, logger logrus.FieldLogger) (*Authenticator, error) {
	if signingKey == "" {
		return nil, errors.New("auth: signing key must not be empty")
	}
	return &Authenticator{key: []byte(signingKey), issuer: issuer, log: logger}, nil
}

// Middleware rejects requests without a valid token and stores the caller's
// oid claim and raw token on the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			writeError(w, http.StatusUnauthorized, "authorization header required")
			return
		}

		userID, err := a.verify(raw)
		if err != nil {
			a.log.WithError(err).Debug("rejected bearer token")
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		ctx = context.WithValue(ctx, authTokenKey, raw)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authenticator) verify(raw string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return a.key, nil
	}, opts...)
	if err != nil {
		return "", err
	}

	oid, _ := claims["oid"].(string)
	if oid == "" {
		return "", errors.New("token has no oid claim")
	}
	return oid, nil
}

// bearerToken reads the Authorization header, falling back to the
// access_token query parameter that browsers use for websockets.
func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return ""
		}
		return strings.TrimSpace(parts[1])
	}
	return r.URL.Query().Get("access_token")
}

// MembershipChecker tells whether a user belongs to a directory group.
type MembershipChecker interface {
	IsGroupMember(ctx context.Context, authToken, userID, groupID string) (bool, error)
}

// RequireTeamMember only admits callers who belong to the group named by the
// groupId query parameter.
func RequireTeamMember(members MembershipChecker, logger logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			groupID := r.URL.Query().Get("groupId")
			if _, err := uuid.Parse(groupID); err != nil {
				writeError(w, http.StatusBadRequest, "groupId must be a valid uuid")
				return
			}

			ok, err := members.IsGroupMember(r.Context(), AuthToken(r.Context()), UserID(r.Context()), groupID)
			if err != nil {
				logger.WithError(err).WithField("group_id", groupID).Error("check group membership")
				writeError(w, http.StatusBadGateway, "unable to verify team membership")
				return
			}
			if !ok {
				writeError(w, http.StatusForbidden, "caller is not a member of the team")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type ipLimiter struct {
	limiter    *rate.Limiter
	lastActive time.Time
}

// RateLimiter throttles requests per client IP.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*ipLimiter
	limit    rate.Limit
	burst    int
	now      func() time.Time
}

func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limiters: make(map[string]*ipLimiter),
		limit:    rate.Limit(perSecond),
		burst:    burst,
		now:      time.Now,
	}
}

func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(clientIP(r)) {
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *RateLimiter) allow(ip string) bool {
	l.mu.Lock()
	entry, ok := l.limiters[ip]
	if !ok {
		entry = &ipLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[ip] = entry
	}
	entry.lastActive = l.now()
	l.mu.Unlock()
	return entry.limiter.Allow()
}

// Sweep forgets limiters idle for longer than idle.
func (l *RateLimiter) Sweep(idle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-idle)
	removed := 0
	for ip, entry := range l.limiters {
		if entry.lastActive.Before(cutoff) {
			delete(l.limiters, ip)
			removed++
		}
	}
	return removed
}

// Run sweeps idle limiters every interval until ctx is done.
func (l *RateLimiter) Run(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep(idle)
		}
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
