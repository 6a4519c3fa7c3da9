package middlewares

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/mbolis/quick-forms/httpx"
	"github.com/mbolis/quick-forms/log"
	"golang.org/x/time/rate"
)

// clients idle for longer than this are forgotten
const throttleIdle = 10 * time.Minute

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Throttle limits requests per client IP with a token bucket.
type Throttle struct {
	limit rate.Limit
	burst int

	mu        sync.Mutex
	clients   map[string]*client
	lastSweep time.Time
	now       func() time.Time

	// OnReject is called for every rejected request.
	OnReject func(r *http.Request)
}

// NewThrottle allows perSecond requests per second and bursts of burst
// requests to each client IP.
func NewThrottle(perSecond float64, burst int) *Throttle {
	if burst < 1 {
		burst = 1
	}
	return &Throttle{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		clients: make(map[string]*client),
		now:     time.Now,
	}
}

// Allow reports whether ip may make a request now.
func (t *Throttle) Allow(ip string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if now.Sub(t.lastSweep) > throttleIdle {
		for key, c := range t.clients {
			if now.Sub(c.lastSeen) > throttleIdle {
				delete(t.clients, key)
			}
		}
		t.lastSweep = now
	}

	c, ok := t.clients[ip]
	if !ok {
		c = &client{limiter: rate.NewLimiter(t.limit, t.burst)}
		t.clients[ip] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

// Len is the number of clients currently tracked.
func (t *Throttle) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.clients)
}

func (t *Throttle) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !t.Allow(ClientIP(r)) {
			if t.OnReject != nil {
				t.OnReject(r)
			}
			retry := 1
			if t.limit > 0 {
				retry = max(1, int(1/float64(t.limit)))
			}
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			httpx.LogStatus(w, r, http.StatusTooManyRequests, log.DebugLevel, "throttle.rejected")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientIP is the host part of the request's remote address.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
