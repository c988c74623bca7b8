package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strings"

	"framegate/internal/logging"
)

type ipFilter struct {
	logger     logging.Logger
	nets       []*net.IPNet
	trustProxy bool
}

// IPFilter constructs a middleware that blocks requests from client IPs
// within any of the given CIDR ranges. X-Forwarded-For is only consulted
// when trustProxy is set.
func IPFilter(logger logging.Logger, cidrs []string, trustProxy bool) (Middleware, error) {
	if len(cidrs) == 0 {
		return func(next http.Handler) http.Handler {
			return next
		}, nil
	}

	var nets []*net.IPNet
	for _, c := range cidrs {
		_, ipnet, err := net.ParseCIDR(strings.TrimSpace(c))
		if err != nil {
			return nil, fmt.Errorf("parse cidr %q: %w", c, err)
		}
		nets = append(nets, ipnet)
	}

	f := &ipFilter{
		logger:     logger,
		nets:       nets,
		trustProxy: trustProxy,
	}

	return f.middleware, nil
}

func (f *ipFilter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := f.extractClientIP(r)
		if clientIP == nil {
			next.ServeHTTP(w, r)
			return
		}

		for _, n := range f.nets {
			if n.Contains(clientIP) {
				if f.logger != nil {
					f.logger.Info("ip blocked",
						"ip", clientIP.String(),
						"path", r.URL.Path,
					)
				}
				writeError(w, http.StatusForbidden, "FORBIDDEN", "forbidden")
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

func (f *ipFilter) extractClientIP(r *http.Request) net.IP {
	if f.trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return net.ParseIP(r.RemoteAddr)
	}
	return net.ParseIP(host)
}
