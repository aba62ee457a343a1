// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package server

import (
	"net"
	"net/http"
	"strings"
)

const wildcard = "*"

type allowedHostsHandler struct {
	handler http.Handler
	hosts   map[string]struct{}
}

// filterInvalidHosts returns a handler that responds with 403 to requests
// whose Host header names a host outside of allowed. IP hosts are always
// served.
func filterInvalidHosts(handler http.Handler, allowed []string) http.Handler {
	s := make(map[string]struct{}, len(allowed))
	for _, host := range allowed {
		if host == wildcard {
			return handler
		}
		s[strings.ToLower(host)] = struct{}{}
	}
	return &allowedHostsHandler{
		handler: handler,
		hosts:   s,
	}
}

func (a *allowedHostsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Host == "" {
		a.handler.ServeHTTP(w, r)
		return
	}

	host, _, err := net.SplitHostPort(r.Host)
	if err != nil {
		// no port
		host = r.Host
	}
	if net.ParseIP(host) != nil {
		a.handler.ServeHTTP(w, r)
		return
	}
	if _, ok := a.hosts[strings.ToLower(host)]; !ok {
		http.Error(w, "invalid host specified", http.StatusForbidden)
		return
	}
	a.handler.ServeHTTP(w, r)
}
