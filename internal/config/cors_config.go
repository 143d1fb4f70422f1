package config

import (
	"sort"
	"strings"
)

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
	GetExposedHeaders() string
}

type AllowedOrigins map[string]struct{}
type nullValue = struct{}

func (a AllowedOrigins) IsAllowedOrigin(origin string) bool {
	_, ok := a[origin]
	return ok
}

// String lists the origins in sorted order
func (a AllowedOrigins) String() string {
	origins := make([]string, 0, len(a))
	for k := range a {
		origins = append(origins, k)
	}
	sort.Strings(origins)
	return strings.Join(origins, ", ")
}

// GetAllowedOrigins always contains the frontend origin
func (c mainConfig) GetAllowedOrigins() AllowedOrigins {
	origins := AllowedOrigins{}
	if frontend := c.GetFrontendURL(); frontend != "" {
		origins[frontend] = nullValue{}
	}
	for _, o := range c.s.Frontend.CorsAllowedOrigins {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			origins[o] = nullValue{}
		}
	}
	return origins
}

func (mainConfig) GetAllowedMethods() string {
	return "GET, POST, PUT, DELETE, OPTIONS"
}

func (mainConfig) GetAllowedHeaders() string {
	return "Content-Type, Authorization"
}

// GetExposedHeaders lists response headers the browser may read cross-origin.
// X-New-Token carries a refreshed session token.
func (mainConfig) GetExposedHeaders() string {
	return "X-New-Token, X-Request-ID"
}
