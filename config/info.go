package config

import (
	"strings"
	"sync"
)

const (
	ServiceName    = "vci-service"
	ServiceVersion = "0.1.0"
	APIVersion     = "v1"

	serviceDescription = "The VCI Service issues verifiable credentials over OpenID for Verifiable Credential Issuance" +
		" and publishes issuer discovery metadata and JSON-LD contexts."
)

func Name() string {
	return ServiceName
}

func Description() string {
	return serviceDescription
}

// Version is the version reported by --version.
func Version() string {
	return ServiceVersion + " (api " + APIVersion + ")"
}

var (
	apiBaseMu sync.RWMutex
	apiBase   string
)

// SetAPIBase records the public base URL of the service, without a trailing slash.
func SetAPIBase(url string) {
	apiBaseMu.Lock()
	defer apiBaseMu.Unlock()
	apiBase = strings.TrimRight(url, "/")
}

func GetAPIBase() string {
	apiBaseMu.RLock()
	defer apiBaseMu.RUnlock()
	return apiBase
}

// JoinPath joins path onto the API base.
func JoinPath(path string) string {
	return joinURL(GetAPIBase(), path)
}

func joinURL(base, path string) string {
	base = strings.TrimRight(base, "/")
	if path == "" {
		return base
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}
