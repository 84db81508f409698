package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ardanlabs/conf"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/openg2p/vci-service/pkg/storage"
)

const (
	DefaultConfigPath = "config/config.toml"
	ConfigFileName    = "config.toml"
	ConfigExtension   = ".toml"

	DefaultWebBaseURL = "http://localhost:3000"

	DefaultVCIBasePath       = "/api/v1/vci"
	DefaultLegacyVCIBasePath = "/api/v1/vci/legacy"
	CredentialPath           = "/credential"

	DefaultCNonceExpiresIn = 5 * time.Minute
	DefaultJWKSCacheTTL    = 10 * time.Minute
	DefaultHTTPRetryMax    = 3

	// ConfigPathEnv names the environment variable that overrides the config file location.
	ConfigPathEnv = "CONFIG_PATH"

	EnvironmentDev  Environment = "dev"
	EnvironmentTest Environment = "test"
	EnvironmentProd Environment = "prod"
)

type Environment string

type VCIServiceConfig struct {
	conf.Version
	Server   ServerConfig   `toml:"server"`
	Services ServicesConfig `toml:"services"`
}

// ServerConfig represents configurable properties for the HTTP server
type ServerConfig struct {
	Environment     Environment   `toml:"env" conf:"default:dev"`
	APIHost         string        `toml:"api_host" conf:"default:0.0.0.0:3000"`
	DebugHost       string        `toml:"debug_host" conf:"default:0.0.0.0:4000"`
	JagerHost       string        `toml:"jager_host" conf:"default:http://jaeger:14268/api/traces"`
	JagerEnabled    bool          `toml:"jager_enabled" conf:"default:false"`
	ReadTimeout     time.Duration `toml:"read_timeout" conf:"default:5s"`
	WriteTimeout    time.Duration `toml:"write_timeout" conf:"default:5s"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout" conf:"default:5s"`
	LogLocation     string        `toml:"log_location" conf:"default:log"`
	LogLevel        string        `toml:"log_level" conf:"default:debug"`

	// VCIBasePath and LegacyVCIBasePath are the mount points of the two credential issuance surfaces.
	VCIBasePath       string `toml:"vci_base_path" conf:"default:/api/v1/vci"`
	LegacyVCIBasePath string `toml:"legacy_vci_base_path" conf:"default:/api/v1/vci/legacy"`

	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`
}

// ServicesConfig represents configurable properties for the components of the VCI Service
type ServicesConfig struct {
	// a single storage provider is shared by all services
	StorageProvider string           `toml:"storage"`
	StorageOptions  []storage.Option `toml:"storage_option"`

	// WebBaseURL is the public URL the service is reachable at. It is substituted into issuer metadata and
	// context templates, and is the credential issuer identifier.
	WebBaseURL string `toml:"web_base_url"`

	KeyStoreConfig KeyStoreServiceConfig `toml:"keystore,omitempty"`
	IssuerConfig   IssuerServiceConfig   `toml:"issuer,omitempty"`
	OIDCConfig     OIDCServiceConfig     `toml:"oidc,omitempty"`
}

// BaseServiceConfig represents configurable properties for a specific component of the VCI Service
// Can be wrapped and extended for any specific service config
type BaseServiceConfig struct {
	Name string `toml:"name"`
}

type KeyStoreServiceConfig struct {
	*BaseServiceConfig
	// ServiceKey is a base58 encoded 32 byte key. When empty the key is derived from ServiceKeyPassword with a
	// salt that is kept in storage.
	ServiceKey string `toml:"service_key"`
	// Service key password. Used by a KDF whose key is used by a symmetric cypher for key encryption.
	// The password is salted before usage.
	ServiceKeyPassword string `toml:"password"`
}

func (k *KeyStoreServiceConfig) IsEmpty() bool {
	if k == nil {
		return true
	}
	return reflect.DeepEqual(k, &KeyStoreServiceConfig{})
}

type IssuerServiceConfig struct {
	*BaseServiceConfig
	// IssuersFile is an optional JSON file with issuers that are upserted into the registry at startup.
	IssuersFile string `toml:"issuers_file"`
}

func (i *IssuerServiceConfig) IsEmpty() bool {
	if i == nil {
		return true
	}
	return reflect.DeepEqual(i, &IssuerServiceConfig{})
}

type OIDCServiceConfig struct {
	*BaseServiceConfig
	// RequireProof rejects credential requests that carry no proof of possession.
	RequireProof    bool          `toml:"require_proof"`
	CNonceExpiresIn time.Duration `toml:"c_nonce_expires_in"`
	// CredentialExpiresIn sets the exp claim of issued credentials. Zero means credentials do not expire.
	CredentialExpiresIn time.Duration `toml:"credential_expires_in"`
	JWKSCacheTTL        time.Duration `toml:"jwks_cache_ttl"`
	HTTPRetryMax        int           `toml:"http_retry_max"`
}

func (o *OIDCServiceConfig) IsEmpty() bool {
	if o == nil {
		return true
	}
	return reflect.DeepEqual(o, &OIDCServiceConfig{})
}

// LoadConfig attempts to load a TOML config file from the given path, and coerce it into our object model.
// Before loading, defaults are applied on certain properties, which are overwritten if specified in the TOML file.
func LoadConfig(path string) (*VCIServiceConfig, error) {
	// no path, load default config
	defaultConfig := false
	if path == "" {
		logrus.Info("no config path provided, loading default config...")
		defaultConfig = true
	} else if filepath.Ext(path) != ConfigExtension {
		return nil, fmt.Errorf("path<%s> did not match the expected TOML format", path)
	}

	// create the config object
	var config VCIServiceConfig
	config.Version = conf.Version{SVN: Version(), Desc: Description()}

	// parse and apply defaults
	if err := conf.Parse(os.Args[1:], ServiceName, &config); err != nil {
		switch {
		case errors.Is(err, conf.ErrHelpWanted):
			usage, err := conf.Usage(ServiceName, &config)
			if err != nil {
				return nil, errors.Wrap(err, "parsing config")
			}
			fmt.Println(usage)

			return nil, nil

		case errors.Is(err, conf.ErrVersionWanted):
			version, err := conf.VersionString(ServiceName, &config)
			if err != nil {
				return nil, errors.Wrap(err, "generating config version")
			}

			fmt.Println(version)
			return nil, nil
		}

		return nil, errors.Wrap(err, "parsing config")
	}

	if defaultConfig {
		config.Services = ServicesConfig{
			StorageProvider: "bolt",
			WebBaseURL:      DefaultWebBaseURL,
			KeyStoreConfig: KeyStoreServiceConfig{
				BaseServiceConfig:  &BaseServiceConfig{Name: "keystore"},
				ServiceKeyPassword: "default-password",
			},
			IssuerConfig: IssuerServiceConfig{
				BaseServiceConfig: &BaseServiceConfig{Name: "issuer"},
			},
			OIDCConfig: OIDCServiceConfig{
				BaseServiceConfig: &BaseServiceConfig{Name: "oidc"},
			},
		}
	} else {
		// load from TOML file
		if _, err := toml.DecodeFile(path, &config); err != nil {
			return nil, errors.Wrapf(err, "could not load config: %s", path)
		}
	}

	config.ApplyDefaults()
	return &config, nil
}

// ApplyDefaults fills in the properties a config file may leave out.
func (c *VCIServiceConfig) ApplyDefaults() {
	applyServerDefaults(&c.Server)
	applyServiceDefaults(&c.Services)
}

// CredentialEndpoint is the absolute URL of the credential endpoint of the primary surface.
func (c VCIServiceConfig) CredentialEndpoint() string {
	return joinURL(c.Services.WebBaseURL, c.Server.VCIBasePath+CredentialPath)
}

func applyServerDefaults(server *ServerConfig) {
	if server.VCIBasePath == "" {
		server.VCIBasePath = DefaultVCIBasePath
	}
	if server.LegacyVCIBasePath == "" {
		server.LegacyVCIBasePath = DefaultLegacyVCIBasePath
	}
	server.VCIBasePath = "/" + strings.Trim(server.VCIBasePath, "/")
	server.LegacyVCIBasePath = "/" + strings.Trim(server.LegacyVCIBasePath, "/")
}

// apply defaults if not included in toml file
func applyServiceDefaults(services *ServicesConfig) {
	if services.WebBaseURL == "" {
		services.WebBaseURL = DefaultWebBaseURL
	}
	services.WebBaseURL = strings.TrimRight(services.WebBaseURL, "/")
	if services.KeyStoreConfig.BaseServiceConfig == nil {
		services.KeyStoreConfig.BaseServiceConfig = &BaseServiceConfig{Name: "keystore"}
	}
	if services.IssuerConfig.BaseServiceConfig == nil {
		services.IssuerConfig.BaseServiceConfig = &BaseServiceConfig{Name: "issuer"}
	}
	if services.OIDCConfig.BaseServiceConfig == nil {
		services.OIDCConfig.BaseServiceConfig = &BaseServiceConfig{Name: "oidc"}
	}
	if services.OIDCConfig.CNonceExpiresIn == 0 {
		services.OIDCConfig.CNonceExpiresIn = DefaultCNonceExpiresIn
	}
	if services.OIDCConfig.JWKSCacheTTL == 0 {
		services.OIDCConfig.JWKSCacheTTL = DefaultJWKSCacheTTL
	}
	if services.OIDCConfig.HTTPRetryMax == 0 {
		services.OIDCConfig.HTTPRetryMax = DefaultHTTPRetryMax
	}
}
