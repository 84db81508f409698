// Package server contains the full set of handler functions and routes
// supported by the http api
package server

import (
	"os"

	sdkutil "github.com/TBD54566975/ssi-sdk/util"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/openg2p/vci-service/config"
	"github.com/openg2p/vci-service/pkg/server/framework"
	"github.com/openg2p/vci-service/pkg/server/middleware"
	"github.com/openg2p/vci-service/pkg/server/router"
	"github.com/openg2p/vci-service/pkg/service"
	svcframework "github.com/openg2p/vci-service/pkg/service/framework"
	"github.com/openg2p/vci-service/pkg/service/oidc"
)

const (
	HealthPrefix      = "/health"
	ReadinessPrefix   = "/readiness"
	MetricsPrefix     = "/metrics"
	SwaggerPrefix     = "/swagger/*any"
	SwaggerDocPath    = "/doc/swagger.yaml"
	SwaggerDocFile    = "doc/swagger.yaml"
	V1Prefix          = "/v1"
	IssuersPrefix     = "/issuers"
	WellKnownPrefix   = "/.well-known"
	IssuerMetadataDoc = "/openid-credential-issuer"
	ContextsDoc       = "/contexts.json"
	JWKSDoc           = "/jwks.json"
)

// VCIServer exposes all dependencies needed to run a http server and all its services
type VCIServer struct {
	*config.ServerConfig
	*service.VCIService
	*framework.Server
}

// NewVCIServer does two things: instantiates all service and registers their HTTP bindings
func NewVCIServer(shutdown chan os.Signal, cfg config.VCIServiceConfig, opts ...oidc.Option) (*VCIServer, error) {
	// creates an HTTP server from the framework, and wrap it to extend it for the VCI service
	engine := setUpEngine(cfg.Server, shutdown)
	httpServer := framework.NewServer(cfg.Server, engine)
	vci, err := service.InstantiateVCIService(cfg, opts...)
	if err != nil {
		return nil, sdkutil.LoggingErrorMsg(err, "unable to instantiate vci service")
	}

	// service-level routers
	engine.GET(HealthPrefix, router.Health)
	engine.GET(ReadinessPrefix, router.Readiness(vci.GetServices()))
	engine.GET(MetricsPrefix, gin.WrapH(promhttp.Handler()))
	engine.GET(SwaggerPrefix, router.Swagger(SwaggerDocPath))
	engine.StaticFile(SwaggerDocPath, SwaggerDocFile)

	// credential issuance surfaces, with the discovery documents also at the root
	surfaces := []router.Surface{
		router.PrimarySurface(cfg.Server.VCIBasePath),
		router.LegacySurface(cfg.Server.LegacyVCIBasePath),
	}
	for _, s := range surfaces {
		if err = CredentialIssuanceAPI(engine.Group(s.BasePath), s, vci.OIDC, vci.Metadata, vci.Issuer); err != nil {
			return nil, sdkutil.LoggingErrorMsgf(err, "unable to instantiate %s credential issuance API", s.Name)
		}
	}
	if !lo.ContainsBy(surfaces, func(s router.Surface) bool { return s.BasePath == "/" }) {
		if err = WellKnownAPI(&engine.RouterGroup, vci.Metadata, vci.Issuer); err != nil {
			return nil, sdkutil.LoggingErrorMsg(err, "unable to instantiate well known API")
		}
	}

	// admin API
	v1 := engine.Group(V1Prefix, middleware.AdminAuth())
	if err = IssuerAPI(v1, vci.Issuer); err != nil {
		return nil, sdkutil.LoggingErrorMsg(err, "unable to instantiate Issuer API")
	}

	return &VCIServer{
		Server:       httpServer,
		VCIService:   vci,
		ServerConfig: &cfg.Server,
	}, nil
}

// setUpEngine creates the gin engine and sets up the middleware based on config
func setUpEngine(cfg config.ServerConfig, shutdown chan os.Signal) *gin.Engine {
	switch cfg.Environment {
	case config.EnvironmentDev:
		gin.SetMode(gin.DebugMode)
	case config.EnvironmentTest:
		gin.SetMode(gin.TestMode)
	case config.EnvironmentProd:
		gin.SetMode(gin.ReleaseMode)
	}

	middlewares := gin.HandlersChain{
		gin.Recovery(),
		otelgin.Middleware(config.ServiceName),
		middleware.Errors(shutdown),
		middleware.Logger(logrus.StandardLogger()),
		middleware.Metrics(),
	}
	if len(cfg.CORSAllowedOrigins) > 0 {
		middlewares = append(middlewares, middleware.CORS(cfg.CORSAllowedOrigins))
	}

	// set up engine and middleware
	engine := gin.New()
	engine.Use(middlewares...)
	return engine
}

// CredentialIssuanceAPI registers the credential endpoint and the discovery documents of one surface
func CredentialIssuanceAPI(rg *gin.RouterGroup, surface router.Surface, issuer router.CredentialIssuer, metadataService, issuerService svcframework.Service) error {
	credentialRouter, err := router.NewOIDCCredentialRouter(issuer, surface)
	if err != nil {
		return sdkutil.LoggingErrorMsg(err, "creating credential router")
	}
	rg.POST(config.CredentialPath, middleware.BearerToken(), credentialRouter.IssueCredential)
	return WellKnownAPI(rg, metadataService, issuerService)
}

// WellKnownAPI registers the discovery documents under rg
func WellKnownAPI(rg *gin.RouterGroup, metadataService, issuerService svcframework.Service) error {
	wellKnownRouter, err := router.NewWellKnownRouter(metadataService, issuerService)
	if err != nil {
		return sdkutil.LoggingErrorMsg(err, "creating well known router")
	}

	wellKnownAPI := rg.Group(WellKnownPrefix)
	wellKnownAPI.GET(IssuerMetadataDoc, wellKnownRouter.GetCredentialIssuerMetadata)
	wellKnownAPI.GET(IssuerMetadataDoc+"/:"+router.IssuerNameParam, wellKnownRouter.GetCredentialIssuerMetadata)
	wellKnownAPI.GET(ContextsDoc, wellKnownRouter.GetContexts)
	wellKnownAPI.GET(JWKSDoc, wellKnownRouter.GetJWKS)
	return nil
}

// IssuerAPI registers all HTTP router for the Issuer Service
func IssuerAPI(rg *gin.RouterGroup, service svcframework.Service) error {
	issuerRouter, err := router.NewIssuerRouter(service)
	if err != nil {
		return sdkutil.LoggingErrorMsg(err, "creating issuer router")
	}

	issuerAPI := rg.Group(IssuersPrefix)
	issuerAPI.PUT("", issuerRouter.CreateIssuer)
	issuerAPI.GET("", issuerRouter.ListIssuers)
	issuerAPI.GET("/:"+router.NameParam, issuerRouter.GetIssuer)
	issuerAPI.DELETE("/:"+router.NameParam, issuerRouter.DeleteIssuer)
	return nil
}
