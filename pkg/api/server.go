package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/pantry/pkg/auth"
	"github.com/platinummonkey/pantry/pkg/httputil"
	"github.com/platinummonkey/pantry/pkg/middleware"
	"github.com/platinummonkey/pantry/pkg/observability"
	"github.com/platinummonkey/pantry/pkg/storage"
)

// Config holds the HTTP-facing settings of the API
type Config struct {
	Auth              auth.Config
	CORSOrigins       []string
	TrustProxyHeaders bool
	// RequestTimeout bounds handler contexts; 0 disables it
	RequestTimeout time.Duration
	// MaxBodyBytes caps request bodies, image uploads included; 0 disables it
	MaxBodyBytes int64
}

// Dependencies are the collaborators the API is built from
type Dependencies struct {
	Users       auth.UserStore
	Tokens      auth.TokenStore
	Tags        AttributeStore
	Ingredients AttributeStore
	Recipes     RecipeStore
	Images      storage.ImageStore
	Hasher      auth.PasswordHasher

	Logger  *observability.Logger
	Metrics *observability.Metrics

	// LoginLimiter throttles the credential endpoints; nil disables it
	LoginLimiter middleware.Limiter
	// APILimiter throttles authenticated traffic; nil disables it
	APILimiter middleware.Limiter
}

// Server represents our API server
type Server struct {
	cfg         Config
	router      *mux.Router
	handler     http.Handler
	users       auth.UserStore
	tags        AttributeStore
	ingredients AttributeStore
	recipes     RecipeStore
	images      storage.ImageStore
	hasher      auth.PasswordHasher
	login       *auth.LoginService
	csrf        *auth.CSRFProtector
	logger      *observability.Logger
	metrics     *observability.Metrics

	loginLimiter middleware.Limiter
	apiLimiter   middleware.Limiter

	// imageTimeout bounds background image deletions
	imageTimeout time.Duration
}

// NewServer creates a new API server
func NewServer(cfg Config, deps Dependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	s := &Server{
		cfg:          cfg,
		router:       mux.NewRouter(),
		users:        deps.Users,
		tags:         deps.Tags,
		ingredients:  deps.Ingredients,
		recipes:      deps.Recipes,
		images:       deps.Images,
		hasher:       deps.Hasher,
		login:        auth.NewLoginService(deps.Users, deps.Tokens, deps.Hasher),
		csrf:         auth.NewCSRFProtector(cfg.Auth),
		logger:       logger,
		metrics:      deps.Metrics,
		loginLimiter: deps.LoginLimiter,
		apiLimiter:   deps.APILimiter,
		imageTimeout: 30 * time.Second,
	}

	authenticator := auth.NewAuthenticator(
		auth.NewExtractor(cfg.Auth),
		auth.NewTokenAuthenticator(deps.Tokens, s.csrf),
	)

	s.setupRoutes(middleware.NewAuthMiddleware(authenticator, cfg.Auth.Keyword, deps.Metrics))
	s.handler = s.wrap(s.router)
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes(authMW *middleware.AuthMiddleware) {
	if s.metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(s.metrics))
	}

	// Images from the filesystem store are served by us; S3 serves its own
	if fs, ok := s.images.(*storage.FileSystemImageStore); ok {
		s.router.PathPrefix(fs.BaseURL()).Handler(fs.Handler()).Methods(http.MethodGet, http.MethodHead)
	}

	// Login runs no authentication, so a stale auth cookie cannot block it
	login := s.throttleLogin(http.HandlerFunc(s.loginUser))
	s.router.Handle("/api/user/token/", login).Methods(http.MethodPost)
	s.router.Handle("/api/user/login/", login).Methods(http.MethodPost)

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(authMW.Handler)

	api.HandleFunc("/user/create/", s.createUser).Methods(http.MethodPost)

	protected := api.NewRoute().Subrouter()
	protected.Use(middleware.RequireAuth(s.cfg.Auth.Keyword))
	if s.apiLimiter != nil {
		protected.Use(middleware.RateLimit(s.apiLimiter, "api", middleware.UserOrIPKey(s.cfg.TrustProxyHeaders), s.metrics))
	}

	protected.HandleFunc("/user/logout/", s.logoutUser).Methods(http.MethodPost)
	protected.HandleFunc("/user/me/", s.getMe).Methods(http.MethodGet)
	protected.HandleFunc("/user/me/", s.updateMe).Methods(http.MethodPut, http.MethodPatch)

	NewAttributeHandlers(KindTag, s.tags).RegisterRoutes(protected)
	NewAttributeHandlers(KindIngredient, s.ingredients).RegisterRoutes(protected)

	protected.HandleFunc("/recipe/recipes/", s.listRecipes).Methods(http.MethodGet)
	protected.HandleFunc("/recipe/recipes/", s.createRecipe).Methods(http.MethodPost)
	protected.HandleFunc("/recipe/recipes/{id:[0-9]+}/", s.getRecipe).Methods(http.MethodGet)
	protected.HandleFunc("/recipe/recipes/{id:[0-9]+}/", s.updateRecipe).Methods(http.MethodPut, http.MethodPatch)
	protected.HandleFunc("/recipe/recipes/{id:[0-9]+}/", s.deleteRecipe).Methods(http.MethodDelete)
	protected.HandleFunc("/recipe/recipes/{id:[0-9]+}/upload-image/", s.uploadRecipeImage).Methods(http.MethodPost)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteNotFound(w)
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteErrorMessage(w, http.StatusMethodNotAllowed, `Method "`+r.Method+`" not allowed.`)
	})
}

// wrap installs the request-scoped middleware around the router. The first
// one listed is outermost.
func (s *Server) wrap(h http.Handler) http.Handler {
	chain := []func(http.Handler) http.Handler{
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(s.logger),
		httputil.RecoveryMiddleware,
		httputil.CORSMiddleware(s.cfg.CORSOrigins),
	}
	if s.cfg.RequestTimeout > 0 {
		chain = append(chain, httputil.TimeoutMiddleware(s.cfg.RequestTimeout))
	}
	if s.cfg.MaxBodyBytes > 0 {
		chain = append(chain, httputil.MaxBytesMiddleware(s.cfg.MaxBodyBytes))
	}

	return otelhttp.NewHandler(httputil.Chain(chain...)(h), "pantry-api")
}

func (s *Server) throttleLogin(h http.Handler) http.Handler {
	if s.loginLimiter == nil {
		return h
	}
	return middleware.RateLimit(s.loginLimiter, "login", middleware.ClientIPKey(s.cfg.TrustProxyHeaders), s.metrics)(h)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Router exposes the route table, mainly for tests
func (s *Server) Router() *mux.Router {
	return s.router
}

// caller returns the authenticated user. Only valid behind RequireAuth.
func caller(r *http.Request) *auth.AuthContext {
	return middleware.GetAuthContext(r)
}

// writeStoreError maps storage errors to responses
func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		httputil.WriteNotFound(w)
	case errors.Is(err, storage.ErrInvalidReference):
		httputil.WriteBadRequest(w, "Invalid pk - object does not exist.")
	case errors.Is(err, storage.ErrConflict):
		httputil.WriteBadRequest(w, "An object with these values already exists.")
	default:
		observability.FromContext(r.Context()).WithError(err).Error("storage operation failed")
		httputil.WriteInternalError(w)
	}
}
