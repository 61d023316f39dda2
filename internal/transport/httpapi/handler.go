// Package httpapi реализует REST API магазина поверх gorilla/mux.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/auth"
	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/service/orders"
)

const defaultIdempotencyTTL = 24 * time.Hour

// HandlerOptions задаёт зависимости HTTP-слоя помимо сервисов.
type HandlerOptions struct {
	Logger             *log.Entry
	HTTPMetrics        *metrics.HTTPMetrics
	IdempotencyMetrics *metrics.IdempotencyMetrics
	Idempotency        domain.IdempotencyRepository
	IdempotencyTTL     time.Duration
	Tracer             trace.Tracer
	Clock              func() time.Time
}

// Option настраивает Handler.
type Option func(*HandlerOptions)

// WithLogger задаёт logger для access-лога и ошибок.
func WithLogger(logger *log.Entry) Option {
	return func(opts *HandlerOptions) {
		opts.Logger = logger
	}
}

// WithHTTPMetrics включает метрики запросов.
func WithHTTPMetrics(m *metrics.HTTPMetrics) Option {
	return func(opts *HandlerOptions) {
		opts.HTTPMetrics = m
	}
}

// WithIdempotency включает поддержку заголовка Idempotency-Key для POST /api/orders.
func WithIdempotency(repo domain.IdempotencyRepository, ttl time.Duration, m *metrics.IdempotencyMetrics) Option {
	return func(opts *HandlerOptions) {
		opts.Idempotency = repo
		opts.IdempotencyTTL = ttl
		opts.IdempotencyMetrics = m
	}
}

// WithTracer задаёт tracer для спанов запросов.
func WithTracer(tracer trace.Tracer) Option {
	return func(opts *HandlerOptions) {
		opts.Tracer = tracer
	}
}

// WithClock подменяет источник времени.
func WithClock(clock func() time.Time) Option {
	return func(opts *HandlerOptions) {
		opts.Clock = clock
	}
}

// Handler обслуживает REST API.
type Handler struct {
	orders  *orders.Service
	catalog *catalog.Service
	auth    *auth.Service

	idempotency    domain.IdempotencyRepository
	idempotencyTTL time.Duration
	idemMetrics    *metrics.IdempotencyMetrics
	httpMetrics    *metrics.HTTPMetrics
	tracer         trace.Tracer
	logger         *log.Entry
	now            func() time.Time
}

// NewHandler создаёт HTTP-обработчик поверх сервисов.
func NewHandler(ordersSvc *orders.Service, catalogSvc *catalog.Service, authSvc *auth.Service, options ...Option) *Handler {
	opts := HandlerOptions{
		IdempotencyTTL: defaultIdempotencyTTL,
		Clock:          time.Now,
	}
	for _, opt := range options {
		if opt != nil {
			opt(&opts)
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "http-api")
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer("storefront/httpapi")
	}
	ttl := opts.IdempotencyTTL
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Handler{
		orders:         ordersSvc,
		catalog:        catalogSvc,
		auth:           authSvc,
		idempotency:    opts.Idempotency,
		idempotencyTTL: ttl,
		idemMetrics:    opts.IdempotencyMetrics,
		httpMetrics:    opts.HTTPMetrics,
		tracer:         tracer,
		logger:         logger,
		now:            clock,
	}
}

// Router собирает маршруты API.
func (h *Handler) Router() http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeFailure(w, http.StatusNotFound, "Route not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeFailure(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	r.Use(h.requestID, h.traceRequest, h.observe)

	api := r.PathPrefix("/api").Subrouter()

	authAPI := api.PathPrefix("/auth").Subrouter()
	authAPI.HandleFunc("/signup", h.signup).Methods(http.MethodPost)
	authAPI.HandleFunc("/login", h.login).Methods(http.MethodPost)
	authAPI.HandleFunc("/logout", h.authenticated(h.logout)).Methods(http.MethodPost)
	authAPI.HandleFunc("/users/{userId}/role", h.authenticated(h.updateRole, domain.RoleAdmin)).Methods(http.MethodPatch)

	products := api.PathPrefix("/products").Subrouter()
	products.HandleFunc("", h.authenticated(h.createProduct, domain.RoleAdmin)).Methods(http.MethodPost)
	products.HandleFunc("/{id}", h.authenticated(h.getProduct, domain.RoleAdmin, domain.RoleCustomer)).Methods(http.MethodGet)
	products.HandleFunc("/{id}", h.authenticated(h.updateProduct, domain.RoleAdmin)).Methods(http.MethodPut)
	products.HandleFunc("/{id}", h.authenticated(h.deleteProduct, domain.RoleAdmin)).Methods(http.MethodDelete)

	ordersAPI := api.PathPrefix("/orders").Subrouter()
	ordersAPI.HandleFunc("", h.authenticated(h.idempotent(h.placeOrder), domain.RoleCustomer)).Methods(http.MethodPost)
	ordersAPI.HandleFunc("", h.authenticated(h.getOrders, domain.RoleAdmin, domain.RoleCustomer)).Methods(http.MethodGet)
	ordersAPI.HandleFunc("/cancel/{id}", h.authenticated(h.cancelOrder, domain.RoleCustomer)).Methods(http.MethodPut)
	ordersAPI.HandleFunc("/status/{id}", h.authenticated(h.updateOrderStatus, domain.RoleAdmin)).Methods(http.MethodPatch)
	ordersAPI.HandleFunc("/{id}", h.authenticated(h.getOrder, domain.RoleAdmin, domain.RoleCustomer)).Methods(http.MethodGet)

	return r
}
