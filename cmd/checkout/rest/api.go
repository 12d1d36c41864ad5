package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/whatsagent/landing/cmd/checkout/controller"
	"github.com/whatsagent/landing/internal/deal"
	"github.com/whatsagent/landing/internal/experiment"
	ihttp "github.com/whatsagent/landing/internal/http"
	"github.com/whatsagent/landing/internal/metrics"
	itime "github.com/whatsagent/landing/internal/time"
	"github.com/whatsagent/landing/internal/validator"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/stripe/stripe-go/v76"
	"go.uber.org/zap"
)

type IController interface {
	CalculateTax(context.Context, controller.CalculateTaxInput) (*controller.TaxResult, error)
	CheckoutSession(context.Context, controller.CheckoutSessionInput) (string, error)
	PaymentIntent(context.Context, controller.PaymentIntentInput) (*controller.PaymentIntentResult, error)
}

type IExperiments interface {
	Assign(context.Context, string, string) (experiment.Assignment, error)
	AssignAll(context.Context, string) ([]experiment.Assignment, error)
	Convert(context.Context, string, string) (experiment.Assignment, bool, error)
	Stats(context.Context, string) ([]experiment.VariantStats, error)
}

type IVisitors interface {
	FirstSeen(context.Context, string, time.Time) (time.Time, error)
}

type IStream interface {
	Write(context.Context, []byte) error
}

// EventConstructor decodes a Stripe webhook request body after verifying its
// signature.
type EventConstructor interface {
	ConstructEvent([]byte, string) (stripe.Event, error)
}

// Options holds the API settings that do not come with a dependency.
type Options struct {
	SuccessURL string
	CancelURL  string
	Cookie     ihttp.CookieOptions
}

func NewAPI(
	logger *zap.Logger,
	ctrl IController,
	experiments IExperiments,
	visitors IVisitors,
	dealClock *deal.Clock,
	clock itime.Clock,
	eventConstructor EventConstructor,
	stream IStream,
	healthz http.Handler,
	metrics *metrics.Metrics,
	options Options,
) *API {
	api := API{
		Mux:         chi.NewRouter(),
		logger:      logger,
		valid:       validator.New(),
		ctrl:        ctrl,
		experiments: experiments,
		visitors:    visitors,
		dealClock:   dealClock,
		clock:       clock,
		stream:      stream,
		metrics:     metrics,
		options:     options,
	}

	api.Mux.Use(
		middleware.RequestID,
		middleware.RequestLogger(ihttp.NewZapLogFormatter(logger)),
		middleware.Recoverer,
	)

	api.Mux.Method(http.MethodGet, "/healthz", healthz)
	api.Mux.Method(http.MethodGet, "/metrics", metrics.Handler())

	api.Mux.Route("/v1", func(router chi.Router) {
		router.Method(http.MethodGet, "/pricing", Pricing{API: api})
		router.Method(http.MethodPost, "/tax-ids/validate", ValidateTaxID{API: api})
		router.Method(http.MethodPost, "/stripe", Stripe{API: api, constructor: eventConstructor})
		router.Method(http.MethodGet, "/experiments/{key}/stats", ExperimentStats{API: api})

		router.Group(func(router chi.Router) {
			router.Use(ihttp.Visitor(logger, options.Cookie))

			router.Method(http.MethodGet, "/offer", Offer{API: api})
			router.Method(http.MethodGet, "/experiments/{key}", Experiment{API: api})
			router.Method(http.MethodPost, "/experiments/{key}/conversions", Conversion{API: api})
			router.Method(http.MethodPost, "/tax/calculate", CalculateTax{API: api})
			router.Method(http.MethodPost, "/checkout/session", CheckoutSession{API: api})
			router.Method(http.MethodPost, "/checkout/payment-intent", PaymentIntent{API: api})
		})
	})

	return &api
}

type API struct {
	Mux *chi.Mux

	logger      *zap.Logger
	valid       *validatorv10.Validate
	ctrl        IController
	experiments IExperiments
	visitors    IVisitors
	dealClock   *deal.Clock
	clock       itime.Clock
	stream      IStream
	metrics     *metrics.Metrics
	options     Options
}
