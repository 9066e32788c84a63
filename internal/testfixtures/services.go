package testfixtures

import (
	"log/slog"
	"testing"
	"time"

	"github.com/jae1jeong/meeting-resv-sub001/internal/application"
	"github.com/jae1jeong/meeting-resv-sub001/internal/persistence"
	"github.com/jae1jeong/meeting-resv-sub001/internal/persistence/memory"
	"github.com/jae1jeong/meeting-resv-sub001/internal/scheduler"
)

// ServiceFactory assists tests with constructing the engine and booking
// service using deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Store       persistence.Store
	Policy      scheduler.CommitPolicy
	RejectPast  bool
	Authorizer  application.Authorizer
	Logger      *slog.Logger
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory over an empty memory store.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	if factory.Store == nil {
		factory.Store = memory.New()
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// WithStore overrides the backing store.
func WithStore(store persistence.Store) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Store = store
	}
}

// WithPolicy sets the engine's default series policy.
func WithPolicy(policy scheduler.CommitPolicy) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Policy = policy
	}
}

// WithRejectPast enables past-date rejection.
func WithRejectPast() ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.RejectPast = true
	}
}

// WithAuthorizer installs a booking authorizer.
func WithAuthorizer(authorizer application.Authorizer) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Authorizer = authorizer
	}
}

// NewEngine builds an engine over the factory store.
func (f *ServiceFactory) NewEngine(tb testing.TB) *scheduler.Engine {
	tb.Helper()
	engine, err := scheduler.NewEngine(scheduler.Config{
		Store:      f.Store,
		Clock:      f.Clock,
		NewID:      f.IDGenerator.Next,
		Policy:     f.Policy,
		RejectPast: f.RejectPast,
		Logger:     f.Logger,
	})
	if err != nil {
		tb.Fatalf("NewEngine: %v", err)
	}
	return engine
}

// NewBookingService builds a booking service and its engine over the
// factory store.
func (f *ServiceFactory) NewBookingService(tb testing.TB) *application.BookingService {
	tb.Helper()
	svc, err := application.NewBookingService(application.BookingServiceConfig{
		Engine:       f.NewEngine(tb),
		Reservations: f.Store,
		Patterns:     f.Store,
		Authorizer:   f.Authorizer,
		NewID:        f.IDGenerator.Next,
		Clock:        f.Clock,
		Logger:       f.Logger,
	})
	if err != nil {
		tb.Fatalf("NewBookingService: %v", err)
	}
	return svc
}
