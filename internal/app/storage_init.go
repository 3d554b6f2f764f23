package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
	"github.com/vladislavdragonenkov/shopcore/internal/storage/memory"
	"github.com/vladislavdragonenkov/shopcore/internal/storage/postgres"
)

// repositories агрегирует хранилища, собранные по выбранному драйверу.
type repositories struct {
	Orders   domain.OrderRepository
	Payments domain.PaymentRepository
	Products domain.ProductRepository
	Outbox   domain.OutboxRepository
	Timeline domain.TimelineRepository

	// store не nil только для postgres-драйвера.
	store *postgres.Store
}

// Close освобождает ресурсы хранилища.
func (r *repositories) Close() error {
	if r.store != nil {
		return r.store.Close()
	}
	return nil
}

// initStorage собирает репозитории по cfg.StorageDriver.
func initStorage(ctx context.Context, cfg Config, logger *log.Entry) (*repositories, error) {
	switch cfg.StorageDriver {
	case "", StorageDriverMemory:
		logger.Info("using in-memory storage")
		return &repositories{
			Orders:   memory.NewOrderRepository(),
			Payments: memory.NewPaymentRepository(),
			Products: memory.NewProductRepository(),
			Outbox:   memory.NewOutboxRepository(),
			Timeline: memory.NewTimelineRepository(),
		}, nil

	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres driver requires SHOP_POSTGRES_DSN")
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("ensure postgres schema: %w", err)
			}
		}
		logger.Info("using postgres storage")
		return &repositories{
			Orders:   postgres.NewOrderRepository(store),
			Payments: postgres.NewPaymentRepository(store),
			Products: postgres.NewProductRepository(store),
			Outbox:   postgres.NewOutboxRepository(store),
			Timeline: postgres.NewTimelineRepository(store),
			store:    store,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.StorageDriver)
	}
}
