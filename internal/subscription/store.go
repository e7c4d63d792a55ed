package subscription

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/lib/pq" // registers the "postgres" database/sql driver
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/firewatch-dev/firewatch/internal/conf"
	"github.com/firewatch-dev/firewatch/internal/errors"
	"github.com/firewatch-dev/firewatch/internal/logger"
	"github.com/firewatch-dev/firewatch/internal/secrets"
)

const slowQueryThreshold = 200 * time.Millisecond

// Store is the subscription repository.
type Store interface {
	List(ctx context.Context) ([]Subscription, error)
	ListByUser(ctx context.Context, userID string) ([]Subscription, error)
	Get(ctx context.Context, id string) (*Subscription, error)
	Create(ctx context.Context, cameraID, phoneNumber, userID string) (*Subscription, error)
	Delete(ctx context.Context, id string) error
}

// GormStore implements Store on any gorm dialect.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an open connection and migrates the schema.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&Subscription{}); err != nil {
		return nil, fmt.Errorf("migrating subscriptions: %w", err)
	}
	return &GormStore{db: db}, nil
}

// Open connects to the configured database.
func Open(settings *conf.SubscriptionSettings) (*GormStore, error) {
	dsn, err := secrets.Resolve(settings.DSNFile, settings.DSN)
	if err != nil {
		return nil, fmt.Errorf("subscription.dsn: %w", err)
	}

	var dialector gorm.Dialector
	switch settings.Driver {
	case "sqlite", "":
		if dsn == "" {
			dsn = conf.DefaultSubscriptionDSN
		}
		if dsn != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
		dialector = sqlite.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	case "postgres":
		dialector = postgres.New(postgres.Config{DriverName: "postgres", DSN: dsn})
	default:
		return nil, fmt.Errorf("unknown subscription driver %q", settings.Driver)
	}

	gormLogger := logger.NewGormLoggerAdapter(logger.Global().Module(componentSubscription).Module("sql"), slowQueryThreshold)
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, errors.New(fmt.Errorf("%w: %w", ErrStoreUnavailable, err)).
			Component(componentSubscription).
			Context("driver", settings.Driver).
			Build()
	}
	if settings.Debug {
		db = db.Debug()
	}
	if dialector.Name() == "sqlite" {
		// sqlite serializes writers; an in-memory database also exists per connection
		sqlDB, err := db.DB()
		if err != nil {
			return nil, storeError("open", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return NewGormStore(db)
}

// DB exposes the connection, e.g. for health checks.
func (s *GormStore) DB() *gorm.DB { return s.db }

// Ping checks the underlying connection.
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return storeError("ping", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return storeError("ping", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStore) List(ctx context.Context) ([]Subscription, error) {
	var subs []Subscription
	if err := s.db.WithContext(ctx).Order("created_at").Find(&subs).Error; err != nil {
		return nil, storeError("list", err)
	}
	return subs, nil
}

func (s *GormStore) ListByUser(ctx context.Context, userID string) ([]Subscription, error) {
	var subs []Subscription
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at").Find(&subs).Error
	if err != nil {
		return nil, storeError("list_by_user", err)
	}
	return subs, nil
}

func (s *GormStore) Get(ctx context.Context, id string) (*Subscription, error) {
	var sub Subscription
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&sub).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, notFound(id)
	case err != nil:
		return nil, storeError("get", err)
	}
	return &sub, nil
}

// Create validates the input, normalizes the phone number and inserts a row.
func (s *GormStore) Create(ctx context.Context, cameraID, phoneNumber, userID string) (*Subscription, error) {
	sub, err := newSubscription(cameraID, phoneNumber, userID)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(sub).Error; err != nil {
		return nil, storeError("create", err)
	}
	return sub, nil
}

// Delete removes a subscription. Unknown ids report ErrNotFound.
func (s *GormStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return notFound(id)
	}
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&Subscription{})
	if res.Error != nil {
		return storeError("delete", res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound(id)
	}
	return nil
}

func notFound(id string) error {
	return errors.New(ErrNotFound).
		Component(componentSubscription).
		Context("subscription_id", id).
		Build()
}

func storeError(op string, err error) error {
	return errors.New(fmt.Errorf("%w: %w", ErrStoreUnavailable, err)).
		Component(componentSubscription).
		Context("operation", op).
		Build()
}
