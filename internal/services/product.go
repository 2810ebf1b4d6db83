package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cambosugarscan/apiserver/internal/events"
	"github.com/cambosugarscan/apiserver/internal/logging"
	"github.com/cambosugarscan/apiserver/internal/metrics"
	"github.com/cambosugarscan/apiserver/internal/rules"
	"github.com/cambosugarscan/apiserver/internal/store"
	"github.com/cambosugarscan/apiserver/types"
	"golang.org/x/sync/errgroup"
)

// ProductRepository defines persistence operations for products.
type ProductRepository interface {
	List(ctx context.Context, q string, offset, limit int) ([]types.Product, int, error)
	Get(ctx context.Context, id string) (types.Product, error)
	GetByBarcode(ctx context.Context, barcode string) (types.Product, error)
	Create(ctx context.Context, product types.Product) (types.Product, error)
	Update(ctx context.Context, product types.Product) (types.Product, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
	CountGroups(ctx context.Context, column string) (map[string]int, error)
}

// EventPublisher sends domain events. Implemented by *events.Publisher.
type EventPublisher interface {
	Publish(ctx context.Context, ev events.Event) (string, error)
}

// ProductService encapsulates catalog use-cases. Every product it returns
// carries the derived per-serving sugar amount.
type ProductService struct {
	repo      ProductRepository
	publisher EventPublisher
	metrics   *metrics.Metrics
	log       logging.Logger
	now       func() time.Time
}

func NewProductService(repo ProductRepository, publisher EventPublisher, m *metrics.Metrics, log logging.Logger) *ProductService {
	return &ProductService{
		repo:      repo,
		publisher: publisher,
		metrics:   m,
		log:       log.With("component", "products"),
		now:       time.Now,
	}
}

func (s *ProductService) List(ctx context.Context, q string, offset, limit int) ([]types.Product, int, error) {
	products, total, err := s.repo.List(ctx, q, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	for i := range products {
		products[i] = rules.WithServing(products[i])
	}
	return products, total, nil
}

func (s *ProductService) Get(ctx context.Context, id string) (types.Product, error) {
	product, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Product{}, err
	}
	return rules.WithServing(product), nil
}

func (s *ProductService) GetByBarcode(ctx context.Context, barcode string) (types.Product, error) {
	product, err := s.repo.GetByBarcode(ctx, barcode)
	if err != nil {
		return types.Product{}, err
	}
	return rules.WithServing(product), nil
}

func (s *ProductService) Create(ctx context.Context, in rules.ProductInput) (types.Product, error) {
	product, err := rules.BuildProduct(in, nil, s.now())
	if err != nil {
		s.metrics.Rejected("product", "invalid")
		return types.Product{}, err
	}

	created, err := s.repo.Create(ctx, product)
	if err != nil {
		return types.Product{}, s.writeError(err)
	}
	created = rules.WithServing(created)

	s.metrics.ProductWritten("create", string(created.SugarLevel))
	s.publish(ctx, events.ProductCreated, created.ID, created)
	return created, nil
}

// Update merges in over the stored product. Fields absent from in keep
// their stored values.
func (s *ProductService) Update(ctx context.Context, id string, in rules.ProductInput) (types.Product, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Product{}, err
	}

	product, err := rules.BuildProduct(in, &existing, s.now())
	if err != nil {
		s.metrics.Rejected("product", "invalid")
		return types.Product{}, err
	}
	product.ID = existing.ID
	product.CreatedAt = existing.CreatedAt

	updated, err := s.repo.Update(ctx, product)
	if err != nil {
		return types.Product{}, s.writeError(err)
	}
	updated = rules.WithServing(updated)

	s.metrics.ProductWritten("update", string(updated.SugarLevel))
	s.publish(ctx, events.ProductUpdated, updated.ID, updated)
	return updated, nil
}

func (s *ProductService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.metrics.ProductWritten("delete", "")
	s.publish(ctx, events.ProductDeleted, id, nil)
	return nil
}

// Stats counts the catalog by sugar level and confidence.
func (s *ProductService) Stats(ctx context.Context) (types.ProductStats, error) {
	var (
		total        int
		byLevel      map[string]int
		byConfidence map[string]int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		total, err = s.repo.Count(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		byLevel, err = s.repo.CountGroups(gctx, store.ProductGroupSugarLevel)
		return err
	})
	g.Go(func() error {
		var err error
		byConfidence, err = s.repo.CountGroups(gctx, store.ProductGroupConfidence)
		return err
	})
	if err := g.Wait(); err != nil {
		return types.ProductStats{}, fmt.Errorf("product stats: %w", err)
	}

	return types.ProductStats{
		TotalProducts:  total,
		LowSugar:       byLevel[string(types.SugarLow)],
		MediumSugar:    byLevel[string(types.SugarMedium)],
		HighSugar:      byLevel[string(types.SugarHigh)],
		VerifiedCount:  byConfidence[string(types.ConfidenceVerified)],
		CommunityCount: byConfidence[string(types.ConfidenceCommunity)],
		ManualCount:    byConfidence[string(types.ConfidenceManual)],
	}, nil
}

func (s *ProductService) writeError(err error) error {
	if errors.Is(err, store.ErrDuplicate) {
		s.metrics.Rejected("product", "duplicate_barcode")
		return fmt.Errorf("barcode already exists: %w", ErrConflict)
	}
	return err
}

func (s *ProductService) publish(ctx context.Context, eventType, id string, data any) {
	ev, err := events.NewEvent(eventType, id, data, s.now())
	if err == nil {
		_, err = s.publisher.Publish(ctx, ev)
	}
	if err != nil {
		s.log.Warn(ctx, "event not published", "type", eventType, "id", id, "error", err)
	}
}
