package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cambosugarscan/apiserver/internal/events"
	"github.com/cambosugarscan/apiserver/internal/logging"
	"github.com/cambosugarscan/apiserver/internal/rules"
	"github.com/cambosugarscan/apiserver/internal/storage"
	"github.com/cambosugarscan/apiserver/types"
)

const (
	exportPageSize    = 100
	snapshotKeyLayout = "catalog/20060102T150405Z.json"
)

// CatalogSnapshot is the JSON document written by an export.
type CatalogSnapshot struct {
	ExportedAt time.Time       `json:"exportedAt"`
	Count      int             `json:"count"`
	Products   []types.Product `json:"products"`
}

type ExportResult struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
	Count  int    `json:"count"`
	Bytes  int    `json:"bytes"`
}

// CatalogExporter writes point-in-time catalog snapshots to object storage.
type CatalogExporter struct {
	products  ProductRepository
	objects   storage.ObjectStorage
	publisher EventPublisher
	log       logging.Logger
	now       func() time.Time
	pageSize  int
}

func NewCatalogExporter(products ProductRepository, objects storage.ObjectStorage, publisher EventPublisher, log logging.Logger) *CatalogExporter {
	return &CatalogExporter{
		products:  products,
		objects:   objects,
		publisher: publisher,
		log:       log.With("component", "export"),
		now:       time.Now,
		pageSize:  exportPageSize,
	}
}

// Export snapshots every product, newest first, and announces the snapshot
// with a catalog.exported event.
func (e *CatalogExporter) Export(ctx context.Context) (ExportResult, error) {
	products, err := e.collect(ctx)
	if err != nil {
		return ExportResult{}, err
	}

	exportedAt := e.now().UTC()
	body, err := json.Marshal(CatalogSnapshot{
		ExportedAt: exportedAt,
		Count:      len(products),
		Products:   products,
	})
	if err != nil {
		return ExportResult{}, fmt.Errorf("encode snapshot: %w", err)
	}

	if err := e.objects.EnsureBucket(ctx); err != nil {
		return ExportResult{}, fmt.Errorf("ensure bucket %s: %w", e.objects.Bucket(), err)
	}
	key := exportedAt.Format(snapshotKeyLayout)
	if err := e.objects.Put(ctx, key, bytes.NewReader(body), int64(len(body)), "application/json"); err != nil {
		return ExportResult{}, fmt.Errorf("upload %s: %w", key, err)
	}

	result := ExportResult{
		Bucket: e.objects.Bucket(),
		Key:    key,
		Count:  len(products),
		Bytes:  len(body),
	}
	e.log.Info(ctx, "catalog exported", "bucket", result.Bucket, "key", key, "count", result.Count)

	ev, err := events.NewEvent(events.CatalogExported, key, result, exportedAt)
	if err == nil {
		_, err = e.publisher.Publish(ctx, ev)
	}
	if err != nil {
		e.log.Warn(ctx, "event not published", "type", events.CatalogExported, "error", err)
	}
	return result, nil
}

// Fetch reads a previously exported snapshot.
func (e *CatalogExporter) Fetch(ctx context.Context, key string) (CatalogSnapshot, error) {
	rc, err := e.objects.Get(ctx, key)
	if err != nil {
		return CatalogSnapshot{}, fmt.Errorf("open %s: %w", key, err)
	}
	defer rc.Close()

	var snapshot CatalogSnapshot
	if err := json.NewDecoder(rc).Decode(&snapshot); err != nil {
		return CatalogSnapshot{}, fmt.Errorf("decode %s: %w", key, err)
	}
	return snapshot, nil
}

func (e *CatalogExporter) collect(ctx context.Context) ([]types.Product, error) {
	all := make([]types.Product, 0)
	for offset := 0; ; offset += e.pageSize {
		page, total, err := e.products.List(ctx, "", offset, e.pageSize)
		if err != nil {
			return nil, fmt.Errorf("list products at offset %d: %w", offset, err)
		}
		for _, p := range page {
			all = append(all, rules.WithServing(p))
		}
		if len(page) < e.pageSize || len(all) >= total {
			return all, nil
		}
	}
}
