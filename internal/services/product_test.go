package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/cambosugarscan/apiserver/internal/events"
	"github.com/cambosugarscan/apiserver/internal/rules"
	"github.com/cambosugarscan/apiserver/internal/store"
	"github.com/cambosugarscan/apiserver/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func productInput(t *testing.T, body string) rules.ProductInput {
	t.Helper()
	var in rules.ProductInput
	require.NoError(t, json.Unmarshal([]byte(body), &in))
	return in
}

func TestProductService_CreateDerivesFields(t *testing.T) {
	svc, _, pub := newProductService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, productInput(t, `{
		"barcode": " 8850123456789 ",
		"nameKh": "ភេសជ្ជៈ",
		"sugarPer100g": "11",
		"defaultServingSizeG": 330,
		"sugarLevel": "low",
		"confidence": "verified"
	}`))
	require.NoError(t, err)

	assert.Equal(t, "p-001", created.ID)
	assert.Equal(t, "8850123456789", created.Barcode)
	assert.Equal(t, types.SugarMedium, created.SugarLevel)
	assert.Equal(t, 36.3, created.SugarPerServingG)
	require.NotNil(t, created.LastVerifiedAt)
	assert.Equal(t, fixedNow, *created.LastVerifiedAt)
	assert.Equal(t, []string{events.ProductCreated}, pub.EventTypes())
	assert.Equal(t, 1.0, testutil.ToFloat64(svc.metrics.ProductWrites.WithLabelValues("create", "medium")))
}

func TestProductService_CreateRejectsInvalid(t *testing.T) {
	svc, repo, pub := newProductService(t)

	_, err := svc.Create(context.Background(), productInput(t, `{"barcode":"1","nameKh":"x","sugarPer100g":"abc"}`))

	var verr *rules.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "invalid data", verr.Message)
	assert.Empty(t, repo.ByID)
	assert.Empty(t, pub.EventTypes())
}

func TestProductService_DuplicateBarcode(t *testing.T) {
	svc, repo, _ := newProductService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, productInput(t, `{"barcode":"111","nameKh":"a","sugarPer100g":1}`))
	require.NoError(t, err)
	second, err := svc.Create(ctx, productInput(t, `{"barcode":"222","nameKh":"b","sugarPer100g":2}`))
	require.NoError(t, err)

	_, err = svc.Create(ctx, productInput(t, `{"barcode":"111","nameKh":"c","sugarPer100g":3}`))
	require.ErrorIs(t, err, ErrConflict)
	assert.EqualError(t, err, "barcode already exists: conflict")

	_, err = svc.Update(ctx, second.ID, productInput(t, `{"barcode":"111"}`))
	require.ErrorIs(t, err, ErrConflict)

	stored, err := repo.Get(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, "222", stored.Barcode)
}

func TestProductService_UpdateMerges(t *testing.T) {
	svc, _, pub := newProductService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, productInput(t, `{
		"barcode":"111","nameKh":"a","nameEn":"Tea","brand":"Acme",
		"sugarPer100g":4,"confidence":"verified","notes":"n"
	}`))
	require.NoError(t, err)

	updated, err := svc.Update(ctx, created.ID, productInput(t, `{"sugarPer100g":30,"confidence":"community","brand":null}`))
	require.NoError(t, err)

	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "Tea", updated.NameEn)
	assert.Equal(t, "Acme", updated.Brand)
	assert.Equal(t, "n", updated.Notes)
	assert.Equal(t, types.SugarHigh, updated.SugarLevel)
	assert.Equal(t, types.ConfidenceCommunity, updated.Confidence)
	assert.Nil(t, updated.LastVerifiedAt)
	assert.Equal(t, 30.0, updated.SugarPerServingG)
	assert.Equal(t, []string{events.ProductCreated, events.ProductUpdated}, pub.EventTypes())
}

func TestProductService_UpdateMissing(t *testing.T) {
	svc, _, _ := newProductService(t)

	_, err := svc.Update(context.Background(), "nope", productInput(t, `{"nameKh":"x"}`))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestProductService_DeleteAndLookups(t *testing.T) {
	svc, _, pub := newProductService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, productInput(t, `{"barcode":"111","nameKh":"a","sugarPer100g":10,"defaultServingSizeG":250}`))
	require.NoError(t, err)

	byBarcode, err := svc.GetByBarcode(ctx, "111")
	require.NoError(t, err)
	assert.Equal(t, 25.0, byBarcode.SugarPerServingG)

	items, total, err := svc.List(ctx, "", 0, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, 25.0, items[0].SugarPerServingG)

	require.NoError(t, svc.Delete(ctx, created.ID))
	_, err = svc.Get(ctx, created.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, created.ID), store.ErrNotFound)
	assert.Equal(t, []string{events.ProductCreated, events.ProductDeleted}, pub.EventTypes())
}

func TestProductService_PublishFailureIsNotReturned(t *testing.T) {
	svc, repo, pub := newProductService(t)
	pub.Err = errors.New("broker down")

	created, err := svc.Create(context.Background(), productInput(t, `{"barcode":"1","nameKh":"a","sugarPer100g":1}`))
	require.NoError(t, err)
	assert.Contains(t, repo.ByID, created.ID)
}

func TestProductService_Stats(t *testing.T) {
	svc, _, _ := newProductService(t)
	ctx := context.Background()

	for _, body := range []string{
		`{"barcode":"1","nameKh":"a","sugarPer100g":1,"confidence":"verified"}`,
		`{"barcode":"2","nameKh":"b","sugarPer100g":5,"confidence":"community"}`,
		`{"barcode":"3","nameKh":"c","sugarPer100g":5.1}`,
		`{"barcode":"4","nameKh":"d","sugarPer100g":22.6,"confidence":"bogus"}`,
	} {
		_, err := svc.Create(ctx, productInput(t, body))
		require.NoError(t, err)
	}

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.ProductStats{
		TotalProducts:  4,
		LowSugar:       2,
		MediumSugar:    1,
		HighSugar:      1,
		VerifiedCount:  1,
		CommunityCount: 1,
		ManualCount:    2,
	}, stats)
}

func TestProductService_StatsError(t *testing.T) {
	svc, repo, _ := newProductService(t)
	repo.FailWith = errors.New("db gone")

	_, err := svc.Stats(context.Background())
	assert.ErrorContains(t, err, "product stats: db gone")
}
