package services

import (
	"testing"
	"time"

	"github.com/cambosugarscan/apiserver/internal/logging"
	"github.com/cambosugarscan/apiserver/internal/metrics"
	"github.com/cambosugarscan/apiserver/internal/testutil"
	"github.com/prometheus/client_golang/prometheus"
)

var fixedNow = testutil.Now

func clock() time.Time { return fixedNow }

// plainHasher keeps tests fast; bcrypt is covered separately.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "hashed:" + password, nil }

func (plainHasher) Compare(hash, password string) error {
	if hash != "hashed:"+password {
		return ErrInvalidCredentials
	}
	return nil
}

func newTestMetrics(t *testing.T) *metrics.Metrics {
	t.Helper()
	return metrics.New(prometheus.NewRegistry())
}

func newProductService(t *testing.T) (*ProductService, *testutil.MemProducts, *testutil.RecordingPublisher) {
	t.Helper()
	repo := testutil.NewMemProducts()
	pub := &testutil.RecordingPublisher{}
	svc := NewProductService(repo, pub, newTestMetrics(t), logging.Nop())
	svc.now = clock
	return svc, repo, pub
}

func newUserService(t *testing.T) (*UserService, *testutil.MemUsers, *testutil.RecordingPublisher) {
	t.Helper()
	repo := testutil.NewMemUsers()
	pub := &testutil.RecordingPublisher{}
	svc := NewUserService(repo, plainHasher{}, pub, newTestMetrics(t), logging.Nop())
	svc.now = clock
	return svc, repo, pub
}
