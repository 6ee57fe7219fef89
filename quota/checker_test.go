package quota

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aidash-backend/subscriptions"
)

// fakeSubStore returns a canned subscription row.
type fakeSubStore struct {
	sub   *subscriptions.Subscription
	calls int
}

func (f *fakeSubStore) GetByUserID(ctx context.Context, userID int) (*subscriptions.Subscription, error) {
	f.calls++
	return f.sub, nil
}

// memUsage is an in-memory UsageStore with the same atomic-increment
// contract as the MySQL ledger.
type memUsage struct {
	mu     sync.Mutex
	counts map[int]int
	gets   int
}

func newMemUsage() *memUsage {
	return &memUsage{counts: map[int]int{}}
}

func (m *memUsage) Get(ctx context.Context, userID int) (*UsageRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	count, ok := m.counts[userID]
	if !ok {
		return nil, nil
	}
	return &UsageRecord{UserID: userID, Count: count}, nil
}

func (m *memUsage) Increment(ctx context.Context, userID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[userID]++
	return nil
}

func newTestChecker(sub *subscriptions.Subscription, usage UsageStore) *Checker {
	return &Checker{
		Subs:      &fakeSubStore{sub: sub},
		Usage:     usage,
		FreeLimit: 5,
		now:       time.Now,
	}
}

func TestCheckFreshUserHasFullAllotment(t *testing.T) {
	c := newTestChecker(nil, newMemUsage())

	ent, err := c.Check(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, ent.HasActiveSubscription)
	assert.Equal(t, 5, ent.RemainingFreeUses)
}

func TestCheckRemainingDecreasesWithUsage(t *testing.T) {
	usage := newMemUsage()
	usage.counts[1] = 3
	c := newTestChecker(nil, usage)

	ent, err := c.Check(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, ent.RemainingFreeUses)
}

func TestCheckRemainingFloorsAtZero(t *testing.T) {
	usage := newMemUsage()
	usage.counts[1] = 9
	c := newTestChecker(nil, usage)

	ent, err := c.Check(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 0, ent.RemainingFreeUses)
}

func TestCheckActiveSubscriptionSkipsLedger(t *testing.T) {
	end := time.Now().Add(24 * time.Hour)
	sub := &subscriptions.Subscription{Status: subscriptions.StatusActive, CurrentPeriodEnd: &end}
	usage := newMemUsage()
	usage.counts[1] = 999
	c := newTestChecker(sub, usage)

	ent, err := c.Check(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, ent.HasActiveSubscription)
	assert.Equal(t, 0, usage.gets, "ledger must not be consulted for subscribers")
}

func TestCheckExpiredSubscriptionFallsBackToFreeTier(t *testing.T) {
	end := time.Now().Add(-time.Hour)
	sub := &subscriptions.Subscription{Status: subscriptions.StatusActive, CurrentPeriodEnd: &end}
	usage := newMemUsage()
	usage.counts[1] = 5
	c := newTestChecker(sub, usage)

	ent, err := c.Check(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, ent.HasActiveSubscription)
	assert.Equal(t, 0, ent.RemainingFreeUses)
}

func TestCheckNonActiveStatusesAreFreeTier(t *testing.T) {
	for _, status := range []subscriptions.Status{
		subscriptions.StatusPending,
		subscriptions.StatusCanceled,
		subscriptions.StatusPastDue,
	} {
		c := newTestChecker(&subscriptions.Subscription{Status: status}, newMemUsage())
		ent, err := c.Check(context.Background(), 1)
		require.NoError(t, err)
		assert.False(t, ent.HasActiveSubscription, "status %s", status)
	}
}

func TestConcurrentIncrementsLoseNothing(t *testing.T) {
	usage := newMemUsage()
	const n = 64

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = usage.Increment(context.Background(), 1)
		}()
	}
	wg.Wait()

	rec, err := usage.Get(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, n, rec.Count)
}
