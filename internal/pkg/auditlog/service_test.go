package auditlog

import (
	"context"
	"testing"
	"time"

	"github.com/paywise/tiersync/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	records  []*models.TierAuditRecord
	eventIDs map[string]bool
	nextID   uint
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{eventIDs: map[string]bool{}}
}

func (r *fakeRepo) Insert(rec *models.TierAuditRecord) (AppendResult, error) {
	if rec.ProcessorEventID != nil && *rec.ProcessorEventID != "" {
		if r.eventIDs[*rec.ProcessorEventID] {
			return AppendDuplicate, nil
		}
		r.eventIDs[*rec.ProcessorEventID] = true
	}
	r.nextID++
	rec.ID = r.nextID
	r.records = append(r.records, rec)
	return AppendStored, nil
}

func (r *fakeRepo) HasEvent(eventID string) (bool, error) {
	return r.eventIDs[eventID], nil
}

func (r *fakeRepo) ListByAccount(accountID uint, limit int) ([]models.TierAuditRecord, error) {
	var out []models.TierAuditRecord
	for i := len(r.records) - 1; i >= 0; i-- {
		if r.records[i].AccountID == accountID {
			out = append(out, *r.records[i])
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *fakeRepo) AggregateByReason(start, end time.Time) ([]ReasonDailyStat, error) {
	return nil, nil
}

func TestAppendIsIdempotentOnEventID(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	evtID := "evt_1"

	res, err := svc.Append(context.Background(), &models.TierAuditRecord{
		AccountID: 1, ProcessorEventID: &evtID, PreviousTier: "free", NewTier: "premium",
		ChangeReason: models.ChangeReasonProcessorEvent,
	})
	require.NoError(t, err)
	assert.Equal(t, AppendStored, res)

	res, err = svc.Append(context.Background(), &models.TierAuditRecord{
		AccountID: 1, ProcessorEventID: &evtID, PreviousTier: "free", NewTier: "premium",
		ChangeReason: models.ChangeReasonProcessorEvent,
	})
	require.NoError(t, err)
	assert.Equal(t, AppendDuplicate, res)
	assert.Len(t, repo.records, 1)

	seen, err := svc.HasEvent(context.Background(), evtID)
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestAppendWithoutEventIDAlwaysStores(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	for i := 0; i < 2; i++ {
		res, err := svc.Append(context.Background(), &models.TierAuditRecord{
			AccountID: 1, PreviousTier: "premium", NewTier: "admin",
			ChangeReason: models.ChangeReasonManualAdmin,
		})
		require.NoError(t, err)
		assert.Equal(t, AppendStored, res)
	}
	assert.Len(t, repo.records, 2)
}

func TestHasEventEmptyID(t *testing.T) {
	svc := NewService(newFakeRepo())
	seen, err := svc.HasEvent(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestHistoryForNewestFirst(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	for _, tier := range []string{"premium", "premium_max", "free"} {
		_, err := svc.Append(context.Background(), &models.TierAuditRecord{
			AccountID: 7, NewTier: tier, ChangeReason: models.ChangeReasonProcessorEvent,
		})
		require.NoError(t, err)
	}

	recs, err := svc.HistoryFor(context.Background(), 7, 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "free", recs[0].NewTier)
	assert.Equal(t, "premium_max", recs[1].NewTier)

	_, err = svc.HistoryFor(context.Background(), 0, 10)
	assert.Error(t, err)
}

func TestAnalyticsValidatesRange(t *testing.T) {
	svc := NewService(newFakeRepo())
	now := time.Now()
	_, err := svc.Analytics(context.Background(), now, now)
	assert.Error(t, err)
}
