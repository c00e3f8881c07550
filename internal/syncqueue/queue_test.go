package syncqueue

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/posdesk/pkg/enums"
	"github.com/angelmondragon/posdesk/pkg/errors"
	"github.com/angelmondragon/posdesk/pkg/localstore/localstoretest"
	"github.com/angelmondragon/posdesk/pkg/logger"
)

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }

func newQueue(t *testing.T) (*Queue, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	seq := 0
	q := New(localstoretest.New(t), logger.Nop(),
		WithClock(clock.Now),
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("id-%02d", seq)
		}),
	)
	return q, clock
}

func TestQueueLifecycle(t *testing.T) {
	ctx := context.Background()
	q, clock := newQueue(t)

	item, err := q.Enqueue(ctx, Entry{
		Operation: enums.SyncOperationCreate,
		Table:     enums.CollectionSales,
		Data:      map[string]any{"id": "temp-1", "store_id": "S1"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, item.ID)

	pending := q.ListPending(ctx, nil)
	require.Len(t, pending, 1)
	assert.Equal(t, 0, pending[0].RetryCount)
	assert.Equal(t, int64(0), pending[0].LastRetry)
	assert.Equal(t, clock.now.UnixMilli(), pending[0].Timestamp)

	clock.now = clock.now.Add(time.Minute)
	require.NoError(t, q.RecordRetry(ctx, item.ID, 1, stdErrors.New("503 upstream")))

	got, ok := q.Get(ctx, item.ID)
	require.True(t, ok)
	assert.Equal(t, 1, got.RetryCount)
	assert.Equal(t, clock.now.UnixMilli(), got.LastRetry)
	require.NotNil(t, got.LastError)
	assert.Equal(t, "503 upstream", *got.LastError)

	require.NoError(t, q.Remove(ctx, item.ID))
	assert.Empty(t, q.ListPending(ctx, nil))
	assert.Zero(t, q.Count(ctx))
}

func TestListPendingFiltersByTable(t *testing.T) {
	ctx := context.Background()
	q, clock := newQueue(t)

	for _, table := range []enums.Collection{enums.CollectionSales, enums.CollectionCustomers, enums.CollectionSales} {
		clock.now = clock.now.Add(time.Second)
		_, err := q.Enqueue(ctx, Entry{Operation: enums.SyncOperationCreate, Table: table, Data: map[string]any{"id": "x"}})
		require.NoError(t, err)
	}

	sales := enums.CollectionSales
	got := q.ListPending(ctx, &sales)
	require.Len(t, got, 2)
	assert.Equal(t, "id-01", got[0].ID)
	assert.Equal(t, "id-03", got[1].ID)
	assert.Len(t, q.ListPending(ctx, nil), 3)
}

func TestEnqueueValidation(t *testing.T) {
	ctx := context.Background()
	q, _ := newQueue(t)

	cases := []Entry{
		{Operation: "upsert", Table: enums.CollectionSales, Data: map[string]any{}},
		{Operation: enums.SyncOperationCreate, Table: enums.CollectionLanguages, Data: map[string]any{}},
		{Operation: enums.SyncOperationCreate, Table: enums.CollectionSales},
		{Operation: enums.SyncOperationCreate, Table: enums.CollectionSales, Data: []int{1}},
	}
	for i, entry := range cases {
		_, err := q.Enqueue(ctx, entry)
		require.True(t, errors.IsCode(err, errors.CodeValidation), "case %d: %v", i, err)
	}
	assert.Zero(t, q.Count(ctx))
}

func TestRecordRetryUnknownItem(t *testing.T) {
	q, _ := newQueue(t)
	err := q.RecordRetry(context.Background(), "missing", 1, nil)
	require.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestRewriteRecordID(t *testing.T) {
	ctx := context.Background()
	q, _ := newQueue(t)

	_, err := q.Enqueue(ctx, Entry{Operation: enums.SyncOperationUpdate, Table: enums.CollectionCustomers, Data: map[string]any{"id": "temp-c", "name": "Ada"}})
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, Entry{Operation: enums.SyncOperationCreate, Table: enums.CollectionSales, Data: map[string]any{
		"id":          "temp-s",
		"customer_id": "temp-c",
		"items":       []any{map[string]any{"product_id": "p1"}},
	}})
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, Entry{Operation: enums.SyncOperationCreate, Table: enums.CollectionSales, Data: map[string]any{"id": "temp-other"}})
	require.NoError(t, err)

	n, err := q.RewriteRecordID(ctx, "temp-c", "C-100")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, item := range q.ListPending(ctx, nil) {
		var data map[string]any
		require.NoError(t, json.Unmarshal(item.Data, &data))
		assert.NotContains(t, string(item.Data), "temp-c\"")
		if item.Table == enums.CollectionSales && data["id"] == "temp-s" {
			assert.Equal(t, "C-100", data["customer_id"])
		}
	}

	n, err = q.RewriteRecordID(ctx, "same", "same")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDropForRecord(t *testing.T) {
	ctx := context.Background()
	q, _ := newQueue(t)

	_, err := q.Enqueue(ctx, Entry{Operation: enums.SyncOperationCreate, Table: enums.CollectionCustomers, Data: map[string]any{"id": "temp-c"}})
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, Entry{Operation: enums.SyncOperationUpdate, Table: enums.CollectionCustomers, Data: map[string]any{"id": "temp-c", "name": "x"}})
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, Entry{Operation: enums.SyncOperationCreate, Table: enums.CollectionCustomers, Data: map[string]any{"id": "temp-d"}})
	require.NoError(t, err)

	dropped, err := q.DropForRecord(ctx, enums.CollectionCustomers, "temp-c")
	require.NoError(t, err)
	assert.Equal(t, 2, dropped)
	assert.EqualValues(t, 1, q.Count(ctx))
}

func TestRecordIDUsesCollectionKey(t *testing.T) {
	ctx := context.Background()
	q, _ := newQueue(t)

	item, err := q.Enqueue(ctx, Entry{Operation: enums.SyncOperationUpdate, Table: enums.CollectionStoreSettings, Data: map[string]any{"store_id": "ST1", "tax_rate": 7.5}})
	require.NoError(t, err)
	assert.Equal(t, "ST1", q.RecordID(item))
}

func TestDeadLetterRequeueAndPurge(t *testing.T) {
	ctx := context.Background()
	q, clock := newQueue(t)

	item, err := q.Enqueue(ctx, Entry{Operation: enums.SyncOperationCreate, Table: enums.CollectionSales, Data: map[string]any{"id": "temp-1"}})
	require.NoError(t, err)
	item.RetryCount = 8

	dl, err := q.DeadLetter(ctx, item, enums.DeadLetterReasonMaxAttempts, stdErrors.New("gave up"))
	require.NoError(t, err)
	assert.Equal(t, item.ID, dl.QueueID)
	assert.Zero(t, q.Count(ctx))

	letters := q.ListDeadLetters(ctx, 10)
	require.Len(t, letters, 1)
	assert.Equal(t, enums.DeadLetterReasonMaxAttempts, letters[0].Reason)
	assert.Equal(t, 8, letters[0].RetryCount)

	requeued, err := q.Requeue(ctx, dl.ID)
	require.NoError(t, err)
	assert.Equal(t, item.ID, requeued.ID)
	assert.Zero(t, requeued.RetryCount)
	assert.Empty(t, q.ListDeadLetters(ctx, 0))
	assert.EqualValues(t, 1, q.Count(ctx))

	_, err = q.DeadLetter(ctx, requeued, enums.DeadLetterReasonNonRetryable, nil)
	require.NoError(t, err)

	n, err := q.PurgeDeadLettersBefore(ctx, clock.now)
	require.NoError(t, err)
	assert.Zero(t, n, "cutoff is exclusive")

	n, err = q.PurgeDeadLettersBefore(ctx, clock.now.Add(time.Millisecond))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = q.DeadLetter(ctx, requeued, "bogus", nil)
	require.True(t, errors.IsCode(err, errors.CodeValidation))
	_, err = q.Requeue(ctx, "missing")
	require.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestTruncateKeepsRuneBoundary(t *testing.T) {
	msg := strings.Repeat("a", maxErrorLen-1) + "ñ" + "tail"
	got := truncate(msg)
	assert.True(t, utf8.ValidString(got), "truncated message must stay valid UTF-8")
	assert.Equal(t, maxErrorLen-1, len(got))

	short := "upstream responded 503"
	assert.Equal(t, short, truncate(short))
}

func TestDeadLetterStoresValidUTF8Error(t *testing.T) {
	ctx := context.Background()
	q, _ := newQueue(t)
	item, err := q.Enqueue(ctx, Entry{
		Operation: enums.SyncOperationUpdate,
		Table:     enums.CollectionCustomers,
		Data:      map[string]any{"id": "c-1"},
	})
	require.NoError(t, err)

	cause := stdErrors.New(strings.Repeat("é", maxErrorLen))
	require.NoError(t, q.RecordRetry(ctx, item.ID, 1, cause))
	got, ok := q.Get(ctx, item.ID)
	require.True(t, ok)
	require.NotNil(t, got.LastError)
	assert.True(t, utf8.ValidString(*got.LastError))
	assert.LessOrEqual(t, len(*got.LastError), maxErrorLen)
}

func TestDefaultIDsKeepEnqueueOrderWithinOneMillisecond(t *testing.T) {
	ctx := context.Background()
	clock := &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	q := New(localstoretest.New(t), logger.Nop(), WithClock(clock.Now))

	var want []string
	for i := 0; i < 20; i++ {
		item, err := q.Enqueue(ctx, Entry{
			Operation: enums.SyncOperationUpdate,
			Table:     enums.CollectionProducts,
			Data:      map[string]any{"id": "P1", "n": i},
		})
		require.NoError(t, err)
		want = append(want, item.ID)
	}

	var got []string
	for _, item := range q.ListPending(ctx, nil) {
		got = append(got, item.ID)
	}
	assert.Equal(t, want, got)
}
