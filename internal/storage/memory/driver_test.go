package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MadlinksCoding/modstore/internal/storage"
)

func testTable() *storage.CreateTableInput {
	return &storage.CreateTableInput{
		TableName: "t",
		Keys:      storage.KeySchema{PartitionKey: "pk", RangeKey: "sk"},
		Attributes: map[string]storage.AttributeType{
			"pk":     storage.AttributeString,
			"sk":     storage.AttributeString,
			"status": storage.AttributeString,
			"ts":     storage.AttributeNumber,
		},
		Indexes: []storage.IndexSpec{
			{
				Name:             "StatusTs",
				Keys:             storage.KeySchema{PartitionKey: "status", RangeKey: "ts"},
				Projection:       storage.ProjectionInclude,
				NonKeyAttributes: []string{"flag"},
			},
			{
				Name:       "IdOnly",
				Keys:       storage.KeySchema{PartitionKey: "id"},
				Projection: storage.ProjectionKeysOnly,
			},
		},
	}
}

func newTestDriver(t *testing.T) *Driver {
	t.Helper()
	d := New()
	require.NoError(t, d.CreateTable(context.Background(), testTable()))
	return d
}

func put(t *testing.T, d *Driver, item map[string]any) {
	t.Helper()
	require.NoError(t, d.PutItem(context.Background(), &storage.PutInput{
		TableName: "t",
		Item:      item,
	}))
}

func TestCreateTableTwice(t *testing.T) {
	d := newTestDriver(t)
	err := d.CreateTable(context.Background(), testTable())
	assert.ErrorIs(t, err, storage.ErrResourceInUse)
}

func TestPutGetDelete(t *testing.T) {
	ctx := context.Background()
	d := newTestDriver(t)
	put(t, d, map[string]any{"pk": "a", "sk": "1", "status": "open", "ts": int64(10)})

	got, err := d.GetItem(ctx, &storage.GetInput{TableName: "t", Key: map[string]any{"pk": "a", "sk": "1"}})
	require.NoError(t, err)
	assert.Equal(t, "open", got["status"])

	// Returned items are copies; mutating them must not touch the store.
	got["status"] = "mutated"
	again, err := d.GetItem(ctx, &storage.GetInput{TableName: "t", Key: map[string]any{"pk": "a", "sk": "1"}})
	require.NoError(t, err)
	assert.Equal(t, "open", again["status"])

	require.NoError(t, d.DeleteItem(ctx, &storage.DeleteInput{TableName: "t", Key: map[string]any{"pk": "a", "sk": "1"}}))
	gone, err := d.GetItem(ctx, &storage.GetInput{TableName: "t", Key: map[string]any{"pk": "a", "sk": "1"}})
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestConditionalPut(t *testing.T) {
	ctx := context.Background()
	d := newTestDriver(t)

	notExists := &storage.PutInput{
		TableName:                "t",
		Item:                     map[string]any{"pk": "a", "sk": "1", "meta": map[string]any{"version": int64(1)}},
		ConditionExpression:      "attribute_not_exists(#pk) AND attribute_not_exists(#sk)",
		ExpressionAttributeNames: map[string]string{"#pk": "pk", "#sk": "sk"},
	}
	require.NoError(t, d.PutItem(ctx, notExists))
	assert.ErrorIs(t, d.PutItem(ctx, notExists), storage.ErrConditionalCheckFailed)

	// Version guard on a nested path.
	guarded := func(expected, next int64) error {
		return d.PutItem(ctx, &storage.PutInput{
			TableName:                 "t",
			Item:                      map[string]any{"pk": "a", "sk": "1", "meta": map[string]any{"version": next}},
			ConditionExpression:       "#meta.#version = :expectedVersion",
			ExpressionAttributeNames:  map[string]string{"#meta": "meta", "#version": "version"},
			ExpressionAttributeValues: map[string]any{":expectedVersion": expected},
		})
	}
	require.NoError(t, guarded(1, 2))
	assert.ErrorIs(t, guarded(1, 3), storage.ErrConditionalCheckFailed)
	require.NoError(t, guarded(2, 3))
}

func TestQuerySortAndPaging(t *testing.T) {
	ctx := context.Background()
	d := newTestDriver(t)
	for i := 1; i <= 5; i++ {
		put(t, d, map[string]any{
			"pk": "a", "sk": fmt.Sprintf("%d", i),
			"status": "open", "ts": int64(i * 10), "flag": i%2 == 0,
		})
	}

	query := func(limit int, forward bool, start map[string]any) *storage.Page {
		page, err := d.Query(ctx, &storage.QueryInput{
			TableName:                 "t",
			IndexName:                 "StatusTs",
			KeyConditionExpression:    "#status = :s",
			ExpressionAttributeNames:  map[string]string{"#status": "status"},
			ExpressionAttributeValues: map[string]any{":s": "open"},
			Limit:                     limit,
			ScanIndexForward:          forward,
			ExclusiveStartKey:         start,
		})
		require.NoError(t, err)
		return page
	}

	asc := query(10, true, nil)
	require.Len(t, asc.Items, 5)
	assert.Equal(t, int64(10), asc.Items[0]["ts"])
	assert.Nil(t, asc.LastEvaluatedKey)

	desc := query(10, false, nil)
	assert.Equal(t, int64(50), desc.Items[0]["ts"])

	// Paging: 2 + 2 + 1.
	page1 := query(2, true, nil)
	require.Len(t, page1.Items, 2)
	require.NotNil(t, page1.LastEvaluatedKey)
	page2 := query(2, true, page1.LastEvaluatedKey)
	require.Len(t, page2.Items, 2)
	page3 := query(2, true, page2.LastEvaluatedKey)
	require.Len(t, page3.Items, 1)
	assert.Nil(t, page3.LastEvaluatedKey)
	assert.Equal(t, int64(50), page3.Items[0]["ts"])
}

func TestQueryLimitAppliesBeforeFilter(t *testing.T) {
	ctx := context.Background()
	d := newTestDriver(t)
	// Five items, only the last matches the filter.
	for i := 1; i <= 5; i++ {
		put(t, d, map[string]any{
			"pk": "a", "sk": fmt.Sprintf("%d", i),
			"status": "open", "ts": int64(i * 10), "flag": i == 5,
		})
	}
	page, err := d.Query(ctx, &storage.QueryInput{
		TableName:                 "t",
		IndexName:                 "StatusTs",
		KeyConditionExpression:    "#status = :s",
		FilterExpression:          "#flag = :want",
		ExpressionAttributeNames:  map[string]string{"#status": "status", "#flag": "flag"},
		ExpressionAttributeValues: map[string]any{":s": "open", ":want": true},
		Limit:                     2,
		ScanIndexForward:          true,
	})
	require.NoError(t, err)
	// The window held items 1-2, neither passes the filter; more remain.
	assert.Empty(t, page.Items)
	assert.NotNil(t, page.LastEvaluatedKey)
}

func TestQueryRangeOperators(t *testing.T) {
	ctx := context.Background()
	d := newTestDriver(t)
	for i := 1; i <= 5; i++ {
		put(t, d, map[string]any{
			"pk": "a", "sk": fmt.Sprintf("%d", i), "status": "open", "ts": int64(i * 10),
		})
	}
	count := func(keyCond string, values map[string]any) int {
		values[":s"] = "open"
		page, err := d.Query(ctx, &storage.QueryInput{
			TableName:                 "t",
			IndexName:                 "StatusTs",
			KeyConditionExpression:    keyCond,
			ExpressionAttributeNames:  map[string]string{"#status": "status", "#ts": "ts"},
			ExpressionAttributeValues: values,
			Select:                    storage.SelectCount,
		})
		require.NoError(t, err)
		assert.Nil(t, page.Items)
		return page.Count
	}
	assert.Equal(t, 3, count("#status = :s AND #ts BETWEEN :lo AND :hi",
		map[string]any{":lo": int64(20), ":hi": int64(40)}))
	assert.Equal(t, 2, count("#status = :s AND #ts >= :lo", map[string]any{":lo": int64(40)}))
	assert.Equal(t, 2, count("#status = :s AND #ts <= :hi", map[string]any{":hi": int64(20)}))
}

func TestBeginsWithAndExistence(t *testing.T) {
	ctx := context.Background()
	d := newTestDriver(t)
	put(t, d, map[string]any{"pk": "a", "sk": "pending#100", "status": "open", "ts": int64(1), "extra": "x"})
	put(t, d, map[string]any{"pk": "a", "sk": "approved#200", "status": "open", "ts": int64(2)})

	page, err := d.Query(ctx, &storage.QueryInput{
		TableName:                 "t",
		KeyConditionExpression:    "#pk = :pk AND begins_with(#sk, :prefix)",
		ExpressionAttributeNames:  map[string]string{"#pk": "pk", "#sk": "sk"},
		ExpressionAttributeValues: map[string]any{":pk": "a", ":prefix": "pending#"},
	})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "pending#100", page.Items[0]["sk"])

	page, err = d.Query(ctx, &storage.QueryInput{
		TableName:                 "t",
		KeyConditionExpression:    "#pk = :pk",
		FilterExpression:          "attribute_exists(#extra)",
		ExpressionAttributeNames:  map[string]string{"#pk": "pk", "#extra": "extra"},
		ExpressionAttributeValues: map[string]any{":pk": "a"},
	})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)

	page, err = d.Query(ctx, &storage.QueryInput{
		TableName:                 "t",
		KeyConditionExpression:    "#pk = :pk",
		FilterExpression:          "attribute_not_exists(#extra)",
		ExpressionAttributeNames:  map[string]string{"#pk": "pk", "#extra": "extra"},
		ExpressionAttributeValues: map[string]any{":pk": "a"},
	})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
}

func TestSparseIndexHidesItemsWithoutKeys(t *testing.T) {
	ctx := context.Background()
	d := newTestDriver(t)
	put(t, d, map[string]any{"pk": "a", "sk": "1", "status": "open", "ts": int64(1)})
	put(t, d, map[string]any{"pk": "a", "sk": "2"}) // no status/ts: invisible to the GSI

	page, err := d.Query(ctx, &storage.QueryInput{
		TableName:                 "t",
		IndexName:                 "StatusTs",
		KeyConditionExpression:    "#status = :s",
		ExpressionAttributeNames:  map[string]string{"#status": "status"},
		ExpressionAttributeValues: map[string]any{":s": "open"},
	})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
}

func TestKeysOnlyProjection(t *testing.T) {
	ctx := context.Background()
	d := newTestDriver(t)
	put(t, d, map[string]any{"pk": "a", "sk": "1", "id": "m-1", "status": "open", "ts": int64(1), "secret": "hidden"})

	page, err := d.Query(ctx, &storage.QueryInput{
		TableName:                 "t",
		IndexName:                 "IdOnly",
		KeyConditionExpression:    "#id = :id",
		ExpressionAttributeNames:  map[string]string{"#id": "id"},
		ExpressionAttributeValues: map[string]any{":id": "m-1"},
	})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	item := page.Items[0]
	assert.Equal(t, "a", item["pk"])
	assert.Equal(t, "1", item["sk"])
	assert.Equal(t, "m-1", item["id"])
	assert.NotContains(t, item, "secret")
	assert.NotContains(t, item, "status")
}

func TestScan(t *testing.T) {
	ctx := context.Background()
	d := newTestDriver(t)
	for i := 1; i <= 3; i++ {
		put(t, d, map[string]any{"pk": "a", "sk": fmt.Sprintf("%d", i), "ts": int64(i)})
	}
	page, err := d.Scan(ctx, &storage.ScanInput{
		TableName:                 "t",
		FilterExpression:          "#ts >= :lo",
		ExpressionAttributeNames:  map[string]string{"#ts": "ts"},
		ExpressionAttributeValues: map[string]any{":lo": int64(2)},
	})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
}

func TestHooksInjectFailures(t *testing.T) {
	ctx := context.Background()
	d := newTestDriver(t)
	boom := errors.New("boom")

	d.PutHook = func(*storage.PutInput) error { return storage.ErrThrottled }
	err := d.PutItem(ctx, &storage.PutInput{TableName: "t", Item: map[string]any{"pk": "a", "sk": "1"}})
	assert.ErrorIs(t, err, storage.ErrThrottled)
	d.PutHook = nil

	d.QueryHook = func(*storage.QueryInput) error { return boom }
	_, err = d.Query(ctx, &storage.QueryInput{TableName: "t", KeyConditionExpression: "#pk = :pk",
		ExpressionAttributeNames:  map[string]string{"#pk": "pk"},
		ExpressionAttributeValues: map[string]any{":pk": "a"}})
	assert.ErrorIs(t, err, boom)
}

func TestUnknownTableAndIndex(t *testing.T) {
	ctx := context.Background()
	d := newTestDriver(t)

	_, err := d.GetItem(ctx, &storage.GetInput{TableName: "nope", Key: map[string]any{"pk": "a", "sk": "1"}})
	assert.ErrorIs(t, err, storage.ErrResourceNotFound)

	_, err = d.Query(ctx, &storage.QueryInput{TableName: "t", IndexName: "nope",
		KeyConditionExpression:    "#pk = :pk",
		ExpressionAttributeNames:  map[string]string{"#pk": "pk"},
		ExpressionAttributeValues: map[string]any{":pk": "a"}})
	assert.ErrorIs(t, err, storage.ErrResourceNotFound)
}
