// Package memory provides an in-memory Driver with DynamoDB-shaped
// semantics for tests and local development.
//
// The driver consumes the same table definition as production, maintains
// every secondary index, evaluates the expression grammar the engine
// emits, and reproduces the storage behaviors the engine has to cope
// with: Limit applies before the filter expression, index queries sort by
// the index range key, and conditional writes fail with the shared
// sentinel errors. Hook fields inject failures for retry tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/MadlinksCoding/modstore/internal/storage"
)

type table struct {
	spec  *storage.CreateTableInput
	items map[string]map[string]any // key: pk + "\x00" + sk
}

// Driver is a thread-safe in-memory storage.Driver.
type Driver struct {
	mu     sync.RWMutex
	tables map[string]*table

	// Failure-injection hooks. A non-nil hook runs before the operation;
	// a non-nil return aborts it with that error.
	PutHook    func(*storage.PutInput) error
	GetHook    func(*storage.GetInput) error
	DeleteHook func(*storage.DeleteInput) error
	QueryHook  func(*storage.QueryInput) error
	ScanHook   func(*storage.ScanInput) error
}

// New returns an empty driver.
func New() *Driver {
	return &Driver{tables: make(map[string]*table)}
}

func itemKey(item map[string]any, keys storage.KeySchema) (string, error) {
	pk, ok := item[keys.PartitionKey].(string)
	if !ok {
		return "", fmt.Errorf("item missing partition key %q", keys.PartitionKey)
	}
	sk := ""
	if keys.RangeKey != "" {
		if sk, ok = item[keys.RangeKey].(string); !ok {
			return "", fmt.Errorf("item missing range key %q", keys.RangeKey)
		}
	}
	return pk + "\x00" + sk, nil
}

// CreateTable registers a table definition. Re-creating an existing table
// fails with ErrResourceInUse, matching the production service.
func (d *Driver) CreateTable(ctx context.Context, in *storage.CreateTableInput) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.tables[in.TableName]; exists {
		return storage.ErrResourceInUse
	}
	d.tables[in.TableName] = &table{spec: in, items: make(map[string]map[string]any)}
	return nil
}

func (d *Driver) tableFor(name string) (*table, error) {
	t, ok := d.tables[name]
	if !ok {
		return nil, storage.ErrResourceNotFound
	}
	return t, nil
}

// PutItem stores a full item, evaluating any condition expression against
// the current stored state first.
func (d *Driver) PutItem(ctx context.Context, in *storage.PutInput) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.PutHook != nil {
		if err := d.PutHook(in); err != nil {
			return err
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	t, err := d.tableFor(in.TableName)
	if err != nil {
		return err
	}
	key, err := itemKey(in.Item, t.spec.Keys)
	if err != nil {
		return err
	}
	if in.ConditionExpression != "" {
		conds, err := parseExpression(in.ConditionExpression)
		if err != nil {
			return err
		}
		existing := t.items[key] // nil map: every path resolves absent
		ok, err := evalConditions(existing, conds, in.ExpressionAttributeNames, in.ExpressionAttributeValues)
		if err != nil {
			return err
		}
		if !ok {
			return storage.ErrConditionalCheckFailed
		}
	}
	t.items[key] = deepCopy(in.Item)
	return nil
}

// GetItem reads one item by primary key; absent items return nil, nil.
func (d *Driver) GetItem(ctx context.Context, in *storage.GetInput) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.GetHook != nil {
		if err := d.GetHook(in); err != nil {
			return nil, err
		}
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	t, err := d.tableFor(in.TableName)
	if err != nil {
		return nil, err
	}
	key, err := itemKey(in.Key, t.spec.Keys)
	if err != nil {
		return nil, err
	}
	item, ok := t.items[key]
	if !ok {
		return nil, nil
	}
	return deepCopy(item), nil
}

// DeleteItem removes one item by primary key. Deleting an absent item is
// not an error.
func (d *Driver) DeleteItem(ctx context.Context, in *storage.DeleteInput) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.DeleteHook != nil {
		if err := d.DeleteHook(in); err != nil {
			return err
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	t, err := d.tableFor(in.TableName)
	if err != nil {
		return err
	}
	key, err := itemKey(in.Key, t.spec.Keys)
	if err != nil {
		return err
	}
	delete(t.items, key)
	return nil
}

// Query evaluates a key condition against the base table or one of the
// secondary indexes. Results sort by the index range key; Limit applies
// before the filter expression, exactly like the production service.
func (d *Driver) Query(ctx context.Context, in *storage.QueryInput) (*storage.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.QueryHook != nil {
		if err := d.QueryHook(in); err != nil {
			return nil, err
		}
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	t, err := d.tableFor(in.TableName)
	if err != nil {
		return nil, err
	}

	keys := t.spec.Keys
	var projection storage.Projection = storage.ProjectionAll
	var nonKeyAttrs []string
	if in.IndexName != "" {
		spec, ok := findIndex(t.spec, in.IndexName)
		if !ok {
			return nil, storage.ErrResourceNotFound
		}
		keys = spec.Keys
		projection = spec.Projection
		nonKeyAttrs = spec.NonKeyAttributes
	}

	conds, err := parseExpression(in.KeyConditionExpression)
	if err != nil {
		return nil, err
	}
	var matched []map[string]any
	for _, item := range t.items {
		// GSIs are sparse: items without the index keys are invisible.
		if _, ok := item[keys.PartitionKey]; !ok {
			continue
		}
		if keys.RangeKey != "" {
			if _, ok := item[keys.RangeKey]; !ok {
				continue
			}
		}
		ok, err := evalConditions(item, conds, in.ExpressionAttributeNames, in.ExpressionAttributeValues)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, item)
		}
	}
	sortItems(matched, keys, t.spec.Keys, in.ScanIndexForward)

	matched = afterStartKey(matched, in.ExclusiveStartKey, t.spec.Keys)
	window, lastKey := applyLimit(matched, in.Limit, keys, t.spec.Keys)

	return d.buildPage(window, lastKey, in.FilterExpression,
		in.ExpressionAttributeNames, in.ExpressionAttributeValues,
		in.Select, projection, keys, t.spec.Keys, nonKeyAttrs)
}

// Scan walks the whole base table in key order.
func (d *Driver) Scan(ctx context.Context, in *storage.ScanInput) (*storage.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.ScanHook != nil {
		if err := d.ScanHook(in); err != nil {
			return nil, err
		}
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	t, err := d.tableFor(in.TableName)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(t.items))
	for _, item := range t.items {
		items = append(items, item)
	}
	sortItems(items, t.spec.Keys, t.spec.Keys, true)

	items = afterStartKey(items, in.ExclusiveStartKey, t.spec.Keys)
	window, lastKey := applyLimit(items, in.Limit, t.spec.Keys, t.spec.Keys)

	return d.buildPage(window, lastKey, in.FilterExpression,
		in.ExpressionAttributeNames, in.ExpressionAttributeValues,
		in.Select, storage.ProjectionAll, t.spec.Keys, t.spec.Keys, nil)
}

func (d *Driver) buildPage(window []map[string]any, lastKey map[string]any,
	filterExpr string, names map[string]string, values map[string]any,
	sel storage.Select, projection storage.Projection,
	indexKeys, tableKeys storage.KeySchema, nonKeyAttrs []string) (*storage.Page, error) {

	filtered := window
	if filterExpr != "" {
		conds, err := parseExpression(filterExpr)
		if err != nil {
			return nil, err
		}
		filtered = filtered[:0:0]
		for _, item := range window {
			ok, err := evalConditions(item, conds, names, values)
			if err != nil {
				return nil, err
			}
			if ok {
				filtered = append(filtered, item)
			}
		}
	}
	page := &storage.Page{Count: len(filtered), LastEvaluatedKey: lastKey}
	if sel != storage.SelectCount {
		page.Items = make([]map[string]any, 0, len(filtered))
		for _, item := range filtered {
			page.Items = append(page.Items, project(item, projection, indexKeys, tableKeys, nonKeyAttrs))
		}
	}
	return page, nil
}

func findIndex(spec *storage.CreateTableInput, name string) (storage.IndexSpec, bool) {
	for _, idx := range spec.Indexes {
		if idx.Name == name {
			return idx, true
		}
	}
	return storage.IndexSpec{}, false
}

// sortItems orders by the index range key (numeric or byte-wise per the
// value), breaking ties on the table primary key for determinism.
func sortItems(items []map[string]any, indexKeys, tableKeys storage.KeySchema, ascending bool) {
	less := func(a, b map[string]any) bool {
		if indexKeys.RangeKey != "" {
			if cmp, err := compareValues(a[indexKeys.RangeKey], b[indexKeys.RangeKey]); err == nil && cmp != 0 {
				return cmp < 0
			}
		}
		ka, _ := itemKey(a, tableKeys)
		kb, _ := itemKey(b, tableKeys)
		return ka < kb
	}
	sort.SliceStable(items, func(i, j int) bool {
		if ascending {
			return less(items[i], items[j])
		}
		return less(items[j], items[i])
	})
}

// afterStartKey resumes iteration after the item named by an exclusive
// start key, matching on the table primary key.
func afterStartKey(items []map[string]any, startKey map[string]any, tableKeys storage.KeySchema) []map[string]any {
	if len(startKey) == 0 {
		return items
	}
	want, err := itemKey(startKey, tableKeys)
	if err != nil {
		return items
	}
	for i, item := range items {
		if key, err := itemKey(item, tableKeys); err == nil && key == want {
			return items[i+1:]
		}
	}
	return items
}

// applyLimit takes the pre-filter window and, when more items remain,
// builds the LastEvaluatedKey from the final item in the window.
func applyLimit(items []map[string]any, limit int, indexKeys, tableKeys storage.KeySchema) ([]map[string]any, map[string]any) {
	if limit <= 0 || len(items) <= limit {
		return items, nil
	}
	window := items[:limit]
	last := window[len(window)-1]
	lastKey := map[string]any{
		tableKeys.PartitionKey: last[tableKeys.PartitionKey],
	}
	if tableKeys.RangeKey != "" {
		lastKey[tableKeys.RangeKey] = last[tableKeys.RangeKey]
	}
	if indexKeys.PartitionKey != tableKeys.PartitionKey {
		lastKey[indexKeys.PartitionKey] = last[indexKeys.PartitionKey]
		if indexKeys.RangeKey != "" {
			lastKey[indexKeys.RangeKey] = last[indexKeys.RangeKey]
		}
	}
	return window, lastKey
}

// project applies the index projection to an item copy.
func project(item map[string]any, projection storage.Projection,
	indexKeys, tableKeys storage.KeySchema, nonKeyAttrs []string) map[string]any {

	switch projection {
	case storage.ProjectionKeysOnly:
		out := map[string]any{}
		for _, attr := range []string{tableKeys.PartitionKey, tableKeys.RangeKey,
			indexKeys.PartitionKey, indexKeys.RangeKey} {
			if attr == "" {
				continue
			}
			if v, ok := item[attr]; ok {
				out[attr] = deepCopyValue(v)
			}
		}
		return out
	case storage.ProjectionInclude:
		out := map[string]any{}
		keep := map[string]struct{}{
			tableKeys.PartitionKey: {},
			indexKeys.PartitionKey: {},
		}
		if tableKeys.RangeKey != "" {
			keep[tableKeys.RangeKey] = struct{}{}
		}
		if indexKeys.RangeKey != "" {
			keep[indexKeys.RangeKey] = struct{}{}
		}
		for _, attr := range nonKeyAttrs {
			keep[attr] = struct{}{}
		}
		for k, v := range item {
			if _, ok := keep[k]; ok {
				out[k] = deepCopyValue(v)
			}
		}
		return out
	}
	return deepCopy(item)
}

func deepCopy(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopy(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = deepCopyValue(e)
		}
		return out
	}
	return v
}

// Len reports the number of stored items, for test assertions.
func (d *Driver) Len(tableName string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	t, ok := d.tables[tableName]
	if !ok {
		return 0
	}
	return len(t.items)
}
