package kvstore

import (
	"context"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Memory is an in-process Store used for local development and tests.
// Items are held in their DynamoDB attribute-value form so marshalling
// behaves exactly as it does against the real table.
type Memory struct {
	mu    sync.RWMutex
	items map[Key]map[string]types.AttributeValue
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{items: make(map[Key]map[string]types.AttributeValue)}
}

// Put creates or replaces an item.
func (m *Memory) Put(_ context.Context, item interface{}) error {
	av, key, err := marshalItem(item)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.items[key] = av
	m.mu.Unlock()
	return nil
}

// Create writes an item unless the key exists.
func (m *Memory) Create(_ context.Context, item interface{}) error {
	av, key, err := marshalItem(item)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[key]; ok {
		return ErrConditionFailed
	}
	m.items[key] = av
	return nil
}

// Get loads one item.
func (m *Memory) Get(_ context.Context, key Key, out interface{}) error {
	m.mu.RLock()
	av, ok := m.items[key]
	m.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	return attributevalue.UnmarshalMap(av, out)
}

// Query scans the partition in sort-key order.
func (m *Memory) Query(_ context.Context, q Query, out interface{}) (string, error) {
	after, err := decodeCursor(q.Cursor)
	if err != nil {
		return "", err
	}
	pkName, skName := q.Index.KeyNames()
	var filter map[string]types.AttributeValue
	if len(q.Filter) > 0 {
		if filter, err = attributevalue.MarshalMap(q.Filter); err != nil {
			return "", err
		}
	}

	m.mu.RLock()
	var matched []map[string]types.AttributeValue
	for _, av := range m.items {
		if stringAttr(av, pkName) != q.Partition {
			continue
		}
		if !strings.HasPrefix(stringAttr(av, skName), q.SortPrefix) {
			continue
		}
		if _, ok := av[skName]; !ok {
			continue
		}
		matched = append(matched, av)
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return lessKey(sortTuple(matched[i], skName), sortTuple(matched[j], skName))
	})
	if after != nil {
		from := []string{after[skName], after[AttrPK], after[AttrSK]}
		start := sort.Search(len(matched), func(i int) bool {
			return lessKey(from, sortTuple(matched[i], skName))
		})
		matched = matched[start:]
	}

	next := ""
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
		next = encodeCursor(cursorFor(matched[len(matched)-1], q.Index))
	}

	page := make([]map[string]types.AttributeValue, 0, len(matched))
	for _, av := range matched {
		if matchesFilter(av, filter) {
			page = append(page, av)
		}
	}
	if err := attributevalue.UnmarshalListOfMaps(page, out); err != nil {
		return "", err
	}
	return next, nil
}

// Delete removes one item.
func (m *Memory) Delete(_ context.Context, key Key) error {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored items.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

func sortTuple(av map[string]types.AttributeValue, skName string) []string {
	return []string{stringAttr(av, skName), stringAttr(av, AttrPK), stringAttr(av, AttrSK)}
}

func lessKey(a, b []string) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func matchesFilter(av, filter map[string]types.AttributeValue) bool {
	for name, want := range filter {
		got, ok := av[name]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}
