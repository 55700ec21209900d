// Package kvstore is the single-table key/value gateway. Items are Go structs
// tagged with `dynamodbav` that carry string PK/SK attributes and optional
// GSI1/GSI2 key attributes. The gateway owns no business logic.
package kvstore

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var (
	// ErrNotFound is returned by Get when no item matches the key.
	ErrNotFound = errors.New("kvstore: item not found")
	// ErrConditionFailed is returned by Create when the key already exists.
	ErrConditionFailed = errors.New("kvstore: conditional check failed")
)

// Key attribute names shared by every item in the table.
const (
	AttrPK     = "PK"
	AttrSK     = "SK"
	AttrGSI1PK = "GSI1PK"
	AttrGSI1SK = "GSI1SK"
	AttrGSI2PK = "GSI2PK"
	AttrGSI2SK = "GSI2SK"
)

// Key is the primary key of an item.
type Key struct {
	PK string
	SK string
}

// Index selects the table or one of its secondary indexes.
type Index string

const (
	IndexTable Index = ""
	IndexGSI1  Index = "GSI1"
	IndexGSI2  Index = "GSI2"
)

// KeyNames returns the partition and sort attribute names of the index.
func (i Index) KeyNames() (string, string) {
	switch i {
	case IndexGSI1:
		return AttrGSI1PK, AttrGSI1SK
	case IndexGSI2:
		return AttrGSI2PK, AttrGSI2SK
	default:
		return AttrPK, AttrSK
	}
}

// Query describes a partition lookup with an optional sort-key prefix.
// Filter holds equality conditions on non-key attributes; like DynamoDB,
// Limit bounds the items read before filtering.
type Query struct {
	Index      Index
	Partition  string
	SortPrefix string
	Filter     map[string]interface{}
	Limit      int
	Cursor     string
}

// Store is implemented by every backend.
type Store interface {
	// Put creates or replaces an item.
	Put(ctx context.Context, item interface{}) error
	// Create writes an item only if its PK/SK does not exist yet.
	Create(ctx context.Context, item interface{}) error
	// Get loads the item into out or returns ErrNotFound.
	Get(ctx context.Context, key Key, out interface{}) error
	// Query decodes matching items into out (a pointer to a slice) and returns
	// a continuation cursor, empty when there are no more pages.
	Query(ctx context.Context, q Query, out interface{}) (string, error)
	// Delete removes an item; deleting a missing key is not an error.
	Delete(ctx context.Context, key Key) error
}

func marshalItem(item interface{}) (map[string]types.AttributeValue, Key, error) {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return nil, Key{}, fmt.Errorf("marshal item: %w", err)
	}
	key := Key{PK: stringAttr(av, AttrPK), SK: stringAttr(av, AttrSK)}
	if key.PK == "" || key.SK == "" {
		return nil, Key{}, errors.New("kvstore: item is missing PK or SK")
	}
	return av, key, nil
}

func stringAttr(av map[string]types.AttributeValue, name string) string {
	if s, ok := av[name].(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

// cursor keys are the primary key plus the queried index key.
func cursorFor(av map[string]types.AttributeValue, idx Index) map[string]string {
	pkName, skName := idx.KeyNames()
	out := map[string]string{
		AttrPK: stringAttr(av, AttrPK),
		AttrSK: stringAttr(av, AttrSK),
	}
	out[pkName] = stringAttr(av, pkName)
	out[skName] = stringAttr(av, skName)
	return out
}

func encodeCursor(m map[string]string) string {
	if len(m) == 0 {
		return ""
	}
	raw, _ := json.Marshal(m)
	return base64.RawURLEncoding.EncodeToString(raw)
}

func decodeCursor(s string) (map[string]string, error) {
	if s == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, invalidCursor(err)
	}
	var m map[string]string
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, invalidCursor(err)
	}
	return m, nil
}

// ErrInvalidCursor is returned by Query for a malformed continuation cursor.
var ErrInvalidCursor = errors.New("kvstore: invalid cursor")

func invalidCursor(err error) error {
	return fmt.Errorf("%w: %v", ErrInvalidCursor, err)
}

// QueryAll follows continuation cursors until the query is exhausted.
func QueryAll[T any](ctx context.Context, s Store, q Query) ([]T, error) {
	var all []T
	for {
		var page []T
		next, err := s.Query(ctx, q, &page)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if next == "" {
			return all, nil
		}
		q.Cursor = next
	}
}

// QueryFirst returns the first matching item, or ErrNotFound.
func QueryFirst[T any](ctx context.Context, s Store, q Query) (*T, error) {
	items, err := QueryAll[T](ctx, s, q)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrNotFound
	}
	return &items[0], nil
}
