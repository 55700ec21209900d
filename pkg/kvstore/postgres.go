package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxPool is the subset of *pgxpool.Pool used by the Postgres store.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

var (
	_ PgxPool = (*pgxpool.Pool)(nil)
	_ Store   = (*Postgres)(nil)
)

// Postgres stores the single table in kv_items (see pkg/database/migrations).
// The item body is the attribute-value map rendered as JSON; the key
// attributes are duplicated into indexed columns.
type Postgres struct {
	pool PgxPool
}

// NewPostgres creates a Postgres-backed store.
func NewPostgres(pool PgxPool) *Postgres {
	return &Postgres{pool: pool}
}

var pgColumns = map[string]string{
	AttrPK:     "pk",
	AttrSK:     "sk",
	AttrGSI1PK: "gsi1pk",
	AttrGSI1SK: "gsi1sk",
	AttrGSI2PK: "gsi2pk",
	AttrGSI2SK: "gsi2sk",
}

type pgRow struct {
	key  Key
	gsi  [4]*string
	body string
}

func encodePgRow(item interface{}) (*pgRow, error) {
	av, key, err := marshalItem(item)
	if err != nil {
		return nil, err
	}
	var plain map[string]interface{}
	if err := attributevalue.UnmarshalMap(av, &plain); err != nil {
		return nil, fmt.Errorf("flatten item: %w", err)
	}
	body, err := json.Marshal(plain)
	if err != nil {
		return nil, fmt.Errorf("encode item: %w", err)
	}
	row := &pgRow{key: key, body: string(body)}
	for i, name := range []string{AttrGSI1PK, AttrGSI1SK, AttrGSI2PK, AttrGSI2SK} {
		if v := stringAttr(av, name); v != "" {
			row.gsi[i] = &v
		}
	}
	return row, nil
}

func decodePgBody(body []byte) (map[string]types.AttributeValue, error) {
	var plain map[string]interface{}
	if err := json.Unmarshal(body, &plain); err != nil {
		return nil, fmt.Errorf("decode item: %w", err)
	}
	return attributevalue.MarshalMap(plain)
}

const pgUpsert = `INSERT INTO kv_items (pk, sk, gsi1pk, gsi1sk, gsi2pk, gsi2sk, item)
	VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb)
	ON CONFLICT (pk, sk) DO UPDATE SET gsi1pk = EXCLUDED.gsi1pk, gsi1sk = EXCLUDED.gsi1sk,
		gsi2pk = EXCLUDED.gsi2pk, gsi2sk = EXCLUDED.gsi2sk, item = EXCLUDED.item, updated_at = NOW()`

const pgInsert = `INSERT INTO kv_items (pk, sk, gsi1pk, gsi1sk, gsi2pk, gsi2sk, item)
	VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb)
	ON CONFLICT (pk, sk) DO NOTHING`

// Put creates or replaces an item.
func (p *Postgres) Put(ctx context.Context, item interface{}) error {
	row, err := encodePgRow(item)
	if err != nil {
		return err
	}
	if _, err := p.pool.Exec(ctx, pgUpsert, row.key.PK, row.key.SK, row.gsi[0], row.gsi[1], row.gsi[2], row.gsi[3], row.body); err != nil {
		return fmt.Errorf("upsert item: %w", err)
	}
	return nil
}

// Create inserts an item unless the key exists.
func (p *Postgres) Create(ctx context.Context, item interface{}) error {
	row, err := encodePgRow(item)
	if err != nil {
		return err
	}
	tag, err := p.pool.Exec(ctx, pgInsert, row.key.PK, row.key.SK, row.gsi[0], row.gsi[1], row.gsi[2], row.gsi[3], row.body)
	if err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConditionFailed
	}
	return nil
}

// Get loads one item.
func (p *Postgres) Get(ctx context.Context, key Key, out interface{}) error {
	var body []byte
	err := p.pool.QueryRow(ctx, `SELECT item FROM kv_items WHERE pk = $1 AND sk = $2`, key.PK, key.SK).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("select item: %w", err)
	}
	av, err := decodePgBody(body)
	if err != nil {
		return err
	}
	return attributevalue.UnmarshalMap(av, out)
}

// Query selects a partition ordered by the index sort key.
func (p *Postgres) Query(ctx context.Context, q Query, out interface{}) (string, error) {
	after, err := decodeCursor(q.Cursor)
	if err != nil {
		return "", err
	}
	pkName, skName := q.Index.KeyNames()
	pkCol, skCol := pgColumns[pkName], pgColumns[skName]

	var sb strings.Builder
	args := []interface{}{q.Partition}
	fmt.Fprintf(&sb, "SELECT item FROM kv_items WHERE %s = $1 AND %s IS NOT NULL", pkCol, skCol)
	if q.SortPrefix != "" {
		args = append(args, q.SortPrefix)
		fmt.Fprintf(&sb, " AND starts_with(%s, $%d)", skCol, len(args))
	}
	if after != nil {
		args = append(args, after[skName], after[AttrPK], after[AttrSK])
		fmt.Fprintf(&sb, " AND (%s, pk, sk) > ($%d, $%d, $%d)", skCol, len(args)-2, len(args)-1, len(args))
	}
	fmt.Fprintf(&sb, " ORDER BY %s, pk, sk", skCol)
	if q.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", q.Limit+1)
	}

	rows, err := p.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return "", fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()
	var read []map[string]types.AttributeValue
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return "", fmt.Errorf("scan item: %w", err)
		}
		av, err := decodePgBody(body)
		if err != nil {
			return "", err
		}
		read = append(read, av)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("query items: %w", err)
	}

	next := ""
	if q.Limit > 0 && len(read) > q.Limit {
		read = read[:q.Limit]
		next = encodeCursor(cursorFor(read[len(read)-1], q.Index))
	}
	var filter map[string]types.AttributeValue
	if len(q.Filter) > 0 {
		if filter, err = attributevalue.MarshalMap(q.Filter); err != nil {
			return "", err
		}
	}
	page := make([]map[string]types.AttributeValue, 0, len(read))
	for _, av := range read {
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
func (p *Postgres) Delete(ctx context.Context, key Key) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM kv_items WHERE pk = $1 AND sk = $2`, key.PK, key.SK); err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}
