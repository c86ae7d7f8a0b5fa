// Copyright 2019 Gareth Watts
// Licensed under an MIT license
// See the LICENSE file for details

package dynashift

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/juju/ratelimit"
)

// SourceTable defines the portion of the dynamodb service the Migrator
// reads from.
type SourceTable interface {
	Scan(input *dynamodb.ScanInput) (*dynamodb.ScanOutput, error)
	DescribeTable(input *dynamodb.DescribeTableInput) (*dynamodb.DescribeTableOutput, error)
	DescribeTimeToLive(input *dynamodb.DescribeTimeToLiveInput) (*dynamodb.DescribeTimeToLiveOutput, error)
}

// TargetTable is the destination side surface the Migrator writes to.
// *Client implements it.
type TargetTable interface {
	TableExists(name string) (bool, error)
	EnableTTL(table, attribute string) error
	PutItem(requestBody []byte) error
}

// TableMapping pairs a source table with its destination table; it is
// the unit of work for one migration pass.
type TableMapping struct {
	Source string
	Target string
}

// TableResult accumulates per-item accounting for one table mapping.
// Err is set only for table-fatal conditions (missing destination,
// failed schema lookup); per-item failures increment Failed and never
// abort the table.
type TableResult struct {
	Mapping   TableMapping
	Succeeded int64
	Failed    int64
	Err       error
}

// MigratorStats is a point-in-time snapshot of aggregate progress,
// safe to read from concurrent goroutines while Run executes.
type MigratorStats struct {
	ItemsRead   int64
	ItemsPut    int64
	ItemsFailed int64
	TablesDone  int64
}

// Migrator copies every item of each source table to its mapped
// destination table, one item at a time, one table at a time.  Items
// are re-encoded to the tagged wire form on the way through, with
// declared key types taking precedence over inferred ones.
type Migrator struct {
	Source SourceTable
	Target TargetTable
	Tables []TableMapping

	// WriteCapacity limits put operations per second.  0 = unlimited.
	WriteCapacity float64

	// Logger receives per-item failure details and per-table summaries.
	// May be nil.
	Logger *log.Logger

	// Optional scan filter, passed through to the source unchanged.
	FilterExpression string
	FilterNames      map[string]*string
	FilterValues     map[string]*dynamodb.AttributeValue

	rateLimit   *ratelimit.Bucket
	itemsRead   int64
	itemsPut    int64
	itemsFailed int64
	tablesDone  int64
	results     []TableResult
	stopRequest chan struct{}
	stopNotify  chan struct{}
}

// Run migrates each table mapping in order and returns once all
// mappings have completed or Stop was called.  Per-table outcomes are
// available from Results; Run itself only fails on unusable input.
func (m *Migrator) Run() error {
	if m.Source == nil || m.Target == nil {
		return errors.New("dynashift: migrator requires both a source and a target")
	}
	if len(m.Tables) == 0 {
		return errors.New("dynashift: no table mappings supplied")
	}
	for _, mapping := range m.Tables {
		if mapping.Source == "" || mapping.Target == "" {
			return fmt.Errorf("dynashift: invalid table mapping %q -> %q", mapping.Source, mapping.Target)
		}
	}

	m.stopRequest = make(chan struct{}, 2)
	m.stopNotify = make(chan struct{})
	go func() {
		<-m.stopRequest
		close(m.stopNotify)
	}()

	if m.WriteCapacity > 0 {
		m.rateLimit = ratelimit.NewBucketWithQuantum(time.Second, int64(m.WriteCapacity), int64(m.WriteCapacity))
	}

	for _, mapping := range m.Tables {
		if m.isStopped() {
			break
		}
		res := m.migrateTable(mapping)
		m.results = append(m.results, res)
		atomic.AddInt64(&m.tablesDone, 1)
		if res.Err != nil {
			m.logf("migration failed source=%s target=%s error=%v", mapping.Source, mapping.Target, res.Err)
		} else {
			m.logf("migration completed source=%s target=%s success=%d failure=%d",
				mapping.Source, mapping.Target, res.Succeeded, res.Failed)
		}
	}
	return nil
}

// Stop requests a clean shutdown.  The in-flight item completes and no
// further items or tables are processed.
func (m *Migrator) Stop() {
	m.stopRequest <- struct{}{}
}

// Results returns per-table accounting.  It must not be called until
// Run has returned.
func (m *Migrator) Results() []TableResult {
	return m.results
}

// Totals sums success and failure counts across table results.
func Totals(results []TableResult) (succeeded, failed int64) {
	for _, r := range results {
		succeeded += r.Succeeded
		failed += r.Failed
	}
	return succeeded, failed
}

// Stats returns current aggregate progress.  It is safe to call from
// concurrent goroutines.
func (m *Migrator) Stats() MigratorStats {
	return MigratorStats{
		ItemsRead:   atomic.LoadInt64(&m.itemsRead),
		ItemsPut:    atomic.LoadInt64(&m.itemsPut),
		ItemsFailed: atomic.LoadInt64(&m.itemsFailed),
		TablesDone:  atomic.LoadInt64(&m.tablesDone),
	}
}

func (m *Migrator) isStopped() bool {
	select {
	case <-m.stopNotify:
		return true
	default:
		return false
	}
}

func (m *Migrator) logf(format string, args ...interface{}) {
	if m.Logger != nil {
		m.Logger.Printf(format, args...)
	}
}

// migrateTable runs the full state machine for one mapping: existence
// check, TTL sync, then the paginated scan and per-item writes.
func (m *Migrator) migrateTable(mapping TableMapping) TableResult {
	res := TableResult{Mapping: mapping}

	exists, err := m.Target.TableExists(mapping.Target)
	if err != nil {
		res.Err = fmt.Errorf("checking target table: %w", err)
		return res
	}
	if !exists {
		res.Err = fmt.Errorf("target table %q does not exist", mapping.Target)
		return res
	}

	desc, err := m.Source.DescribeTable(&dynamodb.DescribeTableInput{
		TableName: aws.String(mapping.Source),
	})
	if err != nil {
		res.Err = fmt.Errorf("describing source table: %w", err)
		return res
	}
	keyAttrs := keyAttributeNames(desc.Table.KeySchema)

	// best effort; migration proceeds without TTL mirroring on failure
	m.syncTTL(mapping)

	enc := &Encoder{Registry: RegistryFromTable(desc.Table)}

	input := &dynamodb.ScanInput{TableName: aws.String(mapping.Source)}
	if m.FilterExpression != "" {
		input.FilterExpression = aws.String(m.FilterExpression)
		input.ExpressionAttributeNames = m.FilterNames
		input.ExpressionAttributeValues = m.FilterValues
	}

	for {
		page, err := m.Source.Scan(input)
		if err != nil {
			res.Err = fmt.Errorf("scanning source table: %w", err)
			return res
		}
		for _, raw := range page.Items {
			if m.isStopped() {
				return res
			}
			atomic.AddInt64(&m.itemsRead, 1)
			if m.migrateItem(enc, mapping.Target, raw, keyAttrs) {
				res.Succeeded++
				atomic.AddInt64(&m.itemsPut, 1)
			} else {
				res.Failed++
				atomic.AddInt64(&m.itemsFailed, 1)
			}
		}
		if page.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = page.LastEvaluatedKey
	}
	return res
}

// migrateItem encodes and writes one item, reporting success.  All
// failures are local to the item: they are logged with the item's key
// and the scan moves on.
func (m *Migrator) migrateItem(enc *Encoder, target string, raw map[string]*dynamodb.AttributeValue, keyAttrs []string) bool {
	item, err := FromItem(raw)
	if err != nil {
		m.logf("item conversion failed table=%s key=%s error=%v", target, formatItemKey(raw, keyAttrs), err)
		return false
	}
	body, err := enc.EncodeItem(target, item)
	if err != nil {
		m.logf("item encoding failed table=%s key=%s error=%v", target, formatItemKey(raw, keyAttrs), err)
		return false
	}
	if m.rateLimit != nil {
		m.rateLimit.Wait(1)
	}
	if err := m.Target.PutItem(body); err != nil {
		m.logf("item write failed table=%s key=%s error=%v", target, formatItemKey(raw, keyAttrs), err)
		return false
	}
	return true
}

// syncTTL mirrors the source table's TTL attribute onto the target when
// the source has expiration enabled.
func (m *Migrator) syncTTL(mapping TableMapping) {
	out, err := m.Source.DescribeTimeToLive(&dynamodb.DescribeTimeToLiveInput{
		TableName: aws.String(mapping.Source),
	})
	if err != nil {
		m.logf("ttl lookup failed table=%s error=%v", mapping.Source, err)
		return
	}
	desc := out.TimeToLiveDescription
	if desc == nil || !strings.EqualFold(aws.StringValue(desc.TimeToLiveStatus), "ENABLED") {
		return
	}
	attr := aws.StringValue(desc.AttributeName)
	if attr == "" {
		return
	}
	if err := m.Target.EnableTTL(mapping.Target, attr); err != nil {
		m.logf("ttl sync failed table=%s attribute=%s error=%v", mapping.Target, attr, err)
		return
	}
	m.logf("ttl enabled table=%s attribute=%s", mapping.Target, attr)
}

func keyAttributeNames(schema []*dynamodb.KeySchemaElement) []string {
	names := make([]string, 0, len(schema))
	for _, el := range schema {
		names = append(names, aws.StringValue(el.AttributeName))
	}
	return names
}

// formatItemKey renders an item's key attributes for log lines.
func formatItemKey(item map[string]*dynamodb.AttributeValue, keyAttrs []string) string {
	if len(keyAttrs) == 0 {
		return "<unknown>"
	}
	parts := make([]string, 0, len(keyAttrs))
	for _, name := range keyAttrs {
		av, ok := item[name]
		switch {
		case !ok:
			parts = append(parts, name+"=<missing>")
		case av.S != nil:
			parts = append(parts, name+"="+*av.S)
		case av.N != nil:
			parts = append(parts, name+"="+*av.N)
		default:
			parts = append(parts, name+"="+av.String())
		}
	}
	sort.Strings(parts)
	return strings.Join(parts, " ")
}
