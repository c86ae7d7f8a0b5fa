// Copyright 2019 Gareth Watts
// Licensed under an MIT license
// See the LICENSE file for details

package dynashift

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"
)

// ErrNoFilterValues is returned when a delete is requested with no
// candidate values to match; no scan is performed in that case.
var ErrNoFilterValues = errors.New("dynashift: no filter values supplied")

// DynDeleter defines the portion of the dynamodb service TableDeleter
// requires.
type DynDeleter interface {
	Scan(input *dynamodb.ScanInput) (*dynamodb.ScanOutput, error)
	DescribeTable(input *dynamodb.DescribeTableInput) (*dynamodb.DescribeTableOutput, error)
	DeleteItem(input *dynamodb.DeleteItemInput) (*dynamodb.DeleteItemOutput, error)
}

// DeleteResult reports how many items matched the filter and how many
// were actually removed.
type DeleteResult struct {
	Found   int64
	Deleted int64
}

// TableDeleter removes every item of a table whose FilterAttribute
// matches one of FilterValues.  Deletes are issued with the minimal key
// derived from the table's key schema, never the full item, so a
// concurrent writer cannot cause spurious condition failures.
type TableDeleter struct {
	Dyn             DynDeleter
	TableName       string
	FilterAttribute string
	FilterValues    []string

	// Logger receives per-item failure details.  May be nil.
	Logger *log.Logger

	found   int64
	deleted int64
	stopped int32
}

// Stop requests a clean shutdown.  The in-flight delete completes and
// remaining matches are left in place.
func (d *TableDeleter) Stop() {
	atomic.StoreInt32(&d.stopped, 1)
}

// Run scans for matching items and deletes them one at a time.  A
// failed delete is logged and counted as not-deleted; the run
// continues.
func (d *TableDeleter) Run() error {
	if len(d.FilterValues) == 0 {
		return ErrNoFilterValues
	}

	names := map[string]*string{"#attr": aws.String(d.FilterAttribute)}
	values := make(map[string]*dynamodb.AttributeValue, len(d.FilterValues))
	placeholders := make([]string, 0, len(d.FilterValues))
	for i, v := range d.FilterValues {
		ph := fmt.Sprintf(":val%d", i)
		placeholders = append(placeholders, ph)
		values[ph] = &dynamodb.AttributeValue{S: aws.String(v)}
	}
	filter := fmt.Sprintf("#attr IN (%s)", strings.Join(placeholders, ", "))

	// TODO: follow LastEvaluatedKey; matches beyond the first scan page
	// are currently never deleted.
	page, err := d.Dyn.Scan(&dynamodb.ScanInput{
		TableName:                 aws.String(d.TableName),
		FilterExpression:          aws.String(filter),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		return fmt.Errorf("dynashift: scanning for matches: %w", err)
	}
	atomic.StoreInt64(&d.found, int64(len(page.Items)))

	desc, err := d.Dyn.DescribeTable(&dynamodb.DescribeTableInput{
		TableName: aws.String(d.TableName),
	})
	if err != nil {
		return fmt.Errorf("dynashift: describing table: %w", err)
	}
	keyAttrs := keyAttributeNames(desc.Table.KeySchema)

	for _, item := range page.Items {
		if atomic.LoadInt32(&d.stopped) != 0 {
			return nil
		}
		key := make(map[string]*dynamodb.AttributeValue, len(keyAttrs))
		for _, name := range keyAttrs {
			if av, ok := item[name]; ok {
				key[name] = av
			}
		}
		_, err := d.Dyn.DeleteItem(&dynamodb.DeleteItemInput{
			TableName: aws.String(d.TableName),
			Key:       key,
		})
		if err != nil {
			if d.Logger != nil {
				d.Logger.Printf("delete failed table=%s key=%s error=%v",
					d.TableName, formatItemKey(item, keyAttrs), err)
			}
			continue
		}
		atomic.AddInt64(&d.deleted, 1)
	}
	return nil
}

// Result returns the current found/deleted counts.  It is safe to call
// from concurrent goroutines while Run executes.
func (d *TableDeleter) Result() DeleteResult {
	return DeleteResult{
		Found:   atomic.LoadInt64(&d.found),
		Deleted: atomic.LoadInt64(&d.deleted),
	}
}
