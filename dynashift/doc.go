// Copyright 2019 Gareth Watts
// Licensed under an MIT license
// See the LICENSE file for details

/*
Package dynashift copies item data between DynamoDB-compatible
endpoints.

Items scanned from a source table are converted to a typed Value form,
re-encoded to the tagged JSON wire representation expected by the
destination's PutItem operation, and written one at a time with
per-item success and failure accounting.  Declared key types from the
source table's schema take precedence over types inferred from the
values themselves, and a source table's TTL configuration is mirrored
onto the destination before any items are written.

The Migrator drives the scan/encode/put pipeline for a list of table
mappings.  The TableDeleter is a sibling driver that removes items
matching a filter attribute, deleting by the table's key schema only.
*/
package dynashift
