// Copyright 2019 Gareth Watts
// Licensed under an MIT license
// See the LICENSE file for details

package dynashift

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

const (
	wireContentType = "application/x-amz-json-1.0"
	targetPrefix    = "DynamoDB_20120810."
)

// ttlGraceSeconds pads the TimeToLiveSeconds value sent alongside an
// UpdateTimeToLive call, which some servers require to be populated.
const ttlGraceSeconds = 900

// APIError is returned when the endpoint answers with a non-200 status.
// The response body is retained so failures can be surfaced in logs.
type APIError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("dynashift: %s failed with status %d: %s", e.Operation, e.StatusCode, e.Body)
}

// Client issues requests to a DynamoDB-compatible JSON-over-HTTP
// endpoint, such as Scylla Alternator.  All operations are POSTs to the
// endpoint root carrying an X-Amz-Target operation header.
type Client struct {
	Endpoint   string
	HTTPClient *http.Client // http.DefaultClient if nil
}

func (c *Client) do(op string, reqBody []byte) ([]byte, error) {
	req, err := http.NewRequest(http.MethodPost, c.Endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", wireContentType)
	req.Header.Set("X-Amz-Target", targetPrefix+op)

	hc := c.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Operation: op, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

type tableNameRequest struct {
	TableName string `json:"TableName"`
}

// KeySchemaElement is one entry of a table's key schema.
type KeySchemaElement struct {
	AttributeName string
	KeyType       string // "HASH" or "RANGE"
}

// TableDescription is the subset of a DescribeTable response the tools
// care about.
type TableDescription struct {
	TableName   string
	TableStatus string
	ItemCount   int64
	KeySchema   []KeySchemaElement
}

// DescribeTable fetches the named table's description.
func (c *Client) DescribeTable(name string) (*TableDescription, error) {
	reqBody, err := json.Marshal(tableNameRequest{TableName: name})
	if err != nil {
		return nil, err
	}
	body, err := c.do("DescribeTable", reqBody)
	if err != nil {
		return nil, err
	}
	var out struct {
		Table *TableDescription
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("dynashift: malformed DescribeTable response: %w", err)
	}
	if out.Table == nil {
		return nil, errors.New("dynashift: DescribeTable response missing table description")
	}
	return out.Table, nil
}

// TableExists reports whether the endpoint knows the named table.  A
// non-200 response is treated as absence rather than an error; only
// transport failures are returned.
func (c *Client) TableExists(name string) (bool, error) {
	_, err := c.DescribeTable(name)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// TTLDescription reports a table's time-to-live configuration.
type TTLDescription struct {
	Status        string // "ENABLED", "DISABLED", etc
	AttributeName string
}

// Enabled reports whether expiration is active for the table.
func (d TTLDescription) Enabled() bool {
	return d.Status == "ENABLED"
}

// DescribeTimeToLive fetches the named table's TTL status.
func (c *Client) DescribeTimeToLive(name string) (*TTLDescription, error) {
	reqBody, err := json.Marshal(tableNameRequest{TableName: name})
	if err != nil {
		return nil, err
	}
	body, err := c.do("DescribeTimeToLive", reqBody)
	if err != nil {
		return nil, err
	}
	var out struct {
		TimeToLiveDescription struct {
			TimeToLiveStatus string
			AttributeName    string
		}
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("dynashift: malformed DescribeTimeToLive response: %w", err)
	}
	return &TTLDescription{
		Status:        out.TimeToLiveDescription.TimeToLiveStatus,
		AttributeName: out.TimeToLiveDescription.AttributeName,
	}, nil
}

type ttlSpecification struct {
	Enabled           bool   `json:"Enabled"`
	AttributeName     string `json:"AttributeName"`
	TimeToLiveSeconds string `json:"TimeToLiveSeconds"`
}

type updateTTLRequest struct {
	TableName               string           `json:"TableName"`
	TimeToLiveSpecification ttlSpecification `json:"TimeToLiveSpecification"`
}

// EnableTTL configures item expiration on table using the named
// attribute, mirroring the source table's TTL setting.
func (c *Client) EnableTTL(table, attribute string) error {
	reqBody, err := json.Marshal(updateTTLRequest{
		TableName: table,
		TimeToLiveSpecification: ttlSpecification{
			Enabled:           true,
			AttributeName:     attribute,
			TimeToLiveSeconds: strconv.FormatInt(time.Now().Unix()+ttlGraceSeconds, 10),
		},
	})
	if err != nil {
		return err
	}
	_, err = c.do("UpdateTimeToLive", reqBody)
	return err
}

// PutItem submits a pre-encoded PutItem request body, as produced by
// Encoder.EncodeItem.
func (c *Client) PutItem(requestBody []byte) error {
	_, err := c.do("PutItem", requestBody)
	return err
}
