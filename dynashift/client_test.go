// Copyright 2019 Gareth Watts
// Licensed under an MIT license
// See the LICENSE file for details

package dynashift

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	target string
	body   []byte
}

// newTestEndpoint returns a client pointed at a stub server along with
// a log of the requests it receives.
func newTestEndpoint(t *testing.T, status int, response string) (*Client, *[]recordedRequest) {
	t.Helper()
	var reqs []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, wireContentType, r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		reqs = append(reqs, recordedRequest{
			target: r.Header.Get("X-Amz-Target"),
			body:   body,
		})
		w.WriteHeader(status)
		io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)
	return &Client{Endpoint: srv.URL, HTTPClient: srv.Client()}, &reqs
}

func TestClientDescribeTable(t *testing.T) {
	c, reqs := newTestEndpoint(t, http.StatusOK, `{
		"Table": {
			"TableName": "users",
			"TableStatus": "ACTIVE",
			"ItemCount": 12,
			"KeySchema": [{"AttributeName": "id", "KeyType": "HASH"}]
		}
	}`)

	desc, err := c.DescribeTable("users")
	require.NoError(t, err)
	assert.Equal(t, "users", desc.TableName)
	assert.Equal(t, "ACTIVE", desc.TableStatus)
	assert.Equal(t, int64(12), desc.ItemCount)
	require.Len(t, desc.KeySchema, 1)
	assert.Equal(t, "id", desc.KeySchema[0].AttributeName)

	require.Len(t, *reqs, 1)
	assert.Equal(t, "DynamoDB_20120810.DescribeTable", (*reqs)[0].target)
	assert.JSONEq(t, `{"TableName":"users"}`, string((*reqs)[0].body))
}

func TestClientTableExists(t *testing.T) {
	c, _ := newTestEndpoint(t, http.StatusOK, `{"Table": {"TableName": "users"}}`)
	exists, err := c.TableExists("users")
	require.NoError(t, err)
	assert.True(t, exists)

	// a rejected DescribeTable means the table is absent, not an error
	c, _ = newTestEndpoint(t, http.StatusBadRequest,
		`{"__type": "com.amazonaws.dynamodb.v20120810#ResourceNotFoundException"}`)
	exists, err = c.TableExists("missing")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestClientEnableTTL(t *testing.T) {
	c, reqs := newTestEndpoint(t, http.StatusOK, `{}`)

	before := time.Now().Unix()
	require.NoError(t, c.EnableTTL("users", "expiresAt"))

	require.Len(t, *reqs, 1)
	assert.Equal(t, "DynamoDB_20120810.UpdateTimeToLive", (*reqs)[0].target)

	var body struct {
		TableName               string
		TimeToLiveSpecification struct {
			Enabled           bool
			AttributeName     string
			TimeToLiveSeconds string
		}
	}
	require.NoError(t, json.Unmarshal((*reqs)[0].body, &body))
	assert.Equal(t, "users", body.TableName)
	assert.True(t, body.TimeToLiveSpecification.Enabled)
	assert.Equal(t, "expiresAt", body.TimeToLiveSpecification.AttributeName)

	secs, err := strconv.ParseInt(body.TimeToLiveSpecification.TimeToLiveSeconds, 10, 64)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, secs, before+ttlGraceSeconds)
}

func TestClientDescribeTimeToLive(t *testing.T) {
	c, reqs := newTestEndpoint(t, http.StatusOK, `{
		"TimeToLiveDescription": {
			"TimeToLiveStatus": "ENABLED",
			"AttributeName": "expiresAt"
		}
	}`)

	ttl, err := c.DescribeTimeToLive("users")
	require.NoError(t, err)
	assert.True(t, ttl.Enabled())
	assert.Equal(t, "expiresAt", ttl.AttributeName)
	assert.Equal(t, "DynamoDB_20120810.DescribeTimeToLive", (*reqs)[0].target)
}

func TestClientPutItem(t *testing.T) {
	c, reqs := newTestEndpoint(t, http.StatusOK, `{}`)

	body := []byte(`{"TableName":"users","Item":{"id":{"S":"1"}}}`)
	require.NoError(t, c.PutItem(body))

	require.Len(t, *reqs, 1)
	assert.Equal(t, "DynamoDB_20120810.PutItem", (*reqs)[0].target)
	assert.Equal(t, body, (*reqs)[0].body)
}

// A non-200 response surfaces the status and body for logging.
func TestClientAPIError(t *testing.T) {
	c, _ := newTestEndpoint(t, http.StatusInternalServerError, `{"message": "splat"}`)

	err := c.PutItem([]byte(`{}`))
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "PutItem", apiErr.Operation)
	assert.Contains(t, apiErr.Body, "splat")
}
