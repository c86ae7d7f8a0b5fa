// Copyright 2019 Gareth Watts
// Licensed under an MIT license
// See the LICENSE file for details

package cmd

import (
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/gwatts/flagvals"
	cli "github.com/jawher/mow.cli"
)

func fail(format string, a ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	cli.Exit(100)
}

// initDynamo builds a DynamoDB client for the given endpoint.  Static
// credentials from the configuration take precedence over the
// environment when supplied.
func initDynamo(ep endpointConfig, maxRetries *flagvals.RangeInt) *dynamodb.DynamoDB {
	// Workaround for https://github.com/aws/aws-sdk-go/issues/1139
	r := &CustomRetryer{
		DefaultRetryer: &client.DefaultRetryer{
			NumMaxRetries: int(maxRetries.Value),
		},
	}

	cfg := aws.NewConfig().
		WithEndpoint(ep.Endpoint).
		WithRegion(ep.Region)
	if ep.AccessKey != "" {
		cfg = cfg.WithCredentials(
			credentials.NewStaticCredentials(ep.AccessKey, ep.SecretKey, ""))
	}
	cfg = request.WithRetryer(cfg, r)

	s, err := session.NewSession(cfg)
	if err != nil {
		fail("Failed to create AWS session: %v", err)
	}

	return dynamodb.New(s)
}

type CustomRetryer struct {
	*client.DefaultRetryer
}

func (cr *CustomRetryer) ShouldRetry(r *request.Request) bool {
	// Scan seems to frequently drop connections, which results in a
	// SerializationError; trap and force a retry.
	if r.Error != nil && r.Operation.Name == "Scan" {
		if err, ok := r.Error.(awserr.Error); ok {
			if err.Code() == "SerializationError" {
				return true
			}
		}
	}

	return cr.DefaultRetryer.ShouldRetry(r)
}
