// Copyright 2019 Gareth Watts
// Licensed under an MIT license
// See the LICENSE file for details

/*
Command dynashift copies item data between DynamoDB-compatible endpoints.

It reads items from a source DynamoDB table using the AWS SDK and
writes them to any endpoint speaking the DynamoDB JSON wire protocol,
such as Scylla Alternator, re-encoding each item along the way.  TTL
settings are mirrored from the source table, and writes may be rate
limited to a target capacity.

A single table pair can be given on the command line, or a YAML config
file can define a multi-table run:

	source:
	  endpoint: https://dynamodb.us-east-1.amazonaws.com
	  region: us-east-1
	target:
	  endpoint: http://alternator:8000
	tables:
	  - source: users
	    destination: users

AWS credentials for the source are taken from the config file if set,
else from the usual environment variables, which may also be supplied
via a .env file in the working directory.
*/
package main

import (
	"os"

	cli "github.com/jawher/mow.cli"
	"github.com/joho/godotenv"

	"github.com/gwatts/dynashift/internal/cmd"
)

const version = "1.0.0"

func main() {
	// missing .env is fine; the environment may already be populated
	_ = godotenv.Load()

	app := cli.App("dynashift", "Copy, inspect and prune tables across DynamoDB-compatible endpoints")
	app.Version("v version", "dynashift "+version)

	cmd.RegisterMigrateCommand(app)
	cmd.RegisterDeleteCommand(app)
	cmd.RegisterDescribeCommand(app)

	app.Run(os.Args)
}
