// Copyright 2019 Gareth Watts
// Licensed under an MIT license
// See the LICENSE file for details

package cmd

import (
	"os"
	"text/template"

	"github.com/gwatts/dynashift/dynashift"
	cli "github.com/jawher/mow.cli"
)

func RegisterDescribeCommand(app *cli.Cli) {
	app.Command("describe", "Display table status from a DynamoDB-compatible endpoint", func(cmd *cli.Cmd) {
		cmd.Spec = "--endpoint TABLE"
		action := &describer{
			endpoint: cmd.String(cli.StringOpt{
				Name:   "endpoint",
				Value:  "",
				Desc:   "DynamoDB-compatible endpoint URL to query",
				EnvVar: "TARGET_ENDPOINT",
			}),
			tableName: cmd.StringArg("TABLE", "",
				"Table name to describe"),
		}

		cmd.Action = action.run
	})
}

var describeTmpl = template.Must(template.New("describe").Parse(`
Table Name ....: {{ .Table.TableName }}
Status ........: {{ .Table.TableStatus }}
Item Count ....: {{ .Table.ItemCount }}
Key Schema ....: {{ range .Table.KeySchema }}{{ .AttributeName }} ({{ .KeyType }}) {{ end }}
TTL Status ....: {{ .TTL.Status }}
TTL Attribute .: {{ .TTL.AttributeName }}
`))

type describer struct {
	// options
	endpoint  *string
	tableName *string
}

func (ds *describer) run() {
	c := &dynashift.Client{Endpoint: *ds.endpoint}

	table, err := c.DescribeTable(*ds.tableName)
	if err != nil {
		fail("Failed to describe table: %v", err)
	}
	ttl, err := c.DescribeTimeToLive(*ds.tableName)
	if err != nil {
		fail("Failed to fetch TTL status: %v", err)
	}

	describeTmpl.Execute(os.Stdout, struct {
		Table *dynashift.TableDescription
		TTL   *dynashift.TTLDescription
	}{table, ttl})
}
