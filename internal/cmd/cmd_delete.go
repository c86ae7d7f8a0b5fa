// Copyright 2019 Gareth Watts
// Licensed under an MIT license
// See the LICENSE file for details

package cmd

import (
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/Bowery/prompt"
	"github.com/cheggaaa/pb"
	"github.com/gwatts/dynashift/dynashift"
	"github.com/gwatts/flagvals"
	cli "github.com/jawher/mow.cli"
)

func RegisterDeleteCommand(app *cli.Cli) {
	app.Command("delete", "Delete items matching a filter attribute from a table", func(cmd *cli.Cmd) {
		cmd.Spec = "--endpoint [--region] [--force] TABLE ATTRIBUTE VALUE..."
		action := &deleter{
			endpoint: cmd.String(cli.StringOpt{
				Name:   "endpoint",
				Value:  "",
				Desc:   "DynamoDB-compatible endpoint URL to delete from",
				EnvVar: "TARGET_ENDPOINT",
			}),
			region: cmd.String(cli.StringOpt{
				Name:   "region",
				Value:  defaultRegion,
				Desc:   "AWS region the endpoint is in",
				EnvVar: "AWS_REGION",
			}),
			force: cmd.Bool(cli.BoolOpt{
				Name:   "force",
				Value:  false,
				Desc:   "Set to true to disable the delete prompt",
				EnvVar: "NO_DELETE_PROMPT",
			}),
			tableName: cmd.StringArg("TABLE", "",
				"Table name to delete items from"),
			attribute: cmd.StringArg("ATTRIBUTE", "",
				"Attribute name the filter matches against"),
			values: cmd.StringsArg("VALUE", nil,
				"Attribute values selecting the items to delete"),

			maxRetries: flagvals.GTEInt(awsMaxRetries, 0),
		}

		cmd.Var(cli.VarOpt{
			Name:   "max-retries",
			Value:  action.maxRetries,
			Desc:   "Maximum number of retry attempts to make with the endpoint before failing",
			EnvVar: "AWS_MAX_RETRIES",
		})

		cmd.Action = actionRunner(cmd, action)
	})
}

type deleter struct {
	del *dynashift.TableDeleter

	// options
	endpoint   *string
	region     *string
	force      *bool
	tableName  *string
	attribute  *string
	values     *[]string
	maxRetries *flagvals.RangeInt
}

func (d *deleter) init() error {
	if !*d.force {
		fmt.Printf("Delete items from table %s where %s is one of: %s\n\n",
			*d.tableName, *d.attribute, strings.Join(*d.values, ", "))
		ok, err := prompt.Ask("Are you sure you wish to delete the matching items")

		if err != nil {
			return fmt.Errorf("Could not prompt for confirmation (use --force to override): %v", err)
		}
		if !ok {
			return errors.New("User rejected delete")
		}
	}

	d.del = &dynashift.TableDeleter{
		Dyn: initDynamo(endpointConfig{
			Endpoint: *d.endpoint,
			Region:   *d.region,
		}, d.maxRetries),
		TableName:       *d.tableName,
		FilterAttribute: *d.attribute,
		FilterValues:    *d.values,
	}
	return nil
}

func (d *deleter) start(termWriter io.Writer, logger *log.Logger) (done chan error, err error) {
	d.del.Logger = logger

	status := fmt.Sprintf("Beginning delete: table=%q attribute=%q values=%d",
		*d.tableName, *d.attribute, len(*d.values))

	fmt.Fprintln(termWriter, status)
	logger.Println(status)

	done = make(chan error, 1)
	go func() {
		err := d.del.Run()
		if err != nil {
			logger.Printf("Delete failed table=%s error=%v", *d.tableName, err)
		} else {
			logger.Printf("Delete completed OK table=%s", *d.tableName)
		}
		logger.Println("Final delete stats", d.formatStats())
		done <- err
	}()

	return done, nil
}

func (d *deleter) formatStats() string {
	res := d.del.Result()
	return fmt.Sprintf("table=%s items_found=%d items_deleted=%d",
		*d.tableName, res.Found, res.Deleted)
}

func (d *deleter) abort() {
	d.del.Stop()
}

func (d *deleter) newProgressBar() *pb.ProgressBar {
	return pb.New64(0)
}

func (d *deleter) updateProgress(bar *pb.ProgressBar) {
	res := d.del.Result()
	bar.Total = res.Found
	bar.Set64(res.Deleted)
}

func (d *deleter) printFinalStats(w io.Writer) {
	res := d.del.Result()
	fmt.Fprintf(w, "Deleted %d of %d matching items from %s\n",
		res.Deleted, res.Found, *d.tableName)
}
