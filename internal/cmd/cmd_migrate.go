// Copyright 2019 Gareth Watts
// Licensed under an MIT license
// See the LICENSE file for details

package cmd

import (
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/cheggaaa/pb"
	"github.com/gwatts/dynashift/dynashift"
	"github.com/gwatts/flagvals"
	cli "github.com/jawher/mow.cli"
)

func RegisterMigrateCommand(app *cli.Cli) {
	app.Command("migrate", "Copy table data from a source endpoint to a target endpoint", func(cmd *cli.Cmd) {
		cmd.Spec = "(--config | (--source-endpoint --target-endpoint SOURCE TARGET)) " +
			"[--filter [--filter-name...] [--filter-value...]]"
		action := &migrator{
			configPath: cmd.String(cli.StringOpt{
				Name:   "c config",
				Value:  "",
				Desc:   "YAML file defining the source, target and table mappings",
				EnvVar: "MIGRATE_CONFIG",
			}),
			sourceEndpoint: cmd.String(cli.StringOpt{
				Name:   "source-endpoint",
				Value:  "",
				Desc:   "DynamoDB endpoint URL to read from",
				EnvVar: "SOURCE_ENDPOINT",
			}),
			sourceRegion: cmd.String(cli.StringOpt{
				Name:   "source-region",
				Value:  defaultRegion,
				Desc:   "AWS region the source endpoint is in",
				EnvVar: "SOURCE_REGION",
			}),
			targetEndpoint: cmd.String(cli.StringOpt{
				Name:   "target-endpoint",
				Value:  "",
				Desc:   "DynamoDB-compatible endpoint URL to write to",
				EnvVar: "TARGET_ENDPOINT",
			}),
			filter: cmd.String(cli.StringOpt{
				Name:   "filter",
				Value:  "",
				Desc:   `Scan filter expression to select source items (eg. "#s = :v")`,
				EnvVar: "SCAN_FILTER",
			}),
			filterNames: cmd.Strings(cli.StringsOpt{
				Name:   "filter-name",
				Value:  nil,
				Desc:   `Attribute name alias used by --filter (eg. "#s=status"); repeatable`,
				EnvVar: "SCAN_FILTER_NAMES",
			}),
			filterValues: cmd.Strings(cli.StringsOpt{
				Name:   "filter-value",
				Value:  nil,
				Desc:   `String value placeholder used by --filter (eg. ":v=stale"); repeatable`,
				EnvVar: "SCAN_FILTER_VALUES",
			}),
			srcTable: cmd.StringArg("SOURCE", "",
				"Source table name to copy from"),
			dstTable: cmd.StringArg("TARGET", "",
				"Destination table name to copy into"),

			maxRetries:    flagvals.GTEInt(awsMaxRetries, 0),
			writeCapacity: flagvals.GTEInt(0, 0),
		}

		cmd.Var(cli.VarOpt{
			Name:   "w write-capacity",
			Value:  action.writeCapacity,
			Desc:   "Average aggregate write capacity to use for the copy (set to 0 for unlimited)",
			EnvVar: "WRITE_CAPACITY",
		})
		cmd.Var(cli.VarOpt{
			Name:   "max-retries",
			Value:  action.maxRetries,
			Desc:   "Maximum number of retry attempts to make with the source endpoint before failing",
			EnvVar: "AWS_MAX_RETRIES",
		})

		cmd.Action = actionRunner(cmd, action)
	})
}

type migrator struct {
	m          *dynashift.Migrator
	cfg        *runConfig
	totalItems int64
	startTime  time.Time

	// options
	configPath     *string
	sourceEndpoint *string
	sourceRegion   *string
	targetEndpoint *string
	filter         *string
	filterNames    *[]string
	filterValues   *[]string
	srcTable       *string
	dstTable       *string
	maxRetries     *flagvals.RangeInt
	writeCapacity  *flagvals.RangeInt
}

// resolveConfig merges the two ways of defining a run: a YAML file, or
// a single table mapping given entirely on the command line.
func (mg *migrator) resolveConfig() (*runConfig, error) {
	if *mg.configPath != "" {
		return loadRunConfig(*mg.configPath)
	}
	cfg := &runConfig{
		Source: endpointConfig{Endpoint: *mg.sourceEndpoint, Region: *mg.sourceRegion},
		Target: endpointConfig{Endpoint: *mg.targetEndpoint},
		Tables: []mappingConfig{{Source: *mg.srcTable, Destination: *mg.dstTable}},
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (mg *migrator) init() error {
	cfg, err := mg.resolveConfig()
	if err != nil {
		return err
	}
	mg.cfg = cfg

	names, values, err := parseFilterArgs(*mg.filterNames, *mg.filterValues)
	if err != nil {
		return err
	}

	dyn := initDynamo(cfg.Source, mg.maxRetries)
	mg.m = &dynashift.Migrator{
		Source:           dyn,
		Target:           &dynashift.Client{Endpoint: cfg.Target.Endpoint},
		Tables:           cfg.mappings(),
		WriteCapacity:    float64(mg.writeCapacity.Value),
		FilterExpression: *mg.filter,
		FilterNames:      names,
		FilterValues:     values,
	}

	// item counts are only approximate, but good enough for a progress bar
	for _, mapping := range cfg.mappings() {
		resp, err := dyn.DescribeTable(&dynamodb.DescribeTableInput{
			TableName: aws.String(mapping.Source),
		})
		if err != nil {
			return fmt.Errorf("failed to describe source table %q: %w", mapping.Source, err)
		}
		mg.totalItems += aws.Int64Value(resp.Table.ItemCount)
	}
	return nil
}

func (mg *migrator) start(termWriter io.Writer, logger *log.Logger) (done chan error, err error) {
	mg.m.Logger = logger
	mg.startTime = time.Now()

	status := fmt.Sprintf(
		"Beginning migration: tables=%d source=%q target=%q totalItems=%d writeCapacity=%d",
		len(mg.cfg.Tables), mg.cfg.Source.Endpoint, mg.cfg.Target.Endpoint,
		mg.totalItems, mg.writeCapacity.Value)

	fmt.Fprintln(termWriter, status)
	logger.Println(status)

	done = make(chan error, 1)
	go func() {
		err := mg.m.Run()
		if err != nil {
			logger.Printf("Migration failed error=%v", err)
		} else {
			logger.Println("Migration completed OK")
		}
		logger.Println("Final migration stats", mg.formatStats())
		done <- err
	}()

	return done, nil
}

func (mg *migrator) formatStats() string {
	stats := mg.m.Stats()
	deltaSeconds := float64(time.Since(mg.startTime) / time.Second)
	if deltaSeconds < 1 {
		deltaSeconds = 1
	}
	return fmt.Sprintf("tables_done=%d avg_items_sec=%.2f "+
		"total_items_read=%d total_items_put=%d total_items_failed=%d",
		stats.TablesDone, float64(stats.ItemsRead)/deltaSeconds,
		stats.ItemsRead, stats.ItemsPut, stats.ItemsFailed)
}

func (mg *migrator) abort() {
	mg.m.Stop()
}

func (mg *migrator) newProgressBar() *pb.ProgressBar {
	return pb.New64(mg.totalItems)
}

func (mg *migrator) updateProgress(bar *pb.ProgressBar) {
	bar.Set64(mg.m.Stats().ItemsRead)
}

func (mg *migrator) logProgress(logger *log.Logger) {
	logger.Printf("Migration in progress - current stats %s", mg.formatStats())
}

func (mg *migrator) printFinalStats(w io.Writer) {
	results := mg.m.Results()
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(w, "%s -> %s: failed: %v\n", r.Mapping.Source, r.Mapping.Target, r.Err)
			continue
		}
		fmt.Fprintf(w, "%s -> %s: migrated=%d failed=%d\n",
			r.Mapping.Source, r.Mapping.Target, r.Succeeded, r.Failed)
	}

	succeeded, failed := dynashift.Totals(results)
	deltaSeconds := float64(time.Since(mg.startTime) / time.Second)
	if deltaSeconds < 1 {
		deltaSeconds = 1
	}
	fmt.Fprintf(w, "Avg items/sec: %.2f\n", float64(succeeded+failed)/deltaSeconds)
	fmt.Fprintln(w, "Total items migrated: ", succeeded)
	fmt.Fprintln(w, "Total items failed: ", failed)
}

// parseFilterArgs converts repeated "#alias=attribute" and ":name=value"
// command line entries into the maps the scan filter expects.  Values
// are always bound as strings.
func parseFilterArgs(nameArgs, valueArgs []string) (map[string]*string, map[string]*dynamodb.AttributeValue, error) {
	var names map[string]*string
	for _, arg := range nameArgs {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || !strings.HasPrefix(k, "#") || v == "" {
			return nil, nil, fmt.Errorf("invalid filter name %q (expected \"#alias=attribute\")", arg)
		}
		if names == nil {
			names = make(map[string]*string)
		}
		names[k] = aws.String(v)
	}

	var values map[string]*dynamodb.AttributeValue
	for _, arg := range valueArgs {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || !strings.HasPrefix(k, ":") {
			return nil, nil, fmt.Errorf("invalid filter value %q (expected \":name=value\")", arg)
		}
		if values == nil {
			values = make(map[string]*dynamodb.AttributeValue)
		}
		values[k] = &dynamodb.AttributeValue{S: aws.String(v)}
	}
	return names, values, nil
}
