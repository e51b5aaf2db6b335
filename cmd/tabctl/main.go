package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/tabpal/tabpal/internal/config"
	"github.com/tabpal/tabpal/internal/control/client"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(argv []string) error {
	fs := flag.NewFlagSet("tabctl", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	socket := fs.String("socket", "", "path to tabpal control socket")
	timeout := fs.Duration("timeout", 3*time.Second, "control request timeout")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: %s [flags] <command> [args]\n", fs.Name())
		fmt.Fprintln(fs.Output())
		fmt.Fprintln(fs.Output(), "Commands:")
		fmt.Fprintln(fs.Output(), "  info\t\t\tshow the active tab and its rule traces")
		fmt.Fprintln(fs.Output(), "  dump\t\t\tshow the current group layout")
		fmt.Fprintln(fs.Output(), "  route\t\t\tevaluate the active tab immediately")
		fmt.Fprintln(fs.Output(), "  reload\t\ttrigger a live config reload")
		fmt.Fprintln(fs.Output(), "  metrics\t\tshow routing counters")
		fmt.Fprintln(fs.Output(), "  check --config <path>\tvalidate a configuration file")
		fmt.Fprintln(fs.Output())
		fmt.Fprintln(fs.Output(), "Flags:")
		fs.PrintDefaults()
	}
	if err := fs.Parse(argv); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	args := fs.Args()
	if len(args) == 0 {
		fs.Usage()
		return fmt.Errorf("missing subcommand")
	}

	if args[0] == "check" {
		return runCheck(args[1:], os.Stdout, os.Stderr)
	}

	cli, err := client.New(*socket)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}

	ctx := context.Background()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	switch args[0] {
	case "info":
		return runInfo(ctx, cli, os.Stdout)
	case "dump":
		return runDump(ctx, cli, os.Stdout)
	case "route":
		return runRoute(ctx, cli, os.Stdout)
	case "reload":
		return runReload(ctx, cli, os.Stdout)
	case "metrics":
		return runMetrics(ctx, cli, os.Stdout)
	default:
		fs.Usage()
		return fmt.Errorf("unknown subcommand %q", args[0])
	}
}

func runCheck(args []string, stdout io.Writer, stderr io.Writer) error {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to configuration file")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if *configPath == "" {
		fs.Usage()
		return fmt.Errorf("check requires --config <path>")
	}

	lintErrs, err := config.LintFile(*configPath)
	if err != nil {
		return err
	}
	if len(lintErrs) == 0 {
		fmt.Fprintln(stdout, "Configuration OK")
		return nil
	}

	fmt.Fprintf(stderr, "Configuration has %d issue(s):\n", len(lintErrs))
	for _, lintErr := range lintErrs {
		fmt.Fprintf(stderr, "- %s\n", lintErr.Error())
	}
	return fmt.Errorf("configuration validation failed")
}

func runInfo(ctx context.Context, cli *client.Client, stdout io.Writer) error {
	report, err := cli.Info(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Active tab: %s\n", report.Tab.Label)
	fmt.Fprintf(stdout, "Identity: %s\n", report.Identity)
	if report.CurrentGroup > 0 {
		fmt.Fprintf(stdout, "Group: %d\n", report.CurrentGroup)
	}
	if len(report.Attributes) > 0 {
		fmt.Fprintln(stdout, "Attributes:")
		for _, field := range attributeOrder {
			if value, ok := report.Attributes[field]; ok && value != "" {
				fmt.Fprintf(stdout, "  %s: %s\n", field, value)
			}
		}
	}
	if len(report.Rules) > 0 {
		fmt.Fprintln(stdout, "Rules:")
		for _, trace := range report.Rules {
			switch {
			case trace.Matched:
				fmt.Fprintf(stdout, "  %q on %s -> group %d (matched)\n", trace.Pattern, trace.Field, trace.TargetGroup)
			case trace.Skipped != "":
				fmt.Fprintf(stdout, "  %q on %s -> group %d (skipped: %s)\n", trace.Pattern, trace.Field, trace.TargetGroup, trace.Skipped)
			default:
				fmt.Fprintf(stdout, "  %q on %s -> group %d (no match)\n", trace.Pattern, trace.Field, trace.TargetGroup)
			}
		}
	}
	return nil
}

var attributeOrder = []string{"fileName", "uri", "tabLabel", "tabInputType", "viewType", "languageId"}

func runDump(ctx context.Context, cli *client.Client, stdout io.Writer) error {
	world, err := cli.Dump(ctx)
	if err != nil {
		return err
	}
	if len(world.Groups) == 0 {
		fmt.Fprintln(stdout, "No groups")
		return nil
	}
	for i, group := range world.Groups {
		marker := " "
		if group.Active {
			marker = "*"
		}
		fmt.Fprintf(stdout, "%s group %d (id %d, %d tabs)\n", marker, i+1, group.ID, len(group.Tabs))
		for _, tab := range group.Tabs {
			active := " "
			if tab.Active {
				active = "*"
			}
			fmt.Fprintf(stdout, "  %s %s\n", active, tab.Label)
		}
	}
	return nil
}

func runRoute(ctx context.Context, cli *client.Client, stdout io.Writer) error {
	result, err := cli.Route(ctx)
	if err != nil {
		return err
	}
	if result.Moves > 0 {
		fmt.Fprintf(stdout, "Routed: %d move(s)\n", result.Moves)
	} else {
		fmt.Fprintln(stdout, "No move needed")
	}
	return nil
}

func runReload(ctx context.Context, cli *client.Client, stdout io.Writer) error {
	if err := cli.Reload(ctx); err != nil {
		return err
	}
	fmt.Fprintln(stdout, "Reload requested")
	return nil
}

func runMetrics(ctx context.Context, cli *client.Client, stdout io.Writer) error {
	snap, err := cli.Metrics(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Started: %s\n", snap.Started.Format(time.RFC3339))
	fmt.Fprintf(stdout, "Evaluations: %d\n", snap.Evaluations)
	fmt.Fprintf(stdout, "Matches: %d\n", snap.Matches)
	fmt.Fprintf(stdout, "Moves: %d\n", snap.Moves)
	fmt.Fprintf(stdout, "Move errors: %d\n", snap.MoveErrors)
	fmt.Fprintf(stdout, "Suppressed (global): %d\n", snap.SuppressedGlobal)
	fmt.Fprintf(stdout, "Suppressed (keyed): %d\n", snap.SuppressedKeyed)
	fmt.Fprintf(stdout, "Groups created: %d\n", snap.GroupsCreated)
	if !snap.LastMove.IsZero() {
		fmt.Fprintf(stdout, "Last move: %s\n", snap.LastMove.Format(time.RFC3339))
	}
	return nil
}
