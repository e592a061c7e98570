package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"sqleval/core"
	"sqleval/exprtest"
)

type options struct {
	files      []string
	dirs       []string
	configPath string
	verbose    bool
	tags       []string
	traceLevel string
	traceComps []string
}

// errFailures makes the process exit non-zero once the summary is printed
var errFailures = errors.New("test failures")

func main() {
	if err := rootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "sqleval-test [suite files...]",
		Short: "Run expression test suites",
		Long:  "Run YAML or JSON expression test suites against inline columns or Parquet files",
		Example: `  sqleval-test exprtest/testdata/basic.yaml
  sqleval-test --dir suites/ --verbose --tags pattern,arith
  sqleval-test suite.yaml --trace-level DEBUG --trace-components WORKER,PATTERN`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.files = append(opts.files, args...)
			if len(opts.files) == 0 && len(opts.dirs) == 0 {
				return fmt.Errorf("no suites given: pass suite files or --dir")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return run(ctx, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVar(&opts.files, "file", nil, "Path to a YAML or JSON test suite")
	flags.StringSliceVar(&opts.dirs, "dir", nil, "Path to directory containing test suites")
	flags.StringVar(&opts.configPath, "config", "", "Path to a TOML engine configuration")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose output")
	flags.StringSliceVar(&opts.tags, "tags", nil, "Only run cases carrying one of these tags")
	flags.StringVar(&opts.traceLevel, "trace-level", "", "Override trace level (OFF, ERROR, WARN, INFO, DEBUG, VERBOSE)")
	flags.StringSliceVar(&opts.traceComps, "trace-components", nil, "Override trace components, or ALL")
	return cmd
}

func run(ctx context.Context, opts options) error {
	cfg, err := core.LoadConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if opts.traceLevel != "" {
		cfg.Trace.Level = opts.traceLevel
	}
	if len(opts.traceComps) > 0 {
		cfg.Trace.Components = opts.traceComps
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	core.GetTracer().Configure(cfg.Trace)

	testFiles := opts.files
	for _, dir := range opts.dirs {
		found, err := findTestFiles(dir)
		if err != nil {
			return fmt.Errorf("failed to find test files: %w", err)
		}
		testFiles = append(testFiles, found...)
	}
	fmt.Printf("Found %d test file(s)\n", len(testFiles))

	runner, err := exprtest.NewTestRunner(cfg, os.Stdout)
	if err != nil {
		return err
	}
	defer runner.Close()
	runner.SetVerbose(opts.verbose)

	total, passed, broken := 0, 0, 0
	for _, file := range testFiles {
		fmt.Printf("\n=== Processing: %s ===\n", file)

		suite, err := exprtest.LoadTestSuite(file)
		if err != nil {
			fmt.Printf("Error loading test suite: %v\n", err)
			broken++
			continue
		}
		suite.FilterByTags(opts.tags)

		results, err := runner.RunTestSuite(ctx, suite)
		if err != nil {
			fmt.Printf("Error running test suite: %v\n", err)
			broken++
			continue
		}
		for _, result := range results {
			total++
			if result.Status == exprtest.TestStatusPass {
				passed++
			}
		}
	}

	fmt.Printf("\n=== OVERALL SUMMARY ===\n")
	fmt.Printf("Total tests: %d\n", total)
	fmt.Printf("Passed: %d\n", passed)
	fmt.Printf("Failed: %d\n", total-passed)
	if broken > 0 {
		fmt.Printf("Unreadable suites: %d\n", broken)
	}
	if total > passed || broken > 0 {
		return errFailures
	}
	return nil
}

func findTestFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		switch filepath.Ext(path) {
		case ".yaml", ".yml", ".json":
			if !info.IsDir() {
				files = append(files, path)
			}
		}
		return nil
	})
	return files, err
}
