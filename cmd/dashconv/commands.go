package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/platformbuilds/dashbridge/internal/config"
	"github.com/platformbuilds/dashbridge/internal/converter"
	"github.com/platformbuilds/dashbridge/internal/logging"
	"github.com/platformbuilds/dashbridge/internal/models"
	"github.com/platformbuilds/dashbridge/internal/services"
	"github.com/platformbuilds/dashbridge/internal/store"
	"github.com/platformbuilds/dashbridge/pkg/cache"
	"github.com/platformbuilds/dashbridge/pkg/logger"
)

type app struct {
	fs         afero.Fs
	stdout     io.Writer
	stderr     io.Writer
	configPath string
	verbose    bool
}

func newRootCmd(fs afero.Fs, out, errOut io.Writer) *cobra.Command {
	a := &app{fs: fs, stdout: out, stderr: errOut}

	root := &cobra.Command{
		Use:           "dashconv",
		Short:         "Convert Grafana dashboards to Kibana saved objects",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(errOut)
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file supplying conversion defaults")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log conversion details to stdout")

	root.AddCommand(newConvertCmd(a), newValidateCmd(a), newCapabilitiesCmd(a))
	return root
}

// service builds an in-process ConversionService with in-memory records.
func (a *app) service() (*services.ConversionService, error) {
	cfg := config.GetDefaultConfig()
	if a.configPath != "" {
		loaded, err := config.LoadFile(a.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	log := logger.NewNop()
	if a.verbose {
		log = logger.New("debug")
	}
	st := store.NewValkeyStore(cache.NewNoopValkeyCache(log), 0)
	conv := converter.New(converter.WithLogger(logging.FromCoreLogger(log)))
	return services.NewConversionService(conv, st, nil, nil, log, cfg), nil
}

func (a *app) readFile(path string) ([]byte, error) {
	raw, err := afero.ReadFile(a.fs, path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return raw, nil
}

func newConvertCmd(a *app) *cobra.Command {
	var (
		outDir  string
		format  string
		options []string
	)
	cmd := &cobra.Command{
		Use:   "convert <file>",
		Short: "Convert a Grafana dashboard JSON file",
		Long: `Convert a Grafana dashboard export into a Kibana dashboard saved object.

Examples:
  dashconv convert overview.json
  dashconv convert overview.json --format both --out ./kibana
  dashconv convert overview.json --option target_version=8.0.0 --option index_pattern_mapping.prometheus=metrics-*`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "ndjson" && format != "both" {
				return fmt.Errorf("unsupported format %q (want json, ndjson or both)", format)
			}
			rawOpts, err := parseOptionFlags(options)
			if err != nil {
				return err
			}
			raw, err := a.readFile(args[0])
			if err != nil {
				return err
			}
			svc, err := a.service()
			if err != nil {
				return err
			}

			out, err := svc.Convert(context.Background(), raw, rawOpts)
			if err != nil {
				return err
			}
			res := out.Result
			if res.Status != models.StatusCompleted {
				return fmt.Errorf("conversion failed: %s", res.ErrorMessage)
			}

			base := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			if err := a.fs.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("create %s: %w", outDir, err)
			}
			var written []string
			if format == "json" || format == "both" {
				data, err := json.MarshalIndent(res.KibanaDashboard, "", "  ")
				if err != nil {
					return fmt.Errorf("encode dashboard: %w", err)
				}
				path := filepath.Join(outDir, base+".kibana.json")
				if err := afero.WriteFile(a.fs, path, data, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", path, err)
				}
				written = append(written, path)
			}
			if format == "ndjson" || format == "both" {
				line, err := converter.ToNDJSON(res.KibanaDashboard)
				if err != nil {
					return err
				}
				path := filepath.Join(outDir, base+".kibana.ndjson")
				if err := afero.WriteFile(a.fs, path, []byte(line), 0o644); err != nil {
					return fmt.Errorf("write %s: %w", path, err)
				}
				written = append(written, path)
			}

			fmt.Fprintf(a.stdout, "Converted %q: %d panels (%d in source) in %dms\n",
				res.KibanaDashboard.Attributes.Title, out.KibanaPanels, out.Summary.TotalPanels, res.ConversionTimeMs)
			for _, p := range written {
				fmt.Fprintf(a.stdout, "  wrote %s\n", p)
			}
			for _, w := range converter.Warnings(out.Summary) {
				fmt.Fprintf(a.stderr, "warning: %s\n", w)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "output directory")
	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format: json, ndjson or both")
	cmd.Flags().StringArrayVar(&options, "option", nil, "conversion option as key=value (repeatable)")
	return cmd
}

// parseOptionFlags turns key=value pairs into a raw options map. A dotted
// key sets one entry of a map option, e.g. index_pattern_mapping.loki=logs-*.
func parseOptionFlags(pairs []string) (map[string]interface{}, error) {
	opts := map[string]interface{}{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid option %q: want key=value", pair)
		}
		parent, child, nested := strings.Cut(key, ".")
		if !nested {
			opts[key] = value
			continue
		}
		m, _ := opts[parent].(map[string]interface{})
		if m == nil {
			m = map[string]interface{}{}
			opts[parent] = m
		}
		m[child] = value
	}
	return opts, nil
}

func newValidateCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a Grafana dashboard and summarise its panels",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "json" && output != "yaml" {
				return fmt.Errorf("unsupported output %q (want json or yaml)", output)
			}
			raw, err := a.readFile(args[0])
			if err != nil {
				return err
			}
			svc, err := a.service()
			if err != nil {
				return err
			}
			report := svc.Validate(raw)
			if err := a.print(report, output); err != nil {
				return err
			}
			if !report.Valid {
				return fmt.Errorf("%s is not a valid Grafana dashboard", args[0])
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "json", "output format: json or yaml")
	return cmd
}

func newCapabilitiesCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "capabilities",
		Short: "List supported panel types, datasources and limits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			return a.print(svc.Capabilities(), output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "json", "output format: json or yaml")
	return cmd
}

// print writes v as indented JSON or as YAML keyed by the JSON field names.
func (a *app) print(v interface{}, output string) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if output != "yaml" {
		_, err = fmt.Fprintln(a.stdout, string(data))
		return err
	}
	var generic interface{}
	if err := json.Unmarshal(data, &generic); err != nil {
		return err
	}
	enc := yaml.NewEncoder(a.stdout)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return err
	}
	return enc.Close()
}
