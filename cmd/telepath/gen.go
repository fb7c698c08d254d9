package main

import (
	"context"
	stderrors "errors"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/telepath-dev/telepath/internal/errors"
	"github.com/telepath-dev/telepath/internal/watch"
	"github.com/telepath-dev/telepath/pkg/gen"
	"github.com/telepath-dev/telepath/pkg/manifest"
)

func genCmd() *cobra.Command {
	var (
		output     string
		watchMode  bool
		noManifest bool
	)

	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate the route table",
		Long: `Scan the configured directories for //telepath: directives, validate
every declaration and write the generated route table.

The output is deterministic: running it again produces identical output
unless the declarations change, and an unchanged file is not rewritten.
When manifest.enabled is set the route manifest is written as well.

Examples:
  telepath gen
  telepath gen -o internal/nav/telepath_gen.go
  telepath gen --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if output != "" {
				p.cfg.Gen.Output = output
			}
			if noManifest {
				p.cfg.Manifest.Enabled = false
			}

			if !watchMode {
				return runGen(cmd.Context(), p)
			}
			return runGenWatch(cmd.Context(), p)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: gen.output from config)")
	cmd.Flags().BoolVarP(&watchMode, "watch", "w", false, "Regenerate whenever a Go file changes")
	cmd.Flags().BoolVar(&noManifest, "no-manifest", false, "Skip writing the route manifest")

	return cmd
}

func runGen(ctx context.Context, p *project) error {
	s, res, table, err := p.build()
	if err != nil {
		return err
	}
	info("Found %s in %s", plural(table.Len(), "route"), plural(len(res.Packages), "package"))

	out := p.cfg.OutputPath()
	g := gen.NewGenerator(p.cfg.Gen.Package,
		gen.WithImportPath(s.ImportPath(filepath.Dir(out))),
		gen.WithPackageNames(res.Packages),
	)
	src, err := g.Generate(table)
	if err != nil {
		return errors.New("T305").Wrap(err)
	}

	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return errors.New("T305").Wrap(err)
	}
	changed, err := gen.WriteFile(out, src)
	if err != nil {
		return errors.New("T305").Wrap(err)
	}
	if changed {
		success("Generated %s", p.rel(out))
	} else {
		success("%s is up to date", p.rel(out))
	}

	if p.cfg.Manifest.Enabled {
		if err := manifest.NewEmitter(p.logger, p.sinks()...).Emit(ctx, table); err != nil {
			manifestWarning(err)
		} else {
			info("Manifest written to %s", p.rel(p.cfg.ManifestPath()))
		}
	}
	return nil
}

func runGenWatch(ctx context.Context, p *project) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runGen(ctx, p); err != nil && !stderrors.Is(err, errReported) {
		errors.Print(p.stderr, err)
	}

	w, err := watch.New(watch.Config{
		Paths:    p.cfg.ScanPaths(),
		Ignore:   append(p.cfg.Watch.Ignore, filepath.Base(p.cfg.OutputPath())),
		Debounce: p.cfg.DebounceDuration(),
	}, func(changed []string) {
		p.logger.Debug("regenerating", zap.Strings("changed", changed))
		info("%s changed, regenerating", plural(len(changed), "file"))
		if err := runGen(ctx, p); err != nil && !stderrors.Is(err, errReported) {
			errors.Print(p.stderr, err)
		}
	}, watch.WithLogger(p.logger))
	if err != nil {
		return err
	}
	defer w.Close()

	info("Watching for changes (Ctrl+C to stop)")
	if err := w.Run(ctx); err != nil && !stderrors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
