package main

import (
	stderrors "errors"
	"fmt"
	"io"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/telepath-dev/telepath/internal/config"
	"github.com/telepath-dev/telepath/internal/errors"
	"github.com/telepath-dev/telepath/internal/logging"
	"github.com/telepath-dev/telepath/pkg/manifest"
	"github.com/telepath-dev/telepath/pkg/route"
	"github.com/telepath-dev/telepath/pkg/scan"
)

// project is a loaded configuration plus the logger built from it.
type project struct {
	cfg    *config.Config
	logger *zap.Logger
	stderr io.Writer
}

func loadProject(stderr io.Writer) (*project, error) {
	var cfg *config.Config
	var err error
	if configFile != "" {
		cfg, err = config.LoadFile(configFile)
	} else {
		cfg, err = config.LoadFromWorkingDir()
	}
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := logging.NewWriter(cfg.Log, stderr)
	if err != nil {
		return nil, err
	}
	return &project{cfg: cfg, logger: logger, stderr: stderr}, nil
}

// build scans the project and folds the result into a table. Diagnostics
// are printed and errReported is returned when anything is wrong.
func (p *project) build() (*scan.Scanner, *scan.Result, *route.Table, error) {
	opts := []scan.Option{
		scan.WithExclude(p.cfg.Scan.Exclude...),
		scan.WithLogger(p.logger),
	}
	if p.cfg.Module != "" {
		opts = append(opts, scan.WithModulePath(p.cfg.Module))
	}

	s, err := scan.New(p.cfg.Dir(), opts...)
	if err != nil {
		var se *scan.Error
		if stderrors.As(err, &se) {
			return nil, nil, nil, se.Diagnostic()
		}
		return nil, nil, nil, err
	}

	res, err := s.Scan(p.cfg.Scan.Dirs...)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(res.Errors) > 0 {
		for _, e := range res.Errors {
			errors.Print(p.stderr, e.Diagnostic())
		}
		errorMsg("%d scan error(s)", len(res.Errors))
		return nil, nil, nil, errReported
	}

	table, err := res.Build(route.WithLogger(p.logger))
	if err != nil {
		p.reportBuild(err)
		return nil, nil, nil, errReported
	}
	return s, res, table, nil
}

func (p *project) reportBuild(err error) {
	var multi *route.MultiBuildError
	if !stderrors.As(err, &multi) {
		errors.Print(p.stderr, err)
		return
	}
	for _, d := range multi.Diagnostics() {
		errors.Print(p.stderr, d)
	}
	errorMsg("%d route build error(s)", len(multi.Errors))
}

// sinks returns the configured manifest publishers.
func (p *project) sinks() []manifest.Sink {
	sinks := []manifest.Sink{&manifest.FileSink{Path: p.cfg.ManifestPath()}}
	if s3 := p.cfg.Manifest.S3; s3 != nil {
		client := manifest.NewS3Client(manifest.S3Config{Region: s3.Region, Endpoint: s3.Endpoint})
		sinks = append(sinks, manifest.NewS3Sink(client, s3.Bucket, s3.Key))
	}
	return sinks
}

// rel shortens path for display.
func (p *project) rel(path string) string {
	if r, err := filepath.Rel(p.cfg.Dir(), path); err == nil {
		return r
	}
	return path
}

// manifestWarning reports a failed emission without failing the command.
func manifestWarning(err error) {
	warn("%s (T306): %v", errors.Message("T306"), err)
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
