package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/telepath-dev/telepath/pkg/manifest"
)

func manifestCmd() *cobra.Command {
	var publish bool

	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Print or publish the route manifest",
		Long: `Print the route manifest: one tab-separated line per route with its
path, prefix flag, description and handler signature.

With --publish the manifest is written to manifest.path and, when
manifest.s3 is configured, uploaded to S3. Publishing failures are
warnings; the command still succeeds.

Examples:
  telepath manifest
  telepath manifest --publish`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			_, _, table, err := p.build()
			if err != nil {
				return err
			}

			if !publish {
				return manifest.Write(cmd.OutOrStdout(), table, time.Now())
			}

			sinks := p.sinks()
			if err := manifest.NewEmitter(p.logger, sinks...).Emit(cmd.Context(), table); err != nil {
				manifestWarning(err)
				return nil
			}
			for _, s := range sinks {
				success("Published to %s", s)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&publish, "publish", "p", false, "Write the manifest to the configured file and S3 bucket")

	return cmd
}
