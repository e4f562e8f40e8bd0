package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/soochol/platescan/internal/services"
	"github.com/spf13/cobra"
)

func processCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "process <file>",
		Short: "Run one video through detection and encoding",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			job, err := a.process.Process(cmd.Context(), services.Upload{
				Filename: filepath.Base(args[0]),
				Body:     f,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "original: %s\n", filepath.Join(a.uploads.Dir(), job.Filename))
			fmt.Fprintf(out, "result:   %s\n", filepath.Join(a.results.Dir(), job.ResultName))
			fmt.Fprintf(out, "time:     %.2fs\n", job.ProcessingTime)
			return nil
		},
	}
}
