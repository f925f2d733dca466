// Command geneflow runs a declarative scientific-pipeline job: it loads an
// app/workflow/job document set, numbers and validates the workflow's DAG,
// and drives it to completion through internal/engine.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "geneflow",
		Short: "Workflow engine for scientific pipelines",
	}

	root.AddCommand(runCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
