package cmd

import (
	"bytes"
	"fmt"
	"log"
	"path/filepath"

	"github.com/quatton/qgate/pkg/qart"
	"github.com/quatton/qgate/pkg/qsdk"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [dir]",
	Short: "Upload a program and run it as a job",
	Long: `Archives the program directory, uploads it and submits a job to your
first compute resource. Flags override the "program" section of qgate.yaml.

Example qgate.yaml:

	program:
	  title: bell-state
	  entrypoint: main.py
	  dependencies: [qiskit]`,
	Args: cobra.MaximumNArgs(1),
	Run:  runProgram,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().String("title", "", "Program title; reusing a title updates that program")
	runCmd.Flags().String("entrypoint", "", "File to execute, relative to the program directory")
	runCmd.Flags().String("arguments", "", "Arguments passed to the job as ENV_JOB_ARGUMENTS")
	runCmd.Flags().StringSlice("dependency", nil, "pip package to install (repeatable)")
}

func runProgram(cmd *cobra.Command, args []string) {
	cfg, err := GetConfig(cmd)
	if err != nil {
		log.Fatalf("%v", err)
	}

	program := cfg.Program
	flags := cmd.Flags()
	if v, _ := flags.GetString("title"); v != "" {
		program.Title = v
	}
	if v, _ := flags.GetString("entrypoint"); v != "" {
		program.Entrypoint = v
	}
	if flags.Changed("arguments") {
		program.Arguments, _ = flags.GetString("arguments")
	}
	if flags.Changed("dependency") {
		program.Dependencies, _ = flags.GetStringSlice("dependency")
	}
	if len(args) == 1 {
		program.Dir = args[0]
	}

	dir, err := filepath.Abs(program.Dir)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if program.Title == "" {
		program.Title = filepath.Base(dir)
	}
	if program.Entrypoint == "" {
		log.Fatalf("entrypoint is required: pass --entrypoint or set program.entrypoint")
	}

	var archive bytes.Buffer
	if err := qart.PackTar(dir, &archive); err != nil {
		log.Fatalf("archiving %s: %v", dir, err)
	}

	sdk := qsdk.NewSdk(cfg)
	job, err := sdk.RunProgram(cmd.Context(), qsdk.ProgramUpload{
		Title:        program.Title,
		Entrypoint:   program.Entrypoint,
		Arguments:    program.Arguments,
		Dependencies: program.Dependencies,
		Artifact:     &archive,
		ArtifactName: program.Title + ".tar",
	})
	exitIfSdkError(err)

	fmt.Printf("Job %s submitted to %s\n", job.ID, job.ComputeResource)
	fmt.Printf("Remote id: %s\n", job.RemoteJobID)
	fmt.Printf("Follow with: qgate jobs get %s\n", job.ID)
}
