package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ivlev/compositor/internal/project"
)

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [project.yaml]",
		Short: "Check a project: parameters, links, cycles and required inputs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := projectArg(args)
			if err != nil {
				return err
			}
			a, err := newApp(cmd, projectDir(path))
			if err != nil {
				return err
			}
			defer a.close()

			doc, err := project.Read(path)
			if err != nil {
				return err
			}
			a.defaults().Apply(doc)
			if err := doc.Validate(a.reg); err != nil {
				return err
			}
			fmt.Printf("%s: %d layers OK\n", path, len(doc.Layers))
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}
}
