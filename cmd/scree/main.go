// Command scree runs a filesystem-backed OCI container registry.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

func main() {
	app := &cli.Command{
		Name:  "scree",
		Usage: "a filesystem-backed OCI container registry",
		Commands: []*cli.Command{
			serveCommand(),
		},
	}
	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "scree: %v\n", err)
		os.Exit(1)
	}
}
