package main

import (
	"errors"
	"log"
	"os"

	"github.com/amirimatin/eventstore-probes/pkg/cli"
)

func main() {
	err := cli.NewRootCommand(os.Stdout, os.Stderr).Execute()
	var ee *cli.ExitError
	if err != nil && (!errors.As(err, &ee) || ee.Message != "") {
		log.Print(err)
	}
	os.Exit(cli.ExitCode(err))
}
