package main

import (
	"fmt"
	"os"

	"github.com/ibarwick/config-log/internal/cli"
	"github.com/ibarwick/config-log/internal/common"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		if hint := common.HintFromError(err); hint != "" {
			fmt.Fprintf(os.Stderr, "HINT: %s\n", hint)
		}
		os.Exit(common.ExitCodeFromError(err))
	}
}
