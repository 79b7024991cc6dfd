package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/llehouerou/beatbank/internal/errmsg"
)

func main() {
	cmd, cleanup := newRootCommand()
	err := cmd.Execute()
	cleanup()
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "%v (%s)\n", err, errmsg.Kind(err))
		}
		os.Exit(1)
	}
}
