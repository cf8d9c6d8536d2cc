package main

import (
	"errors"
	"fmt"
	"os"
)

const (
	ExitFit    = 0
	ExitNotFit = 1
	ExitError  = 2
)

// NotFitError means the evaluation completed and the dataset fell below a
// threshold.
type NotFitError struct {
	Issues []string
}

func (e *NotFitError) Error() string {
	return fmt.Sprintf("dataset not fit for purpose: %v", e.Issues)
}

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)

		var notFit *NotFitError
		if errors.As(err, &notFit) {
			os.Exit(ExitNotFit)
		}
		os.Exit(ExitError)
	}
}
