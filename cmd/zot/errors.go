package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/scholium/zotero-go/s2"
)

// exitS2Error outputs a Semantic Scholar error and exits with the matching
// code.
func exitS2Error(err error) {
	code := ExitAPIError
	switch {
	case s2.IsNotFound(err):
		code = ExitNotFound
	case errors.Is(err, s2.ErrAuthError):
		code = ExitAuthError
	}
	fmt.Fprintf(os.Stderr, "error: %s\n", err)
	os.Exit(code)
}
