//go:build !windows && !linux && !darwin && !freebsd && !netbsd && !openbsd && !dragonfly

package cli

import (
	"bufio"
	"os"
)

func readPasswordNoEcho(_ *os.File, _ *bufio.Reader) (string, error) {
	return "", errNotTerminal
}
