//go:build windows

package cli

import (
	"bufio"
	"fmt"
	"os"

	"golang.org/x/sys/windows"
)

func readPasswordNoEcho(stdin *os.File, reader *bufio.Reader) (string, error) {
	handle := windows.Handle(stdin.Fd())
	var originalMode uint32
	if err := windows.GetConsoleMode(handle, &originalMode); err != nil {
		return "", fmt.Errorf("%w: %v", errNotTerminal, err)
	}

	updatedMode := originalMode &^ windows.ENABLE_ECHO_INPUT
	if err := windows.SetConsoleMode(handle, updatedMode); err != nil {
		return "", err
	}
	defer func() {
		_ = windows.SetConsoleMode(handle, originalMode)
	}()

	return readLine(reader)
}
