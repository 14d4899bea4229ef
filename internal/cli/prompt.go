package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

var (
	errNotTerminal = errors.New("stdin is not a terminal")
	errNoInput     = errors.New("no input")
)

// prompter reads answers from stdin. Secrets are read without echo when stdin is a terminal.
type prompter struct {
	in     io.Reader
	reader *bufio.Reader
	out    io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	if in == nil {
		in = strings.NewReader("")
	}
	return &prompter{in: in, reader: bufio.NewReader(in), out: out}
}

func (p *prompter) line(label string) (string, error) {
	fmt.Fprint(p.out, label)
	value, err := readLine(p.reader)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(value), nil
}

func (p *prompter) secret(label string) (string, error) {
	fmt.Fprint(p.out, label)
	if file, ok := p.in.(*os.File); ok {
		value, err := readPasswordNoEcho(file, p.reader)
		if err == nil {
			fmt.Fprintln(p.out)
			return value, nil
		}
		if !errors.Is(err, errNotTerminal) {
			return "", err
		}
	}
	return readLine(p.reader)
}

func readLine(reader *bufio.Reader) (string, error) {
	line, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	if err != nil && line == "" {
		return "", errNoInput
	}
	return strings.TrimRight(line, "\r\n"), nil
}
