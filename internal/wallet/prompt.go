package wallet

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/term"
)

// PromptPassword prompts for a secret on stderr and reads it from stdin without echo.
// When stdin is not a terminal the next line is read instead, so secrets can be piped.
//
//nolint:forbidigo // Password input requires direct terminal I/O
func PromptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return readLine()
	}

	passwordBytes, err := term.ReadPassword(fd)
	if err != nil {
		return "", errors.Wrap(err, "failed to read password from terminal")
	}

	fmt.Fprintln(os.Stderr) // New line after password input

	return string(passwordBytes), nil
}

// PromptNewPassword asks for a password twice and enforces minLength.
func PromptNewPassword(minLength int) (string, error) {
	password, err := PromptPassword(fmt.Sprintf("Enter wallet password (min %d characters): ", minLength))
	if err != nil {
		return "", err
	}
	if len(password) < minLength {
		return "", errors.Errorf("password must be at least %d characters", minLength)
	}

	passwordConfirm, err := PromptPassword("Confirm password: ")
	if err != nil {
		return "", errors.Wrap(err, "failed to read password confirmation")
	}
	if password != passwordConfirm {
		return "", errors.New("passwords do not match")
	}

	return password, nil
}

// stdin is shared so buffered input survives between prompts.
var stdin = bufio.NewReader(os.Stdin)

func readLine() (string, error) {
	line, err := stdin.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", errors.Wrap(err, "failed to read password")
	}
	return strings.TrimRight(line, "\r\n"), nil
}
