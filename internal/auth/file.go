package auth

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// LoadSecret returns the first line of the file at path, without its line
// terminator. An empty file yields "".
func LoadSecret(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open auth file: %w", err)
	}
	defer f.Close()

	line, err := bufio.NewReader(f).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read auth file: %w", err)
	}
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r"), nil
}

// LoadServerSecret reads and hashes the shared secret at path.
func LoadServerSecret(path string) (*Secret, error) {
	plain, err := LoadSecret(path)
	if err != nil {
		return nil, err
	}
	return NewSecret(plain)
}
