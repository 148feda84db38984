package loader

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sarchlab/rvsim/insts"
)

// ErrSyntax is returned for a program line that is not a 32-bit number.
var ErrSyntax = errors.New("invalid program word")

type hexOptions struct {
	sentinel bool
}

// HexOption configures ParseHex and LoadHexFile.
type HexOption func(*hexOptions)

// WithSentinel appends the termination word to the parsed program.
func WithSentinel() HexOption {
	return func(o *hexOptions) {
		o.sentinel = true
	}
}

// ParseHex reads a program with one instruction word per line. Blank lines
// and lines starting with '#' or "//" are skipped. Words may be written in
// hex (0x prefix), octal (leading 0) or decimal.
func ParseHex(r io.Reader, opts ...HexOption) ([]uint32, error) {
	var o hexOptions
	for _, opt := range opts {
		opt(&o)
	}

	var words []uint32
	scanner := bufio.NewScanner(r)
	lineNumber := 0

	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}

		word, err := strconv.ParseUint(line, 0, 32)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w: %q", lineNumber, ErrSyntax, line)
		}

		words = append(words, uint32(word))
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read program: %w", err)
	}

	if o.sentinel {
		words = append(words, insts.HaltWord)
	}

	return words, nil
}

// LoadHexFile parses the program file at path.
func LoadHexFile(path string, opts ...HexOption) ([]uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open program file: %w", err)
	}
	defer func() { _ = f.Close() }()

	words, err := ParseHex(f, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return words, nil
}
