// Package credfile writes secret values to short-lived files for tools
// that only accept credentials by path.
package credfile

import (
	"errors"
	"fmt"
	"os"

	"github.com/systmms/zligate/internal/secure"
)

// Pattern is the os.CreateTemp pattern used for every credential file.
const Pattern = "zligate-cred-*"

// With writes each value to its own uniquely named file in dir (os.TempDir
// when empty) and calls fn with the paths in the same order. Every file
// created is removed before With returns, including when fn fails or
// panics. Removal errors are joined into the returned error.
func With(dir string, values []*secure.SecureBuffer, fn func(paths []string) error) (err error) {
	paths := make([]string, 0, len(values))

	defer func() {
		for _, p := range paths {
			if rmErr := os.Remove(p); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				err = errors.Join(err, fmt.Errorf("failed to remove credential file: %w", rmErr))
			}
		}
	}()

	for i, v := range values {
		path, werr := write(dir, v)
		if path != "" {
			paths = append(paths, path)
		}
		if werr != nil {
			return fmt.Errorf("failed to materialize credential %d: %w", i, werr)
		}
	}

	return fn(append([]string(nil), paths...))
}

func write(dir string, value *secure.SecureBuffer) (string, error) {
	f, err := os.CreateTemp(dir, Pattern)
	if err != nil {
		return "", err
	}
	path := f.Name()

	// Owner-only access.
	if err := f.Chmod(0o600); err != nil {
		_ = f.Close()
		return path, err
	}

	werr := value.WithPlaintext(func(b []byte) error {
		_, err := f.Write(b)
		return err
	})
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}

	return path, werr
}
