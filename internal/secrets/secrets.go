// Package secrets resolves provider credentials for the reading store and the
// notifiers. Values come from literal configuration, ${VAR} references,
// mounted secret files or a remote get-secret endpoint. Secret values are
// never logged.
package secrets

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/firewatch-dev/firewatch/internal/errors"
	"github.com/firewatch-dev/firewatch/internal/logger"
)

const componentSecrets = "secrets"

// maxSecretFileSize bounds how much of a mounted secret file is read.
const maxSecretFileSize = 64 * 1024

func configError(err error) *errors.ErrorBuilder {
	return errors.New(err).
		Component(componentSecrets).
		Category(errors.CategoryConfiguration)
}

// ExpandString substitutes ${VAR} and ${VAR:-fallback} references with
// environment values. A reference without a fallback must be set and
// non-empty; an explicit fallback may itself be empty.
func ExpandString(s string) (string, error) {
	var missing []string
	out := os.Expand(s, func(ref string) string {
		name, fallback, hasFallback := strings.Cut(ref, ":-")
		if v := os.Getenv(name); v != "" {
			return v
		}
		if !hasFallback {
			missing = append(missing, name)
		}
		return fallback
	})
	if len(missing) > 0 {
		return "", configError(fmt.Errorf("environment variable not set: %s", strings.Join(missing, ", "))).
			Context("variables", missing).
			Build()
	}
	return out, nil
}

// ReadFile reads a mounted secret such as /run/secrets/twilio_auth_token.
// Trailing newlines are dropped; other whitespace is kept as written.
func ReadFile(path string) (string, error) {
	if path == "" {
		return "", configError(errors.NewStd("secret file path is empty")).Build()
	}
	path = filepath.Clean(path)

	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "", configError(fmt.Errorf("secret file not found: %s", path)).Build()
	case err != nil:
		return "", configError(fmt.Errorf("stat secret file %s: %w", path, err)).Build()
	case !info.Mode().IsRegular():
		return "", configError(fmt.Errorf("secret path is not a regular file: %s", path)).Build()
	case info.Size() > maxSecretFileSize:
		return "", configError(fmt.Errorf("secret file %s exceeds %d bytes", path, maxSecretFileSize)).Build()
	}

	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		logger.Global().Module(componentSecrets).Warn("secret file is readable by group or others",
			logger.String("path", path),
			logger.String("mode", fmt.Sprintf("%04o", perm)))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", configError(fmt.Errorf("read secret file %s: %w", path, err)).Build()
	}
	secret := strings.TrimRight(string(data), "\r\n")
	if secret == "" {
		return "", configError(fmt.Errorf("secret file is empty: %s", path)).Build()
	}
	return secret, nil
}

// Resolve returns the secret from filePath when set, otherwise value after
// ${VAR} expansion. Both empty resolves to "".
func Resolve(filePath, value string) (string, error) {
	if filePath != "" {
		return ReadFile(filePath)
	}
	return ExpandString(value)
}

// MustResolve is Resolve for required credentials; field names the setting in
// the error.
func MustResolve(field, filePath, value string) (string, error) {
	secret, err := Resolve(filePath, value)
	if err != nil {
		return "", err
	}
	if secret == "" {
		return "", configError(fmt.Errorf("%s is required but not provided", field)).
			Context("field", field).
			Build()
	}
	return secret, nil
}
