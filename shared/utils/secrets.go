package utils

import (
	"fmt"
	"os"
	"strings"
)

// ReadSecret reads a Docker secret from /run/secrets/<name>, falling back to the envVar environment variable.
func ReadSecret(secretName, envVar string) (string, error) {
	filePath := fmt.Sprintf("/run/secrets/%s", secretName)
	if secretBytes, err := os.ReadFile(filePath); err == nil {
		if secret := strings.TrimSpace(string(secretBytes)); secret != "" {
			return secret, nil
		}
	}
	if envVar != "" {
		if v := strings.TrimSpace(os.Getenv(envVar)); v != "" {
			return v, nil
		}
	}
	return "", fmt.Errorf("secret %s not found in %s or $%s", secretName, filePath, envVar)
}
