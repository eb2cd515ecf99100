package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// loadDotEnvFiles exports values from each dotenv file in order. Variables
// already set to a non-empty value are never replaced, so explicit env wins
// and earlier files win over later ones.
func loadDotEnvFiles(paths ...string) error {
	for _, path := range paths {
		values, err := godotenv.Read(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
		for key, value := range values {
			if existing, ok := os.LookupEnv(key); ok && strings.TrimSpace(existing) != "" {
				continue
			}
			if err := os.Setenv(key, value); err != nil {
				return err
			}
		}
	}
	return nil
}
