package env

import (
	"os"

	"github.com/joho/godotenv"
)

// Load reads the given dotenv files in order; a later file overrides an earlier
// one, but variables already set in the process environment always win.
// Missing files are skipped.
func Load(paths ...string) error {
	merged := map[string]string{}
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			continue
		}
		vals, err := godotenv.Read(p)
		if err != nil {
			return err
		}
		for k, v := range vals {
			merged[k] = v
		}
	}
	for k, v := range merged {
		if _, ok := os.LookupEnv(k); ok {
			continue
		}
		if err := os.Setenv(k, v); err != nil {
			return err
		}
	}
	return nil
}
