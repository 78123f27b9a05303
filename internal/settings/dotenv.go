package settings

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"

	"github.com/bolasblack/medbuddy/internal/util"
)

// LoadDotEnv reads a .env file and sets the variables it defines that are not
// already set in the process environment. A missing file is not an error. It
// returns the keys it set.
func LoadDotEnv(env *util.Env, path string) ([]string, error) {
	f, err := env.Fs.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	vars, err := godotenv.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	var set []string
	for key, value := range vars {
		if _, ok := env.LookupEnv(key); ok {
			continue
		}
		if err := env.Setenv(key, value); err != nil {
			return set, fmt.Errorf("failed to set %s: %w", key, err)
		}
		set = append(set, key)
	}
	return set, nil
}

// Token returns the sync token from $MEDBUDDY_TOKEN, or "".
func Token(env *util.Env) string {
	return env.Getenv(util.EnvToken)
}
