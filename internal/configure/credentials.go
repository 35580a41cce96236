package configure

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// CredentialsFromEnvFile builds an AttachCredentials mutation from a dotenv
// file. With keys given, only those keys are attached and each missing key
// falls back to the process environment; a key found in neither is an
// error. Without keys, every entry of the file is attached. An empty path
// reads only the process environment.
func CredentialsFromEnvFile(source, path string, keys ...string) (Mutation, error) {
	fileValues := map[string]string{}
	if path != "" {
		var err error
		fileValues, err = godotenv.Read(path)
		if err != nil {
			return nil, fmt.Errorf("credentials '%s': reading env file %s: %w", source, path, err)
		}
	}

	if len(keys) == 0 {
		return AttachCredentials(source, fileValues), nil
	}

	values := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := fileValues[k]; ok {
			values[k] = v
			continue
		}
		if v, ok := os.LookupEnv(k); ok {
			values[k] = v
			continue
		}
		return nil, fmt.Errorf("credentials '%s': key %s not found in env file or environment", source, k)
	}
	return AttachCredentials(source, values), nil
}
