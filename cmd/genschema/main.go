// Command genschema prints the JSON Schema of medbuddy.toml, or writes it to
// the path given as the only argument.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/invopop/jsonschema"
	"github.com/spf13/afero"

	"github.com/bolasblack/medbuddy/internal/settings"
)

const schemaID = "https://raw.githubusercontent.com/bolasblack/medbuddy/refs/heads/master/medbuddy.schema.json"

func main() {
	data, err := buildSchema()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if len(os.Args) < 2 {
		fmt.Println(string(data))
		return
	}
	if err := afero.WriteFile(afero.NewOsFs(), os.Args[1], append(data, '\n'), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func buildSchema() ([]byte, error) {
	r := jsonschema.Reflector{
		// medbuddy.toml keys follow the toml tags.
		FieldNameTag:               "toml",
		RequiredFromJSONSchemaTags: true,
		AllowAdditionalProperties:  false,
	}
	schema := r.Reflect(&settings.Settings{})
	schema.ID = jsonschema.ID(schemaID)
	schema.Title = "medbuddy settings"
	schema.Description = "Schema for medbuddy.toml, the medbuddy home settings file"
	return json.MarshalIndent(schema, "", "  ")
}
