package conf

import (
	"encoding/json"

	"github.com/dosco/mongopipe/core"
	"github.com/invopop/jsonschema"
)

// Schema returns the JSON schema of pipeline definition files.
func Schema() ([]byte, error) {
	r := &jsonschema.Reflector{}
	s := r.Reflect(&Definition{})
	s.Title = "mongopipe pipeline definition"
	return json.MarshalIndent(s, "", "  ")
}

// ConfigSchema returns the JSON schema of the config file. Every key is
// optional since defaults and environment variables fill the gaps.
func ConfigSchema() ([]byte, error) {
	r := &jsonschema.Reflector{RequiredFromJSONSchemaTags: true}
	s := r.Reflect(&core.Config{})
	s.Title = "mongopipe config"
	return json.MarshalIndent(s, "", "  ")
}
