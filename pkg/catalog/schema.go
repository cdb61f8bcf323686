package catalog

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
)

// schemaID identifies the frontmatter schema.
const schemaID = "https://github.com/jingkaihe/pipeskills/catalog.schema.json"

// Schema returns the JSON schema of the catalog frontmatter.
func Schema() *jsonschema.Schema {
	r := &jsonschema.Reflector{
		FieldNameTag:               "yaml",
		RequiredFromJSONSchemaTags: false,
		DoNotReference:             true,
	}
	s := r.Reflect(&frontmatter{})
	s.ID = jsonschema.ID(schemaID)
	s.Title = "Skill catalog frontmatter"
	return s
}

// SchemaJSON returns the indented JSON form of Schema.
func SchemaJSON() ([]byte, error) {
	b, err := json.MarshalIndent(Schema(), "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal schema")
	}
	return b, nil
}
