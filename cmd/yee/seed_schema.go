// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yee Contributors

package main

import (
	"bytes"
	"encoding/json"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/samber/oops"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const seedSchemaURL = "seed.schema.json"

// generateSeedSchema reflects the JSON Schema of a seed file from seedFile.
func generateSeedSchema() ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference: true,
		Anonymous:      true,
	}
	schema := r.Reflect(&seedFile{})
	schema.Title = "Yee seed file"
	schema.Description = "Initial admin accounts created by yee seed"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, oops.Code("SEED_SCHEMA_INVALID").Wrap(err)
	}
	return data, nil
}

var compiledSeedSchema = sync.OnceValues(func() (*jschema.Schema, error) {
	data, err := generateSeedSchema()
	if err != nil {
		return nil, err
	}
	doc, err := jschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, oops.Code("SEED_SCHEMA_INVALID").Wrap(err)
	}

	c := jschema.NewCompiler()
	c.AssertFormat()
	if err := c.AddResource(seedSchemaURL, doc); err != nil {
		return nil, oops.Code("SEED_SCHEMA_INVALID").Wrap(err)
	}
	sch, err := c.Compile(seedSchemaURL)
	if err != nil {
		return nil, oops.Code("SEED_SCHEMA_INVALID").Wrap(err)
	}
	return sch, nil
})

// validateSeedDocument checks raw YAML against the seed file schema.
func validateSeedDocument(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return oops.Code("SEED_FILE_INVALID").Wrapf(err, "invalid YAML")
	}
	if doc == nil {
		return oops.Code("SEED_FILE_INVALID").Errorf("seed file is empty")
	}

	// Round-trip through JSON so the validator sees JSON types only.
	raw, err := json.Marshal(doc)
	if err != nil {
		return oops.Code("SEED_FILE_INVALID").Wrap(err)
	}
	inst, err := jschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return oops.Code("SEED_FILE_INVALID").Wrap(err)
	}

	sch, err := compiledSeedSchema()
	if err != nil {
		return err
	}
	if err := sch.Validate(inst); err != nil {
		return oops.Code("SEED_FILE_INVALID").Wrapf(err, "seed file does not match schema")
	}
	return nil
}

func newSeedSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of seed files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := generateSeedSchema()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(append(data, '\n'))
			return err
		},
	}
}
