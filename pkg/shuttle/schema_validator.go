// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package shuttle

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// NormalizeSchema makes sure object schemas carry a non-nil properties map
// (providers reject "properties": null) and recurses into nested schemas.
func NormalizeSchema(schema *JSONSchema) *JSONSchema {
	if schema == nil {
		return nil
	}

	if schema.Type == "" && schema.Properties != nil {
		schema.Type = "object"
	}

	if schema.Type == "object" {
		if schema.Properties == nil {
			schema.Properties = make(map[string]*JSONSchema)
		}
		for key, prop := range schema.Properties {
			schema.Properties[key] = NormalizeSchema(prop)
		}
	}

	if schema.Type == "array" && schema.Items != nil {
		schema.Items = NormalizeSchema(schema.Items)
	}

	return schema
}

// ValidateInput checks tool arguments against the tool's JSON Schema.
// A nil schema accepts anything.
func ValidateInput(schema *JSONSchema, params map[string]interface{}) error {
	if schema == nil {
		return nil
	}
	if params == nil {
		params = map[string]interface{}{}
	}

	schemaLoader := gojsonschema.NewGoLoader(NormalizeSchema(schema))
	argsLoader := gojsonschema.NewGoLoader(params)

	result, err := gojsonschema.Validate(schemaLoader, argsLoader)
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, e := range result.Errors() {
			errs[i] = e.String()
		}
		return fmt.Errorf("invalid arguments: %s", strings.Join(errs, "; "))
	}

	return nil
}
