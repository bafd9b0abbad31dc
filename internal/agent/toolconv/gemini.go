// Package toolconv converts the agent package's provider-neutral Tool
// definitions (JSON Schema parameters) into each provider SDK's native tool
// type. The Anthropic and OpenAI SDKs accept json.RawMessage schemas
// directly, so their providers build tool unions inline; Gemini and Bedrock
// need a structural conversion and get one here.
package toolconv

import (
	"encoding/json"
	"strings"

	"github.com/haasonsaas/agentcore/internal/agent"
	"google.golang.org/genai"
)

// ToGeminiTools converts tools into a single Gemini Tool carrying one
// FunctionDeclaration per tool. A tool whose Schema() fails to parse as a
// JSON Schema object is skipped rather than aborting the whole request.
func ToGeminiTools(tools []agent.Tool) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}

	declarations := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, tool := range tools {
		var schemaMap map[string]any
		if err := json.Unmarshal(tool.Schema(), &schemaMap); err != nil {
			continue
		}
		declarations = append(declarations, &genai.FunctionDeclaration{
			Name:        tool.Name(),
			Description: tool.Description(),
			Parameters:  ToGeminiSchema(schemaMap),
		})
	}
	if len(declarations) == 0 {
		return nil
	}

	return []*genai.Tool{{FunctionDeclarations: declarations}}
}

// ToGeminiSchema converts a decoded JSON Schema map to Gemini's Schema
// type, recursing through properties and array items.
func ToGeminiSchema(schemaMap map[string]any) *genai.Schema {
	if schemaMap == nil {
		return nil
	}

	schema := &genai.Schema{}

	if t, ok := schemaMap["type"].(string); ok {
		schema.Type = genai.Type(strings.ToUpper(t))
	}
	if desc, ok := schemaMap["description"].(string); ok {
		schema.Description = desc
	}
	if enum, ok := schemaMap["enum"].([]any); ok {
		for _, e := range enum {
			if s, ok := e.(string); ok {
				schema.Enum = append(schema.Enum, s)
			}
		}
	}
	if props, ok := schemaMap["properties"].(map[string]any); ok {
		schema.Properties = make(map[string]*genai.Schema)
		for name, prop := range props {
			if propMap, ok := prop.(map[string]any); ok {
				schema.Properties[name] = ToGeminiSchema(propMap)
			}
		}
	}
	if required, ok := schemaMap["required"].([]any); ok {
		for _, r := range required {
			if s, ok := r.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}
	if items, ok := schemaMap["items"].(map[string]any); ok {
		schema.Items = ToGeminiSchema(items)
	}

	return schema
}
