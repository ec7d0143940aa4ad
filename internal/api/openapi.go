package api

import (
	"fmt"
	"net/http"
)

// buildOpenAPIDoc returns an OpenAPI 3.1 document with one send operation per channel.
func buildOpenAPIDoc(channels ChannelRegistry) map[string]any {
	paths := map[string]any{}

	for _, ch := range channels.Channels() {
		summary := ch.Description
		if summary == "" {
			summary = fmt.Sprintf("Send on %s", ch.Name)
		}

		properties := map[string]any{}
		for _, f := range ch.PayloadFields {
			properties[f] = map[string]any{}
		}

		operation := map[string]any{
			"operationId": "send__" + ch.Name,
			"summary":     summary,
			"tags":        []string{"channels"},
			"parameters": []any{
				map[string]any{
					"name":     "tenantID",
					"in":       "path",
					"required": true,
					"schema":   map[string]any{"type": "string"},
				},
			},
			"responses": map[string]any{
				"200": map[string]any{"description": "Handlers invoked"},
				"400": map[string]any{"description": "Invalid payload"},
				"404": map[string]any{"description": "Tenant not found"},
				"502": map[string]any{"description": "A handler failed"},
			},
			"security": []any{map[string]any{"BearerAuth": []string{}}},
		}
		if len(ch.PayloadFields) > 0 {
			operation["requestBody"] = map[string]any{
				"required": true,
				"content": map[string]any{
					"application/json": map[string]any{
						"schema": map[string]any{
							"type":       "object",
							"properties": properties,
						},
					},
				},
			}
		}

		paths["/tenants/{tenantID}/channels/"+ch.Name] = map[string]any{"post": operation}
	}

	return map[string]any{
		"openapi": "3.1.0",
		"info": map[string]any{
			"title":   "plugbus",
			"version": "1.0",
		},
		"paths": paths,
		"components": map[string]any{
			"securitySchemes": map[string]any{
				"BearerAuth": map[string]any{
					"type":   "http",
					"scheme": "bearer",
				},
			},
		},
	}
}

func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, buildOpenAPIDoc(s.deps.Channels))
}
