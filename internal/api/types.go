// internal/api/types.go
package api

import (
	"github.com/valpere/musicmanager/internal/entity"
	"github.com/valpere/musicmanager/internal/parser"
	"github.com/valpere/musicmanager/internal/resolver"
)

// ParseRequest carries raw input lines.
type ParseRequest struct {
	Lines []string `json:"lines"`
}

// ParseResponse lists the records parsed from a ParseRequest.
type ParseResponse struct {
	Records []parser.Record `json:"records"`
	Count   int             `json:"count"`
}

// ResolveRequest asks for either one input line or a list of links to be
// resolved. Line wins when both are set.
type ResolveRequest struct {
	Line  string   `json:"line,omitempty"`
	Links []string `json:"links,omitempty"`
}

// ResolveResponse is the resolved form of a ResolveRequest. Group fields
// are only set when a line was resolved.
type ResolveResponse struct {
	Record         *parser.Record              `json:"record,omitempty"`
	Title          string                      `json:"title,omitempty"`
	Classification entity.Classification       `json:"classification,omitempty"`
	Links          []string                    `json:"links,omitempty"`
	Entities       []entity.IntermediateEntity `json:"entities"`
	Unhandled      []resolver.UnhandledLink    `json:"unhandled,omitempty"`
	Error          string                      `json:"error,omitempty"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}
