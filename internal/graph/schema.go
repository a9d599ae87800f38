// Package graph exposes the chat access layer and the user directory as a
// GraphQL schema.
package graph

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/graph-gophers/graphql-go"
	gqlotel "github.com/graph-gophers/graphql-go/trace/otel"
	"github.com/rs/zerolog"
)

//go:embed schema.graphql
var schemaSDL string

// NewSchema parses the schema and binds it to r.
func NewSchema(r *Resolver) (*graphql.Schema, error) {
	schema, err := graphql.ParseSchema(schemaSDL, r,
		graphql.MaxDepth(12),
		graphql.Tracer(gqlotel.DefaultTracer()),
		graphql.Logger(panicLogger{}),
	)
	if err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	return schema, nil
}

type panicLogger struct{}

func (panicLogger) LogPanic(ctx context.Context, value interface{}) {
	zerolog.Ctx(ctx).Error().Interface("panic", value).Msg("graphql resolver panic")
}
