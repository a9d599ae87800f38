package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/99designs/gqlgen/graphql/playground"
	"github.com/gin-gonic/gin"
	"github.com/graph-gophers/graphql-go"

	"messaging-service/internal/auth"
	"messaging-service/internal/graph"
	"messaging-service/internal/observability"
)

type graphqlRequest struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName"`
	Variables     map[string]interface{} `json:"variables"`
}

// GraphQLHandler executes queries and mutations over HTTP.
type GraphQLHandler struct {
	schema        *graphql.Schema
	resolver      *graph.Resolver
	secureCookies bool
}

// NewGraphQLHandler builds a GraphQLHandler. secureCookies marks the session
// cookie Secure.
func NewGraphQLHandler(schema *graphql.Schema, resolver *graph.Resolver, secureCookies bool) *GraphQLHandler {
	return &GraphQLHandler{schema: schema, resolver: resolver, secureCookies: secureCookies}
}

// Serve accepts a JSON body on POST and query parameters on GET.
func (h *GraphQLHandler) Serve(c *gin.Context) {
	var req graphqlRequest
	if c.Request.Method == http.MethodGet {
		req.Query = c.Query("query")
		req.OperationName = c.Query("operationName")
		if vars := c.Query("variables"); vars != "" {
			if err := json.Unmarshal([]byte(vars), &req.Variables); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid variables"})
				return
			}
		}
	} else if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing query"})
		return
	}

	ctx := auth.WithSessionWriter(c.Request.Context(), auth.CookieSessionWriter(c.Writer, h.secureCookies))
	ctx = graph.WithScope(ctx, h.resolver.NewScope(c.GetString("userID")))

	resp := h.schema.Exec(ctx, req.Query, req.OperationName, req.Variables)
	observability.IncGraphQLOperation("http", len(resp.Errors) > 0)
	c.JSON(http.StatusOK, resp)
}

// Ping answers liveness probes.
func Ping(c *gin.Context) {
	c.String(http.StatusOK, "pong")
}

// Playground serves an in-browser GraphQL IDE against endpoint.
func Playground(endpoint string) gin.HandlerFunc {
	return gin.WrapF(playground.Handler("messaging-service", endpoint))
}
