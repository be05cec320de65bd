package gateway

import (
	"fmt"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

// SchemaSDL is the public contract of the gateway
const SchemaSDL = `
type Movie {
  id: Int
  title: String
  overview: String
  poster_path: String
}

type Query {
  popularMovies: [Movie]
}
`

// PopularMoviesQuery is the single operation issued by the client
const PopularMoviesQuery = `query GetPopularMovies {
  popularMovies {
    id
    title
    overview
    poster_path
  }
}`

// LoadSchema compiles SchemaSDL
func LoadSchema() (*ast.Schema, error) {
	schema, err := gqlparser.LoadSchema(&ast.Source{Name: "schema.graphql", Input: SchemaSDL})
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return schema, nil
}
