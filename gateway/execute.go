package gateway

import (
	"context"
	"errors"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/s0up4200/marquee/movie"
	"github.com/s0up4200/marquee/resolver"
)

// errRequestInvalid marks a response whose errors come from parsing or validation
var errRequestInvalid = errors.New("invalid request")

// Execute parses, validates and runs req against the schema.
// The returned error is errRequestInvalid when nothing was executed.
func (s *Server) Execute(ctx context.Context, req Request) (*Response, error) {
	if req.Query == "" {
		return &Response{Errors: gqlerror.List{gqlerror.Errorf("no query provided")}}, errRequestInvalid
	}

	doc, errs := gqlparser.LoadQuery(s.schema, req.Query)
	if len(errs) > 0 {
		return &Response{Errors: errs}, errRequestInvalid
	}

	op := doc.Operations.ForName(req.OperationName)
	if op == nil {
		if req.OperationName == "" {
			return &Response{Errors: gqlerror.List{gqlerror.Errorf("operation name is required when the document has multiple operations")}}, errRequestInvalid
		}
		return &Response{Errors: gqlerror.List{gqlerror.Errorf("unknown operation %q", req.OperationName)}}, errRequestInvalid
	}
	if op.Operation != ast.Query {
		return &Response{Errors: gqlerror.List{gqlerror.Errorf("only query operations are supported, got %s", op.Operation)}}, errRequestInvalid
	}

	e := &executor{vars: req.Variables}
	fields, err := e.collect(op.SelectionSet)
	if err != nil {
		return &Response{Errors: gqlerror.List{toGQLError(err)}}, errRequestInvalid
	}

	data := make(orderedObject, 0, len(fields))
	for _, g := range fields {
		switch g.Name() {
		case "__typename":
			data = append(data, objectField{key: g.key, value: "Query"})
		case "popularMovies":
			value, gqlErr := s.resolvePopularMovies(ctx, e, g)
			if gqlErr != nil {
				e.errs = append(e.errs, gqlErr)
			}
			data = append(data, objectField{key: g.key, value: value})
		default:
			e.errs = append(e.errs, &gqlerror.Error{
				Message: "field " + g.Name() + " is not supported by this gateway",
				Path:    ast.Path{ast.PathName(g.key)},
			})
			data = append(data, objectField{key: g.key, value: nil})
		}
	}

	return &Response{Data: data, Errors: e.errs}, nil
}

func (s *Server) resolvePopularMovies(ctx context.Context, e *executor, g *fieldGroup) (any, *gqlerror.Error) {
	f := g.fields[0]
	movies, err := s.resolver.PopularMovies(ctx)
	if err != nil {
		gqlErr := &gqlerror.Error{
			Message: err.Error(),
			Path:    ast.Path{ast.PathName(g.key)},
		}
		var fe *resolver.FieldError
		if errors.As(err, &fe) {
			gqlErr.Extensions = fe.Extensions()
		}
		if f.Position != nil {
			gqlErr.Locations = []gqlerror.Location{{Line: f.Position.Line, Column: f.Position.Column}}
		}
		return nil, gqlErr
	}
	if movies == nil {
		return nil, nil
	}

	movieFields, err := e.collect(g.selectionSet())
	if err != nil {
		return nil, toGQLError(err)
	}

	list := make([]orderedObject, 0, len(movies))
	for _, m := range movies {
		list = append(list, projectMovie(m, movieFields))
	}
	return list, nil
}

func projectMovie(m movie.Movie, fields []*fieldGroup) orderedObject {
	obj := make(orderedObject, 0, len(fields))
	for _, g := range fields {
		var value any
		switch g.Name() {
		case "__typename":
			value = "Movie"
		case "id":
			value = m.ID
		case "title":
			value = m.Title
		case "overview":
			value = m.Overview
		case "poster_path":
			value = m.PosterPath
		}
		obj = append(obj, objectField{key: g.key, value: value})
	}
	return obj
}

// executor flattens selection sets for a single request
type executor struct {
	vars map[string]any
	errs gqlerror.List
}

// fieldGroup is every selection of one response key, in document order
type fieldGroup struct {
	key    string
	fields []*ast.Field
}

// Name returns the schema field the group selects
func (g *fieldGroup) Name() string {
	return g.fields[0].Name
}

// selectionSet concatenates the sub-selections of every field in the group
func (g *fieldGroup) selectionSet() ast.SelectionSet {
	if len(g.fields) == 1 {
		return g.fields[0].SelectionSet
	}
	var set ast.SelectionSet
	for _, f := range g.fields {
		set = append(set, f.SelectionSet...)
	}
	return set
}

// collect groups the fields of set by response key in order of first
// appearance, expanding fragments and honouring @skip and @include.
func (e *executor) collect(set ast.SelectionSet) ([]*fieldGroup, error) {
	var out []*fieldGroup
	groups := make(map[string]*fieldGroup)

	var walk func(ast.SelectionSet) error
	walk = func(set ast.SelectionSet) error {
		for _, sel := range set {
			switch sel := sel.(type) {
			case *ast.Field:
				include, err := e.included(sel.Directives)
				if err != nil {
					return err
				}
				if !include {
					continue
				}
				key := responseKey(sel)
				if g, ok := groups[key]; ok {
					g.fields = append(g.fields, sel)
					continue
				}
				g := &fieldGroup{key: key, fields: []*ast.Field{sel}}
				groups[key] = g
				out = append(out, g)
			case *ast.InlineFragment:
				include, err := e.included(sel.Directives)
				if err != nil {
					return err
				}
				if include {
					if err := walk(sel.SelectionSet); err != nil {
						return err
					}
				}
			case *ast.FragmentSpread:
				include, err := e.included(sel.Directives)
				if err != nil {
					return err
				}
				if include && sel.Definition != nil {
					if err := walk(sel.Definition.SelectionSet); err != nil {
						return err
					}
				}
			}
		}
		return nil
	}

	if err := walk(set); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *executor) included(directives ast.DirectiveList) (bool, error) {
	if d := directives.ForName("skip"); d != nil {
		skip, err := directiveIf(d, e.vars)
		if err != nil {
			return false, err
		}
		if skip {
			return false, nil
		}
	}
	if d := directives.ForName("include"); d != nil {
		return directiveIf(d, e.vars)
	}
	return true, nil
}

func directiveIf(d *ast.Directive, vars map[string]any) (bool, error) {
	arg := d.Arguments.ForName("if")
	if arg == nil || arg.Value == nil {
		return false, gqlerror.Errorf("directive @%s requires an if argument", d.Name)
	}
	v, err := arg.Value.Value(vars)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, gqlerror.Errorf("directive @%s argument if must be a boolean", d.Name)
	}
	return b, nil
}

func responseKey(f *ast.Field) string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Name
}

func toGQLError(err error) *gqlerror.Error {
	var gqlErr *gqlerror.Error
	if errors.As(err, &gqlErr) {
		return gqlErr
	}
	return &gqlerror.Error{Message: err.Error()}
}
