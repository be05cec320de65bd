// Package filter narrows movie lists with expr-lang expressions.
//
// An expression sees the movie fields as ID, Title, Overview and PosterPath,
// plus the helpers contains, startsWith, endsWith, lower, upper and hasPoster.
// String matching helpers are case-insensitive.
package filter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/rs/zerolog"

	"github.com/s0up4200/marquee/movie"
)

const compiledCacheSize = 64

var compiled = newProgramCache(compiledCacheSize)

// Filter is a compiled movie filter expression
type Filter struct {
	program *vm.Program
	expr    string
}

func environment(m movie.Movie) map[string]any {
	return map[string]any{
		"ID":         m.ID,
		"Title":      m.Title,
		"Overview":   m.Overview,
		"PosterPath": m.PosterPath,
		"Movie":      m,

		"hasPoster": func() bool {
			return m.PosterPath != ""
		},
		"contains": func(str, substr string) bool {
			return strings.Contains(strings.ToLower(str), strings.ToLower(substr))
		},
		"startsWith": func(str, prefix string) bool {
			return strings.HasPrefix(strings.ToLower(str), strings.ToLower(prefix))
		},
		"endsWith": func(str, suffix string) bool {
			return strings.HasSuffix(strings.ToLower(str), strings.ToLower(suffix))
		},
		"lower": strings.ToLower,
		"upper": strings.ToUpper,
	}
}

// Compile compiles expression into a Filter. The expression must produce a
// boolean.
func Compile(expression string) (*Filter, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, ErrEmptyExpression
	}

	if f, ok := compiled.Get(expression); ok {
		return f, nil
	}

	program, err := expr.Compile(expression,
		expr.Env(environment(movie.Movie{})),
		expr.AsBool(),
	)
	if err != nil {
		return nil, &CompilationError{
			Expression: expression,
			Reason:     err.Error(),
			Err:        err,
		}
	}

	f := &Filter{program: program, expr: expression}
	compiled.Put(expression, f)
	return f, nil
}

// Match evaluates the filter against m
func (f *Filter) Match(m movie.Movie) (bool, error) {
	out, err := expr.Run(f.program, environment(m))
	if err != nil {
		return false, &EvaluationError{
			Expression: f.expr,
			MovieID:    m.ID,
			Reason:     err.Error(),
			Err:        err,
		}
	}

	matched, ok := out.(bool)
	if !ok {
		return false, &EvaluationError{
			Expression: f.expr,
			MovieID:    m.ID,
			Reason:     fmt.Sprintf("expected bool result, got %T", out),
		}
	}
	return matched, nil
}

// Apply returns the movies matching f in their original order. Movies the
// filter fails to evaluate on are skipped and logged.
func (f *Filter) Apply(movies []movie.Movie, logger zerolog.Logger) []movie.Movie {
	out := make([]movie.Movie, 0, len(movies))
	for _, m := range movies {
		ok, err := f.Match(m)
		if err != nil {
			var evalErr *EvaluationError
			if errors.As(err, &evalErr) {
				logger.Debug().Int("movie_id", evalErr.MovieID).Str("reason", evalErr.Reason).Msg("Skipping movie")
			}
			continue
		}
		if ok {
			out = append(out, m)
		}
	}
	return out
}

// String returns the original expression
func (f *Filter) String() string {
	return f.expr
}
