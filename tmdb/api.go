package tmdb

import (
	"context"

	"github.com/s0up4200/marquee/movie"
)

// API defines the upstream operations used by the resolver
type API interface {
	// FetchPopularMovies returns the first page of movies sorted by popularity
	FetchPopularMovies(ctx context.Context) ([]movie.Movie, error)
}
