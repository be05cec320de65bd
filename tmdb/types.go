package tmdb

import "github.com/s0up4200/marquee/movie"

// DiscoverResponse is the envelope returned by /discover/movie.
// Only the fields the gateway exposes are decoded.
type DiscoverResponse struct {
	Page         int           `json:"page"`
	Results      []MovieRecord `json:"results"`
	TotalPages   int           `json:"total_pages"`
	TotalResults int           `json:"total_results"`
}

// MovieRecord is a single upstream result. Pointer fields distinguish an
// absent or null value from an empty one.
type MovieRecord struct {
	ID         *int    `json:"id"`
	Title      *string `json:"title"`
	Overview   *string `json:"overview"`
	PosterPath *string `json:"poster_path"`
}

// ToMovie converts the record, coercing absent fields to their empty value
func (r MovieRecord) ToMovie() movie.Movie {
	var m movie.Movie
	if r.ID != nil {
		m.ID = *r.ID
	}
	if r.Title != nil {
		m.Title = *r.Title
	}
	if r.Overview != nil {
		m.Overview = *r.Overview
	}
	if r.PosterPath != nil {
		m.PosterPath = *r.PosterPath
	}
	return m
}

// Movies maps every result in upstream order. The result is never nil.
func (r DiscoverResponse) Movies() []movie.Movie {
	movies := make([]movie.Movie, 0, len(r.Results))
	for _, rec := range r.Results {
		movies = append(movies, rec.ToMovie())
	}
	return movies
}
