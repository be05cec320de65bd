// Package movie holds the Movie value shared by the gateway and the client pipeline.
package movie

import "strings"

// DefaultImageBaseURL is the TMDB image CDN prefix for w500 posters
const DefaultImageBaseURL = "https://image.tmdb.org/t/p/w500"

// Movie is a single catalog entry. All fields are always present; missing
// upstream values are represented by their zero value.
type Movie struct {
	ID         int    `json:"id"`
	Title      string `json:"title"`
	Overview   string `json:"overview"`
	PosterPath string `json:"poster_path"`
}

// PosterURL composes an image URL from base and a partial poster path.
// It returns an empty string when the movie has no poster.
func PosterURL(base, posterPath string) string {
	if posterPath == "" {
		return ""
	}
	if base == "" {
		base = DefaultImageBaseURL
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(posterPath, "/")
}

// PosterURL returns the poster URL of m under the given image base
func (m Movie) PosterURL(base string) string {
	return PosterURL(base, m.PosterPath)
}

// Clone returns a copy of movies that does not share the backing array
func Clone(movies []Movie) []Movie {
	if movies == nil {
		return nil
	}
	out := make([]Movie, len(movies))
	copy(out, movies)
	return out
}
