// Package tmdb provides a client for the TMDB discovery API.
//
// The client issues a single authenticated request for the first page of
// popular movies and maps the response envelope into movie.Movie values.
//
// # Usage
//
//	client, err := tmdb.NewClient(
//		"https://api.themoviedb.org/3",
//		os.Getenv("TMDB_ACCESS_TOKEN"),
//		logger,
//		tmdb.WithTimeout(10*time.Second),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	movies, err := client.FetchPopularMovies(ctx)
//
// # Error Handling
//
// Every failure is returned as a value. Non-2xx responses, transport faults
// and undecodable bodies are reported as *UpstreamError, which matches
// ErrUpstreamUnavailable:
//
//	if errors.Is(err, tmdb.ErrUpstreamUnavailable) {
//		var upErr *tmdb.UpstreamError
//		if errors.As(err, &upErr) && upErr.IsUnauthorized() {
//			// Handle bad credential
//		}
//	}
//
// The client never retries. Callers wanting resilience wrap it with
// NewRetryingClient.
package tmdb
