package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/s0up4200/marquee/client"
	"github.com/s0up4200/marquee/filter"
	"github.com/s0up4200/marquee/gateway"
	"github.com/s0up4200/marquee/movie"
	"github.com/s0up4200/marquee/moviestate"
	"github.com/s0up4200/marquee/screen"
)

var (
	filterExpr    string
	selectID      int
	watch         bool
	watchInterval time.Duration
)

// popularCmd renders the popular movies screen from the gateway
var popularCmd = &cobra.Command{
	Use:   "popular",
	Short: "Show popular movies from the gateway",
	Long: `Query the gateway for popular movies and render them as a two column grid.

Examples:
  marquee popular
  marquee popular --filter 'contains(Title, "star") and hasPoster()'
  marquee popular --select 550
  marquee popular --watch --interval 1m`,
	RunE: runPopular,
}

func init() {
	popularCmd.Flags().StringVarP(&filterExpr, "filter", "f", "", "filter expression applied to the displayed movies")
	popularCmd.Flags().IntVar(&selectID, "select", 0, "show details for the movie with this ID")
	popularCmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep running and refresh periodically")
	popularCmd.Flags().DurationVar(&watchInterval, "interval", 5*time.Minute, "refresh interval in watch mode")
	rootCmd.AddCommand(popularCmd)
}

func runPopular(cmd *cobra.Command, args []string) error {
	var movieFilter *filter.Filter
	if filterExpr != "" {
		var err error
		movieFilter, err = filter.Compile(filterExpr)
		if err != nil {
			return fmt.Errorf("invalid filter expression: %w", err)
		}
	}

	transport := client.NewGraphQLTransport(cfg.Client.Endpoint, cfg.Client.Timeout, logger)
	cache := client.New(transport, client.Options{FetchTimeout: cfg.Client.Timeout}, logger)
	formatter := screen.NewConsoleFormatter(cfg.Client.ImageBaseURL)
	out := cmd.OutOrStdout()

	s := screen.New(cache, client.Query{
		Name: "GetPopularMovies",
		Text: gateway.PopularMoviesQuery,
	}, logger, screen.WithSelect(func(m movie.Movie) {
		fmt.Fprint(out, formatter.FormatMovieDetail(m))
	}))
	defer s.Dispose()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := &renderer{out: out, screen: s, formatter: formatter, filter: movieFilter}

	if !watch {
		st, err := s.WaitSettled(ctx)
		if err != nil {
			return err
		}
		r.render(st)
		if st.Phase == moviestate.Failure {
			return fmt.Errorf("failed to fetch movies: %s", st.Error)
		}
		return nil
	}

	states := make(chan moviestate.State, 16)
	unsubscribe := s.Subscribe(func(st moviestate.State) {
		select {
		case states <- st:
		default:
			logger.Debug().Str("phase", st.Phase.String()).Msg("Dropping render of busy screen")
		}
	})
	defer unsubscribe()

	// The first cycle may have settled before the subscription
	if st := s.State(); st.Settled() {
		states <- st
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case st := <-states:
				r.render(st)
			}
		}
	})

	g.Go(func() error {
		ticker := time.NewTicker(watchInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				logger.Debug().Msg("Refreshing popular movies")
				s.Refresh()
			}
		}
	})

	return g.Wait()
}

// renderer prints screen states, narrowed by filter when set. A state seen
// twice for the same cycle and phase is printed once.
type renderer struct {
	out       io.Writer
	screen    *screen.Screen
	formatter *screen.ConsoleFormatter
	filter    *filter.Filter

	last     moviestate.State
	rendered bool
}

func (r *renderer) render(st moviestate.State) {
	if r.rendered && st.Token == r.last.Token && st.Phase == r.last.Phase {
		return
	}
	r.last = st
	r.rendered = true

	if r.filter != nil && !st.FetchingMovies {
		st.Movies = r.filter.Apply(st.Movies, logger)
	}
	fmt.Fprint(r.out, r.formatter.FormatState(st))

	if selectID == 0 || st.FetchingMovies {
		return
	}
	for _, m := range st.Movies {
		if m.ID == selectID {
			r.screen.Select(m)
			return
		}
	}
	logger.Warn().Int("id", selectID).Msg("Selected movie is not in the list")
}
