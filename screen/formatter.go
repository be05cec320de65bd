package screen

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/s0up4200/marquee/movie"
	"github.com/s0up4200/marquee/moviestate"
)

const (
	gridColumns = 2
	cellWidth   = 44
)

// ConsoleFormatter renders screen state as text
type ConsoleFormatter struct {
	ImageBaseURL string
}

// NewConsoleFormatter creates a formatter composing poster URLs under imageBase
func NewConsoleFormatter(imageBase string) *ConsoleFormatter {
	if imageBase == "" {
		imageBase = movie.DefaultImageBaseURL
	}
	return &ConsoleFormatter{ImageBaseURL: imageBase}
}

// FormatState renders the loading indicator, the error, or the grid
func (f *ConsoleFormatter) FormatState(st moviestate.State) string {
	if st.FetchingMovies {
		return "Loading movies...\n"
	}
	if st.HasError() {
		return fmt.Sprintf("Error: %s\n", st.Error)
	}
	return f.FormatGrid(st.Movies)
}

// FormatGrid renders movies two per row, each cell keyed by movie ID
func (f *ConsoleFormatter) FormatGrid(movies []movie.Movie) string {
	if len(movies) == 0 {
		return "No movies found\n"
	}

	var sb strings.Builder

	sb.WriteString("\nMovie")
	if len(movies) != 1 {
		sb.WriteString("s")
	}
	fmt.Fprintf(&sb, " (%d):\n\n", len(movies))

	rows := (len(movies) + gridColumns - 1) / gridColumns
	for row := 0; row < rows; row++ {
		start := row * gridColumns
		end := min(start+gridColumns, len(movies))
		cells := movies[start:end]

		isLast := row == rows-1
		prefix := "\u251c"
		indent := "\u2502   "
		if isLast {
			prefix = "\u2570"
			indent = "    "
		}

		titles := make([]string, 0, len(cells))
		posters := make([]string, 0, len(cells))
		for _, m := range cells {
			titles = append(titles, titleCell(m))
			poster := m.PosterURL(f.ImageBaseURL)
			if poster == "" {
				poster = "(no poster)"
			}
			posters = append(posters, poster)
		}

		fmt.Fprintf(&sb, "%s\u2500\u2500 %s\n", prefix, joinCells(titles))
		fmt.Fprintf(&sb, "%s%s\n", indent, joinCells(posters))

		if !isLast {
			sb.WriteString("\u2502\n")
		}
	}

	sb.WriteString("\n")
	return sb.String()
}

// FormatMovieDetail renders a selected movie
func (f *ConsoleFormatter) FormatMovieDetail(m movie.Movie) string {
	var sb strings.Builder

	title := m.Title
	if title == "" {
		title = "(untitled)"
	}
	fmt.Fprintf(&sb, "\n%s [%d]\n", title, m.ID)

	if poster := m.PosterURL(f.ImageBaseURL); poster != "" {
		fmt.Fprintf(&sb, "\u251c\u2500\u2500 Poster: %s\n", poster)
	}

	overview := m.Overview
	if overview == "" {
		overview = "No overview available."
	}
	fmt.Fprintf(&sb, "\u2570\u2500\u2500 %s\n", overview)

	return sb.String()
}

func titleCell(m movie.Movie) string {
	return "[" + strconv.Itoa(m.ID) + "] " + m.Title
}

// joinCells pads every cell but the last to cellWidth
func joinCells(cells []string) string {
	var sb strings.Builder
	for i, c := range cells {
		c = truncate(c, cellWidth-2)
		sb.WriteString(c)
		if i < len(cells)-1 {
			sb.WriteString(strings.Repeat(" ", cellWidth-utf8.RuneCountInString(c)))
		}
	}
	return sb.String()
}

func truncate(s string, width int) string {
	if utf8.RuneCountInString(s) <= width {
		return s
	}
	runes := []rune(s)
	return string(runes[:width-1]) + "\u2026"
}
