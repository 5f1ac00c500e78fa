package search

import (
	"errors"

	"github.com/vadimtrunov/MovieSearch/internal/metadata/tmdb"
)

// ErrorKind groups fetch failures by how they are reported to the user.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	// KindConfiguration means the client cannot issue requests at all,
	// e.g. the API token is missing.
	KindConfiguration
	// KindNetwork covers transport failures and non-2xx responses.
	KindNetwork
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindNetwork:
		return "network"
	default:
		return "none"
	}
}

// Classify maps a fetch error to its kind.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, tmdb.ErrMissingToken):
		return KindConfiguration
	default:
		return KindNetwork
	}
}

// EmptyResultMessage is shown when a search completed without results.
const EmptyResultMessage = "No movies found for your request."

// UserMessage is the banner text for an error of the given kind.
func UserMessage(kind ErrorKind) string {
	switch kind {
	case KindConfiguration:
		return "TMDb token is not configured. Set MOVIESEARCH_TMDB_TOKEN and restart."
	case KindNetwork:
		return "There was an error, please try again..."
	default:
		return ""
	}
}
