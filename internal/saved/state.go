package saved

import (
	"moviedex/internal/apperr"
	"moviedex/pkg/models"
)

// State is the lifecycle position of one (user, movie) pair.
type State int

const (
	StateAbsent State = iota
	StateFavoritedUnwatched
	StateFavoritedWatched
)

func (s State) String() string {
	switch s {
	case StateFavoritedUnwatched:
		return "favorited_unwatched"
	case StateFavoritedWatched:
		return "favorited_watched"
	default:
		return "absent"
	}
}

func (s State) IsFavorite() bool { return s != StateAbsent }
func (s State) IsWatched() bool  { return s == StateFavoritedWatched }

// StateOf derives the state from a stored row; nil means no row.
func StateOf(m *models.SavedMovie) State {
	switch {
	case m == nil:
		return StateAbsent
	case m.IsWatched:
		return StateFavoritedWatched
	default:
		return StateFavoritedUnwatched
	}
}

type Action string

const (
	ActionFavorite      Action = "favorite"
	ActionUnfavorite    Action = "unfavorite"
	ActionMarkWatched   Action = "mark_watched"
	ActionMarkUnwatched Action = "mark_unwatched"
)

var (
	errFavoriteFirst  = apperr.Conflict("movie must be favorited before marking watched")
	errFavoriteAbsent = apperr.NotFound("favorite movie not found")
)

// Apply returns the state reached by taking action from s. Rejected
// transitions return s unchanged together with the error.
func (s State) Apply(a Action) (State, error) {
	switch a {
	case ActionFavorite:
		if s == StateAbsent {
			return StateFavoritedUnwatched, nil
		}
		return s, nil
	case ActionUnfavorite:
		return StateAbsent, nil
	case ActionMarkWatched:
		if s == StateAbsent {
			return s, errFavoriteFirst
		}
		return StateFavoritedWatched, nil
	case ActionMarkUnwatched:
		if s == StateAbsent {
			return s, errFavoriteAbsent
		}
		return StateFavoritedUnwatched, nil
	default:
		return s, apperr.Validation("unknown action", apperr.Field("action", "is not supported"))
	}
}

func watchAction(watched bool) Action {
	if watched {
		return ActionMarkWatched
	}
	return ActionMarkUnwatched
}
