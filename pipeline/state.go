package pipeline

import (
	"slices"
	"strings"

	"recipeassistant"
)

const (
	RouteSearch   = "search"
	RouteGenerate = "generate"
)

// TurnState is the working state of one chat turn. Stages take it by value and
// return the updated copy.
type TurnState struct {
	TurnID      string
	Query       string
	History     []recipeassistant.Message
	UserContext recipeassistant.UserContext

	NeedsSearch      bool
	Route            string
	SearchResults    []recipeassistant.RecipeRecord
	SearchProvenance *recipeassistant.Provenance

	Answer  string
	Trimmed bool
}

// NewTurnState starts a turn. History is copied so later stages never alias
// the caller's slice.
func NewTurnState(query string, history []recipeassistant.Message, uc recipeassistant.UserContext) TurnState {
	return TurnState{
		Query:       query,
		History:     slices.Clone(history),
		UserContext: uc,
	}
}

var triggerWords = []string{
	"latest",
	"recent",
	"news",
	"study",
	"research",
	"trending",
	"new",
	"202",
	"google",
	"web",
	"online",
	"search",
}

// NeedsSearch reports whether the query asks for fresh or web-backed
// information. Matching is by substring on the lower-cased query.
func NeedsSearch(query string) bool {
	q := strings.ToLower(query)
	for _, w := range triggerWords {
		if strings.Contains(q, w) {
			return true
		}
	}
	return false
}

// Route decides the next stage.
func Route(s TurnState) TurnState {
	s.NeedsSearch = NeedsSearch(s.Query)
	s.Route = RouteGenerate
	if s.NeedsSearch {
		s.Route = RouteSearch
	}
	return s
}

const TrimSuffix = "\n\n...(trimmed)"

// Trim cuts answer to maxChars characters and appends TrimSuffix when it is
// longer than that. maxChars <= 0 disables the guard.
func Trim(answer string, maxChars int) (string, bool) {
	if maxChars <= 0 {
		return answer, false
	}
	r := []rune(answer)
	if len(r) <= maxChars {
		return answer, false
	}
	return string(r[:maxChars]) + TrimSuffix, true
}

// lastN returns the most recent n messages, oldest first.
func lastN(history []recipeassistant.Message, n int) []recipeassistant.Message {
	if n <= 0 || len(history) <= n {
		return slices.Clone(history)
	}
	return slices.Clone(history[len(history)-n:])
}
