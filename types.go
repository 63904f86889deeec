package recipeassistant

import (
	"context"
	"net/http"
	"strings"
	"time"
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type Notifier interface {
	PostMessage(ctx context.Context, channel string, message string) error
}

// Completer is the LLM capability used by the pipeline.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// HistoryStore is the storage collaborator consumed by a chat turn.
type HistoryStore interface {
	LoadHistory(ctx context.Context, sessionID string) ([]Message, error)
	AppendMessage(ctx context.Context, sessionID string, role string, content string) error
	// AppendExchange stores a user message and its reply together, or neither.
	AppendExchange(ctx context.Context, sessionID string, userMessage string, reply string) error
}

// CompletionRequest carries everything an LLM backend needs for one reply.
type CompletionRequest struct {
	SystemInstructions string
	History            []Message
	UserMessage        string
	ExtraContext       string
}

// System returns the instructions and extra context as a single system block.
func (r CompletionRequest) System() string {
	sys := strings.TrimSpace(r.SystemInstructions)
	extra := strings.TrimSpace(r.ExtraContext)
	switch {
	case extra == "":
		return sys
	case sys == "":
		return extra
	default:
		return sys + "\n\n" + extra
	}
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at,omitzero"`
}

// UserContext is the per-turn personalization supplied by the caller.
type UserContext struct {
	Diet           string          `json:"diet,omitempty"`
	Allergens      string          `json:"allergens,omitempty"`
	Goals          string          `json:"goals,omitempty"`
	SelectedRecipe *SelectedRecipe `json:"selected_recipe,omitempty"`
}

// DietaryContext joins the non-empty diet, allergens and goals with commas.
func (u UserContext) DietaryContext() string {
	parts := make([]string, 0, 3)
	for _, s := range []string{u.Diet, u.Allergens, u.Goals} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

// HasProfile reports whether any health profile field is set.
func (u UserContext) HasProfile() bool {
	return u.Diet != "" || u.Allergens != "" || u.Goals != ""
}

type SelectedRecipe struct {
	Title       string   `json:"title"`
	Ingredients []string `json:"ingredients,omitempty"`
	Summary     string   `json:"summary,omitempty"`
}

// Profile is the persisted user health profile.
type Profile struct {
	Diet      string `json:"diet"`
	Allergens string `json:"allergens"`
	Goals     string `json:"goals"`
}

type NutritionRecord struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
	Fiber    float64 `json:"fiber"`
}

// IsZero reports whether no nutrient carries a positive value.
func (n NutritionRecord) IsZero() bool {
	return n.Calories <= 0 && n.Protein <= 0 && n.Carbs <= 0 && n.Fat <= 0 && n.Fiber <= 0
}

// Provenance records which providers were attempted for a result.
type Provenance struct {
	SourcesTried []string `json:"sources_tried"`
	FallbackUsed bool     `json:"fallback_used"`
}

type RecipeRecord struct {
	ID             string           `json:"id,omitempty"`
	Title          string           `json:"title"`
	Ingredients    []string         `json:"ingredients"`
	Instructions   string           `json:"instructions,omitempty"`
	Category       string           `json:"category,omitempty"`
	Area           string           `json:"area,omitempty"`
	Image          string           `json:"image,omitempty"`
	Source         string           `json:"source,omitempty"`
	URL            string           `json:"url,omitempty"`
	Summary        string           `json:"summary,omitempty"`
	Tags           []string         `json:"tags,omitempty"`
	Servings       int              `json:"servings"`
	ReadyInMinutes int              `json:"ready_in_minutes"`
	Nutrition      *NutritionRecord `json:"nutrition,omitempty"`
	Provenance     Provenance       `json:"provenance_metadata"`
}

type HealthAnalysis struct {
	CaloriesPerServing float64  `json:"calories_per_serving"`
	ProteinPerServing  float64  `json:"protein_per_serving"`
	CarbsPerServing    float64  `json:"carbs_per_serving"`
	FatPerServing      float64  `json:"fat_per_serving"`
	BalanceScore       int      `json:"balance_score"`
	CalorieScore       int      `json:"calorie_score"`
	HealthScore        int      `json:"health_score"`
	Recommendations    []string `json:"recommendations"`
	Insights           []string `json:"insights,omitempty"`
}

// SearchResult is what the orchestrator returns for a recipe search.
type SearchResult struct {
	Recipes    []RecipeRecord `json:"recipes"`
	Provenance Provenance     `json:"provenance"`
}

// NutritionResult is what the orchestrator returns for a nutrition lookup.
type NutritionResult struct {
	Nutrition  NutritionRecord `json:"nutrition"`
	Provenance Provenance      `json:"provenance"`
	Estimated  bool            `json:"estimated"`
}
