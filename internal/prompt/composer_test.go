package prompt

import (
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/younesbotola/mdr-chatbot-server/internal/domain"
)

func makeRecipes(n int) []domain.Recipe {
	out := make([]domain.Recipe, n)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		out[i] = domain.Recipe{
			ID:          fmt.Sprintf("r%d", i),
			Title:       fmt.Sprintf("Recipe %d", i),
			URL:         fmt.Sprintf("/recipe-%d", i),
			Excerpt:     "Tasty.",
			PublishedAt: base.Add(-time.Duration(i) * time.Hour), // index 0 = newest
		}
	}
	return out
}

func TestCompose_OnlyCachedURLsAppear(t *testing.T) {
	c := New(60, 30)
	recipes := []domain.Recipe{
		{ID: "a", Title: "Lemon Chicken Rice", URL: "/lemon-chicken-rice", Excerpt: "Bright."},
		{ID: "b", Title: "Beef Tagine", URL: "/beef-tagine"},
	}
	out := c.Compose(Input{
		Channel:  domain.ChannelWeb,
		Language: "en",
		Recipes:  recipes,
		Branding: domain.Branding{SiteName: "MDR", BotName: "Chef MDR"},
	})

	// Every URL-looking token in the prompt must come from the collection.
	urlRE := regexp.MustCompile(`/[a-z0-9-]+`)
	allowed := map[string]bool{"/lemon-chicken-rice": true, "/beef-tagine": true, "/recipe-card": true, "/shopping-list": true, "/product-card": true}
	for _, u := range urlRE.FindAllString(out, -1) {
		if !allowed[u] {
			t.Fatalf("prompt contains URL not in the collection: %q", u)
		}
	}
	if !strings.Contains(out, "Lemon Chicken Rice | /lemon-chicken-rice") {
		t.Fatalf("recipe must be listed verbatim:\n%s", out)
	}
	if !strings.Contains(out, "Never invent, guess, or modify a URL") {
		t.Fatalf("missing no-fabrication rule")
	}
}

func TestCompose_PageContextLookupIsCaseInsensitive(t *testing.T) {
	c := New(60, 30)
	recipes := []domain.Recipe{
		{ID: "a", Title: "Lemon Chicken Rice", URL: "/lemon-chicken-rice", Excerpt: "Bright and easy."},
	}
	out := c.Compose(Input{
		Channel:   domain.ChannelWeb,
		Language:  "en",
		PageTitle: "  lemon chicken RICE ",
		IsRecipe:  true,
		Recipes:   recipes,
	})
	if !strings.Contains(out, `currently viewing the recipe "Lemon Chicken Rice" (/lemon-chicken-rice)`) {
		t.Fatalf("page context not injected:\n%s", out)
	}
	if !strings.Contains(out, "Bright and easy.") {
		t.Fatalf("page excerpt not injected")
	}

	// Unknown page titles are silently ignored.
	out = c.Compose(Input{Channel: domain.ChannelWeb, Language: "en", PageTitle: "Nope", Recipes: recipes})
	if strings.Contains(out, "currently viewing") {
		t.Fatalf("unknown page title must not inject context")
	}
}

func TestSelect_UnderCapPassesThrough(t *testing.T) {
	c := New(60, 30)
	recipes := makeRecipes(10)
	if got := c.Select(recipes, nil, ""); len(got) != 10 {
		t.Fatalf("expected all 10 recipes, got %d", len(got))
	}
}

func TestSelect_RecentBlockPlusFreshSample(t *testing.T) {
	c := New(20, 10)
	recipes := makeRecipes(100)

	shuffles := 0
	c.shuffle = func(n int, swap func(i, j int)) {
		shuffles++
		// Reverse as a deterministic "shuffle".
		for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
			swap(i, j)
		}
	}

	got := c.Select(recipes, nil, "")
	if len(got) != 20 {
		t.Fatalf("expected cap of 20, got %d", len(got))
	}
	// Deterministic head: the 10 most recent.
	for i := 0; i < 10; i++ {
		if got[i].ID != fmt.Sprintf("r%d", i) {
			t.Fatalf("head[%d] = %s, want r%d", i, got[i].ID, i)
		}
	}
	// Tail comes from the shuffled remainder, not the next-newest block.
	if got[10].ID == "r10" {
		t.Fatalf("tail should be sampled, not sequential")
	}

	// The sample must be reselected on every composition.
	_ = c.Select(recipes, nil, "")
	if shuffles != 2 {
		t.Fatalf("expected a fresh shuffle per call, got %d", shuffles)
	}
}

func TestSelect_QueryMatchesSurviveSampling(t *testing.T) {
	c := New(10, 2)
	recipes := makeRecipes(50)
	recipes[40].Title = "Couscous Royal"
	recipes[40].Excerpt = "Semolina with lamb and vegetables."

	// Drop the shuffled sample entirely so inclusion can only come from the
	// relevance head.
	c.shuffle = func(n int, swap func(i, j int)) {}

	for i := 0; i < 5; i++ {
		got := c.Select(recipes, nil, "tu as une recette de couscous ?")
		found := false
		for _, r := range got {
			if r.ID == "r40" {
				found = true
			}
		}
		if !found {
			t.Fatalf("queried recipe missing from selection: %+v", got)
		}
		if len(got) != 10 {
			t.Fatalf("cap not honored: %d", len(got))
		}
	}

	// Without a query the deep-catalog entry is only ever sampled in; with the
	// identity shuffle above it would come from positions 2..9.
	got := c.Select(recipes, nil, "")
	for i, r := range got {
		if r.ID != fmt.Sprintf("r%d", i) {
			t.Fatalf("identity shuffle should keep sequential order, got %s at %d", r.ID, i)
		}
	}
}

func TestSelect_PinnedTitlesComeFirst(t *testing.T) {
	c := New(5, 2)
	recipes := makeRecipes(50)
	got := c.Select(recipes, []string{"recipe 42", "RECIPE 7"}, "")
	if len(got) != 5 {
		t.Fatalf("expected 5 selected, got %d", len(got))
	}
	ids := map[string]bool{got[0].ID: true, got[1].ID: true}
	if !ids["r42"] || !ids["r7"] {
		t.Fatalf("pinned recipes missing from head: %+v", got[:2])
	}
}

func TestCompose_ChannelFormatting(t *testing.T) {
	c := New(60, 30)
	in := Input{Language: "fr", Recipes: makeRecipes(2)}

	in.Channel = domain.ChannelWeb
	web := c.Compose(in)
	if !strings.Contains(web, TagRecipeOpen) {
		t.Fatalf("web prompt must describe the tag format")
	}

	in.Channel = domain.ChannelWhatsApp
	wa := c.Compose(in)
	if strings.Contains(wa, TagRecipeOpen) {
		t.Fatalf("whatsapp prompt must not describe tags")
	}
	if !strings.Contains(wa, "full URL on its own line") {
		t.Fatalf("whatsapp prompt must request plain-text links")
	}

	in.VoiceMode = true
	voice := c.Compose(in)
	if !strings.Contains(voice, "read aloud") {
		t.Fatalf("voice prompt must request speakable prose")
	}
}

func TestStripTags(t *testing.T) {
	in := "Try this!\n[recipe-card]Lemon Chicken Rice|/lemon-chicken-rice[/recipe-card]\n\n\n[shopping-list]rice\nchicken[/shopping-list]\nEnjoy."
	got := StripTags(in)
	if strings.Contains(got, "[recipe-card]") || strings.Contains(got, "[shopping-list]") {
		t.Fatalf("tags not stripped: %q", got)
	}
	if !strings.Contains(got, "Lemon Chicken Rice: /lemon-chicken-rice") {
		t.Fatalf("card payload not rewritten: %q", got)
	}
	if strings.Contains(got, "\n\n\n") {
		t.Fatalf("blank lines not collapsed: %q", got)
	}
}

func TestFindByTitle(t *testing.T) {
	recipes := makeRecipes(3)
	if _, ok := FindByTitle(recipes, ""); ok {
		t.Fatalf("empty title must not match")
	}
	r, ok := FindByTitle(recipes, "recipe 1")
	if !ok || r.ID != "r1" {
		t.Fatalf("case-insensitive match failed: %+v ok=%v", r, ok)
	}
}
