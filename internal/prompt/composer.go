// Package prompt builds the system instruction sent to the completion
// gateway. Composition is a pure function of its inputs: language, channel,
// optional page context, the cached recipe/product collections, and branding.
//
// The composer encodes the product's hard rules as explicit instruction text:
//   - recipe recommendations are restricted to the supplied titles/URLs; the
//     model must never fabricate a URL or cite an external domain,
//   - recipes absent from the collection follow the three-tier policy (card +
//     link / inline detail + link / general knowledge, no links),
//   - product recommendations resolve to internal review pages only,
//   - structured output uses a tagged micro-format on the web channel and
//     plain text links on WhatsApp; voice mode asks for tag-free prose.
package prompt

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/younesbotola/mdr-chatbot-server/internal/domain"
	"github.com/younesbotola/mdr-chatbot-server/internal/search"
)

// Tag markers of the structured micro-format. The web widget renders these;
// the WhatsApp and voice paths strip them.
const (
	TagRecipeOpen    = "[recipe-card]"
	TagRecipeClose   = "[/recipe-card]"
	TagListOpen      = "[shopping-list]"
	TagListClose     = "[/shopping-list]"
	TagProductOpen   = "[product-card]"
	TagProductClose  = "[/product-card]"
	defaultBotName   = "Chef MDR"
	defaultProductsN = 10
)

// Input carries everything one composition depends on.
type Input struct {
	Channel   string // domain.ChannelWeb or domain.ChannelWhatsApp
	Language  string // normalized language code
	VoiceMode bool   // ask for tag-free prose suited to speech synthesis

	// Query is the latest user message. When the catalog exceeds the display
	// cap, recipes matching the query are kept ahead of the random sample.
	Query string

	// PageTitle is the recipe page the user is currently viewing, if any.
	// Matched case-insensitively against recipe titles.
	PageTitle string
	IsRecipe  bool

	Recipes  []domain.Recipe
	Products []domain.Product
	Branding domain.Branding

	// PinnedTitles are admin-curated recipe titles shown first. When set,
	// they replace the recent-block + random-sample selection.
	PinnedTitles []string
}

// Composer renders Input into one instruction string. The zero value is not
// usable; construct with New.
type Composer struct {
	// DisplayCap bounds how many recipes enter the prompt.
	DisplayCap int
	// RecentBlock is the deterministic most-recent head kept when sampling.
	RecentBlock int

	shuffle func(n int, swap func(i, j int)) // test seam
}

// New constructs a Composer with the given display cap. recentBlock defaults
// to half the cap.
func New(displayCap, recentBlock int) *Composer {
	if displayCap <= 0 {
		displayCap = 60
	}
	if recentBlock <= 0 || recentBlock > displayCap {
		recentBlock = displayCap / 2
	}
	return &Composer{
		DisplayCap:  displayCap,
		RecentBlock: recentBlock,
		shuffle:     rand.Shuffle,
	}
}

// Compose renders the full system instruction.
func (c *Composer) Compose(in Input) string {
	botName := in.Branding.BotName
	if botName == "" {
		botName = defaultBotName
	}
	siteName := in.Branding.SiteName
	if siteName == "" {
		siteName = "our recipe website"
	}

	var b strings.Builder

	fmt.Fprintf(&b, "You are %s, the cooking assistant of %s", botName, siteName)
	if in.Branding.Tagline != "" {
		fmt.Fprintf(&b, " (%s)", in.Branding.Tagline)
	}
	b.WriteString(".\n")
	fmt.Fprintf(&b, "Always answer in the language with code %q.\n\n", in.Language)

	c.writeRecipeRules(&b, in, siteName)
	c.writePageContext(&b, in)
	c.writeRecipeList(&b, in)
	c.writeProducts(&b, in)
	c.writeFormatting(&b, in)

	return b.String()
}

// writeRecipeRules emits the hard constraints, including the three-tier
// policy for recipes outside the collection.
func (c *Composer) writeRecipeRules(b *strings.Builder, in Input, siteName string) {
	b.WriteString("Hard rules, never break them:\n")
	fmt.Fprintf(b, "- Only recommend recipes from the list below, quoting their titles and URLs exactly as written. Never invent, guess, or modify a URL.\n")
	fmt.Fprintf(b, "- Never link to any website other than %s. No external domains, no marketplaces, no competitors.\n", siteName)
	b.WriteString("- When a recipe from the list matches the question, present it with its link.\n")
	b.WriteString("- When the user asks for the details of a listed recipe, give ingredients and steps from its summary plus the link; do not invent details beyond the summary.\n")
	b.WriteString("- When no listed recipe matches, you may share general cooking knowledge and describe a complete recipe in your own words, but you must not cite or fabricate any URL or external source for it.\n\n")
}

// writePageContext injects the recipe the user is currently viewing so the
// model can answer page-scoped questions without asking "which recipe?".
func (c *Composer) writePageContext(b *strings.Builder, in Input) {
	if strings.TrimSpace(in.PageTitle) == "" {
		return
	}
	r, ok := FindByTitle(in.Recipes, in.PageTitle)
	if !ok {
		return
	}
	fmt.Fprintf(b, "The user is currently viewing the recipe %q (%s).\n", r.Title, r.URL)
	if r.Excerpt != "" {
		fmt.Fprintf(b, "Summary of that page: %s\n", r.Excerpt)
	}
	b.WriteString("Questions without an explicit subject refer to this recipe.\n\n")
}

// writeRecipeList emits the bounded recipe menu.
func (c *Composer) writeRecipeList(b *strings.Builder, in Input) {
	selected := c.Select(in.Recipes, in.PinnedTitles, in.Query)
	if len(selected) == 0 {
		b.WriteString("The recipe list is currently empty. Apologize and offer general cooking help without any links.\n\n")
		return
	}
	fmt.Fprintf(b, "Available recipes (%d):\n", len(selected))
	for _, r := range selected {
		fmt.Fprintf(b, "- %s | %s", r.Title, r.URL)
		if r.Excerpt != "" {
			fmt.Fprintf(b, " | %s", r.Excerpt)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

// writeProducts emits the optional product block.
func (c *Composer) writeProducts(b *strings.Builder, in Input) {
	if len(in.Products) == 0 {
		return
	}
	n := len(in.Products)
	if n > defaultProductsN {
		n = defaultProductsN
	}
	b.WriteString("Recommended kitchen products (optional; only mention when genuinely relevant, always linking the review page, never a store):\n")
	for _, p := range in.Products[:n] {
		fmt.Fprintf(b, "- %s | %s", p.Name, p.ReviewURL)
		if p.Summary != "" {
			fmt.Fprintf(b, " | %s", p.Summary)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

// writeFormatting emits the channel-specific output format instructions.
func (c *Composer) writeFormatting(b *strings.Builder, in Input) {
	switch {
	case in.VoiceMode:
		b.WriteString("Output format: plain conversational prose suitable for being read aloud. No tags, no markdown, no URLs unless the user explicitly asks for a link.\n")
	case in.Channel == domain.ChannelWhatsApp:
		b.WriteString("Output format: plain text for a messaging app. Do not use any bracketed tags or markdown. When you reference a recipe, put its full URL on its own line.\n")
	default:
		b.WriteString("Output format for structured elements:\n")
		fmt.Fprintf(b, "- Recipe card: %sTitle|URL%s\n", TagRecipeOpen, TagRecipeClose)
		fmt.Fprintf(b, "- Shopping list: %sone ingredient per line%s\n", TagListOpen, TagListClose)
		fmt.Fprintf(b, "- Product card: %sName|ReviewURL%s\n", TagProductOpen, TagProductClose)
		b.WriteString("Use the tags only for those elements; everything else is normal prose.\n")
	}
}

// Select applies the display policy: pinned titles first when configured,
// otherwise the most recent RecentBlock entries, then recipes relevant to the
// query, then a random sample of the remainder. The sample is reshuffled on
// every call so the model does not always see the same head of the list.
func (c *Composer) Select(recipes []domain.Recipe, pinned []string, query string) []domain.Recipe {
	if len(recipes) <= c.DisplayCap {
		return recipes
	}

	if len(pinned) > 0 {
		return c.selectPinned(recipes, pinned)
	}

	out := make([]domain.Recipe, 0, c.DisplayCap)
	used := make(map[string]struct{}, c.DisplayCap)
	for _, r := range recipes[:c.RecentBlock] {
		out = append(out, r)
		used[r.ID] = struct{}{}
	}

	// Recipes matching the question take up to half the remaining budget so a
	// large catalog cannot randomly sample away the one recipe being asked for.
	if budget := (c.DisplayCap - len(out)) / 2; budget > 0 {
		for _, r := range c.relevant(recipes, query, budget) {
			if _, ok := used[r.ID]; ok {
				continue
			}
			out = append(out, r)
			used[r.ID] = struct{}{}
		}
	}

	rest := make([]domain.Recipe, 0, len(recipes)-len(out))
	for _, r := range recipes[c.RecentBlock:] {
		if _, ok := used[r.ID]; ok {
			continue
		}
		rest = append(rest, r)
	}
	c.shuffle(len(rest), func(i, j int) { rest[i], rest[j] = rest[j], rest[i] })

	need := c.DisplayCap - len(out)
	if need > len(rest) {
		need = len(rest)
	}
	return append(out, rest[:need]...)
}

// relevant ranks the catalog against the user's question by token overlap on
// titles and excerpts. Catalogs are small (hundreds of entries), so the index
// is rebuilt per call rather than cached against catalog changes.
func (c *Composer) relevant(recipes []domain.Recipe, query string, k int) []domain.Recipe {
	if strings.TrimSpace(query) == "" || k <= 0 {
		return nil
	}
	docs := make([]search.Doc, len(recipes))
	byID := make(map[string]domain.Recipe, len(recipes))
	for i, r := range recipes {
		docs[i] = search.Doc{ID: r.ID, Text: r.Title + " " + r.Excerpt}
		byID[r.ID] = r
	}
	idx := search.NewIndex(docs, search.WithStopwords(search.DefaultStopwords))
	matches := idx.TopK(query, k)
	out := make([]domain.Recipe, 0, len(matches))
	for _, m := range matches {
		out = append(out, byID[m.ID])
	}
	return out
}

// selectPinned puts admin-curated titles first, then fills with the most
// recent remainder up to the cap.
func (c *Composer) selectPinned(recipes []domain.Recipe, pinned []string) []domain.Recipe {
	pinnedSet := make(map[string]struct{}, len(pinned))
	for _, t := range pinned {
		pinnedSet[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}

	out := make([]domain.Recipe, 0, c.DisplayCap)
	used := make(map[string]struct{})
	for _, r := range recipes {
		if _, ok := pinnedSet[strings.ToLower(r.Title)]; ok {
			out = append(out, r)
			used[r.ID] = struct{}{}
			if len(out) == c.DisplayCap {
				return out
			}
		}
	}
	for _, r := range recipes {
		if _, ok := used[r.ID]; ok {
			continue
		}
		out = append(out, r)
		if len(out) == c.DisplayCap {
			break
		}
	}
	return out
}

// FindByTitle looks a recipe up by case-insensitive exact title match.
func FindByTitle(recipes []domain.Recipe, title string) (domain.Recipe, bool) {
	want := strings.ToLower(strings.TrimSpace(title))
	if want == "" {
		return domain.Recipe{}, false
	}
	for _, r := range recipes {
		if strings.ToLower(r.Title) == want {
			return r, true
		}
	}
	return domain.Recipe{}, false
}
