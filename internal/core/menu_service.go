package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Product is one entry of the external catalog feed.
type Product struct {
	ID          int      `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Price       float64  `json:"price"`
	Thumbnail   string   `json:"thumbnail"`
	Images      []string `json:"images"`
}

type catalogResponse struct {
	Products []Product `json:"products"`
}

// ProductCard is the image/price payload returned alongside a product
// answer.
type ProductCard struct {
	Title       string  `json:"title"`
	Image       string  `json:"image"`
	Price       float64 `json:"price"`
	Description string  `json:"description"`
}

// MenuAnswer is the response of one menu question: either a product-mode
// answer with cards, or a general-knowledge answer.
type MenuAnswer struct {
	Mode         string        `json:"mode"`
	Question     string        `json:"question"`
	Answer       string        `json:"answer"`
	Products     []ProductCard `json:"images,omitempty"`
	ProductCount int           `json:"product_count,omitempty"`
}

// genericMenuKeywords route a question into product mode even when no
// catalog title is mentioned.
var genericMenuKeywords = []string{
	"product", "products", "menu", "item", "list",
	"price", "catalog", "inventory", "show me", "all products",
}

var (
	showMeCountRe = regexp.MustCompile(`show me (\d+)`)
	leadInRe      = regexp.MustCompile(`(?i)^(sure[,!.]?|of course[,!.]?|here (are|is)[^:]*:?)\s*`)
	nameCharsRe   = regexp.MustCompile(`[^a-zA-Z0-9,\s-]`)
)

const cardDescriptionLimit = 100

// MenuService answers questions about an external product catalog. The
// catalog is fetched per request; the model proposes matching product names
// and a deterministic validation pass keeps only names that really exist in
// the catalog.
type MenuService struct {
	client     *http.Client
	catalogURL string
	generator  Generator
}

func NewMenuService(catalogURL string, generator Generator) *MenuService {
	return &MenuService{
		client:     &http.Client{Timeout: 15 * time.Second},
		catalogURL: catalogURL,
		generator:  generator,
	}
}

// Ask answers a menu question. Catalog fetch failures degrade to an empty
// catalog; generation failures degrade inside the answer.
func (s *MenuService) Ask(ctx context.Context, question string) (*MenuAnswer, error) {
	products, err := s.fetchCatalog(ctx)
	if err != nil {
		log.Printf("Catalog fetch failed, continuing with empty catalog: %v", err)
		products = nil
	}

	if !isProductQuestion(question, products) {
		return s.generalAnswer(ctx, question), nil
	}

	matched := s.matchProducts(ctx, question, products)

	if limit, ok := requestedCount(question); ok && len(matched) > limit {
		matched = matched[:limit]
	}

	answer := "No products found matching your question."
	if len(matched) > 0 {
		names := make([]string, len(matched))
		for i, p := range matched {
			names[i] = p.Title
		}
		answer = "Here are the matching products: " + strings.Join(names, ", ")
	}

	cards := make([]ProductCard, 0, len(matched))
	for _, p := range matched {
		cards = append(cards, ProductCard{
			Title:       p.Title,
			Image:       cardImage(p),
			Price:       p.Price,
			Description: truncate(p.Description, cardDescriptionLimit),
		})
	}

	return &MenuAnswer{
		Mode:         "product",
		Question:     question,
		Answer:       answer,
		Products:     cards,
		ProductCount: len(cards),
	}, nil
}

func (s *MenuService) fetchCatalog(ctx context.Context) ([]Product, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.catalogURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build catalog request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog returned status %d", resp.StatusCode)
	}

	var catalog catalogResponse
	if err := json.NewDecoder(resp.Body).Decode(&catalog); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	return catalog.Products, nil
}

// matchProducts asks the model for comma-separated product names, then
// validates each candidate against the catalog in two passes: exact title
// match first, substring containment second, always in catalog order so
// results are deterministic. Products whose titles appear verbatim in the
// question are included regardless of what the model said.
func (s *MenuService) matchProducts(ctx context.Context, question string, products []Product) []Product {
	candidates := s.modelCandidates(ctx, question, products)
	candidates = append(candidates, mentionedTitles(question, products)...)

	seen := make(map[int]bool)
	var matched []Product

	for _, name := range candidates {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		for _, p := range products {
			if seen[p.ID] {
				continue
			}
			if p.Title == name {
				seen[p.ID] = true
				matched = append(matched, p)
			}
		}
	}
	for _, name := range candidates {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		for _, p := range products {
			if seen[p.ID] {
				continue
			}
			title := strings.ToLower(p.Title)
			if strings.Contains(title, name) || strings.Contains(name, title) {
				seen[p.ID] = true
				matched = append(matched, p)
			}
		}
	}
	return matched
}

// modelCandidates runs the name-listing prompt and cleans the reply down to
// plausible product names. A generation failure yields no candidates, which
// leaves only verbatim title mentions.
func (s *MenuService) modelCandidates(ctx context.Context, question string, products []Product) []string {
	if len(products) == 0 {
		return nil
	}

	var b strings.Builder
	for _, p := range products {
		fmt.Fprintf(&b, "- %s: %s (price: %.2f)\n", p.Title, p.Description, p.Price)
	}
	prompt := fmt.Sprintf(
		"You are a product catalog assistant. Based only on the catalog below, "+
			"reply with the names of the products matching the question, comma separated, "+
			"nothing else. If none match, reply with an empty line.\n\n"+
			"Catalog:\n%s\nQuestion: %s\n\nProduct names:",
		b.String(), question,
	)

	raw, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		log.Printf("Menu generation failed: %v", err)
		return nil
	}

	raw = leadInRe.ReplaceAllString(strings.TrimSpace(raw), "")
	raw = nameCharsRe.ReplaceAllString(raw, "")
	return strings.Split(raw, ",")
}

func (s *MenuService) generalAnswer(ctx context.Context, question string) *MenuAnswer {
	prompt := fmt.Sprintf("Question: %s\nAnswer clearly and concisely.", question)
	answer, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		log.Printf("Menu generation failed: %v", err)
		answer = couldNotAnswer
	}
	return &MenuAnswer{
		Mode:     "general",
		Question: question,
		Answer:   answer,
	}
}

func isProductQuestion(question string, products []Product) bool {
	lower := strings.ToLower(question)
	for _, kw := range genericMenuKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return len(mentionedTitles(question, products)) > 0
}

// mentionedTitles returns the catalog titles that appear verbatim in the
// question, in catalog order.
func mentionedTitles(question string, products []Product) []string {
	lower := strings.ToLower(question)
	var titles []string
	for _, p := range products {
		if strings.Contains(lower, strings.ToLower(p.Title)) {
			titles = append(titles, p.Title)
		}
	}
	return titles
}

// requestedCount parses a "show me N" limit out of the question.
func requestedCount(question string) (int, bool) {
	m := showMeCountRe.FindStringSubmatch(strings.ToLower(question))
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func cardImage(p Product) string {
	if p.Thumbnail != "" {
		return p.Thumbnail
	}
	if len(p.Images) > 0 {
		return p.Images[0]
	}
	return ""
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
