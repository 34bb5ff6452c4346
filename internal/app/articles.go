package app

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"helpdeskai/internal/util"
	"helpdeskai/pkg/domain"
)

// articleTopics maps each knowledge-base category to the topics the
// generator can be asked to write about.
var articleTopics = map[string][]string{
	"Hardware": {
		"Troubleshooting common laptop hardware failures",
		"Extending the battery life of mobile devices",
		"Diagnosing overheating problems on desktop PCs",
		"Choosing and installing memory upgrades",
	},
	"Software": {
		"Resolving application crashes on Windows",
		"Keeping operating systems and drivers up to date",
		"Recovering from a failed software installation",
		"Managing startup programs to speed up boot times",
	},
	"Networking": {
		"Fixing slow or unstable Wi-Fi connections",
		"Configuring a home router securely",
		"Understanding DNS problems and how to resolve them",
		"Setting up a VPN for remote work",
	},
	"Security": {
		"Recognizing and avoiding phishing attacks",
		"Creating and managing strong passwords",
		"Keeping devices safe with endpoint protection",
		"Responding to a suspected malware infection",
	},
	"Productivity": {
		"Automating repetitive tasks with built-in OS tools",
		"Organizing files and backups effectively",
		"Getting the most out of email filters and rules",
		"Using keyboard shortcuts to work faster",
	},
}

func articleCategories() []string {
	return []string{"Hardware", "Software", "Networking", "Security", "Productivity"}
}

// GenerateScheduledArticle produces one knowledge-base article on a randomly
// selected category and topic and persists it.
func (a *App) GenerateScheduledArticle(ctx context.Context) (domain.Article, error) {
	categories := articleCategories()
	category := categories[rand.Intn(len(categories))]
	topics := articleTopics[category]
	topic := topics[rand.Intn(len(topics))]
	return a.generateArticle(ctx, "", category, topic, "")
}

// GenerateUserArticle produces an article tailored to a user's registered
// device. A non-empty category overrides random selection.
func (a *App) GenerateUserArticle(ctx context.Context, userID, category string) (domain.Article, error) {
	if category == "" {
		categories := articleCategories()
		category = categories[rand.Intn(len(categories))]
	} else if _, ok := articleTopics[category]; !ok {
		return domain.Article{}, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	topics := articleTopics[category]
	topic := topics[rand.Intn(len(topics))]

	brand, model := a.deviceInfo(userID)
	deviceHint := fmt.Sprintf("The reader uses a %s %s; tailor examples to that device where relevant.", brand, model)
	return a.generateArticle(ctx, userID, category, topic, deviceHint)
}

// generateArticle runs the prompt and persists the result. userID is empty
// for scheduled articles and set for user-requested ones.
func (a *App) generateArticle(ctx context.Context, userID, category, topic, extra string) (domain.Article, error) {
	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Write an IT support knowledge-base article about %q in the %s category. ", topic, category)
	prompt.WriteString("The article should be 800-1200 words, practical, and written for non-expert readers. ")
	prompt.WriteString("Put the article title on the first line, followed by the body.")
	if extra != "" {
		prompt.WriteString(" ")
		prompt.WriteString(extra)
	}

	genCtx, cancel := context.WithTimeout(ctx, a.genTimeout)
	defer cancel()
	text, err := a.generator.GenerateText(genCtx, "You are a technical writer producing IT support documentation.", prompt.String())
	if err != nil {
		return domain.Article{}, fmt.Errorf("generate article: %w", err)
	}

	title, content := splitArticle(text, topic)
	now := time.Now().UTC()
	article := domain.Article{
		ID:        util.NewID(),
		UserID:    userID,
		Title:     title,
		Content:   content,
		Category:  category,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.store.CreateArticle(article); err != nil {
		return domain.Article{}, fmt.Errorf("save article: %w", err)
	}
	return article, nil
}

// splitArticle separates the generated text into title and body. The first
// non-empty line is the title; markdown heading markers are stripped.
func splitArticle(text, fallbackTitle string) (title, content string) {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	for i, line := range lines {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#"))
		if line == "" {
			continue
		}
		title = strings.Trim(line, "*")
		content = strings.TrimSpace(strings.Join(lines[i+1:], "\n"))
		break
	}
	if title == "" {
		title = fallbackTitle
	}
	if content == "" {
		content = strings.TrimSpace(text)
	}
	return title, content
}

// GetArticle returns a single knowledge-base article.
func (a *App) GetArticle(id string) (domain.Article, bool, error) {
	return a.store.GetArticle(id)
}

// ListArticles returns a page of articles, optionally filtered by category,
// plus the total count.
func (a *App) ListArticles(category string, limit, offset int) ([]domain.Article, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return a.store.ListArticles(category, limit, offset)
}

// ListArticleCategories returns the distinct categories present in storage.
func (a *App) ListArticleCategories() ([]string, error) {
	return a.store.ListArticleCategories()
}
