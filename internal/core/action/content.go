package action

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/coursepulse/coursepulse-be/internal/models"
	"gorm.io/gorm"
)

var placeholderRe = regexp.MustCompile(`\{([^}]+)\}`)
var tagRe = regexp.MustCompile(`<[^>]*>`)

// placeholderData builds the substitution variables for one recipient
func placeholderData(user *models.User, course *models.Course) map[string]interface{} {
	return map[string]interface{}{
		"firstname":       user.FirstName,
		"lastname":        user.LastName,
		"fullname":        user.FullName(),
		"email":           user.Email,
		"coursename":      course.FullName,
		"courseshortname": course.ShortName,
	}
}

// replaceVariables replaces {variable} placeholders with values from vars.
// Unknown placeholders are left untouched.
func replaceVariables(template string, vars map[string]interface{}) string {
	return placeholderRe.ReplaceAllStringFunc(template, func(match string) string {
		name := strings.Trim(match, "{}")
		if value, exists := vars[name]; exists {
			return fmt.Sprintf("%v", value)
		}
		return match
	})
}

// buildBody assembles header + static + dynamic + footer fragments
func buildBody(ctx context.Context, db *gorm.DB, cfg NotificationConfig, vars map[string]interface{}) (string, error) {
	var parts []string

	if cfg.HeaderContent != "" {
		parts = append(parts, replaceVariables(cfg.HeaderContent, vars))
	}
	if cfg.StaticContent != "" {
		parts = append(parts, replaceVariables(cfg.StaticContent, vars))
	}

	if cfg.DynamicModuleID != nil {
		dynamic, err := dynamicContent(ctx, db, cfg)
		if err != nil {
			return "", err
		}
		if dynamic != "" {
			parts = append(parts, dynamic)
		}
	}

	if cfg.FooterContent != "" {
		parts = append(parts, replaceVariables(cfg.FooterContent, vars))
	}

	return strings.Join(parts, "\n"), nil
}

// dynamicContent renders the configured course module's description according
// to the excerpt policy
func dynamicContent(ctx context.Context, db *gorm.DB, cfg NotificationConfig) (string, error) {
	var module models.CourseModule
	if err := db.WithContext(ctx).First(&module, "id = ?", *cfg.DynamicModuleID).Error; err != nil {
		return "", fmt.Errorf("failed to load dynamic content module: %w", err)
	}

	switch cfg.ExcerptPolicy {
	case ExcerptTeaser:
		teaser := truncate(stripTags(module.Description), cfg.TeaserLength)
		return fmt.Sprintf(`<p>%s</p><p><a href=%q>%s</a></p>`, teaser, module.URL, module.Name), nil

	case ExcerptFullLinked:
		return fmt.Sprintf(`%s<p><a href=%q>%s</a></p>`, module.Description, module.URL, module.Name), nil

	default: // ExcerptFullUnlinked
		return module.Description, nil
	}
}

// stripTags produces a plain-text rendition of HTML content
func stripTags(html string) string {
	return strings.TrimSpace(tagRe.ReplaceAllString(html, ""))
}

// truncate cuts s to at most n runes, appending an ellipsis when shortened
func truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:n])) + "..."
}
