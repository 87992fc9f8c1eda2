package project

import (
	"strings"

	"github.com/samber/lo"

	"magic-workflow/internal/types"
	apperrors "magic-workflow/pkg/errors"
)

// TitleChoices reads titles_choices.json. A project without the file has no
// choices yet and gets an empty value.
func (c *Context) TitleChoices() (types.TitleChoices, error) {
	var choices types.TitleChoices
	if err := c.store.ReadJSON(c.TitleChoicesPath(), &choices); err != nil {
		if apperrors.Is(err, apperrors.CodeFileNotFound) {
			return types.TitleChoices{Titles: []string{}, Tags: []string{}}, nil
		}
		return types.TitleChoices{}, err
	}
	return CleanTitleChoices(choices), nil
}

func (c *Context) SaveTitleChoices(choices types.TitleChoices) error {
	return c.store.WriteJSON(c.TitleChoicesPath(), CleanTitleChoices(choices))
}

// ApplyTitle stores the chosen title and tags on the context and persists it.
func (c *Context) ApplyTitle(title string, tags []string) error {
	c.Title = strings.TrimSpace(title)
	c.Tags = cleanList(tags)
	return c.Save()
}

// CleanTitleChoices trims entries, drops empty ones and removes duplicates.
func CleanTitleChoices(choices types.TitleChoices) types.TitleChoices {
	return types.TitleChoices{
		Titles: cleanList(choices.Titles),
		Tags:   cleanList(choices.Tags),
	}
}

func cleanList(items []string) []string {
	trimmed := lo.Map(items, func(s string, _ int) string { return strings.TrimSpace(s) })
	return lo.Uniq(lo.Filter(trimmed, func(s string, _ int) bool { return s != "" }))
}
