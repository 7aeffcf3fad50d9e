package category

import "strings"

type Classifier struct {
	taxonomy *Taxonomy
	marker   string
}

// NewClassifier binds a taxonomy to the hashtag marker that is stripped from
// tags before matching.
func NewClassifier(t *Taxonomy, marker rune) *Classifier {
	return &Classifier{taxonomy: t, marker: string(marker)}
}

func (c *Classifier) Taxonomy() *Taxonomy { return c.taxonomy }

// Classify returns the categories any tag triggers, in taxonomy order. A tag
// triggers a category when one of its keywords is a substring of the tag.
func (c *Classifier) Classify(tags []string) []string {
	bare := make([]string, 0, len(tags))
	for _, t := range tags {
		bare = append(bare, strings.TrimPrefix(t, c.marker))
	}

	out := []string{}
	for _, cat := range c.taxonomy.categories {
		if anyContains(bare, cat.Keywords) {
			out = append(out, cat.Name)
		}
	}
	return out
}

// Matches reports whether tag alone triggers the named category.
func (c *Classifier) Matches(name, tag string) bool {
	i, ok := c.taxonomy.index[name]
	if !ok {
		return false
	}
	return anyContains([]string{strings.TrimPrefix(tag, c.marker)}, c.taxonomy.categories[i].Keywords)
}

func anyContains(tags, keywords []string) bool {
	for _, kw := range keywords {
		for _, t := range tags {
			if strings.Contains(t, kw) {
				return true
			}
		}
	}
	return false
}
