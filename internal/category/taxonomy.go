// Package category holds the fixed taxonomy of memo categories and the
// keyword-containment classifier that maps hashtags onto it.
//
// A Taxonomy is built once at startup and shared read-only; nothing in this
// package mutates it afterwards.
package category

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrInvalidTaxonomy = errors.New("invalid taxonomy")

// Category is one taxonomy entry: a label and the keywords that trigger it.
type Category struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

type Taxonomy struct {
	categories []Category
	index      map[string]int
}

type taxonomyFile struct {
	Categories []Category `yaml:"categories"`
}

func NewTaxonomy(cats []Category) (*Taxonomy, error) {
	t := &Taxonomy{
		categories: make([]Category, 0, len(cats)),
		index:      make(map[string]int, len(cats)),
	}
	for _, c := range cats {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: category without name", ErrInvalidTaxonomy)
		}
		if _, dup := t.index[name]; dup {
			return nil, fmt.Errorf("%w: duplicate category %q", ErrInvalidTaxonomy, name)
		}

		seen := map[string]struct{}{}
		kws := make([]string, 0, len(c.Keywords))
		for _, kw := range c.Keywords {
			kw = strings.TrimSpace(kw)
			if kw == "" {
				return nil, fmt.Errorf("%w: empty keyword in %q", ErrInvalidTaxonomy, name)
			}
			if _, ok := seen[kw]; ok {
				continue
			}
			seen[kw] = struct{}{}
			kws = append(kws, kw)
		}
		if len(kws) == 0 {
			return nil, fmt.Errorf("%w: category %q has no keywords", ErrInvalidTaxonomy, name)
		}

		t.index[name] = len(t.categories)
		t.categories = append(t.categories, Category{Name: name, Keywords: kws})
	}
	return t, nil
}

// Default is the built-in emotion taxonomy used when no file is configured.
func Default() *Taxonomy {
	t, err := NewTaxonomy([]Category{
		{Name: "기쁨", Keywords: []string{"기쁨", "행복", "신남", "최고", "즐거", "설렘", "웃음"}},
		{Name: "슬픔", Keywords: []string{"슬픔", "우울", "눈물", "외로", "그리움", "상실"}},
		{Name: "분노", Keywords: []string{"분노", "화남", "짜증", "억울", "열받"}},
		{Name: "불안", Keywords: []string{"불안", "걱정", "긴장", "초조", "두려"}},
		{Name: "평온", Keywords: []string{"평온", "휴식", "여유", "힐링", "산책"}},
		{Name: "감사", Keywords: []string{"감사", "고마", "뿌듯", "칭찬"}},
	})
	if err != nil {
		panic(err)
	}
	return t
}

// LoadFile reads a YAML taxonomy:
//
//	categories:
//	  - name: 기쁨
//	    keywords: [행복, 신남]
func LoadFile(path string) (*Taxonomy, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read taxonomy: %w", err)
	}
	var f taxonomyFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse taxonomy %s: %w", path, err)
	}
	if len(f.Categories) == 0 {
		return nil, fmt.Errorf("%w: %s defines no categories", ErrInvalidTaxonomy, path)
	}
	return NewTaxonomy(f.Categories)
}

func (t *Taxonomy) Names() []string {
	out := make([]string, len(t.categories))
	for i, c := range t.categories {
		out[i] = c.Name
	}
	return out
}

func (t *Taxonomy) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Keywords returns a copy of the keywords of name, or nil if unknown.
func (t *Taxonomy) Keywords(name string) []string {
	i, ok := t.index[name]
	if !ok {
		return nil
	}
	return append([]string(nil), t.categories[i].Keywords...)
}

// Fingerprint identifies the taxonomy content. Order of categories and
// keywords is significant.
func (t *Taxonomy) Fingerprint() string {
	h := sha256.New()
	for _, c := range t.categories {
		h.Write([]byte(c.Name))
		h.Write([]byte{0})
		for _, kw := range c.Keywords {
			h.Write([]byte(kw))
			h.Write([]byte{1})
		}
		h.Write([]byte{2})
	}
	return hex.EncodeToString(h.Sum(nil))
}
