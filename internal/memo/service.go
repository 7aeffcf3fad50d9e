package memo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"memotags/internal/category"
	"memotags/internal/hashtag"
	"memotags/internal/metrics"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service owns memos and keeps their tag and category links in step with
// their content. Every write is one transaction.
type Service struct {
	DB         *gorm.DB
	Extractor  *hashtag.Extractor
	Classifier *category.Classifier
	Secrets    SecretMatcher
	Log        *zap.Logger
	Metrics    *metrics.Collector
}

type CreateInput struct {
	Content string
	Secret  string
}

type UpdateInput struct {
	Content string
	Secret  string
}

type ListOptions struct {
	// StripTags removes hashtags from returned content. Stored content is
	// untouched.
	StripTags bool
}

func (s *Service) List(ctx context.Context) ([]Summary, error) {
	out := []Summary{}
	if err := s.DB.WithContext(ctx).Model(&Memo{}).Select("id", "content").Order("id ASC").Scan(&out).Error; err != nil {
		return nil, wrapStorage("list memos", err)
	}
	return out, nil
}

// Get reads a memo and its links in a single statement so the content and
// the link sets come from the same snapshot.
func (s *Service) Get(ctx context.Context, id uint64) (*Result, error) {
	type row struct {
		Kind  string
		Value string
	}
	var rows []row
	err := s.DB.WithContext(ctx).Raw(`
		SELECT 'memo' AS kind, content AS value FROM memos WHERE id = ?
		UNION ALL
		SELECT 'tag' AS kind, tags.name AS value
		FROM memo_tags JOIN tags ON tags.id = memo_tags.tag_id
		WHERE memo_tags.memo_id = ?
		UNION ALL
		SELECT 'category' AS kind, category AS value FROM memo_categories WHERE memo_id = ?
	`, id, id, id).Scan(&rows).Error
	if err != nil {
		return nil, wrapStorage("get memo", err)
	}

	out := &Result{ID: id, Hashtags: []string{}, Categories: []string{}}
	found := false
	for _, r := range rows {
		switch r.Kind {
		case "memo":
			found = true
			out.Content = r.Value
		case "tag":
			out.Hashtags = append(out.Hashtags, r.Value)
		case "category":
			out.Categories = append(out.Categories, r.Value)
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: memo %d", ErrNotFound, id)
	}
	sort.Strings(out.Hashtags)
	out.Categories = s.inTaxonomyOrder(out.Categories)
	return out, nil
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*Result, error) {
	if err := requireFields(in.Content, in.Secret); err != nil {
		return nil, err
	}
	sealed, err := s.secrets().Seal(in.Secret)
	if err != nil {
		return nil, invalid("secret: " + err.Error())
	}

	tags := s.Extractor.Extract(in.Content)
	cats := s.Classifier.Classify(tags)

	var (
		m       Memo
		newTags int
	)
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		m = Memo{Content: in.Content, Secret: sealed, CreatedAt: now, UpdatedAt: now}
		if err := tx.Create(&m).Error; err != nil {
			return err
		}
		n, err := s.link(ctx, tx, m.ID, tags, cats)
		newTags = n
		return err
	})
	if err != nil {
		s.log().Error("create memo failed", zap.Error(err))
		return nil, wrapStorage("create memo", err)
	}

	s.Metrics.MemoOp("create")
	s.Metrics.TagsCreated(newTags)
	s.log().Info("memo created",
		zap.Uint64("memo_id", m.ID),
		zap.Int("tag_count", len(tags)),
		zap.Strings("categories", cats),
	)
	return &Result{ID: m.ID, Content: m.Content, Hashtags: tags, Categories: cats}, nil
}

func (s *Service) Update(ctx context.Context, id uint64, in UpdateInput) (*Result, error) {
	if err := requireFields(in.Content, in.Secret); err != nil {
		return nil, err
	}

	tags := s.Extractor.Extract(in.Content)
	cats := s.Classifier.Classify(tags)

	var newTags int
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := lockMemo(tx, id)
		if err != nil {
			return err
		}
		if !s.secrets().Match(m.Secret, in.Secret) {
			return ErrSecretMismatch
		}
		if err := unlink(tx, id); err != nil {
			return err
		}
		if newTags, err = s.link(ctx, tx, id, tags, cats); err != nil {
			return err
		}
		return tx.Model(&Memo{}).Where("id = ?", id).Updates(map[string]any{
			"content":    in.Content,
			"updated_at": time.Now(),
		}).Error
	})
	if err != nil {
		s.logWriteError("update", id, err)
		return nil, wrapStorage("update memo", err)
	}

	s.Metrics.MemoOp("update")
	s.Metrics.TagsCreated(newTags)
	s.log().Info("memo updated",
		zap.Uint64("memo_id", id),
		zap.Int("tag_count", len(tags)),
		zap.Strings("categories", cats),
	)
	return &Result{ID: id, Content: in.Content, Hashtags: tags, Categories: cats}, nil
}

// Delete removes a memo and its links and returns the memo as it was. Tags
// stay in the vocabulary.
func (s *Service) Delete(ctx context.Context, id uint64, secret string) (*Summary, error) {
	if secret == "" {
		return nil, invalid("secret is required")
	}

	var out Summary
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := lockMemo(tx, id)
		if err != nil {
			return err
		}
		if !s.secrets().Match(m.Secret, secret) {
			return ErrSecretMismatch
		}
		if err := unlink(tx, id); err != nil {
			return err
		}
		if err := tx.Delete(&Memo{}, id).Error; err != nil {
			return err
		}
		out = Summary{ID: m.ID, Content: m.Content}
		return nil
	})
	if err != nil {
		s.logWriteError("delete", id, err)
		return nil, wrapStorage("delete memo", err)
	}

	s.Metrics.MemoOp("delete")
	s.log().Info("memo deleted", zap.Uint64("memo_id", id))
	return &out, nil
}

func (s *Service) ListByCategory(ctx context.Context, name string, opts ListOptions) ([]Summary, error) {
	if !s.Classifier.Taxonomy().Has(name) {
		return nil, fmt.Errorf("%w: category %q", ErrNotFound, name)
	}

	out := []Summary{}
	err := s.DB.WithContext(ctx).
		Model(&Memo{}).
		Select("memos.id", "memos.content").
		Joins("JOIN memo_categories ON memo_categories.memo_id = memos.id").
		Where("memo_categories.category = ?", name).
		Order("memos.id ASC").
		Scan(&out).Error
	if err != nil {
		return nil, wrapStorage("list memos by category", err)
	}

	if opts.StripTags {
		for i := range out {
			out[i].Content = s.Extractor.Strip(out[i].Content)
		}
	}
	return out, nil
}

// Categories reports the taxonomy entries that currently have memos, each
// with the sorted tags of those memos that trigger it.
func (s *Service) Categories(ctx context.Context) (map[string][]string, error) {
	type row struct {
		Category string
		Tag      *string
	}
	var rows []row
	err := s.DB.WithContext(ctx).
		Table("memo_categories").
		Distinct("memo_categories.category AS category", "tags.name AS tag").
		Joins("LEFT JOIN memo_tags ON memo_tags.memo_id = memo_categories.memo_id").
		Joins("LEFT JOIN tags ON tags.id = memo_tags.tag_id").
		Scan(&rows).Error
	if err != nil {
		return nil, wrapStorage("list categories", err)
	}

	out := map[string][]string{}
	for _, r := range rows {
		if !s.Classifier.Taxonomy().Has(r.Category) {
			continue
		}
		if _, ok := out[r.Category]; !ok {
			out[r.Category] = []string{}
		}
		if r.Tag != nil && s.Classifier.Matches(r.Category, *r.Tag) {
			out[r.Category] = append(out[r.Category], *r.Tag)
		}
	}
	for _, tags := range out {
		sort.Strings(tags)
	}
	return out, nil
}

// Reclassify rebuilds the links of every memo from its stored content using
// the current extractor and taxonomy. Each memo is relinked in its own
// transaction; memos deleted meanwhile are skipped.
func (s *Service) Reclassify(ctx context.Context) (int, error) {
	var (
		batch   []Memo
		relinks int
	)
	res := s.DB.WithContext(ctx).Select("id").FindInBatches(&batch, 200, func(_ *gorm.DB, _ int) error {
		for _, m := range batch {
			if err := ctx.Err(); err != nil {
				return err
			}
			ok, err := s.relink(ctx, m.ID)
			if err != nil {
				return err
			}
			if ok {
				relinks++
			}
		}
		return nil
	})
	if res.Error != nil {
		return relinks, wrapStorage("reclassify", res.Error)
	}

	s.log().Info("memos reclassified", zap.Int("count", relinks))
	return relinks, nil
}

func (s *Service) relink(ctx context.Context, id uint64) (bool, error) {
	var newTags int
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := lockMemo(tx, id)
		if err != nil {
			return err
		}
		tags := s.Extractor.Extract(m.Content)
		if err := unlink(tx, id); err != nil {
			return err
		}
		newTags, err = s.link(ctx, tx, id, tags, s.Classifier.Classify(tags))
		return err
	})
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.Metrics.TagsCreated(newTags)
	return true, nil
}

// link resolves tags through the vocabulary and writes one link per distinct
// tag and category. It returns how many tags were new to the vocabulary.
func (s *Service) link(ctx context.Context, tx *gorm.DB, memoID uint64, tags, cats []string) (int, error) {
	vocab := Vocabulary{DB: tx}

	created := 0
	seen := map[string]struct{}{}
	tagLinks := make([]MemoTag, 0, len(tags))
	for _, name := range tags {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		tagID, isNew, err := vocab.ResolveOrCreate(ctx, name)
		if err != nil {
			return 0, err
		}
		if isNew {
			created++
		}
		tagLinks = append(tagLinks, MemoTag{MemoID: memoID, TagID: tagID})
	}
	if len(tagLinks) > 0 {
		if err := tx.Create(&tagLinks).Error; err != nil {
			return 0, err
		}
	}

	if len(cats) > 0 {
		catLinks := make([]MemoCategory, 0, len(cats))
		for _, c := range cats {
			catLinks = append(catLinks, MemoCategory{MemoID: memoID, Category: c})
		}
		if err := tx.Create(&catLinks).Error; err != nil {
			return 0, err
		}
	}
	return created, nil
}

func unlink(tx *gorm.DB, memoID uint64) error {
	if err := tx.Where("memo_id = ?", memoID).Delete(&MemoTag{}).Error; err != nil {
		return err
	}
	return tx.Where("memo_id = ?", memoID).Delete(&MemoCategory{}).Error
}

// lockMemo loads a memo with a row lock held until the transaction ends.
func lockMemo(tx *gorm.DB, id uint64) (*Memo, error) {
	var m Memo
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: memo %d", ErrNotFound, id)
		}
		return nil, err
	}
	return &m, nil
}

func requireFields(content, secret string) error {
	if strings.TrimSpace(content) == "" {
		return invalid("content is required")
	}
	// Secrets are opaque; only an absent one is rejected.
	if secret == "" {
		return invalid("secret is required")
	}
	return nil
}

func (s *Service) inTaxonomyOrder(cats []string) []string {
	rank := map[string]int{}
	for i, n := range s.Classifier.Taxonomy().Names() {
		rank[n] = i
	}
	sort.SliceStable(cats, func(i, j int) bool {
		ri, iok := rank[cats[i]]
		rj, jok := rank[cats[j]]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		default:
			return cats[i] < cats[j]
		}
	})
	return cats
}

func (s *Service) logWriteError(op string, id uint64, err error) {
	fields := []zap.Field{zap.String("op", op), zap.Uint64("memo_id", id), zap.Error(err)}
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrSecretMismatch):
		s.log().Info("memo write rejected", fields...)
	default:
		s.log().Error("memo write failed", fields...)
	}
}

func (s *Service) secrets() SecretMatcher {
	if s.Secrets == nil {
		return PlainSecrets{}
	}
	return s.Secrets
}

func (s *Service) log() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}
