package memo

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Vocabulary is the global, grow-only set of known tags. Bind DB to a
// transaction to resolve tags as part of a larger write.
type Vocabulary struct {
	DB *gorm.DB
}

// ResolveOrCreate returns the id of the tag named name, inserting it first if
// it is new. The insert ignores unique conflicts, so concurrent first use of
// the same tag converges on one row.
func (v *Vocabulary) ResolveOrCreate(ctx context.Context, name string) (id uint64, created bool, err error) {
	db := v.DB.WithContext(ctx)

	t := Tag{Name: name, CreatedAt: time.Now()}
	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&t)
	if res.Error != nil {
		return 0, false, wrapStorage("insert tag", res.Error)
	}
	if res.RowsAffected == 1 && t.ID != 0 {
		return t.ID, true, nil
	}

	var existing Tag
	if err := db.Where("name = ?", name).First(&existing).Error; err != nil {
		return 0, false, wrapStorage("lookup tag", err)
	}
	return existing.ID, res.RowsAffected == 1, nil
}

// List returns tags, most used first. Orphaned tags are included with a zero
// count.
func (v *Vocabulary) List(ctx context.Context, prefix string, limit int) ([]TagCount, error) {
	q := v.DB.WithContext(ctx).
		Table("tags").
		Select("tags.name AS tag, COUNT(memo_tags.memo_id) AS count").
		Joins("LEFT JOIN memo_tags ON memo_tags.tag_id = tags.id").
		Group("tags.id, tags.name").
		Order("count DESC, tags.name ASC")
	if prefix != "" {
		q = q.Where(`tags.name LIKE ? ESCAPE '\'`, escapeLike(prefix)+"%")
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	out := []TagCount{}
	if err := q.Scan(&out).Error; err != nil {
		return nil, wrapStorage("list tags", err)
	}
	return out, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
