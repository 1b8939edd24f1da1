package services

import (
	"context"
	"fmt"
	"time"

	"github.com/douxbatter/storefront/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const referencePrefix = "DB"

// ReferenceGenerator hands out DB-YYYYMMDD-NNNN order references. The date is
// taken in the business timezone, not the server's, so the sequence rolls over
// at local midnight.
type ReferenceGenerator struct {
	loc *time.Location
	now func() time.Time
}

func NewReferenceGenerator(loc *time.Location) *ReferenceGenerator {
	if loc == nil {
		loc = time.UTC
	}
	return &ReferenceGenerator{loc: loc, now: time.Now}
}

// WithClock replaces the time source. Used by tests.
func (g *ReferenceGenerator) WithClock(now func() time.Time) *ReferenceGenerator {
	g.now = now
	return g
}

// DayPrefix returns "DB-YYYYMMDD-" for t in the business timezone.
func (g *ReferenceGenerator) DayPrefix(t time.Time) string {
	return fmt.Sprintf("%s-%s-", referencePrefix, t.In(g.loc).Format("20060102"))
}

// Next must run on the transaction that inserts the order: the counter row stays
// locked until that transaction ends, so concurrent checkouts serialise on it and
// a rolled back order gives its number back.
func (g *ReferenceGenerator) Next(ctx context.Context, tx *gorm.DB) (string, error) {
	now := g.now()
	day := now.In(g.loc).Format("20060102")
	prefix := g.DayPrefix(now)
	tx = tx.WithContext(ctx)

	// Only used when today's counter row doesn't exist yet, e.g. orders imported
	// before the counter table was introduced.
	var existing int64
	if err := tx.Model(&models.Order{}).
		Where("reference_number LIKE ?", prefix+"%").
		Count(&existing).Error; err != nil {
		return "", storeErr("count today's orders", err)
	}

	seed := models.OrderSequence{Day: day, LastValue: int(existing) + 1}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "day"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"last_value": gorm.Expr("last_value + 1")}),
	}).Create(&seed).Error
	if err != nil {
		return "", storeErr("advance order sequence", err)
	}

	var current models.OrderSequence
	if err := tx.Where("day = ?", day).Take(&current).Error; err != nil {
		return "", storeErr("read order sequence", err)
	}

	return fmt.Sprintf("%s%04d", prefix, current.LastValue), nil
}
