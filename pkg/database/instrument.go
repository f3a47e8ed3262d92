package database

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/remedyhq/remedy/pkg/metrics"
)

type startTimeKey struct{}

func contextWithStart(ctx context.Context) context.Context {
	return context.WithValue(ctx, startTimeKey{}, time.Now())
}

// Instrument registers gorm callbacks that feed the query duration histogram
// and starts a sampler for the open-connection gauge.
func Instrument(db *gorm.DB, m *metrics.Collector) error {
	before := func(tx *gorm.DB) {
		tx.Statement.Context = contextWithStart(tx.Statement.Context)
	}
	after := func(op string) func(*gorm.DB) {
		return func(tx *gorm.DB) {
			if start, ok := tx.Statement.Context.Value(startTimeKey{}).(time.Time); ok {
				m.DBQueryDuration.WithLabelValues(op, tx.Statement.Table).Observe(time.Since(start).Seconds())
			}
		}
	}

	type hook struct {
		op       string
		register func(name string, before, after func(*gorm.DB)) error
	}
	hooks := []hook{
		{"create", func(name string, b, a func(*gorm.DB)) error {
			if err := db.Callback().Create().Before("gorm:create").Register(name+"_before", b); err != nil {
				return err
			}
			return db.Callback().Create().After("gorm:create").Register(name+"_after", a)
		}},
		{"query", func(name string, b, a func(*gorm.DB)) error {
			if err := db.Callback().Query().Before("gorm:query").Register(name+"_before", b); err != nil {
				return err
			}
			return db.Callback().Query().After("gorm:query").Register(name+"_after", a)
		}},
		{"update", func(name string, b, a func(*gorm.DB)) error {
			if err := db.Callback().Update().Before("gorm:update").Register(name+"_before", b); err != nil {
				return err
			}
			return db.Callback().Update().After("gorm:update").Register(name+"_after", a)
		}},
		{"delete", func(name string, b, a func(*gorm.DB)) error {
			if err := db.Callback().Delete().Before("gorm:delete").Register(name+"_before", b); err != nil {
				return err
			}
			return db.Callback().Delete().After("gorm:delete").Register(name+"_after", a)
		}},
	}

	for _, h := range hooks {
		if err := h.register("metrics_"+h.op, before, after(h.op)); err != nil {
			return err
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			m.DBConnections.Set(float64(sqlDB.Stats().OpenConnections))
		}
	}()

	return nil
}
