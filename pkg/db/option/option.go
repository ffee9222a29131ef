package option

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// QueryOption decorates a gorm statement.
type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type optionFunc func(db *gorm.DB) *gorm.DB

func (f optionFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

func Where(query any, args ...any) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB {
		return db.Where(query, args...)
	})
}

// Equals matches column against value, including zero values that a struct
// condition would drop.
func Equals(column string, value any) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB {
		return db.Where(clause.Eq{Column: clause.Column{Name: column}, Value: value})
	})
}

func WhereExpr(expr clause.Expression) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB {
		return db.Where(expr)
	})
}

func OrderBy(expr string) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB {
		return db.Order(expr)
	})
}

func Limit(n int) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB {
		if n <= 0 {
			return db
		}
		return db.Limit(n)
	})
}

func Offset(n int) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB {
		if n <= 0 {
			return db
		}
		return db.Offset(n)
	})
}

// Alive excludes soft-deleted rows.
func Alive() QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB {
		return db.Where("destroyed = ?", false)
	})
}

// ForUpdate row-locks the selected rows where the dialect supports it.
func ForUpdate() QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB {
		if db.Dialector != nil && db.Dialector.Name() == "sqlite" {
			return db
		}
		return db.Clauses(clause.Locking{Strength: "UPDATE"})
	})
}
