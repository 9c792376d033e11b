package warehouse

import "gorm.io/gorm/clause"

// gormExpr is a thin alias over gorm's raw SQL expression builder, kept
// local so callers don't need to import gorm/clause directly for a
// single-line arithmetic update.
func gormExpr(sql string, args ...interface{}) clause.Expr {
	return clause.Expr{SQL: sql, Vars: args}
}
