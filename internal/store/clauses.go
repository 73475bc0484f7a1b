package store

import "gorm.io/gorm/clause"

// onConflictDoNothing makes CreateIfNotExists a single INSERT ... ON
// CONFLICT DO NOTHING statement instead of a racy exists-check-then-insert.
func onConflictDoNothing() clause.OnConflict {
	return clause.OnConflict{DoNothing: true}
}
