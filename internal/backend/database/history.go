package database

import "github.com/uptrace/bun"

// HistoryRecord is one persisted classification result.
type HistoryRecord struct {
	bun.BaseModel `bun:"table:history" json:"-"`

	ID        int64  `bun:"id,pk,autoincrement" json:"id"`
	Image     string `bun:"image" json:"image"`       // opaque reference, e.g. a stored image name
	Result    string `bun:"result" json:"result"`     // classification label
	Accuracy  int    `bun:"accuracy" json:"accuracy"` // confidence in percent
	CreatedAt string `bun:"created_at" json:"created_at"`
}
