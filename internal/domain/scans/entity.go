package scans

import (
	"time"

	"github.com/hzerradi/foodscan/internal/domain/food"
)

// ID tipe untuk ScanRecord. Time-based: decimal unix milliseconds of the
// moment the record was created.
type ScanID string

// ScanResult is the typed payload attached to a record. Ingredients are
// filtered for non-empty names and capped at 8, recipes require a name and
// at least one instruction and are capped at 3.
type ScanResult struct {
	Title           string                `json:"title"`
	Category        string                `json:"category"`
	Confidence      int                   `json:"confidence"`
	Ingredients     []string              `json:"ingredients"`
	Recipes         []food.Recipe         `json:"recipes"`
	NutritionalInfo *food.NutritionalInfo `json:"nutritionalInfo,omitempty"`
}

// Aggregate Root: ScanRecord. Immutable once created; removed only by a
// bulk history clear.
type ScanRecord struct {
	ID        ScanID     `json:"id"`
	ImageRef  string     `json:"imageRef"`
	CreatedAt time.Time  `json:"createdAt"`
	UserID    string     `json:"userId"`
	Result    ScanResult `json:"result"`
}

// Stats over the history. Windows are rolling (now - timestamp < window),
// not calendar-aligned; the daily quota check is calendar-aligned. The two
// are intentionally different.
type Stats struct {
	TotalScans int `json:"totalScans"`
	ThisWeek   int `json:"thisWeek"`
	ThisMonth  int `json:"thisMonth"`
}
