package Models

import "gorm.io/gorm"

// Checkpoint is one physical route waypoint. The list is ordered by Position
// and reindexed whenever a checkpoint is inserted or removed.
type Checkpoint struct {
	gorm.Model
	Name     string `json:"name" gorm:"uniqueIndex"`
	Position int    `json:"position" gorm:"index"`
}

func (Checkpoint) TableName() string {
	return "checkpoints"
}

// DefaultCheckpoints seeds the reference list on first boot, ordered by the
// going direction of the route.
var DefaultCheckpoints = []string{
	"MOROGORO",
	"IRINGA",
	"MBEYA",
	"TUNDUMA",
	"NDOLA",
}
