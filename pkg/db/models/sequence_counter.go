package models

// SequenceCounter is the single row backing a named monotonic counter.
type SequenceCounter struct {
	Name  string `gorm:"column:name;primaryKey"`
	Value int64  `gorm:"column:value;not null"`
}

func (SequenceCounter) TableName() string { return "sequence_counters" }
