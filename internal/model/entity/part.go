package entity

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// IDList 用于PostgreSQL JSONB类型的ID列表（保持插入顺序）
type IDList []uint64

func (l IDList) Value() (driver.Value, error) {
	if l == nil {
		return json.Marshal([]uint64{})
	}
	return json.Marshal([]uint64(l))
}

func (l *IDList) Scan(value interface{}) error {
	if value == nil {
		*l = IDList{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, l)
}

// Contains 判断ID是否在列表中
func (l IDList) Contains(id uint64) bool {
	for _, v := range l {
		if v == id {
			return true
		}
	}
	return false
}

// Part 零件实体。每个零件是组合森林中的一个节点：
// 自由件是树根，锁定件是某个组合件的直接子件。
type Part struct {
	ID           uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	PartNumber   int64     `json:"part_number" gorm:"not null;index"`
	Name         string    `json:"name" gorm:"size:128;not null"`
	Manufacturer string    `json:"manufacturer" gorm:"size:128;not null"`
	LockStatus   string    `json:"lock_status" gorm:"size:16;not null;default:free"`
	ParentID     uint64    `json:"parent_id" gorm:"not null;default:0;index"`
	Children     IDList    `json:"children" gorm:"type:jsonb;not null;default:'[]'"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Part) TableName() string {
	return "parts"
}

// LockStatus 锁定状态
const (
	LockStatusFree   = "free"
	LockStatusLocked = "locked"
)

// NoParent 无父件哨兵值（零件ID从1开始分配）
const NoParent uint64 = 0

// MaxChildren 单个组合件的最大子件数
const MaxChildren = 10

// MinAssembleParts 组装操作的最小零件数
const MinAssembleParts = 2

// IsFree 是否为自由件（独立树根）
func (p *Part) IsFree() bool {
	return p.LockStatus == LockStatusFree
}

// IsComposite 是否为组合件
func (p *Part) IsComposite() bool {
	return len(p.Children) > 0
}
