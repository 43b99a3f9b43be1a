package entity

import (
	"time"
)

// Ownership 所有权登记：零件ID到当前持有账户的映射。
// Approved 是针对单个零件的授权委托账户，转移后清空。
type Ownership struct {
	PartID    uint64    `json:"part_id" gorm:"primaryKey"`
	Owner     string    `json:"owner" gorm:"size:64;not null;index"`
	Approved  string    `json:"approved,omitempty" gorm:"size:64"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Ownership) TableName() string {
	return "ownerships"
}

// OperatorApproval 操作员授权：账户级委托，
// operator 可代表 owner 操作其名下所有零件。
type OperatorApproval struct {
	ID        uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	Owner     string    `json:"owner" gorm:"size:64;not null;uniqueIndex:idx_owner_operator"`
	Operator  string    `json:"operator" gorm:"size:64;not null;uniqueIndex:idx_owner_operator"`
	CreatedAt time.Time `json:"created_at"`
}

func (OperatorApproval) TableName() string {
	return "operator_approvals"
}
