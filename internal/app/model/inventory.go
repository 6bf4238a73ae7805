package model

import (
	"time"
)

type MovementType string // 재고 변동 유형

const (
	MovementStock   MovementType = "STOCK"   // 신규 입고 등록
	MovementRestock MovementType = "RESTOCK" // 추가 입고
	MovementDeduct  MovementType = "DEDUCT"  // 주문 차감
	MovementRelease MovementType = "RELEASE" // 주문 취소 복원
	MovementAdjust  MovementType = "ADJUST"  // 수동 조정
)

// InventoryRecord 지점별 상품 옵션 재고. Quantity는 ledger 연산으로만 변경한다.
type InventoryRecord struct {
	ID            uint      `gorm:"primarykey" json:"id"`                                                     // 재고 ID
	ProductTypeID uint      `gorm:"not null;uniqueIndex:idx_inventory_key,priority:1" json:"product_type_id"` // 상품 옵션 ID
	BranchID      uint      `gorm:"not null;uniqueIndex:idx_inventory_key,priority:2" json:"branch_id"`       // 지점 ID
	Quantity      int       `gorm:"not null;default:0;check:quantity >= 0" json:"quantity"`                   // 보유 수량
	CreatedAt     time.Time `json:"created_at"`                                                               // 생성 시각
	UpdatedAt     time.Time `json:"updated_at"`                                                               // 수정 시각

	ProductType ProductType `gorm:"foreignKey:ProductTypeID" json:"product_type,omitempty"` // 상품 옵션 정보
	Branch      Branch      `gorm:"foreignKey:BranchID" json:"-"`                           // 지점 정보
}

func (InventoryRecord) TableName() string {
	return "inventory_records"
}

// InventoryMovement 재고 변동 이력 (append-only)
type InventoryMovement struct {
	ID                uint         `gorm:"primarykey" json:"id"`
	InventoryRecordID uint         `gorm:"not null;index" json:"inventory_record_id"`
	OrderID           *uint        `gorm:"index" json:"order_id,omitempty"`
	ChangeType        MovementType `gorm:"type:varchar(20);not null" json:"change_type"`
	Delta             int          `gorm:"not null" json:"delta"`
	BeforeQuantity    int          `gorm:"not null" json:"before_quantity"`
	AfterQuantity     int          `gorm:"not null" json:"after_quantity"`
	Remark            string       `gorm:"type:varchar(255)" json:"remark,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
}

func (InventoryMovement) TableName() string {
	return "inventory_movements"
}
