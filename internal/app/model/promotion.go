package model

import (
	"time"

	"gorm.io/gorm"
)

type RedemptionStatus string // 프로모션 사용 상태

const (
	RedemptionPending  RedemptionStatus = "pending"  // 발급됨, 주문 미사용
	RedemptionUsed     RedemptionStatus = "used"     // 주문에 사용됨
	RedemptionReleased RedemptionStatus = "released" // 취소로 반환됨
)

// Active reports whether the redemption still holds a unit of the promotion.
func (s RedemptionStatus) Active() bool {
	return s == RedemptionPending || s == RedemptionUsed
}

type Promotion struct {
	ID                uint           `gorm:"primarykey" json:"id"`                                                       // 프로모션 ID
	Name              string         `gorm:"not null" json:"name"`                                                       // 프로모션명
	Discount          int            `gorm:"not null;check:discount BETWEEN 1 AND 100" json:"discount"`                  // 할인율 (%)
	StartDate         time.Time      `gorm:"not null" json:"start_date"`                                                 // 시작일
	EndDate           time.Time      `gorm:"not null" json:"end_date"`                                                   // 종료일
	RemainingQuantity int            `gorm:"not null;default:0;check:remaining_quantity >= 0" json:"remaining_quantity"` // 남은 수량
	Approved          bool           `gorm:"default:false" json:"approved"`                                              // 승인 여부
	CreatedAt         time.Time      `json:"created_at"`                                                                 // 생성 시각
	UpdatedAt         time.Time      `json:"updated_at"`                                                                 // 수정 시각
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`                                                             // 삭제 시각(소프트 삭제)
}

func (Promotion) TableName() string {
	return "promotions"
}

// UserPromotion 사용자별 프로모션 사용 기록. (user, promotion) 쌍당 한 행만 존재한다.
type UserPromotion struct {
	ID          uint             `gorm:"primarykey" json:"id"`
	UserID      uint             `gorm:"not null;uniqueIndex:idx_user_promotion,priority:1" json:"user_id"`
	PromotionID uint             `gorm:"not null;uniqueIndex:idx_user_promotion,priority:2" json:"promotion_id"`
	Status      RedemptionStatus `gorm:"type:varchar(20);not null" json:"status"`
	OrderID     *uint            `gorm:"index" json:"order_id,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`

	Promotion Promotion `gorm:"foreignKey:PromotionID" json:"promotion,omitempty"`
}

func (UserPromotion) TableName() string {
	return "user_promotions"
}
