package model

import (
	"time"

	"gorm.io/gorm"
)

// Branch 재고를 보유하고 주문을 처리하는 지점
type Branch struct {
	ID        uint           `gorm:"primarykey" json:"id"`                     // 지점 ID
	Code      string         `gorm:"type:varchar(30);uniqueIndex" json:"code"` // 지점 코드
	Name      string         `gorm:"not null" json:"name"`                     // 지점명
	Address   string         `json:"address"`                                  // 주소
	CreatedAt time.Time      `json:"created_at"`                               // 생성 시각
	UpdatedAt time.Time      `json:"updated_at"`                               // 수정 시각
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`                           // 삭제 시각(소프트 삭제)
}

func (Branch) TableName() string {
	return "branches"
}
