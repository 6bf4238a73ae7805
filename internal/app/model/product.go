package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Product struct {
	ID          uint           `gorm:"primarykey" json:"id"`  // 상품 ID
	Name        string         `gorm:"not null" json:"name"`  // 상품명
	Description string         `json:"description"`           // 상품 설명
	Category    string         `gorm:"index" json:"category"` // 카테고리
	CreatedAt   time.Time      `json:"created_at"`            // 생성 시각
	UpdatedAt   time.Time      `json:"updated_at"`            // 수정 시각
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`        // 삭제 시각(소프트 삭제)

	ProductTypes []ProductType `gorm:"foreignKey:ProductID" json:"product_types,omitempty"` // 판매 옵션 목록
}

func (Product) TableName() string {
	return "products"
}

// ProductType 실제 판매 단위(옵션). 장바구니와 재고는 이 단위로 관리된다.
type ProductType struct {
	ID        uint            `gorm:"primarykey" json:"id"`                         // 옵션 ID
	ProductID uint            `gorm:"not null;index" json:"product_id"`             // 소속 상품 ID
	Code      string          `gorm:"type:varchar(50);uniqueIndex" json:"code"`     // SKU 코드
	Name      string          `gorm:"not null" json:"name"`                         // 옵션명
	Price     decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"price"`     // 단가 (VAT 별도)
	VATRate   decimal.Decimal `gorm:"type:numeric(5,2);default:10" json:"vat_rate"` // 부가세율 (%)
	CreatedAt time.Time       `json:"created_at"`                                   // 생성 시각
	UpdatedAt time.Time       `json:"updated_at"`                                   // 수정 시각
	DeletedAt gorm.DeletedAt  `gorm:"index" json:"-"`                               // 삭제 시각(소프트 삭제)

	Product Product `gorm:"foreignKey:ProductID" json:"-"` // 소속 상품 정보
}

func (ProductType) TableName() string {
	return "product_types"
}
