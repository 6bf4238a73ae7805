package model

import (
	"time"
)

// Cart 사용자당 하나만 존재하는 장바구니
type Cart struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Lines []CartLine `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE" json:"lines,omitempty"`
}

func (Cart) TableName() string {
	return "carts"
}

// CartLine is identified by (cart, product type, variant code); adding the same
// identity again merges into the existing quantity.
type CartLine struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	CartID        uint      `gorm:"not null;uniqueIndex:idx_cart_line_identity" json:"cart_id"`
	ProductTypeID uint      `gorm:"not null;uniqueIndex:idx_cart_line_identity" json:"product_type_id"`
	VariantCode   string    `gorm:"type:varchar(50);not null;default:'';uniqueIndex:idx_cart_line_identity" json:"variant_code"`
	Quantity      int       `gorm:"not null;default:1" json:"quantity"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	ProductType ProductType `gorm:"foreignKey:ProductTypeID" json:"product_type,omitempty"`
}

func (CartLine) TableName() string {
	return "cart_lines"
}
