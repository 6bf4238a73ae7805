package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OrderStatus string   // 주문 상태 코드
type PaymentMethod string // 결제 수단

const (
	OrderStatusProcessing OrderStatus = "processing" // 주문 접수
	OrderStatusConfirmed  OrderStatus = "confirmed"  // 주문 확정
	OrderStatusShipping   OrderStatus = "shipping"   // 배송 중
	OrderStatusDelivered  OrderStatus = "delivered"  // 배송 완료
	OrderStatusCancelled  OrderStatus = "cancelled"  // 주문 취소

	PaymentCard     PaymentMethod = "card"
	PaymentTransfer PaymentMethod = "transfer"
	PaymentCash     PaymentMethod = "cash"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusProcessing: {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusShipping, OrderStatusCancelled},
	OrderStatusShipping:   {OrderStatusDelivered},
}

// CanTransitionTo reports whether the order may move from s to next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusProcessing, OrderStatusConfirmed, OrderStatusShipping, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCard, PaymentTransfer, PaymentCash:
		return true
	}
	return false
}

type Order struct {
	ID              uint            `gorm:"primarykey" json:"id"`                                      // 주문 ID
	OrderNo         string          `gorm:"type:varchar(40);uniqueIndex;not null" json:"order_no"`     // 주문 번호
	UserID          uint            `gorm:"not null;index" json:"user_id"`                             // 주문자 ID
	BranchID        uint            `gorm:"not null;index" json:"branch_id"`                           // 처리 지점 ID
	PromotionID     *uint           `gorm:"index" json:"promotion_id,omitempty"`                       // 적용 프로모션 ID
	Address         string          `gorm:"type:text;not null" json:"address"`                         // 배송지 주소
	PaymentMethod   PaymentMethod   `gorm:"type:varchar(20);not null" json:"payment_method"`           // 결제 수단
	Status          OrderStatus     `gorm:"type:varchar(20);default:'processing';index" json:"status"` // 주문 상태
	DiscountPercent int             `gorm:"default:0" json:"discount_percent"`                         // 할인율 (%)
	TotalNotVat     decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"total_not_vat"`          // 상품 합계 (VAT 별도)
	DiscountAmount  decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"discount_amount"`        // 할인 금액
	TotalVat        decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"total_vat"`              // 부가세 합계
	TotalAmount     decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"total_amount"`           // 최종 결제 금액
	IdempotencyKey  string          `gorm:"type:varchar(64);index" json:"-"`                           // 중복 주문 방지 키
	CancelledAt     *time.Time      `json:"cancelled_at,omitempty"`                                    // 취소 시각
	CreatedAt       time.Time       `gorm:"index" json:"created_at"`                                   // 생성 시각
	UpdatedAt       time.Time       `json:"updated_at"`                                                // 수정 시각
	DeletedAt       gorm.DeletedAt  `gorm:"index" json:"-"`                                            // 삭제 시각(소프트 삭제)

	OrderDetails []OrderDetail `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"order_details,omitempty"` // 주문 상세 목록
}

func (Order) TableName() string {
	return "orders"
}

// OrderDetail 주문 상세. AmountNotVat는 생성 시점의 UnitPrice × Quantity 이다.
type OrderDetail struct {
	ID                uint            `gorm:"primarykey" json:"id"`                              // 주문 상세 ID
	OrderID           uint            `gorm:"not null;index" json:"order_id"`                    // 주문 ID
	InventoryRecordID uint            `gorm:"not null;index" json:"inventory_record_id"`         // 재고 ID
	ProductTypeID     uint            `gorm:"not null;index" json:"product_type_id"`             // 상품 옵션 ID
	Quantity          int             `gorm:"not null" json:"quantity"`                          // 수량
	UnitPrice         decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"unit_price"`     // 단가
	AmountNotVat      decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"amount_not_vat"` // 공급가액
	VATRate           decimal.Decimal `gorm:"type:numeric(5,2);not null" json:"vat_rate"`        // 부가세율 (%)
	VATAmount         decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"vat_amount"`     // 부가세
	CreatedAt         time.Time       `json:"created_at"`                                        // 생성 시각

	ProductType ProductType `gorm:"foreignKey:ProductTypeID" json:"product_type,omitempty"` // 상품 옵션 정보
}

func (OrderDetail) TableName() string {
	return "order_details"
}
