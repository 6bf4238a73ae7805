package errors

import (
	"errors"
	"fmt"
)

// Kind classifies an AppError for callers that only care about the category.
type Kind int

const (
	KindActionFailed Kind = iota
	KindValidation
	KindNotFound
	KindInsufficientStock
	KindPromotionUnavailable
	KindForbidden
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindInsufficientStock:
		return "insufficient_stock"
	case KindPromotionUnavailable:
		return "promotion_unavailable"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	default:
		return "action_failed"
	}
}

// AppError 서비스 계층에서 반환하는 도메인 에러
type AppError struct {
	Kind    Kind
	Code    string
	Message string
	Err     error

	// generic sentinels match any error of the same Kind
	generic bool
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is compares by code, so copies made by WithMessage or WithCause still match their sentinel.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	if t.generic {
		return t.Kind == e.Kind
	}
	return t.Code == e.Code
}

// WithMessage returns a copy carrying a more specific message.
func (e *AppError) WithMessage(format string, args ...interface{}) *AppError {
	c := *e
	c.generic = false
	c.Message = fmt.Sprintf(format, args...)
	return &c
}

// WithCause returns a copy wrapping err.
func (e *AppError) WithCause(err error) *AppError {
	c := *e
	c.generic = false
	c.Err = err
	return &c
}

func New(kind Kind, code, message string) *AppError {
	return &AppError{Kind: kind, Code: code, Message: message}
}

func newKind(kind Kind, code, message string) *AppError {
	return &AppError{Kind: kind, Code: code, Message: message, generic: true}
}

// Kind-level sentinels
var (
	ErrValidation           = newKind(KindValidation, ValidationInvalidInput, "입력값이 올바르지 않습니다")
	ErrNotFound             = newKind(KindNotFound, ResourceNotFound, "요청한 리소스를 찾을 수 없습니다")
	ErrInsufficientStock    = newKind(KindInsufficientStock, InventoryInsufficientStock, "재고가 부족합니다")
	ErrPromotionUnavailable = newKind(KindPromotionUnavailable, PromotionUnavailable, "사용할 수 없는 프로모션입니다")
	ErrForbidden            = newKind(KindForbidden, AuthzForbidden, "접근 권한이 없습니다")
)

// Specific sentinels
var (
	ErrInvalidQuantity     = New(KindValidation, ValidationInvalidQuantity, "수량은 1 이상이어야 합니다")
	ErrInvalidID           = New(KindValidation, ValidationInvalidID, "잘못된 ID입니다")
	ErrDuplicateRequest    = New(KindConflict, ValidationDuplicate, "이미 처리 중인 요청입니다")
	ErrCartEmpty           = New(KindValidation, CartEmpty, "장바구니가 비어 있습니다")
	ErrUserNotFound        = New(KindNotFound, UserNotFound, "사용자를 찾을 수 없습니다")
	ErrBranchNotFound      = New(KindNotFound, BranchNotFound, "지점을 찾을 수 없습니다")
	ErrProductTypeNotFound = New(KindNotFound, ProductTypeNotFound, "상품 옵션을 찾을 수 없습니다")
	ErrCartLineNotFound    = New(KindNotFound, CartLineNotFound, "장바구니 항목을 찾을 수 없습니다")
	ErrInventoryNotFound   = New(KindNotFound, InventoryNotFound, "재고 정보를 찾을 수 없습니다")
	ErrPromotionNotFound   = New(KindNotFound, PromotionNotFound, "프로모션을 찾을 수 없습니다")
	ErrOrderNotFound       = New(KindNotFound, OrderNotFound, "주문을 찾을 수 없습니다")
	ErrAlreadyStocked      = New(KindConflict, InventoryAlreadyStocked, "이미 재고가 등록된 상품입니다")
	ErrInvalidTransition   = New(KindConflict, OrderInvalidTransition, "변경할 수 없는 주문 상태입니다")
)

// Wrap turns an unclassified failure into ActionFailed, keeping the cause.
// Errors that already carry a Kind pass through unchanged.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return err
	}
	return &AppError{Kind: KindActionFailed, Code: OrderActionFailed, Message: message, Err: err}
}

// KindOf reports the category of err; unclassified errors are ActionFailed.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindActionFailed
}

// AsAppError extracts the AppError from err, wrapping unclassified errors.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return &AppError{Kind: KindActionFailed, Code: InternalServerError, Message: "서버 오류가 발생했습니다", Err: err}
}
