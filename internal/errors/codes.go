package errors

// 에러 코드 상수 정의
// 형식: CATEGORY_SPECIFIC_DETAIL
// 클라이언트는 이 코드를 기준으로 메시지를 매핑함

const (
	// ==================== 인증 (AUTH_) ====================
	AuthUnauthorized = "AUTH_UNAUTHORIZED"  // 로그인 필요
	AuthTokenExpired = "AUTH_TOKEN_EXPIRED" // 토큰 만료
	AuthTokenInvalid = "AUTH_TOKEN_INVALID" // 잘못된 토큰

	// ==================== 인가/권한 (AUTHZ_) ====================
	AuthzForbidden = "AUTHZ_FORBIDDEN" // 접근 권한 없음

	// ==================== 검증 (VALIDATION_) ====================
	ValidationInvalidInput    = "VALIDATION_INVALID_INPUT"     // 잘못된 입력
	ValidationInvalidID       = "VALIDATION_INVALID_ID"        // 잘못된 ID
	ValidationInvalidQuantity = "VALIDATION_INVALID_QUANTITY"  // 잘못된 수량
	ValidationDuplicate       = "VALIDATION_DUPLICATE_REQUEST" // 중복 요청

	// ==================== 리소스 (RESOURCE_) ====================
	ResourceNotFound = "RESOURCE_NOT_FOUND" // 리소스 없음

	// ==================== 사용자/지점 ====================
	UserNotFound   = "USER_NOT_FOUND"
	BranchNotFound = "BRANCH_NOT_FOUND"

	// ==================== 상품 (PRODUCT_) ====================
	ProductTypeNotFound = "PRODUCT_TYPE_NOT_FOUND" // 상품 옵션 없음

	// ==================== 장바구니 (CART_) ====================
	CartLineNotFound = "CART_LINE_NOT_FOUND"
	CartEmpty        = "CART_EMPTY"

	// ==================== 재고 (INVENTORY_) ====================
	InventoryNotFound          = "INVENTORY_NOT_FOUND"
	InventoryInsufficientStock = "INVENTORY_INSUFFICIENT_STOCK"
	InventoryAlreadyStocked    = "INVENTORY_ALREADY_STOCKED"

	// ==================== 프로모션 (PROMOTION_) ====================
	PromotionNotFound    = "PROMOTION_NOT_FOUND"
	PromotionUnavailable = "PROMOTION_UNAVAILABLE"

	// ==================== 주문 (ORDER_) ====================
	OrderNotFound          = "ORDER_NOT_FOUND"
	OrderInvalidTransition = "ORDER_INVALID_STATUS_TRANSITION"
	OrderActionFailed      = "ORDER_ACTION_FAILED"

	// ==================== 내부 오류 (INTERNAL_) ====================
	InternalServerError = "INTERNAL_SERVER_ERROR" // 서버 오류
)
