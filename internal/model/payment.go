package model

// OrderStatus payment order status
type OrderStatus string

const (
	OrderStatusPending OrderStatus = "pending"
	OrderStatusPaid    OrderStatus = "paid"
	OrderStatusFailed  OrderStatus = "failed"
	OrderStatusExpired OrderStatus = "expired"
)

// CreateOrderRequest create top-up order request
type CreateOrderRequest struct {
	Plan string `json:"plan" binding:"required"`
}

// CreateOrderResponse create top-up order response
type CreateOrderResponse struct {
	OrderID string `json:"orderId"`
	PayURL  string `json:"payUrl"`
	Credits int64  `json:"credits"`
}

// OrderStatusResponse order status response
type OrderStatusResponse struct {
	OrderID       string      `json:"orderId"`
	Status        OrderStatus `json:"status"`
	Credits       int64       `json:"credits"`
	CreditsAdded  bool        `json:"creditsAdded"`
}

// TopUpPlan a purchasable credit bundle
type TopUpPlan struct {
	Name      string
	Credits   int64
	AmountFen int64
}

// TopUpPlans the fixed set of purchasable bundles
var TopUpPlans = map[string]TopUpPlan{
	"basic":    {Name: "basic", Credits: 10, AmountFen: 990},
	"standard": {Name: "standard", Credits: 30, AmountFen: 2490},
	"pro":      {Name: "pro", Credits: 100, AmountFen: 6990},
}
