package models

type OrderItemStatus string

const (
	OrderItemStatusPending   OrderItemStatus = "Pending"
	OrderItemStatusShipped   OrderItemStatus = "Shipped"
	OrderItemStatusDelivered OrderItemStatus = "Delivered"
	OrderItemStatusCancelled OrderItemStatus = "Cancelled"
	OrderItemStatusReturned  OrderItemStatus = "Returned"
)

func (s OrderItemStatus) IsValid() bool {
	switch s {
	case OrderItemStatusPending, OrderItemStatusShipped, OrderItemStatusDelivered,
		OrderItemStatusCancelled, OrderItemStatusReturned:
		return true
	}
	return false
}

// IsTerminal: no transition leaves Cancelled or Returned.
func (s OrderItemStatus) IsTerminal() bool {
	return s == OrderItemStatusCancelled || s == OrderItemStatusReturned
}

// rank orders statuses by fulfilment progress.
func (s OrderItemStatus) rank() int {
	switch s {
	case OrderItemStatusPending:
		return 0
	case OrderItemStatusShipped:
		return 1
	case OrderItemStatusDelivered:
		return 2
	case OrderItemStatusReturned:
		return 3
	case OrderItemStatusCancelled:
		return 4
	}
	return -1
}

var orderItemTransitions = map[OrderItemStatus][]OrderItemStatus{
	OrderItemStatusPending:   {OrderItemStatusShipped, OrderItemStatusDelivered, OrderItemStatusCancelled},
	OrderItemStatusShipped:   {OrderItemStatusDelivered, OrderItemStatusCancelled},
	OrderItemStatusDelivered: {OrderItemStatusReturned},
}

// CanTransition reports whether an order item may move from -> to.
func CanTransition(from, to OrderItemStatus) bool {
	for _, next := range orderItemTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type PaymentMethod string

const (
	PaymentMethodRazorpay       PaymentMethod = "Razorpay"
	PaymentMethodWallet         PaymentMethod = "Wallet"
	PaymentMethodUPI            PaymentMethod = "UPI"
	PaymentMethodCashOnDelivery PaymentMethod = "Cash on Delivery"
	PaymentMethodPaypal         PaymentMethod = "Paypal"
)

func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodRazorpay, PaymentMethodWallet, PaymentMethodUPI,
		PaymentMethodCashOnDelivery, PaymentMethodPaypal:
		return true
	}
	return false
}

// IsRefundableToWallet lists the methods whose payments are refunded to the wallet on user cancel.
func (m PaymentMethod) IsRefundableToWallet() bool {
	return m == PaymentMethodWallet || m == PaymentMethodPaypal || m == PaymentMethodRazorpay
}

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "Pending"
	PaymentStatusPaid    PaymentStatus = "Paid"
	PaymentStatusFailed  PaymentStatus = "Failed"
)

func (s PaymentStatus) IsValid() bool {
	return s == PaymentStatusPending || s == PaymentStatusPaid || s == PaymentStatusFailed
}

type DiscountType string

const (
	DiscountTypePercentage DiscountType = "percentage"
	DiscountTypeFixed      DiscountType = "fixed"
)

func (t DiscountType) IsValid() bool {
	return t == DiscountTypePercentage || t == DiscountTypeFixed
}

type WalletTransactionType string

const (
	WalletTransactionTypeDebit  WalletTransactionType = "debit"
	WalletTransactionTypeCredit WalletTransactionType = "credit"
)

type WalletTransactionStatus string

const (
	WalletTransactionStatusPending   WalletTransactionStatus = "pending"
	WalletTransactionStatusCompleted WalletTransactionStatus = "completed"
	WalletTransactionStatusFailed    WalletTransactionStatus = "failed"
)

func (s WalletTransactionStatus) IsValid() bool {
	return s == WalletTransactionStatusPending || s == WalletTransactionStatusCompleted || s == WalletTransactionStatusFailed
}

type OfferTargetType string

const (
	OfferTargetProduct  OfferTargetType = "product"
	OfferTargetCategory OfferTargetType = "category"
)

type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

type StockMovementReason string

const (
	StockMovementSale   StockMovementReason = "Sale"
	StockMovementCancel StockMovementReason = "Cancel"
	StockMovementReturn StockMovementReason = "Return"
)
