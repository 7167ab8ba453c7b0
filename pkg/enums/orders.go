package enums

// OrderStatus tracks a medication order after materialization.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusCanceled  OrderStatus = "canceled"
)

var orderStatuses = enum("order status", OrderStatusPending, OrderStatusCompleted, OrderStatusShipped, OrderStatusCanceled)

func (s OrderStatus) String() string { return string(s) }
func (s OrderStatus) IsValid() bool  { return orderStatuses.has(s) }

func ParseOrderStatus(raw string) (OrderStatus, error) { return orderStatuses.parse(raw) }

// PaymentMethod records which processor settled an order.
type PaymentMethod string

const PaymentMethodStripe PaymentMethod = "stripe"

var paymentMethods = enum("payment method", PaymentMethodStripe)

func (p PaymentMethod) String() string { return string(p) }
func (p PaymentMethod) IsValid() bool  { return paymentMethods.has(p) }

func ParsePaymentMethod(raw string) (PaymentMethod, error) { return paymentMethods.parse(raw) }

// PaymentStatus mirrors the processor's checkout session payment_status.
type PaymentStatus string

const (
	PaymentStatusPaid              PaymentStatus = "paid"
	PaymentStatusUnpaid            PaymentStatus = "unpaid"
	PaymentStatusNoPaymentRequired PaymentStatus = "no_payment_required"
)

var paymentStatuses = enum("payment status", PaymentStatusPaid, PaymentStatusUnpaid, PaymentStatusNoPaymentRequired)

func (p PaymentStatus) String() string { return string(p) }
func (p PaymentStatus) IsValid() bool  { return paymentStatuses.has(p) }

func ParsePaymentStatus(raw string) (PaymentStatus, error) { return paymentStatuses.parse(raw) }

// ProfileRole is the role recorded on a user profile.
type ProfileRole string

const (
	ProfileRoleDoctor ProfileRole = "doctor"
	ProfileRoleAdmin  ProfileRole = "admin"
)
