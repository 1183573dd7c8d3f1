package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// The shop-platform backend speaks plain JSON numbers for money, not
	// quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// ErrValidation marks locally recoverable input errors: empty cart, missing
// payment method, malformed numeric input. Handlers map it to 400.
var ErrValidation = errors.New("validation failed")

// InventoryItem is one shop-inventory row as returned by the platform
// backend. ID doubles as the product_stock_id used in submission payloads.
type InventoryItem struct {
	ID           int64           `json:"id"`
	ProductID    int64           `json:"product_id"`
	ProductName  string          `json:"product_name"`
	SellPrice    decimal.Decimal `json:"sell_price"`
	BuyPrice     decimal.Decimal `json:"buy_price,omitempty"`
	Quantity     int             `json:"quantity"`
	Category     string          `json:"category,omitempty"`
	ProductImage string          `json:"product_image,omitempty"`
}

// CatalogProduct is one global-catalog row, joined against inventory by
// ProductID to resolve product images.
type CatalogProduct struct {
	ProductID    int64  `json:"product_id"`
	ProductImage string `json:"product_image"`
}

// Display is the resolved presentation of an inventory row for the operator
// grid. Resolution never fails; missing data degrades to fallbacks.
type Display struct {
	ImageURL string          `json:"image_url"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
}

// LineItem is one cart line. UnitPrice is operator-editable and may diverge
// from the catalog sell price. StockSnapshot is the on-hand quantity at the
// moment the line was created; it is advisory only.
type LineItem struct {
	ProductID       int64           `json:"product_id"`
	StockID         int64           `json:"product_stock_id"`
	Name            string          `json:"name"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	Quantity        int             `json:"quantity"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	StockSnapshot   int             `json:"stock_snapshot"`
}

// Settlement is the derived monetary summary of a cart plus tendered payment.
// All fields are rounded to 2 decimal places; intermediate arithmetic happens
// in full precision inside the settlement package.
type Settlement struct {
	Subtotal      decimal.Decimal `json:"subtotal"`
	DiscountTotal decimal.Decimal `json:"discount_total"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	AmountChange  decimal.Decimal `json:"amount_change"`
	Due           decimal.Decimal `json:"due"`
}

// CustomerInfo travels with a submission. The phone number is passed through
// unvalidated; validation, when wanted, belongs to the operator form.
type CustomerInfo struct {
	Name        string `json:"customer_name"`
	PhoneNumber string `json:"customer_phone_number"`
	Note        string `json:"note"`
}

// PaymentMeta describes how the order is being settled.
type PaymentMeta struct {
	Method     string          `json:"payment_method"`
	AmountPaid decimal.Decimal `json:"amount_paid"`
}

// ItemBreakdown is the per-line slice of a TransactionPayload. DiscountType
// is always "percentage"; the backend keeps the enum for future use.
type ItemBreakdown struct {
	ProductStockID        int64           `json:"product_stock_id"`
	Quantity              int             `json:"quantity"`
	DiscountType          string          `json:"discount_type"`
	DiscountTotal         decimal.Decimal `json:"discount_total"`
	TotalDiscountedAmount decimal.Decimal `json:"total_discounted_amount"`
}

// TransactionPayload is the wire format POSTed to the order-submission
// endpoint.
type TransactionPayload struct {
	ShopID              int64           `json:"shop_id"`
	CustomerPhoneNumber string          `json:"customer_phone_number"`
	CustomerName        string          `json:"customer_name"`
	Note                string          `json:"note"`
	PaymentMethod       string          `json:"payment_method"`
	Subtotal            decimal.Decimal `json:"subtotal"`
	DiscountTotal       decimal.Decimal `json:"discount_total"`
	GrandTotal          decimal.Decimal `json:"grand_total"`
	AmountPaid          decimal.Decimal `json:"amount_paid"`
	AmountChange        decimal.Decimal `json:"amount_change"`
	Due                 decimal.Decimal `json:"due"`
	Items               []ItemBreakdown `json:"items"`
}

// ConfirmedItem is one line of a backend-confirmed transaction, carrying the
// display fields a receipt needs. Monetary fields are nullable: the backend
// occasionally omits them and the receipt must render "N/A", never a zero it
// did not compute.
type ConfirmedItem struct {
	Name      string              `json:"name"`
	Quantity  int                 `json:"quantity"`
	UnitPrice decimal.NullDecimal `json:"unit_price"`
	Total     decimal.NullDecimal `json:"total"`
}

// ConfirmedTransaction is a transaction as echoed by the backend after
// submission, including the server-assigned identifier and timestamp. It is
// the only input the receipt renderer accepts.
type ConfirmedTransaction struct {
	TransactionID      string              `json:"transaction_id"`
	ShopID             int64               `json:"shop_id"`
	CreatedAt          time.Time           `json:"created_at"`
	PaymentMethod      string              `json:"payment_method"`
	CustomerName       string              `json:"customer_name"`
	CustomerPhone      string              `json:"customer_phone_number"`
	MobileBankingPhone string              `json:"mobile_banking_phone,omitempty"`
	Note               string              `json:"note,omitempty"`
	Subtotal           decimal.NullDecimal `json:"subtotal"`
	DiscountTotal      decimal.NullDecimal `json:"discount_total"`
	GrandTotal         decimal.NullDecimal `json:"grand_total"`
	AmountPaid         decimal.NullDecimal `json:"amount_paid"`
	AmountChange       decimal.NullDecimal `json:"amount_change"`
	Due                decimal.NullDecimal `json:"due"`
	Items              []ConfirmedItem     `json:"items"`
}

// PaymentStatus is derived from due vs grand total, never stored.
type PaymentStatus string

const (
	PaymentStatusPaid    PaymentStatus = "Paid"
	PaymentStatusPartial PaymentStatus = "Partial"
	PaymentStatusUnpaid  PaymentStatus = "Unpaid"
	PaymentStatusUnknown PaymentStatus = "Unknown"
)

// HeldCart is a parked order-composition session: the operator suspends the
// current cart to serve another customer and resumes it later.
type HeldCart struct {
	ID         string     `json:"id"`
	ShopID     int64      `json:"shop_id"`
	TerminalID string     `json:"terminal_id"`
	Cashier    string     `json:"cashier"`
	Note       string     `json:"note"`
	Lines      []LineItem `json:"lines"`
	HeldAt     time.Time  `json:"held_at"`
}

// Actor is the authenticated operator attached to a request context.
type Actor struct {
	Username string
	Role     string
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type CashierCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CashierUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

// Session request/response DTOs.

type AddItemRequest struct {
	ProductStockID int64 `json:"product_stock_id"`
}

type SetQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type SetPriceRequest struct {
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type SetDiscountRequest struct {
	DiscountPercent decimal.Decimal `json:"discount_percent"`
}

type SetPaidRequest struct {
	AmountPaid decimal.Decimal `json:"amount_paid"`
}

// CartView is the operator-facing snapshot of a session: lines in insertion
// order plus the settlement recomputed after the latest mutation.
type CartView struct {
	TerminalID string          `json:"terminal_id"`
	Lines      []LineItem      `json:"lines"`
	Settlement Settlement      `json:"settlement"`
	AmountPaid decimal.Decimal `json:"amount_paid"`
}

type SubmitRequest struct {
	Customer      CustomerInfo    `json:"customer"`
	PaymentMethod string          `json:"payment_method"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
}

type HoldCartRequest struct {
	Note string `json:"note"`
}

type HeldCartListResponse struct {
	Items []HeldCart `json:"items"`
}
