package domain

import "time"

// Actor is the authenticated caller of a request, when there is one.
type Actor struct {
	Cashier  string `json:"cashier"`
	TenantID string `json:"tenant_id"`
}

type LineItem struct {
	ID        string   `json:"id" validate:"required"`
	Name      string   `json:"name" validate:"required"`
	UnitPrice float64  `json:"unit_price" validate:"finite,gt=0"`
	Quantity  int      `json:"quantity" validate:"gt=0"`
	TaxRate   *float64 `json:"tax_rate,omitempty" validate:"omitempty,finite,gte=0,lte=1"`
	Barcode   string   `json:"barcode,omitempty"`
}

type SaleRequest struct {
	TenantID        string     `json:"tenant_id,omitempty"`
	Items           []LineItem `json:"items"`
	PaymentMethod   string     `json:"payment_method"`
	PaymentReceived *float64   `json:"payment_received"`
	Cashier         string     `json:"cashier"`
	Terminal        string     `json:"terminal"`
}

type Totals struct {
	Subtotal float64 `json:"subtotal"`
	Tax      float64 `json:"tax"`
	Total    float64 `json:"total"`
}

type Transaction struct {
	ID              string     `json:"id"`
	ReceiptNumber   string     `json:"receipt_number"`
	TenantID        string     `json:"tenant_id"`
	Timestamp       time.Time  `json:"timestamp"`
	Items           []LineItem `json:"items"`
	Subtotal        float64    `json:"subtotal"`
	Tax             float64    `json:"tax"`
	Total           float64    `json:"total"`
	PaymentMethod   string     `json:"payment_method"`
	PaymentReceived float64    `json:"payment_received"`
	Change          float64    `json:"change"`
	Cashier         string     `json:"cashier"`
	Terminal        string     `json:"terminal"`
	Status          string     `json:"status"`
}

type TransactionList struct {
	Date         string        `json:"date"`
	Transactions []Transaction `json:"transactions"`
	Count        int           `json:"count"`
}

// CatalogRecord is the primary (per tenant) and global catalog projection of
// an inventory record. TenantID is only set in the global projection.
type CatalogRecord struct {
	ID            string    `json:"id"`
	TenantID      string    `json:"tenant_id,omitempty"`
	Name          string    `json:"name"`
	Barcode       string    `json:"barcode,omitempty"`
	Price         float64   `json:"price"`
	CurrentStock  int       `json:"current_stock"`
	MinStock      *int      `json:"min_stock,omitempty"`
	ReorderLevel  int       `json:"reorder_level"`
	LastUpdated   time.Time `json:"last_updated"`
	LowStockAlert bool      `json:"low_stock_alert"`
}

type ItemLedgerRecord struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	CurrentStock  int       `json:"current_stock"`
	MinStock      *int      `json:"min_stock,omitempty"`
	ReorderLevel  int       `json:"reorder_level"`
	TotalSold     int       `json:"total_sold"`
	LastUpdated   time.Time `json:"last_updated"`
	LowStockAlert bool      `json:"low_stock_alert"`
}

type OperationalRecord struct {
	ProductID     string    `json:"product_id"`
	ProductName   string    `json:"product_name"`
	CurrentStock  int       `json:"current_stock"`
	MinStock      *int      `json:"min_stock,omitempty"`
	LastUpdated   time.Time `json:"last_updated"`
	LowStockAlert bool      `json:"low_stock_alert"`
}

type InventorySnapshot struct {
	TenantID    string              `json:"tenant_id"`
	Catalog     []CatalogRecord     `json:"catalog"`
	Global      []CatalogRecord     `json:"global"`
	Items       []ItemLedgerRecord  `json:"items"`
	Operational []OperationalRecord `json:"operational"`
	Drift       []StockDrift        `json:"drift"`
}

// StockDrift reports a product whose mirrors disagree with the primary
// catalog. A nil mirror value means the mirror has no matching record.
type StockDrift struct {
	ProductID   string `json:"product_id"`
	Catalog     int    `json:"catalog"`
	Global      *int   `json:"global,omitempty"`
	ItemLedger  *int   `json:"item_ledger,omitempty"`
	Operational *int   `json:"operational,omitempty"`
}

type PaymentBreakdown struct {
	Cash   float64 `json:"cash"`
	Card   float64 `json:"card"`
	Mobile float64 `json:"mobile"`
}

type DailySalesSummary struct {
	Date              string           `json:"date"`
	TenantID          string           `json:"tenant_id"`
	TotalSales        float64          `json:"total_sales"`
	TotalTransactions int              `json:"total_transactions"`
	TotalTax          float64          `json:"total_tax"`
	PaymentMethods    PaymentBreakdown `json:"payment_methods"`
	UpdatedAt         *time.Time       `json:"updated_at,omitempty"`
}

type Reconciliation struct {
	Date       string            `json:"date"`
	TenantID   string            `json:"tenant_id"`
	Stored     DailySalesSummary `json:"stored"`
	Derived    DailySalesSummary `json:"derived"`
	Consistent bool              `json:"consistent"`
}

type DailyTarget struct {
	ID           string     `json:"id"`
	TenantID     string     `json:"tenant_id"`
	Date         string     `json:"date"`
	TargetType   string     `json:"target_type"`
	TargetValue  float64    `json:"target_value"`
	CurrentValue float64    `json:"current_value"`
	Description  string     `json:"description"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}

type TargetProgress struct {
	DailyTarget
	ProgressPercent float64 `json:"progress_percent"`
	Achieved        bool    `json:"achieved"`
}

type TargetCreateRequest struct {
	Date        string  `json:"date"`
	TargetType  string  `json:"target_type"`
	TargetValue float64 `json:"target_value"`
	Description string  `json:"description"`
}

type TargetUpdateRequest struct {
	Date         string   `json:"date,omitempty"`
	TargetValue  *float64 `json:"target_value,omitempty"`
	Description  *string  `json:"description,omitempty"`
	IsActive     *bool    `json:"is_active,omitempty"`
	CurrentValue *float64 `json:"current_value,omitempty"`
}

const (
	PaymentCash   = "cash"
	PaymentCard   = "card"
	PaymentMobile = "mobile"
)

const TxStatusCompleted = "completed"

const (
	TargetSales        = "sales"
	TargetTransactions = "transactions"
	TargetItems        = "items"
)

func IsPaymentMethod(method string) bool {
	switch method {
	case PaymentCash, PaymentCard, PaymentMobile:
		return true
	}
	return false
}

func IsTargetType(targetType string) bool {
	switch targetType {
	case TargetSales, TargetTransactions, TargetItems:
		return true
	}
	return false
}
