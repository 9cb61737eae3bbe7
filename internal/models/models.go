package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Category struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	ImageURL    string    `json:"image_url"`
	SortOrder   int       `json:"sort_order"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

type Product struct {
	ID              uuid.UUID       `json:"id"`
	CategoryID      uuid.UUID       `json:"category_id"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	BasePrice       decimal.Decimal `json:"base_price"`
	ImageURL        string          `json:"image_url"`
	IsPopular       bool            `json:"is_popular"`
	IsAvailable     bool            `json:"is_available"`
	Allergens       []string        `json:"allergens"`
	NutritionalInfo JSONMap         `json:"nutritional_info"`
	PreparationTime int             `json:"preparation_time"`
	SortOrder       int             `json:"sort_order"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type ProductVariant struct {
	ID            uuid.UUID       `json:"id"`
	ProductID     uuid.UUID       `json:"product_id"`
	Name          string          `json:"name"`
	PriceModifier decimal.Decimal `json:"price_modifier"`
	IsDefault     bool            `json:"is_default"`
	IsAvailable   bool            `json:"is_available"`
	SortOrder     int             `json:"sort_order"`
}

// ProductWithVariants is the denormalized product snapshot carried by cart lines.
type ProductWithVariants struct {
	Product
	Variants []ProductVariant `json:"variants"`
	Category *Category        `json:"category,omitempty"`
}

// Variant returns the variant with the given id, if the product has one.
func (p ProductWithVariants) Variant(id uuid.UUID) (ProductVariant, bool) {
	for _, v := range p.Variants {
		if v.ID == id {
			return v, true
		}
	}
	return ProductVariant{}, false
}

type User struct {
	ID            uuid.UUID   `json:"id"`
	Email         string      `json:"email"`
	FirstName     string      `json:"first_name"`
	LastName      string      `json:"last_name"`
	Phone         string      `json:"phone"`
	Address       string      `json:"address"`
	City          string      `json:"city"`
	PostalCode    string      `json:"postal_code"`
	LoyaltyPoints int         `json:"loyalty_points"`
	LoyaltyTier   LoyaltyTier `json:"loyalty_tier"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
	Version       int         `json:"version"`
}

type Order struct {
	ID                  uuid.UUID       `json:"id"`
	UserID              uuid.NullUUID   `json:"user_id"`
	OrderNumber         string          `json:"order_number"`
	Status              OrderStatus     `json:"status"`
	OrderType           OrderType       `json:"order_type"`
	Subtotal            decimal.Decimal `json:"subtotal"`
	DeliveryFee         decimal.Decimal `json:"delivery_fee"`
	LoyaltyDiscount     decimal.Decimal `json:"loyalty_discount"`
	TotalAmount         decimal.Decimal `json:"total_amount"`
	LoyaltyPointsUsed   int             `json:"loyalty_points_used"`
	LoyaltyPointsEarned int             `json:"loyalty_points_earned"`
	SpecialInstructions string          `json:"special_instructions"`
	DeliveryAddress     string          `json:"delivery_address"`
	ScheduledTime       time.Time       `json:"scheduled_time"`
	CustomerFirstName   string          `json:"customer_first_name"`
	CustomerLastName    string          `json:"customer_last_name"`
	CustomerPhone       string          `json:"customer_phone"`
	CustomerEmail       string          `json:"customer_email,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
	Version             int             `json:"version"`
	Items               []OrderItem     `json:"items,omitempty"`
}

// IsGuest reports whether the order was placed without an authenticated user.
func (o *Order) IsGuest() bool {
	return !o.UserID.Valid
}

type OrderItem struct {
	ID                  uuid.UUID       `json:"id"`
	OrderID             uuid.UUID       `json:"order_id"`
	ProductID           uuid.UUID       `json:"product_id"`
	VariantID           uuid.NullUUID   `json:"variant_id"`
	Quantity            int             `json:"quantity"`
	UnitPrice           decimal.Decimal `json:"unit_price"`
	TotalPrice          decimal.Decimal `json:"total_price"`
	SpecialInstructions string          `json:"special_instructions"`
	CreatedAt           time.Time       `json:"created_at"`

	ProductName     string `json:"product_name,omitempty"`
	ProductImageURL string `json:"product_image_url,omitempty"`
	VariantName     string `json:"variant_name,omitempty"`
}

type LoyaltyTransaction struct {
	ID              uuid.UUID              `json:"id"`
	UserID          uuid.UUID              `json:"user_id"`
	OrderID         uuid.NullUUID          `json:"order_id"`
	PointsChange    int                    `json:"points_change"`
	TransactionType LoyaltyTransactionType `json:"transaction_type"`
	Description     string                 `json:"description"`
	CreatedAt       time.Time              `json:"created_at"`
}

type RestaurantSetting struct {
	ID        uuid.UUID       `json:"id"`
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	UpdatedAt time.Time       `json:"updated_at"`
}
