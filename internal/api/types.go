package api

import "time"

// UsageUnit is a unit of measure, e.g. {"code":"KG","name":"Kilogram"}.
type UsageUnit struct {
	Code string `json:"code"`
	Name string `json:"name,omitempty"`
}

// Inventory is a purchasable raw material.
type Inventory struct {
	ID               string     `json:"id,omitempty"`
	Name             string     `json:"name"`
	PurchasePrice    float64    `json:"purchasePrice"`
	PurchaseQuantity float64    `json:"purchaseQuantity"`
	PurchaseUnit     UsageUnit  `json:"purchaseUnit"`
	YieldPercentage  float64    `json:"yieldPercentage"`
	Remark           string     `json:"remark,omitempty"`
	CreatedAt        *time.Time `json:"createdAt,omitempty"`
	UpdatedAt        *time.Time `json:"updatedAt,omitempty"`
}

// RecipeIngredient is one inventory line of a recipe.
type RecipeIngredient struct {
	InventoryID string    `json:"inventoryID"`
	Quantity    float64   `json:"quantity"`
	Unit        UsageUnit `json:"unit"`
}

// Recipe is a sellable product built from inventories.
type Recipe struct {
	ID              string             `json:"id,omitempty"`
	Name            string             `json:"name"`
	Price           float64            `json:"price"`
	OtherPercentage float64            `json:"otherPercentage"`
	Ingredients     []RecipeIngredient `json:"ingredients"`
	CreatedAt       *time.Time         `json:"createdAt,omitempty"`
	UpdatedAt       *time.Time         `json:"updatedAt,omitempty"`
}

// Supplier sells inventories.
type Supplier struct {
	ID        string     `json:"id,omitempty"`
	Name      string     `json:"name"`
	ImgURL    string     `json:"imgUrl,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// PromotionProduct is a recipe included in a promotion.
type PromotionProduct struct {
	RecipeID string `json:"recipeID"`
	Quantity int    `json:"quantity"`
}

// Promotion is a discount or bundle.
type Promotion struct {
	ID        string             `json:"id,omitempty"`
	Name      string             `json:"name"`
	Type      string             `json:"type"`
	Detail    string             `json:"detail,omitempty"`
	Discount  float64            `json:"discount"`
	Price     float64            `json:"price"`
	Products  []PromotionProduct `json:"products,omitempty"`
	CreatedAt *time.Time         `json:"createdAt,omitempty"`
	UpdatedAt *time.Time         `json:"updatedAt,omitempty"`
}

// Stock is a stock receipt: a purchase of an inventory from a supplier.
type Stock struct {
	ID               string     `json:"id,omitempty"`
	InventoryID      string     `json:"inventoryID"`
	SupplierID       string     `json:"supplierID"`
	PurchasePrice    float64    `json:"purchasePrice"`
	PurchaseQuantity float64    `json:"purchaseQuantity"`
	PurchaseUnit     UsageUnit  `json:"purchaseUnit"`
	Remark           string     `json:"remark,omitempty"`
	CreatedAt        *time.Time `json:"createdAt,omitempty"`
	UpdatedAt        *time.Time `json:"updatedAt,omitempty"`
}
