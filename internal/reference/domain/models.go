package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type FeeCategory string

const (
	Mandatory FeeCategory = "mandatory"
	Voluntary FeeCategory = "voluntary"
)

type Building struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	Name        string       `json:"name" gorm:"type:text;not null"`
	Description *string      `json:"description,omitempty" gorm:"type:text"`
	CreatedAt   time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Building) TableName() string { return "buildings" }

// FeeType is a billable category. Its default price only affects invoices
// built after a change; existing invoice lines keep their snapshot.
type FeeType struct {
	ID           snowflake.ID    `json:"id" gorm:"primaryKey"`
	Name         string          `json:"name" gorm:"type:text;not null"`
	Unit         string          `json:"unit" gorm:"type:text;not null"`
	DefaultPrice decimal.Decimal `json:"default_price" gorm:"type:numeric(18,0);not null"`
	Category     FeeCategory     `json:"category" gorm:"type:text;not null"`
	Description  *string         `json:"description,omitempty" gorm:"type:text"`
	Active       bool            `json:"active" gorm:"not null;default:true"`
	CreatedAt    time.Time       `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time       `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (FeeType) TableName() string { return "fee_types" }

type Household struct {
	ID           snowflake.ID        `json:"id" gorm:"primaryKey"`
	Code         string              `json:"code" gorm:"type:text;not null;uniqueIndex"`
	OwnerName    string              `json:"owner_name" gorm:"type:text;not null"`
	BuildingID   snowflake.ID        `json:"building_id" gorm:"not null;index"`
	ApartmentNo  string              `json:"apartment_no" gorm:"type:text;not null"`
	Area         decimal.NullDecimal `json:"area" gorm:"type:numeric(10,2)"`
	ContactEmail *string             `json:"contact_email,omitempty" gorm:"type:text"`
	CreatedAt    time.Time           `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Household) TableName() string { return "households" }

type FeeQuota struct {
	ID          snowflake.ID    `json:"id" gorm:"primaryKey"`
	HouseholdID snowflake.ID    `json:"household_id" gorm:"not null"`
	FeeTypeID   snowflake.ID    `json:"fee_type_id" gorm:"not null"`
	Quantity    decimal.Decimal `json:"quantity" gorm:"type:numeric(18,4);not null"`
	Note        *string         `json:"note,omitempty" gorm:"type:text"`
	Active      bool            `json:"active" gorm:"not null;default:true"`
}

func (FeeQuota) TableName() string { return "fee_quotas" }

// QuotaLine is an active quota joined with its active fee type, the input
// an invoice line is priced from.
type QuotaLine struct {
	FeeTypeID   snowflake.ID    `json:"fee_type_id"`
	FeeTypeName string          `json:"fee_type_name"`
	Unit        string          `json:"unit"`
	Category    FeeCategory     `json:"category"`
	Quantity    decimal.Decimal `json:"quantity"`
}

type BillingPeriod struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	Name      string       `json:"name" gorm:"type:text;not null"`
	Kind      string       `json:"kind" gorm:"type:text;not null"`
	StartsOn  time.Time    `json:"starts_on" gorm:"type:date;not null"`
	EndsOn    time.Time    `json:"ends_on" gorm:"type:date;not null"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (BillingPeriod) TableName() string { return "billing_periods" }

// NotOpenAt reports whether t falls before the first day of the period in loc.
func (p BillingPeriod) NotOpenAt(t time.Time, loc *time.Location) bool {
	start := dayStart(p.StartsOn, loc)
	return t.In(loc).Before(start)
}

// ClosedAt reports whether t falls after the last day of the period in loc.
// The end date is inclusive.
func (p BillingPeriod) ClosedAt(t time.Time, loc *time.Location) bool {
	end := dayStart(p.EndsOn, loc).AddDate(0, 0, 1)
	return !t.In(loc).Before(end)
}

func dayStart(d time.Time, loc *time.Location) time.Time {
	y, m, day := d.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, loc)
}
