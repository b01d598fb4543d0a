package reminder

import (
	"context"
	"errors"
	"time"

	"github.com/AzielCF/az-flow/domains/tenant"
)

var (
	ErrTemplateNotFound = errors.New("message template not found")
	ErrCustomerNotFound = errors.New("customer not found")
)

type SendingCategory struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	Name     string `json:"name"`
	Active   bool   `json:"active"`
}

// SendingRule fires for customers of its category whose due date is DaysOffset
// days from today (positive: before the due date, negative: after it).
type SendingRule struct {
	ID         string `json:"id"`
	TenantID   string `json:"tenant_id"`
	CategoryID string `json:"category_id"`
	TemplateID string `json:"template_id"`
	DaysOffset int    `json:"days_offset"`
	TimeToSend string `json:"time_to_send"` // "HH:00"
	WeekDays   []int  `json:"week_days"`    // 0=Sunday ... 6=Saturday
	Active     bool   `json:"active"`
}

type Product struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Plan struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Value    float64 `json:"value"`
	Discount float64 `json:"discount"`
}

type Customer struct {
	ID            string    `json:"id"`
	TenantID      string    `json:"tenant_id"`
	CategoryID    string    `json:"category_id"`
	Name          string    `json:"name"`
	Phone         string    `json:"phone"`
	Email         string    `json:"email"`
	Document      string    `json:"document"`
	DueDate       time.Time `json:"due_date"`
	Product       *Product  `json:"product,omitempty"`
	Plan          *Plan     `json:"plan,omitempty"`
	LoyaltyPoints int       `json:"loyalty_points"`
	LoyaltyGoal   int       `json:"loyalty_goal"`
}

type MessageTemplate struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	Name     string `json:"name"`
	Content  string `json:"content"`
}

// CustomerContext is what the template renderer sees for one customer.
type CustomerContext struct {
	Customer Customer
	Tenant   tenant.Tenant
}

type DispatchStatus string

const (
	DispatchSent   DispatchStatus = "sent"
	DispatchFailed DispatchStatus = "failed"
)

// DispatchLog is an audit row for one reminder send attempt. It never suppresses resends.
type DispatchLog struct {
	ID         string         `json:"id"`
	TenantID   string         `json:"tenant_id"`
	RuleID     string         `json:"rule_id"`
	CustomerID string         `json:"customer_id"`
	Slot       string         `json:"slot"`
	Status     DispatchStatus `json:"status"`
	Error      string         `json:"error,omitempty"`
	SentAt     time.Time      `json:"sent_at"`
}

type IReminderRepository interface {
	// ListRulesForSlot returns active rules with the given "HH:00" slot whose category is active.
	ListRulesForSlot(ctx context.Context, slot string) ([]SendingRule, error)
	ListCustomersDueBetween(ctx context.Context, tenantID, categoryID string, from, to time.Time) ([]Customer, error)
	GetTemplate(ctx context.Context, id string) (MessageTemplate, error)
	GetTemplateByName(ctx context.Context, tenantID, name string) (MessageTemplate, error)
	FindCustomerByPhone(ctx context.Context, tenantID, phone string) (Customer, error)
}

type IDispatchLogRepository interface {
	Record(ctx context.Context, log DispatchLog) error
}

// PassReport summarizes one scheduler pass.
type PassReport struct {
	Slot           string    `json:"slot"`
	Weekday        int       `json:"weekday"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	RulesMatched   int       `json:"rules_matched"`
	RulesSkipped   int       `json:"rules_skipped"`
	CustomersFound int       `json:"customers_found"`
	Sent           int       `json:"sent"`
	Failed         int       `json:"failed"`
	Skipped        bool      `json:"skipped"` // another pass was still running
}

type IReminderUsecase interface {
	RunOnce(ctx context.Context, now time.Time) PassReport
}
