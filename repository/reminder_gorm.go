package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AzielCF/az-flow/domains/reminder"
	pkgError "github.com/AzielCF/az-flow/pkg/error"
	"github.com/AzielCF/az-flow/pkg/utils"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// phoneSuffixLen is how many trailing digits identify a customer when the
// stored number and the WhatsApp number disagree on country code or ninth digit.
const phoneSuffixLen = 8

type sendingCategoryModel struct {
	ID       string `gorm:"primaryKey"`
	TenantID string `gorm:"index;not null"`
	Name     string `gorm:"not null"`
	Active   bool   `gorm:"not null"`
}

func (sendingCategoryModel) TableName() string {
	return "sending_categories"
}

type sendingRuleModel struct {
	ID         string                   `gorm:"primaryKey"`
	TenantID   string                   `gorm:"index;not null"`
	CategoryID string                   `gorm:"index;not null"`
	TemplateID string                   `gorm:"not null"`
	DaysOffset int                      `gorm:"not null"`
	TimeToSend string                   `gorm:"index;size:5;not null"`
	WeekDays   datatypes.JSONSlice[int] `gorm:"type:json"`
	Active     bool                     `gorm:"not null"`
}

func (sendingRuleModel) TableName() string {
	return "sending_rules"
}

type productModel struct {
	ID       string `gorm:"primaryKey"`
	TenantID string `gorm:"index;not null"`
	Name     string `gorm:"not null"`
}

func (productModel) TableName() string {
	return "products"
}

type planModel struct {
	ID       string  `gorm:"primaryKey"`
	TenantID string  `gorm:"index;not null"`
	Name     string  `gorm:"not null"`
	Value    float64 `gorm:"not null"`
	Discount float64
}

func (planModel) TableName() string {
	return "plans"
}

type customerModel struct {
	ID            string `gorm:"primaryKey"`
	TenantID      string `gorm:"index:idx_customers_tenant_due,priority:1;not null"`
	CategoryID    string `gorm:"index"`
	Name          string `gorm:"not null"`
	Phone         string `gorm:"index;not null"`
	Email         string
	Document      string
	DueDate       time.Time `gorm:"index:idx_customers_tenant_due,priority:2"`
	ProductID     *string
	Product       *productModel `gorm:"foreignKey:ProductID"`
	PlanID        *string
	Plan          *planModel `gorm:"foreignKey:PlanID"`
	LoyaltyPoints int
	LoyaltyGoal   int
}

func (customerModel) TableName() string {
	return "customers"
}

type messageTemplateModel struct {
	ID       string `gorm:"primaryKey"`
	TenantID string `gorm:"uniqueIndex:idx_templates_tenant_name,priority:1;not null"`
	Name     string `gorm:"uniqueIndex:idx_templates_tenant_name,priority:2;not null"`
	Content  string `gorm:"type:text;not null"`
}

func (messageTemplateModel) TableName() string {
	return "message_templates"
}

// ReminderGormRepository reads the catalog the reminder scheduler and the
// fulfillment endpoint work from. Writes exist for seeding and admin tooling.
type ReminderGormRepository struct {
	db *gorm.DB
}

func NewReminderGormRepository(db *gorm.DB) *ReminderGormRepository {
	return &ReminderGormRepository{db: db}
}

func (r *ReminderGormRepository) InitSchema(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(
		&sendingCategoryModel{},
		&sendingRuleModel{},
		&productModel{},
		&planModel{},
		&customerModel{},
		&messageTemplateModel{},
	)
}

func (r *ReminderGormRepository) ListRulesForSlot(ctx context.Context, slot string) ([]reminder.SendingRule, error) {
	var rows []sendingRuleModel
	err := r.db.WithContext(ctx).
		Model(&sendingRuleModel{}).
		Select("sending_rules.*").
		Joins("JOIN sending_categories ON sending_categories.id = sending_rules.category_id").
		Where("sending_rules.active = ? AND sending_categories.active = ?", true, true).
		Where("sending_rules.time_to_send = ?", slot).
		Order("sending_rules.tenant_id, sending_rules.id").
		Find(&rows).Error
	if err != nil {
		return nil, pkgError.PersistenceError(fmt.Sprintf("list rules for %s: %v", slot, err))
	}

	out := make([]reminder.SendingRule, 0, len(rows))
	for _, m := range rows {
		out = append(out, fromRuleModel(m))
	}
	return out, nil
}

// ListCustomersDueBetween returns customers with from <= due_date < to. Bounds are compared in UTC.
func (r *ReminderGormRepository) ListCustomersDueBetween(ctx context.Context, tenantID, categoryID string, from, to time.Time) ([]reminder.Customer, error) {
	var rows []customerModel
	err := r.db.WithContext(ctx).
		Preload("Product").
		Preload("Plan").
		Where("tenant_id = ? AND category_id = ?", tenantID, categoryID).
		Where("due_date >= ? AND due_date < ?", from.UTC(), to.UTC()).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, pkgError.PersistenceError(fmt.Sprintf("list customers due: %v", err))
	}

	out := make([]reminder.Customer, 0, len(rows))
	for _, m := range rows {
		out = append(out, fromCustomerModel(m))
	}
	return out, nil
}

func (r *ReminderGormRepository) GetTemplate(ctx context.Context, id string) (reminder.MessageTemplate, error) {
	var m messageTemplateModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return reminder.MessageTemplate{}, templateErr(id, err)
	}
	return fromTemplateModel(m), nil
}

func (r *ReminderGormRepository) GetTemplateByName(ctx context.Context, tenantID, name string) (reminder.MessageTemplate, error) {
	var m messageTemplateModel
	if err := r.db.WithContext(ctx).First(&m, "tenant_id = ? AND name = ?", tenantID, name).Error; err != nil {
		return reminder.MessageTemplate{}, templateErr(name, err)
	}
	return fromTemplateModel(m), nil
}

func templateErr(ref string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return reminder.ErrTemplateNotFound
	}
	return pkgError.PersistenceError(fmt.Sprintf("get template %s: %v", ref, err))
}

// FindCustomerByPhone matches the exact digits first, then the trailing digits.
func (r *ReminderGormRepository) FindCustomerByPhone(ctx context.Context, tenantID, phone string) (reminder.Customer, error) {
	digits := utils.DigitsOnly(phone)
	if digits == "" {
		return reminder.Customer{}, reminder.ErrCustomerNotFound
	}

	base := func() *gorm.DB {
		return r.db.WithContext(ctx).Preload("Product").Preload("Plan").Where("tenant_id = ?", tenantID)
	}

	var m customerModel
	err := base().Where("phone = ?", digits).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) && len(digits) >= phoneSuffixLen {
		suffix := digits[len(digits)-phoneSuffixLen:]
		err = base().Where("phone LIKE ?", "%"+suffix).Order("id").First(&m).Error
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return reminder.Customer{}, reminder.ErrCustomerNotFound
		}
		return reminder.Customer{}, pkgError.PersistenceError(fmt.Sprintf("find customer by phone: %v", err))
	}
	return fromCustomerModel(m), nil
}

// --- Seeding ---

func (r *ReminderGormRepository) SaveCategory(ctx context.Context, c reminder.SendingCategory) error {
	m := sendingCategoryModel{ID: c.ID, TenantID: c.TenantID, Name: c.Name, Active: c.Active}
	return r.save(ctx, "category", &m)
}

func (r *ReminderGormRepository) SaveRule(ctx context.Context, rule reminder.SendingRule) error {
	m := sendingRuleModel{
		ID:         rule.ID,
		TenantID:   rule.TenantID,
		CategoryID: rule.CategoryID,
		TemplateID: rule.TemplateID,
		DaysOffset: rule.DaysOffset,
		TimeToSend: rule.TimeToSend,
		WeekDays:   datatypes.NewJSONSlice(rule.WeekDays),
		Active:     rule.Active,
	}
	return r.save(ctx, "rule", &m)
}

func (r *ReminderGormRepository) SaveCustomer(ctx context.Context, c reminder.Customer) error {
	m := customerModel{
		ID:            c.ID,
		TenantID:      c.TenantID,
		CategoryID:    c.CategoryID,
		Name:          c.Name,
		Phone:         utils.DigitsOnly(c.Phone),
		Email:         c.Email,
		Document:      c.Document,
		DueDate:       c.DueDate.UTC(),
		LoyaltyPoints: c.LoyaltyPoints,
		LoyaltyGoal:   c.LoyaltyGoal,
	}
	if c.Product != nil {
		p := productModel{ID: c.Product.ID, TenantID: c.TenantID, Name: c.Product.Name}
		if err := r.save(ctx, "product", &p); err != nil {
			return err
		}
		m.ProductID = &p.ID
	}
	if c.Plan != nil {
		p := planModel{ID: c.Plan.ID, TenantID: c.TenantID, Name: c.Plan.Name, Value: c.Plan.Value, Discount: c.Plan.Discount}
		if err := r.save(ctx, "plan", &p); err != nil {
			return err
		}
		m.PlanID = &p.ID
	}
	return r.save(ctx, "customer", &m)
}

func (r *ReminderGormRepository) SaveTemplate(ctx context.Context, t reminder.MessageTemplate) error {
	m := messageTemplateModel{ID: t.ID, TenantID: t.TenantID, Name: t.Name, Content: t.Content}
	return r.save(ctx, "template", &m)
}

func (r *ReminderGormRepository) save(ctx context.Context, what string, value any) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Save(value).Error; err != nil {
		return pkgError.PersistenceError(fmt.Sprintf("save %s: %v", what, err))
	}
	return nil
}

// --- Mappers ---

func fromRuleModel(m sendingRuleModel) reminder.SendingRule {
	return reminder.SendingRule{
		ID:         m.ID,
		TenantID:   m.TenantID,
		CategoryID: m.CategoryID,
		TemplateID: m.TemplateID,
		DaysOffset: m.DaysOffset,
		TimeToSend: m.TimeToSend,
		WeekDays:   []int(m.WeekDays),
		Active:     m.Active,
	}
}

func fromCustomerModel(m customerModel) reminder.Customer {
	c := reminder.Customer{
		ID:            m.ID,
		TenantID:      m.TenantID,
		CategoryID:    m.CategoryID,
		Name:          m.Name,
		Phone:         m.Phone,
		Email:         m.Email,
		Document:      m.Document,
		DueDate:       m.DueDate,
		LoyaltyPoints: m.LoyaltyPoints,
		LoyaltyGoal:   m.LoyaltyGoal,
	}
	if m.Product != nil {
		c.Product = &reminder.Product{ID: m.Product.ID, Name: m.Product.Name}
	}
	if m.Plan != nil {
		c.Plan = &reminder.Plan{ID: m.Plan.ID, Name: m.Plan.Name, Value: m.Plan.Value, Discount: m.Plan.Discount}
	}
	return c
}

func fromTemplateModel(m messageTemplateModel) reminder.MessageTemplate {
	return reminder.MessageTemplate{ID: m.ID, TenantID: m.TenantID, Name: m.Name, Content: m.Content}
}
