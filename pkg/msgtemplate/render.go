// Package msgtemplate fills reminder and fulfillment templates.
//
// Substitution is literal: every placeholder key is replaced with
// strings.ReplaceAll, longest key first. A key that is a substring of another
// key (say {{plan}} inside {{plan_total}}) is therefore safe, but authors should
// still avoid overlapping names in extra keys. Unknown placeholders are left as-is.
package msgtemplate

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/AzielCF/az-flow/domains/reminder"
	"github.com/AzielCF/az-flow/pkg/timeutils"
	"github.com/dustin/go-humanize"
)

// Fallback replaces values a customer record does not carry.
const Fallback = "Não informado"

var monthsPT = [...]string{
	"janeiro", "fevereiro", "março", "abril", "maio", "junho",
	"julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
}

// Renderer carries the clock and zone used for greetings and dates.
type Renderer struct {
	Now      func() time.Time
	Location *time.Location
}

func New(loc *time.Location) Renderer {
	return Renderer{Now: time.Now, Location: loc}
}

// Render uses the wall clock and the local zone.
func Render(content string, c reminder.CustomerContext, extra map[string]string) string {
	return New(time.Local).Render(content, c, extra)
}

func (r Renderer) Render(content string, c reminder.CustomerContext, extra map[string]string) string {
	values := r.Values(c)
	for k, v := range extra {
		values[wrap(k)] = v
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	out := content
	for _, k := range keys {
		out = strings.ReplaceAll(out, k, values[k])
	}
	return out
}

// Values builds the placeholder map for one customer, keys already wrapped in {{ }}.
func (r Renderer) Values(c reminder.CustomerContext) map[string]string {
	now := r.now()
	cu := c.Customer
	tn := c.Tenant

	v := map[string]string{
		"{{saudacao}}":             greeting(now),
		"{{customer_name}}":        orFallback(cu.Name),
		"{{customer_first_name}}":  orFallback(firstWord(cu.Name)),
		"{{customer_phone}}":       orFallback(cu.Phone),
		"{{customer_email}}":       orFallback(cu.Email),
		"{{customer_document}}":    orFallback(cu.Document),
		"{{loyalty_points}}":       strconv.Itoa(cu.LoyaltyPoints),
		"{{loyalty_goal}}":         strconv.Itoa(cu.LoyaltyGoal),
		"{{loyalty_remaining}}":    strconv.Itoa(max(cu.LoyaltyGoal-cu.LoyaltyPoints, 0)),
		"{{pix_key}}":              orFallback(tn.PixKey),
		"{{company_name}}":         orFallback(firstNonEmpty(tn.CompanyName, tn.Name)),
		"{{payment_link}}":         Fallback,
		"{{product_name}}":         Fallback,
		"{{plan_name}}":            Fallback,
		"{{plan_value}}":           Fallback,
		"{{plan_discount}}":        Fallback,
		"{{plan_total}}":           Fallback,
		"{{customer_duedate}}":     Fallback,
		"{{customer_duedate_sh}}":  Fallback,
		"{{customer_duedate_ext}}": Fallback,
		"{{days_remaining}}":       Fallback,
	}

	if !cu.DueDate.IsZero() {
		due := cu.DueDate.In(now.Location())
		v["{{customer_duedate}}"] = due.Format("02/01/2006")
		v["{{customer_duedate_sh}}"] = due.Format("02/01")
		v["{{customer_duedate_ext}}"] = fmt.Sprintf("%d de %s de %d", due.Day(), monthsPT[due.Month()-1], due.Year())
		v["{{days_remaining}}"] = strconv.Itoa(timeutils.CeilDays(now, due))
	}
	if cu.Product != nil && cu.Product.Name != "" {
		v["{{product_name}}"] = cu.Product.Name
	}
	if cu.Plan != nil {
		v["{{plan_name}}"] = orFallback(cu.Plan.Name)
		v["{{plan_value}}"] = Money(cu.Plan.Value)
		v["{{plan_discount}}"] = Money(cu.Plan.Discount)
		v["{{plan_total}}"] = Money(max(cu.Plan.Value-cu.Plan.Discount, 0))
	}
	if tn.PaymentLinkBase != "" && cu.ID != "" {
		v["{{payment_link}}"] = strings.TrimRight(tn.PaymentLinkBase, "/") + "/" + cu.ID
	}
	return v
}

func (r Renderer) now() time.Time {
	now := time.Now()
	if r.Now != nil {
		now = r.Now()
	}
	if r.Location != nil {
		now = now.In(r.Location)
	}
	return now
}

// Money formats a BRL amount: 1234.5 -> "R$ 1.234,50".
func Money(v float64) string {
	return "R$ " + humanize.FormatFloat("#.###,##", v)
}

func greeting(now time.Time) string {
	switch h := now.Hour(); {
	case h >= 5 && h < 12:
		return "Bom dia"
	case h >= 12 && h < 18:
		return "Boa tarde"
	default:
		return "Boa noite"
	}
}

func wrap(key string) string {
	if strings.HasPrefix(key, "{{") && strings.HasSuffix(key, "}}") {
		return key
	}
	return "{{" + key + "}}"
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func orFallback(s string) string {
	if strings.TrimSpace(s) == "" {
		return Fallback
	}
	return s
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
