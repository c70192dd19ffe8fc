package config

import (
	"context"
	"strings"

	"bitbucket.org/mmdatafocus/bodegas_backend/appctx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TenantGuardPlugin scopes every query, update and delete to the request's
// business_id whenever the model carries a business_id column. Raw SQL is not
// covered; those statements must filter the tenant themselves. Platform admins
// and internal jobs bypass the scope via context flags.
type TenantGuardPlugin struct{}

func NewTenantGuardPlugin() *TenantGuardPlugin { return &TenantGuardPlugin{} }

func (p *TenantGuardPlugin) Name() string { return "tenant_guard" }

func (p *TenantGuardPlugin) Initialize(db *gorm.DB) error {
	registrations := []func() error{
		func() error {
			return db.Callback().Query().Before("gorm:query").Register("tenant_guard:query", scopeToTenant)
		},
		func() error {
			return db.Callback().Row().Before("gorm:row").Register("tenant_guard:row", scopeToTenant)
		},
		func() error {
			return db.Callback().Update().Before("gorm:update").Register("tenant_guard:update", scopeToTenant)
		},
		func() error {
			return db.Callback().Delete().Before("gorm:delete").Register("tenant_guard:delete", scopeToTenant)
		},
	}
	for _, register := range registrations {
		if err := register(); err != nil {
			return err
		}
	}
	return nil
}

func scopeToTenant(db *gorm.DB) {
	if db == nil || db.Statement == nil || db.Statement.Context == nil {
		return
	}
	ctx := db.Statement.Context
	if tenantScopeBypassed(ctx) {
		return
	}
	businessId, _ := appctx.GetString(ctx, appctx.ContextKeyBusinessId)
	if businessId == "" {
		return
	}
	if db.Statement.Schema == nil || db.Statement.Schema.LookUpField("business_id") == nil {
		return
	}
	// An explicit tenant filter in the statement wins.
	if whereClauseFiltersTenant(db.Statement.Clauses["WHERE"]) {
		return
	}

	db.Statement.AddClause(clause.Where{
		Exprs: []clause.Expression{
			clause.Eq{
				Column: clause.Column{Table: db.Statement.Table, Name: "business_id"},
				Value:  businessId,
			},
		},
	})
}

func tenantScopeBypassed(ctx context.Context) bool {
	if skip, ok := appctx.GetBool(ctx, appctx.ContextKeySkipTenantScope); ok && skip {
		return true
	}
	isAdmin, ok := appctx.GetBool(ctx, appctx.ContextKeyIsAdmin)
	return ok && isAdmin
}

func whereClauseFiltersTenant(c clause.Clause) bool {
	w, ok := c.Expression.(clause.Where)
	if !ok {
		return false
	}
	for _, e := range w.Exprs {
		if exprFiltersTenant(e) {
			return true
		}
	}
	return false
}

func exprFiltersTenant(e clause.Expression) bool {
	switch v := e.(type) {
	case clause.Eq:
		return tenantColumn(v.Column)
	case clause.Neq:
		return tenantColumn(v.Column)
	case clause.Gt:
		return tenantColumn(v.Column)
	case clause.Gte:
		return tenantColumn(v.Column)
	case clause.Lt:
		return tenantColumn(v.Column)
	case clause.Lte:
		return tenantColumn(v.Column)
	case clause.IN:
		return tenantColumn(v.Column)
	case clause.AndConditions:
		return anyExprFiltersTenant(v.Exprs)
	case clause.OrConditions:
		return anyExprFiltersTenant(v.Exprs)
	case clause.Expr:
		// Best effort for raw fragments.
		return strings.Contains(strings.ToLower(v.SQL), "business_id")
	default:
		return false
	}
}

func anyExprFiltersTenant(exprs []clause.Expression) bool {
	for _, e := range exprs {
		if exprFiltersTenant(e) {
			return true
		}
	}
	return false
}

func tenantColumn(col any) bool {
	switch c := col.(type) {
	case string:
		return strings.EqualFold(c, "business_id")
	case clause.Column:
		return strings.EqualFold(c.Name, "business_id")
	default:
		return false
	}
}
