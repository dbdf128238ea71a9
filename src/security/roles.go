package security

// Roles a till user can hold.
const (
	RoleAdmin        = "admin"
	RolePOSOperator  = "pos_operator"
	RoleStockManager = "stock_manager"
)

// Permission areas gating groups of endpoints.
const (
	PermSales             = "sales"
	PermProductManagement = "product_management"
	PermStockAdjustment   = "stock_adjustment"
	PermReports           = "reports"
	PermSettings          = "settings"
	PermUserManagement    = "user_management"
	PermVoidTransaction   = "void_transaction"
	PermCashManagement    = "cash_management"
)

var permissionRoles = map[string][]string{
	PermSales:             {RoleAdmin, RolePOSOperator, RoleStockManager},
	PermProductManagement: {RoleAdmin, RoleStockManager},
	PermStockAdjustment:   {RoleAdmin, RoleStockManager},
	PermReports:           {RoleAdmin},
	PermSettings:          {RoleAdmin},
	PermUserManagement:    {RoleAdmin},
	PermVoidTransaction:   {RoleAdmin},
	PermCashManagement:    {RoleAdmin, RolePOSOperator},
}

// ValidRole reports whether the role name is known.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RolePOSOperator, RoleStockManager:
		return true
	}
	return false
}

// RoleAllowed reports whether a role carries a permission. Unknown
// permissions are denied for everyone.
func RoleAllowed(role, permission string) bool {
	for _, allowed := range permissionRoles[permission] {
		if allowed == role {
			return true
		}
	}
	return false
}
