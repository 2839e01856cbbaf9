package authz

import (
	"strings"

	"github.com/NishadApi25/final-year-project/internal/constants"
	"github.com/NishadApi25/final-year-project/internal/models"
)

var affiliateRoles = map[string]struct{}{
	constants.UserRoleAffiliate:              {},
	constants.UserRoleAffiliateMarketer:      {},
	constants.UserRoleAffiliateMarketerSnake: {},
}

// IsAffiliate 判断用户是否具备推广资格：角色命中（大小写不敏感）或推广标记为真
func IsAffiliate(user *models.User) bool {
	if user == nil {
		return false
	}
	if user.IsAffiliate {
		return true
	}
	_, ok := affiliateRoles[strings.ToLower(strings.TrimSpace(user.Role))]
	return ok
}
