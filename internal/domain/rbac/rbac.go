// Пакет rbac определяет роль администратора по группам Keycloak.
// viewer видит заявки, approver дополнительно принимает решения
// и выпускает QR-коды. Роль берётся максимальная из всех совпадений.
package rbac

// Роли в порядке возрастания привилегий.
const (
	RoleViewer   = "viewer"
	RoleApprover = "approver"
)

// roleWeight: чем выше вес, тем больше привилегий.
var roleWeight = map[string]int{
	RoleViewer:   1,
	RoleApprover: 2,
}

// HighestRole возвращает максимальную роль из набора.
// Неизвестные роли игнорируются, пустой набор даёт пустую строку.
func HighestRole(roles []string) string {
	highest := ""
	for _, r := range roles {
		if roleWeight[r] > roleWeight[highest] {
			highest = r
		}
	}
	return highest
}

// MapGroupsToRole определяет роль по группам IdP.
// Если ни одна группа не совпала, возвращает пустую строку.
func MapGroupsToRole(groups []string, approverGroups, viewerGroups []string) string {
	approverSet := toSet(approverGroups)
	viewerSet := toSet(viewerGroups)

	var roles []string
	for _, g := range groups {
		if approverSet[g] {
			roles = append(roles, RoleApprover)
		}
		if viewerSet[g] {
			roles = append(roles, RoleViewer)
		}
	}

	return HighestRole(roles)
}

// Satisfies сообщает, покрывает ли роль role требуемую required.
// approver покрывает viewer, обратное неверно.
func Satisfies(role, required string) bool {
	w, ok := roleWeight[role]
	if !ok {
		return false
	}
	return w >= roleWeight[required]
}

// IsValidRole проверяет, является ли строка допустимой ролью.
func IsValidRole(role string) bool {
	_, ok := roleWeight[role]
	return ok
}

func toSet(items []string) map[string]bool {
	s := make(map[string]bool, len(items))
	for _, item := range items {
		s[item] = true
	}
	return s
}
