package auth

// Action 受控操作
type Action string

const (
	ActionApproveEnrollment Action = "approve_enrollment"
	ActionViewEnrollment    Action = "view_enrollment"
	ActionViewOwnEnrollment Action = "view_own_enrollment"
)

// AnyAuthenticated 任意已登录用户
const AnyAuthenticated = "*"

// Policy 操作到允许角色的集中映射
// 所有授权判断都经过这里,不在各个处理函数里各自比较角色
type Policy struct {
	rules map[Action]map[string]struct{}
}

// NewPolicy 根据规则创建策略
func NewPolicy(rules map[Action][]string) *Policy {
	p := &Policy{rules: make(map[Action]map[string]struct{}, len(rules))}
	for action, roles := range rules {
		set := make(map[string]struct{}, len(roles))
		for _, role := range roles {
			set[role] = struct{}{}
		}
		p.rules[action] = set
	}
	return p
}

// DefaultPolicy 默认策略
func DefaultPolicy() *Policy {
	return NewPolicy(map[Action][]string{
		ActionApproveEnrollment: {"admin", "super_admin"},
		ActionViewEnrollment:    {"admin", "super_admin"},
		ActionViewOwnEnrollment: {AnyAuthenticated},
	})
}

// Allow 判断角色集合是否允许执行操作,未登记的操作一律拒绝
func (p *Policy) Allow(roles []string, action Action) bool {
	allowed, ok := p.rules[action]
	if !ok {
		return false
	}
	if _, ok := allowed[AnyAuthenticated]; ok {
		return true
	}
	for _, role := range roles {
		if _, ok := allowed[role]; ok {
			return true
		}
	}
	return false
}

// Roles 返回操作允许的角色
func (p *Policy) Roles(action Action) []string {
	roles := make([]string, 0, len(p.rules[action]))
	for role := range p.rules[action] {
		roles = append(roles, role)
	}
	return roles
}
