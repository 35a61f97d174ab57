package agent

import (
	"github.com/run-bigpig/bbn/internal/models"
)

// Roster 对话中的角色容器，保持固定顺序
type Roster struct {
	order   []models.Role
	members map[models.Role]*Persona
}

// NewRoster 按 models.Roles 的顺序为每个角色创建 Persona
func NewRoster(gen Generator, opts map[models.Role]Options) *Roster {
	r := &Roster{members: make(map[models.Role]*Persona, len(models.Roles))}
	for _, role := range models.Roles {
		r.order = append(r.order, role)
		r.members[role] = NewPersona(role, gen, opts[role])
	}
	return r
}

// Get 获取指定角色
func (r *Roster) Get(role models.Role) *Persona {
	return r.members[role]
}

// All 按发言顺序返回全部角色
func (r *Roster) All() []*Persona {
	result := make([]*Persona, 0, len(r.order))
	for _, role := range r.order {
		result = append(result, r.members[role])
	}
	return result
}

// Memories 导出全部角色的记忆
func (r *Roster) Memories() map[models.Role][]string {
	result := make(map[models.Role][]string, len(r.members))
	for role, p := range r.members {
		result[role] = p.Memory()
	}
	return result
}
