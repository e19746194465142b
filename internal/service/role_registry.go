package service

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/crm-console/internal/domain"
	"github.com/spec-kit/crm-console/internal/events"
	"github.com/spec-kit/crm-console/internal/localstate"
	apperrors "github.com/spec-kit/crm-console/pkg/util/errorutil"
)

const customRolesKey = "custom_roles"

type customRoleSet struct {
	Roles []string `json:"roles"`
}

// customRolesSchema v0 is the bare JSON array the settings screen used to write.
var customRolesSchema = localstate.Schema{
	Version: 1,
	Migrations: map[int]localstate.Migration{
		0: func(data json.RawMessage) (json.RawMessage, error) {
			var roles []string
			if len(data) > 0 && string(data) != "null" {
				if err := json.Unmarshal(data, &roles); err != nil {
					return nil, err
				}
			}
			return json.Marshal(customRoleSet{Roles: roles})
		},
	},
}

// RoleRegistry manages the caller-defined roles layered over the built-in set.
// Role names are unique by exact, case-sensitive comparison.
type RoleRegistry struct {
	store      *localstate.Repository[customRoleSet]
	dispatcher events.Dispatcher
	logger     *zap.Logger

	// serializes read-modify-write of a namespace within this process
	mu sync.Mutex
}

// NewRoleRegistry binds the registry to a local-state backend.
func NewRoleRegistry(backend localstate.Backend, dispatcher events.Dispatcher, logger *zap.Logger) *RoleRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoleRegistry{
		store:      localstate.NewRepository[customRoleSet](backend, customRolesKey, customRolesSchema),
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// CustomRoles returns the stored custom role names in insertion order.
func (r *RoleRegistry) CustomRoles(ctx context.Context, namespace string) ([]string, error) {
	set, err := r.store.Get(ctx, namespace)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return set.Roles, nil
}

// AddCustomRole appends a new custom role.
func (r *RoleRegistry) AddCustomRole(ctx context.Context, namespace, name string) (domain.Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Role{}, apperrors.NewFieldError("name", "Role name is required.")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	custom, err := r.CustomRoles(ctx, namespace)
	if err != nil {
		return domain.Role{}, err
	}
	if slices.Contains(domain.BuiltinRoles(), name) || slices.Contains(custom, name) {
		return domain.Role{}, apperrors.NewValidationError("Role already exists.", map[string]any{"field": "name", "role": name})
	}

	if err := r.store.Set(ctx, namespace, customRoleSet{Roles: append(custom, name)}); err != nil {
		return domain.Role{}, apperrors.NewInternalError(err)
	}

	r.publish(ctx, namespace, events.EventRoleAdded, name)
	return domain.Role{Name: name, Custom: true}, nil
}

// DeleteCustomRole removes a custom role. Members keep whatever role value they hold.
func (r *RoleRegistry) DeleteCustomRole(ctx context.Context, namespace, name string, confirmer Confirmer) error {
	if slices.Contains(domain.BuiltinRoles(), name) {
		return apperrors.NewValidationError("Built-in roles cannot be deleted.", map[string]any{"role": name})
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	custom, err := r.CustomRoles(ctx, namespace)
	if err != nil {
		return err
	}
	idx := slices.Index(custom, name)
	if idx < 0 {
		return apperrors.NewNotFound("role", map[string]any{"role": name})
	}
	if err := confirm(ctx, confirmer, "delete role"); err != nil {
		return err
	}

	if err := r.store.Set(ctx, namespace, customRoleSet{Roles: slices.Delete(custom, idx, idx+1)}); err != nil {
		return apperrors.NewInternalError(err)
	}

	r.publish(ctx, namespace, events.EventRoleDeleted, name)
	return nil
}

// Assignable lists built-in roles followed by custom roles.
func (r *RoleRegistry) Assignable(ctx context.Context, namespace string) ([]domain.Role, error) {
	custom, err := r.CustomRoles(ctx, namespace)
	if err != nil {
		return nil, err
	}
	return assignable(custom), nil
}

// OnChange calls fn with the custom role names after every write to a namespace.
func (r *RoleRegistry) OnChange(fn func(namespace string, custom []string)) (unsubscribe func()) {
	return r.store.Subscribe(func(namespace string, set customRoleSet) {
		fn(namespace, append([]string(nil), set.Roles...))
	})
}

func assignable(custom []string) []domain.Role {
	builtin := domain.BuiltinRoles()
	roles := make([]domain.Role, 0, len(builtin)+len(custom))
	for _, name := range builtin {
		roles = append(roles, domain.Role{Name: name})
	}
	for _, name := range custom {
		roles = append(roles, domain.Role{Name: name, Custom: true})
	}
	return roles
}

// Search filters the assignable roles by case-insensitive substring.
func (r *RoleRegistry) Search(ctx context.Context, namespace, term string) ([]domain.Role, error) {
	roles, err := r.Assignable(ctx, namespace)
	if err != nil {
		return nil, err
	}
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return roles, nil
	}
	matched := roles[:0]
	for _, role := range roles {
		if strings.Contains(strings.ToLower(role.Name), term) {
			matched = append(matched, role)
		}
	}
	return matched, nil
}

func (r *RoleRegistry) publish(ctx context.Context, namespace string, eventType events.EventType, role string) {
	if r.dispatcher == nil {
		return
	}
	_ = r.dispatcher.Publish(ctx, events.Event{
		Type:    eventType,
		Actor:   events.Actor{Subject: namespace},
		Payload: events.RolePayload{Role: role},
	})
}
