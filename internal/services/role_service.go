package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	RoleActionAdd    = "add"
	RoleActionRemove = "remove"
	RoleActionList   = "list"
)

type RoleRequest struct {
	Action string
	UserID string
	Role   string
}

type RoleResult struct {
	Message string
	Roles   []*UserRole
	Listed  bool
}

type RoleService struct {
	store       RoleStore
	setupSecret string
	now         func() time.Time
	idGen       func() string
	logger      *zap.Logger
}

func NewRoleService(store RoleStore, setupSecret string, logger *zap.Logger) *RoleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoleService{
		store:       store,
		setupSecret: setupSecret,
		now:         func() time.Time { return time.Now().UTC() },
		idGen:       uuid.NewString,
		logger:      logger,
	}
}

// Manage runs a role action on behalf of callerID. The admin check happens
// before the request is looked at, so a non-admin caller never mutates the
// table whatever it asks for.
// RequireAdmin returns a forbidden error unless callerID holds the admin role.
func (s *RoleService) RequireAdmin(ctx context.Context, callerID string) error {
	ok, err := s.store.HasRole(ctx, callerID, RoleAdmin)
	if err != nil {
		return err
	}
	if !ok {
		s.logger.Warn("role management attempt without admin role", zap.String("caller", callerID))
		return NewForbiddenError("Forbidden - Admin access required")
	}
	return nil
}

func (s *RoleService) Manage(ctx context.Context, callerID string, req RoleRequest) (*RoleResult, error) {
	if err := s.RequireAdmin(ctx, callerID); err != nil {
		return nil, err
	}
	req.Action = strings.TrimSpace(req.Action)
	req.UserID = strings.TrimSpace(req.UserID)
	req.Role = strings.TrimSpace(req.Role)
	if req.Action == "" || req.UserID == "" || req.Role == "" {
		return nil, NewInvalidError("Missing required fields: action, userId, role")
	}

	switch req.Action {
	case RoleActionAdd:
		r := &UserRole{ID: s.idGen(), UserID: req.UserID, Role: req.Role, CreatedAt: s.now()}
		if err := s.store.AddRole(ctx, r); err != nil {
			s.logger.Error("add role", zap.Error(err))
			return nil, NewStorageError("Failed to add role")
		}
		s.logger.Info("role added", zap.String("caller", callerID), zap.String("user", req.UserID), zap.String("role", req.Role))
		return &RoleResult{Message: "Role added successfully"}, nil
	case RoleActionRemove:
		if _, err := s.store.RemoveRole(ctx, req.UserID, req.Role); err != nil {
			s.logger.Error("remove role", zap.Error(err))
			return nil, NewStorageError("Failed to remove role")
		}
		s.logger.Info("role removed", zap.String("caller", callerID), zap.String("user", req.UserID), zap.String("role", req.Role))
		return &RoleResult{Message: "Role removed successfully"}, nil
	case RoleActionList:
		roles, err := s.store.ListRoles(ctx)
		if err != nil {
			s.logger.Error("list roles", zap.Error(err))
			return nil, NewStorageError("Failed to list roles")
		}
		if roles == nil {
			roles = []*UserRole{}
		}
		return &RoleResult{Roles: roles, Listed: true}, nil
	default:
		return nil, NewInvalidError("Invalid action. Use: add, remove, or list")
	}
}

// Bootstrap creates the very first admin. It is refused once any admin
// exists.
func (s *RoleService) Bootstrap(ctx context.Context, secret, userID string) error {
	if s.setupSecret == "" || !secretMatches(s.setupSecret, secret) {
		s.logger.Warn("invalid setup secret attempt")
		return NewUnauthorizedError("Invalid setup secret")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return NewInvalidError("User ID is required")
	}
	inserted, err := s.store.InsertFirstAdmin(ctx, &UserRole{ID: s.idGen(), UserID: userID, Role: RoleAdmin, CreatedAt: s.now()})
	if err != nil {
		s.logger.Error("create initial admin", zap.Error(err))
		return NewStorageError("Failed to create admin")
	}
	if !inserted {
		return NewAdminExistsError("Admin already exists. Use manage-roles endpoint instead.")
	}
	s.logger.Info("initial admin created", zap.String("user", userID))
	return nil
}
